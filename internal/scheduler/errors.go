package scheduler

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrClosed is returned for submissions after Close and delivered to requests
// still queued when Close runs.
var ErrClosed = closedError{}

type closedError struct{}

func (closedError) Error() string   { return "scheduler closed" }
func (closedError) StatusCode() int { return http.StatusServiceUnavailable }

// IsClosed reports whether err indicates the scheduler is shutting down.
func IsClosed(err error) bool {
	var e closedError
	return errors.As(err, &e)
}

// queueFullError signals admission-time rejection for 429 mapping.
type queueFullError struct {
	depth    int
	capacity int
}

func (e queueFullError) Error() string {
	return fmt.Sprintf("server busy: admission queue full (%d/%d)", e.depth, e.capacity)
}

func (e queueFullError) StatusCode() int { return http.StatusTooManyRequests }

// IsQueueFull reports whether err indicates backpressure (return 429).
func IsQueueFull(err error) bool {
	var e queueFullError
	return errors.As(err, &e)
}

// RunnerRejectedError is returned when a runner answers with a non-2xx status.
// Body holds the runner's response body, truncated to maxErrorBody.
type RunnerRejectedError struct {
	Runner string
	Status int
	Body   []byte
}

func (e *RunnerRejectedError) Error() string {
	return fmt.Sprintf("runner %s rejected request: %d %s: %s", e.Runner, e.Status, http.StatusText(e.Status), string(e.Body))
}

func (e *RunnerRejectedError) StatusCode() int { return http.StatusBadGateway }

// IsRunnerRejected reports whether err came from a runner's non-2xx answer.
func IsRunnerRejected(err error) bool {
	var e *RunnerRejectedError
	return errors.As(err, &e)
}

// RunnerUnreachableError wraps a transport failure talking to a runner.
type RunnerUnreachableError struct {
	Runner string
	Err    error
}

func (e *RunnerUnreachableError) Error() string {
	return fmt.Sprintf("runner %s unreachable: %v", e.Runner, e.Err)
}

func (e *RunnerUnreachableError) Unwrap() error   { return e.Err }
func (e *RunnerUnreachableError) StatusCode() int { return http.StatusBadGateway }

// IsRunnerUnreachable reports whether err is a transport-level runner failure.
func IsRunnerUnreachable(err error) bool {
	var e *RunnerUnreachableError
	return errors.As(err, &e)
}

// ReadinessTimeoutError means a runner never reported the expected model within
// the probe budget. It is fatal at startup.
type ReadinessTimeoutError struct {
	Runner   string
	Model    string
	Attempts int
	LastErr  error
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("runner %s not ready with model %q after %d attempts: %v", e.Runner, e.Model, e.Attempts, e.LastErr)
}

func (e *ReadinessTimeoutError) Unwrap() error { return e.LastErr }

// IsReadinessTimeout reports whether err is a readiness probe exhaustion.
func IsReadinessTimeout(err error) bool {
	var e *ReadinessTimeoutError
	return errors.As(err, &e)
}

// timeoutError is returned by Ticket.Wait when the caller's deadline expires.
type timeoutError struct {
	id     string
	queued bool
	cause  error
}

func (e timeoutError) Error() string {
	if e.queued {
		return "request " + e.id + " timed out waiting for a runner"
	}
	return "request " + e.id + " timed out waiting for runner response"
}

func (e timeoutError) Unwrap() error   { return e.cause }
func (e timeoutError) StatusCode() int { return http.StatusGatewayTimeout }

// IsTimeout reports whether err is a submission deadline expiry.
func IsTimeout(err error) bool {
	var e timeoutError
	return errors.As(err, &e)
}

type runnerNotFoundError struct{ url string }

func (e runnerNotFoundError) Error() string   { return "runner not found: " + e.url }
func (e runnerNotFoundError) StatusCode() int { return http.StatusNotFound }

// IsRunnerNotFound reports whether err names a runner missing from the pool.
func IsRunnerNotFound(err error) bool {
	var e runnerNotFoundError
	return errors.As(err, &e)
}

type runnerExistsError struct{ url string }

func (e runnerExistsError) Error() string   { return "runner already registered: " + e.url }
func (e runnerExistsError) StatusCode() int { return http.StatusConflict }

// IsRunnerExists reports whether err is a duplicate runner registration.
func IsRunnerExists(err error) bool {
	var e runnerExistsError
	return errors.As(err, &e)
}

// responseTooLargeError rejects a 2xx runner answer whose body exceeds the
// client's buffer cap rather than forwarding a truncated body.
type responseTooLargeError struct {
	runner string
	limit  int64
}

func (e responseTooLargeError) Error() string {
	return fmt.Sprintf("runner %s response exceeds %d bytes", e.runner, e.limit)
}

func (e responseTooLargeError) StatusCode() int { return http.StatusBadGateway }

// IsResponseTooLarge reports whether a runner answer was dropped for size.
func IsResponseTooLarge(err error) bool {
	var e responseTooLargeError
	return errors.As(err, &e)
}

type registrationAbortedError struct{ url string }

func (e registrationAbortedError) Error() string {
	return "runner drained or removed during registration: " + e.url
}

func (e registrationAbortedError) StatusCode() int { return http.StatusConflict }

// IsRegistrationAborted reports whether a runner was drained or removed before
// its registration completed.
func IsRegistrationAborted(err error) bool {
	var e registrationAbortedError
	return errors.As(err, &e)
}

// countsAsRunnerFailure decides which call errors feed the failure policy:
// transport failures and 5xx answers. A 4xx means the runner is alive and the
// payload was at fault.
func countsAsRunnerFailure(err error) bool {
	if err == nil {
		return false
	}
	var rej *RunnerRejectedError
	if errors.As(err, &rej) {
		return rej.Status >= 500
	}
	return IsRunnerUnreachable(err)
}

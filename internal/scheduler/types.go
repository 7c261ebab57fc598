package scheduler

import (
	"container/list"
	"context"
	"net/http"
	"time"
)

// State represents the admission state of a runner.
type State string

const (
	// StateLoading: registered, readiness probe not yet passed.
	StateLoading State = "loading"
	// StateIdle: eligible for the next request.
	StateIdle State = "idle"
	// StateBusy: serving exactly one request.
	StateBusy State = "busy"
	// StateDraining: accepts no new work; may still finish its current call.
	StateDraining State = "draining"
	// StateUnreachable: excluded after repeated failures until a recovery probe passes.
	StateUnreachable State = "unreachable"
)

var allStates = []State{StateLoading, StateIdle, StateBusy, StateDraining, StateUnreachable}

// Runner represents one backend inference process reached by URL.
// All fields are guarded by the owning Scheduler's mutex.
type Runner struct {
	URL      string
	State    State
	LastUsed time.Time

	// serving is true while a call is in flight, including a draining runner
	// that is finishing its last request.
	serving             bool
	// probed marks a runner registered before Start that already passed its
	// readiness probe.
	probed              bool
	seq                 uint64
	served              uint64
	failures            uint64
	consecutiveFailures int
	unreachableUntil    time.Time
	recovery            *time.Timer
}

// Request is the runner-bound payload. The scheduler never inspects Body.
type Request struct {
	// Path is the runner endpoint, e.g. /v1/chat/completions.
	Path        string
	Body        []byte
	ContentType string
}

// Response is what a runner answered with a 2xx status.
type Response struct {
	Runner string
	Status int
	Header http.Header
	Body   []byte
}

// Result is delivered exactly once per accepted submission.
type Result struct {
	Response Response
	Err      error
}

type pendingState int

const (
	pendingNew pendingState = iota
	pendingQueued
	pendingDispatched
	pendingDone
)

// pending is one unit of queued or in-flight work.
type pending struct {
	id  string
	req Request
	// ctx carries request-scoped values only; its cancellation never reaches
	// the runner call.
	ctx        context.Context
	submitted  time.Time
	enqueuedAt time.Time
	state      pendingState
	elem       *list.Element
	done       chan Result
}

func (p *pending) complete(res Result) {
	// done is buffered with capacity 1 and complete is called exactly once.
	p.done <- res
}

// Ticket is the caller's handle on an accepted submission.
type Ticket struct {
	s      *Scheduler
	p      *pending
	queued bool
}

// ID returns the identifier assigned at submission.
func (t *Ticket) ID() string { return t.p.id }

// Queued reports whether the submission had to wait in the admission queue.
func (t *Ticket) Queued() bool { return t.queued }

// Done returns a channel that receives the submission's Result exactly once.
func (t *Ticket) Done() <-chan Result { return t.p.done }

// Wait blocks until the result is available or ctx is done. When ctx ends
// first, a still-queued submission is removed from the queue; a dispatched one
// keeps running on its runner and its eventual result is discarded. Both cases
// return a timeout error.
func (t *Ticket) Wait(ctx context.Context) (Response, error) {
	select {
	case res := <-t.p.done:
		return res.Response, res.Err
	case <-ctx.Done():
		return t.s.abandon(t.p, ctx.Err())
	}
}

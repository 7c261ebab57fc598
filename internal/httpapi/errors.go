package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"runnerd/internal/scheduler"
	"runnerd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// badRequestError marks client payload problems found before submission.
type badRequestError struct {
	msg  string
	code int
}

func (e badRequestError) Error() string { return e.msg }
func (e badRequestError) StatusCode() int {
	if e.code == 0 {
		return http.StatusBadRequest
	}
	return e.code
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps scheduler and payload errors to a response and
// returns the status written.
func writeServiceError(w http.ResponseWriter, err error) int {
	if scheduler.IsQueueFull(err) {
		IncrementBackpressure("queue_full")
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
		return http.StatusTooManyRequests
	}
	var rej *scheduler.RunnerRejectedError
	if errors.As(err, &rej) {
		writeJSON(w, http.StatusBadGateway, types.ErrorResponse{
			Error:        "runner rejected request",
			Code:         http.StatusBadGateway,
			RunnerStatus: rej.Status,
			RunnerBody:   string(rej.Body),
		})
		return http.StatusBadGateway
	}
	if scheduler.IsReadinessTimeout(err) {
		writeJSONError(w, http.StatusGatewayTimeout, err.Error())
		return http.StatusGatewayTimeout
	}
	var he HTTPError
	if errors.As(err, &he) {
		writeJSONError(w, he.StatusCode(), he.Error())
		return he.StatusCode()
	}
	writeJSONError(w, http.StatusInternalServerError, err.Error())
	return http.StatusInternalServerError
}

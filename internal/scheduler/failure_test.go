package scheduler

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestFailureThresholdMarksRunnerUnreachableAndRecovers(t *testing.T) {
	fr := newFakeRunner(t, false)
	pub := NewMemoryPublisher()
	s := newTestScheduler(t, Config{FailureThreshold: 2, FailureCooldown: 50 * time.Millisecond, Publisher: pub}, fr)

	fr.setResponse(http.StatusBadGateway, "down")
	for i := 0; i < 2; i++ {
		if _, err := s.Do(testCtx(t), req("x")); !IsRunnerRejected(err) {
			t.Fatalf("call %d: expected rejection, got %v", i, err)
		}
	}
	st := s.Status()
	if st.Runners[0].State != string(StateUnreachable) || st.Runners[0].ConsecutiveFailures != 2 {
		t.Fatalf("runner = %+v, want unreachable after 2 failures", st.Runners[0])
	}
	if st.Runners[0].UnreachableUntil == 0 {
		t.Fatalf("unreachable_until not set")
	}

	// With no eligible runner the request waits in the queue.
	tk, err := s.Submit(context.Background(), req("after"))
	if err != nil || !tk.Queued() {
		t.Fatalf("expected queued while unreachable: %v", err)
	}

	fr.setResponse(http.StatusOK, "")
	resp, err := tk.Wait(testCtx(t))
	if err != nil || string(resp.Body) != "after" {
		t.Fatalf("queued request after recovery: %q %v", resp.Body, err)
	}
	var tripped, recovered bool
	for _, e := range pub.Events() {
		switch {
		case e.Name == "runner_unreachable":
			tripped = true
		case e.Name == "runner_ready" && e.Fields["from"] == string(StateUnreachable):
			recovered = true
		}
	}
	if !tripped || !recovered {
		t.Fatalf("events = %v", pub.Names())
	}
}

func TestClientErrorsDoNotCountAsRunnerFailures(t *testing.T) {
	fr := newFakeRunner(t, false)
	s := newTestScheduler(t, Config{FailureThreshold: 1}, fr)

	fr.setResponse(http.StatusBadRequest, "bad payload")
	for i := 0; i < 3; i++ {
		if _, err := s.Do(testCtx(t), req("x")); !IsRunnerRejected(err) {
			t.Fatalf("expected rejection, got %v", err)
		}
	}
	if s.IdleCount() != 1 {
		t.Fatalf("4xx answers must not take the runner out of rotation")
	}
	if got := s.Status().Runners[0].FailuresTotal; got != 0 {
		t.Fatalf("failures_total = %d, want 0", got)
	}
}

func TestSuccessResetsConsecutiveFailures(t *testing.T) {
	fr := newFakeRunner(t, false)
	s := newTestScheduler(t, Config{FailureThreshold: 2}, fr)

	fr.setResponse(http.StatusInternalServerError, "")
	_, _ = s.Do(testCtx(t), req("x"))
	fr.setResponse(http.StatusOK, "")
	if _, err := s.Do(testCtx(t), req("y")); err != nil {
		t.Fatalf("do: %v", err)
	}
	fr.setResponse(http.StatusInternalServerError, "")
	_, _ = s.Do(testCtx(t), req("z"))

	r := s.Status().Runners[0]
	if r.State != string(StateIdle) || r.ConsecutiveFailures != 1 || r.FailuresTotal != 2 {
		t.Fatalf("runner = %+v", r)
	}
}

func TestCountsAsRunnerFailure(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&RunnerRejectedError{Status: 500}, true},
		{&RunnerRejectedError{Status: 503}, true},
		{&RunnerRejectedError{Status: 404}, false},
		{&RunnerUnreachableError{Err: context.DeadlineExceeded}, true},
		{context.Canceled, false},
	}
	for _, c := range cases {
		if got := countsAsRunnerFailure(c.err); got != c.want {
			t.Fatalf("countsAsRunnerFailure(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

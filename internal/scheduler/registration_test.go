package scheduler

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestAddRunnerProbesThenAdmits(t *testing.T) {
	a := newFakeRunner(t, true)
	s := newTestScheduler(t, Config{}, a)

	// Occupy a so the next request must go to the new runner.
	if _, err := s.Submit(context.Background(), req("hold")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	a.waitStarted(t)

	b := newFakeRunner(t, false)
	b.setHealthFails(1)
	if err := s.AddRunner(testCtx(t), b.URL()+"/"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if s.PoolSize() != 2 {
		t.Fatalf("pool size = %d", s.PoolSize())
	}
	resp, err := s.Do(testCtx(t), req("to-b"))
	if err != nil || resp.Runner != b.URL() {
		t.Fatalf("expected new runner to serve: %s %v", resp.Runner, err)
	}

	if err := s.AddRunner(testCtx(t), b.URL()); !IsRunnerExists(err) {
		t.Fatalf("duplicate add: expected exists, got %v", err)
	}
}

func TestAddRunnerNotReadyIsUnregistered(t *testing.T) {
	a := newFakeRunner(t, false)
	s := newTestScheduler(t, Config{ProbeAttempts: 2}, a)

	b := newFakeRunner(t, false)
	b.setHealthFails(10)
	if err := s.AddRunner(testCtx(t), b.URL()); !IsReadinessTimeout(err) {
		t.Fatalf("expected readiness timeout, got %v", err)
	}
	if s.PoolSize() != 1 {
		t.Fatalf("failed runner should not stay registered")
	}
}

func TestAddRunnerDrainedWhileLoadingReportsConflict(t *testing.T) {
	a := newFakeRunner(t, false)
	s := newTestScheduler(t, Config{ProbeDelay: 30 * time.Millisecond}, a)

	b := newFakeRunner(t, false)
	b.setHealthFails(2)
	ctx := testCtx(t)
	added := make(chan error, 1)
	go func() { added <- s.AddRunner(ctx, b.URL()) }()

	eventually(t, "first health check on new runner", func() bool { return b.healthCount() >= 1 })
	if err := s.DrainRunner(b.URL()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	err := <-added
	if !IsRegistrationAborted(err) {
		t.Fatalf("expected aborted registration, got %v", err)
	}
	if code := err.(interface{ StatusCode() int }).StatusCode(); code != http.StatusConflict {
		t.Fatalf("maps to %d", code)
	}
	for i := 0; i < 2; i++ {
		resp, err := s.Do(testCtx(t), req("x"))
		if err != nil || resp.Runner != a.URL() {
			t.Fatalf("request %d served by %s: %v", i, resp.Runner, err)
		}
	}
	if len(b.calls()) != 0 {
		t.Fatalf("drained runner got %d calls", len(b.calls()))
	}
}

func TestDrainedRunnerTakesNoWork(t *testing.T) {
	a := newFakeRunner(t, false)
	b := newFakeRunner(t, false)
	s := newTestScheduler(t, Config{}, a, b)

	if err := s.DrainRunner(a.URL()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	for i := 0; i < 3; i++ {
		resp, err := s.Do(testCtx(t), req("x"))
		if err != nil || resp.Runner != b.URL() {
			t.Fatalf("request %d served by %s: %v", i, resp.Runner, err)
		}
	}
	if len(a.calls()) != 0 {
		t.Fatalf("drained runner got %d calls", len(a.calls()))
	}
	if err := s.DrainRunner("http://nowhere"); !IsRunnerNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveRunnerWaitsForInflightCall(t *testing.T) {
	a := newFakeRunner(t, true)
	pub := NewMemoryPublisher()
	s := newTestScheduler(t, Config{Publisher: pub}, a)

	tk, _ := s.Submit(context.Background(), req("last"))
	a.waitStarted(t)

	removed := make(chan error, 1)
	go func() { removed <- s.RemoveRunner(context.Background(), a.URL()) }()

	select {
	case err := <-removed:
		t.Fatalf("remove returned before the call finished: %v", err)
	default:
	}
	a.release(t)
	if err := <-removed; err != nil {
		t.Fatalf("remove: %v", err)
	}
	if resp, err := tk.Wait(testCtx(t)); err != nil || string(resp.Body) != "last" {
		t.Fatalf("in-flight result: %q %v", resp.Body, err)
	}
	if s.PoolSize() != 0 {
		t.Fatalf("pool size = %d after remove", s.PoolSize())
	}
	if err := s.RemoveRunner(context.Background(), a.URL()); !IsRunnerNotFound(err) {
		t.Fatalf("second remove: expected not found, got %v", err)
	}
}

func TestRemovedRunnerURLStaysReservedUntilLastCallEnds(t *testing.T) {
	a := newFakeRunner(t, true)
	s := newTestScheduler(t, Config{DrainTimeout: 50 * time.Millisecond}, a)

	tk, err := s.Submit(context.Background(), req("slow"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	a.waitStarted(t)
	if err := s.RemoveRunner(context.Background(), a.URL()); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if s.PoolSize() != 0 {
		t.Fatalf("pool size = %d after remove", s.PoolSize())
	}
	if err := s.AddRunner(testCtx(t), a.URL()); !IsRunnerExists(err) {
		t.Fatalf("re-add with a call still running: expected exists, got %v", err)
	}

	a.release(t)
	if resp, err := tk.Wait(testCtx(t)); err != nil || string(resp.Body) != "slow" {
		t.Fatalf("in-flight result: %q %v", resp.Body, err)
	}
	if err := s.AddRunner(testCtx(t), a.URL()); err != nil {
		t.Fatalf("re-add after the call ended: %v", err)
	}

	ctx := testCtx(t)
	done := make(chan error, 1)
	go func() {
		_, err := s.Do(ctx, req("again"))
		done <- err
	}()
	a.waitStarted(t)
	a.release(t)
	if err := <-done; err != nil {
		t.Fatalf("request after re-add: %v", err)
	}
	if n := a.peakInflight(); n != 1 {
		t.Fatalf("runner saw %d concurrent calls", n)
	}
}

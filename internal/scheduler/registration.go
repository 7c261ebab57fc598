package scheduler

import (
	"context"
	"time"
)

// AddRunner registers a runner at runtime. It is probed with the same budget
// as startup runners and joins the pool only once ready; a failed probe
// unregisters it again and returns the probe error. A runner drained or
// removed while its probe runs never joins and AddRunner reports a conflict.
func (s *Scheduler) AddRunner(ctx context.Context, url string) error {
	url = normalizeURL(url)
	if url == "" {
		return runnerNotFoundError{url: "(unspecified)"}
	}
	r := &Runner{URL: url, State: StateLoading}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err := s.pool.add(r); err != nil {
		s.mu.Unlock()
		return err
	}
	s.updateGaugesLocked()
	s.mu.Unlock()
	s.publisher.Publish(Event{Name: "runner_added", Runner: url, Fields: map[string]any{}})

	if err := s.prober.WaitReady(ctx, url); err != nil {
		s.mu.Lock()
		if s.pool.get(url) == r && r.State == StateLoading {
			s.pool.remove(url)
			s.updateGaugesLocked()
		}
		s.mu.Unlock()
		s.log.Warn().Str("runner", url).Err(err).Msg("runner registration failed")
		return err
	}
	if !s.activate(url, StateLoading) {
		s.log.Warn().Str("runner", url).Msg("runner left loading before it became ready")
		return registrationAbortedError{url: url}
	}
	return nil
}

// DrainRunner stops a runner from taking new work. A call already in flight
// finishes normally.
func (s *Scheduler) DrainRunner(url string) error {
	url = normalizeURL(url)
	s.mu.Lock()
	r := s.pool.get(url)
	if r == nil {
		s.mu.Unlock()
		return runnerNotFoundError{url: url}
	}
	if r.recovery != nil {
		r.recovery.Stop()
		r.recovery = nil
	}
	r.State = StateDraining
	s.updateGaugesLocked()
	s.mu.Unlock()
	s.log.Info().Str("runner", url).Msg("runner draining")
	s.publisher.Publish(Event{Name: "drain_start", Runner: url, Fields: map[string]any{}})
	return nil
}

// RemoveRunner drains a runner, waits up to the drain timeout (or ctx) for its
// in-flight call, then removes it from the pool. The runner is removed even if
// the wait times out; its last result is still delivered to its caller.
func (s *Scheduler) RemoveRunner(ctx context.Context, url string) error {
	url = normalizeURL(url)
	if err := s.DrainRunner(url); err != nil {
		return err
	}

	deadline := time.Now().Add(s.drainTimeout)
	for {
		s.mu.Lock()
		r := s.pool.get(url)
		serving := r != nil && r.serving
		s.mu.Unlock()
		if !serving {
			break
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			s.publisher.Publish(Event{Name: "drain_timeout", Runner: url, Fields: map[string]any{}})
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.mu.Lock()
	s.pool.remove(url)
	s.updateGaugesLocked()
	s.mu.Unlock()
	s.log.Info().Str("runner", url).Msg("runner removed")
	s.publisher.Publish(Event{Name: "runner_removed", Runner: url, Fields: map[string]any{}})
	return nil
}

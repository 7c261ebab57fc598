package scheduler

import (
	"context"
	"time"
)

// recordOutcomeLocked updates per-runner counters after a call.
func (s *Scheduler) recordOutcomeLocked(r *Runner, err error) {
	r.served++
	if countsAsRunnerFailure(err) {
		r.failures++
		r.consecutiveFailures++
		return
	}
	r.consecutiveFailures = 0
}

// tripLocked marks an idle runner unreachable once it has failed
// failureThreshold times in a row, and schedules a recovery probe.
// It reports whether the runner was tripped.
func (s *Scheduler) tripLocked(r *Runner) bool {
	if s.failureThreshold <= 0 || r.State != StateIdle || r.consecutiveFailures < s.failureThreshold {
		return false
	}
	r.State = StateUnreachable
	r.unreachableUntil = s.now().Add(s.failureCooldown)
	s.scheduleRecoveryLocked(r)
	return true
}

func (s *Scheduler) scheduleRecoveryLocked(r *Runner) {
	if s.closed {
		return
	}
	if r.recovery != nil {
		r.recovery.Stop()
	}
	url := r.URL
	r.recovery = time.AfterFunc(s.failureCooldown, func() { s.recover(url) })
}

// recover runs one health check against an unreachable runner after its
// cooldown. Passing returns it to the pool; failing restarts the cooldown.
func (s *Scheduler) recover(url string) {
	s.mu.Lock()
	r := s.pool.get(url)
	if r == nil || r.State != StateUnreachable || s.closed {
		s.mu.Unlock()
		return
	}
	r.recovery = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.prober.timeout)
	err := s.prober.Check(ctx, url)
	cancel()
	if err == nil {
		s.activate(url, StateUnreachable)
		return
	}

	s.log.Warn().Str("runner", url).Err(err).Msg("recovery probe failed")
	s.mu.Lock()
	if r := s.pool.get(url); r != nil && r.State == StateUnreachable {
		r.unreachableUntil = s.now().Add(s.failureCooldown)
		s.scheduleRecoveryLocked(r)
	}
	s.mu.Unlock()
}

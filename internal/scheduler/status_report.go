package scheduler

import (
	"runnerd/pkg/types"
)

// Status builds a detailed status response for /status.
func (s *Scheduler) Status() types.StatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	resp := types.StatusResponse{
		State:          s.stateLocked(),
		Model:          s.model,
		PoolSize:       s.pool.size(),
		QueueDepth:     s.queue.Len(),
		QueueCapacity:  s.queue.Cap(),
		SubmittedTotal: s.submitted,
		RejectedTotal:  s.rejected,
		UptimeSeconds:  int64(now.Sub(s.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
	if oldest, ok := s.queue.Oldest(); ok {
		resp.OldestQueuedSeconds = now.Sub(oldest).Seconds()
	}
	resp.Runners = make([]types.RunnerStatus, 0, len(s.pool.runners))
	for _, r := range s.pool.runners {
		if r.State == StateIdle {
			resp.Idle++
		}
		if r.serving {
			resp.Busy++
		}
		rs := types.RunnerStatus{
			URL:                 r.URL,
			State:               string(r.State),
			Serving:             r.serving,
			ServedTotal:         r.served,
			FailuresTotal:       r.failures,
			ConsecutiveFailures: r.consecutiveFailures,
		}
		if !r.LastUsed.IsZero() {
			rs.LastUsed = r.LastUsed.Unix()
		}
		if !r.unreachableUntil.IsZero() {
			rs.UnreachableUntil = r.unreachableUntil.Unix()
		}
		resp.Runners = append(resp.Runners, rs)
	}
	return resp
}

func (s *Scheduler) stateLocked() string {
	switch {
	case s.closed:
		return "closed"
	case s.started:
		return "ready"
	default:
		return "loading"
	}
}

// Ready reports whether startup probing has completed and the scheduler is
// accepting work.
func (s *Scheduler) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.closed
}

// Model returns the capability identifier every runner serves.
func (s *Scheduler) Model() string { return s.model }

// PoolSize returns the number of registered runners in any state.
func (s *Scheduler) PoolSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.size()
}

// IdleCount returns the number of runners ready for work.
func (s *Scheduler) IdleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.counts()[StateIdle]
}

// BusyCount returns the number of runners with a call in flight. A draining
// runner finishing its last request counts as busy.
func (s *Scheduler) BusyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.busy()
}

// QueueDepth returns the number of requests waiting for a runner.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Runners returns the registered runner URLs in registration order.
func (s *Scheduler) Runners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.pool.runners))
	for _, r := range s.pool.runners {
		out = append(out, r.URL)
	}
	return out
}

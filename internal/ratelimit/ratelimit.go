// Package ratelimit provides fixed-window request limiting keyed by client
// identity, in process or shared through Redis.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the current window ends.
	ResetAt time.Time
}

// RetryAfter returns how long a rejected client should wait, rounded up to a
// whole second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return time.Second
	}
	return wait.Truncate(time.Second) + time.Second
}

// Limiter admits up to a fixed number of requests per key per window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

func decide(count int64, limit int, resetAt time.Time) Decision {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: count <= int64(limit), Limit: limit, Remaining: remaining, ResetAt: resetAt}
}

// MemoryLimiter counts in process. Windows are aligned to multiples of the
// window length; counters from past windows are dropped lazily.
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	start  time.Time
	counts map[string]int64
	now    func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, window: window, counts: make(map[string]int64), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := l.now().Truncate(l.window)
	if !start.Equal(l.start) {
		l.start = start
		clear(l.counts)
	}
	l.counts[key]++
	return decide(l.counts[key], l.limit, start.Add(l.window)), nil
}

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Scheduler owns the runner pool and the admission queue. Callers submit
// requests; the scheduler hands each one to exactly one runner, queueing
// overflow up to a fixed capacity and rejecting the rest.
type Scheduler struct {
	mu     sync.Mutex
	pool   *Pool
	queue  *Queue
	client *Client
	prober *Prober
	model  string

	runnerTimeout    time.Duration
	submitTimeout    time.Duration
	failureThreshold int
	failureCooldown  time.Duration
	drainTimeout     time.Duration

	log       zerolog.Logger
	publisher EventPublisher

	started   bool
	closed    bool
	submitted uint64
	rejected  uint64
	startTime time.Time

	// wg tracks serve goroutines so Close can wait for in-flight calls.
	wg  sync.WaitGroup
	now func() time.Time
}

// Start probes every loading runner in parallel. Runners are admitted to the
// pool together, once all of them report the model, so no request is served
// by a partially started pool. Any runner exhausting its probe budget fails
// Start with a ReadinessTimeoutError, cancels the remaining probes and leaves
// every runner loading.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	var urls []string
	for _, r := range s.pool.runners {
		if r.State == StateLoading {
			urls = append(urls, r.URL)
		}
	}
	s.mu.Unlock()

	s.log.Info().Int("runners", len(urls)).Str("model", s.model).Msg("probing runners")
	g, gctx := errgroup.WithContext(ctx)
	for _, u := range urls {
		g.Go(func() error {
			return s.prober.WaitReady(gctx, u)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	probed := make(map[string]bool, len(urls))
	for _, u := range urls {
		probed[u] = true
	}
	var ready []string
	for _, r := range s.pool.runners {
		if r.State == StateLoading && (probed[r.URL] || r.probed) {
			s.idleLocked(r)
			ready = append(ready, r.URL)
		}
	}
	s.dispatchQueuedLocked()
	s.started = true
	size := s.pool.size()
	s.updateGaugesLocked()
	s.mu.Unlock()

	for _, u := range ready {
		s.publisher.Publish(Event{Name: "runner_ready", Runner: u, Fields: map[string]any{"from": string(StateLoading)}})
	}
	s.log.Info().Int("pool_size", size).Msg("scheduler ready")
	s.publisher.Publish(Event{Name: "started", Fields: map[string]any{"pool_size": size}})
	return nil
}

func (s *Scheduler) idleLocked(r *Runner) {
	r.State = StateIdle
	r.consecutiveFailures = 0
	r.unreachableUntil = time.Time{}
}

// dispatchQueuedLocked hands queued requests to idle runners, oldest first.
func (s *Scheduler) dispatchQueuedLocked() {
	for s.queue.Len() > 0 {
		r := s.pool.findIdle()
		if r == nil {
			return
		}
		s.startLocked(r, s.queue.Dequeue())
	}
}

// activate moves a runner from the given state to idle and, if work is
// waiting, hands it the head of the queue in the same critical section.
// Before Start completes a runner coming from loading is only marked probed;
// Start admits it with the rest of the pool.
func (s *Scheduler) activate(url string, from State) bool {
	s.mu.Lock()
	r := s.pool.get(url)
	if r == nil || r.State != from {
		s.mu.Unlock()
		return false
	}
	if !s.started && from == StateLoading {
		r.probed = true
		s.mu.Unlock()
		return true
	}
	s.idleLocked(r)
	if next := s.handoffLocked(r); next != nil {
		s.startLocked(r, next)
	}
	s.updateGaugesLocked()
	s.mu.Unlock()

	s.log.Info().Str("runner", url).Str("from", string(from)).Msg("runner idle")
	s.publisher.Publish(Event{Name: "runner_ready", Runner: url, Fields: map[string]any{"from": string(from)}})
	return true
}

// Submit admits a request. It dispatches directly when a runner is idle,
// queues it when none is, and fails synchronously with a queue-full error when
// the queue is at capacity. ctx contributes values only: cancelling it never
// aborts the runner call, use Ticket.Wait for caller-side deadlines.
func (s *Scheduler) Submit(ctx context.Context, req Request) (*Ticket, error) {
	p := &pending{
		id:   uuid.NewString(),
		req:  req,
		ctx:  context.WithoutCancel(ctx),
		done: make(chan Result, 1),
	}
	if err := ctx.Err(); err != nil {
		return nil, timeoutError{id: p.id, queued: true, cause: err}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	now := s.now()
	p.submitted = now
	if r := s.pool.findIdle(); r != nil {
		s.submitted++
		s.startLocked(r, p)
		s.updateGaugesLocked()
		s.mu.Unlock()
		submissionsTotal.WithLabelValues("dispatched").Inc()
		s.log.Debug().Str("id", p.id).Str("runner", r.URL).Msg("dispatched")
		return &Ticket{s: s, p: p}, nil
	}
	if !s.queue.Enqueue(p, now) {
		depth, capacity := s.queue.Len(), s.queue.Cap()
		s.rejected++
		s.mu.Unlock()
		submissionsTotal.WithLabelValues("rejected").Inc()
		s.log.Warn().Str("id", p.id).Int("depth", depth).Msg("admission queue full")
		s.publisher.Publish(Event{Name: "queue_full", Fields: map[string]any{"depth": depth, "capacity": capacity}})
		return nil, queueFullError{depth: depth, capacity: capacity}
	}
	s.submitted++
	depth := s.queue.Len()
	s.updateGaugesLocked()
	s.mu.Unlock()
	submissionsTotal.WithLabelValues("queued").Inc()
	s.log.Debug().Str("id", p.id).Int("depth", depth).Msg("queued")
	return &Ticket{s: s, p: p, queued: true}, nil
}

// Do submits req and waits for its result. When the scheduler has a submit
// timeout configured it bounds the whole call, in addition to ctx.
func (s *Scheduler) Do(ctx context.Context, req Request) (Response, error) {
	if s.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.submitTimeout)
		defer cancel()
	}
	t, err := s.Submit(ctx, req)
	if err != nil {
		return Response{}, err
	}
	return t.Wait(ctx)
}

// startLocked claims r for p and starts its serve loop. Caller holds s.mu.
func (s *Scheduler) startLocked(r *Runner, p *pending) {
	s.claimLocked(r, p)
	s.wg.Add(1)
	go s.serve(r, p)
}

func (s *Scheduler) claimLocked(r *Runner, p *pending) {
	now := s.now()
	s.pool.markBusy(r, now)
	p.state = pendingDispatched
	if !p.enqueuedAt.IsZero() {
		queueWaitSeconds.Observe(now.Sub(p.enqueuedAt).Seconds())
	}
}

// handoffLocked returns the next queued request for a runner that just became
// idle, or nil. Only idle runners take queued work.
func (s *Scheduler) handoffLocked(r *Runner) *pending {
	if r.State != StateIdle {
		return nil
	}
	return s.queue.Dequeue()
}

// serve runs calls on r until the queue has nothing left for it. The runner
// stays busy from the first claim until the loop exits.
func (s *Scheduler) serve(r *Runner, p *pending) {
	defer s.wg.Done()
	for p != nil {
		res := s.call(r, p)

		s.mu.Lock()
		s.recordOutcomeLocked(r, res.Err)
		s.pool.markIdle(r, s.now())
		s.pool.release(r)
		tripped := s.tripLocked(r)
		p.state = pendingDone
		next := s.handoffLocked(r)
		if next != nil {
			s.claimLocked(r, next)
		}
		s.updateGaugesLocked()
		s.mu.Unlock()

		if tripped {
			s.log.Warn().Str("runner", r.URL).Dur("cooldown", s.failureCooldown).Msg("runner marked unreachable")
			s.publisher.Publish(Event{Name: "runner_unreachable", Runner: r.URL, Fields: map[string]any{"cooldown": s.failureCooldown.String()}})
		}
		p.complete(res)
		p = next
	}
}

// call invokes the runner outside the lock.
func (s *Scheduler) call(r *Runner, p *pending) Result {
	ctx := p.ctx
	if s.runnerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runnerTimeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := s.client.Invoke(ctx, r.URL, p.req)
	runnerCallDuration.Observe(time.Since(start).Seconds())
	outcome := "ok"
	switch {
	case IsRunnerRejected(err):
		outcome = "rejected"
	case err != nil:
		outcome = "unreachable"
	}
	runnerCallsTotal.WithLabelValues(r.URL, outcome).Inc()
	if err != nil {
		s.log.Warn().Str("id", p.id).Str("runner", r.URL).Err(err).Msg("runner call failed")
	} else {
		s.log.Debug().Str("id", p.id).Str("runner", r.URL).Dur("took", time.Since(start)).Msg("runner call done")
	}
	return Result{Response: resp, Err: err}
}

// abandon settles a ticket whose caller stopped waiting. A queued request is
// pulled out of the queue; a dispatched one keeps its runner until the call
// returns and the late result is dropped.
func (s *Scheduler) abandon(p *pending, cause error) (Response, error) {
	s.mu.Lock()
	switch p.state {
	case pendingQueued:
		s.queue.Remove(p)
		p.state = pendingDone
		s.updateGaugesLocked()
		s.mu.Unlock()
		timeoutsTotal.WithLabelValues("queued").Inc()
		err := timeoutError{id: p.id, queued: true, cause: cause}
		p.complete(Result{Err: err})
		return Response{}, err
	case pendingDone:
		s.mu.Unlock()
		// The result is sent right after the state changes.
		res := <-p.done
		p.done <- res
		return res.Response, res.Err
	default:
		s.mu.Unlock()
		timeoutsTotal.WithLabelValues("dispatched").Inc()
		return Response{}, timeoutError{id: p.id, cause: cause}
	}
}

// Close rejects further submissions, fails every queued request with
// ErrClosed, stops recovery probes and waits for in-flight calls until ctx ends.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	dropped := s.queue.drain()
	for _, p := range dropped {
		p.state = pendingDone
	}
	for _, r := range s.pool.runners {
		if r.recovery != nil {
			r.recovery.Stop()
			r.recovery = nil
		}
	}
	s.updateGaugesLocked()
	s.mu.Unlock()

	for _, p := range dropped {
		p.complete(Result{Err: ErrClosed})
	}
	s.log.Info().Int("dropped", len(dropped)).Msg("scheduler closing")
	s.publisher.Publish(Event{Name: "closed", Fields: map[string]any{"dropped": len(dropped)}})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

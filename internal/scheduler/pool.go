package scheduler

import (
	"fmt"
	"time"
)

// Selection policy names accepted by Config.Selection.
const (
	SelectOrdered     = "ordered"
	SelectRoundRobin  = "round_robin"
	SelectLeastRecent = "least_recent"
)

// Selector picks one runner from the idle candidates, which are given in
// registration order and are never empty.
type Selector interface {
	Select(idle []*Runner) *Runner
}

func newSelector(name string) (Selector, error) {
	switch name {
	case "", SelectOrdered:
		return orderedSelector{}, nil
	case SelectRoundRobin:
		return &roundRobinSelector{}, nil
	case SelectLeastRecent:
		return leastRecentSelector{}, nil
	default:
		return nil, fmt.Errorf("scheduler: unknown selection policy %q", name)
	}
}

// orderedSelector favors the earliest registered idle runner.
type orderedSelector struct{}

func (orderedSelector) Select(idle []*Runner) *Runner { return idle[0] }

// roundRobinSelector picks the first idle runner registered after the last pick,
// wrapping around. Callers hold the scheduler mutex.
type roundRobinSelector struct {
	last uint64
}

func (s *roundRobinSelector) Select(idle []*Runner) *Runner {
	pick := idle[0]
	for _, r := range idle {
		if r.seq > s.last {
			pick = r
			break
		}
	}
	s.last = pick.seq
	return pick
}

// leastRecentSelector picks the idle runner that finished work longest ago.
// Ties go to registration order.
type leastRecentSelector struct{}

func (leastRecentSelector) Select(idle []*Runner) *Runner {
	pick := idle[0]
	for _, r := range idle[1:] {
		if r.LastUsed.Before(pick.LastUsed) {
			pick = r
		}
	}
	return pick
}

// Pool is the set of registered runners. It is not safe for concurrent use;
// the Scheduler serializes every call under its mutex.
type Pool struct {
	runners []*Runner
	byURL   map[string]*Runner
	// retired holds removed runners whose last call is still in flight. Their
	// URL cannot be registered again until that call returns.
	retired map[string]*Runner
	sel     Selector
	nextSeq uint64
}

func newPool(sel Selector) *Pool {
	return &Pool{byURL: make(map[string]*Runner), retired: make(map[string]*Runner), sel: sel}
}

func (p *Pool) add(r *Runner) error {
	if _, ok := p.byURL[r.URL]; ok {
		return runnerExistsError{url: r.URL}
	}
	if _, ok := p.retired[r.URL]; ok {
		return runnerExistsError{url: r.URL}
	}
	p.nextSeq++
	r.seq = p.nextSeq
	p.runners = append(p.runners, r)
	p.byURL[r.URL] = r
	return nil
}

func (p *Pool) remove(url string) *Runner {
	r := p.byURL[url]
	if r == nil {
		return nil
	}
	delete(p.byURL, url)
	for i, x := range p.runners {
		if x == r {
			p.runners = append(p.runners[:i], p.runners[i+1:]...)
			break
		}
	}
	if r.serving {
		p.retired[url] = r
	}
	return r
}

// release forgets a retired runner once its call has returned.
func (p *Pool) release(r *Runner) {
	if !r.serving && p.retired[r.URL] == r {
		delete(p.retired, r.URL)
	}
}

func (p *Pool) get(url string) *Runner { return p.byURL[url] }

// findIdle returns an idle runner chosen by the selection policy, or nil.
func (p *Pool) findIdle() *Runner {
	var idle []*Runner
	for _, r := range p.runners {
		if r.State == StateIdle {
			idle = append(idle, r)
		}
	}
	if len(idle) == 0 {
		return nil
	}
	return p.sel.Select(idle)
}

func (p *Pool) markBusy(r *Runner, now time.Time) {
	r.State = StateBusy
	r.serving = true
	r.LastUsed = now
}

// markIdle ends the current call. A draining or unreachable runner keeps its
// state; only a busy runner becomes idle.
func (p *Pool) markIdle(r *Runner, now time.Time) {
	r.serving = false
	r.LastUsed = now
	if r.State == StateBusy {
		r.State = StateIdle
	}
}

// counts returns the number of runners per state.
func (p *Pool) counts() map[State]int {
	out := make(map[State]int, len(allStates))
	for _, r := range p.runners {
		out[r.State]++
	}
	return out
}

// busy counts runners with a call in flight, including draining runners
// finishing their last request.
func (p *Pool) busy() int {
	n := 0
	for _, r := range p.runners {
		if r.serving {
			n++
		}
	}
	return n
}

func (p *Pool) size() int { return len(p.runners) }

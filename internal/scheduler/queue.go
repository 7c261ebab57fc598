package scheduler

import (
	"container/list"
	"time"
)

// Queue is the bounded FIFO of pending requests waiting for a runner.
// Enqueue never blocks: a full queue refuses the entry.
type Queue struct {
	items    *list.List
	capacity int
}

func newQueue(capacity int) *Queue {
	return &Queue{items: list.New(), capacity: capacity}
}

// Enqueue appends p when there is room and reports whether it was accepted.
func (q *Queue) Enqueue(p *pending, now time.Time) bool {
	if q.items.Len() >= q.capacity {
		return false
	}
	p.enqueuedAt = now
	p.state = pendingQueued
	p.elem = q.items.PushBack(p)
	return true
}

// Dequeue removes and returns the oldest entry, or nil when empty.
func (q *Queue) Dequeue() *pending {
	front := q.items.Front()
	if front == nil {
		return nil
	}
	p := q.items.Remove(front).(*pending)
	p.elem = nil
	return p
}

// Remove takes p out of the queue wherever it sits. It reports false if p
// was not queued.
func (q *Queue) Remove(p *pending) bool {
	if p.elem == nil {
		return false
	}
	q.items.Remove(p.elem)
	p.elem = nil
	return true
}

func (q *Queue) Len() int { return q.items.Len() }
func (q *Queue) Cap() int { return q.capacity }

// Oldest returns the enqueue time of the head entry.
func (q *Queue) Oldest() (time.Time, bool) {
	front := q.items.Front()
	if front == nil {
		return time.Time{}, false
	}
	return front.Value.(*pending).enqueuedAt, true
}

// drain empties the queue and returns its entries in FIFO order.
func (q *Queue) drain() []*pending {
	out := make([]*pending, 0, q.items.Len())
	for p := q.Dequeue(); p != nil; p = q.Dequeue() {
		out = append(out, p)
	}
	return out
}

package watch

import (
	"sync"
	"sync/atomic"
	"time"
)

// queue is the bounded hand-off between a backend callback (single producer)
// and a delivery goroutine (single consumer).
type queue struct {
	items        chan Notification
	overflow     Overflow
	blockTimeout time.Duration
	closed       chan struct{}
	closeOnce    sync.Once
	dropped      atomic.Uint64
}

func newQueue(size int, overflow Overflow, blockTimeout time.Duration) *queue {
	return &queue{
		items:        make(chan Notification, size),
		overflow:     overflow,
		blockTimeout: blockTimeout,
		closed:       make(chan struct{}),
	}
}

// push enqueues n. It reports false when an item was lost, either n itself or
// an older one evicted to make room, and when the queue is closed.
func (q *queue) push(n Notification) bool {
	select {
	case <-q.closed:
		return false
	default:
	}

	select {
	case q.items <- n:
		return true
	default:
	}

	if q.overflow == OverflowBlock {
		timer := time.NewTimer(q.blockTimeout)
		defer timer.Stop()
		select {
		case q.items <- n:
			return true
		case <-timer.C:
		case <-q.closed:
			return false
		}
		q.dropped.Add(1)
		return false
	}

	// Evict the oldest item. The consumer may have taken it already, in
	// which case there is room without losing anything.
	evicted := false
	select {
	case <-q.items:
		evicted = true
		q.dropped.Add(1)
	default:
	}
	select {
	case q.items <- n:
		return !evicted
	default:
		q.dropped.Add(1)
		return false
	}
}

// pop returns the next item, blocking until one arrives or the queue closes.
func (q *queue) pop() (Notification, bool) {
	select {
	case <-q.closed:
		return nil, false
	default:
	}

	select {
	case n := <-q.items:
		return n, true
	case <-q.closed:
		return nil, false
	}
}

// popUntil is pop with a deadline. It reports false on close and returns a
// nil notification when the deadline passes first.
func (q *queue) popUntil(deadline <-chan time.Time) (Notification, bool) {
	select {
	case n := <-q.items:
		return n, true
	case <-deadline:
		return nil, true
	case <-q.closed:
		return nil, false
	}
}

func (q *queue) close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

func (q *queue) len() int { return len(q.items) }

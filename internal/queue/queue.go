// Package queue implements the unbounded, multiple-producer/
// single-consumer signal queue that hands reactive-streams callbacks
// off to the verification driver. Unlike the ambient event bus
// (package events), which drops events under backpressure, this queue
// may never drop a signal: every onNext/onError/onComplete the
// publisher delivers must reach the driver.
package queue

import (
	"sync"
	"time"

	"github.com/soderholm/streamverify/signal"
)

// SignalQueue is a thread-safe FIFO of received signals awaiting
// evaluation against the script. Enqueue is non-blocking; dequeue
// blocks the caller up to an optional deadline.
type SignalQueue[T any] struct {
	mu     sync.Mutex
	items  []signal.Signal[T]
	notify chan struct{}
}

// New creates an empty signal queue.
func New[T any]() *SignalQueue[T] {
	return &SignalQueue[T]{
		notify: make(chan struct{}, 1),
	}
}

// Push enqueues a signal. Safe to call from any producer goroutine
// concurrently with other Push calls and with Pop.
func (q *SignalQueue[T]) Push(s signal.Signal[T]) {
	q.mu.Lock()
	q.items = append(q.items, s)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop blocks until a signal is available or, when hasDeadline is true,
// until deadline passes. It returns ok=false on timeout.
func (q *SignalQueue[T]) Pop(deadline time.Time, hasDeadline bool) (signal.Signal[T], bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			s := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return s, true
		}
		q.mu.Unlock()

		if !hasDeadline {
			<-q.notify
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			var zero signal.Signal[T]
			return zero, false
		}

		timer := time.NewTimer(remaining)
		select {
		case <-q.notify:
			timer.Stop()
			continue
		case <-timer.C:
			var zero signal.Signal[T]
			return zero, false
		}
	}
}

// Len reports the number of signals currently buffered, for tests.
func (q *SignalQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

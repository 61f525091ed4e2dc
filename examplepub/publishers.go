// Package examplepub provides minimal, dependency-free reactive-
// streams publishers used to exercise the scripted verifier in its own
// integration tests and the demo command. They are intentionally
// simple — the publisher abstraction itself is an external collaborator
// the engine does not implement, per the engine's scope.
package examplepub

import (
	"sync"
	"time"

	"github.com/soderholm/streamverify/signal"
	"github.com/soderholm/streamverify/vtime"
)

// FromSlice emits every element of vs, honoring demand, then completes.
// Delivery is synchronous with Request calls on the calling goroutine.
type FromSlice[T any] struct {
	Values []T
}

func (p FromSlice[T]) Subscribe(sub signal.Subscriber[T]) {
	s := &sliceSubscription[T]{values: p.Values, sub: sub}
	sub.OnSubscribe(s)
}

type sliceSubscription[T any] struct {
	mu        sync.Mutex
	values    []T
	sub       signal.Subscriber[T]
	cursor    int
	cancelled bool
	completed bool
}

func (s *sliceSubscription[T]) Request(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.completed {
		return
	}
	for i := uint64(0); i < n && s.cursor < len(s.values); i++ {
		v := s.values[s.cursor]
		s.cursor++
		s.mu.Unlock()
		s.sub.OnNext(v)
		s.mu.Lock()
		if s.cancelled {
			return
		}
	}
	if s.cursor >= len(s.values) && !s.completed {
		s.completed = true
		s.mu.Unlock()
		s.sub.OnComplete()
		s.mu.Lock()
	}
}

func (s *sliceSubscription[T]) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// Delay emits a single value after d has elapsed (real time, or
// virtual time when enabled), then completes.
type Delay[T any] struct {
	D     time.Duration
	Value T
}

func (p Delay[T]) Subscribe(sub signal.Subscriber[T]) {
	s := &delaySubscription[T]{d: p.D, value: p.Value, sub: sub}
	sub.OnSubscribe(s)
}

type delaySubscription[T any] struct {
	mu        sync.Mutex
	d         time.Duration
	value     T
	sub       signal.Subscriber[T]
	requested bool
	cancelled bool
}

func (s *delaySubscription[T]) Request(n uint64) {
	s.mu.Lock()
	if s.requested || s.cancelled || n == 0 {
		s.mu.Unlock()
		return
	}
	s.requested = true
	s.mu.Unlock()

	emit := func() {
		s.mu.Lock()
		cancelled := s.cancelled
		s.mu.Unlock()
		if cancelled {
			return
		}
		s.sub.OnNext(s.value)
		s.sub.OnComplete()
	}

	if vtime.IsEnabled() {
		vtime.Schedule(s.d, emit)
		return
	}
	time.AfterFunc(s.d, emit)
}

func (s *delaySubscription[T]) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// Interval emits values produced by gen every period, starting after
// one period has elapsed, indefinitely until cancelled.
type Interval[T any] struct {
	Period time.Duration
	Gen    func(tick uint64) T
}

func (p Interval[T]) Subscribe(sub signal.Subscriber[T]) {
	s := &intervalSubscription[T]{period: p.Period, gen: p.Gen, sub: sub}
	sub.OnSubscribe(s)
}

type intervalSubscription[T any] struct {
	mu        sync.Mutex
	period    time.Duration
	gen       func(uint64) T
	sub       signal.Subscriber[T]
	tick      uint64
	cancelled bool
	started   bool
}

func (s *intervalSubscription[T]) Request(n uint64) {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	started := s.started
	s.started = true
	s.mu.Unlock()

	if !started {
		s.scheduleNext()
	}
}

func (s *intervalSubscription[T]) scheduleNext() {
	fire := func() {
		s.mu.Lock()
		if s.cancelled {
			s.mu.Unlock()
			return
		}
		tick := s.tick
		s.tick++
		s.mu.Unlock()

		s.sub.OnNext(s.gen(tick))

		s.mu.Lock()
		cancelled := s.cancelled
		s.mu.Unlock()
		if !cancelled {
			s.scheduleNext()
		}
	}

	if vtime.IsEnabled() {
		vtime.Schedule(s.period, fire)
		return
	}
	time.AfterFunc(s.period, fire)
}

func (s *intervalSubscription[T]) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// ErrorAfter emits every element of vs, then signals err instead of
// completing.
type ErrorAfter[T any] struct {
	Values []T
	Err    error
}

func (p ErrorAfter[T]) Subscribe(sub signal.Subscriber[T]) {
	s := &errorAfterSubscription[T]{values: p.Values, err: p.Err, sub: sub}
	sub.OnSubscribe(s)
}

type errorAfterSubscription[T any] struct {
	mu        sync.Mutex
	values    []T
	err       error
	sub       signal.Subscriber[T]
	cursor    int
	cancelled bool
	done      bool
}

func (s *errorAfterSubscription[T]) Request(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.done {
		return
	}
	for i := uint64(0); i < n && s.cursor < len(s.values); i++ {
		v := s.values[s.cursor]
		s.cursor++
		s.mu.Unlock()
		s.sub.OnNext(v)
		s.mu.Lock()
		if s.cancelled {
			return
		}
	}
	if s.cursor >= len(s.values) && !s.done {
		s.done = true
		s.mu.Unlock()
		s.sub.OnError(s.err)
		s.mu.Lock()
	}
}

func (s *errorAfterSubscription[T]) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// Package engine implements the expectation engine: a reactive-streams
// Subscriber that drives a script (package script) against the signals
// a Publisher delivers, accumulating failures and participating in the
// backpressure protocol.
package engine

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/soderholm/streamverify/events"
	"github.com/soderholm/streamverify/internal/queue"
	"github.com/soderholm/streamverify/script"
	"github.com/soderholm/streamverify/signal"
	"github.com/soderholm/streamverify/vtime"
)

type status int

const (
	statusBuilt status = iota
	statusSubscribed
	statusTerminated
)

// Engine is the reactive-streams Subscriber and script driver. It is
// constructed by the builder surface (package streamverify) once a
// terminal step has been supplied, and is wrapped by Verifier for the
// public, built-phase API.
type Engine[T any] struct {
	mu sync.Mutex

	steps         []script.Step
	cursor        int
	demandInitial uint64
	demandOut     uint64
	sub           signal.Subscription
	status        status

	queue    *queue.SignalQueue[T]
	failures []string

	virtualTimeEnabled bool
	clock              *vtime.VirtualClock // non-nil only when caller injects one explicitly

	startTime time.Time
	endTime   time.Time

	verified       bool
	subscribeOnce  sync.Once
	publisherGiven bool
}

// New constructs an Engine for the given script and initial demand.
// virtualTimeEnabled snapshots the global vtime toggle at construction
// time, per the engine-state invariant that a verifier's notion of
// virtual time does not change mid-run even if a later test calls
// vtime.Enable/Disable.
func New[T any](steps []script.Step, initialDemand uint64) *Engine[T] {
	return &Engine[T]{
		steps:              steps,
		demandInitial:      initialDemand,
		queue:              queue.New[T](),
		virtualTimeEnabled: vtime.IsEnabled(),
	}
}

// OnSubscribe implements signal.Subscriber.
func (e *Engine[T]) OnSubscribe(sub signal.Subscription) {
	e.mu.Lock()
	if e.status != statusBuilt {
		e.mu.Unlock()
		e.recordFailure("onSubscribe received more than once")
		sub.Cancel()
		return
	}
	e.sub = sub
	e.status = statusSubscribed
	initial := e.demandInitial
	e.mu.Unlock()

	if initial > 0 {
		e.mu.Lock()
		e.demandOut += initial
		e.mu.Unlock()
		sub.Request(initial)
	}
}

// OnNext implements signal.Subscriber. It never blocks beyond a
// wait-free enqueue.
func (e *Engine[T]) OnNext(v T) {
	e.queue.Push(signal.Next(v))
}

// OnError implements signal.Subscriber.
func (e *Engine[T]) OnError(err error) {
	e.queue.Push(signal.Err[T](err))
}

// OnComplete implements signal.Subscriber.
func (e *Engine[T]) OnComplete() {
	e.queue.Push(signal.Complete[T]())
}

func (e *Engine[T]) recordFailure(msg string) {
	e.mu.Lock()
	e.failures = append(e.failures, msg)
	e.mu.Unlock()
}

func (e *Engine[T]) publish(bus events.Bus, typ events.Type, data any) {
	if bus == nil {
		return
	}
	bus.Publish(events.New(typ, data))
}

// run is the driver loop shared by every Verify* entry point. It
// returns the elapsed wall-clock duration, an *AssertionError if
// failures were recorded, or a *UsageError for a misuse detected
// synchronously.
func (e *Engine[T]) run(hasDeadline bool, deadline time.Time, bus events.Bus) (time.Duration, error) {
	e.mu.Lock()
	if e.verified {
		e.mu.Unlock()
		return 0, &UsageError{Op: "Verify", Reason: "engine has already been verified"}
	}
	e.verified = true
	subscribed := e.status != statusBuilt
	e.mu.Unlock()

	if !subscribed {
		return 0, &UsageError{Op: "Verify", Reason: "not subscribed: pass WithPublisher or subscribe the publisher before Verify"}
	}

	e.startTime = time.Now()
	e.publish(bus, events.TypeVerifyStart, nil)

	for {
		e.mu.Lock()
		terminated := e.status == statusTerminated
		cursor := e.cursor
		total := len(e.steps)
		e.mu.Unlock()

		if terminated || cursor >= total {
			break
		}

		step := e.steps[cursor]

		if script.IsControl(step) {
			if err := e.execControl(step, bus); err != nil {
				e.endTime = time.Now()
				return e.endTime.Sub(e.startTime), err
			}
			e.advanceCursor()
			continue
		}

		timedOut := e.execExpectation(step, hasDeadline, deadline, bus)
		if timedOut {
			break
		}
	}

	e.endTime = time.Now()
	elapsed := e.endTime.Sub(e.startTime)

	e.mu.Lock()
	failures := append([]string(nil), e.failures...)
	e.mu.Unlock()

	e.publish(bus, events.TypeVerifyEnd, map[string]any{"failures": len(failures)})

	if len(failures) > 0 {
		return elapsed, &AssertionError{Failures: failures}
	}
	return elapsed, nil
}

func (e *Engine[T]) advanceCursor() {
	e.mu.Lock()
	e.cursor++
	e.mu.Unlock()
}

func (e *Engine[T]) terminate() {
	e.mu.Lock()
	e.status = statusTerminated
	e.mu.Unlock()
}

// execControl executes a single control step: ThenRequest, ThenCancel,
// ThenRun, or any AdvanceTime* variant. It never dequeues a signal.
func (e *Engine[T]) execControl(step script.Step, bus events.Bus) error {
	switch st := step.(type) {
	case script.ThenRequest:
		if st.N < 1 {
			return &UsageError{Op: "ThenRequest", Reason: "n must be >= 1"}
		}
		e.mu.Lock()
		e.demandOut += st.N
		sub := e.sub
		e.mu.Unlock()
		if sub != nil {
			sub.Request(st.N)
		}
		return nil

	case script.ThenCancel:
		e.mu.Lock()
		sub := e.sub
		e.mu.Unlock()
		if sub != nil {
			sub.Cancel()
		}
		e.terminate()
		e.publish(bus, events.TypeStepMatched, "thenCancel")
		return nil

	case script.ThenRun:
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.recordFailure(fmt.Sprintf("thenRun task panicked: %v", r))
				}
			}()
			if st.Task != nil {
				st.Task()
			}
		}()
		return nil

	case script.AdvanceTimeBy:
		return e.advanceTime(func() ([]error, error) {
			return e.clockAdvanceBy(st.D)
		})

	case script.AdvanceTimeTo:
		return e.advanceTime(func() ([]error, error) {
			return e.clockAdvanceTo(st.T)
		})

	case script.AdvanceTime:
		return e.advanceTime(func() ([]error, error) {
			due, ok := e.clockNextDue()
			if !ok {
				return nil, nil
			}
			return e.clockAdvanceTo(due)
		})

	default:
		return &UsageError{Op: "Verify", Reason: fmt.Sprintf("unrecognized control step %T", step)}
	}
}

func (e *Engine[T]) advanceTime(advance func() ([]error, error)) error {
	if !e.virtualTimeEnabled {
		return &UsageError{Op: "AdvanceTime", Reason: vtime.ErrDisabled.Error()}
	}
	errs, err := advance()
	if err != nil {
		return &UsageError{Op: "AdvanceTime", Reason: err.Error()}
	}
	for _, taskErr := range errs {
		e.recordFailure(taskErr.Error())
	}
	return nil
}

func (e *Engine[T]) clockAdvanceBy(d time.Duration) ([]error, error) {
	if e.clock != nil {
		return e.clock.AdvanceBy(d), nil
	}
	return vtime.AdvanceBy(d)
}

func (e *Engine[T]) clockAdvanceTo(t time.Duration) ([]error, error) {
	if e.clock != nil {
		return e.clock.AdvanceTo(t), nil
	}
	return vtime.AdvanceTo(t)
}

func (e *Engine[T]) clockNextDue() (time.Duration, bool) {
	if e.clock != nil {
		return e.clock.NextDue()
	}
	return vtime.NextDue()
}

// UseClock injects an explicit Clock instead of the global vtime
// singleton, for tests that want isolation from other tests' virtual
// time usage.
func (e *Engine[T]) UseClock(c *vtime.VirtualClock) {
	e.mu.Lock()
	e.clock = c
	e.virtualTimeEnabled = c != nil
	e.mu.Unlock()
}

// execExpectation dequeues one or more signals to satisfy the
// expectation step at the current cursor, reporting whether the
// verification deadline expired while waiting.
func (e *Engine[T]) execExpectation(step script.Step, hasDeadline bool, deadline time.Time, bus events.Bus) (timedOut bool) {
	switch st := step.(type) {
	case script.ExpectNextCount:
		return e.matchCount(st.N, hasDeadline, deadline, bus)

	case script.ExpectNextEqual[T]:
		return e.matchEqual(st, hasDeadline, deadline, bus)

	case script.ExpectNextPredicate[T]:
		return e.matchOne(hasDeadline, deadline, bus, func(v T) (bool, string) {
			if st.Predicate(v) {
				return true, ""
			}
			desc := st.Desc
			if desc == "" {
				desc = "predicate"
			}
			return false, fmt.Sprintf("value %v did not satisfy %s", v, desc)
		})

	case script.ExpectNextConsume[T]:
		return e.matchOne(hasDeadline, deadline, bus, func(v T) (bool, string) {
			if st.Consume == nil {
				return true, ""
			}
			if err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("consumer panicked: %v", r)
					}
				}()
				return st.Consume(v)
			}(); err != nil {
				return false, err.Error()
			}
			return true, ""
		})

	case script.ExpectComplete:
		return e.matchTerminal(hasDeadline, deadline, bus, signal.KindComplete, "complete", nil)

	case script.ExpectError:
		return e.matchError(st, hasDeadline, deadline, bus)

	default:
		e.recordFailure(fmt.Sprintf("unrecognized expectation step %T", step))
		e.advanceCursor()
		return false
	}
}

func (e *Engine[T]) dequeue(hasDeadline bool, deadline time.Time, bus events.Bus) (signal.Signal[T], bool) {
	sig, ok := e.queue.Pop(deadline, hasDeadline)
	if !ok {
		e.recordFailure("verification timed out waiting for a signal")
		e.mu.Lock()
		sub := e.sub
		e.mu.Unlock()
		if sub != nil {
			sub.Cancel()
		}
		e.terminate()
		return sig, false
	}
	e.publish(bus, events.TypeSignalReceived, sig.Kind.String())
	return sig, true
}

// matchCount consumes n Next signals without inspecting their values.
func (e *Engine[T]) matchCount(n uint64, hasDeadline bool, deadline time.Time, bus events.Bus) (timedOut bool) {
	if n == 0 {
		e.advanceCursor()
		return false
	}
	remaining := n
	for remaining > 0 {
		sig, ok := e.dequeue(hasDeadline, deadline, bus)
		if !ok {
			return true
		}
		if sig.Kind == signal.KindNext {
			e.consumeDemand()
			remaining--
			continue
		}
		e.onUnexpectedDuringCompound(remaining, sig, bus)
		e.advanceCursor()
		return false
	}
	e.advanceCursor()
	return false
}

// matchEqual consumes len(Values) Next signals, comparing each in
// order.
func (e *Engine[T]) matchEqual(st script.ExpectNextEqual[T], hasDeadline bool, deadline time.Time, bus events.Bus) (timedOut bool) {
	eq := st.Equal
	if eq == nil {
		eq = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}
	if len(st.Values) == 0 {
		e.advanceCursor()
		return false
	}
	for i, want := range st.Values {
		sig, ok := e.dequeue(hasDeadline, deadline, bus)
		if !ok {
			return true
		}
		if sig.Kind != signal.KindNext {
			remaining := uint64(len(st.Values) - i)
			e.onUnexpectedDuringCompound(remaining, sig, bus)
			e.advanceCursor()
			return false
		}
		e.consumeDemand()
		if !eq(sig.Value, want) {
			e.recordFailure(fmt.Sprintf("expected next value %v but got %v", want, sig.Value))
		}
	}
	e.advanceCursor()
	return false
}

// matchOne consumes exactly one Next signal and applies check to its
// value.
func (e *Engine[T]) matchOne(hasDeadline bool, deadline time.Time, bus events.Bus, check func(T) (bool, string)) (timedOut bool) {
	sig, ok := e.dequeue(hasDeadline, deadline, bus)
	if !ok {
		return true
	}
	if sig.Kind != signal.KindNext {
		e.onUnexpectedDuringCompound(1, sig, bus)
		e.advanceCursor()
		return false
	}
	e.consumeDemand()
	if passed, msg := check(sig.Value); !passed {
		e.recordFailure(msg)
	}
	e.advanceCursor()
	return false
}

// matchTerminal consumes exactly one signal expecting terminal kind
// want ("complete" family). onMatch, when non-nil, is invoked with the
// matched signal (ExpectComplete passes nil).
func (e *Engine[T]) matchTerminal(hasDeadline bool, deadline time.Time, bus events.Bus, want signal.Kind, label string, onMatch func(signal.Signal[T])) (timedOut bool) {
	sig, ok := e.dequeue(hasDeadline, deadline, bus)
	if !ok {
		return true
	}
	if sig.Kind == want {
		if onMatch != nil {
			onMatch(sig)
		}
		e.advanceCursor()
		e.terminate()
		e.publish(bus, events.TypeStepMatched, label)
		return false
	}

	e.recordFailure(fmt.Sprintf("expected %s but got %s", label, describeSignal(sig)))
	e.advanceCursor()
	if sig.Kind == signal.KindComplete || sig.Kind == signal.KindError {
		e.terminate()
	}
	e.publish(bus, events.TypeStepFailed, label)
	return false
}

// matchError consumes one signal expecting onError, classifying it
// according to st.Kind.
func (e *Engine[T]) matchError(st script.ExpectError, hasDeadline bool, deadline time.Time, bus events.Bus) (timedOut bool) {
	return e.matchTerminalWithClassifier(hasDeadline, deadline, bus, st)
}

func (e *Engine[T]) matchTerminalWithClassifier(hasDeadline bool, deadline time.Time, bus events.Bus, st script.ExpectError) (timedOut bool) {
	sig, ok := e.dequeue(hasDeadline, deadline, bus)
	if !ok {
		return true
	}
	if sig.Kind != signal.KindError {
		e.recordFailure(fmt.Sprintf("expected error but got %s", describeSignal(sig)))
		e.advanceCursor()
		if sig.Kind == signal.KindComplete {
			e.terminate()
		}
		e.publish(bus, events.TypeStepFailed, "error")
		return false
	}

	if msg, ok := classifyError(st, sig.Cause); !ok {
		e.recordFailure(msg)
	}

	e.advanceCursor()
	e.terminate()
	e.publish(bus, events.TypeStepMatched, "error")
	return false
}

func classifyError(st script.ExpectError, cause error) (failureMsg string, passed bool) {
	switch st.Kind {
	case script.ErrorAny:
		return "", true

	case script.ErrorOfType:
		if st.Classifier == nil || st.Classifier(cause) {
			return "", true
		}
		return fmt.Sprintf("error %v did not match expected type", cause), false

	case script.ErrorMessage:
		if cause != nil && cause.Error() == st.Message {
			return "", true
		}
		return fmt.Sprintf("expected error message %q but got %q", st.Message, errMsg(cause)), false

	case script.ErrorPredicate:
		if st.Predicate != nil && st.Predicate(cause) {
			return "", true
		}
		return fmt.Sprintf("error %v did not satisfy predicate", cause), false

	case script.ErrorConsume:
		if st.Consume == nil {
			return "", true
		}
		if err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("error consumer panicked: %v", r)
				}
			}()
			return st.Consume(cause)
		}(); err != nil {
			return err.Error(), false
		}
		return "", true

	default:
		return fmt.Sprintf("unrecognized error match kind %v", st.Kind), false
	}
}

func errMsg(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// onUnexpectedDuringCompound records one "missing value" failure for a
// Next-family step that did not receive enough Next signals before a
// non-Next signal arrived, and terminates the run when that signal is
// Complete or Error. The signal is not matched against any later step
// of the script, and later non-terminal steps get no failure of their
// own.
func (e *Engine[T]) onUnexpectedDuringCompound(remaining uint64, sig signal.Signal[T], bus events.Bus) {
	if remaining > 0 {
		e.recordFailure(fmt.Sprintf("missing value: expected %d more next signal(s) but got %s", remaining, describeSignal(sig)))
	}
	if sig.Kind == signal.KindComplete || sig.Kind == signal.KindError {
		e.terminate()
	}
	e.publish(bus, events.TypeStepFailed, "compound-mismatch")
}

func (e *Engine[T]) consumeDemand() {
	e.mu.Lock()
	if e.demandOut > 0 {
		e.demandOut--
	}
	e.mu.Unlock()
}

func describeSignal[T any](sig signal.Signal[T]) string {
	switch sig.Kind {
	case signal.KindNext:
		return fmt.Sprintf("next(%v)", sig.Value)
	case signal.KindError:
		return fmt.Sprintf("error(%v)", sig.Cause)
	case signal.KindComplete:
		return "complete"
	case signal.KindSubscribed:
		return "subscribed"
	default:
		return "unknown signal"
	}
}

// DemandOutstanding reports the current outstanding demand, for tests.
func (e *Engine[T]) DemandOutstanding() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.demandOut
}

// Failures returns a snapshot of the recorded failures, for tests.
func (e *Engine[T]) Failures() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.failures...)
}

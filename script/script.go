// Package script defines the closed set of script step variants the
// expectation engine matches against received signals, and the steps'
// invariants (exactly one terminal step, last in the sequence).
package script

import "time"

// Step is the marker interface implemented by every script step
// variant. The set is closed: the engine type-switches over it rather
// than dispatching through a registry, because every variant is known
// at compile time.
type Step interface {
	isStep()
}

// ExpectNextEqual matches the next len(Values) signals as Next with
// equal payloads, in order. Equal defaults to reflect.DeepEqual when
// nil.
type ExpectNextEqual[T any] struct {
	Values []T
	Equal  func(a, b T) bool
}

func (ExpectNextEqual[T]) isStep() {}

// ExpectNextPredicate matches one Next whose value satisfies Predicate.
type ExpectNextPredicate[T any] struct {
	Predicate func(T) bool
	Desc      string
}

func (ExpectNextPredicate[T]) isStep() {}

// ExpectNextConsume matches one Next and invokes Consume with its
// value. An error returned by Consume is recorded as a script failure
// at this step.
type ExpectNextConsume[T any] struct {
	Consume func(T) error
}

func (ExpectNextConsume[T]) isStep() {}

// ExpectNextCount matches N Next signals without inspecting payloads.
type ExpectNextCount struct {
	N uint64
}

func (ExpectNextCount) isStep() {}

// ExpectComplete matches one Complete signal. Terminal.
type ExpectComplete struct{}

func (ExpectComplete) isStep() {}

// ErrorMatchKind selects how ExpectError classifies an onError signal.
type ErrorMatchKind int

const (
	ErrorAny ErrorMatchKind = iota
	ErrorOfType
	ErrorMessage
	ErrorPredicate
	ErrorConsume
)

// ExpectError matches one Error signal according to Kind. Terminal.
type ExpectError struct {
	Kind       ErrorMatchKind
	Classifier func(error) bool // ErrorOfType
	Message    string           // ErrorMessage
	Predicate  func(error) bool // ErrorPredicate
	Consume    func(error) error // ErrorConsume
}

func (ExpectError) isStep() {}

// ThenRequest adds N to the outstanding demand and forwards request(N)
// to the upstream subscription. N must be >= 1.
type ThenRequest struct {
	N uint64
}

func (ThenRequest) isStep() {}

// ThenCancel cancels the subscription. Terminal; may only be the last
// step of a script.
type ThenCancel struct{}

func (ThenCancel) isStep() {}

// ThenRun executes an opaque side-effecting task on the driver thread.
// A panic raised by Task is recorded as a script failure but does not
// terminate the script.
type ThenRun struct {
	Task func()
}

func (ThenRun) isStep() {}

// AdvanceTimeBy advances the virtual clock by D. Valid only when
// virtual time is enabled.
type AdvanceTimeBy struct {
	D time.Duration
}

func (AdvanceTimeBy) isStep() {}

// AdvanceTimeTo advances the virtual clock to instant T.
type AdvanceTimeTo struct {
	T time.Duration
}

func (AdvanceTimeTo) isStep() {}

// AdvanceTime advances the virtual clock to the earliest future
// scheduled instant.
type AdvanceTime struct{}

func (AdvanceTime) isStep() {}

// IsTerminal reports whether step closes a script.
func IsTerminal(step Step) bool {
	switch step.(type) {
	case ExpectComplete, ExpectError, ThenCancel:
		return true
	default:
		return false
	}
}

// IsControl reports whether step is a control action (no dequeue).
func IsControl(step Step) bool {
	switch step.(type) {
	case ThenRequest, ThenCancel, ThenRun, AdvanceTimeBy, AdvanceTimeTo, AdvanceTime:
		return true
	default:
		return false
	}
}

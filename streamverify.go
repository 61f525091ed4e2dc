// Package streamverify is the builder surface for the scripted
// reactive-streams verifier: construct a script with a fluent,
// two-phase builder, then subscribe it to a publisher and verify that
// the publisher's signals match the script exactly.
//
// Example:
//
//	verifier := streamverify.Create[string]().
//		ExpectNext("foo", "bar").
//		ExpectComplete()
//	_, err := verifier.Verify(streamverify.WithPublisher[string](pub))
package streamverify

import (
	"math"
	"time"

	"github.com/soderholm/streamverify/engine"
	"github.com/soderholm/streamverify/events"
	"github.com/soderholm/streamverify/script"
	"github.com/soderholm/streamverify/signal"
)

// Re-exported for ergonomic access from the root package, keeping each
// import's concern in one place.
type (
	UsageError          = engine.UsageError
	AssertionError      = engine.AssertionError
	Verifier[T any]     = engine.Verifier[T]
	VerifyOption[T any] = engine.VerifyOption[T]
)

// WithPublisher subscribes the verifier to publisher before running,
// equivalent to the two-argument verify(publisher) overload.
func WithPublisher[T any](publisher signal.Publisher[T]) VerifyOption[T] {
	return engine.WithPublisher(publisher)
}

// WithTimeout bounds the verification run.
func WithTimeout[T any](d time.Duration) VerifyOption[T] {
	return engine.WithTimeout[T](d)
}

// WithEvents attaches a diagnostics bus for observing engine internals
// during a run.
func WithEvents[T any](bus events.Bus) VerifyOption[T] {
	return engine.WithEvents[T](bus)
}

// SequenceBuilder accumulates script steps. Every method returns
// *SequenceBuilder so calls can be chained; the terminal methods
// (ExpectComplete, ExpectError*, ThenCancel) return a *Verifier
// instead, which exposes only Verify and Engine — so once a script is built,
// the compiler itself refuses to let the caller append another step.
type SequenceBuilder[T any] struct {
	steps         []script.Step
	initialDemand uint64
}

// Create starts a script that requests an effectively unbounded amount
// of values on subscribe.
func Create[T any]() *SequenceBuilder[T] {
	return CreateN[T](math.MaxInt64)
}

// CreateN starts a script that requests n values on subscribe.
func CreateN[T any](n uint64) *SequenceBuilder[T] {
	return &SequenceBuilder[T]{initialDemand: n}
}

func (b *SequenceBuilder[T]) add(step script.Step) *SequenceBuilder[T] {
	b.steps = append(b.steps, step)
	return b
}

// ExpectNext matches the next len(vs) signals as Next with equal
// payloads, in order, using reflect.DeepEqual.
func (b *SequenceBuilder[T]) ExpectNext(vs ...T) *SequenceBuilder[T] {
	return b.add(script.ExpectNextEqual[T]{Values: vs})
}

// ExpectNextEqual is like ExpectNext but with a caller-supplied
// equality function.
func (b *SequenceBuilder[T]) ExpectNextEqual(equal func(a, b T) bool, vs ...T) *SequenceBuilder[T] {
	return b.add(script.ExpectNextEqual[T]{Values: vs, Equal: equal})
}

// ExpectNextMatches matches one Next whose value satisfies predicate.
func (b *SequenceBuilder[T]) ExpectNextMatches(predicate func(T) bool) *SequenceBuilder[T] {
	return b.add(script.ExpectNextPredicate[T]{Predicate: predicate})
}

// ConsumeNextWith matches one Next and invokes consume with its value.
// An error returned by consume is recorded as a failure at this step.
func (b *SequenceBuilder[T]) ConsumeNextWith(consume func(T) error) *SequenceBuilder[T] {
	return b.add(script.ExpectNextConsume[T]{Consume: consume})
}

// ExpectNextCount matches n Next signals without inspecting payloads.
func (b *SequenceBuilder[T]) ExpectNextCount(n uint64) *SequenceBuilder[T] {
	return b.add(script.ExpectNextCount{N: n})
}

// ThenRequest adds n to the outstanding demand. n must be >= 1.
func (b *SequenceBuilder[T]) ThenRequest(n uint64) *SequenceBuilder[T] {
	return b.add(script.ThenRequest{N: n})
}

// ThenRun executes an opaque side-effecting task on the driver thread.
func (b *SequenceBuilder[T]) ThenRun(task func()) *SequenceBuilder[T] {
	return b.add(script.ThenRun{Task: task})
}

// AdvanceTimeBy advances the virtual clock by d. Valid only when
// virtual time is enabled.
func (b *SequenceBuilder[T]) AdvanceTimeBy(d time.Duration) *SequenceBuilder[T] {
	return b.add(script.AdvanceTimeBy{D: d})
}

// AdvanceTimeTo advances the virtual clock to the instant t.
func (b *SequenceBuilder[T]) AdvanceTimeTo(t time.Duration) *SequenceBuilder[T] {
	return b.add(script.AdvanceTimeTo{T: t})
}

// AdvanceTime advances the virtual clock to the earliest future
// scheduled instant.
func (b *SequenceBuilder[T]) AdvanceTime() *SequenceBuilder[T] {
	return b.add(script.AdvanceTime{})
}

// ThenCancel closes the script by cancelling the subscription.
func (b *SequenceBuilder[T]) ThenCancel() *Verifier[T] {
	return b.build(script.ThenCancel{})
}

// ExpectComplete closes the script, matching one Complete signal.
func (b *SequenceBuilder[T]) ExpectComplete() *Verifier[T] {
	return b.build(script.ExpectComplete{})
}

// ExpectErrorAny closes the script, matching any Error signal.
func (b *SequenceBuilder[T]) ExpectErrorAny() *Verifier[T] {
	return b.build(script.ExpectError{Kind: script.ErrorAny})
}

// ExpectErrorOfType closes the script, matching an Error whose cause
// satisfies classifier.
func (b *SequenceBuilder[T]) ExpectErrorOfType(classifier func(error) bool) *Verifier[T] {
	return b.build(script.ExpectError{Kind: script.ErrorOfType, Classifier: classifier})
}

// ExpectErrorMessage closes the script, matching an Error whose cause
// has exactly the given message.
func (b *SequenceBuilder[T]) ExpectErrorMessage(msg string) *Verifier[T] {
	return b.build(script.ExpectError{Kind: script.ErrorMessage, Message: msg})
}

// ExpectErrorWith closes the script, matching an Error whose cause
// satisfies predicate.
func (b *SequenceBuilder[T]) ExpectErrorWith(predicate func(error) bool) *Verifier[T] {
	return b.build(script.ExpectError{Kind: script.ErrorPredicate, Predicate: predicate})
}

// ConsumeErrorWith closes the script, invoking consume with the
// Error's cause. An error returned by consume is recorded as a
// failure at this step.
func (b *SequenceBuilder[T]) ConsumeErrorWith(consume func(error) error) *Verifier[T] {
	return b.build(script.ExpectError{Kind: script.ErrorConsume, Consume: consume})
}

func (b *SequenceBuilder[T]) build(terminal script.Step) *Verifier[T] {
	steps := append(append([]script.Step(nil), b.steps...), terminal)
	e := engine.New[T](steps, b.initialDemand)
	return engine.NewVerifier(e)
}

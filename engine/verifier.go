package engine

import (
	"time"

	"github.com/soderholm/streamverify/events"
	"github.com/soderholm/streamverify/signal"
)

// Verifier is the built-phase handle returned by the builder surface
// once a terminal step has been supplied. It exposes Verify and the
// underlying subscriber (Engine), and no way to add further steps, per
// the two-phase builder design.
type Verifier[T any] struct {
	engine *Engine[T]
}

// NewVerifier wraps an already-constructed Engine for the public API.
func NewVerifier[T any](e *Engine[T]) *Verifier[T] {
	return &Verifier[T]{engine: e}
}

// config holds the options accumulated by VerifyOption values.
type config[T any] struct {
	publisher  signal.Publisher[T]
	timeout    time.Duration
	hasTimeout bool
	bus        events.Bus
}

// VerifyOption configures a single Verify call, following the same
// functional-option shape used throughout this module's ambient stack.
type VerifyOption[T any] func(*config[T])

// WithPublisher subscribes the verifier to publisher before running
// the driver loop, equivalent to the two-argument verify(publisher)
// overload.
func WithPublisher[T any](publisher signal.Publisher[T]) VerifyOption[T] {
	return func(c *config[T]) {
		c.publisher = publisher
	}
}

// WithTimeout bounds the verification run; on expiry a timeout failure
// is recorded and the subscription is cancelled.
func WithTimeout[T any](d time.Duration) VerifyOption[T] {
	return func(c *config[T]) {
		c.timeout = d
		c.hasTimeout = true
	}
}

// WithEvents attaches a diagnostics bus the engine publishes
// signal/step lifecycle events to. Optional; defaults to no-op.
func WithEvents[T any](bus events.Bus) VerifyOption[T] {
	return func(c *config[T]) {
		c.bus = bus
	}
}

// Verify runs the engine to terminal state and returns the elapsed
// wall-clock duration, or an error: *UsageError for misuse (raised
// synchronously, never aggregated) or *AssertionError aggregating every
// recorded script failure.
func (v *Verifier[T]) Verify(opts ...VerifyOption[T]) (time.Duration, error) {
	var cfg config[T]
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.publisher != nil {
		v.engine.mu.Lock()
		alreadySubscribed := v.engine.status != statusBuilt
		v.engine.mu.Unlock()
		if alreadySubscribed {
			return 0, &UsageError{Op: "VerifySubscribe", Reason: "engine is already subscribed to a publisher"}
		}
		cfg.publisher.Subscribe(v.engine)
	}

	var deadline time.Time
	if cfg.hasTimeout {
		deadline = time.Now().Add(cfg.timeout)
	}

	return v.engine.run(cfg.hasTimeout, deadline, cfg.bus)
}

// Engine exposes the underlying Subscriber so callers can subscribe it
// to a publisher themselves ahead of calling Verify with no
// WithPublisher option.
func (v *Verifier[T]) Engine() signal.Subscriber[T] {
	return v.engine
}

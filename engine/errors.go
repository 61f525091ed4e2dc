package engine

import (
	"fmt"
	"strings"
)

// UsageError reports misuse of the engine: double subscription, double
// verification, verifying without a subscription, or an invalid
// virtual-time action. It is raised synchronously and is never folded
// into an AssertionError.
type UsageError struct {
	Op     string
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// AssertionError aggregates every script failure recorded during a
// verification run. Its message format is part of the observable
// contract: callers match on the "Expectation failure(s):" prefix.
type AssertionError struct {
	Failures []string
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	b.WriteString("Expectation failure(s):")
	for _, f := range e.Failures {
		b.WriteString("\n - ")
		b.WriteString(f)
	}
	return b.String()
}

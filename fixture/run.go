package fixture

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soderholm/streamverify"
	"github.com/soderholm/streamverify/events"
	"github.com/soderholm/streamverify/examplepub"
)

// Run builds the publisher and script described by s and verifies the
// outcome against s.Expect, returning a description of any mismatch
// between the expected and actual outcome (empty string means match).
// defaults supplies the initial demand and timeout a scenario doesn't
// set for itself. bus, when non-nil, receives the run's diagnostic
// events.
func Run(s Scenario, defaults streamverify.Defaults, bus events.Bus) (string, error) {
	demand := s.InitialDemand
	if demand == 0 {
		demand = defaults.InitialDemand
	}
	builder := streamverify.CreateN[string](demand)
	for _, v := range s.Emit {
		builder = builder.ExpectNext(v)
	}

	timeout := defaults.Timeout()
	if s.TimeoutMillis > 0 {
		timeout = time.Duration(s.TimeoutMillis) * time.Millisecond
	}

	var verifier *streamverify.Verifier[string]
	var opts []streamverify.VerifyOption[string]
	if timeout > 0 {
		opts = append(opts, streamverify.WithTimeout[string](timeout))
	}
	if bus != nil {
		opts = append(opts, streamverify.WithEvents[string](bus))
	}

	if s.ErrorMessage != "" {
		verifier = builder.ExpectErrorMessage(s.ErrorMessage)
		opts = append(opts, streamverify.WithPublisher[string](examplepub.ErrorAfter[string]{
			Values: s.Emit,
			Err:    errors.New(s.ErrorMessage),
		}))
	} else {
		verifier = builder.ExpectComplete()
		opts = append(opts, streamverify.WithPublisher[string](examplepub.FromSlice[string]{Values: s.Emit}))
	}

	_, err := verifier.Verify(opts...)

	switch {
	case s.Expect.WantSuccess && err != nil:
		return fmt.Sprintf("scenario %q: expected success, got error: %v", s.Name, err), nil
	case !s.Expect.WantSuccess && err == nil:
		return fmt.Sprintf("scenario %q: expected failure, verification succeeded", s.Name), nil
	case !s.Expect.WantSuccess && err != nil:
		if s.Expect.WantFailureContains != "" && !strings.Contains(err.Error(), s.Expect.WantFailureContains) {
			return fmt.Sprintf("scenario %q: expected failure containing %q, got %q", s.Name, s.Expect.WantFailureContains, err.Error()), nil
		}
	}
	return "", nil
}

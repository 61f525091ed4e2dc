package streamverify_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/soderholm/streamverify"
	"github.com/soderholm/streamverify/examplepub"
	"github.com/soderholm/streamverify/vtime"
)

type illegalArgumentError struct{ msg string }

func (e illegalArgumentError) Error() string { return e.msg }

type illegalStateError struct{ msg string }

func (e illegalStateError) Error() string { return e.msg }

func isIllegalState(err error) bool {
	var ise illegalStateError
	return errors.As(err, &ise)
}

func TestScenario1_SimpleCompletion(t *testing.T) {
	verifier := streamverify.Create[string]().
		ExpectNext("foo").
		ExpectNext("bar").
		ExpectComplete()

	_, err := verifier.Verify(streamverify.WithPublisher[string](
		examplepub.FromSlice[string]{Values: []string{"foo", "bar"}},
	))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestScenario2_MismatchIsAggregatedFailure(t *testing.T) {
	verifier := streamverify.Create[string]().
		ExpectNext("foo").
		ExpectNext("baz").
		ExpectComplete()

	_, err := verifier.Verify(streamverify.WithPublisher[string](
		examplepub.FromSlice[string]{Values: []string{"foo", "bar"}},
	))
	var ae *streamverify.AssertionError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AssertionError, got %v (%T)", err, err)
	}
	if !strings.Contains(err.Error(), "baz") || !strings.Contains(err.Error(), "bar") {
		t.Fatalf("error %q does not mention both baz and bar", err.Error())
	}
}

func TestScenario3_StagedDemandOverOneMillionValues(t *testing.T) {
	const total = 1_000_001
	values := make([]int, total)
	for i := range values {
		values[i] = i
	}

	verifier := streamverify.CreateN[int](0).
		ThenRequest(100_000).
		ExpectNextCount(100_000).
		ThenRequest(500_000).
		ExpectNextCount(500_000).
		ThenRequest(500_000).
		ExpectNextCount(400_001).
		ExpectComplete()

	_, err := verifier.Verify(streamverify.WithPublisher[int](
		examplepub.FromSlice[int]{Values: values},
	))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestScenario4_ErrorMessageAndClassifier(t *testing.T) {
	t.Run("expectErrorMessage succeeds", func(t *testing.T) {
		verifier := streamverify.Create[string]().
			ExpectNext("foo").
			ExpectErrorMessage("msg")

		_, err := verifier.Verify(streamverify.WithPublisher[string](
			examplepub.ErrorAfter[string]{Values: []string{"foo"}, Err: illegalArgumentError{msg: "msg"}},
		))
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
	})

	t.Run("expectErrorWith wrong classifier fails", func(t *testing.T) {
		verifier := streamverify.Create[string]().
			ExpectNext("foo").
			ExpectErrorWith(isIllegalState)

		_, err := verifier.Verify(streamverify.WithPublisher[string](
			examplepub.ErrorAfter[string]{Values: []string{"foo"}, Err: illegalArgumentError{msg: "msg"}},
		))
		var ae *streamverify.AssertionError
		if !errors.As(err, &ae) {
			t.Fatalf("expected *AssertionError, got %v (%T)", err, err)
		}
	})
}

func TestScenario5_VirtualTimeSkipsDelay(t *testing.T) {
	vtime.Disable()
	vtime.Enable(false)
	defer vtime.Disable()

	verifier := streamverify.Create[string]().
		AdvanceTimeBy(3 * 24 * time.Hour).
		ExpectNext("foo").
		ExpectComplete()

	start := time.Now()
	elapsed, err := verifier.Verify(streamverify.WithPublisher[string](
		examplepub.Delay[string]{D: 2 * 24 * time.Hour, Value: "foo"},
	))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if wall := time.Since(start); wall > time.Second {
		t.Fatalf("wall-clock time %v should be small under virtual time", wall)
	}
	if elapsed > time.Second {
		t.Fatalf("reported elapsed duration %v should be small under virtual time", elapsed)
	}
}

func TestScenario6_VirtualTimeInterval(t *testing.T) {
	vtime.Disable()
	vtime.Enable(false)
	defer vtime.Disable()

	tickLabel := func(tick uint64) string {
		return "t" + itoa(tick)
	}

	verifier := streamverify.Create[string]().
		AdvanceTimeBy(3 * time.Second).
		ExpectNext("t0").
		AdvanceTimeBy(3 * time.Second).
		ExpectNext("t1").
		AdvanceTimeBy(3 * time.Second).
		ExpectNext("t2").
		ThenCancel()

	_, err := verifier.Verify(streamverify.WithPublisher[string](
		examplepub.Interval[string]{Period: 3 * time.Second, Gen: tickLabel},
	))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestScenario7_TimeoutBeforeSecondTick(t *testing.T) {
	verifier := streamverify.Create[string]().
		ExpectNext("foo").
		ExpectNext("foo").
		ExpectComplete()

	_, err := verifier.Verify(
		streamverify.WithPublisher[string](examplepub.Interval[string]{
			Period: 200 * time.Millisecond,
			Gen:    func(uint64) string { return "foo" },
		}),
		streamverify.WithTimeout[string](300*time.Millisecond),
	)
	var ae *streamverify.AssertionError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AssertionError (timeout), got %v (%T)", err, err)
	}
}

func TestScenario8_VerifyWithoutSubscriptionIsUsageError(t *testing.T) {
	verifier := streamverify.Create[string]().ExpectComplete()

	_, err := verifier.Verify(streamverify.WithTimeout[string](100 * time.Millisecond))
	var ue *streamverify.UsageError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UsageError, got %v (%T)", err, err)
	}
}

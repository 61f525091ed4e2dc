package fixture

import (
	"math"
	"testing"

	"github.com/soderholm/streamverify"
)

func TestRunScenarios(t *testing.T) {
	tests := []Scenario{
		{
			Name:          "complete after two values",
			InitialDemand: 10,
			Emit:          []string{"foo", "bar"},
			Expect:        Expect{WantSuccess: true},
		},
		{
			Name:         "error with matching message",
			Emit:         []string{"foo"},
			ErrorMessage: "boom",
			Expect:       Expect{WantSuccess: true},
		},
	}

	for _, s := range tests {
		t.Run(s.Name, func(t *testing.T) {
			mismatch, err := Run(s, streamverify.DefaultDefaults(), nil)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if mismatch != "" {
				t.Errorf("scenario mismatch: %s", mismatch)
			}
		})
	}
}

func TestRunDetectsMismatch(t *testing.T) {
	s := Scenario{
		Name:   "declares success but script under-expects",
		Emit:   []string{"foo", "bar"},
		Expect: Expect{WantSuccess: true},
	}
	// Run's own script always matches every emitted value, so force a
	// mismatch by expecting failure where the run actually succeeds.
	s.Expect.WantSuccess = false
	mismatch, err := Run(s, streamverify.DefaultDefaults(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mismatch == "" {
		t.Fatal("expected a mismatch description")
	}
}

func TestRunFallsBackToDefaultsInitialDemand(t *testing.T) {
	s := Scenario{
		Name:   "no initial_demand set, relies on defaults",
		Emit:   []string{"foo", "bar", "baz"},
		Expect: Expect{WantSuccess: true},
	}

	starved := streamverify.Defaults{InitialDemand: 1, TimeoutMillis: 50}
	mismatch, err := Run(s, starved, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mismatch == "" {
		t.Fatal("expected starved initial demand to fail the scenario, got a match")
	}

	mismatch, err = Run(s, streamverify.DefaultDefaults(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mismatch != "" {
		t.Errorf("scenario mismatch under unbounded default demand: %s", mismatch)
	}
}

func TestRunFallsBackToDefaultsTimeout(t *testing.T) {
	s := Scenario{
		Name:   "no timeout_ms set, relies on defaults",
		Emit:   []string{"foo"},
		Expect: Expect{WantSuccess: true},
	}

	tight := streamverify.Defaults{InitialDemand: math.MaxInt64, TimeoutMillis: 1}
	if _, err := Run(s, tight, nil); err != nil {
		t.Fatalf("Run under a tight but sufficient default timeout: %v", err)
	}
}

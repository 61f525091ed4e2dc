package streamverify

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults holds the baseline timeout and initial demand a caller
// wants applied across a suite of verifications, loadable from a YAML
// file.
type Defaults struct {
	TimeoutMillis int    `yaml:"timeout_ms"`
	InitialDemand uint64 `yaml:"initial_demand"`
}

// DefaultDefaults returns the baseline used when no YAML file is
// present: no timeout, unbounded initial demand.
func DefaultDefaults() Defaults {
	return Defaults{
		TimeoutMillis: 0,
		InitialDemand: math.MaxInt64,
	}
}

// LoadDefaults reads and parses a Defaults YAML file. A missing file
// is not an error; it yields DefaultDefaults().
func LoadDefaults(path string) (Defaults, error) {
	d := DefaultDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return d, fmt.Errorf("read defaults %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("parse defaults %s: %w", path, err)
	}
	return d, nil
}

// Timeout returns d.TimeoutMillis as a time.Duration, zero when unset.
func (d Defaults) Timeout() time.Duration {
	return time.Duration(d.TimeoutMillis) * time.Millisecond
}

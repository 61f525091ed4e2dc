// Package fixture loads table-driven verification scenarios from YAML
// documents, scoped to string-valued scripts: a scenario names the
// values a fake publisher emits and the script the verifier expects it
// to produce. This is test tooling only — the engine itself reads no
// YAML at runtime.
package fixture

// Scenario is one data-driven verification scenario.
type Scenario struct {
	Name          string   `yaml:"name"`
	InitialDemand uint64   `yaml:"initial_demand"`
	Emit          []string `yaml:"emit"`
	ErrorMessage  string   `yaml:"error_message"` // when set, the publisher errors after Emit instead of completing
	Expect        Expect   `yaml:"expect"`
	TimeoutMillis int      `yaml:"timeout_ms"`
}

// Expect describes the terminal outcome a Scenario's script should
// produce: either a clean match (WantSuccess) or a failure whose
// message contains WantFailureContains.
type Expect struct {
	WantSuccess         bool   `yaml:"want_success"`
	WantFailureContains string `yaml:"want_failure_contains"`
}

// File is the top-level YAML document: a named list of scenarios.
type File struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

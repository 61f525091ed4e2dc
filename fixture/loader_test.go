package fixture

import "testing"

func TestParse(t *testing.T) {
	doc := []byte(`
scenarios:
  - name: simple complete
    initial_demand: 10
    emit: ["a", "b"]
    expect:
      want_success: true
  - name: error after values
    emit: ["a"]
    error_message: boom
    expect:
      want_success: false
      want_failure_contains: boom
`)

	f, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Scenarios) != 2 {
		t.Fatalf("got %d scenarios, want 2", len(f.Scenarios))
	}
	if f.Scenarios[0].Name != "simple complete" {
		t.Errorf("Scenarios[0].Name = %q", f.Scenarios[0].Name)
	}
	if f.Scenarios[0].InitialDemand != 10 {
		t.Errorf("Scenarios[0].InitialDemand = %d, want 10", f.Scenarios[0].InitialDemand)
	}
	if f.Scenarios[1].Expect.WantSuccess {
		t.Errorf("Scenarios[1].Expect.WantSuccess = true, want false")
	}
}

func TestParseRequiresName(t *testing.T) {
	_, err := Parse([]byte(`scenarios:
  - emit: ["a"]
`))
	if err == nil {
		t.Fatal("expected error for scenario missing name")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/to/fixture.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

package fixture

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML fixture file from path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read fixture %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a YAML fixture document.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse fixture: %w", err)
	}
	for i, s := range f.Scenarios {
		if s.Name == "" {
			return File{}, fmt.Errorf("scenario %d: name is required", i)
		}
	}
	return f, nil
}

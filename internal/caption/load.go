package caption

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	yaml "go.yaml.in/yaml/v3"

	"tgrelay/internal/config"
)

// ErrNotObject is returned when a record document is not a mapping.
var ErrNotObject = errors.New("race record must be an object")

// Load reads a record file. Files ending in .yaml/.yml are YAML, anything
// else is JSON.
func Load(path string) (*RaceResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Parse(b, config.IsYAMLPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a JSON (or YAML) record.
func Parse(data []byte, isYAML bool) (*RaceResult, error) {
	var v any
	if isYAML {
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("yaml: %w", err)
		}
		v = config.NormalizeYAML(v)
	} else {
		// Integers keep their literal; floats are rendered by floatText.
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return FromMap(m), nil
}

package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// IsYAMLPath reports whether path names a YAML document by extension.
func IsYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// coerceToJSONBytes turns a YAML document into JSON so both formats go
// through the same strict decoder. It returns the detected format name.
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	if !IsYAMLPath(path) {
		return data, "json", nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
	}
	j, err := json.Marshal(NormalizeYAML(v))
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, "yaml", nil
}

// NormalizeYAML rewrites map keys to strings so the tree can be handled
// like decoded JSON.
func NormalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = NormalizeYAML(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = NormalizeYAML(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = NormalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}

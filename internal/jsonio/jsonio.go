// Package jsonio holds the JSON file conventions shared by every component
// that persists dump artifacts: two-space indent, trailing newline, parent
// directories created on demand.
package jsonio

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// WriteFile marshals v and writes it to path, creating parent directories.
func WriteFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile reads path and unmarshals it into v.
func ReadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

package endpoint

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lcu-tools/lcudump/internal/jsonio"
)

// IndexFile is the canonical name of the discovered-endpoint index written at
// the root of every dump directory.
const IndexFile = "endpoints_index.json"

// ReadIndex loads an endpoint index file (endpoints_index.json or a pruned
// variant). Entries without a path are dropped; methods default to GET.
func ReadIndex(path string) ([]Endpoint, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []struct {
		Method string `json:"method"`
		Path   string `json:"path"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("endpoint index %s: %w", path, err)
	}
	eps := make([]Endpoint, 0, len(entries))
	for _, e := range entries {
		if e.Path == "" {
			continue
		}
		method := e.Method
		if method == "" {
			method = "GET"
		}
		eps = append(eps, New(method, e.Path))
	}
	return eps, nil
}

// WriteIndex persists endpoints as a JSON array of {method, path} objects.
func WriteIndex(path string, eps []Endpoint) error {
	return jsonio.WriteFile(path, eps)
}

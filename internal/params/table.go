// Package params supplies parameter values for templated paths: tables loaded
// from user files, candidate pools mined from earlier dumps, and the
// combinatorial expansion that turns pools into tables.
package params

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// Set assigns a scalar value to every placeholder of one path template.
type Set map[string]any

// Table maps a path template to the parameter sets it should be rendered with.
type Table map[string][]Set

// LoadTable reads a parameter file, JSON by default or YAML for .yaml/.yml
// extensions. The file must be an object mapping path templates to arrays of
// flat objects; anything else is a configuration error.
func LoadTable(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("params file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("params file %s: %w", path, err)
		}
	}

	table := make(Table, len(data))
	for template, v := range data {
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("params file %s: entry %q must be an array of objects", path, template)
		}
		sets := make([]Set, 0, len(list))
		for _, item := range list {
			obj, ok := normalizeObject(item)
			if !ok {
				return nil, fmt.Errorf("params file %s: entry %q contains a non-object element", path, template)
			}
			sets = append(sets, obj)
		}
		table[template] = sets
	}
	return table, nil
}

// normalizeObject accepts the map shapes the JSON and YAML decoders produce.
func normalizeObject(v any) (Set, bool) {
	switch t := v.(type) {
	case map[string]any:
		return Set(t), true
	case map[any]any:
		out := make(Set, len(t))
		for k, val := range t {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// Merge folds auto-generated sets into a user table. User entries keep
// precedence; auto sets are appended only when no exact duplicate exists.
func Merge(user, auto Table) Table {
	if user == nil {
		user = make(Table, len(auto))
	}
	for template, sets := range auto {
		existing := user[template]
		for _, set := range sets {
			if containsSet(existing, set) {
				continue
			}
			existing = append(existing, set)
		}
		user[template] = existing
	}
	return user
}

func containsSet(sets []Set, candidate Set) bool {
	for _, s := range sets {
		if reflect.DeepEqual(map[string]any(s), map[string]any(candidate)) {
			return true
		}
	}
	return false
}

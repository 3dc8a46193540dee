// Package analyzer walks a completed dump tree after the fact: it tallies
// response statuses, reconstructs (method, path) pairs from the file layout,
// and writes pruned indexes plus auto-generated parameter tables for the
// next run.
package analyzer

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lcu-tools/lcudump/internal/jsonio"
	"github.com/lcu-tools/lcudump/internal/params"
	"github.com/lcu-tools/lcudump/internal/runner"
	"github.com/lcu-tools/lcudump/pkg/endpoint"
)

const (
	// ActiveIndexFile lists endpoints whose final status was 2xx/3xx.
	ActiveIndexFile = "active_endpoints_index.json"
	// NotFoundFile lists endpoints that answered exactly 404.
	NotFoundFile = "not_found_endpoints.json"
	// AutoParamsFile is the mined parameter table for templated paths.
	AutoParamsFile = "params.autogen.json"
)

// invalidBucket tallies metadata files that could not be parsed.
const invalidBucket = "invalid"

// Classified groups endpoints reconstructed from the dump layout by their
// final recorded status.
type Classified struct {
	Active   []endpoint.Endpoint
	NotFound []endpoint.Endpoint
}

// Statuses tallies every metadata file under dir by status code string.
func Statuses(dir string) (map[string]int, error) {
	counts := make(map[string]int)
	err := walkMetaFiles(dir, func(_ string, meta *runner.Meta) {
		if meta == nil {
			counts[invalidBucket]++
			return
		}
		counts[strconv.Itoa(meta.StatusCode)]++
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Classify reconstructs (method, path) pairs purely from the on-disk layout
// and buckets them by final status. Files whose location does not fit either
// layout are skipped.
func Classify(dir string) (Classified, error) {
	var cls Classified
	err := walkMetaFiles(dir, func(metaPath string, meta *runner.Meta) {
		if meta == nil {
			return
		}
		ep, ok := reconstruct(dir, metaPath)
		if !ok {
			return
		}
		switch {
		case meta.StatusCode >= 200 && meta.StatusCode < 400:
			cls.Active = append(cls.Active, ep)
		case meta.StatusCode == 404:
			cls.NotFound = append(cls.NotFound, ep)
		}
	})
	if err != nil {
		return Classified{}, err
	}
	return cls, nil
}

// Summarize runs the status tally and the candidate miner in one pass over
// the dump directory.
func Summarize(dir string) (map[string]int, params.Pool, error) {
	statuses, err := Statuses(dir)
	if err != nil {
		return nil, nil, err
	}
	pool, err := params.Mine(dir)
	if err != nil {
		return nil, nil, err
	}
	return statuses, pool, nil
}

// WriteOutputs persists the analysis artifacts into the dump root: the active
// index always, the not-found index and auto-param table only when non-empty.
// When eps is nil the endpoint index stored in the dump is used for parameter
// expansion, if present.
func WriteOutputs(dir string, cls Classified, pool params.Pool, eps []endpoint.Endpoint, limit int, mode params.Mode) error {
	if eps == nil {
		if loaded, err := endpoint.ReadIndex(filepath.Join(dir, endpoint.IndexFile)); err == nil {
			eps = loaded
		}
	}

	active := endpoint.Dedupe(cls.Active)
	endpoint.Sort(active)
	if err := jsonio.WriteFile(filepath.Join(dir, ActiveIndexFile), active); err != nil {
		return err
	}

	if len(cls.NotFound) > 0 {
		notFound := endpoint.Dedupe(cls.NotFound)
		endpoint.Sort(notFound)
		if err := jsonio.WriteFile(filepath.Join(dir, NotFoundFile), notFound); err != nil {
			return err
		}
	}

	if table := params.Expand(eps, pool, limit, mode); len(table) > 0 {
		if err := jsonio.WriteFile(filepath.Join(dir, AutoParamsFile), table); err != nil {
			return err
		}
	}
	return nil
}

// walkMetaFiles visits every metadata file under dir. A file that exists but
// does not parse is reported with a nil meta.
func walkMetaFiles(dir string, visit func(path string, meta *runner.Meta)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		name := strings.ToLower(d.Name())
		if name != "meta.json" && !strings.HasSuffix(name, ".meta.json") {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			visit(path, nil)
			return nil
		}
		var meta runner.Meta
		if err := json.Unmarshal(raw, &meta); err != nil {
			visit(path, nil)
			return nil
		}
		visit(path, &meta)
		return nil
	})
}

// reconstruct derives the endpoint from a metadata file location. The first
// segment under the dump root is the method; flat layout encodes the leaf in
// the filename, per-item layout in the parent directory name. Paths with too
// few segments do not fit either layout.
func reconstruct(root, metaPath string) (endpoint.Endpoint, bool) {
	rel, err := filepath.Rel(root, metaPath)
	if err != nil {
		return endpoint.Endpoint{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 {
		return endpoint.Endpoint{}, false
	}
	method := parts[0]
	file := parts[len(parts)-1]
	mid := parts[1 : len(parts)-1]

	switch {
	case file == "meta.json":
		// Per-item layout: the leaf is the immediate parent directory.
		return endpoint.New(method, "/"+strings.Join(mid, "/")), true
	case strings.HasSuffix(file, ".meta.json"):
		leaf := strings.TrimSuffix(file, ".meta.json")
		segments := append(append([]string{}, mid...), leaf)
		return endpoint.New(method, "/"+strings.Join(segments, "/")), true
	default:
		return endpoint.Endpoint{}, false
	}
}

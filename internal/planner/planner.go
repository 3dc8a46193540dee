// Package planner turns a discovered endpoint list plus filters and parameter
// tables into the concrete, executable request plan for one run.
package planner

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lcu-tools/lcudump/internal/logger"
	"github.com/lcu-tools/lcudump/internal/match"
	"github.com/lcu-tools/lcudump/internal/params"
	"github.com/lcu-tools/lcudump/pkg/endpoint"
)

// Item is one fully concrete unit of work: a request plus the two output
// files it will produce.
type Item struct {
	Method       string
	RenderedPath string
	ResponsePath string
	MetaPath     string
}

// Plan is the complete, immutable set of items for one run. Item order only
// affects preview display; execution is unordered.
type Plan struct {
	Items []Item
}

// Options configures plan construction.
type Options struct {
	Includes []string
	Excludes []string
	Methods  []string
	Params   params.Table
	// OutputDir is the dump root all item paths are derived under.
	OutputDir string
	// PerEndpointDir switches from <leaf>.json/<leaf>.meta.json files to a
	// <leaf>/ directory holding response.json and meta.json.
	PerEndpointDir bool
}

// Build filters endpoints and expands templated paths into concrete items.
// Endpoints and parameter sets that cannot be planned are dropped and logged,
// never fatal.
func Build(eps []endpoint.Endpoint, opts Options, log logger.Logger) Plan {
	methods := make(map[string]bool, len(opts.Methods))
	for _, m := range opts.Methods {
		methods[strings.ToUpper(m)] = true
	}

	var items []Item
	for _, e := range eps {
		if !methods[e.Method] {
			continue
		}
		if len(opts.Includes) > 0 && !match.Any(e.Path, opts.Includes) {
			continue
		}
		if match.Any(e.Path, opts.Excludes) {
			continue
		}

		if !e.HasPlaceholders() {
			items = append(items, newItem(e.Method, e.Path, opts))
			continue
		}

		sets := opts.Params[e.Path]
		if len(sets) == 0 {
			log.Debug("skipping templated endpoint without parameters",
				"method", e.Method, "path", e.Path)
			continue
		}
		for _, set := range sets {
			rendered, err := endpoint.Render(e.Path, set)
			if err != nil {
				// One bad parameter set never fails the endpoint's others.
				log.Debug("skipping parameter set", "path", e.Path, "error", err)
				continue
			}
			items = append(items, newItem(e.Method, rendered, opts))
		}
	}
	return Plan{Items: items}
}

func newItem(method, rendered string, opts Options) Item {
	responsePath, metaPath := outputPaths(opts.OutputDir, method, rendered, opts.PerEndpointDir)
	return Item{
		Method:       method,
		RenderedPath: rendered,
		ResponsePath: responsePath,
		MetaPath:     metaPath,
	}
}

var unsafeCharRe = regexp.MustCompile(`[^A-Za-z0-9._/-]`)

// Sanitize makes a rendered path safe as a relative file path: the leading
// slash is stripped and every character outside [A-Za-z0-9._/-] becomes "_".
func Sanitize(p string) string {
	p = strings.TrimPrefix(p, "/")
	return unsafeCharRe.ReplaceAllString(p, "_")
}

// outputPaths derives the deterministic response and metadata locations for
// one rendered path. Distinct parameter sets that sanitize to the same leaf
// collide on purpose; the last write wins.
func outputPaths(base, method, rendered string, perEndpointDir bool) (string, string) {
	clean := Sanitize(rendered)
	dir := path.Dir(clean)
	if dir == "." || dir == "/" {
		dir = ""
	}
	leaf := path.Base(clean)
	if leaf == "." || leaf == "/" || leaf == "" {
		leaf = "index"
	}

	outputDir := filepath.Join(base, method, filepath.FromSlash(dir))
	if perEndpointDir {
		endpointDir := filepath.Join(outputDir, leaf)
		return filepath.Join(endpointDir, "response.json"), filepath.Join(endpointDir, "meta.json")
	}
	return filepath.Join(outputDir, leaf+".json"), filepath.Join(outputDir, leaf+".meta.json")
}

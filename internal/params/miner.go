package params

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/lcu-tools/lcudump/pkg/endpoint"
)

// CandidateKeys is the identifier vocabulary mined out of response bodies.
var CandidateKeys = []string{
	"summonerId",
	"accountId",
	"puuid",
	"id",
	"conversationId",
	"lobbyId",
	"gameId",
	"matchId",
	"championId",
}

// Pool maps an identifier key to the sorted values observed for it.
type Pool map[string][]string

// Mode selects how placeholder candidate lists are combined.
type Mode string

const (
	// ModeZip pairs candidate lists positionally.
	ModeZip Mode = "zip"
	// ModeCartesian takes the full cross-product, capped by the limit.
	ModeCartesian Mode = "cartesian"
)

var candidateKeySet = func() map[string]bool {
	m := make(map[string]bool, len(CandidateKeys))
	for _, k := range CandidateKeys {
		m[k] = true
	}
	return m
}()

// Files the dumper itself writes at the dump root; never response bodies.
var reservedFiles = map[string]bool{
	"endpoints_index.json":        true,
	"active_endpoints_index.json": true,
	"not_found_endpoints.json":    true,
	"params.autogen.json":         true,
}

// Mine walks the stored response bodies under dir and collects plausible
// identifier values per candidate key. Unreadable or non-JSON files are
// skipped; only structured bodies (the {"data": ...} form) are mined.
func Mine(dir string) (Pool, error) {
	collected := make(map[string]map[string]struct{})

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		name := d.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".json") {
			return nil
		}
		if name == "meta.json" || strings.HasSuffix(name, ".meta.json") || reservedFiles[name] {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil
		}
		if data, ok := body["data"]; ok {
			walkValue(data, collected)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	pool := make(Pool, len(collected))
	for key, values := range collected {
		sorted := make([]string, 0, len(values))
		for v := range values {
			sorted = append(sorted, v)
		}
		sort.Strings(sorted)
		pool[key] = sorted
	}
	return pool, nil
}

func walkValue(v any, out map[string]map[string]struct{}) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if candidateKeySet[k] {
				collectScalar(k, child, out)
			}
			walkValue(child, out)
		}
	case []any:
		for _, child := range t {
			walkValue(child, out)
		}
	}
}

func collectScalar(key string, v any, out map[string]map[string]struct{}) {
	var sval string
	switch t := v.(type) {
	case string:
		// The generic id bucket only takes UUID-shaped strings; anything
		// else would pollute it with unrelated identifiers.
		if key == "id" && !isUUIDShaped(t) {
			return
		}
		sval = t
	case float64:
		if key == "id" {
			return
		}
		// JSON numbers arrive as float64; only integral values are ids.
		if t != float64(int64(t)) {
			return
		}
		sval = strconv.FormatInt(int64(t), 10)
	default:
		return
	}
	if out[key] == nil {
		out[key] = make(map[string]struct{})
	}
	out[key][sval] = struct{}{}
}

// isUUIDShaped accepts only canonical 8-4-4-4-12 strings with version 1-5
// and an RFC 4122 variant.
func isUUIDShaped(s string) bool {
	if len(s) != 36 || s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	if v := u.Version(); v < 1 || v > 5 {
		return false
	}
	return u.Variant() == uuid.RFC4122
}

// Expand synthesizes a parameter table for the templated endpoints among eps
// from the mined pool. Each placeholder's candidate list is truncated to
// limit before combination; an endpoint with any placeholder lacking
// candidates is skipped entirely.
func Expand(eps []endpoint.Endpoint, pool Pool, limit int, mode Mode) Table {
	if limit < 1 {
		limit = 1
	}
	out := make(Table)
	for _, e := range eps {
		placeholders := endpoint.Placeholders(e.Path)
		if len(placeholders) == 0 {
			continue
		}
		lists := make([][]string, 0, len(placeholders))
		complete := true
		for _, ph := range placeholders {
			vals := pool[ph]
			if len(vals) == 0 {
				complete = false
				break
			}
			if len(vals) > limit {
				vals = vals[:limit]
			}
			lists = append(lists, vals)
		}
		if !complete {
			continue
		}

		var sets []Set
		if mode == ModeCartesian {
			sets = cartesian(placeholders, lists, limit)
		} else {
			sets = zip(placeholders, lists, limit)
		}
		if len(sets) > 0 {
			out[e.Path] = sets
		}
	}
	return out
}

func zip(names []string, lists [][]string, limit int) []Set {
	take := limit
	for _, l := range lists {
		if len(l) < take {
			take = len(l)
		}
	}
	sets := make([]Set, 0, take)
	for i := 0; i < take; i++ {
		set := make(Set, len(names))
		for j, name := range names {
			set[name] = lists[j][i]
		}
		sets = append(sets, set)
	}
	return sets
}

// cartesian enumerates the cross-product with the last list varying fastest,
// truncated after limit combinations.
func cartesian(names []string, lists [][]string, limit int) []Set {
	idx := make([]int, len(lists))
	var sets []Set
	for len(sets) < limit {
		set := make(Set, len(names))
		for j, name := range names {
			set[name] = lists[j][idx[j]]
		}
		sets = append(sets, set)

		pos := len(idx) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(lists[pos]) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return sets
}

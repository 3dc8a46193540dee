package endpoint

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Endpoint identifies one operation on the client API: an HTTP method plus a
// path template. Paths may carry {name} placeholders that must be rendered
// before the endpoint can be requested.
type Endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// Methods is the vocabulary of HTTP methods the dumper works with.
var Methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// New normalizes method casing and the leading path slash.
func New(method, path string) Endpoint {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return Endpoint{Method: strings.ToUpper(method), Path: path}
}

// SupportedMethod reports whether m (any casing) is part of the method vocabulary.
func SupportedMethod(m string) bool {
	m = strings.ToUpper(m)
	for _, v := range Methods {
		if v == m {
			return true
		}
	}
	return false
}

// HasPlaceholders reports whether the path template needs parameters.
func (e Endpoint) HasPlaceholders() bool {
	return strings.Contains(e.Path, "{") && strings.Contains(e.Path, "}")
}

// Placeholders returns the placeholder names in template order, duplicates included.
func Placeholders(path string) []string {
	matches := placeholderRe.FindAllStringSubmatch(path, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// Render substitutes every placeholder in the template with its value from
// params, percent-encoding each value. A placeholder without a matching key
// fails the whole render.
func Render(template string, params map[string]any) (string, error) {
	var missing string
	rendered := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		val, ok := params[key]
		if !ok {
			if missing == "" {
				missing = key
			}
			return m
		}
		return url.PathEscape(FormatValue(val))
	})
	if missing != "" {
		return "", fmt.Errorf("missing parameter %q for path %s", missing, template)
	}
	return rendered, nil
}

// FormatValue turns a scalar parameter value into its path representation.
// JSON numbers arrive as float64; integral values must not grow a decimal point.
func FormatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Sort orders endpoints by (method, path) in place.
func Sort(eps []Endpoint) {
	sort.Slice(eps, func(i, j int) bool {
		if eps[i].Method != eps[j].Method {
			return eps[i].Method < eps[j].Method
		}
		return eps[i].Path < eps[j].Path
	})
}

// Dedupe returns endpoints with exact (method, path) duplicates removed,
// preserving first-seen order.
func Dedupe(eps []Endpoint) []Endpoint {
	seen := make(map[Endpoint]struct{}, len(eps))
	out := make([]Endpoint, 0, len(eps))
	for _, e := range eps {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

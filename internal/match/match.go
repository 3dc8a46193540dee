// Package match decides whether a concrete path is selected by a set of
// include/exclude patterns. Each pattern is auto-classified as a regular
// expression or a glob; classification never fails, it only degrades.
package match

import (
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

var regexHintRe = regexp.MustCompile(`[\^\$\[\]\(\)\|\+\?]`)

// looksLikeRegex reports whether a pattern should be tried as a regex first.
func looksLikeRegex(pattern string) bool {
	return regexHintRe.MatchString(pattern) || strings.HasPrefix(pattern, "(?")
}

// Any reports whether path matches at least one of the patterns. Empty
// patterns are ignored. An invalid regex falls back to glob matching, and an
// invalid glob falls back to literal comparison.
func Any(path string, patterns []string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if One(path, p) {
			return true
		}
	}
	return false
}

// One matches path against a single pattern.
func One(path, pattern string) bool {
	if looksLikeRegex(pattern) {
		re, err := regexp.Compile(pattern)
		if err == nil {
			return re.MatchString(path)
		}
		// fall through to glob on invalid regex
	}
	return matchGlob(path, pattern)
}

func matchGlob(path, pattern string) bool {
	// No separator argument: * and ** both cross "/" boundaries, matching
	// shell-style fnmatch behavior rather than filepath semantics.
	g, err := glob.Compile(pattern)
	if err != nil {
		return path == pattern
	}
	return g.Match(path)
}

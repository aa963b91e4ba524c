package source

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// NormalizePattern rewrites a configured include/exclude pattern:
//   - a trailing "/*" becomes "/**" so it matches whole subtrees
//   - a pattern without wildcards becomes a prefix match ("p/**", or "p**"
//     when p already ends in "/")
//
// Anything else is returned unchanged.
func NormalizePattern(p string) string {
	p = strings.TrimSpace(p)
	switch {
	case strings.HasSuffix(p, "/*") && !strings.HasSuffix(p, "/**"):
		return p + "*"
	case !strings.Contains(p, "*"):
		if strings.HasSuffix(p, "/") {
			return p + "**"
		}
		return p + "/**"
	default:
		return p
	}
}

// PatternMatcher filters URL paths by include and exclude globs.
type PatternMatcher struct {
	include []string
	exclude []string
}

// NewPatternMatcher normalizes and validates the patterns.
func NewPatternMatcher(include, exclude []string) (*PatternMatcher, error) {
	m := &PatternMatcher{}
	var err error
	if m.include, err = normalizeAll(include); err != nil {
		return nil, err
	}
	if m.exclude, err = normalizeAll(exclude); err != nil {
		return nil, err
	}
	return m, nil
}

func normalizeAll(patterns []string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		n := NormalizePattern(p)
		if !doublestar.ValidatePattern(n) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

// Match reports whether urlPath matches at least one include pattern (when
// any are configured) and no exclude pattern. Patterns without a slash are
// matched against the last path segment only.
func (m *PatternMatcher) Match(urlPath string) bool {
	if len(m.include) > 0 && !anyMatch(m.include, urlPath) {
		return false
	}
	return !anyMatch(m.exclude, urlPath)
}

func anyMatch(patterns []string, urlPath string) bool {
	for _, p := range patterns {
		name := urlPath
		if !strings.Contains(p, "/") {
			name = path.Base(urlPath)
		}
		if doublestar.MatchUnvalidated(p, name) {
			return true
		}
	}
	return false
}

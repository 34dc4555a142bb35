package discovery

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// globMeta switches a pattern from substring to glob matching. "?" is left
// out since it is part of most query-string patterns.
const globMeta = "*[{"

// Matcher decides which links are targets.
type Matcher struct {
	pattern  string
	include  glob.Glob
	excludes []glob.Glob
}

// NewMatcher builds a matcher. A pattern without glob metacharacters matches
// any link containing it; otherwise it is a glob over the whole absolute URL.
// Exclude patterns are always globs and take precedence.
func NewMatcher(pattern string, excludes ...string) (*Matcher, error) {
	if pattern == "" {
		return nil, fmt.Errorf("url pattern is empty")
	}

	m := &Matcher{pattern: pattern}
	if strings.ContainsAny(pattern, globMeta) {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid url pattern '%s': %w", pattern, err)
		}
		m.include = g
	}

	for _, pattern := range excludes {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
		m.excludes = append(m.excludes, g)
	}
	return m, nil
}

// Pattern returns the include pattern as configured.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Match reports whether a link is a target. href is the attribute as written
// in the page and abs is its resolved form.
func (m *Matcher) Match(href, abs string) bool {
	for _, g := range m.excludes {
		if g.Match(abs) {
			return false
		}
	}
	if m.include != nil {
		return m.include.Match(abs)
	}
	return strings.Contains(href, m.pattern) || strings.Contains(abs, m.pattern)
}

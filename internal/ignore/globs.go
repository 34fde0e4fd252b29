package ignore

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// GlobSet matches slash-separated relative paths against fnmatch-style patterns such as
// `**/spec/**/*_spec.rb`. A leading or inner `**/` also matches zero directories.
type GlobSet struct {
	patterns []string
	globs    []glob.Glob
}

// CompileGlobs compiles every pattern, expanding each `**/` into the variant without it.
func CompileGlobs(patterns []string) (*GlobSet, error) {
	set := &GlobSet{}
	for _, raw := range patterns {
		pattern := normalizePath(strings.TrimSpace(raw))
		if pattern == "" {
			continue
		}
		for _, variant := range expandDoubleStar(pattern) {
			g, err := glob.Compile(variant, '/')
			if err != nil {
				return nil, fmt.Errorf("invalid glob %q: %w", raw, err)
			}
			set.globs = append(set.globs, g)
		}
		set.patterns = append(set.patterns, pattern)
	}
	return set, nil
}

// Match reports whether relPath matches any pattern. A nil set matches nothing.
func (s *GlobSet) Match(relPath string) bool {
	if s == nil {
		return false
	}
	relPath = normalizePath(relPath)
	for _, g := range s.globs {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}

// Patterns returns the normalized source patterns.
func (s *GlobSet) Patterns() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.patterns...)
}

func (s *GlobSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}

// expandDoubleStar returns pattern plus every variant with some `**/` occurrences removed.
func expandDoubleStar(pattern string) []string {
	idx := strings.Index(pattern, "**/")
	if idx < 0 {
		return []string{pattern}
	}
	head := pattern[:idx]
	var out []string
	for _, rest := range expandDoubleStar(pattern[idx+3:]) {
		out = append(out, head+"**/"+rest, head+rest)
	}
	return out
}

package ignore

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultRules are prepended to every matcher and can be overridden by user negation rules.
var DefaultRules = []string{
	".git/",
	".bundle/",
	".ruby-lsp/",
	"node_modules/",
	"tmp/",
	"log/",
	"coverage/",
}

// Matcher applies gitignore-style rules from .rubyindexignore. The last matching rule decides.
type Matcher struct {
	rules []rule
}

type rule struct {
	source  string
	globs   []glob.Glob
	negated bool
	dirOnly bool
	rooted  bool
	slashed bool
}

// NewMatcher compiles DefaultRules followed by userRules. Invalid rules are logged and skipped.
func NewMatcher(userRules []string) *Matcher {
	lines := make([]string, 0, len(DefaultRules)+len(userRules))
	lines = append(lines, DefaultRules...)
	lines = append(lines, userRules...)

	m := &Matcher{rules: make([]rule, 0, len(lines))}
	for _, line := range lines {
		r, ok, err := compileRule(line)
		if err != nil {
			slog.Warn("skipping invalid ignore rule", "rule", line, "error", err)
			continue
		}
		if ok {
			m.rules = append(m.rules, r)
		}
	}
	return m
}

// Len reports the number of compiled rules, defaults included.
func (m *Matcher) Len() int {
	return len(m.rules)
}

// ShouldIgnore reports whether relPath is excluded, either directly or through an ignored ancestor.
func (m *Matcher) ShouldIgnore(relPath string, isDir bool) bool {
	relPath = normalizePath(relPath)
	if relPath == "" {
		return false
	}
	segments := strings.Split(relPath, "/")
	ignored := false
	for i := range m.rules {
		if m.rules[i].matches(segments, isDir) {
			ignored = !m.rules[i].negated
		}
	}
	return ignored
}

func compileRule(line string) (rule, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false, nil
	}

	r := rule{source: line}
	line, r.negated = strings.CutPrefix(line, "!")
	line, r.rooted = strings.CutPrefix(line, "/")
	line, r.dirOnly = strings.CutSuffix(line, "/")
	line = normalizePath(line)
	if line == "" {
		return rule{}, false, nil
	}
	r.slashed = strings.Contains(line, "/")

	for _, variant := range expandDoubleStar(line) {
		g, err := glob.Compile(variant, '/')
		if err != nil {
			return rule{}, false, err
		}
		r.globs = append(r.globs, g)
	}
	return r, true, nil
}

// matches tries every span of segments the rule may cover. Rooted rules start at the first
// segment, bare names cover a single segment, and spans that stop short of the last segment
// name an ancestor directory.
func (r *rule) matches(segments []string, isDir bool) bool {
	last := len(segments) - 1
	for start := 0; start <= last; start++ {
		if r.rooted && start > 0 {
			return false
		}
		for end := start; end <= last; end++ {
			if !r.slashed && end > start {
				break
			}
			if end == last && r.dirOnly && !isDir {
				break
			}
			if r.match(strings.Join(segments[start:end+1], "/")) {
				return true
			}
		}
	}
	return false
}

func (r *rule) match(path string) bool {
	for _, g := range r.globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")
	return strings.TrimPrefix(path, "/")
}

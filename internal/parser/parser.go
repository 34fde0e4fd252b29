package parser

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/skelly-dev/rubyindex/internal/entry"
	"github.com/skelly-dev/rubyindex/internal/fileutil"
	"github.com/skelly-dev/rubyindex/internal/ignore"
	"github.com/skelly-dev/rubyindex/internal/index"
)

// LanguageParser is a producer: it turns one file's content into index entries written to sink.
// Malformed declarations are reported as issues; an error means the file could not be processed.
type LanguageParser interface {
	// Language returns the producer name (e.g., "ruby", "signature")
	Language() string

	// Extensions returns the file name suffixes this producer handles, e.g. ".rb" or ".sig.yml"
	Extensions() []string

	// Parse writes the declarations found in content into sink
	Parse(filename string, content []byte, sink index.Sink) ([]Issue, error)
}

// Registry holds all registered producers
type Registry struct {
	parsers   map[string]LanguageParser // language name -> parser
	extToLang map[string]string         // suffix -> language name
}

// NewRegistry creates a new parser registry
func NewRegistry() *Registry {
	return &Registry{
		parsers:   make(map[string]LanguageParser),
		extToLang: make(map[string]string),
	}
}

// Register adds a producer to the registry
func (r *Registry) Register(p LanguageParser) {
	lang := p.Language()
	r.parsers[lang] = p
	for _, ext := range p.Extensions() {
		r.extToLang[strings.ToLower(ext)] = lang
	}
}

// GetParserForFile returns the producer whose suffix is the longest match for filename.
func (r *Registry) GetParserForFile(filename string) (LanguageParser, bool) {
	base := strings.ToLower(filepath.Base(filename))
	best := ""
	for ext := range r.extToLang {
		if strings.HasSuffix(base, ext) && len(ext) > len(best) {
			best = ext
		}
	}
	if best == "" {
		return nil, false
	}
	parser, ok := r.parsers[r.extToLang[best]]
	return parser, ok
}

// SupportedExtensions returns all supported suffixes, sorted
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ParseFile reads path and feeds it to its producer. Unsupported files return a nil result.
func (r *Registry) ParseFile(path string, sink index.Sink) (*FileResult, error) {
	parser, ok := r.GetParserForFile(path)
	if !ok {
		return nil, nil // unsupported file type, skip silently
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return r.parseContent(parser, path, content, sink)
}

// ParseContent runs the producer for path over in-memory content.
func (r *Registry) ParseContent(path string, content []byte, sink index.Sink) (*FileResult, error) {
	parser, ok := r.GetParserForFile(path)
	if !ok {
		return nil, nil
	}
	return r.parseContent(parser, path, content, sink)
}

func (r *Registry) parseContent(parser LanguageParser, path string, content []byte, sink index.Sink) (*FileResult, error) {
	counter := &countingSink{Sink: sink}
	issues, err := parser.Parse(path, content, counter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", parser.Language(), err)
	}
	for i := range issues {
		if issues[i].File == "" {
			issues[i].File = path
		}
		if issues[i].Language == "" {
			issues[i].Language = parser.Language()
		}
	}
	return &FileResult{
		Path:     path,
		Language: parser.Language(),
		CacheKey: fileutil.HashBytes(content),
		Entries:  counter.count,
		Issues:   issues,
	}, nil
}

type countingSink struct {
	index.Sink
	count int
}

func (s *countingSink) Add(e *entry.Entry, opts ...index.AddOption) {
	s.count++
	s.Sink.Add(e, opts...)
}

// DiscoverOptions controls which files Discover selects.
type DiscoverOptions struct {
	// IgnoreRules are gitignore-style lines applied on top of ignore.DefaultRules.
	IgnoreRules []string
	// Excluded drops matching files, Included re-admits files regardless of Excluded or IgnoreRules.
	Excluded *ignore.GlobSet
	Included *ignore.GlobSet
	// LoadPaths are directories, relative to root, used to derive require paths.
	LoadPaths []string
	// ExtraFiles are absolute paths indexed in addition to the walk, e.g. signature directories.
	ExtraFiles []string
}

// Selection applies DiscoverOptions to individual paths under one root. Discover and the watcher
// share it so both agree on which files belong to the index.
type Selection struct {
	root      string
	registry  *Registry
	matcher   *ignore.Matcher
	opts      DiscoverOptions
	loadPaths []string
	extra     map[string]bool
}

// NewSelection resolves root and compiles the ignore rules of opts.
func (r *Registry) NewSelection(root string, opts DiscoverOptions) (*Selection, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	extra := make(map[string]bool, len(opts.ExtraFiles))
	for _, path := range opts.ExtraFiles {
		extra[filepath.Clean(path)] = true
	}
	return &Selection{
		root:      root,
		registry:  r,
		matcher:   ignore.NewMatcher(opts.IgnoreRules),
		opts:      opts,
		loadPaths: absLoadPaths(root, opts.LoadPaths),
		extra:     extra,
	}, nil
}

// Root is the absolute project root.
func (s *Selection) Root() string {
	return s.root
}

// Skip reports whether relPath is left out. Directories are only pruned when no included
// patterns could re-admit something below them.
func (s *Selection) Skip(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	if isDir {
		return s.opts.Included.Len() == 0 && s.matcher.ShouldIgnore(relPath, true)
	}
	if !s.opts.Included.Match(relPath) &&
		(s.matcher.ShouldIgnore(relPath, false) || s.opts.Excluded.Match(relPath)) {
		return true
	}
	_, ok := s.registry.GetParserForFile(relPath)
	return !ok
}

// Admits reports whether the absolute file path belongs to the index.
func (s *Selection) Admits(path string) bool {
	path = filepath.Clean(path)
	if s.extra[path] {
		_, ok := s.registry.GetParserForFile(path)
		return ok
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	if s.Skip(rel, false) {
		return false
	}
	// A file under an ignored directory is out even though the file rule alone admits it.
	if s.opts.Included.Match(filepath.ToSlash(rel)) {
		return true
	}
	for dir := filepath.Dir(rel); dir != "."; dir = filepath.Dir(dir) {
		if s.matcher.ShouldIgnore(filepath.ToSlash(dir), true) {
			return false
		}
	}
	return true
}

// IndexablePath describes path with its load path entry and require path.
func (s *Selection) IndexablePath(path string) IndexablePath {
	return NewIndexablePath(s.root, loadPathFor(s.loadPaths, path), path)
}

// Discover walks root and returns every file a registered producer can handle, sorted by path.
func (r *Registry) Discover(root string, opts DiscoverOptions) ([]IndexablePath, []Issue, error) {
	sel, err := r.NewSelection(root, opts)
	if err != nil {
		return nil, nil, err
	}
	root = sel.Root()

	seen := make(map[string]bool)
	paths := make([]IndexablePath, 0)
	issues := make([]Issue, 0)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		relPath := path
		if rel, relErr := filepath.Rel(root, path); relErr == nil {
			relPath = filepath.ToSlash(rel)
		}
		if err != nil {
			issues = append(issues, Issue{
				File:     relPath,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("walk error: %v", err),
			})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if sel.Skip(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if sel.Skip(relPath, false) {
			return nil
		}
		seen[path] = true
		paths = append(paths, sel.IndexablePath(path))
		return nil
	})

	for _, extra := range opts.ExtraFiles {
		if seen[extra] {
			continue
		}
		if _, ok := r.GetParserForFile(extra); !ok {
			continue
		}
		seen[extra] = true
		paths = append(paths, sel.IndexablePath(extra))
	}

	sort.Slice(paths, func(i, j int) bool {
		return paths[i].FullPath < paths[j].FullPath
	})
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].File == issues[j].File {
			return issues[i].Message < issues[j].Message
		}
		return issues[i].File < issues[j].File
	})

	return paths, issues, err
}

func absLoadPaths(root string, loadPaths []string) []string {
	out := make([]string, 0, len(loadPaths))
	for _, dir := range loadPaths {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		out = append(out, filepath.Clean(dir))
	}
	// Longest first so nested load paths win.
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i]) > len(out[j])
	})
	return out
}

func loadPathFor(loadPaths []string, path string) string {
	for _, dir := range loadPaths {
		if strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return dir
		}
	}
	return ""
}

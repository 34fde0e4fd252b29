package parser

import (
	"path/filepath"
	"strings"
)

const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Issue captures a non-fatal problem found while discovering or indexing a file.
type Issue struct {
	File     string `json:"file"`
	Language string `json:"language,omitempty"`
	Severity string `json:"severity"` // warning | error
	Line     int    `json:"line,omitempty"`
	Message  string `json:"message"`
}

// IndexablePath is a file selected for indexing.
type IndexablePath struct {
	FullPath string `json:"full_path"`
	RelPath  string `json:"rel_path"`
	// LoadPathEntry is the load path directory the file lives under, empty when none matched.
	LoadPathEntry string `json:"load_path_entry,omitempty"`
	// RequirePath is what `require` would take to load the file, e.g. "foo/bar" for lib/foo/bar.rb.
	RequirePath string `json:"require_path,omitempty"`
}

// NewIndexablePath derives the require path of fullPath relative to loadPathEntry.
func NewIndexablePath(root, loadPathEntry, fullPath string) IndexablePath {
	p := IndexablePath{FullPath: fullPath, RelPath: fullPath}
	if rel, err := filepath.Rel(root, fullPath); err == nil {
		p.RelPath = filepath.ToSlash(rel)
	}
	if loadPathEntry == "" {
		return p
	}
	rel, err := filepath.Rel(loadPathEntry, fullPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	p.LoadPathEntry = loadPathEntry
	p.RequirePath = strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
	return p
}

// FileResult is the outcome of running a producer over one file.
type FileResult struct {
	Path     string
	Language string
	CacheKey string
	Entries  int
	Issues   []Issue
}

package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skelly-dev/rubyindex/internal/entry"
	"github.com/skelly-dev/rubyindex/internal/ignore"
	"github.com/skelly-dev/rubyindex/internal/index"
)

type mockParser struct {
	lang string
	exts []string
	fail bool
}

func (m mockParser) Language() string {
	return m.lang
}

func (m mockParser) Extensions() []string {
	return m.exts
}

func (m mockParser) Parse(filename string, content []byte, sink index.Sink) ([]Issue, error) {
	if m.fail {
		return nil, errors.New("boom")
	}
	sink.Add(entry.NewModule([]string{"Mock"}, entry.Site{FilePath: filename, Location: entry.NewLocation(1, 1, 0, 4)}))
	return []Issue{{Severity: SeverityWarning, Line: 1, Message: "mock issue"}}, nil
}

func TestRegistryGetParserForFile(t *testing.T) {
	r := NewRegistry()
	r.Register(mockParser{lang: "mock", exts: []string{".mock"}})

	p, ok := r.GetParserForFile("demo.MOCK")
	require.True(t, ok, "expected parser for .MOCK extension")
	assert.Equal(t, "mock", p.Language())

	_, ok = r.GetParserForFile("demo.txt")
	assert.False(t, ok)
}

func TestRegistryPrefersLongestSuffix(t *testing.T) {
	r := NewRegistry()
	r.Register(mockParser{lang: "yaml", exts: []string{".yml"}})
	r.Register(mockParser{lang: "signature", exts: []string{".sig.yml"}})

	p, ok := r.GetParserForFile("sig/core.sig.yml")
	require.True(t, ok)
	assert.Equal(t, "signature", p.Language())

	p, ok = r.GetParserForFile("config/app.yml")
	require.True(t, ok)
	assert.Equal(t, "yaml", p.Language())
	assert.Equal(t, []string{".sig.yml", ".yml"}, r.SupportedExtensions())
}

func TestParseFileFillsResult(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.mock")
	mustWriteFile(t, path, "content")

	r := NewRegistry()
	r.Register(mockParser{lang: "mock", exts: []string{".mock"}})

	idx := index.New()
	result, err := r.ParseFile(path, idx)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "mock", result.Language)
	assert.Equal(t, 1, result.Entries)
	assert.Len(t, result.CacheKey, 16)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, path, result.Issues[0].File)
	assert.Equal(t, "mock", result.Issues[0].Language)
	assert.Len(t, idx.Lookup("Mock"), 1)

	unsupported, err := r.ParseFile(filepath.Join(root, "notes.txt"), idx)
	require.NoError(t, err)
	assert.Nil(t, unsupported)
}

func TestParseFileWrapsProducerErrors(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.mock")
	mustWriteFile(t, path, "content")

	r := NewRegistry()
	r.Register(mockParser{lang: "mock", exts: []string{".mock"}, fail: true})

	_, err := r.ParseFile(path, index.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mock: boom")
}

func TestDiscoverRespectsIgnoreRules(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry()
	r.Register(mockParser{lang: "mock", exts: []string{".mock"}})

	mustWriteFile(t, filepath.Join(root, "keep.mock"), "ok")
	mustWriteFile(t, filepath.Join(root, "skip", "ignored.mock"), "x")
	mustWriteFile(t, filepath.Join(root, "skip", "include.mock"), "y")
	mustWriteFile(t, filepath.Join(root, ".git", "hidden.mock"), "z")
	mustWriteFile(t, filepath.Join(root, "README.md"), "docs")

	paths, issues, err := r.Discover(root, DiscoverOptions{IgnoreRules: []string{
		"skip/*",
		"!skip/include.mock",
	}})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, []string{"keep.mock", "skip/include.mock"}, relPaths(paths))
}

func TestDiscoverAppliesExcludedAndIncludedGlobs(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry()
	r.Register(mockParser{lang: "mock", exts: []string{".mock"}})

	mustWriteFile(t, filepath.Join(root, "lib", "app.mock"), "ok")
	mustWriteFile(t, filepath.Join(root, "test", "fixtures", "data.mock"), "x")
	mustWriteFile(t, filepath.Join(root, "test", "fixtures", "keep.mock"), "y")

	excluded, err := ignore.CompileGlobs([]string{"**/fixtures/**/*"})
	require.NoError(t, err)
	included, err := ignore.CompileGlobs([]string{"test/fixtures/keep.mock"})
	require.NoError(t, err)

	paths, _, err := r.Discover(root, DiscoverOptions{Excluded: excluded, Included: included})
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/app.mock", "test/fixtures/keep.mock"}, relPaths(paths))
}

func TestDiscoverDerivesRequirePaths(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry()
	r.Register(mockParser{lang: "mock", exts: []string{".mock"}})

	mustWriteFile(t, filepath.Join(root, "lib", "foo", "bar.mock"), "ok")
	mustWriteFile(t, filepath.Join(root, "script.mock"), "ok")
	extra := filepath.Join(t.TempDir(), "extra.mock")
	mustWriteFile(t, extra, "ok")

	paths, _, err := r.Discover(root, DiscoverOptions{LoadPaths: []string{"lib"}, ExtraFiles: []string{extra}})
	require.NoError(t, err)
	require.Len(t, paths, 3)

	byRel := make(map[string]IndexablePath)
	for _, p := range paths {
		byRel[filepath.Base(p.FullPath)] = p
	}
	assert.Equal(t, "foo/bar", byRel["bar.mock"].RequirePath)
	assert.Equal(t, "lib/foo/bar.mock", byRel["bar.mock"].RelPath)
	assert.Empty(t, byRel["script.mock"].RequirePath)
	assert.Equal(t, extra, byRel["extra.mock"].FullPath)
}

func TestNewIndexablePathOutsideLoadPath(t *testing.T) {
	p := NewIndexablePath("/app", "/app/lib", "/app/test/foo_test.rb")
	assert.Empty(t, p.RequirePath)
	assert.Empty(t, p.LoadPathEntry)
	assert.Equal(t, "test/foo_test.rb", p.RelPath)
}

func TestSelectionAdmitsMatchesDiscover(t *testing.T) {
	root := t.TempDir()
	r := NewRegistry()
	r.Register(mockParser{lang: "mock", exts: []string{".mock"}})
	extra := filepath.Join(t.TempDir(), "extra.mock")

	sel, err := r.NewSelection(root, DiscoverOptions{
		IgnoreRules: []string{"vendor/"},
		ExtraFiles:  []string{extra},
	})
	require.NoError(t, err)

	assert.True(t, sel.Admits(filepath.Join(root, "lib", "a.mock")))
	assert.True(t, sel.Admits(extra))
	assert.False(t, sel.Admits(filepath.Join(root, "lib", "a.txt")))
	assert.False(t, sel.Admits(filepath.Join(root, "vendor", "gem", "a.mock")))
	assert.False(t, sel.Admits(filepath.Join(root, ".git", "a.mock")))
	assert.False(t, sel.Admits(filepath.Join(filepath.Dir(root), "outside.mock")))

	assert.True(t, sel.Skip("vendor", true))
	assert.False(t, sel.Skip("lib", true))
}

func relPaths(paths []IndexablePath) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, p.RelPath)
	}
	return out
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

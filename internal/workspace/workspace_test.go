package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skelly-dev/rubyindex/internal/cache"
	"github.com/skelly-dev/rubyindex/internal/config"
	"github.com/skelly-dev/rubyindex/internal/index"
)

const fooSource = `module Greeting
  def hello(name); end
end

class Foo
  include Greeting

  def initialize
    @name = "foo"
  end
end
`

const barSource = `class Bar < Foo
  VERSION = "1.0"
end
`

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "lib", "foo.rb"), fooSource)
	mustWriteFile(t, filepath.Join(root, "lib", "bar.rb"), barSource)
	mustWriteFile(t, filepath.Join(root, "README.md"), "# docs")
	return root
}

func openWorkspace(t *testing.T, root string, opts ...Option) *Workspace {
	t.Helper()
	cfg, err := config.Load(root)
	require.NoError(t, err)
	ws, err := Open(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestIndexBuildsAndSavesCache(t *testing.T) {
	root := writeProject(t)
	ws := openWorkspace(t, root)

	summary, err := ws.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "index", summary.Mode)
	assert.Equal(t, CacheSkipped, summary.Cache)
	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 2, summary.Parsed)
	assert.Empty(t, summary.Issues)

	assert.Len(t, ws.Lookup("Foo"), 1)
	found, err := ws.Resolve("VERSION", []string{"Bar"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Bar::VERSION", found[0].Name)

	methods := ws.ResolveMethodCall("hello", "Bar", true)
	require.Len(t, methods, 1)
	assert.Equal(t, "Greeting", methods[0].Owner)

	data, err := ws.Store().Load(context.Background())
	require.NoError(t, err)
	manifest, err := cache.ReadManifest(data)
	require.NoError(t, err)
	assert.Len(t, manifest.Files, 2)
}

func TestUpdateWithoutCacheRebuilds(t *testing.T) {
	ws := openWorkspace(t, writeProject(t))

	summary, err := ws.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CacheMiss, summary.Cache)
	assert.Equal(t, 2, summary.Parsed)
	assert.NotZero(t, ws.Stats().Entries)
}

func TestUpdateReusesCacheAndRefreshesChangedFiles(t *testing.T) {
	root := writeProject(t)
	first := openWorkspace(t, root)
	_, err := first.Index(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := openWorkspace(t, root)
	summary, err := second.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CacheHit, summary.Cache)
	assert.Equal(t, 0, summary.Parsed)
	assert.Equal(t, 2, summary.Reused)
	assert.Len(t, second.Lookup("Bar::VERSION"), 1)

	mustWriteFile(t, filepath.Join(root, "lib", "foo.rb"), "class Foo\n  def renamed; end\nend\n")
	require.NoError(t, os.Remove(filepath.Join(root, "lib", "bar.rb")))
	mustWriteFile(t, filepath.Join(root, "lib", "baz.rb"), "module Baz; end\n")

	summary, err = second.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CacheHit, summary.Cache)
	assert.Equal(t, []string{
		filepath.Join(root, "lib", "baz.rb"),
		filepath.Join(root, "lib", "foo.rb"),
	}, summary.ChangedFiles)
	assert.Equal(t, []string{filepath.Join(root, "lib", "bar.rb")}, summary.DeletedFiles)
	assert.Equal(t, 2, summary.Parsed)

	assert.Empty(t, second.Lookup("Bar"))
	assert.Empty(t, second.Lookup("Greeting"))
	assert.Len(t, second.Lookup("Baz"), 1)
	assert.Len(t, second.ResolveMethodCall("renamed", "Foo", true), 1)

	third := openWorkspace(t, root)
	summary, err = third.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Parsed)
	assert.Equal(t, second.Stats(), third.Stats())
}

func TestUpdateRebuildsWhenCacheIsCorrupt(t *testing.T) {
	root := writeProject(t)
	ws := openWorkspace(t, root)
	require.NoError(t, ws.Store().Save(context.Background(), []byte("RBIX\x01garbage")))

	summary, err := ws.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CacheCorrupt, summary.Cache)
	assert.Equal(t, 2, summary.Parsed)
	assert.Len(t, ws.Lookup("Foo"), 1)

	data, err := ws.Store().Load(context.Background())
	require.NoError(t, err)
	_, err = cache.ReadManifest(data)
	assert.NoError(t, err)
}

func TestCacheCanBeDisabled(t *testing.T) {
	ws := openWorkspace(t, writeProject(t), WithStore(nil))

	summary, err := ws.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CacheDisabled, summary.Cache)
	assert.Empty(t, summary.CacheLocation)
	assert.Len(t, ws.Lookup("Foo"), 1)
	assert.NoError(t, ws.ClearCache(context.Background()))
}

func TestSQLiteDriver(t *testing.T) {
	root := writeProject(t)
	mustWriteFile(t, filepath.Join(root, config.FileName), "indexing:\n  cache:\n    driver: sqlite\n")

	ws := openWorkspace(t, root)
	_, err := ws.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".ruby-lsp", "index.db"), ws.Store().Location())

	summary, err := ws.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CacheHit, summary.Cache)
}

func TestIndexOrderDoesNotDependOnWorkers(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		mustWriteFile(t, filepath.Join(root, "lib", name+".rb"), "class Shared\n  def "+name+"; end\nend\n")
	}

	export := func(workers int) []byte {
		cfg, err := config.Load(root)
		require.NoError(t, err)
		cfg.Workers = workers
		ws, err := Open(cfg, WithStore(nil))
		require.NoError(t, err)
		_, err = ws.Index(context.Background())
		require.NoError(t, err)

		var data []byte
		require.NoError(t, ws.View(func(idx *index.Index) error {
			data, err = cache.Export(idx)
			return err
		}))
		return data
	}

	assert.Equal(t, export(1), export(8))
}

func TestApplyChangesPatchesIndexAndCache(t *testing.T) {
	root := writeProject(t)
	ws := openWorkspace(t, root)
	_, err := ws.Index(context.Background())
	require.NoError(t, err)

	added := filepath.Join(root, "lib", "qux.rb")
	mustWriteFile(t, added, "class Qux < Bar\n  attr_reader :size\nend\n")
	removed := filepath.Join(root, "lib", "bar.rb")
	require.NoError(t, os.Remove(removed))
	ignored := filepath.Join(root, "notes.txt")
	mustWriteFile(t, ignored, "not ruby")

	summary, err := ws.ApplyChanges(context.Background(), []string{added, removed, ignored, "lib/qux.rb"})
	require.NoError(t, err)
	assert.Equal(t, []string{added}, summary.ChangedFiles)
	assert.Equal(t, []string{removed}, summary.DeletedFiles)
	assert.Equal(t, 1, summary.Parsed)

	assert.Len(t, ws.Lookup("Qux"), 1)
	assert.Empty(t, ws.Lookup("Bar"))
	assert.Len(t, ws.ResolveMethodCall("size", "Qux", true), 1)

	fresh := openWorkspace(t, root)
	update, err := fresh.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CacheHit, update.Cache)
	assert.Equal(t, 0, update.Parsed)
	assert.Equal(t, ws.Stats(), fresh.Stats())
}

func TestReindexSingletonMixinFromAnotherFile(t *testing.T) {
	root := writeProject(t)
	ws := openWorkspace(t, root)
	_, err := ws.Index(context.Background())
	require.NoError(t, err)

	ext := filepath.Join(root, "lib", "foo_ext.rb")
	mustWriteFile(t, ext, "class Foo\n  class << self\n    include Greeting\n  end\nend\n")
	mustWriteFile(t, filepath.Join(root, "lib", "foo.rb"), fooSource+"class Foo\n  def self.build; end\nend\n")
	_, err = ws.ApplyChanges(context.Background(), []string{filepath.Join(root, "lib", "foo.rb")})
	require.NoError(t, err)
	_, err = ws.Reindex(context.Background(), ext)
	require.NoError(t, err)

	ancestors, err := ws.LinearizedAncestorsOf("Foo::<Class:Foo>")
	require.NoError(t, err)
	assert.Contains(t, ancestors, "Greeting")

	fresh := openWorkspace(t, root)
	_, err = fresh.Update(context.Background())
	require.NoError(t, err)
	restored, err := fresh.LinearizedAncestorsOf("Foo::<Class:Foo>")
	require.NoError(t, err)
	assert.Equal(t, ancestors, restored)
}

func TestSingletonMixinSurvivesReindexOfOwningFile(t *testing.T) {
	root := writeProject(t)
	foo := filepath.Join(root, "lib", "foo.rb")
	ext := filepath.Join(root, "lib", "foo_ext.rb")
	mustWriteFile(t, foo, fooSource+"class Foo\n  def self.build; end\nend\n")
	mustWriteFile(t, ext, "class Foo\n  class << self\n    include Greeting\n    def create; end\n  end\nend\n")
	ws := openWorkspace(t, root)
	_, err := ws.Index(context.Background())
	require.NoError(t, err)
	require.Len(t, ws.ResolveMethodCall("hello", "Foo::<Class:Foo>", true), 1)

	mustWriteFile(t, foo, fooSource+"class Foo\n  # edited\n  def self.build; end\nend\n")
	_, err = ws.Reindex(context.Background(), foo)
	require.NoError(t, err)
	assert.Len(t, ws.ResolveMethodCall("hello", "Foo::<Class:Foo>", true), 1)
	assert.Len(t, ws.ResolveMethodCall("create", "Foo::<Class:Foo>", true), 1)

	fresh := openWorkspace(t, root)
	_, err = fresh.Update(context.Background())
	require.NoError(t, err)
	assert.Len(t, fresh.ResolveMethodCall("hello", "Foo::<Class:Foo>", true), 1)

	require.NoError(t, os.Remove(ext))
	_, err = ws.ApplyChanges(context.Background(), []string{ext})
	require.NoError(t, err)
	assert.Nil(t, ws.ResolveMethodCall("hello", "Foo::<Class:Foo>", true))
	assert.Nil(t, ws.ResolveMethodCall("create", "Foo::<Class:Foo>", true))
	assert.Len(t, ws.ResolveMethodCall("build", "Foo::<Class:Foo>", true), 1)
	for _, singleton := range ws.Lookup("Foo::<Class:Foo>") {
		assert.Equal(t, "foo.rb", filepath.Base(singleton.FilePath))
	}

	restored := openWorkspace(t, root)
	_, err = restored.Update(context.Background())
	require.NoError(t, err)
	assert.Nil(t, restored.ResolveMethodCall("hello", "Foo::<Class:Foo>", true))
}

func TestQueriesRunDuringApplyChanges(t *testing.T) {
	root := writeProject(t)
	ws := openWorkspace(t, root)
	_, err := ws.Index(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				ws.Lookup("Foo")
				ws.PrefixSearch("Fo", nil)
				_, _ = ws.Resolve("Greeting", nil)
			}
		}
	}()

	for i := 0; i < 5; i++ {
		mustWriteFile(t, filepath.Join(root, "lib", "foo.rb"), fooSource+"\n# revision\n")
		_, err := ws.Reindex(context.Background(), filepath.Join(root, "lib", "foo.rb"))
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()

	assert.Len(t, ws.Lookup("Foo"), 1)
}

func TestIndexHonorsCancellation(t *testing.T) {
	ws := openWorkspace(t, writeProject(t), WithStore(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ws.Index(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatusReportsPendingWork(t *testing.T) {
	root := writeProject(t)
	ws := openWorkspace(t, root)

	status, err := ws.Status(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, CacheMiss, status.Cache)
	assert.Len(t, status.ChangedFiles, 2)

	_, err = ws.Index(context.Background())
	require.NoError(t, err)
	mustWriteFile(t, filepath.Join(root, "lib", "bar.rb"), "class Bar; end\n")

	status, err = ws.Status(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, CacheHit, status.Cache)
	assert.Equal(t, []string{filepath.Join(root, "lib", "bar.rb")}, status.ChangedFiles)
	assert.Equal(t, 1, status.Reused)
	assert.Equal(t, 2, status.Files)
	assert.Equal(t, 0, ws.Stats().Entries-status.Entries)
}

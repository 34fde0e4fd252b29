// Package workspace owns a project's live index: it builds it from disk or from the cache, keeps
// it current as files change and serves read queries while doing so.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/skelly-dev/rubyindex/internal/cache"
	"github.com/skelly-dev/rubyindex/internal/config"
	"github.com/skelly-dev/rubyindex/internal/index"
	"github.com/skelly-dev/rubyindex/internal/languages"
	"github.com/skelly-dev/rubyindex/internal/observability"
	"github.com/skelly-dev/rubyindex/internal/parser"
)

// ProgressFunc is called by the index writer after each file is applied.
type ProgressFunc func(path string, done, total int)

// Option customizes Open.
type Option func(*Workspace)

// WithRegistry replaces the default producer registry.
func WithRegistry(r *parser.Registry) Option {
	return func(w *Workspace) {
		w.registry = r
	}
}

// WithStore replaces the cache store derived from the configuration. A nil store disables caching.
func WithStore(s cache.Store) Option {
	return func(w *Workspace) {
		w.store = s
		w.storeSet = true
	}
}

// WithProgress reports per-file indexing progress.
func WithProgress(fn ProgressFunc) Option {
	return func(w *Workspace) {
		w.progress = fn
	}
}

// Workspace is safe for concurrent use. Queries take a read lock; rebuilds stage a new index
// without holding the lock and swap it in at the end.
type Workspace struct {
	cfg      *config.Config
	registry *parser.Registry
	store    cache.Store
	storeSet bool
	progress ProgressFunc

	// writeMu serializes rebuilds and incremental updates.
	writeMu sync.Mutex

	mu     sync.RWMutex
	idx    *index.Index
	blob   []byte
	issues []parser.Issue
}

// Open prepares a workspace for cfg. The index starts empty until Index or Update runs.
func Open(cfg *config.Config, opts ...Option) (*Workspace, error) {
	w := &Workspace{cfg: cfg, idx: index.New()}
	for _, opt := range opts {
		opt(w)
	}
	if w.registry == nil {
		w.registry = languages.NewDefaultRegistry()
	}
	if !w.storeSet {
		store, err := OpenStore(cfg)
		if err != nil {
			return nil, err
		}
		w.store = store
	}
	return w, nil
}

// OpenStore returns the cache store selected by cfg.Cache.Driver, nil for the "none" driver.
func OpenStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Driver {
	case config.CacheDriverNone:
		return nil, nil
	case config.CacheDriverSQLite:
		store, err := cache.OpenSQLiteStore(cfg.Cache.Path, cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite cache: %w", err)
		}
		return store, nil
	default:
		return cache.NewFileStore(cfg.Cache.Dir, cfg.Root), nil
	}
}

// Config returns the configuration the workspace was opened with.
func (w *Workspace) Config() *config.Config {
	return w.cfg
}

// Registry returns the producer registry.
func (w *Workspace) Registry() *parser.Registry {
	return w.registry
}

// Store returns the cache store, nil when caching is disabled.
func (w *Workspace) Store() cache.Store {
	return w.store
}

// Issues returns the producer issues of the last Index or Update run.
func (w *Workspace) Issues() []parser.Issue {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]parser.Issue(nil), w.issues...)
}

// Close releases the cache store.
func (w *Workspace) Close() error {
	if w.store == nil {
		return nil
	}
	return w.store.Close()
}

// ClearCache deletes the persisted cache for the project.
func (w *Workspace) ClearCache(ctx context.Context) error {
	if w.store == nil {
		return nil
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.Lock()
	w.blob = nil
	w.mu.Unlock()
	return w.store.Clear(ctx)
}

func (w *Workspace) discoverOptions() (parser.DiscoverOptions, error) {
	ignoreRules, err := w.cfg.IgnoreRules()
	if err != nil {
		return parser.DiscoverOptions{}, fmt.Errorf("failed to read ignore rules: %w", err)
	}
	signatures, err := w.cfg.SignatureFiles()
	if err != nil {
		return parser.DiscoverOptions{}, fmt.Errorf("failed to expand signature paths: %w", err)
	}
	return parser.DiscoverOptions{
		IgnoreRules: ignoreRules,
		Excluded:    w.cfg.Excluded(),
		Included:    w.cfg.Included(),
		LoadPaths:   w.cfg.LoadPaths,
		ExtraFiles:  signatures,
	}, nil
}

// Selection returns the rules deciding which files belong to the index, for the watcher.
func (w *Workspace) Selection() (*parser.Selection, error) {
	opts, err := w.discoverOptions()
	if err != nil {
		return nil, err
	}
	return w.registry.NewSelection(w.cfg.Root, opts)
}

func (w *Workspace) discover() ([]parser.IndexablePath, []parser.Issue, error) {
	opts, err := w.discoverOptions()
	if err != nil {
		return nil, nil, err
	}
	paths, issues, err := w.registry.Discover(w.cfg.Root, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to discover files: %w", err)
	}
	return paths, issues, nil
}

// swap installs a fully built index and the blob that now mirrors it.
func (w *Workspace) swap(idx *index.Index, blob []byte, issues []parser.Issue) {
	w.mu.Lock()
	w.idx = idx
	w.blob = blob
	w.issues = issues
	w.mu.Unlock()
	observability.IndexedEntries.Set(float64(idx.Len()))
	observability.IndexedFiles.Set(float64(len(idx.Files())))
}

func (w *Workspace) loadCache(ctx context.Context) ([]byte, error) {
	if w.store == nil {
		return nil, cache.ErrNoCache
	}
	timer := observe(observability.CacheLoad)
	defer timer()
	return w.store.Load(ctx)
}

func (w *Workspace) save(ctx context.Context, data []byte) error {
	if w.store == nil {
		return nil
	}
	timer := observe(observability.CacheSave)
	defer timer()
	if err := w.store.Save(ctx, data); err != nil {
		return fmt.Errorf("failed to save index cache: %w", err)
	}
	return nil
}

func export(idx *index.Index) ([]byte, error) {
	timer := observe(observability.CacheExport)
	defer timer()
	data, err := cache.Export(idx)
	if err != nil {
		return nil, fmt.Errorf("failed to encode index cache: %w", err)
	}
	return data, nil
}

// discardCorrupt logs a rejected cache so the caller can fall back to a full rebuild.
func discardCorrupt(err error) bool {
	if !cache.IsCorrupt(err) {
		return false
	}
	observability.CacheCorruptTotal.Inc()
	slog.Warn("index cache is corrupt; rebuilding", "error", err)
	return true
}

func isNoCache(err error) bool {
	return errors.Is(err, cache.ErrNoCache)
}

package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/skelly-dev/rubyindex/internal/cache"
	"github.com/skelly-dev/rubyindex/internal/fileutil"
	"github.com/skelly-dev/rubyindex/internal/index"
	"github.com/skelly-dev/rubyindex/internal/observability"
	"github.com/skelly-dev/rubyindex/internal/parser"
)

// Cache outcomes reported in Summary.Cache.
const (
	CacheDisabled = "disabled"
	CacheMiss     = "miss"
	CacheHit      = "hit"
	CacheCorrupt  = "corrupt"
	CacheSkipped  = "skipped"
)

// Summary describes one indexing run.
type Summary struct {
	Mode          string         `json:"mode"`
	RootPath      string         `json:"root_path"`
	Cache         string         `json:"cache"`
	CacheLocation string         `json:"cache_location,omitempty"`
	Scanned       int            `json:"scanned"`
	Parsed        int            `json:"parsed"`
	Reused        int            `json:"reused"`
	Deleted       int            `json:"deleted"`
	Entries       int            `json:"entries"`
	Files         int            `json:"files"`
	DurationMS    int64          `json:"duration_ms"`
	ChangedFiles  []string       `json:"changed_files,omitempty"`
	DeletedFiles  []string       `json:"deleted_files,omitempty"`
	Issues        []parser.Issue `json:"issues,omitempty"`
}

func (w *Workspace) newSummary(mode string) *Summary {
	s := &Summary{Mode: mode, RootPath: w.cfg.Root, Cache: CacheDisabled}
	if w.store != nil {
		s.CacheLocation = w.store.Location()
	}
	return s
}

func (w *Workspace) finish(s *Summary, idx *index.Index, start time.Time) *Summary {
	s.Entries = idx.Len()
	s.Files = len(idx.Files())
	s.DurationMS = time.Since(start).Milliseconds()
	return s
}

// Index rebuilds the whole index from disk, ignoring any cache, and saves a fresh cache.
func (w *Workspace) Index(ctx context.Context) (*Summary, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	start := time.Now()
	summary := w.newSummary("index")
	if w.store != nil {
		summary.Cache = CacheSkipped
	}
	if err := w.rebuild(ctx, summary); err != nil {
		return nil, err
	}
	return w.finish(summary, w.snapshot(), start), nil
}

// Update restores the index from the cache and re-runs producers only for files whose cache key
// changed. Files gone from disk are dropped. A missing or corrupt cache falls back to a rebuild.
func (w *Workspace) Update(ctx context.Context) (*Summary, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	start := time.Now()
	summary := w.newSummary("update")

	blob, err := w.loadCache(ctx)
	switch {
	case err == nil:
	case isNoCache(err):
		if w.store != nil {
			summary.Cache = CacheMiss
		}
		if err := w.rebuild(ctx, summary); err != nil {
			return nil, err
		}
		return w.finish(summary, w.snapshot(), start), nil
	default:
		return nil, fmt.Errorf("failed to load index cache: %w", err)
	}

	manifest, err := cache.ReadManifest(blob)
	if err != nil {
		if !discardCorrupt(err) {
			return nil, err
		}
		summary.Cache = CacheCorrupt
		if err := w.rebuild(ctx, summary); err != nil {
			return nil, err
		}
		return w.finish(summary, w.snapshot(), start), nil
	}

	paths, issues, err := w.discover()
	if err != nil {
		return nil, err
	}
	currentKeys := make(map[string]string, len(paths))
	present := make(map[string]bool, len(paths))
	for _, p := range paths {
		present[p.FullPath] = true
		key, err := fileutil.HashFile(p.FullPath)
		if err != nil {
			slog.Warn("failed to fingerprint file", "path", p.FullPath, "error", err)
		}
		currentKeys[p.FullPath] = key
	}
	changed := manifest.ChangedFiles(currentKeys)
	deleted := manifest.DeletedFiles(present)

	staged, err := importCache(ctx, blob)
	if err != nil {
		if !discardCorrupt(err) {
			return nil, err
		}
		summary.Cache = CacheCorrupt
		if err := w.rebuild(ctx, summary); err != nil {
			return nil, err
		}
		return w.finish(summary, w.snapshot(), start), nil
	}
	summary.Cache = CacheHit

	for _, path := range deleted {
		staged.DeleteEntriesFor(path)
	}
	outcomes, parseIssues, err := w.indexFiles(ctx, staged, changed, nil)
	if err != nil {
		return nil, err
	}
	issues = append(issues, parseIssues...)

	reused := len(paths) - len(changed)
	observability.CacheFilesReusedTotal.Add(float64(reused))
	summary.Scanned = len(paths)
	summary.Parsed = countParsed(outcomes)
	summary.Reused = reused
	summary.Deleted = len(deleted)
	summary.ChangedFiles = changed
	summary.DeletedFiles = deleted
	summary.Issues = issues

	if len(changed) > 0 || len(deleted) > 0 {
		blob, err = export(staged)
		if err != nil {
			return nil, err
		}
		if err := w.save(ctx, blob); err != nil {
			return nil, err
		}
	}
	w.swap(staged, blob, issues)
	slog.Debug("index updated from cache", "reused", reused, "parsed", summary.Parsed, "deleted", len(deleted))
	return w.finish(summary, staged, start), nil
}

// rebuild indexes every discovered file into a new index, saves it and swaps it in.
func (w *Workspace) rebuild(ctx context.Context, summary *Summary) error {
	paths, issues, err := w.discover()
	if err != nil {
		return err
	}
	fullPaths := make([]string, 0, len(paths))
	for _, p := range paths {
		fullPaths = append(fullPaths, p.FullPath)
	}

	staged := index.New()
	outcomes, parseIssues, err := w.indexFiles(ctx, staged, fullPaths, nil)
	if err != nil {
		return err
	}
	issues = append(issues, parseIssues...)

	var blob []byte
	if w.store != nil {
		blob, err = export(staged)
		if err != nil {
			return err
		}
		if err := w.save(ctx, blob); err != nil {
			return err
		}
	}
	w.swap(staged, blob, issues)

	summary.Scanned = len(paths)
	summary.Parsed = countParsed(outcomes)
	summary.Issues = issues
	slog.Debug("index rebuilt", "files", len(paths), "entries", staged.Len())
	return nil
}

// ApplyChanges brings the live index in line with the current content of paths: admitted files
// that exist are re-indexed, everything else is removed. Queries keep running meanwhile and see
// each file either before or after its update.
func (w *Workspace) ApplyChanges(ctx context.Context, paths []string) (*Summary, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	start := time.Now()
	summary := w.newSummary("apply")
	sel, err := w.Selection()
	if err != nil {
		return nil, err
	}

	live := w.snapshot()
	reindex := make([]string, 0, len(paths))
	remove := make([]string, 0)
	normalized := make([]string, 0, len(paths))
	for _, path := range paths {
		if !filepath.IsAbs(path) {
			path = filepath.Join(w.cfg.Root, path)
		}
		normalized = append(normalized, filepath.Clean(path))
	}
	for _, path := range fileutil.DedupeStrings(normalized) {
		info, statErr := os.Stat(path)
		if statErr == nil && !info.IsDir() && sel.Admits(path) {
			reindex = append(reindex, path)
			continue
		}
		if _, known := live.CacheKey(path); known || len(live.EntriesForFile(path)) > 0 {
			remove = append(remove, path)
		}
	}
	sort.Strings(reindex)
	sort.Strings(remove)

	w.mu.Lock()
	for _, path := range remove {
		live.DeleteEntriesFor(path)
	}
	w.mu.Unlock()

	outcomes, issues, err := w.indexFiles(ctx, live, reindex, &w.mu)
	if err != nil {
		return nil, err
	}

	spliced, err := w.spliceCache(ctx, live, outcomes, remove)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.blob = spliced
	w.mu.Unlock()
	observability.IndexedEntries.Set(float64(live.Len()))
	observability.IndexedFiles.Set(float64(len(live.Files())))

	summary.Scanned = len(paths)
	summary.Parsed = countParsed(outcomes)
	summary.Deleted = len(remove) + len(outcomes) - summary.Parsed
	summary.ChangedFiles = reindex
	summary.DeletedFiles = remove
	summary.Issues = issues
	if w.store != nil {
		summary.Cache = CacheHit
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.finish(summary, live, start), nil
}

// Reindex refreshes a single file. See ApplyChanges.
func (w *Workspace) Reindex(ctx context.Context, path string) (*Summary, error) {
	return w.ApplyChanges(ctx, []string{path})
}

// spliceCache patches the last saved blob region by region, exporting the whole index when there
// is no blob yet or it cannot be patched.
func (w *Workspace) spliceCache(ctx context.Context, live *index.Index, outcomes []applied, removed []string) ([]byte, error) {
	if w.store == nil {
		return nil, nil
	}
	w.mu.RLock()
	blob := w.blob
	w.mu.RUnlock()

	full := blob == nil

	if !full {
		var err error
		for _, out := range outcomes {
			if out.removed {
				blob, err = cache.RemoveFile(blob, out.path)
			} else {
				w.mu.RLock()
				key, _ := live.CacheKey(out.path)
				records := live.FileRecords(out.path)
				w.mu.RUnlock()
				blob, err = cache.ReplaceFile(blob, out.path, key, records)
			}
			if err != nil {
				break
			}
		}
		for _, path := range removed {
			if err != nil {
				break
			}
			blob, err = cache.RemoveFile(blob, path)
		}
		if err != nil {
			if !cache.IsCorrupt(err) {
				return nil, err
			}
			slog.Warn("cached blob could not be patched; exporting", "error", err)
			full = true
		}
	}

	if full {
		w.mu.RLock()
		data, err := export(live)
		w.mu.RUnlock()
		if err != nil {
			return nil, err
		}
		blob = data
	}
	if err := w.save(ctx, blob); err != nil {
		return nil, err
	}
	return blob, nil
}

func (w *Workspace) snapshot() *index.Index {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.idx
}

func importCache(ctx context.Context, blob []byte) (*index.Index, error) {
	timer := observe(observability.CacheImport)
	defer timer()
	return cache.Import(ctx, blob)
}

func observe(operation string) func() {
	start := time.Now()
	return func() {
		observability.CacheDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func countParsed(outcomes []applied) int {
	n := 0
	for _, out := range outcomes {
		if !out.removed {
			n++
		}
	}
	return n
}

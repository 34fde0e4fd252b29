package workspace

import (
	"context"
	"fmt"
	"time"

	"github.com/skelly-dev/rubyindex/internal/cache"
	"github.com/skelly-dev/rubyindex/internal/fileutil"
)

// Status compares the persisted cache with the files on disk without changing either. With
// verify set every region is decoded, which catches corruption ReadManifest alone cannot see.
func (w *Workspace) Status(ctx context.Context, verify bool) (*Summary, error) {
	start := time.Now()
	summary := w.newSummary("status")

	paths, issues, err := w.discover()
	if err != nil {
		return nil, err
	}
	summary.Scanned = len(paths)
	summary.Issues = issues

	currentKeys := make(map[string]string, len(paths))
	present := make(map[string]bool, len(paths))
	for _, p := range paths {
		present[p.FullPath] = true
		key, err := fileutil.HashFile(p.FullPath)
		if err != nil {
			return nil, fmt.Errorf("failed to fingerprint %s: %w", p.RelPath, err)
		}
		currentKeys[p.FullPath] = key
	}

	blob, err := w.loadCache(ctx)
	switch {
	case err == nil:
	case isNoCache(err):
		if w.store != nil {
			summary.Cache = CacheMiss
		}
		summary.ChangedFiles = fileutil.SortedKeys(currentKeys)
		summary.Parsed = len(summary.ChangedFiles)
		summary.DurationMS = time.Since(start).Milliseconds()
		return summary, nil
	default:
		return nil, fmt.Errorf("failed to load index cache: %w", err)
	}

	manifest, err := cache.ReadManifest(blob)
	if err == nil && verify {
		_, err = cache.Import(ctx, blob)
	}
	if err != nil {
		if !cache.IsCorrupt(err) {
			return nil, err
		}
		summary.Cache = CacheCorrupt
		summary.ChangedFiles = fileutil.SortedKeys(currentKeys)
		summary.Parsed = len(summary.ChangedFiles)
		summary.DurationMS = time.Since(start).Milliseconds()
		return summary, nil
	}

	summary.Cache = CacheHit
	summary.ChangedFiles = manifest.ChangedFiles(currentKeys)
	summary.DeletedFiles = manifest.DeletedFiles(present)
	summary.Parsed = len(summary.ChangedFiles)
	summary.Reused = len(paths) - len(summary.ChangedFiles)
	summary.Deleted = len(summary.DeletedFiles)
	summary.Entries = manifest.TotalEntries()
	summary.Files = len(manifest.Files)
	summary.DurationMS = time.Since(start).Milliseconds()
	return summary, nil
}

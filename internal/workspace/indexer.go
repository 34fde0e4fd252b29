package workspace

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/skelly-dev/rubyindex/internal/index"
	"github.com/skelly-dev/rubyindex/internal/observability"
	"github.com/skelly-dev/rubyindex/internal/parser"
)

// produced is one file's producer output waiting for the writer.
type produced struct {
	seq    int
	path   string
	batch  *index.Batch
	result *parser.FileResult
	err    error
}

// applied summarizes what the writer did with one file.
type applied struct {
	path    string
	removed bool
}

// indexFiles runs producers for paths on the configured number of workers. The calling goroutine
// is the only writer: it applies batches to idx in the order of paths, so bucket order does not
// depend on scheduling. When lock is non-nil it is held around each file's writes.
func (w *Workspace) indexFiles(ctx context.Context, idx *index.Index, paths []string, lock sync.Locker) ([]applied, []parser.Issue, error) {
	if len(paths) == 0 {
		return nil, nil, nil
	}
	workers := w.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	jobs := make(chan int)
	results := make(chan produced, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seq := range jobs {
				results <- w.produce(seq, paths[seq])
			}
		}()
	}
	go func() {
		defer close(jobs)
		for seq := range paths {
			select {
			case jobs <- seq:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[int]produced)
	next := 0
	outcomes := make([]applied, 0, len(paths))
	issues := make([]parser.Issue, 0)
	for out := range results {
		observability.WriteQueueDepth.Set(float64(len(results)))
		pending[out.seq] = out
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			outcome, fileIssues := applyProduced(idx, ready, lock)
			outcomes = append(outcomes, outcome)
			issues = append(issues, fileIssues...)
			if w.progress != nil {
				w.progress(ready.path, next, len(paths))
			}
		}
	}
	observability.WriteQueueDepth.Set(0)

	if err := ctx.Err(); err != nil {
		return outcomes, issues, err
	}
	return outcomes, issues, nil
}

func (w *Workspace) produce(seq int, path string) produced {
	batch := index.NewBatch(path)
	start := time.Now()
	result, err := w.registry.ParseFile(path, batch)
	if result != nil {
		observability.ProducerDuration.WithLabelValues(result.Language).Observe(time.Since(start).Seconds())
	}
	return produced{seq: seq, path: path, batch: batch, result: result, err: err}
}

func applyProduced(idx *index.Index, out produced, lock sync.Locker) (applied, []parser.Issue) {
	if lock != nil {
		lock.Lock()
		defer lock.Unlock()
	}

	outcome := applied{path: out.path}
	idx.DeleteEntriesFor(out.path)

	switch {
	case out.err != nil && os.IsNotExist(out.err):
		outcome.removed = true
		return outcome, nil
	case out.err != nil:
		issue := parser.Issue{
			File:     out.path,
			Severity: parser.SeverityError,
			Message:  fmt.Sprintf("failed to index: %v", out.err),
		}
		observability.ProducerIssuesTotal.WithLabelValues(issue.Severity).Inc()
		return outcome, []parser.Issue{issue}
	case out.result == nil:
		outcome.removed = true
		return outcome, nil
	}

	out.batch.Apply(idx)
	idx.SetCacheKey(out.path, out.result.CacheKey)

	for _, issue := range out.result.Issues {
		observability.ProducerIssuesTotal.WithLabelValues(issue.Severity).Inc()
	}
	return outcome, out.result.Issues
}

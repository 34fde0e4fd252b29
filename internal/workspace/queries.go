package workspace

import (
	"github.com/skelly-dev/rubyindex/internal/entry"
	"github.com/skelly-dev/rubyindex/internal/index"
	"github.com/skelly-dev/rubyindex/internal/observability"
)

// Query kinds counted by observability.QueriesTotal.
const (
	QueryLookup     = "lookup"
	QueryResolve    = "resolve"
	QueryMethod     = "method"
	QueryIvar       = "ivar"
	QueryComplete   = "complete"
	QueryAncestors  = "ancestors"
	QueryIvarPrefix = "ivar_complete"
)

// View runs fn with the live index under the read lock. Entries reached through it must be treated
// as read-only and must not be retained past a later ApplyChanges of their file.
func (w *Workspace) View(fn func(idx *index.Index) error) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return fn(w.idx)
}

// Stats describes the live index.
type Stats struct {
	Entries       int            `json:"entries"`
	Files         int            `json:"files"`
	Names         int            `json:"names"`
	NextSequence  uint64         `json:"next_sequence"`
	EntriesByKind map[string]int `json:"entries_by_kind"`
}

func (w *Workspace) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stats := Stats{
		Entries:       w.idx.Len(),
		Files:         len(w.idx.Files()),
		NextSequence:  w.idx.NextSequence(),
		EntriesByKind: make(map[string]int),
	}
	names := w.idx.Names()
	stats.Names = len(names)
	for _, name := range names {
		for _, e := range w.idx.Lookup(name) {
			stats.EntriesByKind[e.Kind.String()]++
		}
	}
	return stats
}

func (w *Workspace) Lookup(name string) []*entry.Entry {
	observability.QueriesTotal.WithLabelValues(QueryLookup).Inc()
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.idx.Lookup(name)
}

func (w *Workspace) Resolve(name string, nesting []string) ([]*entry.Entry, error) {
	observability.QueriesTotal.WithLabelValues(QueryResolve).Inc()
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.idx.Resolve(name, nesting)
}

func (w *Workspace) ResolveMethodCall(name, owner string, explicitReceiver bool) []*entry.Entry {
	observability.QueriesTotal.WithLabelValues(QueryMethod).Inc()
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.idx.ResolveMethodCall(name, owner, explicitReceiver)
}

func (w *Workspace) ResolveInstanceVariable(name, owner string) []*entry.Entry {
	observability.QueriesTotal.WithLabelValues(QueryIvar).Inc()
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.idx.ResolveInstanceVariable(name, owner)
}

func (w *Workspace) InstanceVariableCompletions(prefix, owner string) [][]*entry.Entry {
	observability.QueriesTotal.WithLabelValues(QueryIvarPrefix).Inc()
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.idx.InstanceVariableCompletions(prefix, owner)
}

func (w *Workspace) PrefixSearch(prefix string, nesting []string) [][]*entry.Entry {
	observability.QueriesTotal.WithLabelValues(QueryComplete).Inc()
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.idx.PrefixSearch(prefix, nesting)
}

func (w *Workspace) LinearizedAncestorsOf(name string) ([]string, error) {
	observability.QueriesTotal.WithLabelValues(QueryAncestors).Inc()
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.idx.LinearizedAncestorsOf(name)
}

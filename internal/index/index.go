package index

import (
	"sort"

	"github.com/skelly-dev/rubyindex/internal/entry"
)

// Index is the in-memory symbol table. It is not safe for concurrent mutation: one writer at a
// time, with read-only queries between writer passes.
type Index struct {
	entries   map[string][]*entry.Entry
	files     map[string][]*entry.Entry
	meta      map[*entry.Entry]entryMeta
	tree      *prefixTree
	cacheKeys map[string]string
	nextSeq   uint64
}

type entryMeta struct {
	seq            uint64
	skipPrefixTree bool
}

// Record is an entry together with the bookkeeping the cache codec needs to rebuild it.
type Record struct {
	Entry          *entry.Entry
	Seq            uint64
	SkipPrefixTree bool
}

type addOptions struct {
	skipPrefixTree bool
	seq            uint64
	hasSeq         bool
}

// AddOption customizes a single Add call.
type AddOption func(*addOptions)

// SkipPrefixTree keeps the entry out of prefix and suffix searches. Used for synthetic entries.
func SkipPrefixTree() AddOption {
	return func(o *addOptions) {
		o.skipPrefixTree = true
	}
}

// WithSequence assigns an explicit insertion sequence number, as restored from a cache.
func WithSequence(seq uint64) AddOption {
	return func(o *addOptions) {
		o.seq = seq
		o.hasSeq = true
	}
}

// New returns an empty index.
func New() *Index {
	return &Index{
		entries:   make(map[string][]*entry.Entry),
		files:     make(map[string][]*entry.Entry),
		meta:      make(map[*entry.Entry]entryMeta),
		tree:      newPrefixTree(),
		cacheKeys: make(map[string]string),
	}
}

// Add appends e to the bucket stored under its name. Reopened namespaces and redefined methods
// simply extend the bucket.
func (idx *Index) Add(e *entry.Entry, opts ...AddOption) {
	if e == nil {
		return
	}
	var options addOptions
	for _, opt := range opts {
		opt(&options)
	}
	if _, exists := idx.meta[e]; exists {
		return
	}

	seq := idx.nextSeq
	if options.hasSeq {
		seq = options.seq
	}
	if seq >= idx.nextSeq {
		idx.nextSeq = seq + 1
	}

	idx.entries[e.Name] = append(idx.entries[e.Name], e)
	idx.files[e.FilePath] = append(idx.files[e.FilePath], e)
	idx.meta[e] = entryMeta{seq: seq, skipPrefixTree: options.skipPrefixTree}
	if !options.skipPrefixTree && e.Name != "" {
		idx.tree.insert(e.Name)
	}
}

// Lookup returns every entry stored under exactly name, in insertion order.
func (idx *Index) Lookup(name string) []*entry.Entry {
	bucket := idx.entries[name]
	if len(bucket) == 0 {
		return nil
	}
	return append([]*entry.Entry(nil), bucket...)
}

// DeleteEntriesFor removes every entry declared in filePath, along with the buckets and prefix
// tree nodes that become empty and the file's cache key.
func (idx *Index) DeleteEntriesFor(filePath string) {
	removed := idx.files[filePath]
	delete(idx.files, filePath)
	delete(idx.cacheKeys, filePath)
	if len(removed) == 0 {
		return
	}

	doomed := make(map[*entry.Entry]struct{}, len(removed))
	names := make(map[string]struct{})
	for _, e := range removed {
		doomed[e] = struct{}{}
		names[e.Name] = struct{}{}
		if !idx.meta[e].skipPrefixTree && e.Name != "" {
			idx.tree.remove(e.Name)
		}
		delete(idx.meta, e)
	}

	for name := range names {
		bucket := idx.entries[name]
		kept := bucket[:0]
		for _, e := range bucket {
			if _, drop := doomed[e]; !drop {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(idx.entries, name)
			continue
		}
		idx.entries[name] = kept
	}
}

// Len returns the number of stored entries.
func (idx *Index) Len() int {
	return len(idx.meta)
}

// Names returns every stored name, sorted.
func (idx *Index) Names() []string {
	names := make([]string, 0, len(idx.entries))
	for name := range idx.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Files returns every file that contributed entries or has a cache key, sorted.
func (idx *Index) Files() []string {
	set := make(map[string]struct{}, len(idx.files)+len(idx.cacheKeys))
	for file := range idx.files {
		set[file] = struct{}{}
	}
	for file := range idx.cacheKeys {
		set[file] = struct{}{}
	}
	files := make([]string, 0, len(set))
	for file := range set {
		files = append(files, file)
	}
	sort.Strings(files)
	return files
}

// EntriesForFile returns the entries declared in filePath, in insertion order.
func (idx *Index) EntriesForFile(filePath string) []*entry.Entry {
	return append([]*entry.Entry(nil), idx.files[filePath]...)
}

// FileRecords returns the entries declared in filePath with their sequence numbers.
func (idx *Index) FileRecords(filePath string) []Record {
	entries := idx.files[filePath]
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		meta := idx.meta[e]
		records = append(records, Record{Entry: e, Seq: meta.seq, SkipPrefixTree: meta.skipPrefixTree})
	}
	return records
}

// NextSequence is the sequence number the next Add will receive.
func (idx *Index) NextSequence() uint64 {
	return idx.nextSeq
}

// AdvanceSequence makes later Adds number entries from at least next.
func (idx *Index) AdvanceSequence(next uint64) {
	if next > idx.nextSeq {
		idx.nextSeq = next
	}
}

// SetCacheKey records the fingerprint of the source a file's entries were produced from.
func (idx *Index) SetCacheKey(filePath, key string) {
	idx.cacheKeys[filePath] = key
}

// CacheKey returns the recorded fingerprint for filePath.
func (idx *Index) CacheKey(filePath string) (string, bool) {
	key, ok := idx.cacheKeys[filePath]
	return key, ok
}

// CacheKeys returns a copy of every recorded fingerprint.
func (idx *Index) CacheKeys() map[string]string {
	out := make(map[string]string, len(idx.cacheKeys))
	for file, key := range idx.cacheKeys {
		out[file] = key
	}
	return out
}

// PrefixSearch returns the buckets of names that start with prefix. With a nesting, candidates
// are tried from the innermost scope outward and results keep that order.
func (idx *Index) PrefixSearch(prefix string, nesting []string) [][]*entry.Entry {
	var candidates []string
	if len(nesting) == 0 {
		candidates = []string{prefix}
	} else {
		for i := len(nesting); i >= 0; i-- {
			candidates = append(candidates, entry.Qualify(nesting[:i], prefix))
		}
	}

	seen := make(map[string]struct{})
	var out [][]*entry.Entry
	for _, candidate := range candidates {
		for _, name := range idx.tree.search(candidate) {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			if bucket := idx.visibleBucket(name); len(bucket) > 0 {
				out = append(out, bucket)
			}
		}
	}
	return out
}

// NamesWithSuffix returns qualified names that end with suffix at a segment boundary.
func (idx *Index) NamesWithSuffix(suffix string) []string {
	return idx.tree.exact(suffix)
}

func (idx *Index) visibleBucket(name string) []*entry.Entry {
	bucket := idx.entries[name]
	out := make([]*entry.Entry, 0, len(bucket))
	for _, e := range bucket {
		if !idx.meta[e].skipPrefixTree {
			out = append(out, e)
		}
	}
	return out
}

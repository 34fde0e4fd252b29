package index

import "github.com/skelly-dev/rubyindex/internal/entry"

// Sink is what producers write declarations into. *Index writes directly; *Batch buffers writes
// so producers can run in parallel while a single writer applies them.
type Sink interface {
	Add(e *entry.Entry, opts ...AddOption)
	ExistingOrNewSingletonClass(owner *entry.Entry) *entry.Entry
}

var (
	_ Sink = (*Index)(nil)
	_ Sink = (*Batch)(nil)
)

type batchOp struct {
	entry     *entry.Entry
	opts      []AddOption
	singleton *entry.Entry
}

// Batch records the writes of one producer run for a single file.
type Batch struct {
	Path       string
	ops        []batchOp
	singletons map[string]*entry.Entry
	count      int
}

// NewBatch returns an empty batch for path.
func NewBatch(path string) *Batch {
	return &Batch{Path: path, singletons: make(map[string]*entry.Entry)}
}

// Add buffers e.
func (b *Batch) Add(e *entry.Entry, opts ...AddOption) {
	if e == nil {
		return
	}
	b.ops = append(b.ops, batchOp{entry: e, opts: opts})
	b.count++
}

// ExistingOrNewSingletonClass returns a provisional singleton class for owner. Members only keep
// the returned entry's name. On Apply the provisional entry is added alongside the singleton
// classes other files declared.
func (b *Batch) ExistingOrNewSingletonClass(owner *entry.Entry) *entry.Entry {
	name := entry.SingletonClassName(owner.Name)
	if existing, ok := b.singletons[name]; ok {
		return existing
	}
	provisional := newSingletonFor(owner)
	b.singletons[name] = provisional
	b.ops = append(b.ops, batchOp{singleton: provisional})
	return provisional
}

// Len returns the number of buffered entries, not counting singleton requests.
func (b *Batch) Len() int {
	return b.count
}

// Entries returns the buffered entries in the order they were added.
func (b *Batch) Entries() []*entry.Entry {
	out := make([]*entry.Entry, 0, b.count)
	for _, op := range b.ops {
		if op.entry != nil {
			out = append(out, op.entry)
		}
	}
	return out
}

// Apply replays the batch against idx in recording order.
func (b *Batch) Apply(idx *Index) {
	for _, op := range b.ops {
		if op.singleton != nil {
			idx.mergeSingleton(op.singleton)
			continue
		}
		idx.Add(op.entry, op.opts...)
	}
}

package index

import (
	"strings"

	"github.com/skelly-dev/rubyindex/internal/entry"
)

// ExistingOrNewSingletonClass returns the singleton class of owner declared in owner's file,
// creating it on first use. Like a reopened class, every file that adds singleton members gets its
// own entry, so deleting one file never drops or keeps another file's mixins. The created entry
// copies the owner's declaration site and stays out of the prefix tree.
func (idx *Index) ExistingOrNewSingletonClass(owner *entry.Entry) *entry.Entry {
	if existing := idx.singletonClassIn(entry.SingletonClassName(owner.Name), owner.FilePath); existing != nil {
		return existing
	}
	singleton := newSingletonFor(owner)
	idx.Add(singleton, SkipPrefixTree())
	return singleton
}

func newSingletonFor(owner *entry.Entry) *entry.Entry {
	nesting := owner.Nesting
	if len(nesting) == 0 {
		nesting = strings.Split(owner.Name, entry.Separator)
	}
	nesting = append(append([]string(nil), nesting...), entry.SingletonSegment(owner.ShortName()))
	return entry.NewSingletonClass(nesting, entry.Site{
		FilePath:     owner.FilePath,
		Location:     owner.Location,
		NameLocation: owner.NameLocation,
	})
}

func (idx *Index) singletonClassIn(name, path string) *entry.Entry {
	for _, e := range idx.entries[name] {
		if e.Kind == entry.KindSingletonClass && e.FilePath == path {
			return e
		}
	}
	return nil
}

// mergeSingleton adds a singleton class produced away from the index, or folds its mixins into
// the one the same file already holds.
func (idx *Index) mergeSingleton(provisional *entry.Entry) {
	existing := idx.singletonClassIn(provisional.Name, provisional.FilePath)
	if existing == nil {
		idx.Add(provisional, SkipPrefixTree())
		return
	}
	existing.IncludedModules = appendMissing(existing.IncludedModules, provisional.IncludedModules)
	existing.PrependedModules = appendMissing(existing.PrependedModules, provisional.PrependedModules)
	existing.ExtendedModules = appendMissing(existing.ExtendedModules, provisional.ExtendedModules)
}

func appendMissing(dst, src []string) []string {
	for _, name := range src {
		found := false
		for _, have := range dst {
			if have == name {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, name)
		}
	}
	return dst
}

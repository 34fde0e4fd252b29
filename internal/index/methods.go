package index

import "github.com/skelly-dev/rubyindex/internal/entry"

// ResolveMethod walks the ancestors of owner and returns the method or accessor entries named name
// owned by the first ancestor that declares one. Unknown methods and unknown owners yield nil.
func (idx *Index) ResolveMethod(name, owner string) []*entry.Entry {
	return idx.resolveMember(name, owner, (*entry.Entry).IsMethod)
}

// ResolveMethodCall is ResolveMethod for a call site. A private method is not callable with an
// explicit receiver, so such calls resolve to nil.
func (idx *Index) ResolveMethodCall(name, owner string, explicitReceiver bool) []*entry.Entry {
	found := idx.ResolveMethod(name, owner)
	if len(found) == 0 {
		return nil
	}
	if explicitReceiver && found[0].IsPrivate() {
		return nil
	}
	return found
}

// ResolveInstanceVariable walks the ancestors of owner like ResolveMethod, matching instance
// variable declarations.
func (idx *Index) ResolveInstanceVariable(name, owner string) []*entry.Entry {
	return idx.resolveMember(name, owner, func(e *entry.Entry) bool {
		return e.Kind == entry.KindInstanceVariable
	})
}

// InstanceVariableCompletions returns the instance variables visible from owner whose names start
// with prefix, one bucket per ancestor that declares them.
func (idx *Index) InstanceVariableCompletions(prefix, owner string) [][]*entry.Entry {
	ancestors := idx.memberAncestors(owner)
	if len(ancestors) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(ancestors))
	for _, ancestor := range ancestors {
		allowed[ancestor] = struct{}{}
	}

	var out [][]*entry.Entry
	for _, bucket := range idx.PrefixSearch(prefix, nil) {
		var matches []*entry.Entry
		for _, e := range bucket {
			if e.Kind != entry.KindInstanceVariable {
				continue
			}
			if _, ok := allowed[e.Owner]; ok {
				matches = append(matches, e)
			}
		}
		if len(matches) > 0 {
			out = append(out, matches)
		}
	}
	return out
}

func (idx *Index) resolveMember(name, owner string, match func(*entry.Entry) bool) []*entry.Entry {
	candidates := idx.entries[name]
	if len(candidates) == 0 {
		return nil
	}
	for _, ancestor := range idx.memberAncestors(owner) {
		var found []*entry.Entry
		for _, e := range candidates {
			if e.Owner == ancestor && match(e) {
				found = append(found, e)
			}
		}
		if len(found) > 0 {
			return found
		}
	}
	return nil
}

// memberAncestors is LinearizedAncestorsOf, except that top-level members owned by an unindexed
// core class still resolve through its builtin chain.
func (idx *Index) memberAncestors(owner string) []string {
	ancestors, err := idx.LinearizedAncestorsOf(owner)
	if err == nil {
		return ancestors
	}
	return builtinChains[owner]
}

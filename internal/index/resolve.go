package index

import (
	"strings"

	"github.com/skelly-dev/rubyindex/internal/entry"
)

// Resolve finds the declarations a constant reference points to from the given lexical nesting
// (innermost scope last). Enclosing scopes are searched innermost first, then the ancestors of the
// innermost namespace, then the top level. A reference starting with "::" only searches the top
// level. Unresolved aliases among the hits are followed using their own nesting; the store is
// never modified. An empty result with a nil error means the constant is unknown.
func (idx *Index) Resolve(name string, nesting []string) ([]*entry.Entry, error) {
	return idx.resolve(name, nesting, true, make(map[string]struct{}))
}

func (idx *Index) resolve(name string, nesting []string, withAncestors bool, seen map[string]struct{}) ([]*entry.Entry, error) {
	if name == "" {
		return nil, nil
	}
	if strings.HasPrefix(name, entry.Separator) {
		return idx.resolve(strings.TrimPrefix(name, entry.Separator), nil, withAncestors, seen)
	}

	for i := len(nesting); i > 0; i-- {
		if hits := idx.constants(entry.Qualify(nesting[:i], name)); len(hits) > 0 {
			return idx.followAliases(hits, withAncestors, seen), nil
		}
	}

	if withAncestors && len(nesting) > 0 {
		if hits := idx.constantInAncestors(strings.Join(nesting, entry.Separator), name, seen); len(hits) > 0 {
			return hits, nil
		}
	}

	if hits := idx.constants(name); len(hits) > 0 {
		return idx.followAliases(hits, withAncestors, seen), nil
	}

	if strings.Contains(name, entry.Separator) {
		hits, err := idx.resolveThroughNamespace(name, nesting, withAncestors, seen)
		if err != nil || len(hits) > 0 {
			return hits, err
		}
	}

	if len(nesting) > 0 {
		enclosing := strings.Join(nesting, entry.Separator)
		if !idx.namespaceExists(enclosing) {
			return nil, &NonExistingNamespaceError{Name: enclosing}
		}
	}
	return nil, nil
}

// resolveThroughNamespace handles A::B when A is reachable only indirectly, for example through an
// alias or a superclass.
func (idx *Index) resolveThroughNamespace(name string, nesting []string, withAncestors bool, seen map[string]struct{}) ([]*entry.Entry, error) {
	cut := strings.LastIndex(name, entry.Separator)
	head, tail := name[:cut], name[cut+len(entry.Separator):]

	owners, err := idx.resolve(head, nesting, withAncestors, seen)
	if err != nil {
		return nil, err
	}
	if len(owners) == 0 {
		return nil, &NonExistingNamespaceError{Name: head}
	}

	realHead := qualifiedTarget(owners[0])
	if realHead == "" {
		return nil, nil
	}
	if hits := idx.constants(realHead + entry.Separator + tail); len(hits) > 0 {
		return idx.followAliases(hits, withAncestors, seen), nil
	}
	if withAncestors {
		return idx.constantInAncestors(realHead, tail, seen), nil
	}
	return nil, nil
}

func (idx *Index) constantInAncestors(namespace, name string, seen map[string]struct{}) []*entry.Entry {
	ancestors, err := idx.linearize(namespace, make(map[string]struct{}), seen)
	if err != nil {
		return nil
	}
	for _, ancestor := range ancestors {
		if ancestor == namespace {
			continue
		}
		if hits := idx.constants(ancestor + entry.Separator + name); len(hits) > 0 {
			return idx.followAliases(hits, true, seen)
		}
	}
	return nil
}

func (idx *Index) followAliases(hits []*entry.Entry, withAncestors bool, seen map[string]struct{}) []*entry.Entry {
	out := make([]*entry.Entry, 0, len(hits))
	for _, hit := range hits {
		if hit.Kind == entry.KindUnresolvedAlias {
			out = append(out, idx.resolveAlias(hit, withAncestors, seen))
			continue
		}
		out = append(out, hit)
	}
	return out
}

// resolveAlias returns a fresh Alias when the target resolves, and otherwise the terminal
// UnresolvedAlias of the chain.
func (idx *Index) resolveAlias(alias *entry.Entry, withAncestors bool, seen map[string]struct{}) *entry.Entry {
	if _, cycle := seen[alias.Name]; cycle {
		return alias
	}
	seen[alias.Name] = struct{}{}
	defer delete(seen, alias.Name)

	targets, err := idx.resolve(alias.Target, alias.Nesting, withAncestors, seen)
	if err != nil || len(targets) == 0 {
		return alias
	}
	first := targets[0]
	if first.Kind == entry.KindUnresolvedAlias {
		return first
	}
	return entry.ResolvedAlias(qualifiedTarget(first), alias)
}

// constants returns the bucket for name restricted to entries a constant reference can denote.
func (idx *Index) constants(name string) []*entry.Entry {
	bucket := idx.entries[name]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]*entry.Entry, 0, len(bucket))
	for _, e := range bucket {
		switch e.Kind {
		case entry.KindModule, entry.KindClass, entry.KindConstant, entry.KindUnresolvedAlias, entry.KindAlias:
			out = append(out, e)
		}
	}
	return out
}

func (idx *Index) namespaces(name string) []*entry.Entry {
	var out []*entry.Entry
	for _, e := range idx.entries[name] {
		if e.IsNamespace() {
			out = append(out, e)
		}
	}
	return out
}

func (idx *Index) namespaceExists(name string) bool {
	if len(idx.namespaces(name)) > 0 {
		return true
	}
	if attached, ok := entry.AttachedName(name); ok {
		return idx.namespaceExists(attached)
	}
	return false
}

// qualifiedTarget is the name a resolved constant stands for: an alias stands for its target.
func qualifiedTarget(e *entry.Entry) string {
	switch e.Kind {
	case entry.KindAlias:
		return e.Target
	case entry.KindUnresolvedAlias:
		return ""
	default:
		return e.Name
	}
}

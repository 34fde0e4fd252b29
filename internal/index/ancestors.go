package index

import (
	"github.com/skelly-dev/rubyindex/internal/entry"
)

const (
	rootClass   = "Object"
	basicObject = "BasicObject"
)

// Fallback chains used when the core classes themselves were never indexed.
var builtinChains = map[string][]string{
	rootClass:   {rootClass, basicObject},
	basicObject: {basicObject},
	"Class":     {"Class", "Module", rootClass, basicObject},
	"Module":    {"Module", rootClass, basicObject},
}

// LinearizedAncestorsOf returns the method resolution order of a namespace: prepended modules
// (most recent first), the namespace itself, included modules (most recent first), then the same
// for each superclass up to BasicObject. Singleton class names (`X::<Class:X>`) linearize through
// the modules X extends and the singleton classes of X's superclasses.
func (idx *Index) LinearizedAncestorsOf(name string) ([]string, error) {
	return idx.linearize(name, make(map[string]struct{}), make(map[string]struct{}))
}

func (idx *Index) linearize(name string, visiting, seen map[string]struct{}) ([]string, error) {
	if _, cycle := visiting[name]; cycle {
		return nil, nil
	}
	visiting[name] = struct{}{}
	defer delete(visiting, name)

	if attached, ok := entry.AttachedName(name); ok {
		return idx.linearizeSingleton(name, attached, visiting, seen)
	}

	namespaces := idx.namespaces(name)
	if len(namespaces) == 0 {
		return nil, &NonExistingNamespaceError{Name: name}
	}

	var prepends, includes []string
	for _, ns := range namespaces {
		prepends = append(prepends, idx.resolveMixins(ns.PrependedModules, ns.Nesting, seen)...)
		includes = append(includes, idx.resolveMixins(ns.IncludedModules, ns.Nesting, seen)...)
	}

	var out []string
	out = idx.appendMixins(out, prepends, visiting, seen)
	out = append(out, name)
	out = idx.appendMixins(out, includes, visiting, seen)

	if parent := idx.superclassOf(name, namespaces, seen); parent != "" {
		out = idx.appendChain(out, parent, visiting, seen)
	}
	return dedupe(out), nil
}

func (idx *Index) linearizeSingleton(name, attached string, visiting, seen map[string]struct{}) ([]string, error) {
	attachedNamespaces := idx.namespaces(attached)
	if len(attachedNamespaces) == 0 {
		return nil, &NonExistingNamespaceError{Name: attached}
	}

	var prepends, includes []string
	for _, ns := range attachedNamespaces {
		includes = append(includes, idx.resolveMixins(ns.ExtendedModules, ns.Nesting, seen)...)
	}
	for _, singleton := range idx.namespaces(name) {
		prepends = append(prepends, idx.resolveMixins(singleton.PrependedModules, singleton.Nesting, seen)...)
		includes = append(includes, idx.resolveMixins(singleton.IncludedModules, singleton.Nesting, seen)...)
	}

	var out []string
	out = idx.appendMixins(out, prepends, visiting, seen)
	out = append(out, name)
	out = idx.appendMixins(out, includes, visiting, seen)

	isClass := false
	for _, ns := range attachedNamespaces {
		if ns.IsClass() {
			isClass = true
			break
		}
	}

	switch {
	case isClass:
		parent := idx.superclassOf(attached, attachedNamespaces, seen)
		if parent != "" && idx.namespaceExists(parent) {
			sub, _ := idx.linearize(entry.SingletonClassName(parent), visiting, seen)
			out = append(out, sub...)
		} else {
			out = idx.appendChain(out, "Class", visiting, seen)
		}
	default:
		out = idx.appendChain(out, "Module", visiting, seen)
	}
	return dedupe(out), nil
}

// appendMixins linearizes mixins in reverse declaration order: the last one declared is found first.
func (idx *Index) appendMixins(out, mixins []string, visiting, seen map[string]struct{}) []string {
	for i := len(mixins) - 1; i >= 0; i-- {
		sub, err := idx.linearize(mixins[i], visiting, seen)
		if err != nil {
			continue
		}
		out = append(out, sub...)
	}
	return out
}

// appendChain appends the ancestors of name, falling back to a fixed chain for unindexed core classes.
func (idx *Index) appendChain(out []string, name string, visiting, seen map[string]struct{}) []string {
	sub, err := idx.linearize(name, visiting, seen)
	if err == nil {
		return append(out, sub...)
	}
	if fallback, ok := builtinChains[name]; ok {
		return append(out, fallback...)
	}
	return out
}

// resolveMixins turns mixin references into qualified names using the declaring namespace's nesting.
// References that do not resolve are dropped.
func (idx *Index) resolveMixins(refs, nesting []string, seen map[string]struct{}) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if name := idx.resolveNamespaceRef(ref, nesting, seen); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func (idx *Index) resolveNamespaceRef(ref string, nesting []string, seen map[string]struct{}) string {
	hits, err := idx.resolve(ref, nesting, false, seen)
	if err != nil || len(hits) == 0 {
		return ""
	}
	return qualifiedTarget(hits[0])
}

// superclassOf returns the qualified superclass of a class, resolved in the scope enclosing the
// class. Classes without an explicit parent inherit from Object, Object from BasicObject.
func (idx *Index) superclassOf(name string, namespaces []*entry.Entry, seen map[string]struct{}) string {
	isClass := false
	for _, ns := range namespaces {
		if ns.Kind != entry.KindClass {
			continue
		}
		isClass = true
		if ns.ParentClass == "" {
			continue
		}
		enclosing := ns.Nesting
		if len(enclosing) > 0 {
			enclosing = enclosing[:len(enclosing)-1]
		}
		if parent := idx.resolveNamespaceRef(ns.ParentClass, enclosing, seen); parent != "" && parent != name {
			return parent
		}
	}
	if !isClass {
		return ""
	}
	switch name {
	case basicObject:
		return ""
	case rootClass:
		return basicObject
	default:
		return rootClass
	}
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, value := range values {
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

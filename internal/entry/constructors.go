package entry

import "strings"

// Site holds the fields every producer knows about a declaration site.
type Site struct {
	FilePath     string
	Location     Location
	NameLocation Location
	Comments     []string
}

func (s Site) base(kind Kind, name string) *Entry {
	return &Entry{
		Kind:         kind,
		Name:         name,
		FilePath:     s.FilePath,
		Location:     s.Location,
		NameLocation: s.NameLocation,
		Comments:     cloneStrings(s.Comments),
	}
}

// NewModule creates a module entry. nesting ends with the module's own name segment.
func NewModule(nesting []string, site Site) *Entry {
	e := site.base(KindModule, strings.Join(nesting, Separator))
	e.Nesting = cloneStrings(nesting)
	return e
}

// NewClass creates a class entry. An empty parent means the implicit root class.
func NewClass(nesting []string, site Site, parent string) *Entry {
	e := site.base(KindClass, strings.Join(nesting, Separator))
	e.Nesting = cloneStrings(nesting)
	e.ParentClass = parent
	return e
}

// NewSingletonClass creates the synthetic class-of-a-namespace entry.
func NewSingletonClass(nesting []string, site Site) *Entry {
	e := site.base(KindSingletonClass, strings.Join(nesting, Separator))
	e.Nesting = cloneStrings(nesting)
	return e
}

// NewConstant creates a constant entry with a qualified name.
func NewConstant(name string, site Site) *Entry {
	return site.base(KindConstant, name)
}

// NewInstanceMethod creates an instance method owned by owner.
func NewInstanceMethod(name string, site Site, signatures []Signature, visibility Visibility, owner string) *Entry {
	e := site.base(KindInstanceMethod, name)
	e.Signatures = signatures
	e.Visibility = visibility
	e.Owner = owner
	return e
}

// NewSingletonMethod creates a class-level method; owner is the singleton class name.
func NewSingletonMethod(name string, site Site, signatures []Signature, visibility Visibility, owner string) *Entry {
	e := site.base(KindSingletonMethod, name)
	e.Signatures = signatures
	e.Visibility = visibility
	e.Owner = owner
	return e
}

// NewAccessor creates a generated reader (`name`) or writer (`name=`).
func NewAccessor(name string, site Site, visibility Visibility, owner string) *Entry {
	e := site.base(KindAccessor, name)
	e.Visibility = visibility
	e.Owner = owner
	return e
}

// NewInstanceVariable creates an instance variable declaration owned by owner.
func NewInstanceVariable(name string, site Site, owner string) *Entry {
	e := site.base(KindInstanceVariable, name)
	e.Owner = owner
	return e
}

// NewUnresolvedAlias records `name = target` before target is known to exist.
func NewUnresolvedAlias(target string, nesting []string, name string, site Site) *Entry {
	e := site.base(KindUnresolvedAlias, name)
	e.Target = target
	e.Nesting = cloneStrings(nesting)
	return e
}

// ResolvedAlias builds an Alias from an unresolved one, pointing at the qualified target name.
func ResolvedAlias(target string, unresolved *Entry) *Entry {
	return &Entry{
		Kind:         KindAlias,
		Name:         unresolved.Name,
		FilePath:     unresolved.FilePath,
		Location:     unresolved.Location,
		NameLocation: unresolved.NameLocation,
		Comments:     cloneStrings(unresolved.Comments),
		Visibility:   unresolved.Visibility,
		Target:       target,
	}
}

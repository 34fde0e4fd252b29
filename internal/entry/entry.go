package entry

import (
	"path/filepath"
	"strings"
)

// Kind is the discriminant of the Entry union. Values are persisted by the cache codec and must not be renumbered.
type Kind uint8

const (
	KindModule Kind = iota + 1
	KindClass
	KindSingletonClass
	KindConstant
	KindAccessor
	KindInstanceMethod
	KindSingletonMethod
	KindUnresolvedAlias
	KindAlias
	KindInstanceVariable
)

func (k Kind) String() string {
	switch k {
	case KindModule:
		return "Module"
	case KindClass:
		return "Class"
	case KindSingletonClass:
		return "SingletonClass"
	case KindConstant:
		return "Constant"
	case KindAccessor:
		return "Accessor"
	case KindInstanceMethod:
		return "InstanceMethod"
	case KindSingletonMethod:
		return "SingletonMethod"
	case KindUnresolvedAlias:
		return "UnresolvedAlias"
	case KindAlias:
		return "Alias"
	case KindInstanceVariable:
		return "InstanceVariable"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the known entry kinds.
func (k Kind) Valid() bool {
	return k >= KindModule && k <= KindInstanceVariable
}

// Visibility of a member or constant.
type Visibility uint8

const (
	Public Visibility = iota
	Private
	Protected
)

func (v Visibility) String() string {
	switch v {
	case Private:
		return "private"
	case Protected:
		return "protected"
	default:
		return "public"
	}
}

// ParseVisibility maps "private"/"protected"/"public" to a Visibility, defaulting to Public.
func ParseVisibility(raw string) Visibility {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "private":
		return Private
	case "protected":
		return Protected
	default:
		return Public
	}
}

// Separator joins namespace segments into a qualified name.
const Separator = "::"

// Entry is one indexed declaration. Which of the variant fields are meaningful depends on Kind.
//
// Namespaces (Module, Class, SingletonClass) carry Nesting, the mixin lists and, for classes,
// ParentClass. Members (Accessor, InstanceMethod, SingletonMethod, InstanceVariable) carry Owner,
// the qualified name of their namespace. Methods carry Signatures. Aliases carry Target, and
// unresolved aliases also carry the Nesting in which their target must be resolved.
type Entry struct {
	Kind         Kind
	Name         string
	FilePath     string
	Location     Location
	NameLocation Location
	Comments     []string
	Visibility   Visibility

	Nesting          []string
	IncludedModules  []string
	PrependedModules []string
	ExtendedModules  []string
	ParentClass      string

	Owner      string
	Signatures []Signature

	Target string
}

// IsNamespace reports whether the entry is a module, class or singleton class.
func (e *Entry) IsNamespace() bool {
	switch e.Kind {
	case KindModule, KindClass, KindSingletonClass:
		return true
	}
	return false
}

// IsClass reports whether the entry behaves like a class (including singleton classes).
func (e *Entry) IsClass() bool {
	return e.Kind == KindClass || e.Kind == KindSingletonClass
}

// IsMember reports whether the entry belongs to an owning namespace.
func (e *Entry) IsMember() bool {
	switch e.Kind {
	case KindAccessor, KindInstanceMethod, KindSingletonMethod, KindInstanceVariable:
		return true
	}
	return false
}

// IsMethod reports whether the entry is callable: a method or a generated accessor.
func (e *Entry) IsMethod() bool {
	switch e.Kind {
	case KindAccessor, KindInstanceMethod, KindSingletonMethod:
		return true
	}
	return false
}

// IsPrivate reports whether the entry was declared private.
func (e *Entry) IsPrivate() bool {
	return e.Visibility == Private
}

// SetVisibility updates the visibility; visibility declarations usually follow the declaration they affect.
func (e *Entry) SetVisibility(v Visibility) {
	e.Visibility = v
}

// FileName returns the base name of the declaring file.
func (e *Entry) FileName() string {
	return filepath.Base(e.FilePath)
}

// ShortName is the last segment of the qualified name.
func (e *Entry) ShortName() string {
	return LastSegment(e.Name)
}

// Parameters returns the parameters of the first signature. Accessors derive theirs from the
// name: a writer (`name=`) takes one required parameter.
func (e *Entry) Parameters() []Parameter {
	switch e.Kind {
	case KindAccessor:
		if strings.HasSuffix(e.Name, "=") {
			return []Parameter{{Kind: RequiredParameter, Name: strings.TrimSuffix(e.Name, "=")}}
		}
		return nil
	case KindInstanceMethod, KindSingletonMethod:
		if len(e.Signatures) == 0 {
			return nil
		}
		return e.Signatures[0].Parameters
	default:
		return nil
	}
}

// SameDeclaration compares entries by declaration site, not by name.
func SameDeclaration(a, b *Entry) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.FilePath == b.FilePath && a.Location == b.Location
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	out := *e
	out.Comments = cloneStrings(e.Comments)
	out.Nesting = cloneStrings(e.Nesting)
	out.IncludedModules = cloneStrings(e.IncludedModules)
	out.PrependedModules = cloneStrings(e.PrependedModules)
	out.ExtendedModules = cloneStrings(e.ExtendedModules)
	if e.Signatures != nil {
		out.Signatures = make([]Signature, len(e.Signatures))
		for i, sig := range e.Signatures {
			out.Signatures[i] = Signature{Parameters: append([]Parameter(nil), sig.Parameters...)}
		}
	}
	return &out
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string(nil), values...)
}

// LastSegment returns the text after the final "::" of a qualified name.
func LastSegment(name string) string {
	if idx := strings.LastIndex(name, Separator); idx != -1 {
		return name[idx+len(Separator):]
	}
	return name
}

// Qualify joins nesting and name into a qualified name.
func Qualify(nesting []string, name string) string {
	if len(nesting) == 0 {
		return name
	}
	return strings.Join(nesting, Separator) + Separator + name
}

// SingletonClassName returns the synthetic namespace name for the class of attached, e.g.
// `Foo::Bar::<Class:Bar>`.
func SingletonClassName(attached string) string {
	return attached + Separator + SingletonSegment(LastSegment(attached))
}

// SingletonSegment is the nesting segment of a singleton class.
func SingletonSegment(shortName string) string {
	return "<Class:" + shortName + ">"
}

// AttachedName returns the namespace a singleton class name belongs to, if name is one.
func AttachedName(name string) (string, bool) {
	last := LastSegment(name)
	if !strings.HasPrefix(last, "<Class:") || !strings.HasSuffix(last, ">") {
		return "", false
	}
	if len(name) == len(last) {
		return "", false
	}
	return name[:len(name)-len(last)-len(Separator)], true
}

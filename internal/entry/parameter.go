package entry

// ParameterKind identifies the shape of a method parameter.
type ParameterKind uint8

const (
	RequiredParameter ParameterKind = iota + 1
	OptionalParameter
	KeywordParameter
	OptionalKeywordParameter
	RestParameter
	KeywordRestParameter
	BlockParameter
)

// Names used when a splat or block parameter has no name of its own.
const (
	AnonymousSplat        = "<anonymous splat>"
	AnonymousKeywordSplat = "<anonymous keyword splat>"
	AnonymousBlock        = "<anonymous block>"
)

func (k ParameterKind) String() string {
	switch k {
	case RequiredParameter:
		return "RequiredParameter"
	case OptionalParameter:
		return "OptionalParameter"
	case KeywordParameter:
		return "KeywordParameter"
	case OptionalKeywordParameter:
		return "OptionalKeywordParameter"
	case RestParameter:
		return "RestParameter"
	case KeywordRestParameter:
		return "KeywordRestParameter"
	case BlockParameter:
		return "BlockParameter"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the known parameter kinds.
func (k ParameterKind) Valid() bool {
	return k >= RequiredParameter && k <= BlockParameter
}

// Parameter is a single method parameter. Name excludes any splat or block sigil.
type Parameter struct {
	Kind ParameterKind
	Name string
}

// DecoratedName renders the parameter the way it appears in a signature, e.g. `*rest`, `key:` or `&blk`.
func (p Parameter) DecoratedName() string {
	switch p.Kind {
	case KeywordParameter, OptionalKeywordParameter:
		return p.Name + ":"
	case RestParameter:
		return "*" + p.Name
	case KeywordRestParameter:
		return "**" + p.Name
	case BlockParameter:
		return "&" + p.Name
	default:
		return p.Name
	}
}

// Signature is one overload of a method.
type Signature struct {
	Parameters []Parameter
}

// Format renders the overload as a parenthesized, comma separated list of decorated names.
func (s Signature) Format() string {
	out := "("
	for i, param := range s.Parameters {
		if i > 0 {
			out += ", "
		}
		out += param.DecoratedName()
	}
	return out + ")"
}

// DecoratedNames returns the decorated name of every parameter, in order.
func DecoratedNames(params []Parameter) []string {
	out := make([]string, 0, len(params))
	for _, param := range params {
		out = append(out, param.DecoratedName())
	}
	return out
}

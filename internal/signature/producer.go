package signature

import (
	"fmt"
	"strings"

	"github.com/skelly-dev/rubyindex/internal/entry"
	"github.com/skelly-dev/rubyindex/internal/index"
	"github.com/skelly-dev/rubyindex/internal/parser"
)

// Parser turns signature manifests into the same entries the Ruby producer emits.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Language() string {
	return "signature"
}

func (p *Parser) Extensions() []string {
	return []string{".sig.yml", ".sig.yaml"}
}

func (p *Parser) Parse(filename string, content []byte, sink index.Sink) ([]parser.Issue, error) {
	manifest, err := Decode(content)
	if err != nil {
		return nil, err
	}
	e := &emitter{path: filename, sink: sink}
	for _, decl := range manifest.Declarations {
		e.declaration(decl, nil)
	}
	return e.issues, nil
}

type emitter struct {
	path   string
	sink   index.Sink
	issues []parser.Issue
}

func (e *emitter) declaration(decl Declaration, nesting []string) {
	if decl.Name == "" {
		e.issue(decl.sourceLine, "%s declaration without a name", decl.Kind)
		return
	}
	name := strings.TrimPrefix(decl.Name, entry.Separator)
	site := entry.Site{
		FilePath: e.path,
		Location: location(decl.Location, decl.Line, decl.sourceLine),
		Comments: comments(decl.Comment),
	}
	site.NameLocation = site.Location

	switch decl.Kind {
	case "class", "module":
		own := append(append([]string(nil), nesting...), name)
		if strings.HasPrefix(decl.Name, entry.Separator) {
			own = []string{name}
		}
		var namespace *entry.Entry
		if decl.Kind == "class" {
			namespace = entry.NewClass(own, site, decl.Superclass)
		} else {
			namespace = entry.NewModule(own, site)
		}
		namespace.IncludedModules = append(namespace.IncludedModules, decl.Includes...)
		namespace.PrependedModules = append(namespace.PrependedModules, decl.Prepends...)
		namespace.ExtendedModules = append(namespace.ExtendedModules, decl.Extends...)
		e.sink.Add(namespace)

		for _, member := range decl.Members {
			e.member(member, namespace)
		}
		for _, nested := range decl.Nested {
			e.declaration(nested, own)
		}
	case "constant":
		e.sink.Add(entry.NewConstant(qualify(nesting, decl.Name), site))
	case "class_alias", "module_alias":
		if decl.Target == "" {
			e.issue(decl.sourceLine, "alias %s without a target", decl.Name)
			return
		}
		e.sink.Add(entry.NewUnresolvedAlias(decl.Target, append([]string(nil), nesting...), qualify(nesting, decl.Name), site))
	default:
		e.issue(decl.sourceLine, "unknown declaration kind %q for %s", decl.Kind, decl.Name)
	}
}

func (e *emitter) member(member Member, owner *entry.Entry) {
	if member.Name == "" {
		e.issue(member.sourceLine, "%s member of %s without a name", member.Kind, owner.Name)
		return
	}
	site := entry.Site{
		FilePath: e.path,
		Location: location(member.Location, member.Line, member.sourceLine),
		Comments: comments(member.Comment),
	}
	site.NameLocation = site.Location
	visibility := entry.ParseVisibility(member.Visibility)

	switch member.Kind {
	case "method", "":
		e.sink.Add(entry.NewInstanceMethod(member.Name, site, signatures(member.Overloads), visibility, owner.Name))
	case "singleton_method":
		singleton := e.sink.ExistingOrNewSingletonClass(owner)
		e.sink.Add(entry.NewSingletonMethod(member.Name, site, signatures(member.Overloads), visibility, singleton.Name))
	case "attr_reader":
		e.sink.Add(entry.NewAccessor(member.Name, site, visibility, owner.Name))
	case "attr_writer":
		e.sink.Add(entry.NewAccessor(member.Name+"=", site, visibility, owner.Name))
	case "attr_accessor":
		e.sink.Add(entry.NewAccessor(member.Name, site, visibility, owner.Name))
		e.sink.Add(entry.NewAccessor(member.Name+"=", site, visibility, owner.Name))
	default:
		e.issue(member.sourceLine, "unknown member kind %q for %s", member.Kind, member.Name)
	}
}

// signatures converts each overload to one Signature. A method without overloads takes no
// parameters.
func signatures(overloads []Overload) []entry.Signature {
	if len(overloads) == 0 {
		return []entry.Signature{{}}
	}
	out := make([]entry.Signature, 0, len(overloads))
	for _, overload := range overloads {
		out = append(out, entry.Signature{Parameters: overload.parameters()})
	}
	return out
}

// parameters orders the overload's parameters: required positionals, optional positionals,
// required keywords, optional keywords, trailing positionals, rest positionals, rest keywords,
// then one block parameter per required positional of a required block.
func (o Overload) parameters() []entry.Parameter {
	var params []entry.Parameter
	position := 0
	positional := func(kind entry.ParameterKind, list []Param) {
		for _, param := range list {
			name := param.Name
			if name == "" {
				name = fmt.Sprintf("arg%d", position)
			}
			position++
			params = append(params, entry.Parameter{Kind: kind, Name: name})
		}
	}

	positional(entry.RequiredParameter, o.RequiredPositionals)
	positional(entry.OptionalParameter, o.OptionalPositionals)
	for _, name := range o.RequiredKeywords {
		params = append(params, entry.Parameter{Kind: entry.KeywordParameter, Name: name})
	}
	for _, name := range o.OptionalKeywords {
		params = append(params, entry.Parameter{Kind: entry.OptionalKeywordParameter, Name: name})
	}
	positional(entry.RequiredParameter, o.TrailingPositionals)
	if o.RestPositionals != nil {
		params = append(params, entry.Parameter{Kind: entry.RestParameter, Name: orDefault(o.RestPositionals.Name, entry.AnonymousSplat)})
	}
	if o.RestKeywords != nil {
		params = append(params, entry.Parameter{Kind: entry.KeywordRestParameter, Name: orDefault(o.RestKeywords.Name, entry.AnonymousKeywordSplat)})
	}
	if o.Block != nil && o.Block.Required {
		for _, param := range o.Block.RequiredPositionals {
			params = append(params, entry.Parameter{Kind: entry.BlockParameter, Name: orDefault(param.Name, "blk")})
		}
	}
	return params
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func qualify(nesting []string, name string) string {
	if strings.HasPrefix(name, entry.Separator) {
		return strings.TrimPrefix(name, entry.Separator)
	}
	return entry.Qualify(nesting, name)
}

func comments(comment string) []string {
	comment = strings.TrimRight(comment, "\n")
	if comment == "" {
		return nil
	}
	return strings.Split(comment, "\n")
}

func (e *emitter) issue(line int, format string, args ...any) {
	e.issues = append(e.issues, parser.Issue{
		File:     e.path,
		Severity: parser.SeverityWarning,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	})
}

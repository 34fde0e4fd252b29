package languages

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"

	"github.com/skelly-dev/rubyindex/internal/entry"
	"github.com/skelly-dev/rubyindex/internal/index"
	"github.com/skelly-dev/rubyindex/internal/parser"
)

// topLevelOwner owns methods defined outside any namespace.
const topLevelOwner = "Object"

var magicComment = regexp.MustCompile(`^\s*(frozen_string_literal|typed|encoding|coding|warn_indent|shareable_constant_value)\s*:`)

// RubyParser implements the Ruby source producer
type RubyParser struct {
	parsers sync.Pool
}

// NewRubyParser creates a new Ruby parser. A tree-sitter parser is not safe for concurrent use,
// so each Parse call borrows one from a pool.
func NewRubyParser() *RubyParser {
	r := &RubyParser{}
	r.parsers.New = func() any {
		p := sitter.NewParser()
		p.SetLanguage(ruby.GetLanguage())
		return p
	}
	return r
}

func (r *RubyParser) Language() string {
	return "ruby"
}

func (r *RubyParser) Extensions() []string {
	return []string{".rb", ".rake", ".gemspec", ".ru"}
}

func (r *RubyParser) Parse(filename string, content []byte, sink index.Sink) ([]parser.Issue, error) {
	p := r.parsers.Get().(*sitter.Parser)
	defer r.parsers.Put(p)

	tree, err := p.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := &rubyWalker{
		path:      filename,
		content:   content,
		sink:      sink,
		comments:  make(map[int]string),
		members:   make(map[string][]*entry.Entry),
		constants: make(map[string][]*entry.Entry),
	}
	root := tree.RootNode()
	w.collectComments(root)
	w.visitChildren(root, &rubyScope{})
	return w.issues, nil
}

// rubyScope is the lexical state of the body being walked.
type rubyScope struct {
	nesting []string
	// owner is the namespace entry being defined, nil at the top level.
	owner *entry.Entry
	// singleton is set inside `class << self`; owner is then the singleton class.
	singleton  bool
	visibility entry.Visibility
}

func (s *rubyScope) ownerName() string {
	if s.owner == nil {
		return topLevelOwner
	}
	return s.owner.Name
}

type rubyWalker struct {
	path    string
	content []byte
	sink    index.Sink
	// comments maps a 1-based line to the text of a comment occupying the whole line.
	comments map[int]string
	// members and constants remember emitted entries so later visibility calls can update them.
	members   map[string][]*entry.Entry
	constants map[string][]*entry.Entry
	emitted   []*entry.Entry
	issues    []parser.Issue
}

func (w *rubyWalker) visitChildren(node *sitter.Node, scope *rubyScope) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		w.visit(node.NamedChild(i), scope)
	}
}

func (w *rubyWalker) visit(node *sitter.Node, scope *rubyScope) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "ERROR":
		w.issue(node, "syntax error, declarations in this range were skipped")
		return
	case "comment":
		return
	case "class":
		w.visitClass(node, scope)
		return
	case "module":
		w.visitModule(node, scope)
		return
	case "singleton_class":
		w.visitSingletonClass(node, scope)
		return
	case "method":
		w.visitMethod(node, scope)
		return
	case "singleton_method":
		w.visitSingletonMethod(node, scope)
		return
	case "assignment", "operator_assignment":
		w.visitAssignment(node, scope)
		return
	case "identifier":
		w.visitBareIdentifier(node, scope)
		return
	case "call", "command", "method_call":
		if w.visitCall(node, scope) {
			return
		}
	}
	w.visitChildren(node, scope)
}

func (w *rubyWalker) visitBody(node *sitter.Node, scope *rubyScope) {
	if body := node.ChildByFieldName("body"); body != nil {
		w.visitChildren(body, scope)
	}
}

func (w *rubyWalker) visitClass(node *sitter.Node, scope *rubyScope) {
	nameNode := node.ChildByFieldName("name")
	nesting, ok := w.declarationNesting(nameNode, scope)
	if !ok {
		w.issue(node, "class without a constant name")
		return
	}

	parent := ""
	if superclass := node.ChildByFieldName("superclass"); superclass != nil && superclass.NamedChildCount() > 0 {
		if expr := superclass.NamedChild(0); isConstantRef(expr) {
			parent = w.constantPath(expr)
		}
	}

	class := entry.NewClass(nesting, w.site(node, nameNode), parent)
	w.addConstantLike(class)
	w.visitBody(node, &rubyScope{nesting: nesting, owner: class})
}

func (w *rubyWalker) visitModule(node *sitter.Node, scope *rubyScope) {
	nameNode := node.ChildByFieldName("name")
	nesting, ok := w.declarationNesting(nameNode, scope)
	if !ok {
		w.issue(node, "module without a constant name")
		return
	}

	module := entry.NewModule(nesting, w.site(node, nameNode))
	w.addConstantLike(module)
	w.visitBody(node, &rubyScope{nesting: nesting, owner: module})
}

// visitSingletonClass handles `class << self`. Other receivers cannot be attributed statically.
func (w *rubyWalker) visitSingletonClass(node *sitter.Node, scope *rubyScope) {
	value := node.ChildByFieldName("value")
	if value == nil || value.Type() != "self" || scope.owner == nil || scope.singleton {
		return
	}
	singleton := w.sink.ExistingOrNewSingletonClass(scope.owner)
	w.visitBody(node, &rubyScope{nesting: scope.nesting, owner: singleton, singleton: true})
}

func (w *rubyWalker) visitMethod(node *sitter.Node, scope *rubyScope) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		w.issue(node, "method without a name")
		return
	}
	name := nameNode.Content(w.content)
	signatures := []entry.Signature{{Parameters: w.parameters(node.ChildByFieldName("parameters"))}}
	site := w.site(node, nameNode)

	var method *entry.Entry
	if scope.singleton {
		method = entry.NewSingletonMethod(name, site, signatures, scope.visibility, scope.ownerName())
	} else {
		method = entry.NewInstanceMethod(name, site, signatures, scope.visibility, scope.ownerName())
	}
	w.addMember(method)
	w.collectInstanceVariables(node.ChildByFieldName("body"), method.Owner)
}

// visitSingletonMethod handles `def self.name`. Methods defined on any other receiver are skipped.
func (w *rubyWalker) visitSingletonMethod(node *sitter.Node, scope *rubyScope) {
	object := node.ChildByFieldName("object")
	nameNode := node.ChildByFieldName("name")
	if object == nil || object.Type() != "self" || nameNode == nil || scope.owner == nil || scope.singleton {
		return
	}
	singleton := w.sink.ExistingOrNewSingletonClass(scope.owner)
	signatures := []entry.Signature{{Parameters: w.parameters(node.ChildByFieldName("parameters"))}}
	method := entry.NewSingletonMethod(nameNode.Content(w.content), w.site(node, nameNode), signatures, entry.Public, singleton.Name)
	w.addMember(method)
	w.collectInstanceVariables(node.ChildByFieldName("body"), singleton.Name)
}

func (w *rubyWalker) parameters(node *sitter.Node) []entry.Parameter {
	if node == nil {
		return nil
	}
	params := make([]entry.Parameter, 0, node.NamedChildCount())
	for i := 0; i < int(node.NamedChildCount()); i++ {
		param := node.NamedChild(i)
		switch param.Type() {
		case "identifier":
			params = append(params, entry.Parameter{Kind: entry.RequiredParameter, Name: param.Content(w.content)})
		case "destructured_parameter":
			params = append(params, entry.Parameter{Kind: entry.RequiredParameter, Name: w.destructuredName(param)})
		case "optional_parameter":
			params = append(params, entry.Parameter{Kind: entry.OptionalParameter, Name: w.fieldText(param, "name", "")})
		case "keyword_parameter":
			kind := entry.KeywordParameter
			if param.ChildByFieldName("value") != nil {
				kind = entry.OptionalKeywordParameter
			}
			params = append(params, entry.Parameter{Kind: kind, Name: w.fieldText(param, "name", "")})
		case "splat_parameter":
			params = append(params, entry.Parameter{Kind: entry.RestParameter, Name: w.fieldText(param, "name", entry.AnonymousSplat)})
		case "hash_splat_parameter":
			params = append(params, entry.Parameter{Kind: entry.KeywordRestParameter, Name: w.fieldText(param, "name", entry.AnonymousKeywordSplat)})
		case "block_parameter":
			params = append(params, entry.Parameter{Kind: entry.BlockParameter, Name: w.fieldText(param, "name", entry.AnonymousBlock)})
		case "forward_parameter":
			params = append(params,
				entry.Parameter{Kind: entry.RestParameter, Name: entry.AnonymousSplat},
				entry.Parameter{Kind: entry.KeywordRestParameter, Name: entry.AnonymousKeywordSplat},
				entry.Parameter{Kind: entry.BlockParameter, Name: entry.AnonymousBlock},
			)
		}
	}
	return params
}

// destructuredName renders a destructured parameter as `(a, (b, ), *c)` regardless of its source
// spacing. A trailing comma is an implicit rest and renders as an empty slot.
func (w *rubyWalker) destructuredName(node *sitter.Node) string {
	var parts []string
	trailingComma := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch {
		case child.Type() == "comment":
		case child.IsNamed():
			parts = append(parts, w.destructuredElement(child))
			trailingComma = false
		case child.Type() == ",":
			trailingComma = true
		}
	}
	if trailingComma {
		parts = append(parts, "")
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (w *rubyWalker) destructuredElement(node *sitter.Node) string {
	switch node.Type() {
	case "destructured_parameter":
		return w.destructuredName(node)
	case "splat_parameter":
		return "*" + w.fieldText(node, "name", "")
	default:
		return strings.Join(strings.Fields(node.Content(w.content)), " ")
	}
}

func (w *rubyWalker) visitAssignment(node *sitter.Node, scope *rubyScope) {
	left := node.ChildByFieldName("left")
	if left == nil {
		return
	}
	var value *sitter.Node
	if node.Type() == "assignment" {
		value = node.ChildByFieldName("right")
	}

	switch left.Type() {
	case "constant", "scope_resolution":
		w.addConstant(node, left, value, scope)
	case "instance_variable":
		w.addClassInstanceVariable(left, scope)
	case "left_assignment_list":
		for i := 0; i < int(left.NamedChildCount()); i++ {
			target := left.NamedChild(i)
			switch target.Type() {
			case "constant", "scope_resolution":
				w.addConstant(node, target, nil, scope)
			case "instance_variable":
				w.addClassInstanceVariable(target, scope)
			}
		}
	}
}

// addConstant records `NAME = value`. A value that is itself a constant reference becomes an
// unresolved alias, resolved later against the nesting it was written in.
func (w *rubyWalker) addConstant(node, target, value *sitter.Node, scope *rubyScope) {
	if !isConstantRef(target) {
		return
	}
	name := w.qualify(w.constantPath(target), scope)
	site := w.site(node, target)
	if value != nil && isConstantRef(value) {
		w.addConstantLike(entry.NewUnresolvedAlias(w.constantPath(value), append([]string(nil), scope.nesting...), name, site))
		return
	}
	w.addConstantLike(entry.NewConstant(name, site))
}

// addClassInstanceVariable records an instance variable written in a class body, which belongs to
// the singleton class.
func (w *rubyWalker) addClassInstanceVariable(node *sitter.Node, scope *rubyScope) {
	if scope.owner == nil {
		return
	}
	owner := scope.owner
	if !scope.singleton {
		owner = w.sink.ExistingOrNewSingletonClass(scope.owner)
	}
	w.addInstanceVariable(node, owner.Name)
}

func (w *rubyWalker) collectInstanceVariables(node *sitter.Node, owner string) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "class", "module", "singleton_class", "method", "singleton_method":
		return
	case "assignment", "operator_assignment":
		w.instanceVariableTargets(node.ChildByFieldName("left"), owner)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		w.collectInstanceVariables(node.NamedChild(i), owner)
	}
}

func (w *rubyWalker) instanceVariableTargets(node *sitter.Node, owner string) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "instance_variable":
		w.addInstanceVariable(node, owner)
	case "left_assignment_list", "destructured_left_assignment", "rest_assignment":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			w.instanceVariableTargets(node.NamedChild(i), owner)
		}
	}
}

func (w *rubyWalker) addInstanceVariable(node *sitter.Node, owner string) {
	w.sink.Add(entry.NewInstanceVariable(node.Content(w.content), w.site(node, node), owner))
}

// visitBareIdentifier handles argument-less `private`, `protected` and `public`, which change the
// default visibility of the methods that follow in the same body.
func (w *rubyWalker) visitBareIdentifier(node *sitter.Node, scope *rubyScope) {
	parent := node.Parent()
	if parent == nil {
		return
	}
	switch parent.Type() {
	case "body_statement", "program", "class", "module", "singleton_class":
	default:
		return
	}
	switch name := node.Content(w.content); name {
	case "private", "protected", "public":
		scope.visibility = entry.ParseVisibility(name)
	}
}

// visitCall handles the declaration-like calls. It reports false for any other call so the caller
// keeps walking into its arguments and block.
func (w *rubyWalker) visitCall(node *sitter.Node, scope *rubyScope) bool {
	method := node.ChildByFieldName("method")
	if method == nil {
		return false
	}
	receiver := node.ChildByFieldName("receiver")
	if receiver != nil && receiver.Type() != "self" {
		switch method.Content(w.content) {
		case "attr_reader", "attr_writer", "attr_accessor", "include", "prepend", "extend":
			return true
		}
		return false
	}
	args := node.ChildByFieldName("arguments")

	switch name := method.Content(w.content); name {
	case "attr_reader", "attr_writer", "attr_accessor":
		w.addAccessors(node, args, name, scope)
	case "include", "prepend", "extend":
		w.addMixins(args, name, scope)
	case "private", "protected", "public":
		w.applyVisibility(args, entry.ParseVisibility(name), scope)
	case "private_constant", "public_constant":
		w.applyConstantVisibility(args, name == "private_constant", scope)
	case "private_class_method", "public_class_method":
		w.applyClassMethodVisibility(args, name == "private_class_method", scope)
	default:
		return false
	}
	return true
}

func (w *rubyWalker) addAccessors(call, args *sitter.Node, kind string, scope *rubyScope) {
	if args == nil {
		return
	}
	comments := w.commentsFor(call)
	for i := 0; i < int(args.NamedChildCount()); i++ {
		name, loc, ok := w.symbolArgument(args.NamedChild(i))
		if !ok || !isIdentifier(name) {
			continue
		}
		site := entry.Site{FilePath: w.path, Location: loc, NameLocation: loc, Comments: comments}
		if kind != "attr_writer" {
			w.addMember(entry.NewAccessor(name, site, scope.visibility, scope.ownerName()))
		}
		if kind != "attr_reader" {
			w.addMember(entry.NewAccessor(name+"=", site, scope.visibility, scope.ownerName()))
		}
	}
}

// addMixins appends mixin references. Ruby inserts the arguments of a single call last to first,
// so `include A, B` is recorded as B then A and linearizes as A, B.
func (w *rubyWalker) addMixins(args *sitter.Node, kind string, scope *rubyScope) {
	if args == nil || scope.owner == nil {
		return
	}
	names := make([]string, 0, args.NamedChildCount())
	for i := 0; i < int(args.NamedChildCount()); i++ {
		if arg := args.NamedChild(i); isConstantRef(arg) {
			names = append(names, w.constantPath(arg))
		}
	}
	owner := scope.owner
	for i := len(names) - 1; i >= 0; i-- {
		switch kind {
		case "include":
			owner.IncludedModules = append(owner.IncludedModules, names[i])
		case "prepend":
			owner.PrependedModules = append(owner.PrependedModules, names[i])
		case "extend":
			owner.ExtendedModules = append(owner.ExtendedModules, names[i])
		}
	}
}

// applyVisibility handles `private` with arguments: method names, or declarations such as
// `private def foo` and `private attr_reader :bar` whose entries are updated after they are emitted.
func (w *rubyWalker) applyVisibility(args *sitter.Node, visibility entry.Visibility, scope *rubyScope) {
	if args == nil || args.NamedChildCount() == 0 {
		scope.visibility = visibility
		return
	}
	owner := scope.ownerName()
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if name, _, ok := w.symbolArgument(arg); ok {
			for _, member := range w.members[memberKey(owner, name)] {
				member.SetVisibility(visibility)
			}
			continue
		}
		before := len(w.emitted)
		w.visit(arg, scope)
		for _, member := range w.emitted[before:] {
			if member.Owner == owner && member.Kind != entry.KindInstanceVariable {
				member.SetVisibility(visibility)
			}
		}
	}
}

func (w *rubyWalker) applyConstantVisibility(args *sitter.Node, private bool, scope *rubyScope) {
	if args == nil {
		return
	}
	visibility := entry.Public
	if private {
		visibility = entry.Private
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		name, _, ok := w.symbolArgument(args.NamedChild(i))
		if !ok {
			continue
		}
		for _, constant := range w.constants[w.qualify(name, scope)] {
			constant.SetVisibility(visibility)
		}
	}
}

func (w *rubyWalker) applyClassMethodVisibility(args *sitter.Node, private bool, scope *rubyScope) {
	if args == nil || scope.owner == nil || scope.singleton {
		return
	}
	visibility := entry.Public
	if private {
		visibility = entry.Private
	}
	owner := entry.SingletonClassName(scope.owner.Name)
	for i := 0; i < int(args.NamedChildCount()); i++ {
		name, _, ok := w.symbolArgument(args.NamedChild(i))
		if !ok {
			continue
		}
		for _, member := range w.members[memberKey(owner, name)] {
			member.SetVisibility(visibility)
		}
	}
}

func (w *rubyWalker) addMember(e *entry.Entry) {
	w.sink.Add(e)
	key := memberKey(e.Owner, e.Name)
	w.members[key] = append(w.members[key], e)
	w.emitted = append(w.emitted, e)
}

func (w *rubyWalker) addConstantLike(e *entry.Entry) {
	w.sink.Add(e)
	w.constants[e.Name] = append(w.constants[e.Name], e)
}

func memberKey(owner, name string) string {
	return owner + "#" + name
}

// declarationNesting returns the nesting of a class or module declared with nameNode. A name
// written as `::Foo` starts a new top-level nesting.
func (w *rubyWalker) declarationNesting(nameNode *sitter.Node, scope *rubyScope) ([]string, bool) {
	if nameNode == nil || !isConstantRef(nameNode) {
		return nil, false
	}
	path := w.constantPath(nameNode)
	if strings.HasPrefix(path, entry.Separator) {
		return []string{strings.TrimPrefix(path, entry.Separator)}, true
	}
	return append(append([]string(nil), scope.nesting...), path), true
}

func (w *rubyWalker) qualify(path string, scope *rubyScope) string {
	if strings.HasPrefix(path, entry.Separator) {
		return strings.TrimPrefix(path, entry.Separator)
	}
	if len(scope.nesting) == 0 {
		return path
	}
	return strings.Join(scope.nesting, entry.Separator) + entry.Separator + path
}

// constantPath renders a constant reference without whitespace, e.g. `A::B` or `::C`.
func (w *rubyWalker) constantPath(node *sitter.Node) string {
	return strings.Join(strings.Fields(node.Content(w.content)), "")
}

// isConstantRef reports whether node is a constant or a chain of constants (`A::B`, `::C`).
func isConstantRef(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	switch node.Type() {
	case "constant":
		return true
	case "scope_resolution":
		name := node.ChildByFieldName("name")
		if name == nil || name.Type() != "constant" {
			return false
		}
		scope := node.ChildByFieldName("scope")
		return scope == nil || isConstantRef(scope)
	}
	return false
}

// symbolArgument extracts the name and location of a `:sym`, `:"sym"` or `"sym"` argument,
// excluding its sigil and quotes.
func (w *rubyWalker) symbolArgument(node *sitter.Node) (string, entry.Location, bool) {
	switch node.Type() {
	case "simple_symbol":
		text := node.Content(w.content)
		if len(text) < 2 {
			return "", entry.Location{}, false
		}
		loc := nodeLocation(node)
		loc.StartColumn++
		return text[1:], loc, true
	case "string", "delimited_symbol":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "string_content" && node.NamedChildCount() == 1 {
				return child.Content(w.content), nodeLocation(child), true
			}
		}
	}
	return "", entry.Location{}, false
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r > 127:
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func (w *rubyWalker) fieldText(node *sitter.Node, field, fallback string) string {
	if child := node.ChildByFieldName(field); child != nil {
		return child.Content(w.content)
	}
	return fallback
}

func (w *rubyWalker) site(node, nameNode *sitter.Node) entry.Site {
	return entry.Site{
		FilePath:     w.path,
		Location:     nodeLocation(node),
		NameLocation: nodeLocation(nameNode),
		Comments:     w.commentsFor(node),
	}
}

func nodeLocation(node *sitter.Node) entry.Location {
	start, end := node.StartPoint(), node.EndPoint()
	return entry.NewLocation(int(start.Row)+1, int(end.Row)+1, int(start.Column), int(end.Column))
}

// collectComments records every `#` comment that is alone on its line.
func (w *rubyWalker) collectComments(node *sitter.Node) {
	if node.Type() == "comment" {
		text := node.Content(w.content)
		start := node.StartPoint()
		if strings.HasPrefix(text, "#") && start.Row == node.EndPoint().Row && w.onlyIndentBefore(node) {
			text = strings.TrimPrefix(text, "#")
			text = strings.TrimPrefix(text, " ")
			w.comments[int(start.Row)+1] = strings.TrimRight(text, "\r")
		}
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		w.collectComments(node.NamedChild(i))
	}
}

func (w *rubyWalker) onlyIndentBefore(node *sitter.Node) bool {
	for i := int(node.StartByte()) - 1; i >= 0; i-- {
		switch w.content[i] {
		case '\n':
			return true
		case ' ', '\t':
		default:
			return false
		}
	}
	return true
}

// commentsFor returns the block of comment lines directly above node, skipping magic comments.
func (w *rubyWalker) commentsFor(node *sitter.Node) []string {
	line := int(node.StartPoint().Row)
	var lines []string
	for {
		text, ok := w.comments[line]
		if !ok {
			break
		}
		if !magicComment.MatchString(text) {
			lines = append(lines, text)
		}
		line--
	}
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines
}

func (w *rubyWalker) issue(node *sitter.Node, message string) {
	w.issues = append(w.issues, parser.Issue{
		File:     w.path,
		Severity: parser.SeverityWarning,
		Line:     int(node.StartPoint().Row) + 1,
		Message:  fmt.Sprintf("%s (%s)", message, strings.TrimSpace(firstLine(node.Content(w.content)))),
	})
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx != -1 {
		return text[:idx]
	}
	return text
}

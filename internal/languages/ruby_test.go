package languages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skelly-dev/rubyindex/internal/entry"
	"github.com/skelly-dev/rubyindex/internal/index"
	"github.com/skelly-dev/rubyindex/internal/parser"
)

const fakePath = "/fake/path/foo.rb"

func indexRuby(t *testing.T, source string) (*index.Index, []parser.Issue) {
	t.Helper()
	idx := index.New()
	issues, err := NewRubyParser().Parse(fakePath, []byte(source), idx)
	require.NoError(t, err)
	return idx, issues
}

func only(t *testing.T, idx *index.Index, name string) *entry.Entry {
	t.Helper()
	found := idx.Lookup(name)
	require.Len(t, found, 1, name)
	return found[0]
}

func TestRubyParserIndexesNamespaces(t *testing.T) {
	idx, issues := indexRuby(t, `module Outer
  class Inner < Base
  end

  class ::TopLevel
  end

  module Deep::Nested
  end
end
`)
	assert.Empty(t, issues)

	outer := only(t, idx, "Outer")
	assert.Equal(t, entry.KindModule, outer.Kind)
	assert.Equal(t, entry.NewLocation(1, 10, 0, 3), outer.Location)
	assert.Equal(t, entry.NewLocation(1, 1, 7, 12), outer.NameLocation)

	inner := only(t, idx, "Outer::Inner")
	assert.Equal(t, entry.KindClass, inner.Kind)
	assert.Equal(t, "Base", inner.ParentClass)
	assert.Equal(t, []string{"Outer", "Inner"}, inner.Nesting)

	top := only(t, idx, "TopLevel")
	assert.Equal(t, []string{"TopLevel"}, top.Nesting)

	nested := only(t, idx, "Outer::Deep::Nested")
	assert.Equal(t, []string{"Outer", "Deep::Nested"}, nested.Nesting)
}

func TestRubyParserReopenedClassesKeepOrder(t *testing.T) {
	idx, _ := indexRuby(t, `class Foo
end

class Foo
end
`)
	found := idx.Lookup("Foo")
	require.Len(t, found, 2)
	assert.Equal(t, 1, found[0].Location.StartLine)
	assert.Equal(t, 4, found[1].Location.StartLine)
}

func TestRubyParserMethodsAndOwners(t *testing.T) {
	idx, _ := indexRuby(t, `class Foo
  def bar
  end

  def self.baz
  end

  def String.qux
  end
end

def helper
end
`)
	bar := only(t, idx, "bar")
	assert.Equal(t, entry.KindInstanceMethod, bar.Kind)
	assert.Equal(t, "Foo", bar.Owner)
	assert.Equal(t, entry.NewLocation(2, 3, 2, 5), bar.Location)

	baz := only(t, idx, "baz")
	assert.Equal(t, entry.KindSingletonMethod, baz.Kind)
	assert.Equal(t, "Foo::<Class:Foo>", baz.Owner)
	assert.Len(t, idx.Lookup("Foo::<Class:Foo>"), 1)
	assert.Empty(t, idx.PrefixSearch("Foo::<", nil))

	assert.Empty(t, idx.Lookup("qux"))

	helper := only(t, idx, "helper")
	assert.Equal(t, "Object", helper.Owner)
	assert.Len(t, idx.ResolveMethod("helper", "Object"), 1)
}

func TestRubyParserParametersInDeclarationOrder(t *testing.T) {
	idx, _ := indexRuby(t, `class Foo
  def bar(a, b = 123, *c, d:, e: 456, **f, &g)
  end

  def destructured((a, (b, )))
  end

  def anonymous(*, **, &)
  end

  def forbidden(**nil)
  end

  def post(*a, b)
  end

  def compact((a,(b,)), (c,
      d))
  end

  def splatted((first, *rest))
  end
end
`)
	bar := only(t, idx, "bar")
	assert.Equal(t, []string{"a", "b", "*c", "d:", "e:", "**f", "&g"}, entry.DecoratedNames(bar.Parameters()))
	assert.Equal(t, []entry.ParameterKind{
		entry.RequiredParameter,
		entry.OptionalParameter,
		entry.RestParameter,
		entry.KeywordParameter,
		entry.OptionalKeywordParameter,
		entry.KeywordRestParameter,
		entry.BlockParameter,
	}, parameterKinds(bar.Parameters()))
	require.Len(t, bar.Signatures, 1)

	destructured := only(t, idx, "destructured")
	require.Len(t, destructured.Parameters(), 1)
	assert.Equal(t, entry.Parameter{Kind: entry.RequiredParameter, Name: "(a, (b, ))"}, destructured.Parameters()[0])

	compact := only(t, idx, "compact")
	assert.Equal(t, []entry.Parameter{
		{Kind: entry.RequiredParameter, Name: "(a, (b, ))"},
		{Kind: entry.RequiredParameter, Name: "(c, d)"},
	}, compact.Parameters())

	splatted := only(t, idx, "splatted")
	assert.Equal(t, []string{"(first, *rest)"}, entry.DecoratedNames(splatted.Parameters()))

	anonymous := only(t, idx, "anonymous")
	assert.Equal(t, []entry.Parameter{
		{Kind: entry.RestParameter, Name: entry.AnonymousSplat},
		{Kind: entry.KeywordRestParameter, Name: entry.AnonymousKeywordSplat},
		{Kind: entry.BlockParameter, Name: entry.AnonymousBlock},
	}, anonymous.Parameters())

	assert.Empty(t, only(t, idx, "forbidden").Parameters())

	post := only(t, idx, "post")
	assert.Equal(t, []entry.ParameterKind{entry.RestParameter, entry.RequiredParameter}, parameterKinds(post.Parameters()))
}

func TestRubyParserAccessorsAndComments(t *testing.T) {
	idx, _ := indexRuby(t, `class Foo
  # Hello there
  attr_reader :bar, :other
  attr_writer :baz
  attr_accessor :qux
end

Foo.attr_reader :ignored
`)
	bar := only(t, idx, "bar")
	assert.Equal(t, entry.KindAccessor, bar.Kind)
	assert.Equal(t, entry.NewLocation(3, 3, 15, 18), bar.Location)
	assert.Equal(t, []string{"Hello there"}, bar.Comments)
	assert.Equal(t, []string{"Hello there"}, only(t, idx, "other").Comments)
	assert.Equal(t, "Foo", bar.Owner)

	assert.Empty(t, idx.Lookup("baz"))
	writer := only(t, idx, "baz=")
	assert.Equal(t, []string{"baz"}, entry.DecoratedNames(writer.Parameters()))

	assert.Len(t, idx.Lookup("qux"), 1)
	assert.Len(t, idx.Lookup("qux="), 1)
	assert.Empty(t, idx.Lookup("ignored"))
}

func TestRubyParserCommentsSkipMagicAndDetachedLines(t *testing.T) {
	idx, _ := indexRuby(t, `# frozen_string_literal: true
# Documents Foo
# over two lines
class Foo
  # detached

  def bar # trailing
  end
end
`)
	assert.Equal(t, []string{"Documents Foo", "over two lines"}, only(t, idx, "Foo").Comments)
	assert.Empty(t, only(t, idx, "bar").Comments)
}

func TestRubyParserConstantsAndAliases(t *testing.T) {
	idx, _ := indexRuby(t, `module Config
  LIMIT = 10
  Other::VALUE = 1
  ::GLOBAL = 2
  ALIAS = Target
  QUALIFIED = ::Some::Target
  CACHE ||= {}
  A, B = 1, 2
end
`)
	limit := only(t, idx, "Config::LIMIT")
	assert.Equal(t, entry.KindConstant, limit.Kind)
	assert.Equal(t, entry.NewLocation(2, 2, 2, 12), limit.Location)
	assert.Equal(t, entry.NewLocation(2, 2, 2, 7), limit.NameLocation)

	only(t, idx, "Config::Other::VALUE")
	only(t, idx, "GLOBAL")
	only(t, idx, "Config::CACHE")
	only(t, idx, "Config::A")
	only(t, idx, "Config::B")

	alias := only(t, idx, "Config::ALIAS")
	assert.Equal(t, entry.KindUnresolvedAlias, alias.Kind)
	assert.Equal(t, "Target", alias.Target)
	assert.Equal(t, []string{"Config"}, alias.Nesting)

	assert.Equal(t, "::Some::Target", only(t, idx, "Config::QUALIFIED").Target)
}

func TestRubyParserMixinOrder(t *testing.T) {
	idx, _ := indexRuby(t, `module A
end

module B
end

module C
end

class Foo
  include A, B
  prepend C
  extend B
end
`)
	foo := only(t, idx, "Foo")
	assert.Equal(t, []string{"B", "A"}, foo.IncludedModules)
	assert.Equal(t, []string{"C"}, foo.PrependedModules)
	assert.Equal(t, []string{"B"}, foo.ExtendedModules)

	ancestors, err := idx.LinearizedAncestorsOf("Foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "Foo", "A", "B", "Object", "BasicObject"}, ancestors)

	singleton, err := idx.LinearizedAncestorsOf("Foo::<Class:Foo>")
	require.NoError(t, err)
	assert.Equal(t, []string{"Foo::<Class:Foo>", "B"}, singleton[:2])
}

func TestRubyParserVisibility(t *testing.T) {
	idx, _ := indexRuby(t, `class Foo
  def open
  end

  private

  def hidden
  end

  public

  def shown
  end

  def later
  end
  protected :later

  private def inline
  end

  private attr_reader :secret

  def self.factory
  end
  private_class_method :factory

  INTERNAL = 1
  private_constant :INTERNAL
end
`)
	assert.Equal(t, entry.Public, only(t, idx, "open").Visibility)
	assert.Equal(t, entry.Private, only(t, idx, "hidden").Visibility)
	assert.Equal(t, entry.Public, only(t, idx, "shown").Visibility)
	assert.Equal(t, entry.Protected, only(t, idx, "later").Visibility)
	assert.Equal(t, entry.Private, only(t, idx, "inline").Visibility)
	assert.Equal(t, entry.Private, only(t, idx, "secret").Visibility)
	assert.Equal(t, entry.Private, only(t, idx, "factory").Visibility)
	assert.Equal(t, entry.Private, only(t, idx, "Foo::INTERNAL").Visibility)

	assert.Nil(t, idx.ResolveMethodCall("hidden", "Foo", true))
	assert.Len(t, idx.ResolveMethodCall("hidden", "Foo", false), 1)
}

func TestRubyParserSingletonClassBody(t *testing.T) {
	idx, _ := indexRuby(t, `module Helpers
end

class Foo
  class << self
    include Helpers

    def build
    end

    private

    def secret
    end
  end
end
`)
	build := only(t, idx, "build")
	assert.Equal(t, entry.KindSingletonMethod, build.Kind)
	assert.Equal(t, "Foo::<Class:Foo>", build.Owner)
	assert.Equal(t, entry.Private, only(t, idx, "secret").Visibility)

	singleton := only(t, idx, "Foo::<Class:Foo>")
	assert.Equal(t, []string{"Helpers"}, singleton.IncludedModules)
	assert.Equal(t, []string{"Foo", "<Class:Foo>"}, singleton.Nesting)
}

func TestRubyParserInstanceVariables(t *testing.T) {
	idx, _ := indexRuby(t, `class Foo
  @registry = {}

  def initialize
    @name = "foo"
    @count ||= 0
    @a, @b = 1, 2
  end

  def self.reset
    @cache = nil
  end
end
`)
	name := only(t, idx, "@name")
	assert.Equal(t, entry.KindInstanceVariable, name.Kind)
	assert.Equal(t, "Foo", name.Owner)
	assert.Equal(t, entry.NewLocation(5, 5, 4, 9), name.Location)

	assert.Equal(t, "Foo", only(t, idx, "@count").Owner)
	assert.Equal(t, "Foo", only(t, idx, "@a").Owner)
	assert.Equal(t, "Foo", only(t, idx, "@b").Owner)
	assert.Equal(t, "Foo::<Class:Foo>", only(t, idx, "@registry").Owner)
	assert.Equal(t, "Foo::<Class:Foo>", only(t, idx, "@cache").Owner)

	assert.Len(t, idx.ResolveInstanceVariable("@name", "Foo"), 1)
}

func TestRubyParserSkipsMalformedDeclarations(t *testing.T) {
	idx, issues := indexRuby(t, `class Good
end

class foo::Bar
end

class Also
  def fine
  end
end
`)
	assert.Len(t, idx.Lookup("Good"), 1)
	assert.Len(t, idx.Lookup("Also"), 1)
	assert.Len(t, idx.Lookup("fine"), 1)
	assert.Empty(t, idx.Lookup("foo::Bar"))
	assert.NotEmpty(t, issues)
}

func TestRubyParserWritesThroughBatch(t *testing.T) {
	source := []byte(`class Foo
  extend Helpers

  def self.build
  end
end
`)
	batch := index.NewBatch(fakePath)
	_, err := NewRubyParser().Parse(fakePath, source, batch)
	require.NoError(t, err)

	idx := index.New()
	batch.Apply(idx)
	assert.Len(t, idx.Lookup("Foo"), 1)
	assert.Len(t, idx.Lookup("Foo::<Class:Foo>"), 1)
	assert.Len(t, idx.ResolveMethod("build", "Foo::<Class:Foo>"), 1)
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()
	p, ok := r.GetParserForFile("lib/foo.rb")
	require.True(t, ok)
	assert.Equal(t, "ruby", p.Language())

	p, ok = r.GetParserForFile("sig/foo.sig.yml")
	require.True(t, ok)
	assert.Equal(t, "signature", p.Language())
}

func parameterKinds(params []entry.Parameter) []entry.ParameterKind {
	out := make([]entry.ParameterKind, 0, len(params))
	for _, param := range params {
		out = append(out, param.Kind)
	}
	return out
}

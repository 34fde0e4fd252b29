package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skelly-dev/rubyindex/internal/entry"
	"github.com/skelly-dev/rubyindex/internal/index"
)

func site(line int, comments ...string) entry.Site {
	return entry.Site{
		FilePath: "/app/lib/parser.rb",
		Location: entry.NewLocation(line, line, 0, 10),
		Comments: comments,
	}
}

func sampleIndex() *index.Index {
	idx := index.New()
	parser := entry.NewClass([]string{"App", "Parser"}, site(1), "")
	idx.Add(parser)
	idx.ExistingOrNewSingletonClass(parser)
	idx.Add(entry.NewInstanceMethod("parse_directory", site(2, "Walks a directory tree."), []entry.Signature{{
		Parameters: []entry.Parameter{{Kind: entry.RequiredParameter, Name: "root"}},
	}}, entry.Public, "App::Parser"))
	idx.Add(entry.NewInstanceMethod("resolve_imports", site(3), nil, entry.Public, "App::Parser"))
	idx.Add(entry.NewModule([]string{"Greeting"}, site(5)))
	idx.Add(entry.NewClass([]string{"DirectoryWalker"}, site(7), ""))
	return idx
}

func resultNames(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Name)
	}
	return out
}

func TestBuildSkipsSingletonClasses(t *testing.T) {
	built := Build(sampleIndex())
	for _, doc := range built.Documents {
		assert.NotEqual(t, "SingletonClass", doc.Kind, doc.Name)
	}
	assert.Len(t, built.Documents, 5)
}

func TestSearchRanksNameMatches(t *testing.T) {
	results := Build(sampleIndex()).Search("parse directory", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "parse_directory", results[0].Name)
	assert.Contains(t, resultNames(results), "DirectoryWalker")
}

func TestSearchSplitsCamelCase(t *testing.T) {
	results := Build(sampleIndex()).Search("walker", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "DirectoryWalker", results[0].Name)
}

func TestSearchTypoFallback(t *testing.T) {
	results := Build(sampleIndex()).Search("Greting", 3)
	require.NotEmpty(t, results)
	assert.Equal(t, "Greeting", results[0].Name)
}

func TestSearchDeterministicOrdering(t *testing.T) {
	built := &Index{
		AvgLength: 1,
		DocFreq:   map[string]int{"alpha": 2},
		Documents: []Document{
			{Name: "b", Length: 1, Terms: map[string]int{"alpha": 1}},
			{Name: "a", Length: 1, Terms: map[string]int{"alpha": 1}},
		},
	}

	assert.Equal(t, []string{"a", "b"}, resultNames(built.Search("alpha", 2)))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"parse", "directory"}, tokenize("ParseDirectory"))
	assert.Equal(t, []string{"http", "client"}, tokenize("HTTPClient"))
	assert.Equal(t, []string{"app", "parser", "parse", "directory"}, tokenize("App::Parser#parse_directory"))
	assert.Empty(t, tokenize(""))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("same", "same"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 2, levenshtein("grteeing", "greeting"))
	assert.Equal(t, 1, levenshtein("walker", "walkers"))
}

func TestSearchOnEmptyIndex(t *testing.T) {
	assert.Nil(t, Build(nil).Search("anything", 5))
	assert.Nil(t, Build(sampleIndex()).Search("::", 5))
}

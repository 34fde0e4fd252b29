// Package search ranks index names against free-text queries with BM25, falling back to edit
// distance for typos. It backs fuzzy lookups when an exact name misses.
package search

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/skelly-dev/rubyindex/internal/entry"
	"github.com/skelly-dev/rubyindex/internal/fileutil"
	"github.com/skelly-dev/rubyindex/internal/index"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75

	defaultLimit = 10
)

var tokenPattern = regexp.MustCompile(`[a-z0-9_]+`)

// Term weights per field of an entry. The short name dominates so `parse` ranks
// App::Parser#parse above methods that only mention parsing in their comments.
var fieldWeights = struct {
	shortName, name, owner, signature, comments int
}{4, 2, 1, 1, 1}

// Document is one searchable name. Reopened namespaces and overloads share a document built
// from the first entry of the bucket.
type Document struct {
	Name   string
	Kind   string
	File   string
	Line   int
	Length int
	Terms  map[string]int
}

type Index struct {
	Documents []Document
	DocFreq   map[string]int
	AvgLength float64
}

type Result struct {
	Name  string
	Score float64
}

// Build indexes every name in idx except synthetic singleton classes.
func Build(idx *index.Index) *Index {
	built := &Index{DocFreq: map[string]int{}}
	if idx == nil {
		return built
	}

	total := 0
	for _, name := range idx.Names() {
		bucket := idx.Lookup(name)
		if len(bucket) == 0 || bucket[0].Kind == entry.KindSingletonClass {
			continue
		}
		doc, ok := newDocument(name, bucket[0])
		if !ok {
			continue
		}
		built.Documents = append(built.Documents, doc)
		total += doc.Length
		for term := range doc.Terms {
			built.DocFreq[term]++
		}
	}
	if len(built.Documents) > 0 {
		built.AvgLength = float64(total) / float64(len(built.Documents))
	}
	return built
}

func newDocument(name string, first *entry.Entry) (Document, bool) {
	signature := ""
	if len(first.Signatures) > 0 {
		signature = first.Signatures[0].Format()
	}

	terms := make(map[string]int)
	weigh := func(value string, weight int) {
		for _, token := range tokenize(value) {
			terms[token] += weight
		}
	}
	weigh(entry.LastSegment(name), fieldWeights.shortName)
	weigh(name, fieldWeights.name)
	weigh(first.Owner, fieldWeights.owner)
	weigh(signature, fieldWeights.signature)
	weigh(strings.Join(first.Comments, " "), fieldWeights.comments)

	length := 0
	for _, count := range terms {
		length += count
	}
	return Document{
		Name:   name,
		Kind:   first.Kind.String(),
		File:   first.FilePath,
		Line:   first.Location.StartLine,
		Length: length,
		Terms:  terms,
	}, length > 0
}

// Search returns at most limit names ranked by BM25. When no document shares a term with the
// query, names within a small edit distance of it are returned instead.
func (ix *Index) Search(query string, limit int) []Result {
	if ix == nil || len(ix.Documents) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	terms := fileutil.DedupeStrings(tokenize(query))
	if len(terms) == 0 {
		return nil
	}

	var results []Result
	for i := range ix.Documents {
		if score := ix.score(&ix.Documents[i], terms); score > 0 {
			results = append(results, Result{Name: ix.Documents[i].Name, Score: score})
		}
	}
	if len(results) == 0 {
		results = ix.typoMatches(query)
	}
	return top(results, limit)
}

func (ix *Index) score(doc *Document, terms []string) float64 {
	avg := ix.AvgLength
	if avg <= 0 {
		avg = 1
	}
	n := float64(len(ix.Documents))
	norm := bm25K1 * (1 - bm25B + bm25B*float64(doc.Length)/avg)

	score := 0.0
	for _, term := range terms {
		tf := float64(doc.Terms[term])
		df := float64(ix.DocFreq[term])
		if tf <= 0 || df <= 0 {
			continue
		}
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		score += idf * tf * (bm25K1 + 1) / (tf + norm)
	}
	return score
}

// typoMatches compares the query against short names, allowing a third of the name's length
// in edits (at least two).
func (ix *Index) typoMatches(query string) []Result {
	needle := strings.Join(tokenize(query), "")
	if needle == "" {
		return nil
	}
	var results []Result
	for _, doc := range ix.Documents {
		candidate := strings.Join(tokenize(entry.LastSegment(doc.Name)), "")
		if candidate == "" {
			continue
		}
		distance := levenshtein(needle, candidate)
		if distance > max(len(candidate)/3, 2) {
			continue
		}
		results = append(results, Result{Name: doc.Name, Score: 1 / float64(1+distance)})
	}
	return results
}

func top(results []Result, limit int) []Result {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Name < results[j].Name
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// tokenize lowercases value after splitting CamelCase words, so "ParseDirectory" and
// "parse_directory" both yield "parse" and "directory".
func tokenize(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, token := range tokenPattern.FindAllString(strings.ToLower(splitCamel(value)), -1) {
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func splitCamel(value string) string {
	runes := []rune(value)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			acronymEnd := unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || acronymEnd {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

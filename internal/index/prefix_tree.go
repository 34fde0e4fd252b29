package index

import (
	"sort"
	"strings"

	"github.com/skelly-dev/rubyindex/internal/entry"
)

// prefixTree is a byte trie whose keys are every "::" suffix of a qualified name. A node's values
// count how many live entries registered each full name under that key.
type prefixTree struct {
	root *treeNode
}

type treeNode struct {
	children map[byte]*treeNode
	values   map[string]int
}

func newPrefixTree() *prefixTree {
	return &prefixTree{root: &treeNode{}}
}

// suffixKeys returns name followed by every suffix that starts right after a separator,
// e.g. A::B::C -> [A::B::C, B::C, C].
func suffixKeys(name string) []string {
	keys := []string{name}
	offset := 0
	for {
		idx := strings.Index(name[offset:], entry.Separator)
		if idx < 0 {
			break
		}
		offset += idx + len(entry.Separator)
		if offset >= len(name) {
			break
		}
		keys = append(keys, name[offset:])
	}
	return keys
}

func (t *prefixTree) insert(name string) {
	for _, key := range suffixKeys(name) {
		node := t.root
		for i := 0; i < len(key); i++ {
			if node.children == nil {
				node.children = make(map[byte]*treeNode)
			}
			child := node.children[key[i]]
			if child == nil {
				child = &treeNode{}
				node.children[key[i]] = child
			}
			node = child
		}
		if node.values == nil {
			node.values = make(map[string]int)
		}
		node.values[name]++
	}
}

// remove drops one registration of name and prunes nodes left without values or children.
func (t *prefixTree) remove(name string) {
	for _, key := range suffixKeys(name) {
		path := make([]*treeNode, 0, len(key)+1)
		node := t.root
		path = append(path, node)
		for i := 0; i < len(key) && node != nil; i++ {
			node = node.children[key[i]]
			if node != nil {
				path = append(path, node)
			}
		}
		if node == nil || node.values[name] == 0 {
			continue
		}
		node.values[name]--
		if node.values[name] == 0 {
			delete(node.values, name)
		}

		for depth := len(path) - 1; depth > 0; depth-- {
			current := path[depth]
			if len(current.values) > 0 || len(current.children) > 0 {
				break
			}
			delete(path[depth-1].children, key[depth-1])
		}
	}
}

func (t *prefixTree) find(key string) *treeNode {
	node := t.root
	for i := 0; i < len(key) && node != nil; i++ {
		node = node.children[key[i]]
	}
	return node
}

// search returns every full name registered under a key starting with prefix, sorted.
func (t *prefixTree) search(prefix string) []string {
	node := t.find(prefix)
	if node == nil {
		return nil
	}
	seen := make(map[string]struct{})
	stack := []*treeNode{node}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for name := range current.values {
			seen[name] = struct{}{}
		}
		for _, child := range current.children {
			stack = append(stack, child)
		}
	}
	return sortedKeys(seen)
}

// exact returns the full names registered under exactly key, sorted.
func (t *prefixTree) exact(key string) []string {
	node := t.find(key)
	if node == nil || len(node.values) == 0 {
		return nil
	}
	out := make([]string, 0, len(node.values))
	for name := range node.values {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (t *prefixTree) empty() bool {
	return len(t.root.children) == 0 && len(t.root.values) == 0
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

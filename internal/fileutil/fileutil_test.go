package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFileMatchesHashBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.rb")
	require.NoError(t, os.WriteFile(path, []byte("class Foo; end\n"), 0644))

	hash, err := HashFile(path)
	require.NoError(t, err)
	assert.Len(t, hash, 16)
	assert.Equal(t, HashBytes([]byte("class Foo; end\n")), hash)
}

func TestWriteAtomicReplacesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.rbix")
	require.NoError(t, WriteAtomic(path, []byte("one"), 0644))
	require.NoError(t, WriteAtomic(path, []byte("two"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteIfChangedTracked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	changed, err := WriteIfChangedTracked(path, []byte("x"))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = WriteIfChangedTracked(path, []byte("x"))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestDedupeStringsKeepsFirst(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, DedupeStrings([]string{"b", "a", "b"}))
	assert.Equal(t, []string{"a", "b"}, SortedKeys(map[string]int{"b": 2, "a": 1}))
}

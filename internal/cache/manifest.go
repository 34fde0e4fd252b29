package cache

import (
	"sort"
)

// FileInfo describes one file's region in a cache blob.
type FileInfo struct {
	Path     string
	CacheKey string
	Entries  int

	offset   uint64
	length   uint64
	checksum uint64
}

// Manifest is the header of a cache blob: enough to validate cache keys without decoding entries.
type Manifest struct {
	Version      uint64
	NextSequence uint64
	Files        []FileInfo

	regionsStart int
}

// File returns the region description for path.
func (m *Manifest) File(path string) (FileInfo, bool) {
	i := sort.Search(len(m.Files), func(i int) bool { return m.Files[i].Path >= path })
	if i < len(m.Files) && m.Files[i].Path == path {
		return m.Files[i], true
	}
	return FileInfo{}, false
}

// CacheKeys returns the embedded fingerprint of every cached file.
func (m *Manifest) CacheKeys() map[string]string {
	out := make(map[string]string, len(m.Files))
	for _, file := range m.Files {
		out[file.Path] = file.CacheKey
	}
	return out
}

// HasChanged reports whether path is new or its fingerprint differs from the cached one.
func (m *Manifest) HasChanged(path, currentKey string) bool {
	info, ok := m.File(path)
	if !ok {
		return true
	}
	return info.CacheKey != currentKey
}

// ChangedFiles returns the files in currentKeys that are new or whose fingerprint changed, sorted.
func (m *Manifest) ChangedFiles(currentKeys map[string]string) []string {
	changed := make([]string, 0)
	for file, key := range currentKeys {
		if m.HasChanged(file, key) {
			changed = append(changed, file)
		}
	}
	sort.Strings(changed)
	return changed
}

// DeletedFiles returns cached files that are no longer present, sorted.
func (m *Manifest) DeletedFiles(currentFiles map[string]bool) []string {
	deleted := make([]string, 0)
	for _, file := range m.Files {
		if !currentFiles[file.Path] {
			deleted = append(deleted, file.Path)
		}
	}
	return deleted
}

// TotalEntries is the number of entries across all regions.
func (m *Manifest) TotalEntries() int {
	total := 0
	for _, file := range m.Files {
		total += file.Entries
	}
	return total
}

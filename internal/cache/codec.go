// Package cache persists an index as a compact binary blob partitioned by source file.
//
// Layout (little-endian, unsigned varints unless noted):
//
//	magic "RBIX" | version | next sequence | file count
//	per file: path | cache key | entry count | region offset | region length | region xxhash64 (8 bytes)
//	header xxhash64 (8 bytes, over everything above)
//	regions, in file table order
//
// A region holds its own string table followed by the file's entries. Each entry carries the
// global insertion sequence number it had in the exported index, so bucket order survives
// decoding regions independently or splicing a single region.
package cache

import (
	"context"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/skelly-dev/rubyindex/internal/index"
)

const (
	magic = "RBIX"

	// FormatVersion is bumped whenever the layout or the entry kind numbering changes.
	FormatVersion uint64 = 1
)

// Export serializes every entry and cache key in idx.
func Export(idx *index.Index) ([]byte, error) {
	files := idx.Files()
	infos := make([]FileInfo, 0, len(files))
	regions := make([][]byte, 0, len(files))
	for _, path := range files {
		records := idx.FileRecords(path)
		region, err := encodeRegion(records)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", path, err)
		}
		key, _ := idx.CacheKey(path)
		infos = append(infos, FileInfo{Path: path, CacheKey: key, Entries: len(records)})
		regions = append(regions, region)
	}
	return assemble(idx.NextSequence(), infos, regions), nil
}

// Import rebuilds an index from a blob. The index is staged privately and only returned once
// every region decoded cleanly; cancellation and corruption both return a nil index.
func Import(ctx context.Context, data []byte) (*index.Index, error) {
	m, err := ReadManifest(data)
	if err != nil {
		return nil, err
	}

	records := make([]index.Record, 0, min(m.TotalEntries(), len(data)))
	for _, info := range m.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		decoded, err := m.decode(data, info)
		if err != nil {
			return nil, err
		}
		records = append(records, decoded...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Seq < records[j].Seq
	})

	idx := index.New()
	for _, rec := range records {
		opts := []index.AddOption{index.WithSequence(rec.Seq)}
		if rec.SkipPrefixTree {
			opts = append(opts, index.SkipPrefixTree())
		}
		idx.Add(rec.Entry, opts...)
	}
	for _, info := range m.Files {
		if info.CacheKey != "" {
			idx.SetCacheKey(info.Path, info.CacheKey)
		}
	}
	idx.AdvanceSequence(m.NextSequence)
	return idx, nil
}

// ReadManifest decodes and verifies only the header and file table.
func ReadManifest(data []byte) (*Manifest, error) {
	if len(data) < len(magic) {
		return nil, corrupt(ReasonTruncated, "blob of %d bytes", len(data))
	}
	if string(data[:len(magic)]) != magic {
		return nil, corrupt(ReasonBadMagic, "got %q", data[:len(magic)])
	}

	r := reader{data: data, pos: len(magic)}
	version, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if version != FormatVersion {
		return nil, corrupt(ReasonVersionMismatch, "blob version %d, expected %d", version, FormatVersion)
	}

	m := &Manifest{Version: version}
	if m.NextSequence, err = r.uvarint(); err != nil {
		return nil, err
	}
	count, err := r.count()
	if err != nil {
		return nil, err
	}
	m.Files = make([]FileInfo, 0, count)
	for i := 0; i < count; i++ {
		var info FileInfo
		if info.Path, err = r.string(); err != nil {
			return nil, err
		}
		if info.CacheKey, err = r.string(); err != nil {
			return nil, err
		}
		if info.Entries, err = r.int(); err != nil {
			return nil, err
		}
		if info.offset, err = r.uvarint(); err != nil {
			return nil, err
		}
		if info.length, err = r.uvarint(); err != nil {
			return nil, err
		}
		if info.checksum, err = r.fixed64(); err != nil {
			return nil, err
		}
		m.Files = append(m.Files, info)
	}

	headerEnd := r.pos
	stored, err := r.fixed64()
	if err != nil {
		return nil, err
	}
	if sum := xxhash.Sum64(data[:headerEnd]); sum != stored {
		return nil, corrupt(ReasonChecksumMismatch, "header checksum %016x, expected %016x", sum, stored)
	}

	m.regionsStart = r.pos
	available := uint64(len(data) - m.regionsStart)
	for _, info := range m.Files {
		if info.offset > available || info.length > available-info.offset {
			return nil, corrupt(ReasonTruncated, "region for %q past end of blob", info.Path)
		}
		// Every entry takes at least one byte of its region.
		if uint64(info.Entries) > info.length {
			return nil, corrupt(ReasonTruncated, "region for %q claims %d entries in %d bytes", info.Path, info.Entries, info.length)
		}
	}
	return m, nil
}

// DecodeFile decodes the region of a single file without touching the others.
func DecodeFile(data []byte, path string) ([]index.Record, error) {
	m, err := ReadManifest(data)
	if err != nil {
		return nil, err
	}
	info, ok := m.File(path)
	if !ok {
		return nil, nil
	}
	return m.decode(data, info)
}

// ReplaceFile returns a copy of data in which path's region holds records and key. Other regions
// are copied byte for byte. A path not yet in the blob is added.
func ReplaceFile(data []byte, path, key string, records []index.Record) ([]byte, error) {
	m, err := ReadManifest(data)
	if err != nil {
		return nil, err
	}
	region, err := encodeRegion(records)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}

	next := m.NextSequence
	for _, rec := range records {
		if rec.Seq >= next {
			next = rec.Seq + 1
		}
	}

	infos := make([]FileInfo, 0, len(m.Files)+1)
	regions := make([][]byte, 0, len(m.Files)+1)
	replaced := false
	for _, info := range m.Files {
		if info.Path == path {
			infos = append(infos, FileInfo{Path: path, CacheKey: key, Entries: len(records)})
			regions = append(regions, region)
			replaced = true
			continue
		}
		infos = append(infos, info)
		regions = append(regions, m.raw(data, info))
	}
	if !replaced {
		infos = append(infos, FileInfo{Path: path, CacheKey: key, Entries: len(records)})
		regions = append(regions, region)
	}
	return assemble(next, infos, regions), nil
}

// RemoveFile returns a copy of data without path's region.
func RemoveFile(data []byte, path string) ([]byte, error) {
	m, err := ReadManifest(data)
	if err != nil {
		return nil, err
	}
	infos := make([]FileInfo, 0, len(m.Files))
	regions := make([][]byte, 0, len(m.Files))
	for _, info := range m.Files {
		if info.Path == path {
			continue
		}
		infos = append(infos, info)
		regions = append(regions, m.raw(data, info))
	}
	return assemble(m.NextSequence, infos, regions), nil
}

func (m *Manifest) raw(data []byte, info FileInfo) []byte {
	start := m.regionsStart + int(info.offset)
	return data[start : start+int(info.length)]
}

func (m *Manifest) decode(data []byte, info FileInfo) ([]index.Record, error) {
	region := m.raw(data, info)
	if sum := xxhash.Sum64(region); sum != info.checksum {
		return nil, corrupt(ReasonChecksumMismatch, "region for %q", info.Path)
	}
	records, err := decodeRegion(region, info.Path)
	if err != nil {
		return nil, err
	}
	if len(records) != info.Entries {
		return nil, corrupt(ReasonTruncated, "region for %q holds %d entries, header says %d", info.Path, len(records), info.Entries)
	}
	return records, nil
}

// assemble writes the header for infos and appends the regions. Files are ordered by path.
func assemble(nextSeq uint64, infos []FileInfo, regions [][]byte) []byte {
	order := make([]int, len(infos))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return infos[order[a]].Path < infos[order[b]].Path
	})

	var header writer
	header.buf = append(header.buf, magic...)
	header.uvarint(FormatVersion)
	header.uvarint(nextSeq)
	header.int(len(infos))

	var offset uint64
	total := 0
	for _, i := range order {
		info := infos[i]
		region := regions[i]
		header.string(info.Path)
		header.string(info.CacheKey)
		header.int(info.Entries)
		header.uvarint(offset)
		header.uvarint(uint64(len(region)))
		header.fixed64(xxhash.Sum64(region))
		offset += uint64(len(region))
		total += len(region)
	}
	header.fixed64(xxhash.Sum64(header.buf))

	out := make([]byte, 0, len(header.buf)+total)
	out = append(out, header.buf...)
	for _, i := range order {
		out = append(out, regions[i]...)
	}
	return out
}

package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/skelly-dev/rubyindex/internal/entry"
)

// EntryRecord is the printable form of an index entry.
type EntryRecord struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Column     int      `json:"column"`
	Visibility string   `json:"visibility"`
	Owner      string   `json:"owner,omitempty"`
	Parent     string   `json:"parent,omitempty"`
	Target     string   `json:"target,omitempty"`
	Signatures []string `json:"signatures,omitempty"`
	Comments   []string `json:"comments,omitempty"`
}

func EntryRecordFrom(e *entry.Entry, root string) EntryRecord {
	file := e.FilePath
	if rel, err := filepath.Rel(root, file); err == nil && !strings.HasPrefix(rel, "..") {
		file = filepath.ToSlash(rel)
	}
	record := EntryRecord{
		Name:       e.Name,
		Kind:       e.Kind.String(),
		File:       file,
		Line:       e.NameLocation.StartLine,
		Column:     e.NameLocation.StartColumn,
		Visibility: e.Visibility.String(),
		Owner:      e.Owner,
		Parent:     e.ParentClass,
		Target:     e.Target,
		Comments:   e.Comments,
	}
	if record.Line == 0 {
		record.Line = e.Location.StartLine
		record.Column = e.Location.StartColumn
	}
	for _, sig := range e.Signatures {
		record.Signatures = append(record.Signatures, sig.Format())
	}
	return record
}

func EntryRecordsFrom(entries []*entry.Entry, root string) []EntryRecord {
	records := make([]EntryRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, EntryRecordFrom(e, root))
	}
	return records
}

func printEntryRecords(out io.Writer, records []EntryRecord) {
	for _, record := range records {
		fmt.Fprintf(out, "- %s [%s] %s:%d", record.Name, record.Kind, record.File, record.Line)
		if record.Visibility != entry.Public.String() {
			fmt.Fprintf(out, " (%s)", record.Visibility)
		}
		fmt.Fprintln(out)
		if record.Owner != "" {
			fmt.Fprintf(out, "  owner: %s\n", record.Owner)
		}
		if record.Target != "" {
			fmt.Fprintf(out, "  target: %s\n", record.Target)
		}
		for _, sig := range record.Signatures {
			fmt.Fprintf(out, "  sig: %s\n", sig)
		}
	}
}

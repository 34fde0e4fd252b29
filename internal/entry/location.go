package entry

import "fmt"

// Location is a half-open source range. Lines are 1-based, columns are 0-based.
type Location struct {
	StartLine   int
	EndLine     int
	StartColumn int
	EndColumn   int
}

// NewLocation builds a Location from its four coordinates.
func NewLocation(startLine, endLine, startColumn, endColumn int) Location {
	return Location{
		StartLine:   startLine,
		EndLine:     endLine,
		StartColumn: startColumn,
		EndColumn:   endColumn,
	}
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", l.StartLine, l.StartColumn, l.EndLine, l.EndColumn)
}

// Contains reports whether the given 1-based line and 0-based column fall inside the range.
func (l Location) Contains(line, column int) bool {
	if line < l.StartLine || line > l.EndLine {
		return false
	}
	if line == l.StartLine && column < l.StartColumn {
		return false
	}
	if line == l.EndLine && column >= l.EndColumn {
		return false
	}
	return true
}

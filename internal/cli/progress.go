package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type indexProgressReporter struct {
	enabled bool
	out     io.Writer
	label   string
	root    string
	start   time.Time
	spinner int
	lastLen int
	done    int
}

// newIndexProgressReporter draws a one-line spinner on stderr when it is a terminal and the
// command is not emitting JSON.
func newIndexProgressReporter(label, root string, asJSON bool) *indexProgressReporter {
	stat, err := os.Stderr.Stat()
	enabled := err == nil && (stat.Mode()&os.ModeCharDevice) != 0 && !asJSON
	return &indexProgressReporter{
		enabled: enabled,
		out:     os.Stderr,
		label:   label,
		root:    root,
		start:   time.Now(),
	}
}

// Update matches workspace.ProgressFunc.
func (r *indexProgressReporter) Update(path string, done, total int) {
	r.done = done
	if !r.enabled {
		return
	}
	frames := [4]string{"-", "\\", "|", "/"}
	frame := frames[r.spinner%len(frames)]
	r.spinner++
	if rel, err := filepath.Rel(r.root, path); err == nil && !strings.HasPrefix(rel, "..") {
		path = rel
	}
	if len(path) > 88 {
		path = "..." + path[len(path)-85:]
	}

	status := fmt.Sprintf("%s %s %d/%d indexing %s", frame, r.label, done, total, path)
	r.printStatus(status)
}

func (r *indexProgressReporter) Done() {
	if !r.enabled || r.done == 0 {
		return
	}
	elapsed := time.Since(r.start).Round(time.Millisecond)
	status := fmt.Sprintf("%s complete (%d files in %s)", r.label, r.done, elapsed)
	r.printStatus(status)
	fmt.Fprintln(r.out)
}

func (r *indexProgressReporter) printStatus(status string) {
	if r.lastLen > len(status) {
		status = status + strings.Repeat(" ", r.lastLen-len(status))
	}
	r.lastLen = len(status)
	fmt.Fprintf(r.out, "\r%s", status)
}

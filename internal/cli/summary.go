package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/rubyindex/internal/fileutil"
	"github.com/skelly-dev/rubyindex/internal/parser"
	"github.com/skelly-dev/rubyindex/internal/workspace"
)

func PrintRunSummary(out io.Writer, summary *workspace.Summary, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(out, summary)
	}

	parts := []string{
		fmt.Sprintf("%s:", summary.Mode),
		fmt.Sprintf("cache=%s", summary.Cache),
		fmt.Sprintf("scanned=%d", summary.Scanned),
		fmt.Sprintf("parsed=%d", summary.Parsed),
		fmt.Sprintf("reused=%d", summary.Reused),
		fmt.Sprintf("deleted=%d", summary.Deleted),
		fmt.Sprintf("entries=%d", summary.Entries),
		fmt.Sprintf("files=%d", summary.Files),
		fmt.Sprintf("duration=%dms", summary.DurationMS),
	}
	fmt.Fprintln(out, strings.Join(parts, " "))
	if summary.CacheLocation != "" {
		fmt.Fprintf(out, "cache: %s\n", summary.CacheLocation)
	}
	if len(summary.ChangedFiles) > 0 {
		fmt.Fprintf(out, "changed (%d): %s\n", len(summary.ChangedFiles), SummarizePaths(summary.ChangedFiles, 8))
	}
	if len(summary.DeletedFiles) > 0 {
		fmt.Fprintf(out, "deleted (%d): %s\n", len(summary.DeletedFiles), SummarizePaths(summary.DeletedFiles, 8))
	}
	return nil
}

func SummarizePaths(paths []string, max int) string {
	if len(paths) <= max {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s ... (+%d more)", strings.Join(paths[:max], ", "), len(paths)-max)
}

// ReportIssues prints producer issues to the command's stderr.
func ReportIssues(cmd *cobra.Command, issues []parser.Issue) {
	out := cmd.ErrOrStderr()
	for _, issue := range issues {
		location := issue.File
		if issue.Line > 0 {
			location = fmt.Sprintf("%s:%d", issue.File, issue.Line)
		}
		if issue.Language != "" {
			fmt.Fprintf(out, "[%s] %s (%s): %s\n", issue.Severity, location, issue.Language, issue.Message)
			continue
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", issue.Severity, location, issue.Message)
	}
}

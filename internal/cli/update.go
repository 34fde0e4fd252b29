package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/rubyindex/internal/workspace"
)

func RunIndex(cmd *cobra.Command, args []string) error {
	return runIndexing(cmd, "index", (*workspace.Workspace).Index)
}

func RunUpdate(cmd *cobra.Command, args []string) error {
	return runIndexing(cmd, "update", (*workspace.Workspace).Update)
}

func runIndexing(cmd *cobra.Command, label string, run func(*workspace.Workspace, context.Context) (*workspace.Summary, error)) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	rootPath, err := resolveProjectRoot(cmd)
	if err != nil {
		return err
	}

	progress := newIndexProgressReporter(label, rootPath, asJSON)
	ws, err := openWorkspace(cmd, workspace.WithProgress(progress.Update))
	if err != nil {
		return err
	}
	defer ws.Close()

	summary, err := run(ws, commandContext(cmd))
	progress.Done()
	if err != nil {
		return err
	}
	if !asJSON {
		ReportIssues(cmd, summary.Issues)
	}
	return PrintRunSummary(cmd.OutOrStdout(), summary, asJSON)
}

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/rubyindex/internal/config"
	"github.com/skelly-dev/rubyindex/internal/workspace"
)

func resolveProjectRoot(cmd *cobra.Command) (string, error) {
	root, err := OptionalStringFlag(cmd, "root")
	if err != nil {
		return "", err
	}
	if root != "" {
		return root, nil
	}
	rootPath, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return rootPath, nil
}

func openWorkspace(cmd *cobra.Command, opts ...workspace.Option) (*workspace.Workspace, error) {
	rootPath, err := resolveProjectRoot(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(rootPath)
	if err != nil {
		return nil, err
	}
	return workspace.Open(cfg, opts...)
}

// loadIndex opens the workspace and brings it up to date from the cache, the starting point of
// every query command.
func loadIndex(cmd *cobra.Command) (*workspace.Workspace, error) {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return nil, err
	}
	summary, err := ws.Update(commandContext(cmd))
	if err != nil {
		ws.Close()
		return nil, err
	}
	ReportIssues(cmd, summary.Issues)
	return ws, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

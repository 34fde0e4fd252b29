package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/rubyindex/internal/observability"
	"github.com/skelly-dev/rubyindex/internal/watcher"
	"github.com/skelly-dev/rubyindex/internal/workspace"
)

func RunWatch(cmd *cobra.Command, args []string) error {
	metricsAddr, err := OptionalStringFlag(cmd, "metrics-addr")
	if err != nil {
		return err
	}
	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return fmt.Errorf("failed to read --debounce flag: %w", err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, err := loadIndex(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	if metricsAddr != "" {
		server := observability.NewServer(metricsAddr)
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(shutdownCtx)
		}()
	}

	if debounce <= 0 {
		debounce = ws.Config().Watch.Debounce
	}
	w, err := newWorkspaceWatcher(ctx, cmd, ws, debounce)
	if err != nil {
		return err
	}
	defer w.Close()

	stats := ws.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "watching %s (%d entries in %d files)\n", ws.Config().Root, stats.Entries, stats.Files)
	<-ctx.Done()
	return nil
}

// newWorkspaceWatcher feeds debounced file changes into ws.ApplyChanges.
func newWorkspaceWatcher(ctx context.Context, cmd *cobra.Command, ws *workspace.Workspace, debounce time.Duration) (*watcher.Watcher, error) {
	sel, err := ws.Selection()
	if err != nil {
		return nil, err
	}
	out := cmd.OutOrStdout()
	onChange := func(paths []string) {
		summary, err := ws.ApplyChanges(ctx, paths)
		if err != nil {
			slog.Error("failed to apply changes", "count", len(paths), "error", err)
			return
		}
		ReportIssues(cmd, summary.Issues)
		if summary.Parsed == 0 && summary.Deleted == 0 {
			return
		}
		fmt.Fprintf(out, "reindexed=%d removed=%d entries=%d duration=%dms\n",
			summary.Parsed, summary.Deleted, summary.Entries, summary.DurationMS)
	}

	w, err := watcher.NewWatcher(ws.Config().Root, debounce, sel.Skip, onChange)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Watch(); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", ws.Config().Root, err)
	}
	return w, nil
}

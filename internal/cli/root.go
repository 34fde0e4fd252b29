package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rubyindex",
		Short: "Index Ruby declarations and answer resolution queries",
		Long: `rubyindex builds a semantic index of a Ruby project - namespaces, methods,
constants, aliases and instance variables - and resolves names the way Ruby does:
through lexical nesting, ancestor chains and constant aliases.

The index is cached under .ruby-lsp/ so later runs only re-read changed files.`,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
	}
	rootCmd.PersistentFlags().String("root", "", "Project root (default: current directory)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug|info|warn|error")

	// Indexing Commands
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the index from scratch and refresh the cache",
		Args:  cobra.NoArgs,
		RunE:  RunIndex,
	}
	indexCmd.Flags().Bool("json", false, "Print machine-readable run summary")

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Restore the index from the cache and re-index changed files",
		Args:  cobra.NoArgs,
		RunE:  RunUpdate,
	}
	updateCmd.Flags().Bool("json", false, "Print machine-readable run summary")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show which files changed since the cache was written",
		Args:  cobra.NoArgs,
		RunE:  RunStatus,
	}
	statusCmd.Flags().Bool("json", false, "Print machine-readable status output")
	statusCmd.Flags().Bool("verify", false, "Decode every cached region to detect corruption")

	clearCmd := &cobra.Command{
		Use:   "clear-cache",
		Short: "Delete the persisted index cache",
		Args:  cobra.NoArgs,
		RunE:  RunClearCache,
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the index and cache current while files change",
		Args:  cobra.NoArgs,
		RunE:  RunWatch,
	}
	watchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9464")
	watchCmd.Flags().Duration("debounce", 0, "Override the configured debounce window")

	// Query Commands
	lookupCmd := &cobra.Command{
		Use:   "lookup <qualified-name>",
		Short: "List every entry declared under exactly this name",
		Args:  cobra.ExactArgs(1),
		RunE:  RunLookup,
	}
	lookupCmd.Flags().Bool("json", false, "Print machine-readable entries")
	lookupCmd.Flags().Bool("fuzzy", false, "Enable BM25 fuzzy fallback when exact lookup misses")
	lookupCmd.Flags().Int("limit", 10, "Maximum number of fuzzy matches to return")

	resolveCmd := &cobra.Command{
		Use:   "resolve <constant>",
		Short: "Resolve a constant reference from a lexical nesting",
		Args:  cobra.ExactArgs(1),
		RunE:  RunResolve,
	}
	resolveCmd.Flags().Bool("json", false, "Print machine-readable entries")
	resolveCmd.Flags().String("nesting", "", "Enclosing namespaces, outermost first (e.g. Foo,Bar)")

	methodCmd := &cobra.Command{
		Use:   "method <name> <owner>",
		Short: "Resolve a method call on a receiver type",
		Args:  cobra.ExactArgs(2),
		RunE:  RunMethod,
	}
	methodCmd.Flags().Bool("json", false, "Print machine-readable entries")
	methodCmd.Flags().Bool("implicit", false, "Treat the call as receiver-less, admitting private methods")

	ivarCmd := &cobra.Command{
		Use:   "ivar <@name> <owner>",
		Short: "Resolve an instance variable through the owner's ancestors",
		Args:  cobra.ExactArgs(2),
		RunE:  RunIvar,
	}
	ivarCmd.Flags().Bool("json", false, "Print machine-readable entries")
	ivarCmd.Flags().Bool("complete", false, "Treat <@name> as a prefix and list completions")

	completeCmd := &cobra.Command{
		Use:   "complete <prefix>",
		Short: "Complete a constant prefix from a lexical nesting",
		Args:  cobra.ExactArgs(1),
		RunE:  RunComplete,
	}
	completeCmd.Flags().Bool("json", false, "Print machine-readable entries")
	completeCmd.Flags().String("nesting", "", "Enclosing namespaces, outermost first (e.g. Foo,Bar)")
	completeCmd.Flags().Int("limit", 50, "Maximum number of names to print (0 = all)")

	ancestorsCmd := &cobra.Command{
		Use:   "ancestors <namespace>",
		Short: "Print the linearized ancestor chain of a namespace",
		Args:  cobra.ExactArgs(1),
		RunE:  RunAncestors,
	}
	ancestorsCmd.Flags().Bool("json", false, "Print machine-readable ancestors")

	// Additional Commands
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rubyindex %s\n", version)
		},
	}

	rootCmd.AddCommand(
		indexCmd,
		updateCmd,
		statusCmd,
		clearCmd,
		watchCmd,
		lookupCmd,
		resolveCmd,
		methodCmd,
		ivarCmd,
		completeCmd,
		ancestorsCmd,
		versionCmd,
	)

	return rootCmd
}

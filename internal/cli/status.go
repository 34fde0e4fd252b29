package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func RunStatus(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	verify, err := OptionalBoolFlag(cmd, "verify", false)
	if err != nil {
		return err
	}

	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	summary, err := ws.Status(commandContext(cmd), verify)
	if err != nil {
		return err
	}
	return PrintRunSummary(cmd.OutOrStdout(), summary, asJSON)
}

func RunClearCache(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	if ws.Store() == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "cache is disabled")
		return nil
	}
	if err := ws.ClearCache(commandContext(cmd)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", ws.Store().Location())
	return nil
}

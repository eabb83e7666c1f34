package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/banterhq/banter/internal/printer"
)

var clearCmd = &cobra.Command{
	Use:   "clear <key>",
	Short: "Remove a key regardless of who holds it",
	Long: `Remove a key's record entirely.

Clear is unconditional: it succeeds even when the key is held at the
highest priority, and it is how a stuck key is released so lower-priority
writers can take over. Clearing an absent key is a silent no-op.

Examples:
  banter clear interrupt_ai_speech`,
	Args: cobra.ExactArgs(1),
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	client, err := connect(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Clear(context.Background(), args[0], "cli"); err != nil {
		return err
	}

	printer.Success("cleared %s\n", args[0])
	return nil
}

package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/banterhq/banter/internal/printer"
	"github.com/banterhq/banter/pkg/statebus"
)

var (
	setPriority int
	setSource   string
)

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a value to a key",
	Long: `Attempt a conditional write.

The write goes through the same arbitration as any agent write: it is
rejected if the key is held at a higher priority, or if the key's admission
rule refuses the value or the writer.

Examples:
  banter set ai_thinking True
  banter set tts_text "hello" --priority 20 --source reasoner`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func init() {
	setCmd.Flags().IntVar(&setPriority, "priority", int(statebus.PriorityFrontEnd), "Write priority")
	setCmd.Flags().StringVar(&setSource, "source", "cli", "Writer identity")
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	client, err := connect(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	key, value := args[0], args[1]

	accepted, err := client.Set(context.Background(), key, value, setSource, statebus.Priority(setPriority))
	if err != nil {
		return err
	}

	if !accepted {
		printer.Warning("write rejected: %s is held at a higher priority or the admission rule refused it\n", key)
		return nil
	}

	printer.Success("%s = %s (priority %d)\n", key, value, setPriority)
	return nil
}

package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/banterhq/banter/internal/printer"
	"github.com/banterhq/banter/pkg/statebus"
)

var getShowRecord bool

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read the current value of a key",
	Long: `Read the latest accepted value for a key.

With --record the full record is shown, including the writer identity and
the priority the value is held at.

Examples:
  banter get ai_speaking
  banter get listening_paused --record`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().BoolVar(&getShowRecord, "record", false, "Show writer identity, priority and timestamp")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	client, err := connect(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := context.Background()
	key := args[0]

	if !getShowRecord {
		value, err := client.Get(ctx, key)
		if err != nil {
			if statebus.IsNotFound(err) {
				printer.Info("(not set)\n")
				return nil
			}
			return err
		}
		printer.Println(value)
		return nil
	}

	record, err := client.GetRecord(ctx, key)
	if err != nil {
		if statebus.IsNotFound(err) {
			printer.Info("(not set)\n")
			return nil
		}
		return err
	}

	printer.Printf("value:     %s\n", record.Value)
	printer.Printf("source:    %s\n", record.Source)
	printer.Printf("priority:  %d\n", record.Priority)
	printer.Printf("timestamp: %s\n", time.Unix(record.Timestamp, 0).Format(time.RFC3339))
	return nil
}

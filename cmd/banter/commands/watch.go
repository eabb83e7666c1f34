package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banterhq/banter/internal/printer"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live state changes",
	Long: `Stream every accepted state change as it is broadcast.

Only accepted writes appear: a write rejected by the priority floor or an
admission rule publishes nothing. Removed keys show as (cleared).

Examples:
  # Watch all bus activity
  banter watch

  # Watch a remote bus
  banter watch --redis redis://redis.local:6379/0`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, err := connect(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sub, err := client.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	printer.Info("Watching state changes (Ctrl+C to stop)...\n")

	for {
		select {
		case <-ctx.Done():
			printer.Info("\nStopped.\n")
			return nil
		case err := <-sub.Errors():
			if err != nil {
				printer.Warning("skipping malformed event: %v\n", err)
			}
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			printer.Event(time.Now(), event.Key, event.Value, event.Cleared())
		}
	}
}

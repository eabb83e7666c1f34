package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/banterhq/banter/internal/printer"
	"github.com/banterhq/banter/pkg/statebus"
)

var talkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Trigger a capture turn",
	Long: `Raise the talk trigger at the front-end tier, exactly as the talk
button does. The capture agent picks it up, records one utterance and hands
the transcript to the reasoning engine.

Examples:
  banter talk`,
	Args: cobra.NoArgs,
	RunE: runTalk,
}

func init() {
	rootCmd.AddCommand(talkCmd)
}

func runTalk(cmd *cobra.Command, args []string) error {
	client, err := connect(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	accepted, err := client.Set(context.Background(), statebus.KeyTalkIntent, "True", "front_end", statebus.PriorityFrontEnd)
	if err != nil {
		return err
	}

	if !accepted {
		printer.Warning("talk trigger rejected, the key is held at a higher priority\n")
		return nil
	}

	printer.Success("talk trigger raised, speak after the capture agent starts recording\n")
	return nil
}

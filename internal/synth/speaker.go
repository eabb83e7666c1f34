package synth

import (
	"context"
	"fmt"
	"os/exec"
)

// Speaker turns text into audible speech and blocks until playback finishes
// or the context is cancelled. The synthesis model behind it is opaque.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// ExecSpeaker shells out to a TTS playback command (espeak-ng, piper | aplay
// wrappers and the like), passing the text as the final argument.
// Cancellation kills the process, which is how interruption stops playback
// mid-sentence.
type ExecSpeaker struct {
	Command []string
}

func (s *ExecSpeaker) Speak(ctx context.Context, text string) error {
	if len(s.Command) == 0 {
		return fmt.Errorf("no speaker command configured")
	}

	args := append(append([]string(nil), s.Command[1:]...), text)
	cmd := exec.CommandContext(ctx, s.Command[0], args...)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("speaker command failed: %w", err)
	}
	return nil
}

// Package gate implements the listening gate: user-spoken control phrases
// pause and resume transcript processing without stopping audio capture, so
// the resume phrase can still be heard while paused.
package gate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/banterhq/banter/pkg/statebus"
)

// Action is the outcome of checking a transcript for a control phrase.
type Action int

const (
	ActionNone Action = iota
	ActionPause
	ActionResume
)

// Gate evaluates transcripts against configured pause/resume phrases and
// maintains the listening-paused key on the bus. When disabled, transcripts
// always pass and the paused state reads as active.
type Gate struct {
	bus     *statebus.Client
	source  string
	enabled bool

	userName     string
	stopPhrases  []string
	startPhrases []string
	stopAck      string
	startAck     string
}

// Options configures a Gate.
type Options struct {
	Enabled      bool
	UserName     string
	StopPhrases  []string
	StartPhrases []string
	StopAck      string
	StartAck     string
}

func New(bus *statebus.Client, source string, opts Options) *Gate {
	return &Gate{
		bus:          bus,
		source:       source,
		enabled:      opts.Enabled,
		userName:     opts.UserName,
		stopPhrases:  normalizeAll(opts.StopPhrases),
		startPhrases: normalizeAll(opts.StartPhrases),
		stopAck:      opts.StopAck,
		startAck:     opts.StartAck,
	}
}

// normalize lowercases, replaces sentence punctuation with spaces and
// collapses runs of whitespace, so "Stop listening!" matches "stop listening".
func normalize(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ',', '.', '!', '?', ';', ':':
			return ' '
		}
		return r
	}, lowered)
	return strings.Join(strings.Fields(cleaned), " ")
}

func normalizeAll(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		if n := normalize(phrase); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// CheckControlPhrase reports the action a transcript requests. Matching is
// substring-based on normalized text; pause phrases take precedence over
// resume phrases.
func (g *Gate) CheckControlPhrase(transcript string) Action {
	if !g.enabled {
		return ActionNone
	}

	cleaned := normalize(transcript)

	for _, phrase := range g.stopPhrases {
		if strings.Contains(cleaned, phrase) {
			log.Printf("[Gate] pause phrase matched in %q", transcript)
			return ActionPause
		}
	}
	for _, phrase := range g.startPhrases {
		if strings.Contains(cleaned, phrase) {
			log.Printf("[Gate] resume phrase matched in %q", transcript)
			return ActionResume
		}
	}

	return ActionNone
}

// IsPaused reads the listening-paused key. An absent key means listening is
// active, so a fresh deployment starts open.
func (g *Gate) IsPaused(ctx context.Context) (bool, error) {
	if !g.enabled {
		return false, nil
	}

	value, err := g.bus.Get(ctx, statebus.KeyListeningPaused)
	if err != nil {
		if statebus.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read listening state: %w", err)
	}
	return strings.EqualFold(value, "true"), nil
}

// Pause closes the gate and returns the acknowledgment to speak.
func (g *Gate) Pause(ctx context.Context) (string, error) {
	if _, err := g.bus.Set(ctx, statebus.KeyListeningPaused, "True", g.source, statebus.PrioritySignal); err != nil {
		return "", fmt.Errorf("failed to pause listening: %w", err)
	}
	log.Printf("[Gate] listening paused")
	return g.ack(g.stopAck), nil
}

// Resume opens the gate and returns the acknowledgment to speak. The
// talk-intent key is reset at the user-control tier first, so the front-end
// can re-trigger a turn at its own tier afterwards.
func (g *Gate) Resume(ctx context.Context) (string, error) {
	if _, err := g.bus.Set(ctx, statebus.KeyTalkIntent, "False", g.source, statebus.PriorityUserControl); err != nil {
		return "", fmt.Errorf("failed to reset talk intent: %w", err)
	}
	if _, err := g.bus.Set(ctx, statebus.KeyListeningPaused, "False", g.source, statebus.PrioritySignal); err != nil {
		return "", fmt.Errorf("failed to resume listening: %w", err)
	}
	log.Printf("[Gate] listening resumed")
	return g.ack(g.startAck), nil
}

func (g *Gate) ack(template string) string {
	return strings.ReplaceAll(template, "{user_name}", g.userName)
}

// Package synth implements the synthesis agent: it waits for the
// speak-ready flag, plays the queued text and stops playback the moment
// the interruption flag is raised on the bus.
package synth

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banterhq/banter/pkg/statebus"
)

// Source is the writer identity the synthesis agent stamps on its bus writes.
const Source = "synth_agent"

// Agent owns one playback pipeline.
type Agent struct {
	bus     *statebus.Client
	speaker Speaker
	poll    time.Duration

	instanceID string
}

// New creates a synthesis agent. poll is how often playback checks the
// interrupt key.
func New(bus *statebus.Client, speaker Speaker, poll time.Duration) (*Agent, error) {
	if bus == nil || speaker == nil {
		return nil, fmt.Errorf("synth agent is missing a required collaborator")
	}
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	return &Agent{
		bus:        bus,
		speaker:    speaker,
		poll:       poll,
		instanceID: uuid.New().String()[:8],
	}, nil
}

// Run drives the agent until the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	log.Printf("[Synth] agent %s starting", a.instanceID)

	sub, err := a.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to state bus: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Errors():
			if err != nil {
				log.Printf("[Synth] dropping malformed bus event: %v", err)
			}
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if event.Key == statebus.KeySpeakReady && strings.EqualFold(event.Value, "true") {
				a.handleSpeak(ctx)
			}
		}
	}
}

func (a *Agent) handleSpeak(ctx context.Context) {
	text, err := a.bus.Get(ctx, statebus.KeySpeakText)
	if err != nil && !statebus.IsNotFound(err) {
		log.Printf("[Synth] could not read speak text: %v", err)
		return
	}
	if strings.TrimSpace(text) == "" {
		log.Printf("[Synth] speak-ready raised with no text queued")
		a.releasePipeline(ctx)
		return
	}

	// A leftover interrupt from the previous turn must not kill this one.
	if _, err := a.bus.Set(ctx, statebus.KeyInterrupt, "false", Source, statebus.PrioritySignal); err != nil {
		log.Printf("[Synth] failed to clear stale interrupt: %v", err)
	}

	if _, err := a.bus.Set(ctx, statebus.KeyAssistantSpeaking, "True", Source, statebus.PrioritySignal); err != nil {
		log.Printf("[Synth] failed to mark playback start: %v", err)
		return
	}

	interrupted := a.play(ctx, text)
	if interrupted {
		log.Printf("[Synth] playback interrupted by user speech")
	}

	if _, err := a.bus.Set(ctx, statebus.KeyAssistantSpeaking, "False", Source, statebus.PrioritySignal); err != nil {
		log.Printf("[Synth] failed to mark playback end: %v", err)
	}
	if _, err := a.bus.Set(ctx, statebus.KeyInterrupt, "false", Source, statebus.PrioritySignal); err != nil {
		log.Printf("[Synth] failed to reset interrupt flag: %v", err)
	}

	a.releasePipeline(ctx)
}

// releasePipeline removes the speak keys so the reasoning engine can queue
// the next response. The keys were written at the engine's own tier, which
// this agent cannot outrank with a Set; Clear bypasses the floor for exactly
// this hand-back.
func (a *Agent) releasePipeline(ctx context.Context) {
	if err := a.bus.Clear(ctx, statebus.KeySpeakReady, Source); err != nil {
		log.Printf("[Synth] failed to release speak-ready: %v", err)
	}
	if err := a.bus.Clear(ctx, statebus.KeySpeakText, Source); err != nil {
		log.Printf("[Synth] failed to release speak-text: %v", err)
	}
}

// play speaks the text while a watchdog polls the interrupt key. Returns
// whether playback was cut short by an interruption.
func (a *Agent) play(ctx context.Context, text string) bool {
	speakCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var interrupted atomic.Bool
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(a.poll)
		defer ticker.Stop()

		for {
			select {
			case <-speakCtx.Done():
				return
			case <-ticker.C:
				value, err := a.bus.Get(speakCtx, statebus.KeyInterrupt)
				if err != nil {
					continue
				}
				if strings.EqualFold(value, "true") {
					interrupted.Store(true)
					cancel()
					return
				}
			}
		}
	}()

	if err := a.speaker.Speak(speakCtx, text); err != nil && !interrupted.Load() && ctx.Err() == nil {
		log.Printf("[Synth] playback failed: %v", err)
	}

	cancel()
	wg.Wait()

	return interrupted.Load()
}

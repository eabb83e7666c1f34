// Package capture implements the capture agent: it waits for the talk
// trigger on the bus, records one utterance through the segmenter, gets it
// transcribed, applies the listening gate and hands the transcript to the
// reasoning engine. It also hosts the interruption monitor, which watches
// every frame regardless of whether a turn is in progress.
package capture

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banterhq/banter/internal/gate"
	"github.com/banterhq/banter/internal/monitor"
	"github.com/banterhq/banter/internal/vad"
	"github.com/banterhq/banter/pkg/statebus"
)

// Source is the writer identity the capture agent stamps on its bus writes.
const Source = "capture_agent"

type timedFrame struct {
	samples []float32
	at      time.Time
}

// Agent owns one capture pipeline. Construct with New and drive with Run.
type Agent struct {
	bus          *statebus.Client
	segmenter    *vad.Segmenter
	store        *vad.Store
	frames       FrameSource
	transcriber  Transcriber
	handoff      Handoff
	gate         *gate.Gate
	monitor      *monitor.Monitor
	maxRecording time.Duration

	instanceID string
	recording  atomic.Bool
	rec        chan timedFrame
}

// Options bundles the collaborators of a capture Agent. All fields are
// required except Monitor, which may be nil when interruption detection is
// handled elsewhere.
type Options struct {
	Bus          *statebus.Client
	Segmenter    *vad.Segmenter
	Store        *vad.Store
	Frames       FrameSource
	Transcriber  Transcriber
	Handoff      Handoff
	Gate         *gate.Gate
	Monitor      *monitor.Monitor
	MaxRecording time.Duration
}

func New(opts Options) (*Agent, error) {
	if opts.Bus == nil || opts.Segmenter == nil || opts.Store == nil || opts.Frames == nil ||
		opts.Transcriber == nil || opts.Handoff == nil || opts.Gate == nil {
		return nil, fmt.Errorf("capture agent is missing a required collaborator")
	}
	if opts.MaxRecording <= 0 {
		return nil, fmt.Errorf("max recording duration must be positive, got %v", opts.MaxRecording)
	}

	return &Agent{
		bus:          opts.Bus,
		segmenter:    opts.Segmenter,
		store:        opts.Store,
		frames:       opts.Frames,
		transcriber:  opts.Transcriber,
		handoff:      opts.Handoff,
		gate:         opts.Gate,
		monitor:      opts.Monitor,
		maxRecording: opts.MaxRecording,
		instanceID:   uuid.New().String()[:8],
		rec:          make(chan timedFrame, 32),
	}, nil
}

// Run drives the agent until the context is cancelled. It subscribes to bus
// events, starts the frame source and handles one turn at a time.
func (a *Agent) Run(ctx context.Context) error {
	log.Printf("[Capture] agent %s starting", a.instanceID)

	if !a.transcriber.Healthy(ctx) {
		log.Printf("[Capture] transcription server not healthy yet, continuing anyway")
	}

	sub, err := a.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to state bus: %w", err)
	}
	defer sub.Close()

	if err := a.frames.Start(); err != nil {
		return fmt.Errorf("failed to start frame source: %w", err)
	}
	defer a.frames.Stop()

	a.primeMonitor(ctx)
	go a.frameLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Errors():
			if err != nil {
				log.Printf("[Capture] dropping malformed bus event: %v", err)
			}
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if a.monitor != nil {
				a.monitor.HandleEvent(event)
			}
			if event.Key == statebus.KeyTalkIntent && strings.EqualFold(event.Value, "true") {
				a.handleTurn(ctx)
			}
		}
	}
}

// primeMonitor seeds the cached playback flag before any events arrive.
func (a *Agent) primeMonitor(ctx context.Context) {
	if a.monitor == nil {
		return
	}
	value, err := a.bus.Get(ctx, statebus.KeyAssistantSpeaking)
	if err != nil && !statebus.IsNotFound(err) {
		log.Printf("[Capture] could not read playback state: %v", err)
		return
	}
	a.monitor.SetAssistantSpeaking(strings.EqualFold(value, "true"))
}

// frameLoop fans incoming frames out to the interruption monitor always,
// and to the recording channel only while a turn is being captured.
func (a *Agent) frameLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-a.frames.Frames():
			if !ok {
				return
			}
			now := time.Now()
			if a.monitor != nil {
				a.monitor.OnFrame(frame, now)
			}
			if a.recording.Load() {
				select {
				case a.rec <- timedFrame{samples: frame, at: now}:
				default:
				}
			}
		}
	}
}

// handleTurn runs one full capture turn: record, transcribe, gate, hand off.
func (a *Agent) handleTurn(ctx context.Context) {
	// Consume the trigger with a clear: the holder may sit at the front-end
	// tier, which no ordinary write can lower. finishTurn rearms the key
	// below that tier so any trigger source can start the next turn.
	if err := a.bus.Clear(ctx, statebus.KeyTalkIntent, Source); err != nil {
		log.Printf("[Capture] failed to consume talk trigger: %v", err)
		return
	}

	speaking, err := a.bus.Get(ctx, statebus.KeyAssistantSpeaking)
	if err != nil && !statebus.IsNotFound(err) {
		log.Printf("[Capture] could not read playback state: %v", err)
		return
	}
	if strings.EqualFold(speaking, "true") {
		log.Printf("[Capture] assistant is speaking, ignoring talk trigger")
		return
	}

	if _, err := a.bus.Set(ctx, statebus.KeyHumanSpeaking, "True", Source, statebus.PrioritySignal); err != nil {
		log.Printf("[Capture] failed to mark recording start: %v", err)
		return
	}
	defer a.finishTurn(ctx)

	segment := a.record(ctx)
	if segment == nil {
		log.Printf("[Capture] no usable speech captured")
		a.signalTranscript(ctx, false)
		return
	}

	transcript, err := a.transcribeSegment(ctx, segment)
	if err != nil {
		log.Printf("[Capture] transcription failed: %v", err)
		a.signalTranscript(ctx, false)
		return
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		log.Printf("[Capture] empty transcript, nothing to hand off")
		a.signalTranscript(ctx, false)
		return
	}

	log.Printf("[Capture] transcript: %q", transcript)

	switch a.gate.CheckControlPhrase(transcript) {
	case gate.ActionPause:
		ack, err := a.gate.Pause(ctx)
		if err != nil {
			log.Printf("[Capture] failed to pause listening: %v", err)
			return
		}
		a.speak(ctx, ack)
		return
	case gate.ActionResume:
		ack, err := a.gate.Resume(ctx)
		if err != nil {
			log.Printf("[Capture] failed to resume listening: %v", err)
			return
		}
		a.speak(ctx, ack)
		return
	}

	paused, err := a.gate.IsPaused(ctx)
	if err != nil {
		log.Printf("[Capture] could not read listening state: %v", err)
		return
	}
	if paused {
		log.Printf("[Capture] listening is paused, dropping transcript")
		return
	}

	if err := a.handoff.Deliver(ctx, transcript); err != nil {
		log.Printf("[Capture] %v", err)
		a.signalTranscript(ctx, false)
		return
	}

	a.signalTranscript(ctx, true)
}

// record runs the segmenter over live frames until an utterance completes,
// is discarded, or the recording cap elapses. On timeout the buffered audio
// is salvaged: a truncated utterance beats silent loss.
func (a *Agent) record(ctx context.Context) *vad.Segment {
	a.segmenter.Reset()

	// Flush frames queued before this turn started.
	for len(a.rec) > 0 {
		<-a.rec
	}

	a.recording.Store(true)
	defer a.recording.Store(false)

	timer := time.NewTimer(a.maxRecording)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return a.segmenter.ForceFinish(time.Now())
		case <-timer.C:
			log.Printf("[Capture] recording cap reached, salvaging buffered audio")
			return a.segmenter.ForceFinish(time.Now())
		case frame := <-a.rec:
			result := a.segmenter.ProcessFrame(frame.samples, frame.at)
			switch result.Event {
			case vad.EventSegmentReady:
				log.Printf("[Capture] captured %.2fs of speech", result.Segment.Duration().Seconds())
				return result.Segment
			case vad.EventSegmentDiscarded:
				log.Printf("[Capture] discarded noise burst")
				return nil
			}
		}
	}
}

func (a *Agent) transcribeSegment(ctx context.Context, segment *vad.Segment) (string, error) {
	path, err := a.store.Save(segment)
	if err != nil {
		return "", fmt.Errorf("failed to persist segment: %w", err)
	}
	defer func() {
		if err := a.store.Remove(path); err != nil {
			log.Printf("[Capture] could not remove segment file %s: %v", path, err)
		}
	}()

	return a.transcriber.Transcribe(ctx, path)
}

// speak routes gate acknowledgments through the synthesis pipeline.
func (a *Agent) speak(ctx context.Context, text string) {
	if _, err := a.bus.Set(ctx, statebus.KeySpeakText, text, Source, statebus.PriorityPipeline); err != nil {
		log.Printf("[Capture] failed to queue acknowledgment: %v", err)
		return
	}
	if _, err := a.bus.Set(ctx, statebus.KeySpeakReady, "True", Source, statebus.PriorityPipeline); err != nil {
		log.Printf("[Capture] failed to queue acknowledgment: %v", err)
	}
}

func (a *Agent) signalTranscript(ctx context.Context, delivered bool) {
	value := "False"
	if delivered {
		value = "True"
	}
	if _, err := a.bus.Set(ctx, statebus.KeyTranscriptReady, value, Source, statebus.PriorityPipeline); err != nil {
		log.Printf("[Capture] failed to publish transcript flag: %v", err)
	}
}

func (a *Agent) finishTurn(ctx context.Context) {
	if _, err := a.bus.Set(ctx, statebus.KeyHumanSpeaking, "False", Source, statebus.PrioritySignal); err != nil {
		log.Printf("[Capture] failed to mark recording end: %v", err)
	}
	if _, err := a.bus.Set(ctx, statebus.KeyTalkIntent, "False", Source, statebus.PriorityContinuation); err != nil {
		log.Printf("[Capture] failed to rearm talk trigger: %v", err)
	}
}

// Package monitor raises the interruption flag when the human speaks over
// the assistant. It runs on the capture agent's audio path, so it never
// performs bus I/O inline: the assistant-speaking flag is a locally cached
// copy updated from the subscription loop, and interrupt writes go through
// the dispatcher queue.
package monitor

import (
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/banterhq/banter/internal/vad"
	"github.com/banterhq/banter/pkg/statebus"
)

// Monitor classifies incoming frames while the assistant is speaking and
// signals an interruption at most once per cooldown interval.
//
// OnFrame must be called from a single goroutine (the frame loop);
// HandleEvent and SetAssistantSpeaking may be called from any goroutine.
type Monitor struct {
	detector  vad.Detector
	writes    *statebus.Dispatcher
	threshold float64
	cooldown  time.Duration
	source    string

	speaking   atomic.Bool
	lastSignal time.Time
}

func New(detector vad.Detector, writes *statebus.Dispatcher, threshold float64, cooldown time.Duration, source string) *Monitor {
	return &Monitor{
		detector:  detector,
		writes:    writes,
		threshold: threshold,
		cooldown:  cooldown,
		source:    source,
	}
}

// SetAssistantSpeaking overrides the cached playback flag. Used at startup
// after an initial Get, before any events have arrived.
func (m *Monitor) SetAssistantSpeaking(speaking bool) {
	m.speaking.Store(speaking)
}

// HandleEvent updates the cached playback flag from a bus change event.
// Events for other keys are ignored.
func (m *Monitor) HandleEvent(event statebus.ChangeEvent) {
	if event.Key != statebus.KeyAssistantSpeaking {
		return
	}
	m.speaking.Store(!event.Cleared() && strings.EqualFold(event.Value, "true"))
}

// OnFrame classifies one frame and reports whether an interruption signal
// was submitted. now is the frame's capture time.
//
// Frames are ignored unless the assistant is currently speaking. A detector
// failure is treated as silence. Within the cooldown window after a signal,
// further speech is recognized but not re-signalled.
func (m *Monitor) OnFrame(frame []float32, now time.Time) bool {
	if !m.speaking.Load() {
		return false
	}

	probability, err := m.detector.Classify(frame)
	if err != nil || probability < m.threshold {
		return false
	}

	if !m.lastSignal.IsZero() && now.Sub(m.lastSignal) < m.cooldown {
		return false
	}

	if !m.writes.Submit(statebus.KeyInterrupt, "true", m.source, statebus.PrioritySignal) {
		log.Printf("[Monitor] interrupt signal dropped: write queue full")
		return false
	}

	log.Printf("[Monitor] user speech during playback, interruption signalled")
	m.lastSignal = now
	return true
}

package statebus

// StateRecord is the stored form of one bus key: the current value plus the
// identity and authority of whoever wrote it.
type StateRecord struct {
	Value     string   `json:"value"`     // Current value, always a string on the wire
	Source    string   `json:"source"`    // Writer identity (agent tag, not authentication)
	Priority  Priority `json:"priority"`  // Tier the write was issued at
	Timestamp int64    `json:"timestamp"` // Unix seconds when the write was accepted
}

// ChangeEvent is one entry on the broadcast channel. It is ephemeral: events
// are not persisted and a subscriber that connects late cannot replay them.
type ChangeEvent struct {
	Key   string
	Value string
}

// Cleared reports whether the event signals removal of the key rather than a
// new value.
func (e ChangeEvent) Cleared() bool {
	return e.Value == ClearedValue
}

// ClearedValue is the reserved sentinel published when a key is removed.
// It is distinct from any real value so subscribers can tell "key removed"
// apart from "key set to empty string".
const ClearedValue = "CLEARED"

// Priority ranks a write's authority to override the current holder of a
// key. The tiers below are the single shared table consumed by every agent;
// the ordering contract lives here and nowhere else.
type Priority int

const (
	// PriorityDefault is the floor for unremarkable writes.
	PriorityDefault Priority = 0

	// PrioritySignal is used for agent lifecycle signals such as
	// human-speaking, assistant-speaking and interruption flags.
	PrioritySignal Priority = 10

	// PriorityPipeline is used for pipeline completion markers
	// (transcript ready, speech ready).
	PriorityPipeline Priority = 20

	// PriorityContinuation is used when an agent resets a trigger as part
	// of automatic turn continuation.
	PriorityContinuation Priority = 30

	// PriorityUserControl is used for explicit user control phrases
	// (pause listening, resume listening).
	PriorityUserControl Priority = 38

	// PriorityFrontEnd is the highest tier, reserved for direct front-end
	// actions such as the talk button.
	PriorityFrontEnd Priority = 40
)

// Well-known bus keys. The names match the persisted schema of the original
// deployment so that backends can be swapped without migration.
const (
	// KeyTalkIntent is set when the human wants to start a new turn.
	KeyTalkIntent = "user_wants_to_talk"

	// KeyHumanSpeaking is true while the capture agent is recording.
	KeyHumanSpeaking = "human_speaking"

	// KeyAssistantSpeaking is true while the synthesis agent is playing audio.
	KeyAssistantSpeaking = "ai_speaking"

	// KeyAssistantThinking is true while the reasoning engine is working.
	KeyAssistantThinking = "ai_thinking"

	// KeyInterrupt is raised by the interruption monitor when the human
	// speaks over the assistant.
	KeyInterrupt = "interrupt_ai_speech"

	// KeyTranscriptReady is set once a transcript has been handed off.
	KeyTranscriptReady = "stt_ready"

	// KeySpeakReady is set by the reasoning engine once KeySpeakText holds
	// a response to synthesize.
	KeySpeakReady = "tts_ready"

	// KeySpeakText holds the text the synthesis agent should speak next.
	KeySpeakText = "tts_text"

	// KeyListeningPaused is true while the listening gate is closed.
	KeyListeningPaused = "listening_paused"
)

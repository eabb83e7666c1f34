package statebus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleSetAllows(t *testing.T) {
	rules := RuleSet{
		"interrupt_ai_speech": {AllowIf: strPtr("true")},
		"listening_paused":    {MinPriority: intPtr(10)},
		"tts_text":            {AllowedSources: []string{"reasoner"}},
		"locked": {
			AllowIf:        strPtr("open"),
			MinPriority:    intPtr(20),
			AllowedSources: []string{"admin"},
		},
	}

	tests := []struct {
		name     string
		key      string
		value    string
		source   string
		priority Priority
		want     bool
	}{
		{"no rule means no restriction", "human_speaking", "anything", "anyone", 0, true},
		{"allow_if exact match", "interrupt_ai_speech", "true", "monitor", 0, true},
		{"allow_if is case-insensitive", "interrupt_ai_speech", "TRUE", "monitor", 0, true},
		{"allow_if mismatch", "interrupt_ai_speech", "false", "monitor", 40, false},
		{"min_priority at floor", "listening_paused", "True", "gate", 10, true},
		{"min_priority below floor", "listening_paused", "True", "gate", 9, false},
		{"allowed source", "tts_text", "hi", "reasoner", 0, true},
		{"disallowed source", "tts_text", "hi", "capture", 40, false},
		{"all conditions pass", "locked", "OPEN", "admin", 20, true},
		{"one condition fails rejects", "locked", "open", "admin", 19, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rules.Allows(tt.key, tt.value, tt.source, tt.priority)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNilRuleSetAllowsEverything(t *testing.T) {
	var rules RuleSet
	assert.True(t, rules.Allows("any", "value", "source", 0))
}

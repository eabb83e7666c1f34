package gate

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banterhq/banter/pkg/statebus"
)

func testOptions() Options {
	return Options{
		Enabled:      true,
		UserName:     "sam",
		StopPhrases:  []string{"stop listening", "pause listening"},
		StartPhrases: []string{"start listening", "resume listening"},
		StopAck:      "Ok {user_name} I stop listening",
		StartAck:     "Ok {user_name} I'm listening again",
	}
}

func setupGate(t *testing.T, opts Options) (*Gate, *statebus.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := statebus.NewClient(&redis.Options{Addr: mr.Addr()}, nil)
	t.Cleanup(func() { client.Close() })

	return New(client, "capture_agent", opts), client
}

func TestCheckControlPhrase(t *testing.T) {
	g, _ := setupGate(t, testOptions())

	tests := []struct {
		name       string
		transcript string
		want       Action
	}{
		{"exact pause phrase", "stop listening", ActionPause},
		{"pause with punctuation and case", "Please, STOP listening!", ActionPause},
		{"pause embedded in sentence", "could you stop listening for a while", ActionPause},
		{"resume phrase", "start listening", ActionResume},
		{"resume with extra whitespace", "  start   listening  now", ActionResume},
		{"ordinary transcript", "what is the weather today", ActionNone},
		{"partial phrase does not match", "stop the music", ActionNone},
		{"pause wins when both match", "stop listening then start listening", ActionPause},
		{"empty transcript", "", ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.CheckControlPhrase(tt.transcript))
		})
	}
}

func TestCheckControlPhraseDisabled(t *testing.T) {
	opts := testOptions()
	opts.Enabled = false
	g, _ := setupGate(t, opts)

	assert.Equal(t, ActionNone, g.CheckControlPhrase("stop listening"))
}

func TestIsPaused(t *testing.T) {
	ctx := context.Background()
	g, client := setupGate(t, testOptions())

	t.Run("absent key means listening", func(t *testing.T) {
		paused, err := g.IsPaused(ctx)
		require.NoError(t, err)
		assert.False(t, paused)
	})

	t.Run("reflects the bus value", func(t *testing.T) {
		_, err := client.Set(ctx, statebus.KeyListeningPaused, "True", "other", statebus.PrioritySignal)
		require.NoError(t, err)

		paused, err := g.IsPaused(ctx)
		require.NoError(t, err)
		assert.True(t, paused)
	})

	t.Run("disabled gate always reads active", func(t *testing.T) {
		opts := testOptions()
		opts.Enabled = false
		disabled := New(client, "capture_agent", opts)

		paused, err := disabled.IsPaused(ctx)
		require.NoError(t, err)
		assert.False(t, paused)
	})
}

func TestPauseAndResume(t *testing.T) {
	ctx := context.Background()
	g, client := setupGate(t, testOptions())

	ack, err := g.Pause(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ok sam I stop listening", ack)

	paused, err := g.IsPaused(ctx)
	require.NoError(t, err)
	assert.True(t, paused)

	ack, err = g.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ok sam I'm listening again", ack)

	paused, err = g.IsPaused(ctx)
	require.NoError(t, err)
	assert.False(t, paused)

	// Resume also releases the turn trigger so the front-end can set it
	// again at its own tier.
	record, err := client.GetRecord(ctx, statebus.KeyTalkIntent)
	require.NoError(t, err)
	assert.Equal(t, "False", record.Value)
	assert.Equal(t, statebus.PriorityUserControl, record.Priority)

	accepted, err := client.Set(ctx, statebus.KeyTalkIntent, "True", "front_end", statebus.PriorityFrontEnd)
	require.NoError(t, err)
	assert.True(t, accepted)
}

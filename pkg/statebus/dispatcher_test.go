package statebus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherAppliesSubmittedWrites(t *testing.T) {
	client, _ := setupTestClient(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := NewDispatcher(client, 8)
	go dispatcher.Run(ctx)

	require.True(t, dispatcher.Submit("interrupt_ai_speech", "true", "monitor", PrioritySignal))

	// Fire-and-forget: completion is observed via a later read.
	require.Eventually(t, func() bool {
		value, err := client.Get(ctx, "interrupt_ai_speech")
		return err == nil && value == "true"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatcherQueueFull(t *testing.T) {
	client, _ := setupTestClient(t, nil)

	// No Run loop draining, so the queue fills immediately.
	dispatcher := NewDispatcher(client, 1)

	assert.True(t, dispatcher.Submit("a", "1", "test", PriorityDefault))
	assert.False(t, dispatcher.Submit("b", "2", "test", PriorityDefault))
}

func TestDispatcherSurvivesRejectedWrites(t *testing.T) {
	client, _ := setupTestClient(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accepted, err := client.Set(ctx, "talk", "true", "frontend", PriorityFrontEnd)
	require.NoError(t, err)
	require.True(t, accepted)

	dispatcher := NewDispatcher(client, 8)
	go dispatcher.Run(ctx)

	// Rejected by the priority floor; the loop keeps draining.
	require.True(t, dispatcher.Submit("talk", "false", "capture", PrioritySignal))
	require.True(t, dispatcher.Submit("human_speaking", "True", "capture", PrioritySignal))

	require.Eventually(t, func() bool {
		value, err := client.Get(ctx, "human_speaking")
		return err == nil && value == "True"
	}, 2*time.Second, 10*time.Millisecond)

	value, err := client.Get(ctx, "talk")
	require.NoError(t, err)
	assert.Equal(t, "true", value)
}

package statebus

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	record := &StateRecord{
		Value:     "True",
		Source:    "capture",
		Priority:  PriorityContinuation,
		Timestamp: 1724630400,
	}

	hash := recordToHash(record)

	// Redis hands hashes back as string maps.
	stringHash := make(map[string]string, len(hash))
	for k, v := range hash {
		switch value := v.(type) {
		case string:
			stringHash[k] = value
		case int:
			stringHash[k] = strconv.Itoa(value)
		case int64:
			stringHash[k] = strconv.FormatInt(value, 10)
		}
	}

	decoded, err := hashToRecord(stringHash)
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}

func TestHashToRecordErrors(t *testing.T) {
	t.Run("non-numeric priority", func(t *testing.T) {
		_, err := hashToRecord(map[string]string{"value": "x", "priority": "high"})
		assert.Error(t, err)
	})

	t.Run("missing timestamp tolerated", func(t *testing.T) {
		record, err := hashToRecord(map[string]string{"value": "x", "source": "s", "priority": "5"})
		require.NoError(t, err)
		assert.Zero(t, record.Timestamp)
		assert.Equal(t, Priority(5), record.Priority)
	})
}

func TestStateKeyPattern(t *testing.T) {
	assert.Equal(t, "state:ai_speaking", StateKey("ai_speaking"))
	assert.Equal(t, "channel:state", EventsChannel)
	assert.Equal(t, "talk=true", EventPayload("talk", "true"))
	assert.Equal(t, "talk=CLEARED", EventPayload("talk", ClearedValue))
}

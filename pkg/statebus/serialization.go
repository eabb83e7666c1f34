package statebus

import (
	"fmt"
	"strconv"
)

// Serialization helpers for converting between StateRecord and Redis hashes.
// Every field is stored as a string field on the hash so that non-Go peers
// can read and write records directly.

// recordToHash converts a StateRecord to the Redis hash format.
func recordToHash(r *StateRecord) map[string]interface{} {
	return map[string]interface{}{
		"value":     r.Value,
		"source":    r.Source,
		"priority":  int(r.Priority),
		"timestamp": r.Timestamp,
	}
}

// hashToRecord converts a Redis hash back to a StateRecord.
func hashToRecord(hash map[string]string) (*StateRecord, error) {
	priority, err := strconv.Atoi(hash["priority"])
	if err != nil {
		return nil, fmt.Errorf("invalid priority field %q: %w", hash["priority"], err)
	}

	// A missing timestamp is tolerated: peers that predate the field
	// write records without it.
	timestamp, _ := strconv.ParseInt(hash["timestamp"], 10, 64)

	return &StateRecord{
		Value:     hash["value"],
		Source:    hash["source"],
		Priority:  Priority(priority),
		Timestamp: timestamp,
	}, nil
}

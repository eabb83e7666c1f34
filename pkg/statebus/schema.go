package statebus

import "fmt"

// Redis key and channel patterns
//
// The schema is fixed so that any client speaking it can act as a drop-in
// backend peer: records are hashes at state:{key}, and change notification
// is a single broadcast Pub/Sub channel carrying {key}={value} strings.

// EventsChannel is the Pub/Sub channel all change events are published on.
const EventsChannel = "channel:state"

// StateKey returns the Redis key holding the record for a bus key.
// Pattern: state:{key}
func StateKey(key string) string {
	return fmt.Sprintf("state:%s", key)
}

// EventPayload returns the wire form of a change event.
// Pattern: {key}={value}
func EventPayload(key, value string) string {
	return fmt.Sprintf("%s=%s", key, value)
}

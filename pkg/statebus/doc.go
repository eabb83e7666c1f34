// Package statebus provides the priority-arbitrated shared state bus that
// coordinates the banter voice agents.
//
// # Overview
//
// The bus is a small keyed store in Redis where independent agents (speech
// capture, speech synthesis, the reasoning engine, front-ends) agree on a
// handful of conversational facts: is the human speaking, is the assistant
// speaking, has the human asked to pause listening, does the human want to
// start a new turn. There is no central scheduler - agents race, and the bus
// is the single arbitration point that makes the outcome deterministic.
//
// # Core Concepts
//
// Every key holds one StateRecord: a value tagged with the writer's identity,
// a priority tier and a timestamp. A write is accepted only if its priority
// is at least the current holder's priority (the floor is absolute, checked
// before any admission rule) and the key's admission rule, if configured,
// permits it. A rejected write is a normal boolean result, not an error.
//
// Clear removes a record regardless of the holder's priority. This asymmetry
// is deliberate: it is how a high-priority writer voluntarily relinquishes a
// key so that a normally lower-priority writer can succeed again.
//
// Every accepted write or clear publishes exactly one change event on a
// single broadcast channel. Subscribers are independent; delivery is
// at-most-once with no history, so a late subscriber must Get current state
// after subscribing.
//
// # Redis Schema
//
// Records are hashes at state:{key} with fields value, source, priority and
// timestamp. Change events are UTF-8 strings of the form {key}={value} on
// the channel:state Pub/Sub channel; the reserved value "CLEARED" marks key
// removal. Any client speaking this schema can be dropped in as a backend
// peer.
//
// # Usage Example
//
//	client := statebus.NewClient(&redis.Options{Addr: "localhost:6379"}, rules)
//	defer client.Close()
//
//	accepted, err := client.Set(ctx, statebus.KeyTalkIntent, "True", "frontend", statebus.PriorityFrontEnd)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if !accepted {
//		// someone more authoritative already holds the key
//	}
package statebus

package statebus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// setRetries bounds the optimistic-locking retry loop in Set. Contention on
// a single key is short-lived (writes are near-instantaneous), so a handful
// of attempts is plenty.
const setRetries = 5

// Client provides the bus operations: conditional write, read, clear and
// subscribe. The client is thread-safe and can be used concurrently from
// multiple goroutines.
type Client struct {
	rdb   *redis.Client
	rules RuleSet
}

// NewClient creates a bus client. rules may be nil, in which case every key
// is unrestricted.
func NewClient(redisOpts *redis.Options, rules RuleSet) *Client {
	return &Client{
		rdb:   redis.NewClient(redisOpts),
		rules: rules,
	}
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Set attempts a conditional write and reports whether it was accepted.
//
// The priority floor is absolute and checked first: if a record exists and
// priority is below the holder's, the write is rejected before rules are
// consulted. Otherwise the key's admission rule decides. On acceptance the
// record is replaced, stamped with the current time, and a change event is
// published in the same transaction, so subscribers observe events in
// acceptance order.
//
// A rejected write is the normal "lost the race" signal, not an error.
// Errors are reserved for an unreachable or misbehaving backend.
func (c *Client) Set(ctx context.Context, key, value, source string, priority Priority) (bool, error) {
	redisKey := StateKey(key)
	accepted := false

	// The read-compare-write-publish sequence must be atomic per key.
	// WATCH gives us an optimistic critical section scoped to this key
	// alone; writers to other keys proceed independently.
	txf := func(tx *redis.Tx) error {
		hash, err := tx.HGetAll(ctx, redisKey).Result()
		if err != nil {
			return err
		}

		if len(hash) > 0 {
			record, err := hashToRecord(hash)
			if err != nil {
				return fmt.Errorf("corrupt record for key %q: %w", key, err)
			}
			if priority < record.Priority {
				return nil
			}
		}

		if !c.rules.Allows(key, value, source, priority) {
			return nil
		}

		record := &StateRecord{
			Value:     value,
			Source:    source,
			Priority:  priority,
			Timestamp: time.Now().Unix(),
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, redisKey, recordToHash(record))
			pipe.Publish(ctx, EventsChannel, EventPayload(key, value))
			return nil
		})
		if err != nil {
			return err
		}

		accepted = true
		return nil
	}

	for i := 0; i < setRetries; i++ {
		err := c.rdb.Watch(ctx, txf, redisKey)
		if err == nil {
			return accepted, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// Another writer touched the key between read and write;
			// re-read and re-arbitrate.
			continue
		}
		return false, fmt.Errorf("failed to write key %q to state bus: %w", key, err)
	}

	return false, fmt.Errorf("gave up writing key %q after %d contended attempts", key, setRetries)
}

// Get returns the latest accepted value for a key.
// Returns ("", redis.Nil) if the key is absent; use IsNotFound to check.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	value, err := c.rdb.HGet(ctx, StateKey(key), "value").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", redis.Nil
		}
		return "", fmt.Errorf("failed to read key %q from state bus: %w", key, err)
	}
	return value, nil
}

// GetRecord returns the full record for a key, including writer identity and
// priority. Returns (nil, redis.Nil) if the key is absent.
func (c *Client) GetRecord(ctx context.Context, key string) (*StateRecord, error) {
	hash, err := c.rdb.HGetAll(ctx, StateKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read key %q from state bus: %w", key, err)
	}

	// HGetAll returns an empty map for non-existent keys.
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	record, err := hashToRecord(hash)
	if err != nil {
		return nil, fmt.Errorf("corrupt record for key %q: %w", key, err)
	}

	return record, nil
}

// Clear removes the record for a key regardless of the current holder's
// priority, and publishes the ClearedValue sentinel. The removal and the
// sentinel share one transaction, so no concurrently accepted write can
// slip its event between them and subscribers see events in acceptance
// order.
//
// The bypass of the priority floor is deliberate: clear is the mechanism by
// which a high-priority holder relinquishes control so that a lower-priority
// writer can succeed afterwards. Clearing an absent key succeeds silently
// and publishes nothing.
func (c *Client) Clear(ctx context.Context, key, source string) error {
	redisKey := StateKey(key)

	txf := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, redisKey).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, redisKey)
			pipe.Publish(ctx, EventsChannel, EventPayload(key, ClearedValue))
			return nil
		})
		return err
	}

	for i := 0; i < setRetries; i++ {
		err := c.rdb.Watch(ctx, txf, redisKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("failed to clear key %q (source %s): %w", key, source, err)
	}

	return fmt.Errorf("gave up clearing key %q after %d contended attempts", key, setRetries)
}

// ParseEvent parses the wire form of a change event ({key}={value}).
// A payload without a key or a separator is malformed; subscribers drop
// such events with a warning rather than aborting their loop.
func ParseEvent(payload string) (ChangeEvent, error) {
	key, value, ok := strings.Cut(payload, "=")
	if !ok || key == "" {
		return ChangeEvent{}, fmt.Errorf("malformed state event %q", payload)
	}
	return ChangeEvent{Key: key, Value: value}, nil
}

// Subscription represents an active Pub/Sub subscription to bus change
// events. Caller must call Close() when done to clean up resources.
// Every subscriber sees every event; there is no shared cursor.
type Subscription struct {
	events <-chan ChangeEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of change events. The channel is closed when
// the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.events
}

// Errors returns the channel of subscription errors. Errors cover malformed
// payloads and are non-fatal; the subscription continues and the offending
// message is skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe opens a broadcast subscription to all change events.
//
// Delivery is at-most-once per listener with no history: a subscriber that
// connects late must call Get to learn current state. Events are delivered
// on a buffered channel (size 10) so a slow subscriber does not stall the
// publish path; if it falls further behind, Redis Pub/Sub drops messages.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, EventsChannel)

	eventsChan := make(chan ChangeEvent, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				event, err := ParseEvent(msg.Payload)
				if err != nil {
					select {
					case errorsChan <- err:
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error signals an absent key (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

// IsUnavailable returns true if the error indicates the bus backend is
// unreachable. Agents treat this as fatal to their current operation and
// surface it to their supervisor rather than swallowing it.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded)
}

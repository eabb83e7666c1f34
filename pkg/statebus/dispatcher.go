package statebus

import (
	"context"
	"log"
)

// Dispatcher decouples latency-sensitive callers from bus writes. Audio
// frame callbacks must never wait on bus I/O, so they Submit writes into a
// bounded queue that a dedicated goroutine drains. Callers that can afford
// to block use Client.Set directly; the two operations are intentionally
// distinct rather than one call whose blocking behaviour depends on context.
type Dispatcher struct {
	client *Client
	queue  chan writeRequest
}

type writeRequest struct {
	key      string
	value    string
	source   string
	priority Priority
}

// NewDispatcher creates a dispatcher with the given queue depth.
// Run must be started for submitted writes to be applied.
func NewDispatcher(client *Client, depth int) *Dispatcher {
	if depth <= 0 {
		depth = 16
	}
	return &Dispatcher{
		client: client,
		queue:  make(chan writeRequest, depth),
	}
}

// Submit enqueues a write without waiting for it to complete. Returns false
// if the queue is full, in which case the write is dropped; completion of an
// accepted submission is observable only via a later Get or a subscription.
func (d *Dispatcher) Submit(key, value, source string, priority Priority) bool {
	select {
	case d.queue <- writeRequest{key: key, value: value, source: source, priority: priority}:
		return true
	default:
		return false
	}
}

// Run drains the queue until the context is cancelled. Rejected writes are
// expected (another agent won the key) and only logged; backend errors are
// logged and the loop continues, since a dropped fire-and-forget write is
// recoverable by the next state read.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.queue:
			accepted, err := d.client.Set(ctx, req.key, req.value, req.source, req.priority)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[Dispatcher] write %s=%s failed: %v", req.key, req.value, err)
				continue
			}
			if !accepted {
				log.Printf("[Dispatcher] write %s=%s rejected (source=%s, priority=%d)",
					req.key, req.value, req.source, req.priority)
			}
		}
	}
}

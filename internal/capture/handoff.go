package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Handoff delivers a finished transcript to the reasoning engine. Transcript
// payloads travel over HTTP rather than the bus; the bus only carries the
// ready flag afterwards.
type Handoff interface {
	Deliver(ctx context.Context, transcript string) error
}

// HTTPHandoff posts transcripts as JSON with bounded retries. The delay
// doubles per attempt.
type HTTPHandoff struct {
	url        string
	maxRetries int
	retryDelay time.Duration
	client     *http.Client
}

func NewHTTPHandoff(url string, maxRetries int, retryDelay time.Duration) *HTTPHandoff {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &HTTPHandoff{
		url:        url,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (h *HTTPHandoff) Deliver(ctx context.Context, transcript string) error {
	payload, err := json.Marshal(map[string]string{"transcript": transcript})
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}

	delay := h.retryDelay
	var lastErr error

	for attempt := 1; attempt <= h.maxRetries; attempt++ {
		lastErr = h.post(ctx, payload)
		if lastErr == nil {
			return nil
		}

		log.Printf("[Capture] transcript hand-off attempt %d/%d failed: %v", attempt, h.maxRetries, lastErr)

		if attempt == h.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("transcript hand-off failed after %d attempts: %w", h.maxRetries, lastErr)
}

func (h *HTTPHandoff) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build hand-off request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reasoning engine returned %d", resp.StatusCode)
	}
	return nil
}

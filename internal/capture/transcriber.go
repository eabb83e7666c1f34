package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Transcriber turns a saved audio segment into text. The model behind it is
// opaque; the capture loop only sees transcripts.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
	Healthy(ctx context.Context) bool
}

// WhisperClient talks to a whisper-server-compatible HTTP endpoint. The
// segment file is uploaded as multipart form data and the response carries
// the transcript in a "text" field.
type WhisperClient struct {
	fs        afero.Fs
	url       string
	healthURL string
	client    *http.Client
}

func NewWhisperClient(fs afero.Fs, url, healthURL string) *WhisperClient {
	return &WhisperClient{
		fs:        fs,
		url:       url,
		healthURL: healthURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthy probes the server's health endpoint.
func (w *WhisperClient) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.healthURL, nil)
	if err != nil {
		return false
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false
	}
	return health.Status == "ok"
}

// Transcribe uploads the segment at path and returns the transcript, which
// may be empty when the model heard nothing intelligible.
func (w *WhisperClient) Transcribe(ctx context.Context, path string) (string, error) {
	file, err := w.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open segment %s: %w", path, err)
	}
	defer file.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("failed to read segment %s: %w", path, err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcription server returned %d: %s", resp.StatusCode, payload)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}

	return result.Text, nil
}

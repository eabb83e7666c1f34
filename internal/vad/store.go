package vad

import (
	"fmt"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// Store persists completed segments as 16-bit mono WAV files for the
// transcriber hand-off. The filesystem is abstracted so tests run against
// an in-memory fs and agents can point at a tmpfs.
type Store struct {
	fs  afero.Fs
	dir string
}

func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// Save encodes the segment and returns the path it was written to.
func (st *Store) Save(segment *Segment) (string, error) {
	if segment == nil || len(segment.Samples) == 0 {
		return "", fmt.Errorf("cannot save empty segment")
	}

	if st.dir != "" {
		if err := st.fs.MkdirAll(st.dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create segment dir: %w", err)
		}
	}

	name := fmt.Sprintf("segment-%d.wav", segment.Start.UnixNano())
	path := filepath.Join(st.dir, name)

	file, err := st.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create segment file: %w", err)
	}
	defer file.Close()

	samples := make([]int, len(segment.Samples))
	for i, sample := range segment.Samples {
		scaled := int(sample * 32767)
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		samples[i] = scaled
	}

	buffer := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  segment.SampleRate,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}

	encoder := wav.NewEncoder(file, segment.SampleRate, 16, 1, 1)
	if err := encoder.Write(buffer); err != nil {
		return "", fmt.Errorf("failed to encode segment wav: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize segment wav: %w", err)
	}

	return path, nil
}

// Remove deletes a previously saved segment file. Used after the transcript
// has been extracted; failures are non-fatal to the capture loop.
func (st *Store) Remove(path string) error {
	return st.fs.Remove(path)
}

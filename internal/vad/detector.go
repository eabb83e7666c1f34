// Package vad implements voice activity detection: per-frame speech
// classification and the segmentation state machine that turns a live frame
// stream into discrete utterances.
package vad

import "log"

// Detector scores one audio frame with a speech probability in [0, 1].
// Frames are mono float32 samples in [-1, 1] at a fixed size and rate.
// Implementations may keep state between frames (spectral detectors compare
// against the previous frame) and are not safe for concurrent use; each
// consumer owns its own detector instance.
type Detector interface {
	Classify(frame []float32) (float64, error)
}

// FallbackDetector wraps a primary probabilistic detector and degrades to a
// secondary one when the primary fails. This keeps the segmentation loop
// reacting to audio through classifier outages instead of silently stopping.
type FallbackDetector struct {
	Primary   Detector
	Secondary Detector

	warned bool
}

func (d *FallbackDetector) Classify(frame []float32) (float64, error) {
	probability, err := d.Primary.Classify(frame)
	if err == nil {
		d.warned = false
		return probability, nil
	}

	if !d.warned {
		log.Printf("[VAD] primary detector failed, falling back to amplitude detection: %v", err)
		d.warned = true
	}

	return d.Secondary.Classify(frame)
}

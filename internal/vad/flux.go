package vad

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// defaultFluxScale maps the normalized spectral flux (typically a few percent
// of total spectral energy for speech onsets) into a usable 0..1 confidence.
const defaultFluxScale = 4.0

// FluxDetector classifies frames by spectral flux: the positive change in
// the magnitude spectrum between consecutive frames. Speech onsets produce
// large flux; steady background noise produces almost none. The first frame
// after construction or Reset has nothing to compare against and scores 0.
type FluxDetector struct {
	prev  []float64
	scale float64
}

func NewFluxDetector() *FluxDetector {
	return &FluxDetector{scale: defaultFluxScale}
}

func (d *FluxDetector) Classify(frame []float32) (float64, error) {
	if len(frame) == 0 {
		return 0, fmt.Errorf("empty audio frame")
	}

	samples := make([]float64, len(frame))
	for i, sample := range frame {
		samples[i] = float64(sample)
	}

	spectrum := fft.FFTReal(samples)

	// Only the first half of the spectrum is informative for real input.
	magnitudes := make([]float64, len(spectrum)/2)
	for i := range magnitudes {
		magnitudes[i] = cmplx.Abs(spectrum[i])
	}

	if d.prev == nil {
		d.prev = magnitudes
		return 0, nil
	}

	var flux, total float64
	for i, magnitude := range magnitudes {
		if i < len(d.prev) {
			if diff := magnitude - d.prev[i]; diff > 0 {
				flux += diff
			}
		}
		total += magnitude
	}
	d.prev = magnitudes

	if total == 0 {
		return 0, nil
	}

	probability := d.scale * flux / total
	if probability > 1 {
		probability = 1
	}
	return probability, nil
}

// Reset drops the comparison spectrum, e.g. between recording sessions.
func (d *FluxDetector) Reset() {
	d.prev = nil
}

package vad

import "fmt"

// EnergyDetector is the amplitude-threshold fallback classifier. It reports
// full confidence when the frame's peak amplitude exceeds the threshold and
// zero otherwise; there is no middle ground, which is exactly what the
// fallback path wants.
type EnergyDetector struct {
	// Threshold is the peak absolute amplitude (0..1) above which a frame
	// counts as speech.
	Threshold float64
}

func (d *EnergyDetector) Classify(frame []float32) (float64, error) {
	if len(frame) == 0 {
		return 0, fmt.Errorf("empty audio frame")
	}

	var peak float64
	for _, sample := range frame {
		amplitude := float64(sample)
		if amplitude < 0 {
			amplitude = -amplitude
		}
		if amplitude > peak {
			peak = amplitude
		}
	}

	if peak > d.Threshold {
		return 1, nil
	}
	return 0, nil
}

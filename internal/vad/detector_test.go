package vad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sineFrame produces one frame of a pure tone. Frequencies are chosen so a
// whole number of cycles fits the frame, keeping the spectrum clean.
func sineFrame(freq float64, amplitude float64) []float32 {
	frame := make([]float32, testFrameSize)
	for i := range frame {
		frame[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate))
	}
	return frame
}

func TestEnergyDetector(t *testing.T) {
	detector := &EnergyDetector{Threshold: 0.02}

	t.Run("quiet frame scores zero", func(t *testing.T) {
		probability, err := detector.Classify(sineFrame(1000, 0.01))
		require.NoError(t, err)
		assert.Equal(t, 0.0, probability)
	})

	t.Run("loud frame scores one", func(t *testing.T) {
		probability, err := detector.Classify(sineFrame(1000, 0.5))
		require.NoError(t, err)
		assert.Equal(t, 1.0, probability)
	})

	t.Run("negative peaks count", func(t *testing.T) {
		frame := make([]float32, 8)
		frame[3] = -0.9
		probability, err := detector.Classify(frame)
		require.NoError(t, err)
		assert.Equal(t, 1.0, probability)
	})

	t.Run("empty frame errors", func(t *testing.T) {
		_, err := detector.Classify(nil)
		assert.Error(t, err)
	})
}

func TestFluxDetector(t *testing.T) {
	t.Run("first frame has no reference and scores zero", func(t *testing.T) {
		detector := NewFluxDetector()
		probability, err := detector.Classify(sineFrame(1000, 0.3))
		require.NoError(t, err)
		assert.Equal(t, 0.0, probability)
	})

	t.Run("steady tone produces almost no flux", func(t *testing.T) {
		detector := NewFluxDetector()
		_, err := detector.Classify(sineFrame(1000, 0.3))
		require.NoError(t, err)

		probability, err := detector.Classify(sineFrame(1000, 0.3))
		require.NoError(t, err)
		assert.Less(t, probability, 0.1)
	})

	t.Run("spectral onset produces high flux", func(t *testing.T) {
		detector := NewFluxDetector()
		_, err := detector.Classify(sineFrame(1000, 0.05))
		require.NoError(t, err)

		probability, err := detector.Classify(sineFrame(3000, 0.8))
		require.NoError(t, err)
		assert.Greater(t, probability, 0.5)
	})

	t.Run("reset drops the reference spectrum", func(t *testing.T) {
		detector := NewFluxDetector()
		_, err := detector.Classify(sineFrame(1000, 0.05))
		require.NoError(t, err)

		detector.Reset()

		probability, err := detector.Classify(sineFrame(3000, 0.8))
		require.NoError(t, err)
		assert.Equal(t, 0.0, probability)
	})

	t.Run("empty frame errors", func(t *testing.T) {
		_, err := NewFluxDetector().Classify(nil)
		assert.Error(t, err)
	})
}

func TestFallbackDetector(t *testing.T) {
	t.Run("uses primary when healthy", func(t *testing.T) {
		detector := &FallbackDetector{
			Primary:   &scriptedDetector{probs: []float64{0.8}},
			Secondary: &EnergyDetector{Threshold: 0.02},
		}

		probability, err := detector.Classify(sineFrame(1000, 0.5))
		require.NoError(t, err)
		assert.Equal(t, 0.8, probability)
	})

	t.Run("degrades to secondary on primary failure", func(t *testing.T) {
		detector := &FallbackDetector{
			Primary:   erroringDetector{},
			Secondary: &EnergyDetector{Threshold: 0.02},
		}

		probability, err := detector.Classify(sineFrame(1000, 0.5))
		require.NoError(t, err)
		assert.Equal(t, 1.0, probability)

		probability, err = detector.Classify(sineFrame(1000, 0.001))
		require.NoError(t, err)
		assert.Equal(t, 0.0, probability)
	})
}

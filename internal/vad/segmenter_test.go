package vad

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSampleRate = 16000
	testFrameSize  = 512
)

// frameInterval is the wall-clock time one test frame represents (32ms).
var frameInterval = time.Duration(float64(testFrameSize) / testSampleRate * float64(time.Second))

// scriptedDetector replays a fixed probability sequence, then repeats the
// final value forever.
type scriptedDetector struct {
	probs []float64
	next  int
}

func (d *scriptedDetector) Classify(frame []float32) (float64, error) {
	if len(d.probs) == 0 {
		return 0, nil
	}
	i := d.next
	if i >= len(d.probs) {
		i = len(d.probs) - 1
	}
	d.next++
	return d.probs[i], nil
}

type erroringDetector struct{}

func (erroringDetector) Classify(frame []float32) (float64, error) {
	return 0, fmt.Errorf("model unavailable")
}

func testFrame() []float32 {
	return make([]float32, testFrameSize)
}

func baseConfig() SegmenterConfig {
	return SegmenterConfig{
		SampleRate:      testSampleRate,
		Threshold:       0.5,
		SilenceDuration: 100 * time.Millisecond,
		MinSegment:      50 * time.Millisecond,
	}
}

func TestSegmenterBasicLifecycle(t *testing.T) {
	detector := &scriptedDetector{probs: []float64{0.9, 0.9, 0.9, 0.9, 0.9, 0.1}}
	segmenter, err := NewSegmenter(detector, baseConfig())
	require.NoError(t, err)

	now := time.Unix(1724630400, 0)
	frames := 0

	advance := func() time.Time {
		now = now.Add(frameInterval)
		frames++
		return now
	}

	// First speech frame starts the segment.
	result := segmenter.ProcessFrame(testFrame(), advance())
	assert.Equal(t, EventSegmentStart, result.Event)
	assert.True(t, result.Speech)
	assert.True(t, segmenter.Active())

	// Four more speech frames accumulate silently.
	for i := 0; i < 4; i++ {
		result = segmenter.ProcessFrame(testFrame(), advance())
		assert.Equal(t, EventNone, result.Event)
	}

	// Silence frames: segment ends once the silence duration elapses.
	var ready *Segment
	for i := 0; i < 10 && ready == nil; i++ {
		result = segmenter.ProcessFrame(testFrame(), advance())
		assert.False(t, result.Speech)
		if result.Event == EventSegmentReady {
			ready = result.Segment
		}
	}

	require.NotNil(t, ready, "segment should complete after sustained silence")
	assert.False(t, segmenter.Active())

	// Every frame fed while the machine was active is in the buffer,
	// trailing silence included.
	assert.Equal(t, frames*testFrameSize, len(ready.Samples))
	assert.Equal(t, testSampleRate, ready.SampleRate)
	assert.True(t, ready.End.After(ready.Start))
	assert.InDelta(t, float64(frames)*frameInterval.Seconds(), ready.Duration().Seconds(), 0.001)
}

func TestSegmenterDiscardsShortBursts(t *testing.T) {
	cfg := baseConfig()
	cfg.MinSegment = 500 * time.Millisecond

	detector := &scriptedDetector{probs: []float64{0.9, 0.1}}
	segmenter, err := NewSegmenter(detector, cfg)
	require.NoError(t, err)

	now := time.Unix(1724630400, 0)

	result := segmenter.ProcessFrame(testFrame(), now)
	require.Equal(t, EventSegmentStart, result.Event)

	// One burst frame, then silence long enough to end the segment.
	discarded := false
	for i := 1; i <= 10 && !discarded; i++ {
		result = segmenter.ProcessFrame(testFrame(), now.Add(time.Duration(i)*frameInterval))
		require.NotEqual(t, EventSegmentReady, result.Event, "short burst must not become a segment")
		discarded = result.Event == EventSegmentDiscarded
	}

	assert.True(t, discarded)
	assert.False(t, segmenter.Active())
}

func TestSegmenterHysteresisAsymmetry(t *testing.T) {
	cfg := baseConfig()
	cfg.Smoothing = true
	cfg.Window = 1
	cfg.StartThreshold = 0.70
	cfg.ContinueThreshold = 0.60

	t.Run("borderline confidence does not start a segment", func(t *testing.T) {
		detector := &scriptedDetector{probs: []float64{0.65}}
		segmenter, err := NewSegmenter(detector, cfg)
		require.NoError(t, err)

		result := segmenter.ProcessFrame(testFrame(), time.Unix(0, 0))
		assert.False(t, result.Speech)
		assert.Equal(t, EventNone, result.Event)
		assert.False(t, segmenter.Active())
	})

	t.Run("borderline confidence continues an active segment", func(t *testing.T) {
		detector := &scriptedDetector{probs: []float64{0.9, 0.65}}
		segmenter, err := NewSegmenter(detector, cfg)
		require.NoError(t, err)

		now := time.Unix(0, 0)
		result := segmenter.ProcessFrame(testFrame(), now)
		require.Equal(t, EventSegmentStart, result.Event)

		result = segmenter.ProcessFrame(testFrame(), now.Add(frameInterval))
		assert.True(t, result.Speech, "0.65 is above the continue threshold")
		assert.True(t, segmenter.Active())
	})
}

// Confidence trace for the smoothed classifier: running mean over a window
// of 3, start 0.70, continue 0.60.
func TestSegmenterSmoothingTrace(t *testing.T) {
	cfg := baseConfig()
	cfg.Smoothing = true
	cfg.Window = 3
	cfg.StartThreshold = 0.70
	cfg.ContinueThreshold = 0.60
	cfg.MinSegment = 0

	probs := []float64{0.72, 0.68, 0.81, 0.40, 0.35, 0.30}
	detector := &scriptedDetector{probs: probs}
	segmenter, err := NewSegmenter(detector, cfg)
	require.NoError(t, err)

	now := time.Unix(0, 0)

	type step struct {
		mean   float64
		speech bool
	}
	want := []step{
		{0.72, true},      // [0.72]: at or above start threshold, segment begins
		{0.70, true},      // [0.72 0.68]
		{0.736667, true},  // [0.72 0.68 0.81]
		{0.63, true},      // [0.68 0.81 0.40]: dipped, continue threshold holds it
		{0.52, false},     // [0.81 0.40 0.35]: silence begins
		{0.35, false},     // [0.40 0.35 0.30]
	}

	for i, w := range want {
		result := segmenter.ProcessFrame(testFrame(), now.Add(time.Duration(i)*frameInterval))
		assert.InDelta(t, w.mean, result.Confidence, 0.0005, "frame %d mean", i+1)
		assert.Equal(t, w.speech, result.Speech, "frame %d speech", i+1)
		if i == 0 {
			assert.Equal(t, EventSegmentStart, result.Event)
		}
	}

	// Silence persists below the continue threshold; the segment completes
	// once the silence duration elapses.
	var completed bool
	for i := len(want); i < len(want)+10 && !completed; i++ {
		result := segmenter.ProcessFrame(testFrame(), now.Add(time.Duration(i)*frameInterval))
		completed = result.Event == EventSegmentReady
	}
	assert.True(t, completed)
}

func TestSegmenterForceFinish(t *testing.T) {
	t.Run("salvages a partial segment", func(t *testing.T) {
		cfg := baseConfig()
		cfg.MinSegment = 10 * time.Second // would normally be discarded

		detector := &scriptedDetector{probs: []float64{0.9}}
		segmenter, err := NewSegmenter(detector, cfg)
		require.NoError(t, err)

		now := time.Unix(0, 0)
		segmenter.ProcessFrame(testFrame(), now)
		segmenter.ProcessFrame(testFrame(), now.Add(frameInterval))

		segment := segmenter.ForceFinish(now.Add(2 * frameInterval))
		require.NotNil(t, segment)
		assert.Equal(t, 2*testFrameSize, len(segment.Samples))
		assert.False(t, segmenter.Active())
	})

	t.Run("returns nil when idle", func(t *testing.T) {
		segmenter, err := NewSegmenter(&scriptedDetector{probs: []float64{0}}, baseConfig())
		require.NoError(t, err)

		assert.Nil(t, segmenter.ForceFinish(time.Unix(0, 0)))
	})
}

func TestSegmenterDetectorFailureIsSilence(t *testing.T) {
	segmenter, err := NewSegmenter(erroringDetector{}, baseConfig())
	require.NoError(t, err)

	result := segmenter.ProcessFrame(testFrame(), time.Unix(0, 0))
	assert.False(t, result.Speech)
	assert.Equal(t, EventNone, result.Event)
	assert.False(t, segmenter.Active())
}

func TestSegmenterConfigValidation(t *testing.T) {
	detector := &scriptedDetector{}

	t.Run("rejects inverted hysteresis thresholds", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Smoothing = true
		cfg.Window = 3
		cfg.StartThreshold = 0.5
		cfg.ContinueThreshold = 0.7

		_, err := NewSegmenter(detector, cfg)
		assert.Error(t, err)
	})

	t.Run("rejects zero sample rate", func(t *testing.T) {
		cfg := baseConfig()
		cfg.SampleRate = 0

		_, err := NewSegmenter(detector, cfg)
		assert.Error(t, err)
	})

	t.Run("rejects nil detector", func(t *testing.T) {
		_, err := NewSegmenter(nil, baseConfig())
		assert.Error(t, err)
	})
}

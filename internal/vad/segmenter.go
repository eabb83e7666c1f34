package vad

import (
	"fmt"
	"time"
)

// SegmentEvent is the boundary event emitted by a single ProcessFrame call.
type SegmentEvent int

const (
	// EventNone: no boundary crossed this frame.
	EventNone SegmentEvent = iota

	// EventSegmentStart: the machine left Idle and began accumulating.
	EventSegmentStart

	// EventSegmentReady: silence ended an utterance of sufficient length;
	// the completed segment is attached to the result.
	EventSegmentReady

	// EventSegmentDiscarded: silence ended an utterance shorter than the
	// configured minimum; the buffered audio was dropped as a noise burst.
	EventSegmentDiscarded
)

// Segment is one contiguous span of classified speech, bounded by silence,
// handed off as a unit for downstream transcription.
type Segment struct {
	Samples    []float32
	SampleRate int
	Start      time.Time
	End        time.Time
}

// Duration returns the captured audio length derived from the sample count,
// which stays correct even when the segment was force-finished early.
func (s *Segment) Duration() time.Duration {
	if s.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(len(s.Samples)) / float64(s.SampleRate) * float64(time.Second))
}

// SegmenterConfig parameterizes one segmentation state machine.
type SegmenterConfig struct {
	SampleRate int

	// Threshold converts a raw frame probability to speech when smoothing
	// is disabled.
	Threshold float64

	// SilenceDuration is how long classification must stay below threshold
	// before an active segment ends.
	SilenceDuration time.Duration

	// MinSegment discards completed segments shorter than this.
	MinSegment time.Duration

	// Smoothing enables the running-mean confidence window with
	// hysteresis thresholds.
	Smoothing bool

	// Window is the number of recent probabilities averaged when
	// smoothing is enabled.
	Window int

	// StartThreshold is the smoothed confidence required to leave Idle.
	// It is deliberately higher than ContinueThreshold: starting a new
	// utterance requires a confident frame, while a momentary dip must
	// not truncate an utterance already underway.
	StartThreshold float64

	// ContinueThreshold is the smoothed confidence required to remain
	// Accumulating once active.
	ContinueThreshold float64
}

func (cfg *SegmenterConfig) validate() error {
	if cfg.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.SilenceDuration <= 0 {
		return fmt.Errorf("silence duration must be positive, got %v", cfg.SilenceDuration)
	}
	if cfg.Smoothing {
		if cfg.Window < 1 {
			return fmt.Errorf("smoothing window must be at least 1, got %d", cfg.Window)
		}
		if cfg.StartThreshold < cfg.ContinueThreshold {
			return fmt.Errorf("start threshold %.3f must not be below continue threshold %.3f",
				cfg.StartThreshold, cfg.ContinueThreshold)
		}
	}
	return nil
}

// Segmenter is the Idle/Accumulating state machine that cuts a continuous
// frame stream into utterances. It is single-threaded by design: one
// goroutine feeds frames, and all timing comes from the caller's timestamps
// so behaviour is deterministic under test.
type Segmenter struct {
	detector Detector
	cfg      SegmenterConfig

	window     []float64
	active     bool
	buffer     []float32
	startTime  time.Time
	lastSpeech time.Time
}

func NewSegmenter(detector Detector, cfg SegmenterConfig) (*Segmenter, error) {
	if detector == nil {
		return nil, fmt.Errorf("detector is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid segmenter config: %w", err)
	}
	return &Segmenter{detector: detector, cfg: cfg}, nil
}

// FrameResult reports what one frame did to the machine.
type FrameResult struct {
	Speech     bool
	Confidence float64
	Event      SegmentEvent
	Segment    *Segment // set only for EventSegmentReady
}

// ProcessFrame classifies one frame and advances the state machine.
// now is the frame's capture time; it must be non-decreasing across calls.
func (s *Segmenter) ProcessFrame(frame []float32, now time.Time) FrameResult {
	probability, err := s.detector.Classify(frame)
	if err != nil {
		// The fallback detector absorbs classifier outages; if even that
		// fails, treat the frame as silence rather than stalling.
		probability = 0
	}

	confidence := probability
	if s.cfg.Smoothing {
		s.window = append(s.window, probability)
		if len(s.window) > s.cfg.Window {
			s.window = s.window[1:]
		}
		var sum float64
		for _, p := range s.window {
			sum += p
		}
		confidence = sum / float64(len(s.window))
	}

	speech := s.isSpeech(confidence)
	result := FrameResult{Speech: speech, Confidence: confidence}

	switch {
	case speech && !s.active:
		s.active = true
		s.startTime = now
		s.lastSpeech = now
		s.buffer = append(s.buffer[:0], frame...)
		result.Event = EventSegmentStart

	case speech && s.active:
		s.lastSpeech = now
		s.buffer = append(s.buffer, frame...)

	case !speech && s.active:
		// Trailing audio is kept so the utterance does not end clipped.
		s.buffer = append(s.buffer, frame...)

		if now.Sub(s.lastSpeech) > s.cfg.SilenceDuration {
			if now.Sub(s.startTime) >= s.cfg.MinSegment {
				result.Event = EventSegmentReady
				result.Segment = s.take(now)
			} else {
				result.Event = EventSegmentDiscarded
				s.reset()
			}
		}
	}

	return result
}

// isSpeech applies the hysteresis: entering Accumulating needs the start
// threshold, staying only needs the continue threshold.
func (s *Segmenter) isSpeech(confidence float64) bool {
	if !s.cfg.Smoothing {
		return confidence > s.cfg.Threshold
	}
	if s.active {
		return confidence >= s.cfg.ContinueThreshold
	}
	return confidence >= s.cfg.StartThreshold
}

// ForceFinish salvages whatever audio is buffered, regardless of the minimum
// duration. Callers use it when the maximum recording time elapses: partial
// capture is preferred to silent data loss. Returns nil when nothing has
// been accumulated.
func (s *Segmenter) ForceFinish(now time.Time) *Segment {
	if !s.active || len(s.buffer) == 0 {
		s.reset()
		return nil
	}
	return s.take(now)
}

// Active reports whether a segment is currently accumulating.
func (s *Segmenter) Active() bool {
	return s.active
}

// Reset returns the machine to Idle and drops any buffered audio.
func (s *Segmenter) Reset() {
	s.reset()
	s.window = s.window[:0]
}

func (s *Segmenter) take(now time.Time) *Segment {
	samples := make([]float32, len(s.buffer))
	copy(samples, s.buffer)

	segment := &Segment{
		Samples:    samples,
		SampleRate: s.cfg.SampleRate,
		Start:      s.startTime,
		End:        now,
	}
	s.reset()
	return segment
}

func (s *Segmenter) reset() {
	s.active = false
	s.buffer = s.buffer[:0]
	s.startTime = time.Time{}
	s.lastSpeech = time.Time{}
}

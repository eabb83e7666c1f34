package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banterhq/banter/internal/vad"
	"github.com/banterhq/banter/pkg/statebus"
)

// Config is the top-level banter.yml configuration shared by the CLI and
// both agent binaries. Durations are expressed as seconds (floats).
type Config struct {
	RedisURL    string            `yaml:"redis_url"`
	Rules       statebus.RuleSet  `yaml:"rules,omitempty"`
	Capture     CaptureConfig     `yaml:"capture"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Listening   ListeningConfig   `yaml:"listening"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Handoff     HandoffConfig     `yaml:"handoff"`
	Synth       SynthConfig       `yaml:"synth"`
}

// CaptureConfig parameterizes the capture agent's segmentation loop.
type CaptureConfig struct {
	SampleRate          int     `yaml:"sample_rate"`
	FrameSize           int     `yaml:"frame_size"`
	VADThreshold        float64 `yaml:"vad_threshold"`
	SilenceSeconds      float64 `yaml:"silence_seconds"`
	MinAudioSeconds     float64 `yaml:"min_audio_seconds"`
	MaxRecordingSeconds float64 `yaml:"max_recording_seconds"`
	SegmentDir          string  `yaml:"segment_dir"`

	Smoothing SmoothingConfig `yaml:"smoothing"`
}

// SmoothingConfig enables the running-mean confidence window with
// hysteresis thresholds.
type SmoothingConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Window            int     `yaml:"window,omitempty"`
	StartThreshold    float64 `yaml:"start_threshold,omitempty"`
	ContinueThreshold float64 `yaml:"continue_threshold,omitempty"`
}

// MonitorConfig parameterizes the interruption monitor. Threshold is the
// amplitude gate fed to the energy detector; SpeechThreshold is the
// probability above which a classified frame counts as speech.
type MonitorConfig struct {
	Threshold       float64 `yaml:"threshold"`
	SpeechThreshold float64 `yaml:"speech_threshold,omitempty"`
	CooldownSeconds float64 `yaml:"cooldown_seconds"`
}

// ListeningConfig parameterizes the listening gate.
type ListeningConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	UserName     string   `yaml:"user_name,omitempty"`
	StopPhrases  []string `yaml:"stop_phrases,omitempty"`
	StartPhrases []string `yaml:"start_phrases,omitempty"`
	StopAck      string   `yaml:"stop_acknowledgment,omitempty"`
	StartAck     string   `yaml:"start_acknowledgment,omitempty"`
}

// TranscriberConfig points at a whisper-server-compatible HTTP endpoint.
type TranscriberConfig struct {
	URL       string `yaml:"url"`
	HealthURL string `yaml:"health_url"`
}

// HandoffConfig points at the reasoning engine's HTTP endpoint.
type HandoffConfig struct {
	URL               string  `yaml:"url"`
	MaxRetries        int     `yaml:"max_retries,omitempty"`
	RetryDelaySeconds float64 `yaml:"retry_delay_seconds,omitempty"`
}

// SynthConfig parameterizes the synthesis agent.
type SynthConfig struct {
	Command             []string `yaml:"command"`
	PollIntervalSeconds float64  `yaml:"poll_interval_seconds,omitempty"`
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// Silence returns the endpointing silence duration.
func (c *CaptureConfig) Silence() time.Duration { return seconds(c.SilenceSeconds) }

// MinAudio returns the minimum utterance duration below which segments
// are discarded as noise bursts.
func (c *CaptureConfig) MinAudio() time.Duration { return seconds(c.MinAudioSeconds) }

// MaxRecording returns the recording cap after which buffered audio is
// salvaged rather than extended.
func (c *CaptureConfig) MaxRecording() time.Duration { return seconds(c.MaxRecordingSeconds) }

// SegmenterConfig translates the capture section into segmenter parameters.
func (c *CaptureConfig) SegmenterConfig() vad.SegmenterConfig {
	return vad.SegmenterConfig{
		SampleRate:        c.SampleRate,
		Threshold:         c.VADThreshold,
		SilenceDuration:   c.Silence(),
		MinSegment:        c.MinAudio(),
		Smoothing:         c.Smoothing.Enabled,
		Window:            c.Smoothing.Window,
		StartThreshold:    c.Smoothing.StartThreshold,
		ContinueThreshold: c.Smoothing.ContinueThreshold,
	}
}

// Cooldown returns the minimum spacing between interruption signals.
func (c *MonitorConfig) Cooldown() time.Duration { return seconds(c.CooldownSeconds) }

// RetryDelay returns the initial hand-off retry delay; it doubles per attempt.
func (c *HandoffConfig) RetryDelay() time.Duration { return seconds(c.RetryDelaySeconds) }

// PollInterval returns how often playback checks the interrupt key.
func (c *SynthConfig) PollInterval() time.Duration { return seconds(c.PollIntervalSeconds) }

// ListeningEnabled reports whether the gate is active (default true).
func (c *ListeningConfig) ListeningEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Validate applies defaults and performs strict validation.
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		c.RedisURL = "redis://localhost:6379/0"
	}

	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = 16000
	}
	if c.Capture.SampleRate < 0 {
		return fmt.Errorf("capture.sample_rate must be positive, got %d", c.Capture.SampleRate)
	}
	if c.Capture.FrameSize == 0 {
		c.Capture.FrameSize = 512
	}
	if c.Capture.FrameSize < 0 {
		return fmt.Errorf("capture.frame_size must be positive, got %d", c.Capture.FrameSize)
	}
	if c.Capture.VADThreshold == 0 {
		c.Capture.VADThreshold = 0.5
	}
	if c.Capture.VADThreshold < 0 || c.Capture.VADThreshold > 1 {
		return fmt.Errorf("capture.vad_threshold must be in (0, 1], got %g", c.Capture.VADThreshold)
	}
	if c.Capture.SilenceSeconds == 0 {
		c.Capture.SilenceSeconds = 1.0
	}
	if c.Capture.SilenceSeconds < 0 {
		return fmt.Errorf("capture.silence_seconds must be positive, got %g", c.Capture.SilenceSeconds)
	}
	if c.Capture.MinAudioSeconds == 0 {
		c.Capture.MinAudioSeconds = 0.5
	}
	if c.Capture.MaxRecordingSeconds == 0 {
		c.Capture.MaxRecordingSeconds = 120
	}
	if c.Capture.MaxRecordingSeconds < c.Capture.MinAudioSeconds {
		return fmt.Errorf("capture.max_recording_seconds (%g) must not be below min_audio_seconds (%g)",
			c.Capture.MaxRecordingSeconds, c.Capture.MinAudioSeconds)
	}
	if c.Capture.SegmentDir == "" {
		c.Capture.SegmentDir = "segments"
	}

	if c.Capture.Smoothing.Enabled {
		if c.Capture.Smoothing.Window == 0 {
			c.Capture.Smoothing.Window = 5
		}
		if c.Capture.Smoothing.Window < 1 {
			return fmt.Errorf("capture.smoothing.window must be at least 1, got %d", c.Capture.Smoothing.Window)
		}
		if c.Capture.Smoothing.StartThreshold == 0 {
			c.Capture.Smoothing.StartThreshold = 0.70
		}
		if c.Capture.Smoothing.ContinueThreshold == 0 {
			c.Capture.Smoothing.ContinueThreshold = 0.60
		}
		if c.Capture.Smoothing.StartThreshold < c.Capture.Smoothing.ContinueThreshold {
			return fmt.Errorf("capture.smoothing.start_threshold (%g) must not be below continue_threshold (%g)",
				c.Capture.Smoothing.StartThreshold, c.Capture.Smoothing.ContinueThreshold)
		}
	}

	if c.Monitor.Threshold == 0 {
		c.Monitor.Threshold = 0.02
	}
	if c.Monitor.Threshold < 0 || c.Monitor.Threshold > 1 {
		return fmt.Errorf("monitor.threshold must be in (0, 1], got %g", c.Monitor.Threshold)
	}
	if c.Monitor.SpeechThreshold == 0 {
		c.Monitor.SpeechThreshold = 0.5
	}
	if c.Monitor.SpeechThreshold < 0 || c.Monitor.SpeechThreshold > 1 {
		return fmt.Errorf("monitor.speech_threshold must be in (0, 1], got %g", c.Monitor.SpeechThreshold)
	}
	if c.Monitor.CooldownSeconds == 0 {
		c.Monitor.CooldownSeconds = 1.5
	}
	if c.Monitor.CooldownSeconds < 0 {
		return fmt.Errorf("monitor.cooldown_seconds must be positive, got %g", c.Monitor.CooldownSeconds)
	}

	if c.Listening.UserName == "" {
		c.Listening.UserName = "friend"
	}
	if c.Listening.StopAck == "" {
		c.Listening.StopAck = "Ok {user_name} I stop listening"
	}
	if c.Listening.StartAck == "" {
		c.Listening.StartAck = "Ok {user_name} I'm listening again"
	}

	if c.Transcriber.URL == "" {
		c.Transcriber.URL = "http://localhost:8081/inference"
	}
	if c.Transcriber.HealthURL == "" {
		c.Transcriber.HealthURL = "http://localhost:8081/health"
	}

	if c.Handoff.URL == "" {
		c.Handoff.URL = "http://localhost:8083/api/chat"
	}
	if c.Handoff.MaxRetries == 0 {
		c.Handoff.MaxRetries = 3
	}
	if c.Handoff.MaxRetries < 1 {
		return fmt.Errorf("handoff.max_retries must be at least 1, got %d", c.Handoff.MaxRetries)
	}
	if c.Handoff.RetryDelaySeconds == 0 {
		c.Handoff.RetryDelaySeconds = 1.0
	}

	if c.Synth.PollIntervalSeconds == 0 {
		c.Synth.PollIntervalSeconds = 0.1
	}
	if c.Synth.PollIntervalSeconds < 0 {
		return fmt.Errorf("synth.poll_interval_seconds must be positive, got %g", c.Synth.PollIntervalSeconds)
	}

	return nil
}

// Load reads and validates banter.yml from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

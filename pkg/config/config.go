// Package config holds the simulator settings and loads them from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/drgolem/uacsim/pkg/microframe"
)

// Source types
const (
	SourceRandom = "random"
	SourceWAV    = "wav"
)

// ErrInvalidConfig is wrapped by every validation error
var ErrInvalidConfig = errors.New("invalid config")

// SourceConfig selects what the producer packs into frames
type SourceConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path,omitempty"`
}

// CaptureConfig enables recording consumed frames to a WAV file
type CaptureConfig struct {
	Path       string  `yaml:"path,omitempty"`
	MaxSeconds float64 `yaml:"max_seconds"`
}

// MonitorConfig enables live playback of consumed frames
type MonitorConfig struct {
	Enabled         bool `yaml:"enabled"`
	Device          int  `yaml:"device"`
	FramesPerBuffer int  `yaml:"frames_per_buffer"`
}

// Config is the complete simulator configuration
type Config struct {
	CapacityBytes  int           `yaml:"capacity_bytes"`
	FrameSize      int           `yaml:"frame_size"`
	AudioDataSize  int           `yaml:"audio_data_size"`
	Interval       time.Duration `yaml:"interval"`
	Duration       time.Duration `yaml:"duration"`
	Streams        int           `yaml:"streams"`
	Seed           uint64        `yaml:"seed"`
	StatusInterval time.Duration `yaml:"status_interval"`
	SampleRate     int           `yaml:"sample_rate"`
	Channels       int           `yaml:"channels"`

	Source  SourceConfig  `yaml:"source"`
	Capture CaptureConfig `yaml:"capture"`
	Monitor MonitorConfig `yaml:"monitor"`
}

// Default returns the configuration of a 96kHz stereo float32 stream
// with an 80 microframe (10ms) buffer
func Default() Config {
	return Config{
		CapacityBytes:  80 * microframe.DefaultFrameSize,
		FrameSize:      microframe.DefaultFrameSize,
		AudioDataSize:  microframe.DefaultAudioDataSize,
		Interval:       microframe.DefaultInterval,
		Duration:       time.Second,
		Streams:        1,
		StatusInterval: time.Second,
		SampleRate:     96000,
		Channels:       2,
		Source:         SourceConfig{Type: SourceRandom},
		Capture:        CaptureConfig{MaxSeconds: 60},
		Monitor:        MonitorConfig{Device: 1, FramesPerBuffer: 512},
	}
}

// Load reads a YAML file on top of Default and validates the result
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Marshal renders cfg as YAML
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Layout returns the frame layout described by the config
func (c Config) Layout() microframe.Layout {
	return microframe.Layout{
		FrameSize:     c.FrameSize,
		AudioDataSize: c.AudioDataSize,
	}
}

// PayloadBytes returns the float32 payload one interval of audio needs at
// SampleRate and Channels. ok is false when the interval does not hold a
// whole number of sample frames.
func (c Config) PayloadBytes() (n int, ok bool) {
	frames := int64(c.SampleRate) * int64(c.Interval)
	if frames%int64(time.Second) != 0 {
		return 0, false
	}
	return int(frames/int64(time.Second)) * c.Channels * microframe.BytesPerSample, true
}

// Validate checks the configuration for consistency
func (c Config) Validate() error {
	if err := c.Layout().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.CapacityBytes <= 0 {
		return fmt.Errorf("%w: capacity_bytes must be positive, got %d", ErrInvalidConfig, c.CapacityBytes)
	}
	if c.CapacityBytes%c.FrameSize != 0 {
		return fmt.Errorf("%w: capacity_bytes %d is not a multiple of frame_size %d",
			ErrInvalidConfig, c.CapacityBytes, c.FrameSize)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalidConfig, c.Interval)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidConfig, c.Duration)
	}
	if c.Streams < 1 {
		return fmt.Errorf("%w: streams must be at least 1, got %d", ErrInvalidConfig, c.Streams)
	}
	if c.StatusInterval < 0 {
		return fmt.Errorf("%w: status_interval must not be negative", ErrInvalidConfig)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample_rate must be positive, got %d", ErrInvalidConfig, c.SampleRate)
	}
	if c.Channels < 1 || c.Channels > 2 {
		return fmt.Errorf("%w: channels must be 1 or 2, got %d", ErrInvalidConfig, c.Channels)
	}
	if want, ok := c.PayloadBytes(); !ok || want != c.AudioDataSize {
		return fmt.Errorf("%w: audio_data_size %d does not carry one interval of %d Hz %d channel audio",
			ErrInvalidConfig, c.AudioDataSize, c.SampleRate, c.Channels)
	}

	switch c.Source.Type {
	case SourceRandom:
	case SourceWAV:
		if c.Source.Path == "" {
			return fmt.Errorf("%w: source.path is required for wav sources", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source type %q", ErrInvalidConfig, c.Source.Type)
	}

	if c.Capture.Path != "" && c.Capture.MaxSeconds <= 0 {
		return fmt.Errorf("%w: capture.max_seconds must be positive", ErrInvalidConfig)
	}
	if c.Monitor.Enabled && c.Monitor.FramesPerBuffer <= 0 {
		return fmt.Errorf("%w: monitor.frames_per_buffer must be positive", ErrInvalidConfig)
	}
	return nil
}

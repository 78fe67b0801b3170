// Package audioio moves microphone and speaker audio between the browser and
// the speech services.
//
// Backends:
//   - Browser - PCM frames streamed over the /ws/mic websocket
//   - Mock - scripted audio for tests
//
// Only one consumer may read a Source at a time; DeviceLock arbitrates
// between an active turn and the wake word listener.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendBrowser receives and plays audio through the connected browser.
	BackendBrowser Backend = "browser"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the rate chunks are delivered at, whatever the browser sends.
	// Default: 16000 (speech recognition short-audio format)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the nominal chunk length.
	// Default: 20ms
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// QueueDepth is how many chunks a browser source buffers before
	// dropping the oldest.
	QueueDepth int `yaml:"queue_depth" json:"queue_depth"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendBrowser,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
		QueueDepth:     256,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("queue_depth must be positive, got %d", c.QueueDepth)
	}
	return nil
}

// BufferSize returns the number of samples per buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of a buffer in bytes (assuming int16 samples).
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}

// Package audioio provides microphone capture and speaker playback.
//
// This package supports multiple backends:
//   - ALSA (Linux) - Production use on Raspberry Pi, driven through the
//     arecord and aplay tools
//   - Mock - CI/Testing without hardware
//
// The backend is selected automatically based on platform, or can be
// explicitly specified via configuration.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendALSA uses the Linux ALSA tools for audio I/O.
	BackendALSA Backend = "alsa"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto" (selects best available for platform)
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	// Default: 16000 (what the speech backend expects)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `yaml:"channels" json:"channels"`

	// ChunkDuration is the emission interval of capture chunks.
	// Default: 30ms (480 samples at 16kHz)
	ChunkDuration time.Duration `yaml:"chunk_duration" json:"chunk_duration"`

	// Device is the ALSA device identifier.
	// Examples: "default", "hw:1,0", "plughw:1,0"
	// Ignored by the mock backend.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendAuto,
		SampleRate:    16000,
		Channels:      1, // Mono
		ChunkDuration: 30 * time.Millisecond,
		Device:        "", // Use system default
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
	if c.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive, got %v", c.ChunkDuration)
	}
	return nil
}

// ChunkSize returns the number of samples per chunk per channel.
func (c *Config) ChunkSize() int {
	return int(float64(c.SampleRate) * c.ChunkDuration.Seconds())
}

// ChunkBytes returns the size of a chunk in bytes (assuming int16 samples).
func (c *Config) ChunkBytes() int {
	return c.ChunkSize() * c.Channels * 2 // 2 bytes per int16 sample
}

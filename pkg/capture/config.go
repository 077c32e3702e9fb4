package capture

import (
	"fmt"
	"log/slog"
	"time"
)

// Config holds capture session configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// MaxDuration auto-stops a recording that reaches this length.
	// Zero disables the limit.
	MaxDuration time.Duration

	// VADEnabled filters buffered chunks through the speech detector
	// when the artifact is built. Off by default: the raw buffer is
	// kept as recorded.
	VADEnabled bool

	// EnergyThreshold is the RMS level (int16 scale) above which a
	// chunk counts as speech.
	EnergyThreshold float64

	// MinSpeechChunks is the number of speech chunks a recording must
	// contain before VAD filtering keeps any of it.
	MinSpeechChunks int

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring capture sessions.
type Option func(*Config)

// WithMaxDuration sets the auto-stop limit.
func WithMaxDuration(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDuration = d
	}
}

// WithVAD enables or disables speech filtering of the buffered audio.
func WithVAD(enabled bool) Option {
	return func(c *Config) {
		c.VADEnabled = enabled
	}
}

// WithEnergyThreshold sets the RMS speech threshold.
func WithEnergyThreshold(threshold float64) Option {
	return func(c *Config) {
		c.EnergyThreshold = threshold
	}
}

// WithMinSpeechChunks sets the minimum speech chunk count for VAD.
func WithMinSpeechChunks(n int) Option {
	return func(c *Config) {
		c.MinSpeechChunks = n
	}
}

// WithLogger sets the structured logger for the session.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxDuration:     30 * time.Second,
		VADEnabled:      false,
		EnergyThreshold: 500,
		MinSpeechChunks: 3,
		Logger:          slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxDuration < 0 {
		return fmt.Errorf("max_duration must not be negative, got %v", c.MaxDuration)
	}
	if c.EnergyThreshold < 0 {
		return fmt.Errorf("energy_threshold must not be negative, got %v", c.EnergyThreshold)
	}
	if c.MinSpeechChunks < 1 {
		return fmt.Errorf("min_speech_chunks must be at least 1, got %d", c.MinSpeechChunks)
	}
	return nil
}

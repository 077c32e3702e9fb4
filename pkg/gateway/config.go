package gateway

import (
	"log/slog"
	"time"
)

// Config holds backend client configuration.
type Config struct {
	// Connection
	BaseURL string // Backend base URL, e.g. "http://192.168.1.100:3000"
	Room    string // Room name, sent as the conversation ID

	// Timeouts
	Timeout       time.Duration // Per-request timeout for command endpoints
	HealthTimeout time.Duration // Shorter timeout for health probes

	// Retry configuration
	MaxRetries int
	RetryDelay time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithBaseURL sets the backend base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithRoom sets the room name used as the conversation ID.
func WithRoom(room string) Option {
	return func(c *Config) { c.Room = room }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithHealthTimeout sets the health probe timeout.
func WithHealthTimeout(d time.Duration) Option {
	return func(c *Config) { c.HealthTimeout = d }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns sensible defaults for a local backend.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "http://localhost:3000",
		Room:          "unknown",
		Timeout:       30 * time.Second,
		HealthTimeout: 5 * time.Second,
		MaxRetries:    3,
		RetryDelay:    100 * time.Millisecond,
		Logger:        slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	return nil
}

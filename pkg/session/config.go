package session

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/aidahome/go-aida/pkg/transcript"
)

// Config holds controller configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Room identifies this conversation to the backend. It is sent as
	// the conversation key on dialogue calls.
	Room string

	// WakeWord gates voice captures when set: a transcript that does
	// not contain it is dropped without a dialogue call. Empty
	// disables gating, sending every capture to the backend.
	WakeWord string

	// SpeakReplies synthesizes audio for typed-message replies. Voice
	// replies always play the audio the backend returns.
	SpeakReplies bool

	// ProbeInterval is how often the connection monitor checks
	// backend health once Start is called.
	ProbeInterval time.Duration

	// Archive, when set, persists the conversation after each
	// completed cycle and on clear. Archive failures are logged and
	// never fail a cycle.
	Archive *transcript.Store

	// Observability
	Logger *slog.Logger
	Tracer trace.Tracer
	Meter  metric.Meter
}

// Option is a functional option for configuring the controller.
type Option func(*Config)

// WithRoom sets the conversation identity sent to the backend.
func WithRoom(room string) Option {
	return func(c *Config) {
		c.Room = room
	}
}

// WithWakeWord enables wake word gating of voice captures.
func WithWakeWord(word string) Option {
	return func(c *Config) {
		c.WakeWord = word
	}
}

// WithSpeakReplies controls audio synthesis for typed replies.
func WithSpeakReplies(enabled bool) Option {
	return func(c *Config) {
		c.SpeakReplies = enabled
	}
}

// WithProbeInterval sets the health probe interval.
func WithProbeInterval(d time.Duration) Option {
	return func(c *Config) {
		c.ProbeInterval = d
	}
}

// WithArchive persists conversations to the given store.
func WithArchive(store *transcript.Store) Option {
	return func(c *Config) {
		c.Archive = store
	}
}

// WithLogger sets the structured logger for the controller.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTelemetry sets the tracer and meter used for cycle spans and
// metrics. Defaults to the global OpenTelemetry providers.
func WithTelemetry(tracer trace.Tracer, meter metric.Meter) Option {
	return func(c *Config) {
		c.Tracer = tracer
		c.Meter = meter
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Room:          "unknown",
		SpeakReplies:  true,
		ProbeInterval: 10 * time.Second,
		Logger:        slog.Default(),
		Tracer:        otel.Tracer("aida/session"),
		Meter:         otel.Meter("aida/session"),
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
	if c.Room == "" {
		return fmt.Errorf("room must not be empty")
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe_interval must be positive, got %v", c.ProbeInterval)
	}
	return nil
}

// Package config loads the aida daemon configuration file.
//
// The file is JSON and is created with defaults on first run. Field names
// match the original room-client file so an existing client.json carries
// over unchanged.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Default configuration values.
const (
	DefaultRoom       = "unknown"
	DefaultBackendURL = "http://192.168.1.100:3000"
	DefaultWakeWord   = "apartment"
	DefaultWebAddr    = ":8181"
)

// Config is the daemon configuration, stored as JSON on disk.
type Config struct {
	// Room names this device; it is sent to the backend as the
	// conversation id.
	Room string `json:"room_name"`

	// BackendURL is the base address of the room backend.
	BackendURL string `json:"backend_url"`

	// WakeWord gates voice transcripts. Empty disables gating and every
	// transcript is sent as a voice command.
	WakeWord string `json:"wake_word"`

	// WebAddr is the listen address of the local control API.
	WebAddr string `json:"web_addr"`

	// SpeakReplies synthesizes and plays assistant replies on the typed
	// path. Voice replies always play.
	SpeakReplies bool `json:"ai_audio_playback"`

	// StreamSpeech synthesizes over the websocket speech channel instead
	// of request/response.
	StreamSpeech bool `json:"stream_speech"`

	// SoundCard names the ALSA device for capture and playback. Empty
	// uses the system default.
	SoundCard string `json:"sound_card"`

	// AudioBackend selects the audio driver: auto, alsa or mock.
	AudioBackend string `json:"audio_backend"`

	// MaxRecordSeconds bounds one capture; the recorder stops itself at
	// this duration.
	MaxRecordSeconds int `json:"max_record_seconds"`

	// RetryIntervalSeconds is the backend health probe period.
	RetryIntervalSeconds int `json:"retry_interval"`

	// VADEnabled drops silent chunks when the capture is finalized.
	VADEnabled bool `json:"vad_enabled"`

	// SilenceThreshold is the mean energy below which a chunk counts as
	// silence. Only read when VADEnabled is set.
	SilenceThreshold float64 `json:"silence_threshold"`

	// TestAudioOnStart plays a short tone through the output device
	// before the daemon starts serving.
	TestAudioOnStart bool `json:"test_audio_on_start"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `json:"log_level"`

	// LogFile, when set, adds a rotating file sink next to stderr.
	LogFile string `json:"log_file,omitempty"`

	// ArchivePath is the SQLite conversation archive. Empty disables
	// archiving.
	ArchivePath string `json:"archive_path,omitempty"`

	// TelemetryDir, when set, writes trace and metric export files there.
	TelemetryDir string `json:"telemetry_dir,omitempty"`
}

// Default returns the configuration written on first run.
func Default() Config {
	return Config{
		Room:                 DefaultRoom,
		BackendURL:           DefaultBackendURL,
		WakeWord:             DefaultWakeWord,
		WebAddr:              DefaultWebAddr,
		SpeakReplies:         true,
		AudioBackend:         "auto",
		MaxRecordSeconds:     30,
		RetryIntervalSeconds: 10,
		SilenceThreshold:     40,
		LogLevel:             "info",
	}
}

// DefaultPath returns ~/.aida/config.json.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "/tmp"
	}
	return filepath.Join(homeDir, ".aida", "config.json")
}

// Load reads the configuration at path. When the file does not exist the
// defaults are written there and returned.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return cfg, fmt.Errorf("config: create %s: %w", path, err)
		}
		return cfg, nil
	}
	if err != nil {
		return Default(), fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: create dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// ApplyEnv applies environment overrides on top of the file values.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("AIDA_BACKEND_URL"); v != "" {
		c.BackendURL = v
	}
	if v := os.Getenv("AIDA_ROOM"); v != "" {
		c.Room = v
	}
	if v := os.Getenv("AIDA_WAKE_WORD"); v != "" {
		c.WakeWord = v
	}
	if v := os.Getenv("AIDA_WEB_ADDR"); v != "" {
		c.WebAddr = v
	}
}

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	if c.Room == "" {
		return fmt.Errorf("config: room_name is required")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("config: backend_url is required")
	}
	if c.MaxRecordSeconds <= 0 {
		return fmt.Errorf("config: max_record_seconds must be positive")
	}
	if c.RetryIntervalSeconds <= 0 {
		return fmt.Errorf("config: retry_interval must be positive")
	}
	switch c.AudioBackend {
	case "", "auto", "alsa", "mock":
	default:
		return fmt.Errorf("config: unknown audio_backend %q", c.AudioBackend)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

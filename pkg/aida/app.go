// Package aida wires the session components into the runnable room daemon:
// audio devices, capture, playback, the backend gateway, the conversation
// controller and the local control surface.
package aida

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/aidahome/go-aida/internal/config"
	"github.com/aidahome/go-aida/internal/telemetry"
	"github.com/aidahome/go-aida/pkg/audioio"
	"github.com/aidahome/go-aida/pkg/capture"
	"github.com/aidahome/go-aida/pkg/gateway"
	"github.com/aidahome/go-aida/pkg/playback"
	"github.com/aidahome/go-aida/pkg/session"
	"github.com/aidahome/go-aida/pkg/transcript"
	"github.com/aidahome/go-aida/pkg/web"
)

// Version is stamped on telemetry exports.
const Version = "0.3.0"

// App owns the daemon components and their lifecycle.
type App struct {
	config config.Config
	logger *slog.Logger

	audioCfg audioio.Config
	recorder *capture.Recorder
	player   *playback.Player
	backend  *gateway.Client
	store    *transcript.Store
	ctrl     *session.Controller
	web      *web.Server

	telemetryStop func()
}

// New validates cfg and returns an unstarted app.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{config: cfg, logger: logger}, nil
}

// Init builds all components. Call after New and before Run; Shutdown
// releases whatever Init managed to build.
func (a *App) Init(ctx context.Context) error {
	cfg := a.config

	sessionOpts := []session.Option{
		session.WithRoom(cfg.Room),
		session.WithWakeWord(cfg.WakeWord),
		session.WithSpeakReplies(cfg.SpeakReplies),
		session.WithProbeInterval(time.Duration(cfg.RetryIntervalSeconds) * time.Second),
		session.WithLogger(a.logger),
	}

	if cfg.TelemetryDir != "" {
		tracer, meter, stop, err := telemetry.Init(ctx, cfg.TelemetryDir, "aida", Version)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		a.telemetryStop = stop
		sessionOpts = append(sessionOpts, session.WithTelemetry(tracer, meter))
	}

	a.audioCfg = audioio.DefaultConfig()
	if cfg.AudioBackend != "" {
		a.audioCfg.Backend = audioio.Backend(cfg.AudioBackend)
	}
	if cfg.SoundCard != "" {
		a.audioCfg.Device = cfg.SoundCard
	}
	source, err := audioio.NewSource(a.audioCfg, a.logger)
	if err != nil {
		return fmt.Errorf("audio source: %w", err)
	}
	sink, err := audioio.NewSink(a.audioCfg, a.logger)
	if err != nil {
		source.Close()
		return fmt.Errorf("audio sink: %w", err)
	}

	captureOpts := []capture.Option{
		capture.WithMaxDuration(time.Duration(cfg.MaxRecordSeconds) * time.Second),
		capture.WithLogger(a.logger),
	}
	if cfg.VADEnabled {
		captureOpts = append(captureOpts,
			capture.WithVAD(true),
			capture.WithEnergyThreshold(cfg.SilenceThreshold))
	}
	a.recorder, err = capture.NewRecorder(source, captureOpts...)
	if err != nil {
		source.Close()
		sink.Close()
		return fmt.Errorf("recorder: %w", err)
	}
	a.player = playback.NewPlayer(sink, a.logger)

	a.backend, err = gateway.NewClient(
		gateway.WithBaseURL(cfg.BackendURL),
		gateway.WithRoom(cfg.Room),
		gateway.WithLogger(a.logger),
	)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	var backend gateway.Backend = a.backend
	if cfg.StreamSpeech {
		backend = &streamingBackend{Client: a.backend}
		a.logger.Info("speech synthesis over websocket stream enabled")
	}

	if cfg.ArchivePath != "" {
		a.store, err = transcript.OpenStore(cfg.ArchivePath)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		sessionOpts = append(sessionOpts, session.WithArchive(a.store))
	}

	a.ctrl, err = session.NewController(backend, a.recorder, a.player, transcript.NewLog(), sessionOpts...)
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}

	a.web = web.NewServer(a.ctrl, cfg.WebAddr, a.logger)

	if cfg.TestAudioOnStart {
		if err := a.player.Play(ctx, TestTone(a.audioCfg.SampleRate)); err != nil {
			a.logger.Warn("startup tone failed", "error", err)
		}
	}
	return nil
}

// Run starts the health monitor and the control surface, then blocks until
// the context is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.ctrl.Start(ctx); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.web.Start() }()

	a.logger.Info("aida ready",
		"room", a.config.Room,
		"backend", a.config.BackendURL,
		"web", a.config.WebAddr,
		"wake_word", a.config.WakeWord,
	)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("control surface: %w", err)
		}
		return nil
	}
}

// Controller exposes the session controller, mainly for tests.
func (a *App) Controller() *session.Controller {
	return a.ctrl
}

// Shutdown releases all components. Safe to call after a failed Init.
func (a *App) Shutdown() {
	if a.web != nil {
		a.web.Shutdown()
	}
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.player != nil {
		a.player.Close()
	}
	if a.backend != nil {
		a.backend.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.telemetryStop != nil {
		a.telemetryStop()
	}
	a.logger.Info("aida stopped")
}

// TestTone renders half a second of 440 Hz sine as a mono WAV payload.
func TestTone(sampleRate int) []byte {
	const (
		freq      = 440.0
		duration  = 500 * time.Millisecond
		amplitude = 0.3
	)

	n := int(float64(sampleRate) * duration.Seconds())
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return audioio.EncodeWAV(pcm, sampleRate, 1)
}

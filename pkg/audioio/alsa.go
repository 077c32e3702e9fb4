//go:build linux

package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

// ALSASource captures audio through the arecord tool.
// This is the production implementation for the Raspberry Pi.
type ALSASource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	cmd      *exec.Cmd
	streamCh chan AudioChunk
	stopCh   chan struct{}
	doneCh   chan struct{}

	// Stats
	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64

	device string
}

// newALSASource creates a new ALSA audio source.
func newALSASource(cfg Config, logger *slog.Logger) (*ALSASource, error) {
	if _, err := exec.LookPath("arecord"); err != nil {
		return nil, fmt.Errorf("arecord not found in PATH: %w", err)
	}

	device := cfg.Device
	if device == "" {
		device = "default"
	}

	s := &ALSASource{
		cfg:      cfg,
		logger:   logger,
		device:   device,
		streamCh: make(chan AudioChunk, 10),
		stopCh:   make(chan struct{}),
	}

	logger.Info("ALSA source created",
		"device", device,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	return s, nil
}

// Start begins audio capture.
func (s *ALSASource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	// arecord flags:
	//   -D device : ALSA capture device
	//   -q        : no progress output
	//   -f S16_LE : 16-bit signed little-endian
	//   -t raw    : headerless PCM on stdout
	cmd := exec.Command("arecord",
		"-D", s.device,
		"-q",
		"-f", "S16_LE",
		"-r", strconv.Itoa(s.cfg.SampleRate),
		"-c", strconv.Itoa(s.cfg.Channels),
		"-t", "raw",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open arecord stdout: %w", err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start arecord: %w", err)
	}

	s.cmd = cmd
	s.running = true
	s.stopCh = make(chan struct{})
	s.streamCh = make(chan AudioChunk, 10)
	s.doneCh = make(chan struct{})

	go s.captureLoop(ctx, stdout, s.streamCh, s.stopCh, s.doneCh)

	s.logger.Info("ALSA audio source started", "device", s.device)

	return nil
}

func (s *ALSASource) captureLoop(ctx context.Context, r io.Reader, streamCh chan AudioChunk, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer close(streamCh)

	buf := make([]byte, s.cfg.ChunkBytes())

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		if _, err := io.ReadFull(r, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, fs.ErrClosed) {
				s.logger.Error("arecord read failed", "error", err)
			}
			return
		}

		var chunk AudioChunk
		chunk.FromBytes(buf, s.cfg.SampleRate, s.cfg.Channels)

		select {
		case streamCh <- chunk:
			s.chunksRead.Add(1)
			s.samplesRead.Add(int64(len(chunk.Samples)))
		default:
			s.overruns.Add(1)
			s.logger.Debug("ALSA source: consumer behind, dropping chunk")
		}
	}
}

// Stop halts audio capture and terminates arecord.
func (s *ALSASource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}

	s.running = false
	close(s.stopCh)
	cmd := s.cmd
	s.cmd = nil
	done := s.doneCh
	s.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	if done != nil {
		<-done
	}

	s.logger.Info("ALSA audio source stopped")

	return nil
}

// Read reads the next audio chunk.
func (s *ALSASource) Read(ctx context.Context) (AudioChunk, error) {
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-s.streamCh:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (s *ALSASource) Stream() <-chan AudioChunk {
	return s.streamCh
}

// Config returns the audio configuration.
func (s *ALSASource) Config() Config {
	return s.cfg
}

// Name returns "alsa".
func (s *ALSASource) Name() string {
	return "alsa"
}

// Close releases the capture device.
func (s *ALSASource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns source statistics.
func (s *ALSASource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     "alsa",
	}
}

var _ SourceWithStats = (*ALSASource)(nil)

// ALSASink plays audio through the aplay tool.
type ALSASink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	cmd     *exec.Cmd
	stdin   io.WriteCloser

	// Stats
	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
	underruns      atomic.Int64

	device string
}

// newALSASink creates a new ALSA audio sink.
func newALSASink(cfg Config, logger *slog.Logger) (*ALSASink, error) {
	if _, err := exec.LookPath("aplay"); err != nil {
		return nil, fmt.Errorf("aplay not found in PATH: %w", err)
	}

	device := cfg.Device
	if device == "" {
		device = "default"
	}

	s := &ALSASink{
		cfg:    cfg,
		logger: logger,
		device: device,
	}

	logger.Info("ALSA sink created",
		"device", device,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	return s, nil
}

// spawnLocked starts a fresh aplay process reading raw PCM from stdin.
// Callers must hold s.mu.
func (s *ALSASink) spawnLocked() error {
	cmd := exec.Command("aplay",
		"-D", s.device,
		"-q",
		"-f", "S16_LE",
		"-r", strconv.Itoa(s.cfg.SampleRate),
		"-c", strconv.Itoa(s.cfg.Channels),
		"-t", "raw",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open aplay stdin: %w", err)
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start aplay: %w", err)
	}

	s.cmd = cmd
	s.stdin = stdin
	return nil
}

// killLocked terminates the current aplay process, discarding anything
// still buffered. Callers must hold s.mu.
func (s *ALSASink) killLocked() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.cmd = nil
	s.stdin = nil
}

// Start begins audio playback.
func (s *ALSASink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	if err := s.spawnLocked(); err != nil {
		return err
	}

	s.running = true
	s.logger.Info("ALSA audio sink started", "device", s.device)

	return nil
}

// Stop halts audio playback and terminates aplay.
func (s *ALSASink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	s.killLocked()
	s.logger.Info("ALSA audio sink stopped")

	return nil
}

// Write sends audio to the output device. Blocks when the device
// buffer is full, which paces playback naturally.
func (s *ALSASink) Write(ctx context.Context, chunk AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if !s.running || s.stdin == nil {
		return fmt.Errorf("sink not running")
	}

	if _, err := s.stdin.Write(chunk.Bytes()); err != nil {
		s.underruns.Add(1)
		return fmt.Errorf("write to aplay: %w", err)
	}

	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(chunk.Samples)))

	return nil
}

// Flush closes the pipe, waits for aplay to drain the remaining audio,
// then respawns it so the sink stays usable.
func (s *ALSASink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.cmd == nil {
		return nil
	}

	_ = s.stdin.Close()

	waitErr := make(chan error, 1)
	go func(cmd *exec.Cmd) { waitErr <- cmd.Wait() }(s.cmd)

	select {
	case <-ctx.Done():
		_ = s.cmd.Process.Kill()
		<-waitErr
		s.cmd = nil
		s.stdin = nil
		if err := s.spawnLocked(); err != nil {
			return err
		}
		return ctx.Err()
	case <-waitErr:
	}

	s.cmd = nil
	s.stdin = nil
	return s.spawnLocked()
}

// Clear discards buffered audio immediately by killing and
// respawning aplay.
func (s *ALSASink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.killLocked()
	s.logger.Debug("ALSA sink cleared")

	return s.spawnLocked()
}

// Config returns the audio configuration.
func (s *ALSASink) Config() Config {
	return s.cfg
}

// Name returns "alsa".
func (s *ALSASink) Name() string {
	return "alsa"
}

// Close releases the playback device.
func (s *ALSASink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns sink statistics.
func (s *ALSASink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SinkStats{
		ChunksWritten:   s.chunksWritten.Load(),
		SamplesWritten:  s.samplesWritten.Load(),
		Underruns:       s.underruns.Load(),
		Running:         running,
		Backend:         "alsa",
		BufferedSamples: 0, // aplay does not report its buffer fill
	}
}

var _ SinkWithStats = (*ALSASink)(nil)

package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aidahome/go-aida/pkg/audioio"
)

// State is the capture session lifecycle state.
type State int

const (
	// StateIdle means no recording has started.
	StateIdle State = iota
	// StateRecording means chunks are being buffered.
	StateRecording
	// StatePaused means the microphone is held but chunks are discarded.
	StatePaused
	// StateStopping means a stop was requested and the driver is finalizing.
	StateStopping
	// StateStopped means the recording finished and the result is available.
	StateStopped
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StopFuture resolves exactly once when a stop request finalizes.
// Concurrent stop calls observe the same future, so a double stop can
// never double-resolve or hang.
type StopFuture struct {
	done     chan struct{}
	artifact *Artifact
	err      error
}

func newStopFuture() *StopFuture {
	return &StopFuture{done: make(chan struct{})}
}

func resolvedFuture(artifact *Artifact, err error) *StopFuture {
	f := newStopFuture()
	f.artifact = artifact
	f.err = err
	close(f.done)
	return f
}

// Done is closed when the future resolves.
func (f *StopFuture) Done() <-chan struct{} { return f.done }

// Wait blocks until the future resolves or ctx is done.
// The artifact is nil when the recording held no audio.
func (f *StopFuture) Wait(ctx context.Context) (*Artifact, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.artifact, f.err
	}
}

// Recorder owns one recording lifecycle at a time over an audio source.
// Start acquires the microphone, Stop finalizes asynchronously and
// resolves a single StopFuture, Close releases the device on every
// exit path.
type Recorder struct {
	source audioio.Source
	cfg    *Config
	vad    *Detector
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	gen       uint64
	startedAt time.Time
	elapsed   time.Duration
	chunks    []audioio.AudioChunk
	result    *Artifact
	err       error
	pending   *StopFuture
	closed    bool
}

// NewRecorder creates a recorder over the given source.
func NewRecorder(source audioio.Source, opts ...Option) (*Recorder, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Recorder{
		source: source,
		cfg:    cfg,
		vad:    NewDetector(cfg.EnergyThreshold),
		logger: cfg.Logger,
	}, nil
}

// Start acquires the microphone and begins buffering chunks.
// Fails with ErrAlreadyActive when a capture is already in flight and
// ErrDeviceUnavailable when the device cannot be opened.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	switch r.state {
	case StateRecording, StatePaused, StateStopping:
		return ErrAlreadyActive
	}

	if err := r.source.Start(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	r.gen++
	r.state = StateRecording
	r.startedAt = time.Now()
	r.elapsed = 0
	r.chunks = nil
	r.result = nil
	r.err = nil

	go r.consume(r.gen, r.source.Stream())

	r.logger.Info("capture started",
		"backend", r.source.Name(),
		"max_duration", r.cfg.MaxDuration,
	)

	return nil
}

// consume buffers chunks from the source stream until it closes.
// The stream closing is the driver's completion signal.
func (r *Recorder) consume(gen uint64, stream <-chan audioio.AudioChunk) {
	for chunk := range stream {
		r.mu.Lock()
		if r.gen != gen {
			r.mu.Unlock()
			return
		}
		if r.state != StateRecording {
			// Paused or stopping: discard without advancing elapsed.
			r.mu.Unlock()
			continue
		}

		r.chunks = append(r.chunks, chunk)
		r.elapsed += time.Duration(chunk.Duration() * float64(time.Second))
		over := r.cfg.MaxDuration > 0 && r.elapsed >= r.cfg.MaxDuration
		elapsed := r.elapsed
		r.mu.Unlock()

		if over {
			r.logger.Info("max duration reached, auto-stopping capture",
				"elapsed", elapsed,
			)
			r.Stop()
		}
	}

	r.finalize(gen)
}

// finalize runs when the stream has closed: either a requested stop
// completed, the session was cleared, or the driver died mid-capture.
func (r *Recorder) finalize(gen uint64) {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return
	}

	var artifact *Artifact
	var err error
	driverDied := false

	switch r.state {
	case StateStopping:
		artifact = r.buildArtifactLocked()
		r.result = artifact
		r.state = StateStopped
	case StateRecording, StatePaused:
		driverDied = true
		r.state = StateStopped
		r.result = nil
		r.err = ErrCaptureFailed
		err = ErrCaptureFailed
	}
	r.resolveLocked(artifact, err)
	chunks := len(r.chunks)
	r.mu.Unlock()

	if driverDied {
		r.logger.Error("capture driver stopped unexpectedly", "chunks", chunks)
		_ = r.source.Stop()
	}
}

// buildArtifactLocked materializes the buffered chunks, applying VAD
// filtering when enabled. Callers hold r.mu.
func (r *Recorder) buildArtifactLocked() *Artifact {
	chunks := r.chunks
	if r.cfg.VADEnabled {
		kept := r.vad.FilterChunks(chunks, r.cfg.MinSpeechChunks)
		if len(kept) < len(chunks) {
			r.logger.Debug("speech filter trimmed capture",
				"kept", len(kept),
				"total", len(chunks),
			)
		}
		chunks = kept
	}
	return buildArtifact(chunks, r.startedAt)
}

// resolveLocked fires the pending stop future, if any. Callers hold r.mu.
func (r *Recorder) resolveLocked(artifact *Artifact, err error) {
	if r.pending == nil {
		return
	}
	r.pending.artifact = artifact
	r.pending.err = err
	close(r.pending.done)
	r.pending = nil
}

// Stop requests finalization of the active capture and returns a
// future that resolves with the artifact, or nil when nothing was
// captured. Stopping an inactive recorder resolves immediately with
// the prior result. Concurrent callers share one pending future.
func (r *Recorder) Stop() *StopFuture {
	r.mu.Lock()

	switch r.state {
	case StateRecording, StatePaused:
		r.state = StateStopping
		f := newStopFuture()
		r.pending = f
		r.mu.Unlock()

		// The driver finalizes out of band; the stream close completes
		// the stop in finalize.
		go func() {
			if err := r.source.Stop(); err != nil {
				r.logger.Warn("source stop failed", "error", err)
			}
		}()
		return f

	case StateStopping:
		f := r.pending
		r.mu.Unlock()
		return f

	default:
		f := resolvedFuture(r.result, r.err)
		r.mu.Unlock()
		return f
	}
}

// Pause halts chunk accumulation and the duration tracker without
// discarding buffered chunks. No-op unless recording.
func (r *Recorder) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return
	}
	r.state = StatePaused
	r.logger.Info("capture paused", "elapsed", r.elapsed)
}

// Resume continues a paused recording. No-op unless paused.
func (r *Recorder) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StatePaused {
		return
	}
	r.state = StateRecording
	r.logger.Info("capture resumed", "elapsed", r.elapsed)
}

// Clear resets the session to its initial values. A pending stop is
// resolved with no artifact rather than left dangling, and an active
// recording is terminated with the microphone released.
func (r *Recorder) Clear() {
	r.mu.Lock()
	active := r.state == StateRecording || r.state == StatePaused || r.state == StateStopping
	r.state = StateIdle
	r.chunks = nil
	r.result = nil
	r.err = nil
	r.elapsed = 0
	r.startedAt = time.Time{}
	r.resolveLocked(nil, nil)
	r.mu.Unlock()

	if active {
		if err := r.source.Stop(); err != nil {
			r.logger.Warn("source stop failed", "error", err)
		}
	}

	r.logger.Info("capture cleared")
}

// Close resolves any pending stop with no artifact and releases the
// microphone. The recorder cannot be restarted afterwards.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.gen++ // detach any draining consume loop
	r.state = StateStopped
	r.resolveLocked(nil, nil)
	r.mu.Unlock()

	return r.source.Close()
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed returns the recorded audio duration so far. It stops
// advancing while paused and freezes once the recording stops.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// ChunkCount returns the number of buffered chunks.
func (r *Recorder) ChunkCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

// Result returns the finalized artifact, or nil if the recording has
// not stopped or captured nothing.
func (r *Recorder) Result() *Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Status is a point-in-time snapshot of the recorder.
type Status struct {
	State     string        `json:"state"`
	Elapsed   time.Duration `json:"elapsed"`
	Chunks    int           `json:"chunks"`
	HasResult bool          `json:"has_result"`
}

// Status returns a snapshot for status surfaces.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Status{
		State:     r.state.String(),
		Elapsed:   r.elapsed,
		Chunks:    len(r.chunks),
		HasResult: r.result != nil,
	}
}

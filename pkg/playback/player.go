// Package playback drives response audio to the output device. At most
// one playback is active at a time: starting a new one stops the one in
// flight, and an explicit Stop interrupts without reporting an error to
// the interrupted caller.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aidahome/go-aida/pkg/audioio"
)

// Player owns the single playback slot in front of an audio sink.
type Player struct {
	sink   audioio.Sink
	logger *slog.Logger

	mu        sync.Mutex
	active    bool
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	total     time.Duration
	written   time.Duration
}

// Progress is a snapshot of the active playback.
type Progress struct {
	Playing bool          `json:"playing"`
	Elapsed time.Duration `json:"elapsed"`
	Written time.Duration `json:"written"`
	Total   time.Duration `json:"total"`
}

// NewPlayer creates a player writing to sink.
func NewPlayer(sink audioio.Sink, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{sink: sink, logger: logger}
}

// Play decodes payload and blocks until the audio has played out. It
// returns nil on natural completion and on interruption (Stop or a
// replacing Play), the caller's context error on cancellation, and
// ErrPlaybackFailed when the payload cannot be decoded or the device
// rejects it. Any playback already active is stopped first.
func (p *Player) Play(ctx context.Context, payload []byte) error {
	samples, err := p.decode(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}

	// Claim the playback slot, evicting whoever holds it.
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return ErrClosed
		}
		if !p.active {
			break
		}
		cancel, done := p.cancel, p.done
		p.mu.Unlock()

		cancel()
		p.sink.Clear()
		<-done
	}

	playCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})

	cfg := p.sink.Config()
	total := samplesDuration(len(samples), cfg)
	p.active = true
	p.cancel = cancel
	p.done = done
	p.startedAt = time.Now()
	p.total = total
	p.written = 0
	p.mu.Unlock()

	streamErr := p.stream(playCtx, samples)

	p.mu.Lock()
	p.active = false
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()
	close(done)

	switch {
	case streamErr == nil:
		p.logger.Debug("playback completed", "duration", total)
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case playCtx.Err() != nil:
		// Interrupted by Stop or a replacing Play.
		p.logger.Debug("playback interrupted")
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, streamErr)
	}
}

// decode turns the payload into samples matching the sink format. WAV
// containers are unpacked and converted; anything else is treated as
// raw 16-bit PCM already in the device format.
func (p *Player) decode(payload []byte) ([]int16, error) {
	if len(payload) == 0 {
		return nil, errors.New("empty payload")
	}

	cfg := p.sink.Config()
	rate, channels := cfg.SampleRate, cfg.Channels

	var pcm []byte
	if audioio.IsWAV(payload) {
		var err error
		pcm, rate, channels, err = audioio.DecodeWAV(payload)
		if err != nil {
			return nil, err
		}
	} else {
		if len(payload)%2 != 0 {
			return nil, errors.New("raw PCM payload has odd length")
		}
		pcm = payload
	}

	samples := audioio.BytesToSamples(pcm)

	if channels == 2 && cfg.Channels == 1 {
		samples = audioio.StereoToMono(samples)
		channels = 1
	}
	if rate != cfg.SampleRate {
		samples = audioio.Resample(samples, rate, cfg.SampleRate)
	}
	if channels != cfg.Channels {
		return nil, fmt.Errorf("unsupported channel conversion %d -> %d", channels, cfg.Channels)
	}

	return samples, nil
}

// stream pushes samples to the sink chunk by chunk, then drains it.
func (p *Player) stream(ctx context.Context, samples []int16) error {
	cfg := p.sink.Config()
	if err := p.sink.Start(ctx); err != nil {
		return err
	}

	step := cfg.ChunkSize() * cfg.Channels
	if step <= 0 {
		step = len(samples)
	}

	for off := 0; off < len(samples); off += step {
		end := off + step
		if end > len(samples) {
			end = len(samples)
		}
		chunk := audioio.AudioChunk{
			Samples:    samples[off:end],
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
		}

		if err := p.sink.Write(ctx, chunk); err != nil {
			return err
		}

		p.mu.Lock()
		p.written += samplesDuration(end-off, cfg)
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return p.sink.Flush(ctx)
}

// Stop interrupts the active playback and discards queued audio. It is
// idempotent and a no-op when nothing is playing; the interrupted Play
// call returns nil, not an error. Stop returns once the playback slot
// is free.
func (p *Player) Stop() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	p.sink.Clear()
	<-done

	p.logger.Debug("playback stopped")
}

// IsPlaying reports whether a playback is active.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Progress returns a snapshot of the active playback. When idle, all
// fields are zero.
func (p *Player) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return Progress{}
	}
	return Progress{
		Playing: true,
		Elapsed: time.Since(p.startedAt),
		Written: p.written,
		Total:   p.total,
	}
}

// Close stops any active playback and releases the sink.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.Stop()
	return p.sink.Close()
}

func samplesDuration(n int, cfg audioio.Config) time.Duration {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return 0
	}
	frames := n / cfg.Channels
	return time.Duration(float64(frames) / float64(cfg.SampleRate) * float64(time.Second))
}

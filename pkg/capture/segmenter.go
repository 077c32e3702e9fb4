package capture

import (
	"context"
	"log/slog"
	"time"

	"github.com/aidahome/go-aida/pkg/audioio"
)

// SegmenterConfig tunes utterance segmentation for the always-on
// listening mode.
type SegmenterConfig struct {
	// EnergyThreshold is the RMS level (int16 scale) above which a
	// chunk counts as speech.
	EnergyThreshold float64

	// SilenceChunks is the run of consecutive silent chunks that
	// closes an utterance. 40 chunks of 30ms is 1.2s of silence.
	SilenceChunks int

	// MinSpeechChunks drops utterances with less speech than this.
	MinSpeechChunks int

	// Logger for segmentation events.
	Logger *slog.Logger
}

// DefaultSegmenterConfig returns sensible segmentation defaults.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		EnergyThreshold: 500,
		SilenceChunks:   40,
		MinSpeechChunks: 3,
		Logger:          slog.Default(),
	}
}

// Segmenter chops a continuous capture stream into utterance
// artifacts. Speech opens a segment; SilenceChunks consecutive silent
// chunks close it. Audio before the first speech chunk is discarded.
type Segmenter struct {
	cfg SegmenterConfig
	det *Detector
}

// NewSegmenter creates a segmenter.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.EnergyThreshold <= 0 {
		cfg.EnergyThreshold = DefaultSegmenterConfig().EnergyThreshold
	}
	if cfg.SilenceChunks <= 0 {
		cfg.SilenceChunks = DefaultSegmenterConfig().SilenceChunks
	}
	if cfg.MinSpeechChunks <= 0 {
		cfg.MinSpeechChunks = DefaultSegmenterConfig().MinSpeechChunks
	}

	return &Segmenter{
		cfg: cfg,
		det: NewDetector(cfg.EnergyThreshold),
	}
}

// Run consumes the stream and sends one artifact per detected
// utterance. It returns when ctx is done or the stream closes.
// A partial utterance still open when the stream ends is dropped.
func (s *Segmenter) Run(ctx context.Context, stream <-chan audioio.AudioChunk, utterances chan<- *Artifact) {
	var buf []audioio.AudioChunk
	var startedAt time.Time
	silenceRun := 0
	speech := false

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-stream:
			if !ok {
				return
			}

			if s.det.IsSpeech(chunk) {
				if !speech {
					startedAt = time.Now()
				}
				buf = append(buf, chunk)
				silenceRun = 0
				speech = true
				continue
			}

			if !speech {
				continue // leading silence
			}

			buf = append(buf, chunk)
			silenceRun++
			if silenceRun < s.cfg.SilenceChunks {
				continue
			}

			kept := s.det.FilterChunks(buf, s.cfg.MinSpeechChunks)
			if artifact := buildArtifact(kept, startedAt); artifact != nil {
				s.cfg.Logger.Debug("utterance segmented",
					"chunks", artifact.Chunks,
					"duration", artifact.Duration,
				)
				select {
				case utterances <- artifact:
				case <-ctx.Done():
					return
				}
			}

			buf = nil
			silenceRun = 0
			speech = false
		}
	}
}

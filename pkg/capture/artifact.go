// Package capture owns the microphone recording lifecycle. It buffers
// chunks from an audio source and materializes a single immutable
// artifact when the recording stops.
package capture

import (
	"time"

	"github.com/google/uuid"

	"github.com/aidahome/go-aida/pkg/audioio"
)

// Artifact is one finished recording, encoded as a WAV payload.
// It is immutable once built.
type Artifact struct {
	// ID uniquely identifies the recording.
	ID string `json:"id"`

	// WAV is the encoded audio payload.
	WAV []byte `json:"-"`

	// SampleRate and Channels describe the PCM data inside WAV.
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`

	// Chunks is the number of capture chunks the artifact was built from.
	Chunks int `json:"chunks"`

	// Duration is the audio length.
	Duration time.Duration `json:"duration"`

	// CapturedAt is when the recording started.
	CapturedAt time.Time `json:"captured_at"`
}

// buildArtifact assembles a WAV artifact from buffered chunks.
// Returns nil when there is nothing to keep.
func buildArtifact(chunks []audioio.AudioChunk, startedAt time.Time) *Artifact {
	if len(chunks) == 0 {
		return nil
	}

	sampleRate := chunks[0].SampleRate
	channels := chunks[0].Channels

	var pcm []byte
	var seconds float64
	for i := range chunks {
		pcm = append(pcm, chunks[i].Bytes()...)
		seconds += chunks[i].Duration()
	}
	if len(pcm) == 0 {
		return nil
	}

	return &Artifact{
		ID:         uuid.New().String(),
		WAV:        audioio.EncodeWAV(pcm, sampleRate, channels),
		SampleRate: sampleRate,
		Channels:   channels,
		Chunks:     len(chunks),
		Duration:   time.Duration(seconds * float64(time.Second)),
		CapturedAt: startedAt,
	}
}

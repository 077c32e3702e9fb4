package capture

import "github.com/aidahome/go-aida/pkg/audioio"

// Detector flags chunks that carry speech energy. It replaces a full
// voice activity model with an RMS gate, which is enough to drop
// leading and trailing room noise from push-to-talk recordings.
type Detector struct {
	threshold float64
}

// NewDetector creates a detector with the given RMS threshold
// (int16 scale).
func NewDetector(threshold float64) *Detector {
	return &Detector{threshold: threshold}
}

// IsSpeech reports whether the chunk's energy clears the threshold.
func (d *Detector) IsSpeech(chunk audioio.AudioChunk) bool {
	return chunk.RMS() >= d.threshold
}

// FilterChunks keeps chunks with speech plus the non-speech chunks
// that follow speech (for trailing context). When fewer than minSpeech
// chunks contain speech, the whole recording is discarded and nil is
// returned.
func (d *Detector) FilterChunks(chunks []audioio.AudioChunk, minSpeech int) []audioio.AudioChunk {
	var kept []audioio.AudioChunk
	speechCount := 0

	for _, chunk := range chunks {
		if d.IsSpeech(chunk) {
			speechCount++
			kept = append(kept, chunk)
		} else if speechCount > 0 {
			kept = append(kept, chunk)
		}
	}

	if speechCount < minSpeech {
		return nil
	}
	return kept
}

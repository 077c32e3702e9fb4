package aida

import (
	"bytes"
	"context"

	"github.com/aidahome/go-aida/pkg/gateway"
)

// streamingBackend synthesizes speech over the websocket channel while
// delegating everything else to the HTTP client. Frames are raw PCM and are
// concatenated into one payload; the player consumes the whole utterance, so
// frame-by-frame delivery would need a streaming entry point on it.
type streamingBackend struct {
	*gateway.Client
}

func (b *streamingBackend) TextToSpeech(ctx context.Context, text string) ([]byte, error) {
	var buf bytes.Buffer
	err := b.Client.StreamSpeech(ctx, text, func(audio []byte) error {
		buf.Write(audio)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const streamHandshakeTimeout = 10 * time.Second

// SpeechStream is a websocket session against GET /speech-stream. The client
// sends text frames and the backend replies with audio frames until one is
// marked final.
//
// One goroutine may call Recv at a time; Send and Close are safe to call
// concurrently with it.
type SpeechStream struct {
	conn   *websocket.Conn
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// SpeechChunk is one audio frame from the stream.
type SpeechChunk struct {
	// Audio is the decoded frame payload.
	Audio []byte

	// Final marks the last frame for the current text.
	Final bool
}

// OpenSpeechStream upgrades /speech-stream to a websocket.
func (c *Client) OpenSpeechStream(ctx context.Context) (*SpeechStream, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: streamHandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, c.wsEndpoint("/speech-stream"), nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, &ConnectionError{Op: "speech-stream", Err: err}
	}

	return &SpeechStream{
		conn:   conn,
		logger: c.config.Logger.With("component", "gateway.stream"),
	}, nil
}

// Send submits text for synthesis.
func (s *SpeechStream) Send(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if err := s.conn.WriteJSON(map[string]interface{}{"text": text}); err != nil {
		return &ConnectionError{Op: "speech-stream", Err: err}
	}
	return nil
}

// Recv reads the next audio frame. It blocks until a frame arrives, the
// stream closes, or the connection fails.
func (s *SpeechStream) Recv() (*SpeechChunk, error) {
	var wire struct {
		Audio string `json:"audio"`
		Final bool   `json:"final"`
		Error string `json:"error"`
	}
	if err := s.conn.ReadJSON(&wire); err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || s.isClosed() {
			return nil, ErrStreamClosed
		}
		return nil, &ConnectionError{Op: "speech-stream", Err: err}
	}
	if wire.Error != "" {
		return nil, apiFailure(http.StatusOK, wire.Error)
	}

	chunk := &SpeechChunk{Final: wire.Final}
	if wire.Audio != "" {
		data, err := base64.StdEncoding.DecodeString(wire.Audio)
		if err != nil {
			return nil, fmt.Errorf("gateway: decode stream audio: %w", err)
		}
		chunk.Audio = data
	}
	return chunk, nil
}

// Close sends a close frame and tears down the connection. It is safe to
// call more than once.
func (s *SpeechStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

func (s *SpeechStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// StreamSpeech synthesizes text over the websocket, handing each audio frame
// to fn as it arrives. It returns once the final frame has been delivered or
// the context is cancelled.
func (c *Client) StreamSpeech(ctx context.Context, text string, fn func(audio []byte) error) error {
	stream, err := c.OpenSpeechStream(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	// Unblock Recv when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-done:
		}
	}()

	if err := stream.Send(text); err != nil {
		return err
	}

	for {
		chunk, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if len(chunk.Audio) > 0 && fn != nil {
			if err := fn(chunk.Audio); err != nil {
				return err
			}
		}
		if chunk.Final {
			return nil
		}
	}
}

// wsEndpoint rewrites the backend base URL to its websocket equivalent.
func (c *Client) wsEndpoint(path string) string {
	u := c.baseURL + path
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

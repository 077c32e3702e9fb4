// Package gateway talks to the aida backend over HTTP.
//
// The backend exposes a small JSON API (health, voice-command,
// speech-to-text, text-to-speech, chat) plus an optional websocket for
// streaming synthesis. Audio uploads are multipart; response audio arrives
// base64-encoded and is decoded here so callers only see raw bytes.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/aidahome/go-aida/internal/httpc"
)

// Backend is the remote surface the voice pipeline depends on.
type Backend interface {
	// Health probes the backend and returns its reported status.
	Health(ctx context.Context) (*HealthStatus, error)

	// VoiceCommand uploads a recorded utterance and returns the assistant
	// reply, with synthesized audio when the backend produced any.
	VoiceCommand(ctx context.Context, audio []byte) (*VoiceResult, error)

	// SpeechToText transcribes a recorded utterance.
	SpeechToText(ctx context.Context, audio []byte) (string, error)

	// TextToSpeech synthesizes speech for the given text.
	TextToSpeech(ctx context.Context, text string) ([]byte, error)

	// Chat sends a text message with optional history and returns the reply.
	Chat(ctx context.Context, message string, history []Message) (string, error)

	// Close releases client resources.
	Close() error
}

// HealthStatus is the backend's health report.
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Message is a single conversation history entry on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// VoiceResult is the parsed reply to a voice command.
type VoiceResult struct {
	// Text is the assistant's text response.
	Text string

	// Audio is the decoded response audio, nil when the backend sent none.
	Audio []byte
}

// Client is an HTTP client for the backend.
type Client struct {
	baseURL string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a backend client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:  cfg,
		http:    httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "gateway.client"),
	}, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Room returns the configured room name.
func (c *Client) Room() string {
	return c.config.Room
}

// Health probes GET /health. It uses the shorter health timeout so a dead
// backend is reported quickly.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ConnectionError{Op: "health", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("gateway: decode health response: %w", err)
	}
	return &status, nil
}

// VoiceCommand uploads audio to POST /voice-command and returns the
// assistant reply. The configured room is sent as the conversation ID.
func (c *Client) VoiceCommand(ctx context.Context, audio []byte) (*VoiceResult, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	start := time.Now()
	resp, err := c.postAudio(ctx, "voice-command", "/voice-command", audio, c.config.Room)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var wire struct {
		Success       bool   `json:"success"`
		TextResponse  string `json:"text_response"`
		AudioResponse string `json:"audio_response"`
		Error         string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("gateway: decode voice-command response: %w", err)
	}
	if !wire.Success {
		return nil, apiFailure(resp.StatusCode, wire.Error)
	}

	result := &VoiceResult{Text: wire.TextResponse}
	if wire.AudioResponse != "" {
		data, err := base64.StdEncoding.DecodeString(wire.AudioResponse)
		if err != nil {
			return nil, fmt.Errorf("gateway: decode response audio: %w", err)
		}
		result.Audio = data
	}

	c.logger.Debug("voice command complete",
		"audio_bytes", len(audio),
		"reply_chars", len(result.Text),
		"reply_audio_bytes", len(result.Audio),
		"elapsed", time.Since(start),
	)
	return result, nil
}

// SpeechToText uploads audio to POST /speech-to-text and returns the
// transcript.
func (c *Client) SpeechToText(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}

	resp, err := c.postAudio(ctx, "speech-to-text", "/speech-to-text", audio, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.parseError(resp)
	}

	var wire struct {
		Success bool   `json:"success"`
		Text    string `json:"text"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", fmt.Errorf("gateway: decode speech-to-text response: %w", err)
	}
	if !wire.Success {
		return "", apiFailure(resp.StatusCode, wire.Error)
	}
	return strings.TrimSpace(wire.Text), nil
}

// TextToSpeech posts text to POST /text-to-speech and returns the decoded
// audio.
func (c *Client) TextToSpeech(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	start := time.Now()
	resp, err := c.postJSON(ctx, "text-to-speech", "/text-to-speech", map[string]interface{}{
		"text": text,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var wire struct {
		Success bool   `json:"success"`
		Audio   string `json:"audio"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("gateway: decode text-to-speech response: %w", err)
	}
	if !wire.Success {
		return nil, apiFailure(resp.StatusCode, wire.Error)
	}
	if wire.Audio == "" {
		return nil, apiFailure(resp.StatusCode, "no audio in response")
	}

	data, err := base64.StdEncoding.DecodeString(wire.Audio)
	if err != nil {
		return nil, fmt.Errorf("gateway: decode response audio: %w", err)
	}

	c.logger.Debug("speech synthesized",
		"chars", len(text),
		"audio_bytes", len(data),
		"elapsed", time.Since(start),
	)
	return data, nil
}

// Chat posts a text message to POST /chat and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, message string, history []Message) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyText
	}

	payload := map[string]interface{}{
		"message":         message,
		"conversation_id": c.config.Room,
	}
	if len(history) > 0 {
		payload["history"] = history
	}

	resp, err := c.postJSON(ctx, "chat", "/chat", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.parseError(resp)
	}

	var wire struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", fmt.Errorf("gateway: decode chat response: %w", err)
	}
	if strings.TrimSpace(wire.Response) == "" {
		return "", apiFailure(resp.StatusCode, "empty chat response")
	}
	return wire.Response, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// postJSON makes a JSON POST request.
func (c *Client) postJSON(ctx context.Context, op, path string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doWithRetry(ctx, op, req, body)
}

// postAudio makes a multipart POST request carrying the audio payload under
// the "audio" field. A non-empty conversationID is added as a form field.
func (c *Client) postAudio(ctx context.Context, op, path string, audio []byte, conversationID string) (*http.Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="audio"; filename="recording.wav"`)
	hdr.Set("Content-Type", "audio/wav")
	part, err := w.CreatePart(hdr)
	if err != nil {
		return nil, fmt.Errorf("gateway: build upload: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("gateway: build upload: %w", err)
	}
	if conversationID != "" {
		if err := w.WriteField("conversation_id", conversationID); err != nil {
			return nil, fmt.Errorf("gateway: build upload: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gateway: build upload: %w", err)
	}

	body := buf.Bytes()
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.doWithRetry(ctx, op, req, body)
}

// doWithRetry performs the request with retry logic.
func (c *Client) doWithRetry(ctx context.Context, op string, req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
			// Reset body for retry
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = &ConnectionError{Op: op, Err: err}
			c.logger.Warn("request failed, retrying",
				"op", op,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		// Check if retryable
		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = c.parseError(resp)
			resp.Body.Close()
			c.logger.Warn("retrying request",
				"op", op,
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response. It does not close the body.
func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var wire struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &wire) == nil {
		if wire.Error != "" {
			message = wire.Error
		} else if wire.Message != "" {
			message = wire.Message
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return &APIError{StatusCode: resp.StatusCode, Message: message}
}

// apiFailure reports a reply that carried success=false.
func apiFailure(status int, message string) error {
	if message == "" {
		message = "request failed"
	}
	return &APIError{StatusCode: status, Message: message, Code: "request_failed"}
}

// Verify Client implements Backend at compile time.
var _ Backend = (*Client)(nil)

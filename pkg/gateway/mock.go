package gateway

import (
	"context"
	"sync"
	"time"
)

// Mock implements Backend for testing.
type Mock struct {
	// HealthFunc is called when Health is invoked.
	HealthFunc func(ctx context.Context) (*HealthStatus, error)

	// VoiceCommandFunc is called when VoiceCommand is invoked.
	VoiceCommandFunc func(ctx context.Context, audio []byte) (*VoiceResult, error)

	// SpeechToTextFunc is called when SpeechToText is invoked.
	SpeechToTextFunc func(ctx context.Context, audio []byte) (string, error)

	// TextToSpeechFunc is called when TextToSpeech is invoked.
	TextToSpeechFunc func(ctx context.Context, text string) ([]byte, error)

	// ChatFunc is called when Chat is invoked.
	ChatFunc func(ctx context.Context, message string, history []Message) (string, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Time   time.Time
}

// NewMock creates a mock backend with sensible defaults.
func NewMock() *Mock {
	return &Mock{
		HealthFunc: func(ctx context.Context) (*HealthStatus, error) {
			return &HealthStatus{
				Status:    "ok",
				Timestamp: time.Now().Format(time.RFC3339),
			}, nil
		},
		VoiceCommandFunc: func(ctx context.Context, audio []byte) (*VoiceResult, error) {
			return &VoiceResult{Text: "Mock response"}, nil
		},
		SpeechToTextFunc: func(ctx context.Context, audio []byte) (string, error) {
			return "mock transcript", nil
		},
		TextToSpeechFunc: func(ctx context.Context, text string) ([]byte, error) {
			return []byte("mock-audio"), nil
		},
		ChatFunc: func(ctx context.Context, message string, history []Message) (string, error) {
			return "Mock response", nil
		},
	}
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) (*HealthStatus, error) {
	m.record("Health")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil, &ConnectionError{Op: "health", Err: context.DeadlineExceeded}
}

// VoiceCommand calls VoiceCommandFunc and records the call.
func (m *Mock) VoiceCommand(ctx context.Context, audio []byte) (*VoiceResult, error) {
	m.record("VoiceCommand")
	if m.VoiceCommandFunc != nil {
		return m.VoiceCommandFunc(ctx, audio)
	}
	return nil, apiFailure(0, "no mock handler")
}

// SpeechToText calls SpeechToTextFunc and records the call.
func (m *Mock) SpeechToText(ctx context.Context, audio []byte) (string, error) {
	m.record("SpeechToText")
	if m.SpeechToTextFunc != nil {
		return m.SpeechToTextFunc(ctx, audio)
	}
	return "", apiFailure(0, "no mock handler")
}

// TextToSpeech calls TextToSpeechFunc and records the call.
func (m *Mock) TextToSpeech(ctx context.Context, text string) ([]byte, error) {
	m.record("TextToSpeech")
	if m.TextToSpeechFunc != nil {
		return m.TextToSpeechFunc(ctx, text)
	}
	return nil, apiFailure(0, "no mock handler")
}

// Chat calls ChatFunc and records the call.
func (m *Mock) Chat(ctx context.Context, message string, history []Message) (string, error) {
	m.record("Chat")
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, message, history)
	}
	return "", apiFailure(0, "no mock handler")
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record("Close")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// record adds a call to the tracking list.
func (m *Mock) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method: method,
		Time:   time.Now(),
	})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock whose every operation fails with err.
func WithError(err error) *Mock {
	return &Mock{
		HealthFunc: func(ctx context.Context) (*HealthStatus, error) {
			return nil, err
		},
		VoiceCommandFunc: func(ctx context.Context, audio []byte) (*VoiceResult, error) {
			return nil, err
		},
		SpeechToTextFunc: func(ctx context.Context, audio []byte) (string, error) {
			return "", err
		},
		TextToSpeechFunc: func(ctx context.Context, text string) ([]byte, error) {
			return nil, err
		},
		ChatFunc: func(ctx context.Context, message string, history []Message) (string, error) {
			return "", err
		},
	}
}

// Verify Mock implements Backend at compile time.
var _ Backend = (*Mock)(nil)

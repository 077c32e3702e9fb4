// Package transcript maintains the ordered record of a conversation:
// an append-only message log with export/import, plus a SQLite archive
// for finished conversations.
package transcript

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single exchanged message.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Valid reports whether the message carries a known role, content, and
// a timestamp.
func (m Message) Valid() bool {
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return false
	}
	return m.Content != "" && !m.Timestamp.IsZero()
}

// Log is the append-only conversation record. It is written by the
// session controller and read by observers, so all access is guarded.
type Log struct {
	mu         sync.RWMutex
	entries    []Message
	maxHistory int
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithMaxHistory bounds the tail returned by History. The log itself
// keeps every entry.
func WithMaxHistory(n int) LogOption {
	return func(l *Log) {
		l.maxHistory = n
	}
}

// DefaultMaxHistory is the number of messages sent as dialogue context
// on remote calls.
const DefaultMaxHistory = 10

// NewLog creates an empty conversation log.
func NewLog(opts ...LogOption) *Log {
	l := &Log{maxHistory: DefaultMaxHistory}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddUserMessage appends a user message and returns it.
func (l *Log) AddUserMessage(text string) Message {
	return l.add(RoleUser, text)
}

// AddAssistantMessage appends an assistant message and returns it.
func (l *Log) AddAssistantMessage(text string) Message {
	return l.add(RoleAssistant, text)
}

func (l *Log) add(role, content string) Message {
	msg := Message{Role: role, Content: content, Timestamp: time.Now()}

	l.mu.Lock()
	l.entries = append(l.entries, msg)
	l.mu.Unlock()

	return msg
}

// Messages returns a copy of all entries in append order.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// History returns the dialogue context for remote calls. Once the log
// grows past twice the configured maximum, only the most recent
// maximum is sent; the log itself is never truncated.
func (l *Log) History() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := l.entries
	if l.maxHistory > 0 && len(entries) > l.maxHistory*2 {
		entries = entries[len(entries)-l.maxHistory:]
	}

	out := make([]Message, len(entries))
	copy(out, entries)
	return out
}

// Clear empties the log.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Export serializes the ordered message sequence as JSON.
func (l *Log) Export() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := l.entries
	if entries == nil {
		entries = []Message{}
	}
	return json.MarshalIndent(entries, "", "  ")
}

// Import replaces the log with the message sequence in data. Entries
// missing a role, content, or timestamp are discarded rather than
// failing the whole import. It returns how many entries were kept.
func (l *Log) Import(data []byte) (int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("transcript: parse import payload: %w", err)
	}

	kept := make([]Message, 0, len(raw))
	for _, entry := range raw {
		var msg Message
		if err := json.Unmarshal(entry, &msg); err != nil {
			continue
		}
		if !msg.Valid() {
			continue
		}
		kept = append(kept, msg)
	}

	l.mu.Lock()
	l.entries = kept
	l.mu.Unlock()

	return len(kept), nil
}

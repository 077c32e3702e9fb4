package transcript

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLog_AppendOrder(t *testing.T) {
	log := NewLog()

	log.AddUserMessage("turn on the lights")
	log.AddAssistantMessage("done")
	log.AddUserMessage("thanks")

	msgs := log.Messages()
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}

	wantRoles := []string{RoleUser, RoleAssistant, RoleUser}
	wantContent := []string{"turn on the lights", "done", "thanks"}
	for i, msg := range msgs {
		if msg.Role != wantRoles[i] {
			t.Errorf("Message %d: expected role %q, got %q", i, wantRoles[i], msg.Role)
		}
		if msg.Content != wantContent[i] {
			t.Errorf("Message %d: expected content %q, got %q", i, wantContent[i], msg.Content)
		}
		if msg.Timestamp.IsZero() {
			t.Errorf("Message %d: expected a timestamp", i)
		}
	}

	// Timestamps never go backwards.
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			t.Errorf("Message %d timestamp precedes message %d", i, i-1)
		}
	}
}

func TestLog_MessagesReturnsCopy(t *testing.T) {
	log := NewLog()
	log.AddUserMessage("hello")

	msgs := log.Messages()
	msgs[0].Content = "mutated"

	if got := log.Messages()[0].Content; got != "hello" {
		t.Errorf("Expected log to be unaffected by caller mutation, got %q", got)
	}
}

func TestLog_Clear(t *testing.T) {
	log := NewLog()
	log.AddUserMessage("hello")
	log.AddAssistantMessage("hi")

	log.Clear()

	if got := log.Len(); got != 0 {
		t.Errorf("Expected empty log after clear, got %d entries", got)
	}
}

func TestLog_History(t *testing.T) {
	log := NewLog(WithMaxHistory(3))

	for i := 0; i < 5; i++ {
		log.AddUserMessage("question")
		log.AddAssistantMessage("answer")
	}

	// 10 messages exceed maxHistory*2, so only the last 3 are sent.
	history := log.History()
	if len(history) != 3 {
		t.Fatalf("Expected 3 history messages, got %d", len(history))
	}
	if history[len(history)-1].Role != RoleAssistant {
		t.Error("Expected history to end with the latest message")
	}

	// The log itself keeps everything.
	if got := log.Len(); got != 10 {
		t.Errorf("Expected full log of 10 entries, got %d", got)
	}

	// Below the threshold the full sequence is sent.
	short := NewLog(WithMaxHistory(3))
	for i := 0; i < 6; i++ {
		short.AddUserMessage("question")
	}
	if got := len(short.History()); got != 6 {
		t.Errorf("Expected all 6 messages below threshold, got %d", got)
	}
}

func TestLog_ExportImportRoundTrip(t *testing.T) {
	log := NewLog()
	log.AddUserMessage("what time is it")
	log.AddAssistantMessage("half past nine")

	data, err := log.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	restored := NewLog()
	kept, err := restored.Import(data)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if kept != 2 {
		t.Errorf("Expected 2 imported entries, got %d", kept)
	}

	orig := log.Messages()
	got := restored.Messages()
	for i := range orig {
		if got[i].Role != orig[i].Role || got[i].Content != orig[i].Content {
			t.Errorf("Entry %d: expected %+v, got %+v", i, orig[i], got[i])
		}
	}
}

func TestLog_ImportDiscardsMalformed(t *testing.T) {
	payload := `[
		{"role":"user","content":"good","timestamp":"2026-01-02T15:04:05Z"},
		{"role":"user","content":"","timestamp":"2026-01-02T15:04:06Z"},
		{"role":"","content":"no role","timestamp":"2026-01-02T15:04:07Z"},
		{"role":"assistant","content":"missing timestamp"},
		{"role":"narrator","content":"bad role","timestamp":"2026-01-02T15:04:08Z"},
		"not an object",
		{"role":"assistant","content":"also good","timestamp":"2026-01-02T15:04:09Z"}
	]`

	log := NewLog()
	log.AddUserMessage("will be replaced")

	kept, err := log.Import([]byte(payload))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if kept != 2 {
		t.Errorf("Expected 2 kept entries, got %d", kept)
	}

	msgs := log.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Expected import to replace the log with 2 entries, got %d", len(msgs))
	}
	if msgs[0].Content != "good" || msgs[1].Content != "also good" {
		t.Errorf("Expected the two valid entries in order, got %+v", msgs)
	}
}

func TestLog_ImportRejectsNonArray(t *testing.T) {
	log := NewLog()
	if _, err := log.Import([]byte(`{"role":"user"}`)); err == nil {
		t.Error("Expected error for non-array payload")
	}
	if _, err := log.Import([]byte(`not json`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestLog_ExportEmpty(t *testing.T) {
	data, err := NewLog().Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var entries []Message
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("Expected a JSON array, got %q: %v", data, err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty array, got %d entries", len(entries))
	}
}

func TestMessage_Valid(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"user message", Message{RoleUser, "hi", now}, true},
		{"assistant message", Message{RoleAssistant, "hello", now}, true},
		{"unknown role", Message{"system", "hi", now}, false},
		{"empty content", Message{RoleUser, "", now}, false},
		{"zero timestamp", Message{RoleUser, "hi", time.Time{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

package hub

import (
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestHubLifecycle(t *testing.T) {
	h := New("test", nil)
	go h.Run()
	waitFor(t, time.Second, h.IsRunning)

	if got := h.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients, got %d", got)
	}
	if err := h.BroadcastJSON(map[string]string{"type": "state"}); err != nil {
		t.Errorf("BroadcastJSON failed: %v", err)
	}

	h.Stop()
	if h.IsRunning() {
		t.Error("expected stopped hub")
	}

	// Idempotent stop and post-stop broadcasts must not panic.
	h.Stop()
	h.Broadcast([]byte("late"))
}

func TestHubBroadcastJSONError(t *testing.T) {
	h := New("test", nil)
	if err := h.BroadcastJSON(make(chan int)); err == nil {
		t.Error("expected marshal error for unencodable value")
	}
}

package transcript

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := OpenStore(filepath.Join(t.TempDir(), "transcript.db"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_ArchiveAndLoad(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	msgs := []Message{
		{Role: RoleUser, Content: "what's the weather", Timestamp: started},
		{Role: RoleAssistant, Content: "sunny", Timestamp: started.Add(time.Second)},
	}

	if err := store.Archive(ctx, "conv-1", started, msgs); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	got, err := store.Load(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(got))
	}
	for i := range msgs {
		if got[i].Role != msgs[i].Role || got[i].Content != msgs[i].Content {
			t.Errorf("Message %d: expected %+v, got %+v", i, msgs[i], got[i])
		}
	}
}

func TestStore_ArchiveReplacesPrior(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	started := time.Now()

	first := []Message{{Role: RoleUser, Content: "one", Timestamp: started}}
	if err := store.Archive(ctx, "conv-1", started, first); err != nil {
		t.Fatalf("First archive failed: %v", err)
	}

	second := []Message{
		{Role: RoleUser, Content: "one", Timestamp: started},
		{Role: RoleAssistant, Content: "two", Timestamp: started.Add(time.Second)},
	}
	if err := store.Archive(ctx, "conv-1", started, second); err != nil {
		t.Fatalf("Second archive failed: %v", err)
	}

	got, err := store.Load(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected re-archive to replace, got %d messages", len(got))
	}
}

func TestStore_LoadUnknownConversation(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no messages, got %d", len(got))
	}
}

func TestStore_Conversations(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		msgs := []Message{{Role: RoleUser, Content: "hi", Timestamp: time.Now()}}
		if err := store.Archive(ctx, id, time.Now(), msgs); err != nil {
			t.Fatalf("Archive %s failed: %v", id, err)
		}
	}

	ids, err := store.Conversations(ctx)
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("Expected 2 conversations, got %d", len(ids))
	}
}

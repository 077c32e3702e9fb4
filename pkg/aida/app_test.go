package aida

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aidahome/go-aida/internal/config"
	"github.com/aidahome/go-aida/pkg/audioio"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.AudioBackend = "mock"
	cfg.WebAddr = "127.0.0.1:0"
	cfg.ArchivePath = filepath.Join(t.TempDir(), "conversations.db")
	return cfg
}

func TestAppLifecycle(t *testing.T) {
	app, err := New(testConfig(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := app.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer app.Shutdown()

	ctrl := app.Controller()
	if ctrl == nil {
		t.Fatal("expected a controller after Init")
	}
	st := ctrl.Status()
	if st.Room != "unknown" {
		t.Errorf("room = %q, want unknown", st.Room)
	}
	if st.WakeWord != "apartment" {
		t.Errorf("wake word = %q, want apartment", st.WakeWord)
	}
}

func TestAppInitPlaysStartupTone(t *testing.T) {
	cfg := testConfig(t)
	cfg.TestAudioOnStart = true

	app, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := app.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	app.Shutdown()
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Room = ""
	if _, err := New(cfg, nil); err == nil {
		t.Error("expected a validation error")
	}
}

func TestTestTone(t *testing.T) {
	tone := TestTone(16000)
	if !audioio.IsWAV(tone) {
		t.Error("expected a WAV payload")
	}
	// Half a second of mono 16-bit samples plus the header.
	want := 44 + 8000*2
	if len(tone) != want {
		t.Errorf("len = %d, want %d", len(tone), want)
	}
}

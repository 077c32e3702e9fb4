package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aidahome/go-aida/pkg/audioio"
)

func testAudioConfig() audioio.Config {
	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	return cfg
}

// speechChunk returns 30ms of loud audio (RMS 3000).
func speechChunk() audioio.AudioChunk {
	samples := make([]int16, 480)
	for i := range samples {
		samples[i] = 3000
	}
	return audioio.AudioChunk{Samples: samples, SampleRate: 16000, Channels: 1}
}

// silentChunk returns 30ms of silence.
func silentChunk() audioio.AudioChunk {
	return audioio.AudioChunk{Samples: make([]int16, 480), SampleRate: 16000, Channels: 1}
}

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

// slowStopSource delays driver finalization so tests can observe the
// stopping window.
type slowStopSource struct {
	*audioio.MockSource
	delay time.Duration
}

func (s *slowStopSource) Stop() error {
	time.Sleep(s.delay)
	return s.MockSource.Stop()
}

func TestRecorder_CaptureCycle(t *testing.T) {
	src := audioio.NewMockSource(testAudioConfig(), nil, audioio.WithManualFeed())
	rec, err := NewRecorder(src)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	defer rec.Close()

	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if rec.State() != StateRecording {
		t.Fatalf("Expected recording state, got %v", rec.State())
	}

	for i := 0; i < 3; i++ {
		if !src.Push(speechChunk()) {
			t.Fatalf("Push %d failed", i)
		}
	}
	waitFor(t, 2*time.Second, func() bool { return rec.ChunkCount() == 3 })

	if got := rec.Elapsed(); got != 90*time.Millisecond {
		t.Errorf("Expected 90ms elapsed, got %v", got)
	}

	artifact, err := rec.Stop().Wait(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if artifact == nil {
		t.Fatal("Expected an artifact")
	}

	if artifact.Chunks != 3 {
		t.Errorf("Expected 3 chunks, got %d", artifact.Chunks)
	}
	if artifact.Duration != 90*time.Millisecond {
		t.Errorf("Expected 90ms duration, got %v", artifact.Duration)
	}
	// 44-byte header plus 3 chunks of 480 samples.
	if wantLen := 44 + 3*480*2; len(artifact.WAV) != wantLen {
		t.Errorf("Expected %d WAV bytes, got %d", wantLen, len(artifact.WAV))
	}
	if artifact.ID == "" {
		t.Error("Expected a non-empty artifact ID")
	}
	if artifact.SampleRate != 16000 {
		t.Errorf("Expected 16000 sample rate, got %d", artifact.SampleRate)
	}

	if rec.State() != StateStopped {
		t.Errorf("Expected stopped state, got %v", rec.State())
	}
}

func TestRecorder_StartWhileActive(t *testing.T) {
	src := audioio.NewMockSource(testAudioConfig(), nil, audioio.WithManualFeed())
	rec, err := NewRecorder(src)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	defer rec.Close()

	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := rec.Start(ctx); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("Expected ErrAlreadyActive, got %v", err)
	}

	rec.Pause()
	if err := rec.Start(ctx); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("Expected ErrAlreadyActive while paused, got %v", err)
	}
}

func TestRecorder_DeviceUnavailable(t *testing.T) {
	src := audioio.NewMockSource(testAudioConfig(), nil)
	src.Close() // starting a closed source fails

	rec, err := NewRecorder(src)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	if err := rec.Start(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Expected ErrDeviceUnavailable, got %v", err)
	}
	if rec.State() != StateIdle {
		t.Errorf("Expected idle state after failed start, got %v", rec.State())
	}
}

func TestRecorder_StopWhenIdle(t *testing.T) {
	src := audioio.NewMockSource(testAudioConfig(), nil, audioio.WithManualFeed())
	rec, err := NewRecorder(src)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	defer rec.Close()

	artifact, err := rec.Stop().Wait(context.Background())
	if err != nil {
		t.Fatalf("Stop on idle recorder failed: %v", err)
	}
	if artifact != nil {
		t.Errorf("Expected no artifact, got %+v", artifact)
	}
}

func TestRecorder_StopAfterStopped(t *testing.T) {
	src := audioio.NewMockSource(testAudioConfig(), nil, audioio.WithManualFeed())
	rec, err := NewRecorder(src)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	defer rec.Close()

	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	src.Push(speechChunk())
	waitFor(t, 2*time.Second, func() bool { return rec.ChunkCount() == 1 })

	first, err := rec.Stop().Wait(ctx)
	if err != nil || first == nil {
		t.Fatalf("First stop failed: artifact=%v err=%v", first, err)
	}

	// A later stop is a no-op that returns the prior result.
	second, err := rec.Stop().Wait(ctx)
	if err != nil {
		t.Fatalf("Second stop failed: %v", err)
	}
	if second != first {
		t.Errorf("Expected the same artifact, got %p and %p", first, second)
	}
}

func TestRecorder_DoubleStopSharesResolution(t *testing.T) {
	mock := audioio.NewMockSource(testAudioConfig(), nil, audioio.WithManualFeed())
	src := &slowStopSource{MockSource: mock, delay: 50 * time.Millisecond}
	rec, err := NewRecorder(src)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	defer rec.Close()

	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	mock.Push(speechChunk())
	waitFor(t, 2*time.Second, func() bool { return rec.ChunkCount() == 1 })

	// Both stops land before the driver finalizes.
	f1 := rec.Stop()
	f2 := rec.Stop()
	if f1 != f2 {
		t.Error("Expected concurrent stops to share one future")
	}

	a1, err1 := f1.Wait(ctx)
	a2, err2 := f2.Wait(ctx)
	if err1 != nil || err2 != nil {
		t.Fatalf("Stops failed: %v, %v", err1, err2)
	}
	if a1 == nil || a1 != a2 {
		t.Errorf("Expected both stops to resolve with the same artifact, got %p and %p", a1, a2)
	}
}

func TestRecorder_ConcurrentStops(t *testing.T) {
	mock := audioio.NewMockSource(testAudioConfig(), nil, audioio.WithManualFeed())
	src := &slowStopSource{MockSource: mock, delay: 20 * time.Millisecond}
	rec, err := NewRecorder(src)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	defer rec.Close()

	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	mock.Push(speechChunk())
	waitFor(t, 2*time.Second, func() bool { return rec.ChunkCount() == 1 })

	const callers = 50
	artifacts := make([]*Artifact, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			artifacts[n], errs[n] = rec.Stop().Wait(ctx)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("Stop %d failed: %v", i, errs[i])
		}
		if artifacts[i] != artifacts[0] {
			t.Fatalf("Stop %d resolved a different artifact", i)
		}
	}
	if artifacts[0] == nil {
		t.Fatal("Expected a non-nil artifact")
	}
}

func TestRecorder_EmptyRecording(t *testing.T) {
	src := audioio.NewMockSource(testAudioConfig(), nil, audioio.WithManualFeed())
	rec, err := NewRecorder(src)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	defer rec.Close()

	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	artifact, err := rec.Stop().Wait(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if artifact != nil {
		t.Errorf("Expected no artifact for empty capture, got %+v", artifact)
	}
}

func TestRecorder_PauseResume(t *testing.T) {
	src := audioio.NewMockSource(testAudioConfig(), nil, audioio.WithManualFeed())
	rec, err := NewRecorder(src)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	defer rec.Close()

	ctx := context.Background()

	// Pause and resume outside a recording are no-ops.
	rec.Pause()
	rec.Resume()
	if rec.State() != StateIdle {
		t.Fatalf("Expected idle, got %v", rec.State())
	}

	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	src.Push(speechChunk())
	src.Push(speechChunk())
	waitFor(t, 2*time.Second, func() bool { return rec.ChunkCount() == 2 })

	rec.Pause()
	if rec.State() != StatePaused {
		t.Fatalf("Expected paused, got %v", rec.State())
	}

	// Chunks pushed while paused are discarded and elapsed holds still.
	src.Push(speechChunk())
	src.Push(speechChunk())
	time.Sleep(20 * time.Millisecond)
	if got := rec.ChunkCount(); got != 2 {
		t.Errorf("Expected 2 buffered chunks while paused, got %d", got)
	}
	if got := rec.Elapsed(); got != 60*time.Millisecond {
		t.Errorf("Expected elapsed 60ms while paused, got %v", got)
	}

	rec.Resume()
	src.Push(speechChunk())
	waitFor(t, 2*time.Second, func() bool { return rec.ChunkCount() == 3 })

	artifact, err := rec.Stop().Wait(ctx)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if artifact == nil || artifact.Chunks != 3 {
		t.Fatalf("Expected 3-chunk artifact, got %+v", artifact)
	}
}

func TestRecorder_ClearResolvesPendingStop(t *testing.T) {
	mock := audioio.NewMockSource(testAudioConfig(), nil, audioio.WithManualFeed())
	src := &slowStopSource{MockSource: mock, delay: 100 * time.Millisecond}
	rec, err := NewRecorder(src)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	defer rec.Close()

	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	mock.Push(speechChunk())
	waitFor(t, 2*time.Second, func() bool { return rec.ChunkCount() == 1 })

	f := rec.Stop()
	rec.Clear()

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	artifact, err := f.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Pending stop was not resolved by Clear: %v", err)
	}
	if artifact != nil {
		t.Errorf("Expected cleared stop to resolve without artifact, got %+v", artifact)
	}

	if rec.State() != StateIdle {
		t.Errorf("Expected idle after clear, got %v", rec.State())
	}
	if rec.Elapsed() != 0 || rec.ChunkCount() != 0 || rec.Result() != nil {
		t.Error("Expected clear to reset elapsed, chunks, and result")
	}
}

func TestRecorder_AutoStopAtMaxDuration(t *testing.T) {
	src := audioio.NewMockSource(testAudioConfig(), nil, audioio.WithManualFeed())
	rec, err := NewRecorder(src, WithMaxDuration(60*time.Millisecond))
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	defer rec.Close()

	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	src.Push(speechChunk())
	src.Push(speechChunk()) // reaches the 60ms limit

	waitFor(t, 2*time.Second, func() bool { return rec.State() == StateStopped })

	artifact := rec.Result()
	if artifact == nil {
		t.Fatal("Expected artifact from auto-stop")
	}
	if artifact.Chunks != 2 {
		t.Errorf("Expected 2 chunks, got %d", artifact.Chunks)
	}
	if artifact.Duration != 60*time.Millisecond {
		t.Errorf("Expected 60ms duration, got %v", artifact.Duration)
	}
}

func TestRecorder_CloseResolvesPending(t *testing.T) {
	mock := audioio.NewMockSource(testAudioConfig(), nil, audioio.WithManualFeed())
	src := &slowStopSource{MockSource: mock, delay: 100 * time.Millisecond}
	rec, err := NewRecorder(src)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	f := rec.Stop()

	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	artifact, err := f.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Pending stop was not resolved by Close: %v", err)
	}
	if artifact != nil {
		t.Errorf("Expected teardown to resolve without artifact, got %+v", artifact)
	}

	// The source must be released.
	if err := mock.Start(ctx); err == nil {
		t.Error("Expected the source to be closed")
	}

	if err := rec.Start(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
}

func TestRecorder_DriverDeath(t *testing.T) {
	src := audioio.NewMockSource(testAudioConfig(), nil, audioio.WithManualFeed())
	rec, err := NewRecorder(src)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	defer rec.Close()

	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	src.Push(speechChunk())
	waitFor(t, 2*time.Second, func() bool { return rec.ChunkCount() == 1 })

	// The driver dies underneath the recorder.
	src.Stop()

	waitFor(t, 2*time.Second, func() bool { return rec.State() == StateStopped })

	if _, err := rec.Stop().Wait(ctx); !errors.Is(err, ErrCaptureFailed) {
		t.Errorf("Expected ErrCaptureFailed, got %v", err)
	}
}

func TestRecorder_VADFiltering(t *testing.T) {
	t.Run("keeps speech and trailing context", func(t *testing.T) {
		src := audioio.NewMockSource(testAudioConfig(), nil, audioio.WithManualFeed())
		rec, err := NewRecorder(src, WithVAD(true), WithMinSpeechChunks(2))
		if err != nil {
			t.Fatalf("NewRecorder failed: %v", err)
		}
		defer rec.Close()

		ctx := context.Background()
		if err := rec.Start(ctx); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		src.Push(silentChunk())
		src.Push(speechChunk())
		src.Push(speechChunk())
		src.Push(silentChunk())
		waitFor(t, 2*time.Second, func() bool { return rec.ChunkCount() == 4 })

		artifact, err := rec.Stop().Wait(ctx)
		if err != nil {
			t.Fatalf("Stop failed: %v", err)
		}
		if artifact == nil {
			t.Fatal("Expected an artifact")
		}
		// Leading silence dropped, trailing silence kept.
		if artifact.Chunks != 3 {
			t.Errorf("Expected 3 filtered chunks, got %d", artifact.Chunks)
		}
	})

	t.Run("drops recording below speech minimum", func(t *testing.T) {
		src := audioio.NewMockSource(testAudioConfig(), nil, audioio.WithManualFeed())
		rec, err := NewRecorder(src, WithVAD(true), WithMinSpeechChunks(3))
		if err != nil {
			t.Fatalf("NewRecorder failed: %v", err)
		}
		defer rec.Close()

		ctx := context.Background()
		if err := rec.Start(ctx); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		src.Push(speechChunk())
		src.Push(silentChunk())
		waitFor(t, 2*time.Second, func() bool { return rec.ChunkCount() == 2 })

		artifact, err := rec.Stop().Wait(ctx)
		if err != nil {
			t.Fatalf("Stop failed: %v", err)
		}
		if artifact != nil {
			t.Errorf("Expected no artifact below speech minimum, got %+v", artifact)
		}
	})
}

func TestRecorder_RestartAfterStop(t *testing.T) {
	src := audioio.NewMockSource(testAudioConfig(), nil, audioio.WithManualFeed())
	rec, err := NewRecorder(src)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	defer rec.Close()

	ctx := context.Background()

	for round := 0; round < 3; round++ {
		if err := rec.Start(ctx); err != nil {
			t.Fatalf("Start round %d failed: %v", round, err)
		}
		src.Push(speechChunk())
		waitFor(t, 2*time.Second, func() bool { return rec.ChunkCount() == 1 })

		artifact, err := rec.Stop().Wait(ctx)
		if err != nil {
			t.Fatalf("Stop round %d failed: %v", round, err)
		}
		if artifact == nil || artifact.Chunks != 1 {
			t.Fatalf("Round %d: expected 1-chunk artifact, got %+v", round, artifact)
		}
	}
}

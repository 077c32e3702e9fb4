// Audio Test - exercises the capture and playback devices end to end:
// plays a test tone, records a few seconds from the microphone, and saves
// the recording as a WAV file for inspection.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aidahome/go-aida/pkg/aida"
	"github.com/aidahome/go-aida/pkg/audioio"
	"github.com/aidahome/go-aida/pkg/capture"
	"github.com/aidahome/go-aida/pkg/playback"
)

func main() {
	device := flag.String("device", "", "ALSA device name (empty for system default)")
	backend := flag.String("backend", "auto", "Audio backend: auto, alsa, mock")
	seconds := flag.Int("seconds", 5, "Recording length in seconds")
	outPath := flag.String("out", "/tmp/aida_audio_test.wav", "Recording output path")
	flag.Parse()

	fmt.Println("🎤 Aida Audio Test")
	fmt.Println("==================")

	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.Backend(*backend)
	cfg.Device = *device

	ctx := context.Background()

	// Playback leg first, so a broken output device is obvious before the
	// recording wait.
	sink, err := audioio.NewSink(cfg, nil)
	if err != nil {
		fmt.Printf("❌ Output device: %v\n", err)
		os.Exit(1)
	}
	player := playback.NewPlayer(sink, nil)
	fmt.Print("🔊 Playing test tone... ")
	if err := player.Play(ctx, aida.TestTone(cfg.SampleRate)); err != nil {
		fmt.Printf("❌ %v\n", err)
	} else {
		fmt.Println("✅")
	}
	player.Close()

	// Capture leg.
	source, err := audioio.NewSource(cfg, nil)
	if err != nil {
		fmt.Printf("❌ Input device: %v\n", err)
		os.Exit(1)
	}
	recorder, err := capture.NewRecorder(source)
	if err != nil {
		fmt.Printf("❌ Recorder: %v\n", err)
		os.Exit(1)
	}
	defer recorder.Close()

	fmt.Printf("🎙️  Recording %d seconds, speak now...\n", *seconds)
	if err := recorder.Start(ctx); err != nil {
		fmt.Printf("❌ Capture start: %v\n", err)
		os.Exit(1)
	}
	time.Sleep(time.Duration(*seconds) * time.Second)

	artifact, err := recorder.Stop().Wait(ctx)
	if err != nil {
		fmt.Printf("❌ Capture stop: %v\n", err)
		os.Exit(1)
	}
	if artifact == nil || len(artifact.WAV) == 0 {
		fmt.Println("❌ No audio captured - check the microphone")
		os.Exit(1)
	}

	fmt.Printf("📼 Captured %d chunks, %.2f seconds, %d bytes\n",
		artifact.Chunks, artifact.Duration.Seconds(), len(artifact.WAV))

	if err := os.WriteFile(*outPath, artifact.WAV, 0644); err != nil {
		fmt.Printf("❌ Write %s: %v\n", *outPath, err)
		os.Exit(1)
	}
	fmt.Printf("✅ Saved to %s\n", *outPath)
	fmt.Printf("   Play it with: aplay %s\n", *outPath)
}

// Aida room daemon: push-to-talk voice sessions against the room backend,
// with a local control API for the wall panel.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aidahome/go-aida/internal/config"
	"github.com/aidahome/go-aida/internal/log"
	"github.com/aidahome/go-aida/pkg/aida"
	"github.com/aidahome/go-aida/pkg/audioio"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to the JSON config file")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	testAudio := flag.Bool("test-audio", false, "Play a test tone on startup")
	listBackends := flag.Bool("list-backends", false, "List audio backends and exit")
	flag.Parse()

	if *listBackends {
		fmt.Println("Available audio backends:")
		for _, b := range audioio.AvailableBackends() {
			fmt.Printf("  %s\n", b)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config error: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	if *debug {
		cfg.LogLevel = "debug"
	}
	if *testAudio {
		cfg.TestAudioOnStart = true
	}

	if cfg.LogFile != "" {
		log.InitWithFile(cfg.LogLevel, cfg.LogFile)
	} else {
		log.Init(cfg.LogLevel)
	}

	app, err := aida.New(cfg, log.L())
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		app.Shutdown()
		fmt.Fprintf(os.Stderr, "❌ Initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer app.Shutdown()

	if err := app.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Runtime error: %v\n", err)
		os.Exit(1)
	}
}

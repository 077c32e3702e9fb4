// Gateway Check - verifies the room backend is reachable and, optionally,
// runs a chat and synthesis round trip against it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aidahome/go-aida/internal/config"
	"github.com/aidahome/go-aida/pkg/gateway"
)

func main() {
	backendURL := flag.String("backend", "", "Backend base URL (defaults to AIDA_BACKEND_URL or the config default)")
	room := flag.String("room", "check", "Conversation id to use")
	message := flag.String("message", "", "Send this text through /chat after the health check")
	synthesize := flag.Bool("tts", false, "Also synthesize the chat reply")
	flag.Parse()

	url := *backendURL
	if url == "" {
		url = os.Getenv("AIDA_BACKEND_URL")
	}
	if url == "" {
		url = config.DefaultBackendURL
	}

	fmt.Println("🔌 Aida Gateway Check")
	fmt.Println("=====================")
	fmt.Printf("Backend: %s\n\n", url)

	client, err := gateway.NewClient(
		gateway.WithBaseURL(url),
		gateway.WithRoom(*room),
	)
	if err != nil {
		fmt.Printf("❌ Client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Print("❤️  Health... ")
	start := time.Now()
	health, err := client.Health(ctx)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ %s (%.0f ms)\n", health.Status, float64(time.Since(start).Microseconds())/1000)

	if *message == "" {
		return
	}

	fmt.Printf("💬 Chat %q... ", *message)
	start = time.Now()
	reply, err := client.Chat(ctx, *message, nil)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ (%.0f ms)\n", float64(time.Since(start).Microseconds())/1000)
	fmt.Printf("   Reply: %s\n", reply)

	if !*synthesize {
		return
	}

	fmt.Print("🗣️  Synthesis... ")
	start = time.Now()
	audio, err := client.TextToSpeech(ctx, reply)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ %d bytes (%.0f ms)\n", len(audio), float64(time.Since(start).Microseconds())/1000)
}

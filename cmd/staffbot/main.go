package main

import (
	"log"

	"github.com/eventops/staffbot/internal/bot/app"
	"github.com/eventops/staffbot/internal/bot/platform/memory"
)

func main() {
	cfg := app.LoadConfig()

	// The in-memory gateway backs local development; a real chat transport
	// binding constructs the application with its own gateway and feeds
	// events into app.Dispatcher().
	application, err := app.New(cfg, memory.New())
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

package main

// Tails the session lifecycle events mirrored to NATS JetStream. Needs a
// reachable NATS server with JetStream enabled and a running docchat
// instance publishing events: go run ./cmd/events_tail

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"docchat-be/pkg/events"
	pktNats "docchat-be/pkg/nats"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	url := os.Getenv("NATS_URL")
	if url == "" {
		url = "nats://localhost:4222"
	}

	sub, err := pktNats.NewSubscriber(url)
	if err != nil {
		log.Fatalf("Error: Failed to connect to NATS at %s: %v", url, err)
	}
	defer sub.Close()

	color.Cyan("📡 Tailing session events from %s (Ctrl-C to stop)\n", url)

	err = sub.Subscribe("docchat.events.>", "docchat-events-tail", func(_ context.Context, evt events.Event) error {
		payload, _ := json.Marshal(evt.Payload())
		switch evt.EventType() {
		case events.TypeSessionReady:
			color.Green("%-18s %s", evt.EventType(), payload)
		case events.TypeSessionClosed:
			color.Yellow("%-18s %s", evt.EventType(), payload)
		case events.TypeIngestionFailed:
			color.Red("%-18s %s", evt.EventType(), payload)
		default:
			color.White("%-18s %s", evt.EventType(), payload)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error: Failed to subscribe: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-ctx.Done()
}

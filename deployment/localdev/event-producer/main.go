package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paymentstack/autopilot/internal/events"
)

func main() {
	var (
		redisURL = flag.String("redis-url", "redis://localhost:6379", "Redis connection URL")
		stream   = flag.String("stream", "autopilot:events", "Redis stream to publish to")
		rate     = flag.Duration("rate", 100*time.Millisecond, "Interval between events")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "Simulator seed")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publisher, err := events.NewPublisher(ctx, *redisURL, *stream)
	if err != nil {
		log.Printf("connect redis: %v", err)
		os.Exit(1)
	}
	defer publisher.Close()

	simulator := events.NewSimulator(*seed)
	ticker := time.NewTicker(*rate)
	defer ticker.Stop()

	log.Printf("publishing synthetic payment events to %s every %s", *stream, *rate)
	published := 0
	for {
		select {
		case <-ctx.Done():
			log.Printf("stopped after %d events", published)
			return
		case <-ticker.C:
			event, err := simulator.Next(ctx)
			if err != nil {
				return
			}
			if err := publisher.Publish(ctx, event); err != nil {
				log.Printf("publish failed: %v", err)
				continue
			}
			published++
		}
	}
}

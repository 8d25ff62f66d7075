package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"rollcall/internal/app"
	"rollcall/internal/config"
	"rollcall/internal/logging"
	"rollcall/internal/worker"
)

// Worker consumes the event queue: requested sweeps and lifecycle events.
func main() {
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})

	if cfg.QueueBackend == "memory" {
		log.Fatal().Msg("worker needs a shared queue; set QUEUE_BACKEND=redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	if a.Redis != nil && !a.Redis.Healthy(ctx) {
		log.Warn().Str("addr", cfg.RedisAddr).Msg("redis not reachable yet, consumer will keep retrying")
	}

	if err := worker.New(a.Queue, a.Sweeper).Run(ctx); err != nil {
		log.Error().Err(err).Msg("worker failed")
	}
}

package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"driveshare/internal/booking"
	"driveshare/internal/cache"
	"driveshare/internal/config"
	"driveshare/internal/database"
	"driveshare/internal/events"
	"driveshare/internal/log"
	"driveshare/internal/queue"
	"driveshare/internal/repository"
	"driveshare/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Worker.LogLevel).With().Str("process", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	client, err := cache.NewRedisClient(ctx, cfg.Redis, "driveshare-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	bookings := booking.NewService(
		repository.NewBookingRepository(dbPool),
		repository.NewCarRepository(dbPool),
		events.NewStreamPublisher(client, cfg.Streams.Events),
		booking.Options{
			MaxAttempts:  cfg.Booking.MaxAttempts,
			RetryBackoff: cfg.Booking.RetryBackoff,
			OpTimeout:    cfg.Booking.OpTimeout,
			ListLimit:    cfg.Booking.ListLimit,
		},
		logger.With().Str("component", "booking").Logger(),
	)

	consumers := []*queue.Consumer{
		queue.NewConsumer(
			client,
			cfg.Streams.Tasks,
			cfg.Worker.Group,
			cfg.Worker.Consumer,
			cfg.Worker.ClaimInterval,
			logger,
			tasks.NewProcessor(bookings, cfg.Booking.CompletionBatch, logger),
		),
		queue.NewConsumer(
			client,
			cfg.Streams.Events,
			cfg.Worker.Group,
			cfg.Worker.Consumer,
			cfg.Worker.ClaimInterval,
			logger,
			tasks.NewEventAuditor(logger),
		),
	}

	var wg sync.WaitGroup
	for _, c := range consumers {
		wg.Add(1)
		go func(c *queue.Consumer) {
			defer wg.Done()
			run(ctx, logger, c)
		}(c)
	}

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	wg.Wait()
	logger.Info().Msg("worker exited cleanly")
}

func run(ctx context.Context, logger zerolog.Logger, c *queue.Consumer) {
	if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
	}
}

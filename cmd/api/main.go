package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"driveshare/internal/booking"
	"driveshare/internal/cache"
	"driveshare/internal/config"
	"driveshare/internal/database"
	"driveshare/internal/events"
	"driveshare/internal/handlers"
	"driveshare/internal/jobs"
	"driveshare/internal/log"
	"driveshare/internal/middleware"
	"driveshare/internal/repository"
	"driveshare/internal/server"
	"driveshare/internal/service"
	"driveshare/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "")

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, dbPool); err != nil {
			logger.Fatal().Err(err).Msg("schema migration failed")
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis, "driveshare-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	users := repository.NewUserRepository(dbPool)
	sessions := repository.NewSessionRepository(dbPool)
	cars := repository.NewCarRepository(dbPool)
	bookingRepo := repository.NewBookingRepository(dbPool)

	bookings := booking.NewService(
		bookingRepo,
		cars,
		events.NewStreamPublisher(redisClient, cfg.Streams.Events),
		booking.Options{
			MaxAttempts:  cfg.Booking.MaxAttempts,
			RetryBackoff: cfg.Booking.RetryBackoff,
			OpTimeout:    cfg.Booking.OpTimeout,
			ListLimit:    cfg.Booking.ListLimit,
		},
		logger.With().Str("component", "booking").Logger(),
	)

	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Config:       cfg,
		Log:          logger,
		Auth:         service.NewAuthService(users, sessions, cfg.Security, logger),
		Documents:    service.NewDocumentService(objectStore, users, cfg.Storage.MaxDocumentBytes, logger),
		Cars:         service.NewCarService(cars, logger),
		Bookings:     bookings,
		Stats:        service.NewStatsService(repository.NewStatsRepository(dbPool)),
		Authenticate: middleware.Auth(cfg.Security.JWTAccessSecret, users, sessions, logger),
		Checks: map[string]handlers.HealthCheck{
			"database": dbPool.Ping,
			"cache":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			"storage":  objectStore.Ping,
		},
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(
		redisClient,
		cfg.Streams.Tasks,
		cfg.Booking.CompletionSchedule,
		cfg.Booking.CompletionBatch,
		logger,
	)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("scheduler jobs still running at shutdown")
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}

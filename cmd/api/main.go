package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"impactflow/api/internal/config"
	"impactflow/api/internal/handlers"
	"impactflow/api/internal/jobs"
	"impactflow/api/internal/log"
	"impactflow/api/internal/mail"
	"impactflow/api/internal/otp"
	"impactflow/api/internal/ratelimit"
	"impactflow/api/internal/server"
	"impactflow/api/internal/service"
	"impactflow/api/internal/storage"
	"impactflow/api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	fileStore, err := store.OpenFileStore(cfg.FileStore.Path, store.CollectionNames()...)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.FileStore.Path).Msg("failed to open file store")
	}

	mongoClient, err := store.Connect(ctx, cfg.Mongo)
	if err != nil {
		logger.Warn().Err(err).Msg("mongo unavailable at startup, serving from file store")
		mongoClient = nil
	}
	selector := store.NewSelector(mongoClient, cfg.Mongo.ProbeInterval, logger)

	var db *mongo.Database
	if mongoClient != nil {
		db = mongoClient.Database(cfg.Mongo.Database)
	}
	gateway := store.NewGateway(db, fileStore, selector)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = ratelimit.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, attempt limiting disabled")
			redisClient = nil
		}
	}
	limiter := ratelimit.New(redisClient, logger)

	var objectStore *storage.ObjectStore
	if cfg.Storage.Endpoint != "" {
		objectStore, err = storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Warn().Err(err).Msg("object store unavailable, image cleanup disabled")
			objectStore = nil
		} else if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure bucket failed")
		}
	}

	sender := mail.NewSender(cfg.SMTP, logger)
	dispatcher := otp.NewDispatcher(gateway.Users, sender, cfg.OTP.CodeTTL, cfg.SMTP.SendTimeout, logger)

	accounts := service.NewAccountService(gateway, dispatcher, limiter, objectStore, cfg.Security, cfg.OTP, logger)
	events := service.NewEventService(gateway, logger)
	tasks := service.NewTaskService(gateway, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg, gateway, selector, accounts, events, tasks, sender)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(gateway, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, selector, mongoClient, redisClient)
}

func waitForShutdown(
	logger zerolog.Logger,
	srv *server.HTTPServer,
	scheduler *jobs.Scheduler,
	selector *store.Selector,
	mongoClient *mongo.Client,
	redisClient *redis.Client,
) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	scheduler.Stop()
	selector.Stop()

	if mongoClient != nil {
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("mongo disconnect error")
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}

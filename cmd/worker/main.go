package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mailhookoss/delivery-engine/internal/config"
	"github.com/mailhookoss/delivery-engine/internal/infra/postgresql"
	"github.com/mailhookoss/delivery-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/mailhookoss/delivery-engine/internal/infra/redis"
	"github.com/mailhookoss/delivery-engine/internal/observability"
	"github.com/mailhookoss/delivery-engine/internal/queue"
	"github.com/mailhookoss/delivery-engine/internal/repository"
	"github.com/mailhookoss/delivery-engine/internal/sender"
	"github.com/mailhookoss/delivery-engine/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger("delivery-worker", cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer mq.Close()

	publisher := queue.NewRabbitMQPublisher(mq)
	consumer := queue.NewRabbitMQConsumer(mq, cfg.WorkerConcurrency, logger)

	webhookRepo := repository.NewGormWebhookRepo(db)
	deliveryRepo := repository.NewGormDeliveryRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter init failed", zap.Error(err))
	}

	retryableCodes, err := cfg.ParseRetryableStatusCodes()
	if err != nil {
		logger.Fatal("invalid retryable status codes", zap.Error(err))
	}
	classifier := sender.NewClassifier(retryableCodes)
	httpSender := sender.NewHTTPSender(time.Duration(cfg.DeliveryTimeoutSec) * time.Second)

	metrics := observability.NewMetrics()

	workerService, err := service.NewWorkerService(
		webhookRepo,
		deliveryRepo,
		attemptRepo,
		consumer,
		httpSender,
		classifier,
		rateLimiter,
		cfg.WorkerConcurrency,
		time.Duration(cfg.ClaimLeaseSec)*time.Second,
		logger,
	)
	if err != nil {
		logger.Fatal("worker service init failed", zap.Error(err))
	}
	workerService.SetMetrics(metrics)

	retryScanner, err := service.NewRetryScanner(
		deliveryRepo,
		publisher,
		time.Duration(cfg.RetryScanIntervalSec)*time.Second,
		cfg.RetryScanLimit,
		logger,
	)
	if err != nil {
		logger.Fatal("retry scanner init failed", zap.Error(err))
	}

	janitor, err := service.NewJanitor(
		webhookRepo,
		time.Duration(cfg.JanitorIntervalSec)*time.Second,
		logger,
	)
	if err != nil {
		logger.Fatal("janitor init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("delivery-engine worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Int("claimLeaseSec", cfg.ClaimLeaseSec),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return workerService.Start(groupCtx)
	})
	group.Go(func() error {
		return retryScanner.Start(groupCtx)
	})
	group.Go(func() error {
		return janitor.Start(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("worker terminated", zap.Error(err))
	}

	logger.Info("worker stopped")
}

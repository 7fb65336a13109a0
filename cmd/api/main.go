package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/mailhookoss/delivery-engine/internal/config"
	"github.com/mailhookoss/delivery-engine/internal/handler"
	"github.com/mailhookoss/delivery-engine/internal/infra/postgresql"
	"github.com/mailhookoss/delivery-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/mailhookoss/delivery-engine/internal/infra/redis"
	"github.com/mailhookoss/delivery-engine/internal/observability"
	"github.com/mailhookoss/delivery-engine/internal/queue"
	"github.com/mailhookoss/delivery-engine/internal/repository"
	"github.com/mailhookoss/delivery-engine/internal/service"
	"github.com/mailhookoss/delivery-engine/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger("delivery-api", cfg.LogLevel)
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

	webhookRepo := repository.NewGormWebhookRepo(db)
	deliveryRepo := repository.NewGormDeliveryRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)

	metrics := observability.NewMetrics()

	webhookService, err := service.NewWebhookService(webhookRepo, logger)
	if err != nil {
		logger.Fatal("webhook service init failed", zap.Error(err))
	}

	deliveryService, err := service.NewDeliveryService(webhookRepo, deliveryRepo, attemptRepo, publisher, logger)
	if err != nil {
		logger.Fatal("delivery service init failed", zap.Error(err))
	}
	deliveryService.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterWebhookRoutes(app, webhookService); err != nil {
		logger.Fatal("webhook routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterEventRoutes(app, deliveryService); err != nil {
		logger.Fatal("event routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterDeliveryRoutes(app, deliveryService); err != nil {
		logger.Fatal("delivery routes registration failed", zap.Error(err))
	}

	go func() {
		logger.Info("delivery-engine api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			logger.Fatal("api listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down api")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}
}

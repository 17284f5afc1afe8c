package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/autobizz/autobet/internal/adapters/cache"
	"github.com/autobizz/autobet/internal/adapters/database"
	"github.com/autobizz/autobet/internal/adapters/events"
	"github.com/autobizz/autobet/internal/adapters/push"
	"github.com/autobizz/autobet/internal/config"
	"github.com/autobizz/autobet/internal/domain/auctions"
	"github.com/autobizz/autobet/internal/domain/notifications"
	pkgdb "github.com/autobizz/autobet/pkg/database"
	pkgevents "github.com/autobizz/autobet/pkg/events"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Unable to parse database config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	amqpConn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	publisher, err := events.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	auctionRepo := database.NewPostgresAuctionRepository(pool)
	notificationRepo := database.NewPostgresNotificationRepository(pool)
	deviceRepo := database.NewPostgresDeviceRepository(pool)
	audienceRepo := database.NewPostgresAudienceRepository(pool)
	listingCache := cache.NewRedisListingCache(rdb, logger, auctions.ListingCacheKey)

	auctionService := auctions.NewService(auctionRepo, outboxRepo, txManager, listingCache)
	notificationService := notifications.NewService(notificationRepo, deviceRepo)
	pusher := push.NewExpoClient(cfg.ExpoPushURL, logger)

	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		publisher,
		txManager,
		cfg.OutboxBatchSize,
		cfg.OutboxPollInterval,
		events.ExchangeName,
		logger,
	)
	consumer := events.NewNotificationConsumer(amqpConn, notificationService, audienceRepo, pusher, logger)
	closer := events.NewAuctionCloser(auctionService, cfg.CloserInterval, cfg.OutboxBatchSize, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting outbox relay")
		return relay.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting notification consumer")
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting auction closer")
		return closer.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/autobizz/autobet/internal/adapters/api"
	"github.com/autobizz/autobet/internal/adapters/cache"
	"github.com/autobizz/autobet/internal/adapters/database"
	"github.com/autobizz/autobet/internal/config"
	"github.com/autobizz/autobet/internal/domain/auctions"
	"github.com/autobizz/autobet/internal/domain/bids"
	"github.com/autobizz/autobet/internal/domain/notifications"
	"github.com/autobizz/autobet/internal/domain/users"
	"github.com/autobizz/autobet/pkg/auth"
	pkgdb "github.com/autobizz/autobet/pkg/database"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("Migrations applied")

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

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// The cache degrades to misses, so the API can come up without Redis.
		logger.Warn("Redis connection failed", "error", err)
	} else {
		logger.Info("Redis Connected")
	}

	signer, err := auth.NewSigner([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	if err != nil {
		logger.Error("Failed to create token signer", "error", err)
		os.Exit(1)
	}

	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	userRepo := database.NewPostgresUserRepository(pool)
	tokenRepo := database.NewPostgresTokenRepository(pool)
	auditRepo := database.NewPostgresAuditRepository(pool)
	auctionRepo := database.NewPostgresAuctionRepository(pool)
	bidRepo := database.NewPostgresBidRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	notificationRepo := database.NewPostgresNotificationRepository(pool)
	deviceRepo := database.NewPostgresDeviceRepository(pool)
	listingCache := cache.NewRedisListingCache(rdb, logger, auctions.ListingCacheKey)

	userService := users.NewService(userRepo, tokenRepo, auditRepo, signer, txManager)
	auctionService := auctions.NewService(auctionRepo, outboxRepo, txManager, listingCache)
	bidService := bids.NewService(txManager, bidRepo, auctionRepo, outboxRepo, listingCache)
	notificationService := notifications.NewService(notificationRepo, deviceRepo)

	router := api.NewRouter(api.RouterConfig{
		Signer:              signer,
		Statuses:            userRepo,
		AuthHandler:         api.NewAuthHandler(userService),
		AuctionHandler:      api.NewAuctionHandler(auctionService, bidService),
		AdminHandler:        api.NewAdminHandler(userService),
		NotificationHandler: api.NewNotificationHandler(notificationService),
		Logger:              logger,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting API", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payout-service/config"
	"payout-service/internal/cache"
	"payout-service/internal/handler"
	appmiddleware "payout-service/internal/middleware"
	"payout-service/internal/repository"
	"payout-service/internal/router"
	"payout-service/internal/usecase"
	"payout-service/pkg/client"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("starting payout service")

	// Load configuration
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Server.Env),
		zap.String("port", cfg.Server.Port))

	// Connect to database
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.ConnString())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	if err := repository.Migrate(context.Background(), dbPool); err != nil {
		logger.Fatal("failed to apply database schema", zap.Error(err))
	}

	logger.Info("connected to database",
		zap.String("database", cfg.Database.DBName))

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Initialize repositories
	txRepo := repository.NewTransactionRepository(dbPool)
	userRepo := repository.NewUserRepository(dbPool)

	// Initialize idempotency cache
	idempotencyCache := cache.NewIdempotencyCache(rdb, cfg.Withdrawal.CacheTTL, logger)

	// Initialize external clients
	walletClient := client.NewWalletClient(cfg.Clients, cfg.Resilience, logger)
	paymentsClient := client.NewPaymentsClient(cfg.Clients, cfg.Resilience, logger)
	accountsClient := client.NewAccountsClient(cfg.Clients, cfg.Resilience, logger)

	// Initialize usecases
	withdrawUC := usecase.NewWithdrawUsecase(
		txRepo,
		walletClient,
		paymentsClient,
		accountsClient,
		idempotencyCache,
		cfg.Withdrawal,
		logger,
	)

	authUC := usecase.NewAuthUsecase(userRepo, cfg.Auth, logger)

	// Start the background worker pool
	dispatcher := usecase.NewDispatcher(
		withdrawUC,
		idempotencyCache,
		cfg.Dispatcher.Workers,
		cfg.Dispatcher.QueueSize,
		logger,
	)

	// Initialize handlers
	withdrawalHandler := handler.NewWithdrawalHandler(withdrawUC, idempotencyCache, dispatcher, logger)
	authHandler := handler.NewAuthHandler(authUC, logger)

	rateLimiter := appmiddleware.NewRateLimiter(cfg.RateLimit, logger)

	// Setup routes
	r := router.SetupRoutes(withdrawalHandler, authHandler, rateLimiter, cfg.Auth, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	logger.Info("payout service started successfully",
		zap.String("port", cfg.Server.Port),
		zap.String("environment", cfg.Server.Env))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown: stop accepting requests, then drain the worker pool
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	dispatcher.Close()

	logger.Info("server stopped")
}

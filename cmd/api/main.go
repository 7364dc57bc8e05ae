package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"spendlens/internal/config"
	"spendlens/internal/database"
	"spendlens/internal/logger"
	"spendlens/internal/middleware"
	"spendlens/internal/server"
	"spendlens/internal/validator"

	_ "spendlens/internal/docs" // Import swagger docs
)

// @title           SpendLens API
// @version         1.0
// @description     SpendLens tracks expenses and income, aggregates them into spending analytics, and pushes fresh analytics to connected clients over WebSocket.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey AdminKey
// @in header
// @name X-API-Key

const shutdownTimeout = 15 * time.Second

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig(appConfig)
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnw("database close failed", "error", err)
		}
	}()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	store, closeStore := rateLimitStore(appConfig)
	defer closeStore()

	app := server.New(server.Options{
		Config:         appConfig,
		DB:             dbManager.DB(),
		RateLimitStore: store,
		RequestLogging: true,
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting SpendLens backend server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("http shutdown incomplete", "error", err)
	}
	// Hijacked websocket connections are not tracked by Shutdown.
	app.Shutdown()

	log.Info("Server stopped")
	return nil
}

// rateLimitStore prefers Redis so limits hold across instances, and falls
// back to process memory when REDIS_URL is unset or unreachable.
func rateLimitStore(cfg *config.Config) (middleware.RateLimitStore, func()) {
	log := logger.Get()

	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := middleware.NewRedisStore(ctx, cfg.RedisURL)
		if err == nil {
			log.Info("Rate limiting backed by Redis")
			return store, func() { _ = store.Close() }
		}
		log.Warnw("Redis unavailable, using in-memory rate limiting", "error", err)
	}

	store := middleware.NewMemoryStore(5 * time.Minute)
	return store, store.Close
}

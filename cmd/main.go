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

	"github.com/mcygoogle/demo-for-google-identity/internal/application"
	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/config"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/database"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/repository"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/seed"
	httprouter "github.com/mcygoogle/demo-for-google-identity/internal/interfaces/http"
	"go.uber.org/zap"
)

// @title Google Identity Demo Authorization Server
// @version 1.0
// @description OAuth2 authorization server for Google account linking
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Initialize logger
	logger, err := newLogger(os.Getenv("ENVIRONMENT"))
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(logger)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx := context.Background()
	checks := map[string]httprouter.HealthCheck{}

	// Client registry
	var clients domain.ClientRegistry
	switch cfg.ClientStore {
	case config.ClientStorePostgres:
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL(), logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := db.RunMigrations(database.DefaultMigrationsDir); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		checks["database"] = db.Ping
		clients = repository.NewPostgresClientRepository(db, logger)
	default:
		clients = repository.NewInMemoryClientRepository(logger)
	}

	seedClients, err := seed.Load(cfg.ClientSeedFile)
	if err != nil {
		logger.Fatal("Failed to load client seed", zap.Error(err))
	}
	if err := seed.Apply(ctx, clients, seedClients, logger); err != nil {
		logger.Fatal("Failed to seed clients", zap.Error(err))
	}

	// Authorization code store
	var codes domain.CodeStore
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()

		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		codes = repository.NewRedisCodeRepository(redisClient, repository.DefaultCodeKeyPrefix, cfg.AuthCodeTTL, logger)
	} else {
		codes = repository.NewInMemoryCodeRepository(cfg.AuthCodeTTL, logger)
	}

	// Token service
	tokens, err := application.NewInMemoryTokenService(cfg.TokenServiceConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize token service", zap.Error(err))
	}
	defer tokens.Stop()

	// Create router
	router, err := httprouter.NewRouter(httprouter.Dependencies{
		Clients: clients,
		Codes:   codes,
		Tokens:  tokens,
		Checks:  checks,
	}, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create router", zap.Error(err))
	}
	defer router.Close()

	// Start server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", zap.Int("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("Server exited properly")
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

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

	"github.com/joho/godotenv"

	"github.com/EgehanKilicarslan/tokenguard/internal/api"
	"github.com/EgehanKilicarslan/tokenguard/internal/clock"
	"github.com/EgehanKilicarslan/tokenguard/internal/config"
	"github.com/EgehanKilicarslan/tokenguard/internal/database"
	"github.com/EgehanKilicarslan/tokenguard/internal/database/repository"
	"github.com/EgehanKilicarslan/tokenguard/internal/database/service"
	"github.com/EgehanKilicarslan/tokenguard/internal/handler"
	"github.com/EgehanKilicarslan/tokenguard/internal/logger"
	"github.com/EgehanKilicarslan/tokenguard/internal/middleware"
	"github.com/EgehanKilicarslan/tokenguard/internal/token"
	"github.com/EgehanKilicarslan/tokenguard/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// 1. Config (a local .env is optional)
	envErr := godotenv.Load()
	cfg := config.LoadConfig()

	// 2. Logger
	appLogger := logger.New(cfg)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		appLogger.Warn("⚠️ Failed to read .env file", "error", envErr)
	}

	if err := cfg.Validate(); err != nil {
		appLogger.Error("❌ Invalid configuration", "error", err)
		os.Exit(1)
	}

	appLogger.Info("🚀 [Go] Starting tokenguard...",
		"environment", cfg.AppEnv,
		"access_ttl", cfg.AccessTokenTTL(),
		"refresh_ttl", cfg.RefreshTokenTTL(),
	)

	clk := clock.NewRealClock()

	// 3. Connect to Database
	db, err := database.ConnectDatabase(cfg, appLogger)
	if err != nil {
		appLogger.Error("❌ Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			appLogger.Error("❌ Failed to close database", "error", err)
		}
	}()

	// 4. Connect to Redis (revocation store)
	redisClient, err := database.NewRedisClient(cfg, clk, appLogger)
	if err != nil {
		appLogger.Error("❌ Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// 5. Token codec
	codec, err := token.NewCodec(token.Config{
		AccessSecret:  []byte(cfg.AccessTokenSecret),
		RefreshSecret: []byte(cfg.RefreshTokenSecret),
		AccessTTL:     cfg.AccessTokenTTL(),
		RefreshTTL:    cfg.RefreshTokenTTL(),
	}, clk)
	if err != nil {
		appLogger.Error("❌ Failed to create token codec", "error", err)
		os.Exit(1)
	}

	// 6. Initialize Repositories & Services
	userRepo := repository.NewUserRepository(db, cfg.DBQueryTimeout())
	refreshTokenRepo := repository.NewRefreshTokenRepository(db, clk, cfg.DBQueryTimeout())
	authService := service.NewAuthService(userRepo, refreshTokenRepo, redisClient, codec, cfg, appLogger)

	// 7. Background expiry sweep
	pool := worker.NewPool(appLogger)
	pool.Every("refresh-token-sweep", cfg.SweepInterval(), func(ctx context.Context) error {
		_, err := authService.SweepExpiredTokens(ctx)
		return err
	})

	// 8. Initialize Handlers, Middleware & Router
	authHandler := handler.NewAuthHandler(authService, appLogger)
	userHandler := handler.NewUserHandler(authService, appLogger)
	authMiddleware := middleware.NewAuthMiddleware(authService, appLogger)

	r := api.SetupRouter(cfg.CORSAllowedOrigins, authHandler, userHandler, authMiddleware)

	// 9. Start HTTP Server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ApiServicePort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("🌍 [Go] HTTP Server running on port...", "port", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("❌ HTTP Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// 10. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("🛑 [Go] Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("❌ HTTP Server forced to shutdown", "error", err)
	}
	pool.Shutdown(shutdownTimeout)

	appLogger.Info("✅ [Go] Server stopped gracefully")
}

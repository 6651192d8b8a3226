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

	"github.com/boddenberg/hecu-bank-go/internal/bootstrap"
	"github.com/boddenberg/hecu-bank-go/internal/config"
	"github.com/boddenberg/hecu-bank-go/internal/handler"
	"github.com/boddenberg/hecu-bank-go/internal/infra/observability"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Duration("jwt_user_ttl", cfg.JWTUserTTL),
		zap.Duration("jwt_admin_ttl", cfg.JWTAdminTTL),
		zap.String("btc_price_usd", cfg.BTCPriceUSD.String()),
		zap.Strings("cors_origins", cfg.AllowedOrigins),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "hecu-bank")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Store & services ---
	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	app, err := bootstrap.New(startCtx, cfg, logger)
	cancelStart()
	if err != nil {
		logger.Fatal("failed to start services", zap.Error(err))
	}

	// --- Router ---
	router := handler.NewRouter(app.Bank, app.Auth, app.Metrics, cfg.AllowedOrigins, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}
	if err := app.Close(ctx); err != nil {
		logger.Error("closing store", zap.Error(err))
	}

	logger.Info("server stopped")
}

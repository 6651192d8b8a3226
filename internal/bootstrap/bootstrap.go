// Package bootstrap wires configuration into the store backend and the
// services shared by cmd/bank and cmd/repair.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/boddenberg/hecu-bank-go/internal/config"
	"github.com/boddenberg/hecu-bank-go/internal/domain"
	"github.com/boddenberg/hecu-bank-go/internal/infra/cache"
	"github.com/boddenberg/hecu-bank-go/internal/infra/memstore"
	"github.com/boddenberg/hecu-bank-go/internal/infra/mongostore"
	"github.com/boddenberg/hecu-bank-go/internal/infra/observability"
	"github.com/boddenberg/hecu-bank-go/internal/infra/resilience"
	"github.com/boddenberg/hecu-bank-go/internal/infra/supabase"
	"github.com/boddenberg/hecu-bank-go/internal/port"
	"github.com/boddenberg/hecu-bank-go/internal/service"

	"go.uber.org/zap"
)

// App holds the wired services.
type App struct {
	Store   port.UserStore
	Bank    *service.BankingService
	Auth    *service.AuthService
	Metrics *observability.Metrics

	closers []func(context.Context) error
}

// New opens the configured store and builds the services on top of it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{Metrics: observability.NewMetrics()}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.Store = store
	if closeStore != nil {
		app.closers = append(app.closers, closeStore)
	}

	feeds := cache.New[[]domain.TransactionRecord](cfg.CacheTTL)
	app.closers = append(app.closers, func(context.Context) error {
		feeds.Close()
		return nil
	})

	app.Bank = service.NewBankingService(store, feeds, service.Config{
		RoutingNumber:  cfg.RoutingNumber,
		BTCPriceUSD:    cfg.BTCPriceUSD,
		MaxConcurrency: cfg.MaxConcurrency,
	}, app.Metrics, logger)

	app.Auth = service.NewAuthService(app.Bank, service.AuthConfig{
		JWTSecret: cfg.JWTSecret,
		UserTTL:   cfg.JWTUserTTL,
		AdminTTL:  cfg.JWTAdminTTL,
		AdminPIN:  cfg.AdminPIN,
	}, logger)

	if cfg.AdminPIN == "" {
		logger.Warn("ADMIN_PIN not set, admin console disabled")
	}
	return app, nil
}

// Close releases the store connection and background workers.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.UserStore, func(context.Context) error, error) {
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	switch cfg.StoreBackend {
	case config.BackendMongo:
		logger.Info("using MongoDB as user store", zap.String("database", cfg.MongoDatabase))
		store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, resilienceCfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open mongo store: %w", err)
		}
		return store, store.Close, nil

	case config.BackendSupabase:
		logger.Info("using Supabase as user store", zap.String("supabase_url", cfg.SupabaseURL))
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		client := supabase.NewClient(httpClient, cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseSvcKey, nil, resilienceCfg, logger)
		return client, nil, nil

	default:
		logger.Warn("using in-memory user store, data is lost on restart")
		return memstore.New(), nil, nil
	}
}

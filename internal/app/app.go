// Package app initializes and holds long-lived application services,
// acting as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/openlocal/bizdir-ingest/internal/config"
	"github.com/openlocal/bizdir-ingest/internal/database"
	"github.com/openlocal/bizdir-ingest/internal/directory"
	"github.com/openlocal/bizdir-ingest/internal/logging"
	"github.com/openlocal/bizdir-ingest/internal/metrics"
	"github.com/openlocal/bizdir-ingest/internal/provider"
	"github.com/openlocal/bizdir-ingest/internal/queue"
)

// App holds the shared services for one pipeline invocation.
// It is initialized once at startup; any failure here is a setup
// error and the process exits non-zero before touching the queue.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	pool     *pgxpool.Pool
	queue    queue.Store
	dir      directory.Store
	provider *provider.Client
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Queue returns the work queue store.
func (a *App) Queue() queue.Store { return a.queue }

// Directory returns the directory store.
func (a *App) Directory() directory.Store { return a.dir }

// Provider returns the external API client.
func (a *App) Provider() *provider.Client { return a.provider }

// New builds the App: config, logger, database pool, schema, stores
// and provider client. Fail-fast on any missing piece.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	}

	queueStore, err := queue.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init queue store: %w", err)
	}
	dirStore, err := directory.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init directory store: %w", err)
	}

	metrics.Init()
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			logger.Info("starting metrics listener", zap.String("addr", cfg.Metrics.Addr))
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	logger.Info("application services initialized")
	return &App{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		queue:    queueStore,
		dir:      dirStore,
		provider: provider.New(cfg.Provider, logger),
	}, nil
}

// Close shuts down the shared services.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	a.pool.Close()
	// Best effort: logging itself may be the failing piece.
	_ = a.logger.Sync()
}

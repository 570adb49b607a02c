// Package server provides dependency wiring and the application lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sellerhub/ranking-crawler/internal/api"
	"github.com/sellerhub/ranking-crawler/internal/clock/system"
	"github.com/sellerhub/ranking-crawler/internal/config"
	"github.com/sellerhub/ranking-crawler/internal/export"
	"github.com/sellerhub/ranking-crawler/internal/logging"
	"github.com/sellerhub/ranking-crawler/internal/metrics"
	"github.com/sellerhub/ranking-crawler/internal/reconcile"
	"github.com/sellerhub/ranking-crawler/internal/scheduler"
	"github.com/sellerhub/ranking-crawler/internal/scrape"
	"github.com/sellerhub/ranking-crawler/internal/service"
	"github.com/sellerhub/ranking-crawler/internal/store/postgres"
)

// App contains the application's long-lived dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *postgres.Store
	scraper   *scrape.Scraper
	apiServer *api.Server
	scheduler *scheduler.Scheduler
}

// Build creates the application's dependencies, failing fast when any
// critical service cannot be initialized.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	logger.Info("building application dependencies", zap.Int("port", cfg.Server.Port))

	metrics.Init()

	store, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("schema init failed: %w", err)
	}
	logger.Info("postgres store initialized")

	scraper, err := scrape.New(scrape.Config{
		UserAgent:         cfg.Scrape.UserAgent,
		MaxItems:          cfg.Scrape.MaxItems,
		SettleDelay:       cfg.Scrape.SettleDelay(),
		NavigationTimeout: cfg.Scrape.NavTimeout(),
	}, logger.Named("scrape"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("scraper init failed: %w", err)
	}

	clock := system.New()
	reconciler := reconcile.New(store, clock, cfg.Retention.Horizon(), logger.Named("reconcile"))
	exporter := export.New(cfg.Export.ThumbnailTimeout(), logger.Named("export"))

	rankings := service.New(
		service.Config{
			Categories:    cfg.Scrape.Categories,
			ScrapeTimeout: cfg.Scrape.RunTimeout(),
		},
		scraper,
		reconciler,
		store,
		exporter,
		clock,
		logger.Named("service"),
	)

	app := &App{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		scraper: scraper,
		apiServer: api.NewServer(rankings, api.Options{
			AuthEnabled:    cfg.Auth.Enabled,
			APIKey:         cfg.Auth.APIKey,
			RequestTimeout: cfg.Scrape.RunTimeout() + 30*time.Second,
		}, logger.Named("api")),
	}

	if cfg.Schedule.Enabled {
		app.scheduler = scheduler.New(cfg.Schedule.Spec, rankings, logger.Named("scheduler"))
	}

	return app, nil
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.scheduler != nil {
		if err := a.scheduler.Start(); err != nil {
			return fmt.Errorf("scheduler start failed: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close()
}

// Close gracefully shuts down the application's services.
func (a *App) Close() error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	a.scraper.Close()
	a.store.Close()
	if err := a.logger.Sync(); err != nil {
		// Best effort; stderr may already be gone.
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

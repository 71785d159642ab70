// Package cli holds the start-up steps shared by every binary: environment,
// logging, configuration and wiring of the tracker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dietledger/internal/backend"
	"dietledger/internal/catalog"
	"dietledger/internal/config"
	"dietledger/internal/foods"
	"dietledger/internal/history"
	"dietledger/internal/log"
	"dietledger/internal/recommend"
	"dietledger/internal/services"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, _ := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig exits the process when the environment is invalid.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

// LoadCatalog returns the built-in catalog unless CATALOG_FILE overrides it.
func LoadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogFile == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(cfg.CatalogFile)
}

// App is everything a binary needs to serve the ledger.
type App struct {
	Catalog *catalog.Catalog
	Store   *backend.BackendResult
	Tracker *services.Tracker

	closers []func() error
}

// Close releases the store and the recommendation client.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Build opens the store and assembles the tracker. publisher may be nil.
func Build(ctx context.Context, cfg *config.Config, logger *log.Logger, publisher services.Publisher) (*App, error) {
	cat, err := LoadCatalog(cfg)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg, cat)
	if err != nil {
		return nil, err
	}
	app := &App{Catalog: cat, Store: res}
	if res.Cleanup != nil {
		app.closers = append(app.closers, res.Cleanup)
	}

	foodCatalog, err := foods.LoadDir(cfg.FoodsDir)
	if err != nil {
		logger.Warn("Food catalog unavailable, continuing without it", log.FieldError, err)
		foodCatalog = foods.New(nil)
	}

	var gen recommend.Generator
	if cfg.GeminiAPIKey != "" {
		gemini, err := recommend.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("Gemini client unavailable, recommendations disabled", log.FieldError, err)
		} else {
			gen = gemini
			app.closers = append(app.closers, gemini.Close)
		}
	}

	loc := cfg.Location()
	months := history.New(res.Store, cat,
		history.WithTTL(cfg.MonthCacheTTL),
		history.WithCacheSize(cfg.MonthCacheSize),
		history.WithRetry(history.RetryPolicy{Attempts: cfg.FetchAttempts, BaseDelay: cfg.FetchBaseDelay}),
		history.WithLocation(loc),
		history.WithLogger(logger))

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithLocation(loc),
		services.WithSchedule(cfg.Schedule()),
		services.WithAggregator(months),
		services.WithFoods(foodCatalog),
		services.WithRecommender(recommend.New(gen, foodCatalog, cat, logger)),
	}
	if publisher != nil {
		opts = append(opts, services.WithPublisher(publisher))
	}
	app.Tracker = services.NewTracker(res.Store, cat, opts...)
	return app, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs with a deadline of timeout before the context is cancelled.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()
	}()

	return ctx
}

// Package app initializes and holds the long-lived services every command
// shares: configuration, the logger, and the report store.
package app

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/StevenGall/delavan-lake-fishing-reports/internal/config"
	"github.com/StevenGall/delavan-lake-fishing-reports/internal/logging"
	"github.com/StevenGall/delavan-lake-fishing-reports/internal/store"
)

// App is the dependency container built once at startup and handed to
// whichever subcommand runs.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	store  *store.Store
}

// NewApp loads configuration, opens the database, and builds the logger.
// cfgFile may be empty, in which case defaults plus environment apply.
func NewApp(ctx context.Context, cfgFile string) (*App, error) {
	// A .env file is optional; credentials usually arrive through it in
	// development and through real environment variables in deployment.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	st, err := store.Open(ctx, cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	logger.Info("application services initialized", zap.String("db", cfg.DB.Path))
	return &App{cfg: cfg, logger: logger, store: st}, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the report store.
func (a *App) Store() *store.Store {
	return a.store
}

// Close shuts the container's services down.
func (a *App) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("error closing database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

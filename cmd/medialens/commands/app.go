package commands

import (
	"context"
	"fmt"

	"github.com/medialens/medialens/config"
	"github.com/medialens/medialens/data"
	"github.com/medialens/medialens/logging/logger"
	"github.com/medialens/medialens/pipeline/capability"
	"github.com/medialens/medialens/storage"
	"github.com/medialens/medialens/version"
)

// env holds the shared dependencies every daemon command starts from,
// built with manual dependency injection.
type env struct {
	config *config.Config
	logger *logger.Logger
	data   *data.Data
	store  storage.Interface
	table  *capability.Table
}

// bootstrap loads configuration and constructs the shared layers. The
// returned cleanup closes them in reverse order.
func bootstrap(configFile string) (*env, func(), error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	loggerCleanup, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	log := logger.StdLogger()
	log.SetVersion(version.GetVersionInfo().Version)

	dataLayer, err := data.New(cfg.Data, log)
	if err != nil {
		loggerCleanup()
		return nil, nil, fmt.Errorf("failed to create data layer: %w", err)
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		if cerr := dataLayer.Close(); cerr != nil {
			log.Error(context.Background(), "failed to close data layer", "error", cerr)
		}
		loggerCleanup()
		return nil, nil, fmt.Errorf("failed to create storage: %w", err)
	}

	// Hot reload: follow logger level changes without a restart.
	config.Watch(func(next *config.Config) {
		log.AdjustLevel(next.Logger.Level)
		log.Info(context.Background(), "configuration reloaded", "logger_level", next.Logger.Level)
	})

	cleanup := func() {
		if err := dataLayer.Close(); err != nil {
			log.Error(context.Background(), "failed to close data layer", "error", err)
		}
		loggerCleanup()
	}

	return &env{
		config: cfg,
		logger: log,
		data:   dataLayer,
		store:  store,
		table:  capability.FromConfig(cfg.Pipeline),
	}, cleanup, nil
}

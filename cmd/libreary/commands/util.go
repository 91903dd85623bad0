package commands

import (
	"context"
	"fmt"

	"github.com/libreary/libreary/internal/logger"
	"github.com/libreary/libreary/pkg/archive"
	"github.com/libreary/libreary/pkg/config"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// openArchive loads configuration, initializes logging, and opens the
// archive. Callers own the returned archive and must Close it.
func openArchive(ctx context.Context) (*archive.Archive, *config.Config, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, nil, err
	}
	if err := InitLogger(cfg); err != nil {
		return nil, nil, err
	}
	a, err := archive.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

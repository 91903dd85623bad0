package config

import (
	"strings"
	"time"

	"github.com/libreary/libreary/pkg/catalog"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
// Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	cfg.Catalog.ApplyDefaults()
	applySchedulerDefaults(&cfg.Scheduler)
	applyMetricsDefaults(&cfg.Metrics)
	applyAPIDefaults(&cfg.API)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	for i := range cfg.Adapters {
		if cfg.Adapters[i].DropboxDir == "" {
			cfg.Adapters[i].DropboxDir = cfg.DropboxDir
		}
		if cfg.Adapters[i].OutputDir == "" {
			cfg.Adapters[i].OutputDir = cfg.OutputDir
		}
	}

	for i := range cfg.Levels {
		if cfg.Levels[i].Frequency == 0 {
			cfg.Levels[i].Frequency = 24 * time.Hour
		}
		if cfg.Levels[i].Copies == 0 {
			cfg.Levels[i].Copies = 1
		}
	}
}

// applyLoggingDefaults sets logging defaults and normalizes the level.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applySchedulerDefaults sets integrity check loop defaults.
func applySchedulerDefaults(cfg *SchedulerConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyAPIDefaults sets HTTP API server defaults.
func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
}

// GetDefaultConfig returns a Config with all default values applied. Useful
// for generating sample configuration files and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Catalog: catalog.Config{
			Type: catalog.DatabaseTypeSQLite,
		},
		CanonicalAdapter: "local1",
		DropboxDir:       "/var/lib/libreary/dropbox",
		OutputDir:        "/var/lib/libreary/output",
		Adapters:         defaultAdapters(),
		Levels:           defaultLevels(),
	}

	ApplyDefaults(cfg)
	return cfg
}

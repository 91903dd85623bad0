// Package config loads and validates the archive configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (LIBREARY_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/catalog"
)

// Config represents the archive configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Catalog configures the metadata catalog database (SQLite or PostgreSQL).
	Catalog catalog.Config `mapstructure:"catalog" yaml:"catalog"`

	// CanonicalAdapter is the ID of the adapter that holds canonical copies.
	// It must be listed in Adapters and must be filesystem-backed so every
	// other adapter can replicate from it.
	CanonicalAdapter string `mapstructure:"canonical_adapter" validate:"required" yaml:"canonical_adapter"`

	// DropboxDir is the staging directory objects are ingested from.
	DropboxDir string `mapstructure:"dropbox_dir" validate:"required" yaml:"dropbox_dir"`

	// OutputDir is where retrieved objects are materialized.
	OutputDir string `mapstructure:"output_dir" validate:"required" yaml:"output_dir"`

	// Adapters declares the storage adapter instances. Adapters not listed
	// here can still be resolved from per-adapter files under
	// <config_dir>/adapters/<id>.yaml.
	Adapters []adapter.Config `mapstructure:"adapters" yaml:"adapters"`

	// Levels seeds the durability levels registered by "libreary init".
	Levels []LevelConfig `mapstructure:"levels" yaml:"levels,omitempty"`

	// Scheduler configures the background integrity check loop.
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`

	// Metrics configures the Prometheus metrics endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API configures the HTTP API server.
	API APIConfig `mapstructure:"api" yaml:"api"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// configDir remembers where the config file was loaded from, so
	// per-adapter configuration files can be resolved relative to it.
	configDir string
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// LevelConfig seeds one durability level.
type LevelConfig struct {
	// Name is the level identifier resources reference.
	Name string `mapstructure:"name" validate:"required" yaml:"name"`

	// Frequency is the advisory check interval for resources at this level.
	Frequency time.Duration `mapstructure:"frequency" yaml:"frequency"`

	// Copies is the copy count per listed adapter.
	Copies int `mapstructure:"copies" yaml:"copies"`

	// Adapters lists the adapter instances this level replicates to.
	Adapters []LevelAdapterRef `mapstructure:"adapters" validate:"required,min=1,dive" yaml:"adapters"`
}

// LevelAdapterRef names one adapter inside a level definition.
type LevelAdapterRef struct {
	ID   string `mapstructure:"id" validate:"required" yaml:"id"`
	Type string `mapstructure:"type" validate:"required" yaml:"type"`
}

// SchedulerConfig configures the background integrity check loop.
type SchedulerConfig struct {
	// Enabled controls whether the serve command runs periodic checks.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval is the pause between full sweeps.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`

	// Workers is the number of resources checked concurrently per sweep.
	Workers int `mapstructure:"workers" validate:"omitempty,min=1" yaml:"workers"`

	// Deep re-hashes backend bytes instead of trusting recorded checksums.
	Deep bool `mapstructure:"deep" yaml:"deep"`
}

// MetricsConfig configures the Prometheus metrics endpoint. When Enabled is
// false no metrics are collected.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// APIConfig configures the HTTP API server.
type APIConfig struct {
	// Host is the listen address. Empty means all interfaces.
	Host string `mapstructure:"host" yaml:"host,omitempty"`

	// Port is the listen port.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// RequestTimeout bounds each request via middleware.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// Load loads configuration from file, environment, and defaults.
//
// An empty configPath uses the default location
// ($XDG_CONFIG_HOME/libreary/config.yaml).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		cfg.configDir = getConfigDir()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg.configDir = filepath.Dir(v.ConfigFileUsed())
	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the file is
// missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  libreary init\n\n"+
				"Or specify a custom config file:\n"+
				"  libreary <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  libreary init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600 because adapter blocks may contain credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variable and config file handling.
// Environment variables use the LIBREARY_ prefix, e.g. LIBREARY_LOGGING_LEVEL.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("LIBREARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file is
// not an error; defaults apply.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns the combined decode hook for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook converts strings like "30s", "5m", "1h" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory, following XDG conventions.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "libreary")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "libreary")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}

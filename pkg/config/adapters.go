package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/libreary/libreary/pkg/adapter"
)

// ConfigForAdapter resolves the configuration of one adapter instance.
//
// Adapters declared in the main config file win. Otherwise a per-adapter file
// <config_dir>/adapters/<id>.yaml is consulted, which lets deployments keep
// credentials for individual backends out of the main file.
func (c *Config) ConfigForAdapter(id, adapterType string) (adapter.Config, error) {
	for _, ac := range c.Adapters {
		if ac.ID == id {
			if adapterType != "" && ac.Type != adapterType {
				return adapter.Config{}, adapter.NewConfigurationError(
					fmt.Sprintf("adapter %q is declared as type %q, not %q", id, ac.Type, adapterType))
			}
			return ac, nil
		}
	}

	ac, err := c.loadAdapterFile(id)
	if err != nil {
		return adapter.Config{}, err
	}
	if adapterType != "" && ac.Type != adapterType {
		return adapter.Config{}, adapter.NewConfigurationError(
			fmt.Sprintf("adapter %q is declared as type %q, not %q", id, ac.Type, adapterType))
	}
	return ac, nil
}

// loadAdapterFile reads <config_dir>/adapters/<id>.yaml.
func (c *Config) loadAdapterFile(id string) (adapter.Config, error) {
	dir := c.configDir
	if dir == "" {
		dir = getConfigDir()
	}
	path := filepath.Join(dir, "adapters", id+".yaml")
	if _, err := os.Stat(path); err != nil {
		return adapter.Config{}, adapter.NewConfigurationError(
			fmt.Sprintf("adapter %q is not declared in the config file and %s does not exist", id, path))
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return adapter.Config{}, adapter.NewConfigurationError(
			fmt.Sprintf("failed to read adapter file %s: %v", path, err))
	}

	var ac adapter.Config
	if err := v.Unmarshal(&ac); err != nil {
		return adapter.Config{}, adapter.NewConfigurationError(
			fmt.Sprintf("failed to parse adapter file %s: %v", path, err))
	}
	if ac.ID == "" {
		ac.ID = id
	}
	if ac.DropboxDir == "" {
		ac.DropboxDir = c.DropboxDir
	}
	if ac.OutputDir == "" {
		ac.OutputDir = c.OutputDir
	}
	return ac, nil
}

// defaultAdapters returns the adapter seed used by generated sample configs:
// a single local adapter that also holds canonical copies.
func defaultAdapters() []adapter.Config {
	return []adapter.Config{
		{
			ID:         "local1",
			Type:       "local",
			StorageDir: "/var/lib/libreary/storage",
		},
	}
}

// defaultLevels returns the level seed used by generated sample configs.
func defaultLevels() []LevelConfig {
	return []LevelConfig{
		{
			Name:      "low",
			Frequency: 7 * 24 * time.Hour,
			Copies:    1,
			Adapters: []LevelAdapterRef{
				{ID: "local1", Type: "local"},
			},
		},
	}
}

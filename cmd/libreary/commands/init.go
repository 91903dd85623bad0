package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/libreary/libreary/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample LIBREary configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/libreary/config.yaml. Use --config to specify a custom path.

Examples:
  # Initialize with default location
  libreary init

  # Initialize with custom path
  libreary init --config /etc/libreary/config.yaml

  # Force overwrite existing config
  libreary init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	cfg := config.GetDefaultConfig()
	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration to declare your storage adapters and levels")
	fmt.Println("  2. Ingest a file with: libreary ingest <file> --level LOW")
	fmt.Println("  3. Or start the API server with: libreary serve")
	return nil
}

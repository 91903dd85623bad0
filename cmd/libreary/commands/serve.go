package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/libreary/libreary/internal/logger"
	"github.com/libreary/libreary/pkg/api"
	"github.com/libreary/libreary/pkg/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the archive API server",
	Long: `Start the REST API server and, when enabled in configuration, the
periodic integrity scheduler. The server shuts down gracefully on SIGINT or
SIGTERM.

Examples:
  # Start with the default config location
  libreary serve

  # Start with a custom config
  libreary serve --config /etc/libreary/config.yaml

  # Override the log level for one run
  LIBREARY_LOGGING_LEVEL=DEBUG libreary serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, cfg, err := openArchive(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("Archive opened",
		"canonical_adapter", cfg.CanonicalAdapter,
		"adapters", len(cfg.Adapters))

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(a, cfg.Scheduler)
		sched.Start(ctx)
	}

	server := api.NewServer(cfg.API, a)
	err = server.Start(ctx)

	if sched != nil {
		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		sched.Stop(timeout)
	}

	if err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}

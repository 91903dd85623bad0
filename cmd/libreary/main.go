package main

import (
	"fmt"
	"os"

	"github.com/libreary/libreary/cmd/libreary/commands"

	// Register storage backends
	_ "github.com/libreary/libreary/pkg/adapter/drive"
	_ "github.com/libreary/libreary/pkg/adapter/local"
	_ "github.com/libreary/libreary/pkg/adapter/memory"
	_ "github.com/libreary/libreary/pkg/adapter/s3"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

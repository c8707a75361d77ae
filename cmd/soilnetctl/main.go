package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"soilnet-ml/internal/cli"
	"soilnet-ml/internal/config"
	"soilnet-ml/internal/logging"
)

var version = "dev"
var appName = "soilnetctl"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if !cfg.SQLiteEnabled() {
		fmt.Fprintln(os.Stderr, "config error: SQLITE_PATH is required")
		os.Exit(1)
	}

	logger := logging.New(cfg, version, appName, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.RootCommand(cfg, logger).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"soilnet-ml/internal/app"
	"soilnet-ml/internal/config"
	"soilnet-ml/internal/logging"
)

var version = "dev"
var appName = "soilnet-train"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, version, appName, os.Stdout)
	slog.SetDefault(logger)

	slog.Info("starting",
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
		"log_level", cfg.LogLevel.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := app.Train(ctx, cfg, logger)
	if err != nil {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}

	slog.Info("done",
		"run_id", res.RunID,
		"rmse_mean", res.Metrics.RMSEMean,
		"rmse_std", res.Metrics.RMSEStd,
		"samples", res.Metrics.TrainingSamples,
	)
}

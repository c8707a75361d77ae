// Command predict scores one reading given as seven positional values:
//
//	predict humidity_percent raw_value rssi voltage sampling_interval hour day_of_week
//
// Stdout carries exactly one JSON object; logs go to stderr.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"soilnet-ml/internal/app"
	"soilnet-ml/internal/config"
	"soilnet-ml/internal/logging"
	"soilnet-ml/internal/predictor"
)

var version = "dev"
var appName = "soilnet-predict"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		os.Exit(predictor.Write(os.Stdout, predictor.Failure(fmt.Errorf("config: %w", err))))
	}

	logger := logging.New(cfg, version, appName, os.Stderr)
	slog.SetDefault(logger)

	code := predictor.Run(os.Args[1:], app.ModelLoader(cfg), os.Stdout)
	slog.Debug("prediction finished", "model", cfg.ModelPath, "exit_code", code)
	os.Exit(code)
}

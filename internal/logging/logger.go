package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"soilnet-ml/internal/config"
)

// New builds the process logger. The predictor passes os.Stderr because its
// stdout carries the JSON result.
func New(cfg config.Config, version string, appName string, w io.Writer) *slog.Logger {
	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}

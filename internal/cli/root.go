// Package cli implements the soilnetctl maintenance commands.
package cli

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/spf13/cobra"

	"soilnet-ml/internal/app"
	"soilnet-ml/internal/config"
	"soilnet-ml/internal/db"
)

// RootCommand creates the soilnetctl command tree.
func RootCommand(cfg config.Config, logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "soilnetctl",
		Short:         "Maintain the SoilNet reading store and training history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		migrateCommand(cfg, logger),
		importCommand(cfg, logger),
		exportCommand(cfg, logger),
		runsCommand(cfg, logger),
	)
	return root
}

// withStore opens the migrated store for the duration of fn.
func withStore(ctx context.Context, cfg config.Config, logger *slog.Logger, fn func(*sql.DB) error) error {
	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(store); err != nil {
			logger.Error("db close", "error", err)
		}
	}()
	return fn(store)
}

package cli

import (
	"bytes"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"soilnet-ml/internal/config"
	"soilnet-ml/internal/repository"
	"soilnet-ml/internal/source"
)

func importCommand(cfg config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "import <readings.csv>",
		Short: "Load a CSV export of readings into the SQLite store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := source.NewCSV(args[0]).Load(cmd.Context())
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), cfg, logger, func(store *sql.DB) error {
				n, err := repository.NewReadingRepository(store).InsertReadings(cmd.Context(), table)
				if err != nil {
					return fmt.Errorf("import %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d readings\n", n)
				return nil
			})
		},
	}
}

func exportCommand(cfg config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "export <readings.csv|->",
		Short: "Write the stored readings as CSV for the trainer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), cfg, logger, func(store *sql.DB) error {
				table, err := repository.NewReadingRepository(store).ListReadings(cmd.Context())
				if err != nil {
					return fmt.Errorf("list readings: %w", err)
				}

				var buf bytes.Buffer
				if err := source.WriteCSV(&buf, table); err != nil {
					return fmt.Errorf("encode csv: %w", err)
				}
				if args[0] == "-" {
					_, err := cmd.OutOrStdout().Write(buf.Bytes())
					return err
				}
				if err := os.WriteFile(args[0], buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("export: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d readings to %s\n", len(table), args[0])
				return nil
			})
		},
	}
}

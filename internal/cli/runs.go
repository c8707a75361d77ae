package cli

import (
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"soilnet-ml/internal/config"
	"soilnet-ml/internal/repository"
)

func runsCommand(cfg config.Config, logger *slog.Logger) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Print training history as JSON lines, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), cfg, logger, func(store *sql.DB) error {
				runs, err := repository.NewRunRepository(store).ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, r := range runs {
					if err := enc.Encode(r); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to print (0 for all)")
	return cmd
}

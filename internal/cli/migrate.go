package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"soilnet-ml/internal/config"
	"soilnet-ml/internal/db"
	"soilnet-ml/internal/db/migrate"
)

func migrateCommand(cfg config.Config, logger *slog.Logger) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(conn) }()

			out := cmd.OutOrStdout()
			if status {
				all, err := migrate.Status(cmd.Context(), conn)
				if err != nil {
					return err
				}
				for _, m := range all {
					state := "pending"
					if m.Applied {
						state = "applied"
					}
					fmt.Fprintf(out, "%s_%s\t%s\n", m.Version, m.Name, state)
				}
				return nil
			}

			n, err := migrate.Run(cmd.Context(), conn, logger)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(out, "%d migrations applied\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "list migrations without applying them")
	return cmd
}

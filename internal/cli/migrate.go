package cli

import (
	"github.com/spf13/cobra"

	"nnoitra-backend/internal/database"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(cmd.Context(), a.cfg.Database, a.log)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Migrations applied (%s).\n", db.Driver())
			return nil
		},
	}
}

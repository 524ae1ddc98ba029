package main

import (
	"github.com/spf13/cobra"

	"github.com/phrazzld/scry-decks/internal/platform/postgres"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{postgres.MigrateUp, postgres.MigrateDown, postgres.MigrateStatus, postgres.MigrateVersion},
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := postgres.Open(cmd.Context(), c.cfg.Database, c.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return postgres.Migrate(db, args[0], c.logger)
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/phrazzld/scry-decks/internal/ankiimport"
)

func newImportCmd(c *cli) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "import --user <uuid> <archive.apkg>",
		Short: "Import a collection export for a user and print the summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := uuid.Parse(owner)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			archive, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read archive: %w", err)
			}

			app, err := newApplication(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.close(); err != nil {
					c.logger.Error("failed to release resources", slog.String("error", err.Error()))
				}
			}()

			summary, importErr := app.importer.Import(cmd.Context(), ownerID, archive)
			if summary != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(summary); err != nil {
					return err
				}
			}
			if importErr != nil {
				return fmt.Errorf("import failed (%s): %w", ankiimport.Category(importErr), importErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&owner, "user", "u", "", "ID of the user who will own the imported cards")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

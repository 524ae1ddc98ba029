package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/phrazzld/scry-decks/internal/config"
	"github.com/phrazzld/scry-decks/internal/platform/logger"
)

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger

	loadConfig func(path string) (*config.Config, error)
}

// newRootCmd builds the command tree. loadConfig reads the configuration
// named by --config; main passes config.LoadFile.
func newRootCmd(loadConfig func(path string) (*config.Config, error)) *cobra.Command {
	c := &cli{loadConfig: loadConfig}

	root := &cobra.Command{
		Use:           "scry-decks",
		Short:         "Spaced repetition flashcard service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig(c.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log, err := logger.SetupWithWriter(cfg.Server, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}
			c.cfg = cfg
			c.logger = log
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "",
		"path to a config file (default: ./config.yaml if present)")

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newImportCmd(c),
		newTokenCmd(c),
	)
	return root
}

package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/phrazzld/scry-decks/internal/service/auth"
)

// newTokenCmd signs a bearer token with the configured secret. Production
// tokens come from the identity provider; this is for local testing.
func newTokenCmd(c *cli) *cobra.Command {
	var (
		user     string
		lifetime time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a development bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID := uuid.New()
			if user != "" {
				parsed, err := uuid.Parse(user)
				if err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
				userID = parsed
			}

			jwtService, err := auth.NewJWTService(c.cfg.Auth)
			if err != nil {
				return err
			}
			token, err := jwtService.GenerateToken(cmd.Context(), userID, lifetime)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user ID to embed (default: a new random ID)")
	cmd.Flags().DurationVar(&lifetime, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

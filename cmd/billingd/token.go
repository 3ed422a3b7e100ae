package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"saas-billing/internal/infra/api"
)

// newTokenCmd mints bearer tokens for local testing. Production tokens come
// from the identity service that shares the JWT secret.
func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token (developer mode only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.dev {
				return errors.New("token requires --dev")
			}
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			tok, err := api.NewAuthenticator(cfg.Auth.JWTSecret).Mint(args[0], role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role claim, e.g. admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

package main

import (
	"github.com/spf13/cobra"

	"saas-billing/internal/infra/db/postgres"
)

func newSeedPlansCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-plans",
		Short: "Insert or refresh the default pricing plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			pool, err := postgres.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := postgres.SeedPlans(cmd.Context(), postgres.NewPostgresPlanRepo(pool), postgres.DefaultPlans())
			if err != nil {
				return err
			}
			log.Info().Int("plans", n).Msg("pricing plans seeded")
			return nil
		},
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"saas-billing/internal/config"
	"saas-billing/internal/infra/logging"
)

// Set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

type rootOptions struct {
	configPath string
	dev        bool
}

// load reads the config and builds the process logger.
func (o *rootOptions) load() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.Load(o.configPath, o.dev)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	return cfg, logger, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "billingd",
		Short:         "Subscription billing service backed by Razorpay",
		Version:       Version + " (" + Commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config file (environment overrides apply)")
	root.PersistentFlags().BoolVar(&opts.dev, "dev", false, "developer mode: console logs, unredacted PII")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newSeedPlansCmd(opts))
	root.AddCommand(newTokenCmd(opts))
	root.AddCommand(newSignCmd(opts))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

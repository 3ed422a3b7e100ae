package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"saas-billing/internal/domain/ports/adapter"
	"saas-billing/internal/infra/adapters/payment"
	"saas-billing/internal/infra/api"
	"saas-billing/internal/infra/db/postgres"
	"saas-billing/internal/infra/metrics"
	red "saas-billing/internal/infra/redis"
	"saas-billing/internal/infra/sched"
	"saas-billing/internal/infra/worker"
	"saas-billing/internal/usecase"
)

type serveOptions struct {
	migrate     bool
	noopGateway bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the stale order reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply the schema before serving")
	cmd.Flags().BoolVar(&opts.noopGateway, "noop-gateway", false, "use the in-memory gateway that captures every order (developer mode only)")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions, opts *serveOptions) error {
	cfg, log, err := root.load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(Version, Commit)

	// ---- Postgres ----
	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	if opts.migrate {
		applied, err := postgres.Migrate(ctx, pool)
		if err != nil {
			return err
		}
		log.Info().Strs("applied", applied).Msg("schema up to date")
	}

	// ---- Redis ----
	// Without Redis the cache and webhook de-dup live in process memory and
	// the reconciler runs unlocked; fine for a single instance.
	var (
		cache  red.RedisClient
		locker red.Locker
	)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		cache = rc
		locker = red.NewLocker(rc)
	} else {
		log.Warn().Msg("redis.url not set; using in-process cache")
		cache = red.NewMemoryClient()
	}

	// ---- Gateway ----
	var gw adapter.PaymentGateway
	if opts.noopGateway {
		if !cfg.Runtime.Dev {
			return errors.New("--noop-gateway requires --dev")
		}
		noop := payment.NewNoopPaymentGateway()
		noop.AutoCapture = true
		gw = noop
		log.Warn().Msg("using noop payment gateway; orders settle immediately, see `billingd sign`")
	} else {
		rz, err := payment.NewRazorpayGateway(cfg.Payment.Razorpay, log)
		if err != nil {
			return err
		}
		gw = rz
	}

	// ---- Repositories ----
	tm := postgres.NewTxManager(pool)
	txRepo := postgres.NewTransactionRepo(pool)
	subRepo := postgres.NewSubscriptionRepo(pool)
	userRepo := postgres.NewUserBillingRepo(pool)
	planRepo := postgres.NewPlanRepoCacheDecorator(postgres.NewPostgresPlanRepo(pool), cache, cfg.Redis.TTL, log)

	// ---- Use cases ----
	subUC := usecase.NewSubscriptionUseCase(subRepo, txRepo, userRepo, tm, log)
	orderUC := usecase.NewOrderUseCase(planRepo, txRepo, gw, cfg.Payment.Currency, cfg.Payment.ReceiptPrefix, log)
	verifyUC := usecase.NewVerifyUseCase(txRepo, subUC, subRepo, gw, tm, cfg.Payment.Razorpay.KeySecret, log, cfg.Runtime.Dev)
	webhookUC := usecase.NewWebhookUseCase(txRepo, subUC, red.NewWebhookEventStore(cache, red.DefaultWebhookEventTTL), tm, cfg.Payment.Razorpay.WebhookSecret, log)
	ledgerUC := usecase.NewLedgerUseCase(txRepo, subRepo, log)
	reconcileUC := usecase.NewReconcileUseCase(txRepo, gw, log)

	srv := api.NewServer(api.Deps{
		Orders:        orderUC,
		Verify:        verifyUC,
		Subscriptions: subUC,
		Ledger:        ledgerUC,
		Webhooks:      webhookUC,
		Plans:         usecase.NewPlanUseCase(planRepo),
		Auth:          api.NewAuthenticator(cfg.Auth.JWTSecret),
		Health:        func(ctx context.Context) error { return postgres.Ping(ctx, pool) },
	}, cfg.HTTP.RequestTimeout, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, fmt.Sprintf(":%d", cfg.HTTP.Port))
	})

	// ---- Reconciler ----
	if cfg.Reconciler.Enabled {
		workers := worker.NewPool(cfg.Reconciler.Workers, log)
		workers.Start(gctx)
		defer workers.Stop()
		rec := sched.NewPaymentReconciler(reconcileUC, workers, locker, cfg.Reconciler, log)
		g.Go(func() error {
			rec.Start(gctx)
			return nil
		})
		log.Info().Dur("interval", cfg.Reconciler.Interval).Int("workers", workers.Size()).Msg("reconciler started")
	}

	err = g.Wait()
	log.Info().Msg("shutdown complete")
	return err
}

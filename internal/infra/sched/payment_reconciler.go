package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"saas-billing/internal/config"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/infra/metrics"
	red "saas-billing/internal/infra/redis"
	"saas-billing/internal/infra/worker"
	"saas-billing/internal/usecase"
)

const reconcilerLockKey = "lock:payment-reconciler"

// PaymentReconciler periodically asks the gateway about orders that stayed in
// created status, covering clients that never came back to verify and lost
// webhooks. It never activates subscriptions.
type PaymentReconciler struct {
	uc         usecase.ReconcileUseCase
	pool       *worker.Pool
	locker     red.Locker // optional; keeps one instance sweeping at a time
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.ReconcileUseCase, pool *worker.Pool, locker red.Locker, cfg config.ReconcilerConfig, logger *zerolog.Logger) *PaymentReconciler {
	w := &PaymentReconciler{
		uc:         uc,
		pool:       pool,
		locker:     locker,
		interval:   cfg.Interval,
		staleAfter: cfg.StaleAfter,
		batchSize:  cfg.BatchSize,
		log:        logger,
	}
	if w.interval <= 0 {
		w.interval = 5 * time.Minute
	}
	if w.staleAfter <= 0 {
		w.staleAfter = 30 * time.Minute
	}
	if w.batchSize <= 0 {
		w.batchSize = 200
	}
	return w
}

// Start blocks until ctx is done, sweeping once per interval.
func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = w.Tick(ctx)
		}
	}
}

// TickResult summarizes one sweep.
type TickResult struct {
	Scanned  int
	Captured int
	Failed   int
	Pending  int
	Errors   int
	Skipped  bool
}

// Tick runs one sweep over stale orders.
func (w *PaymentReconciler) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult
	log := w.log.With().Str("job", "payment-reconciler").Logger()

	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, reconcilerLockKey, w.interval)
		if errors.Is(err, red.ErrLockHeld) {
			metrics.IncReconcilerRun("skipped")
			res.Skipped = true
			return res, nil
		}
		if err != nil {
			// Redis down: sweeping twice is safe, ledger writes are monotone.
			log.Warn().Err(err).Msg("reconciler lock unavailable, running anyway")
		} else {
			defer func() { _ = w.locker.Unlock(context.Background(), reconcilerLockKey, token) }()
		}
	}

	stale, err := w.uc.ListStale(ctx, time.Now().Add(-w.staleAfter), w.batchSize)
	if err != nil {
		metrics.IncReconcilerRun("error")
		log.Error().Err(err).Msg("list stale transactions failed")
		return res, err
	}
	res.Scanned = len(stale)

	var captured, failed, pending, errs int64
	tasks := make([]worker.Task, 0, len(stale))
	for _, t := range stale {
		t := t
		tasks = append(tasks, func(ctx context.Context) error {
			outcome, err := w.uc.ReconcileOrder(ctx, t)
			if err != nil {
				atomic.AddInt64(&errs, 1)
				metrics.IncReconciledOrder("error")
				return reconcileErr{orderID: t.OrderID, err: err}
			}
			metrics.IncReconciledOrder(outcome)
			switch outcome {
			case usecase.ReconcileCaptured:
				atomic.AddInt64(&captured, 1)
				metrics.IncPayment(string(model.TransactionStatusCaptured))
				metrics.AddPaymentRevenue(t.Currency, t.AmountMinor)
			case usecase.ReconcileFailed:
				atomic.AddInt64(&failed, 1)
			case usecase.ReconcilePending:
				atomic.AddInt64(&pending, 1)
			}
			return nil
		})
	}
	if err := w.pool.RunAll(ctx, tasks); err != nil {
		metrics.IncReconcilerRun("error")
		return res, err
	}

	res.Captured, res.Failed, res.Pending, res.Errors = int(captured), int(failed), int(pending), int(errs)
	metrics.IncReconcilerRun("ok")
	log.Info().
		Int("scanned", res.Scanned).
		Int("captured", res.Captured).
		Int("failed", res.Failed).
		Int("pending", res.Pending).
		Int("errors", res.Errors).
		Msg("reconciler sweep done")
	return res, nil
}

type reconcileErr struct {
	orderID string
	err     error
}

func (e reconcileErr) Error() string { return "reconcile " + e.orderID + ": " + e.err.Error() }
func (e reconcileErr) Unwrap() error { return e.err }

package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/adapter"
	"saas-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// Reconcile outcomes, also used as metric labels.
const (
	ReconcileCaptured = "captured"
	ReconcileFailed   = "failed"
	ReconcilePending  = "pending"

	// ReconcileUnchanged means another writer settled the row first.
	ReconcileUnchanged = "unchanged"
)

// ReconcileUseCase settles ledger rows whose client never came back to verify
// and whose webhooks were lost. It only touches the ledger; activating a
// subscription still needs a verified checkout.
type ReconcileUseCase interface {
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*model.Transaction, error)
	ReconcileOrder(ctx context.Context, t *model.Transaction) (string, error)
}

type reconcileUC struct {
	transactions repository.TransactionRepository
	gateway      adapter.PaymentGateway
	log          *zerolog.Logger
}

func NewReconcileUseCase(transactions repository.TransactionRepository, gateway adapter.PaymentGateway, logger *zerolog.Logger) *reconcileUC {
	return &reconcileUC{transactions: transactions, gateway: gateway, log: logger}
}

func (u *reconcileUC) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	return u.transactions.ListStale(ctx, repository.NoTX, olderThan, limit)
}

func (u *reconcileUC) ReconcileOrder(ctx context.Context, t *model.Transaction) (string, error) {
	payments, err := u.gateway.FetchOrderPayments(ctx, t.OrderID)
	if err != nil {
		return "", fmt.Errorf("fetch order payments: %w", err)
	}

	var latestFailed *model.GatewayPayment
	for _, p := range payments {
		if p.Settled() && p.AmountMinor == t.AmountMinor {
			tr, err := u.transactions.MarkCaptured(ctx, repository.NoTX, t.OrderID, model.CaptureDetails{
				PaymentID:     p.ID,
				PaymentMethod: p.Method,
				Email:         p.Email,
				Contact:       p.Contact,
			}, time.Now().UTC())
			if err != nil {
				return "", err
			}
			if !tr.Changed(model.TransactionStatusCaptured) {
				return ReconcileUnchanged, nil
			}
			u.log.Info().Str("order_id", t.OrderID).Str("payment_id", p.ID).Msg("reconciled captured payment")
			return ReconcileCaptured, nil
		}
		if p.Status == model.GatewayPaymentFailed && (latestFailed == nil || p.CreatedAt.After(latestFailed.CreatedAt)) {
			latestFailed = p
		}
	}

	if latestFailed != nil {
		tr, err := u.transactions.MarkFailed(ctx, repository.NoTX, t.OrderID, latestFailed.ID, latestFailed.FailureDetails())
		if err != nil {
			return "", err
		}
		if !tr.Changed(model.TransactionStatusFailed) {
			return ReconcileUnchanged, nil
		}
		u.log.Info().Str("order_id", t.OrderID).Str("payment_id", latestFailed.ID).Msg("reconciled failed payment")
		return ReconcileFailed, nil
	}
	return ReconcilePending, nil
}

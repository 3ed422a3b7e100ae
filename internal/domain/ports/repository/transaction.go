package repository

import (
	"context"
	"time"

	"saas-billing/internal/domain/model"
)

// -----------------------------
// Transaction ledger
// -----------------------------

// TransactionRepository stores one row per gateway order. Status writes are
// conditional on model.UpdatableFrom so they never move a row backwards; the
// Mark* methods report the status the row held before the write.
type TransactionRepository interface {
	Save(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Transaction, error)
	// FindByOrderIDForUser locks the row when called inside a transaction.
	FindByOrderIDForUser(ctx context.Context, tx Tx, orderID, userID string) (*model.Transaction, error)
	// FindByPaymentID only matches captured or refunded rows.
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Transaction, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.Transaction, error)
	ListAll(ctx context.Context, tx Tx, limit, offset int) ([]*model.Transaction, error)
	// ListStale returns rows still in created status that were created before olderThan.
	ListStale(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Transaction, error)

	MarkCaptured(ctx context.Context, tx Tx, orderID string, d model.CaptureDetails, at time.Time) (model.Transition, error)
	MarkFailed(ctx context.Context, tx Tx, orderID string, paymentID string, e model.TransactionError) (model.Transition, error)
	MarkRefunded(ctx context.Context, tx Tx, orderID, paymentID string, r model.Refund, at time.Time) (model.Transition, error)
	LinkSubscription(ctx context.Context, tx Tx, transactionID, subscriptionID string) error
}

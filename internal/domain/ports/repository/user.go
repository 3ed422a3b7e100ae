package repository

import (
	"context"

	"saas-billing/internal/domain/model"
)

// -----------------------------
// User billing fields
// -----------------------------

type UserBillingRepository interface {
	// Upsert writes plan, status and end date for the user. A nil end date
	// leaves the stored one unchanged.
	Upsert(ctx context.Context, tx Tx, b *model.UserBilling) error
	// SetStatus changes only the subscription status.
	SetStatus(ctx context.Context, tx Tx, userID string, status model.SubscriptionStatus) error
	FindByUser(ctx context.Context, tx Tx, userID string) (*model.UserBilling, error)
}

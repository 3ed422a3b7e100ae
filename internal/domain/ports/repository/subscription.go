package repository

import (
	"context"
	"time"

	"saas-billing/internal/domain/model"
)

// SubscriptionRepository is the port for user subscriptions. At most one row
// per user is active; UpsertActive replaces it atomically.
type SubscriptionRepository interface {
	// UpsertActive inserts s or overwrites the user's current active row and
	// returns what was stored. The returned ID may differ from s.ID.
	UpsertActive(ctx context.Context, tx Tx, s *model.Subscription) (*model.Subscription, error)
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	// CancelActive moves the user's active row to cancelled. ErrNoActiveSubscription if none.
	CancelActive(ctx context.Context, tx Tx, userID string, at time.Time) (*model.Subscription, error)
	// Revoke cancels the row with the given id if it is still active and still
	// belongs to transactionID. ErrNotFound otherwise.
	Revoke(ctx context.Context, tx Tx, id, transactionID string, at time.Time) (*model.Subscription, error)
	ListAll(ctx context.Context, tx Tx, limit, offset int) ([]*model.Subscription, error)
}

package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/infra/logging"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase owns the single active subscription per user and keeps
// the denormalized user billing fields in step with it.
type SubscriptionUseCase interface {
	// Activate starts a billing period for a captured transaction. It must run
	// inside the caller's database transaction.
	Activate(ctx context.Context, tx repository.Tx, t *model.Transaction) (*model.Subscription, error)
	// Revoke cancels the subscription linked to a refunded transaction. Returns
	// nil, nil when it is no longer active or was superseded.
	Revoke(ctx context.Context, tx repository.Tx, t *model.Transaction) (*model.Subscription, error)

	GetActive(ctx context.Context, userID string) (*model.Subscription, error)
	Cancel(ctx context.Context, userID string) (*model.Subscription, error)
}

type subscriptionUC struct {
	subs  repository.SubscriptionRepository
	txns  repository.TransactionRepository
	users repository.UserBillingRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
	now   func() time.Time
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	txns repository.TransactionRepository,
	users repository.UserBillingRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *subscriptionUC {
	return &subscriptionUC{subs: subs, txns: txns, users: users, tm: tm, log: logger, now: time.Now}
}

func (u *subscriptionUC) Activate(ctx context.Context, tx repository.Tx, t *model.Transaction) (*model.Subscription, error) {
	sub, err := model.NewActiveSubscription(t, u.now().UTC())
	if err != nil {
		return nil, err
	}
	stored, err := u.subs.UpsertActive(ctx, tx, sub)
	if err != nil {
		return nil, err
	}
	if err := u.txns.LinkSubscription(ctx, tx, t.ID, stored.ID); err != nil {
		return nil, err
	}
	end := stored.EndDate
	if err := u.users.Upsert(ctx, tx, &model.UserBilling{
		UserID:              stored.UserID,
		SubscriptionPlan:    stored.PlanKey,
		SubscriptionStatus:  model.SubscriptionStatusActive,
		SubscriptionEndDate: &end,
	}); err != nil {
		return nil, err
	}

	u.log.Info().
		Str("user_id", stored.UserID).
		Str("subscription_id", stored.ID).
		Str("plan_key", stored.PlanKey).
		Time("end_date", stored.EndDate).
		Msg("subscription activated")
	return stored, nil
}

func (u *subscriptionUC) Revoke(ctx context.Context, tx repository.Tx, t *model.Transaction) (*model.Subscription, error) {
	if t.SubscriptionID == nil || *t.SubscriptionID == "" {
		return nil, nil
	}
	sub, err := u.subs.Revoke(ctx, tx, *t.SubscriptionID, t.ID, u.now().UTC())
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := u.users.SetStatus(ctx, tx, sub.UserID, model.SubscriptionStatusCancelled); err != nil {
		return nil, err
	}
	u.log.Info().Str("user_id", sub.UserID).Str("subscription_id", sub.ID).Str("order_id", t.OrderID).Msg("subscription revoked after refund")
	return sub, nil
}

// GetActive returns nil, nil when the user has no active subscription.
func (u *subscriptionUC) GetActive(ctx context.Context, userID string) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.GetActive")()
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	sub, err := u.subs.FindActiveByUser(ctx, repository.NoTX, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return sub, err
}

// Cancel stops the active subscription. The end date and the ledger are left
// untouched; no refund is issued.
func (u *subscriptionUC) Cancel(ctx context.Context, userID string) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.Cancel")()
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	var cancelled *model.Subscription
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := u.subs.CancelActive(ctx, tx, userID, u.now().UTC())
		if err != nil {
			return err
		}
		if err := u.users.SetStatus(ctx, tx, userID, model.SubscriptionStatusCancelled); err != nil {
			return err
		}
		cancelled = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("user_id", userID).Str("subscription_id", cancelled.ID).Msg("subscription cancelled")
	return cancelled, nil
}

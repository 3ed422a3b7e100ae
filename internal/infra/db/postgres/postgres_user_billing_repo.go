package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

var _ repository.UserBillingRepository = (*userBillingRepo)(nil)

type userBillingRepo struct {
	pool *pgxpool.Pool
}

func NewUserBillingRepo(pool *pgxpool.Pool) *userBillingRepo {
	return &userBillingRepo{pool: pool}
}

func (r *userBillingRepo) Upsert(ctx context.Context, tx repository.Tx, b *model.UserBilling) error {
	const q = `
INSERT INTO user_billing (user_id, subscription_plan, subscription_status, subscription_end_date, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (user_id) DO UPDATE SET
  subscription_plan     = EXCLUDED.subscription_plan,
  subscription_status   = EXCLUDED.subscription_status,
  subscription_end_date = COALESCE(EXCLUDED.subscription_end_date, user_billing.subscription_end_date),
  updated_at            = NOW();`
	_, err := execSQL(ctx, r.pool, tx, q, b.UserID, b.SubscriptionPlan, string(b.SubscriptionStatus), b.SubscriptionEndDate)
	return mapErr("upsert user billing", err, domain.ErrNotFound)
}

// SetStatus creates the row if the user has none yet, leaving plan and end date empty.
func (r *userBillingRepo) SetStatus(ctx context.Context, tx repository.Tx, userID string, status model.SubscriptionStatus) error {
	const q = `
INSERT INTO user_billing (user_id, subscription_status, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id) DO UPDATE SET subscription_status = EXCLUDED.subscription_status, updated_at = NOW();`
	_, err := execSQL(ctx, r.pool, tx, q, userID, string(status))
	return mapErr("set user billing status", err, domain.ErrNotFound)
}

func (r *userBillingRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.UserBilling, error) {
	const q = `
SELECT user_id, subscription_plan, subscription_status, subscription_end_date, updated_at
  FROM user_billing WHERE user_id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	var (
		b      model.UserBilling
		status string
	)
	if err := row.Scan(&b.UserID, &b.SubscriptionPlan, &status, &b.SubscriptionEndDate, &b.UpdatedAt); err != nil {
		return nil, mapErr("find user billing", err, domain.ErrNotFound)
	}
	b.SubscriptionStatus = model.SubscriptionStatus(status)
	return &b, nil
}

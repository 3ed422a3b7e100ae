package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subColumns = `
  id::text, user_id, plan_key, plan_name, amount_minor, currency, billing_cycle, status,
  order_id, payment_id, gateway_subscription_id, start_date, end_date, next_billing_date,
  payment_method, COALESCE(transaction_id::text, ''), auto_renew, metadata, created_at, updated_at`

func scanSub(row pgx.Row) (*model.Subscription, error) {
	var (
		s      model.Subscription
		cycle  string
		status string
		meta   []byte
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.PlanKey, &s.PlanName, &s.AmountMinor, &s.Currency, &cycle, &status,
		&s.OrderID, &s.PaymentID, &s.GatewaySubscriptionID, &s.StartDate, &s.EndDate, &s.NextBillingDate,
		&s.PaymentMethod, &s.TransactionID, &s.AutoRenew, &meta, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.BillingCycle = model.BillingCycle(cycle)
	s.Status = model.SubscriptionStatus(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &s.Metadata); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return &s, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, notFound error, q string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	s, err := scanSub(row)
	if err != nil {
		return nil, mapErr("subscription", err, notFound)
	}
	return s, nil
}

// UpsertActive relies on the partial unique index on (user_id) WHERE
// status='active': a user's current active row is overwritten in place and
// keeps its id.
func (r *subscriptionRepo) UpsertActive(ctx context.Context, tx repository.Tx, s *model.Subscription) (*model.Subscription, error) {
	q := `
INSERT INTO subscriptions (
  id, user_id, plan_key, plan_name, amount_minor, currency, billing_cycle, status,
  order_id, payment_id, gateway_subscription_id, start_date, end_date, next_billing_date,
  payment_method, transaction_id, auto_renew, metadata, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,'active',$8,$9,$10,$11,$12,$13,$14,NULLIF($15,'')::uuid,$16,$17::jsonb,$18,$19)
ON CONFLICT (user_id) WHERE status = 'active' DO UPDATE SET
  plan_key                = EXCLUDED.plan_key,
  plan_name               = EXCLUDED.plan_name,
  amount_minor            = EXCLUDED.amount_minor,
  currency                = EXCLUDED.currency,
  billing_cycle           = EXCLUDED.billing_cycle,
  order_id                = EXCLUDED.order_id,
  payment_id              = EXCLUDED.payment_id,
  gateway_subscription_id = EXCLUDED.gateway_subscription_id,
  start_date              = EXCLUDED.start_date,
  end_date                = EXCLUDED.end_date,
  next_billing_date       = EXCLUDED.next_billing_date,
  payment_method          = EXCLUDED.payment_method,
  transaction_id          = EXCLUDED.transaction_id,
  auto_renew              = EXCLUDED.auto_renew,
  metadata                = EXCLUDED.metadata,
  updated_at              = EXCLUDED.updated_at
RETURNING` + subColumns + `;`

	meta, err := json.Marshal(orEmpty(s.Metadata))
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	return r.queryOne(ctx, tx, domain.ErrOperationFailed, q,
		s.ID, s.UserID, s.PlanKey, s.PlanName, s.AmountMinor, s.Currency, string(s.BillingCycle),
		s.OrderID, s.PaymentID, s.GatewaySubscriptionID, s.StartDate, s.EndDate, s.NextBillingDate,
		s.PaymentMethod, s.TransactionID, s.AutoRenew, string(meta), s.CreatedAt, s.UpdatedAt,
	)
}

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	q := `SELECT` + subColumns + ` FROM subscriptions WHERE user_id = $1 AND status = 'active';`
	return r.queryOne(ctx, tx, domain.ErrNoActiveSubscription, q, userID)
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT` + subColumns + ` FROM subscriptions WHERE id::text = $1;`
	return r.queryOne(ctx, tx, domain.ErrNotFound, q, id)
}

func (r *subscriptionRepo) CancelActive(ctx context.Context, tx repository.Tx, userID string, at time.Time) (*model.Subscription, error) {
	q := `
UPDATE subscriptions SET status = 'cancelled', auto_renew = FALSE, updated_at = $2
 WHERE user_id = $1 AND status = 'active'
RETURNING` + subColumns + `;`
	return r.queryOne(ctx, tx, domain.ErrNoActiveSubscription, q, userID, at)
}

func (r *subscriptionRepo) Revoke(ctx context.Context, tx repository.Tx, id, transactionID string, at time.Time) (*model.Subscription, error) {
	q := `
UPDATE subscriptions SET status = 'cancelled', auto_renew = FALSE, updated_at = $3
 WHERE id::text = $1 AND transaction_id::text = $2 AND status = 'active'
RETURNING` + subColumns + `;`
	return r.queryOne(ctx, tx, domain.ErrNotFound, q, id, transactionID, at)
}

func (r *subscriptionRepo) ListAll(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Subscription, error) {
	q := `SELECT` + subColumns + ` FROM subscriptions ORDER BY created_at DESC LIMIT $1 OFFSET $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit, offset)
	if err != nil {
		return nil, mapErr("list subscriptions", err, domain.ErrNotFound)
	}
	defer rows.Close()
	out := make([]*model.Subscription, 0)
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

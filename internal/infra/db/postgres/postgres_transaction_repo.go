package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const txColumns = `
  id, user_id, order_id, receipt, status, amount_minor, currency, plan_key, plan_name, billing_cycle,
  payment_id, signature, payment_method, email, contact,
  error_code, error_description, error_source, error_step, error_reason,
  refund_id, refund_amount_minor, refund_status,
  subscription_id::text, metadata, paid_at, refunded_at, created_at, updated_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		t      model.Transaction
		status string
		cycle  string
		meta   []byte
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.OrderID, &t.Receipt, &status, &t.AmountMinor, &t.Currency, &t.PlanKey, &t.PlanName, &cycle,
		&t.PaymentID, &t.Signature, &t.PaymentMethod, &t.Email, &t.Contact,
		&t.Error.Code, &t.Error.Description, &t.Error.Source, &t.Error.Step, &t.Error.Reason,
		&t.Refund.ID, &t.Refund.AmountMinor, &t.Refund.Status,
		&t.SubscriptionID, &meta, &t.PaidAt, &t.RefundedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = model.TransactionStatus(status)
	t.BillingCycle = model.BillingCycle(cycle)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return &t, nil
}

func (r *transactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (
  id, user_id, order_id, receipt, status, amount_minor, currency, plan_key, plan_name, billing_cycle,
  metadata, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::jsonb,$12,$13);`

	meta, err := json.Marshal(orEmpty(t.Metadata))
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		t.ID, t.UserID, t.OrderID, t.Receipt, string(t.Status), t.AmountMinor, t.Currency, t.PlanKey, t.PlanName, string(t.BillingCycle),
		string(meta), t.CreatedAt, t.UpdatedAt,
	)
	return mapErr("save transaction", err, domain.ErrTransactionNotFound)
}

func (r *transactionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Transaction, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	t, err := scanTransaction(row)
	if err != nil {
		return nil, mapErr("find transaction", err, domain.ErrTransactionNotFound)
	}
	return t, nil
}

func (r *transactionRepo) queryMany(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Transaction, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr("list transactions", err, domain.ErrTransactionNotFound)
	}
	defer rows.Close()
	out := make([]*model.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *transactionRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Transaction, error) {
	q := `SELECT` + txColumns + ` FROM transactions WHERE order_id = $1;`
	return r.queryOne(ctx, tx, q, orderID)
}

func (r *transactionRepo) FindByOrderIDForUser(ctx context.Context, tx repository.Tx, orderID, userID string) (*model.Transaction, error) {
	q := `SELECT` + txColumns + ` FROM transactions WHERE order_id = $1 AND user_id = $2`
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	return r.queryOne(ctx, tx, q, orderID, userID)
}

func (r *transactionRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Transaction, error) {
	if paymentID == "" {
		return nil, domain.ErrTransactionNotFound
	}
	q := `SELECT` + txColumns + ` FROM transactions WHERE payment_id = $1 AND status IN ('captured', 'refunded') ORDER BY created_at DESC LIMIT 1;`
	return r.queryOne(ctx, tx, q, paymentID)
}

func (r *transactionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Transaction, error) {
	q := `SELECT` + txColumns + ` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2;`
	return r.queryMany(ctx, tx, q, userID, limit)
}

func (r *transactionRepo) ListAll(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Transaction, error) {
	q := `SELECT` + txColumns + ` FROM transactions ORDER BY created_at DESC LIMIT $1 OFFSET $2;`
	return r.queryMany(ctx, tx, q, limit, offset)
}

func (r *transactionRepo) ListStale(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	q := `SELECT` + txColumns + ` FROM transactions WHERE status = 'created' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.queryMany(ctx, tx, q, olderThan, limit)
}

// guardedUpdate runs set against the row for orderID only when its current
// status may move to target. The row is locked first so concurrent writers
// see each other's result.
func (r *transactionRepo) guardedUpdate(ctx context.Context, tx repository.Tx, target model.TransactionStatus, set string, args ...interface{}) (model.Transition, error) {
	from := make([]string, 0, 4)
	for _, s := range model.UpdatableFrom(target) {
		from = append(from, string(s))
	}
	n := len(args)
	q := `
WITH prev AS (
  SELECT id, status FROM transactions WHERE order_id = $1 FOR UPDATE
)
UPDATE transactions t SET
  status = $` + strconv.Itoa(n+1) + `,
  ` + set + `,
  updated_at = NOW()
FROM prev
WHERE t.id = prev.id AND prev.status = ANY($` + strconv.Itoa(n+2) + `::text[])
RETURNING prev.status;`

	args = append(args, string(target), from)
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return model.Transition{}, err
	}
	var prev string
	if err := row.Scan(&prev); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Transition{}, nil
		}
		return model.Transition{}, mapErr("update transaction", err, domain.ErrTransactionNotFound)
	}
	return model.Transition{Applied: true, From: model.TransactionStatus(prev)}, nil
}

func (r *transactionRepo) MarkCaptured(ctx context.Context, tx repository.Tx, orderID string, d model.CaptureDetails, at time.Time) (model.Transition, error) {
	const set = `
  payment_id     = COALESCE(NULLIF($2, ''), t.payment_id),
  signature      = COALESCE(NULLIF($3, ''), t.signature),
  payment_method = COALESCE(NULLIF($4, ''), t.payment_method),
  email          = COALESCE(NULLIF($5, ''), t.email),
  contact        = COALESCE(NULLIF($6, ''), t.contact),
  paid_at        = COALESCE(t.paid_at, $7)`
	return r.guardedUpdate(ctx, tx, model.TransactionStatusCaptured, set,
		orderID, d.PaymentID, d.Signature, d.PaymentMethod, d.Email, d.Contact, at)
}

func (r *transactionRepo) MarkFailed(ctx context.Context, tx repository.Tx, orderID, paymentID string, e model.TransactionError) (model.Transition, error) {
	const set = `
  payment_id        = COALESCE(NULLIF($2, ''), t.payment_id),
  error_code        = $3,
  error_description = $4,
  error_source      = $5,
  error_step        = $6,
  error_reason      = $7`
	return r.guardedUpdate(ctx, tx, model.TransactionStatusFailed, set,
		orderID, paymentID, e.Code, e.Description, e.Source, e.Step, e.Reason)
}

func (r *transactionRepo) MarkRefunded(ctx context.Context, tx repository.Tx, orderID, paymentID string, rf model.Refund, at time.Time) (model.Transition, error) {
	const set = `
  payment_id          = COALESCE(NULLIF($2, ''), t.payment_id),
  refund_id           = $3,
  refund_amount_minor = $4,
  refund_status       = $5,
  refunded_at         = COALESCE(t.refunded_at, $6)`
	return r.guardedUpdate(ctx, tx, model.TransactionStatusRefunded, set,
		orderID, paymentID, rf.ID, rf.AmountMinor, rf.Status, at)
}

func (r *transactionRepo) LinkSubscription(ctx context.Context, tx repository.Tx, transactionID, subscriptionID string) error {
	const q = `UPDATE transactions SET subscription_id = $2, updated_at = NOW() WHERE id = $1;`
	ct, err := execSQL(ctx, r.pool, tx, q, transactionID, subscriptionID)
	if err != nil {
		return mapErr("link subscription", err, domain.ErrTransactionNotFound)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.PricingPlanRepository = (*PostgresPlanRepo)(nil)

type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

func (r *PostgresPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.PricingPlan) error {
	const q = `
INSERT INTO pricing_plans (plan_key, display_name, price, is_active, sort_order, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
ON CONFLICT (plan_key) DO UPDATE
  SET display_name = EXCLUDED.display_name,
      price        = EXCLUDED.price,
      is_active    = EXCLUDED.is_active,
      sort_order   = EXCLUDED.sort_order,
      updated_at   = NOW();`
	_, err := execSQL(ctx, r.pool, tx, q, p.PlanKey, p.DisplayName, p.Price, p.IsActive, p.SortOrder)
	return mapErr("save plan", err, domain.ErrPlanNotFound)
}

func (r *PostgresPlanRepo) FindActiveByKey(ctx context.Context, tx repository.Tx, planKey string) (*model.PricingPlan, error) {
	const q = `
SELECT plan_key, display_name, price, is_active, sort_order, created_at, updated_at
  FROM pricing_plans
 WHERE plan_key = $1 AND is_active;`
	row, err := pickRow(ctx, r.pool, tx, q, planKey)
	if err != nil {
		return nil, err
	}
	var p model.PricingPlan
	if err := row.Scan(&p.PlanKey, &p.DisplayName, &p.Price, &p.IsActive, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapErr("find plan", err, domain.ErrPlanNotFound)
	}
	return &p, nil
}

func (r *PostgresPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PricingPlan, error) {
	const q = `
SELECT plan_key, display_name, price, is_active, sort_order, created_at, updated_at
  FROM pricing_plans
 WHERE is_active
 ORDER BY sort_order, plan_key;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapErr("list plans", err, domain.ErrPlanNotFound)
	}
	defer rows.Close()
	var out []*model.PricingPlan
	for rows.Next() {
		var p model.PricingPlan
		if err := rows.Scan(&p.PlanKey, &p.DisplayName, &p.Price, &p.IsActive, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

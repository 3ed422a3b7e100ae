//go:build !integration

package postgres

import (
	"context"

	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerPlanRepo mocks the database repository that the plan decorator wraps.
type mockInnerPlanRepo struct {
	SaveFunc            func(ctx context.Context, tx repository.Tx, p *model.PricingPlan) error
	FindActiveByKeyFunc func(ctx context.Context, tx repository.Tx, planKey string) (*model.PricingPlan, error)
	ListActiveFunc      func(ctx context.Context, tx repository.Tx) ([]*model.PricingPlan, error)
}

func (m *mockInnerPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.PricingPlan) error {
	return m.SaveFunc(ctx, tx, p)
}
func (m *mockInnerPlanRepo) FindActiveByKey(ctx context.Context, tx repository.Tx, planKey string) (*model.PricingPlan, error) {
	return m.FindActiveByKeyFunc(ctx, tx, planKey)
}
func (m *mockInnerPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PricingPlan, error) {
	return m.ListActiveFunc(ctx, tx)
}

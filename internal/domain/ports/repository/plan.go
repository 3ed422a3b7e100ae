package repository

import (
	"context"

	"saas-billing/internal/domain/model"
)

// PricingPlanRepository is the read-only pricing reference. Save exists for
// seeding only.
type PricingPlanRepository interface {
	FindActiveByKey(ctx context.Context, tx Tx, planKey string) (*model.PricingPlan, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.PricingPlan, error)
	Save(ctx context.Context, tx Tx, p *model.PricingPlan) error
}

package postgres

import (
	"context"

	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

// DefaultPlans is the pricing reference shipped with the service. Prices are
// in rupees; "Contact" plans are sold offline.
func DefaultPlans() []*model.PricingPlan {
	return []*model.PricingPlan{
		{PlanKey: "free", DisplayName: "Free", Price: "0", IsActive: true, SortOrder: 0},
		{PlanKey: "pro", DisplayName: "Pro", Price: "449", IsActive: true, SortOrder: 1},
		{PlanKey: "business", DisplayName: "Business", Price: "999", IsActive: true, SortOrder: 2},
		{PlanKey: "enterprise", DisplayName: "Enterprise", Price: "Contact", IsActive: true, SortOrder: 3},
	}
}

// SeedPlans upserts plans through repo and returns how many were written.
func SeedPlans(ctx context.Context, repo repository.PricingPlanRepository, plans []*model.PricingPlan) (int, error) {
	for i, p := range plans {
		if err := repo.Save(ctx, repository.NoTX, p); err != nil {
			return i, err
		}
	}
	return len(plans), nil
}

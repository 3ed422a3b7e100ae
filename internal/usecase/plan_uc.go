package usecase

import (
	"context"
	"errors"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

// PlanQuote is an active plan with what each billing cycle would charge.
// Charges are nil for plans sold offline.
type PlanQuote struct {
	Plan    *model.PricingPlan
	Monthly *model.Charge
	Yearly  *model.Charge
}

func (q PlanQuote) Purchasable() bool { return q.Monthly != nil || q.Yearly != nil }

// PlanUseCase exposes the pricing reference to clients.
type PlanUseCase struct {
	repo repository.PricingPlanRepository
}

// NewPlanUseCase constructs a PlanUseCase.
func NewPlanUseCase(repo repository.PricingPlanRepository) *PlanUseCase {
	return &PlanUseCase{repo: repo}
}

// List returns active plans in display order with their quotes.
func (uc *PlanUseCase) List(ctx context.Context) ([]PlanQuote, error) {
	plans, err := uc.repo.ListActive(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	out := make([]PlanQuote, 0, len(plans))
	for _, p := range plans {
		q, err := quote(p)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func quote(p *model.PricingPlan) (PlanQuote, error) {
	q := PlanQuote{Plan: p}
	for _, cycle := range []model.BillingCycle{model.BillingCycleMonthly, model.BillingCycleYearly} {
		c, err := p.ChargeFor(cycle)
		switch {
		case errors.Is(err, domain.ErrUnpurchasablePlan), errors.Is(err, domain.ErrAmountTooLow):
			continue
		case err != nil:
			return PlanQuote{}, err
		}
		if cycle == model.BillingCycleMonthly {
			q.Monthly = &c
		} else {
			q.Yearly = &c
		}
	}
	return q, nil
}

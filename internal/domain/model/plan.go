package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saas-billing/internal/domain"
)

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

const (
	// MinorUnitsPerMajor converts rupees to paise.
	MinorUnitsPerMajor = 100
	// MinAmountMajor is the smallest charge accepted, in major units.
	MinAmountMajor = 1
	// MinAmountMinor is the gateway's absolute floor, in minor units.
	MinAmountMinor = 100
	// YearlyDiscountPercent is applied to 12 × the monthly price.
	YearlyDiscountPercent = 10
)

func ParseBillingCycle(s string) (BillingCycle, error) {
	switch c := BillingCycle(strings.ToLower(strings.TrimSpace(s))); c {
	case BillingCycleMonthly, BillingCycleYearly:
		return c, nil
	default:
		return "", domain.ErrInvalidBillingCycle
	}
}

// PeriodEnd returns start advanced by one calendar month or year.
func (c BillingCycle) PeriodEnd(start time.Time) time.Time {
	if c == BillingCycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

// PricingPlan is the read-only reference for what a plan costs. Price holds
// either a decimal amount in major currency units (e.g. "449") or a sentinel
// such as "Contact" for plans that are billed manually.
type PricingPlan struct {
	PlanKey     string
	DisplayName string
	Price       string
	IsActive    bool
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *PricingPlan) IsZero() bool { return p == nil || p.PlanKey == "" }

// NumericPrice parses Price. ok is false for sentinel prices.
func (p *PricingPlan) NumericPrice() (price decimal.Decimal, ok bool) {
	raw := strings.TrimSpace(p.Price)
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Charge is what a single billing cycle of a plan costs.
type Charge struct {
	AmountMajor         int64
	AmountMinor         int64
	OriginalAmountMinor int64 // before the yearly discount
	DiscountMinor       int64
}

// ChargeFor computes the amount billed for one cycle of the plan.
func (p *PricingPlan) ChargeFor(cycle BillingCycle) (Charge, error) {
	price, ok := p.NumericPrice()
	if !ok {
		return Charge{}, domain.ErrUnpurchasablePlan
	}

	var amount, original decimal.Decimal
	switch cycle {
	case BillingCycleMonthly:
		amount = price.Round(0)
		original = amount
	case BillingCycleYearly:
		original = price.Mul(decimal.NewFromInt(12)).Round(0)
		discount := decimal.NewFromInt(100 - YearlyDiscountPercent).Div(decimal.NewFromInt(100))
		amount = price.Mul(decimal.NewFromInt(12)).Mul(discount).Round(0)
	default:
		return Charge{}, domain.ErrInvalidBillingCycle
	}

	if amount.LessThan(decimal.NewFromInt(MinAmountMajor)) {
		return Charge{}, domain.ErrAmountTooLow
	}
	major := amount.IntPart()
	minor := major * MinorUnitsPerMajor
	if minor < MinAmountMinor {
		return Charge{}, domain.ErrAmountTooLow
	}
	originalMinor := original.IntPart() * MinorUnitsPerMajor
	return Charge{
		AmountMajor:         major,
		AmountMinor:         minor,
		OriginalAmountMinor: originalMinor,
		DiscountMinor:       originalMinor - minor,
	}, nil
}

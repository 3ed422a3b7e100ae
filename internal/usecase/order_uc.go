package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/adapter"
	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/infra/logging"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

type OrderUseCase interface {
	// CreateOrder prices the plan, opens a gateway order and records it in the
	// ledger. Nothing is written when the gateway call fails.
	CreateOrder(ctx context.Context, userID, planKey string, cycle model.BillingCycle) (*OrderResult, error)
}

// OrderResult is everything the client checkout needs. It never carries secrets.
type OrderResult struct {
	OrderID       string
	AmountMajor   int64
	AmountMinor   int64
	Currency      string
	KeyID         string
	PlanName      string
	PlanKey       string
	BillingCycle  model.BillingCycle
	TransactionID string
}

type orderUC struct {
	plans         repository.PricingPlanRepository
	transactions  repository.TransactionRepository
	gateway       adapter.PaymentGateway
	currency      string
	receiptPrefix string
	log           *zerolog.Logger
}

func NewOrderUseCase(
	plans repository.PricingPlanRepository,
	transactions repository.TransactionRepository,
	gateway adapter.PaymentGateway,
	currency, receiptPrefix string,
	logger *zerolog.Logger,
) *orderUC {
	return &orderUC{
		plans:         plans,
		transactions:  transactions,
		gateway:       gateway,
		currency:      currency,
		receiptPrefix: receiptPrefix,
		log:           logger,
	}
}

func (u *orderUC) CreateOrder(ctx context.Context, userID, planKey string, cycle model.BillingCycle) (*OrderResult, error) {
	defer logging.TraceDuration(u.log, "OrderUC.CreateOrder")()

	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	planKey = strings.TrimSpace(planKey)
	if planKey == "" {
		return nil, domain.ErrInvalidArgument
	}
	cycle, err := model.ParseBillingCycle(string(cycle))
	if err != nil {
		return nil, err
	}

	plan, err := u.plans.FindActiveByKey(ctx, repository.NoTX, planKey)
	if err != nil {
		return nil, err
	}
	charge, err := plan.ChargeFor(cycle)
	if err != nil {
		return nil, err
	}

	order, err := u.gateway.CreateOrder(ctx, model.OrderRequest{
		AmountMinor: charge.AmountMinor,
		Currency:    u.currency,
		Receipt:     u.receiptPrefix + ulid.Make().String(),
		Notes: map[string]string{
			"plan_key":      plan.PlanKey,
			"billing_cycle": string(cycle),
			"user_id":       userID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	t, err := model.NewTransaction(userID, plan, cycle, charge, order, u.currency)
	if err != nil {
		return nil, err
	}
	if err := u.transactions.Save(ctx, repository.NoTX, t); err != nil {
		// The gateway order stays unpaid and expires on its own.
		u.log.Error().Err(err).Str("order_id", order.ID).Str("user_id", userID).Msg("failed to record gateway order")
		return nil, err
	}

	u.log.Info().
		Str("order_id", order.ID).
		Str("user_id", userID).
		Str("plan_key", plan.PlanKey).
		Str("billing_cycle", string(cycle)).
		Int64("amount_minor", charge.AmountMinor).
		Msg("order created")

	return &OrderResult{
		OrderID:       order.ID,
		AmountMajor:   charge.AmountMajor,
		AmountMinor:   charge.AmountMinor,
		Currency:      u.currency,
		KeyID:         u.gateway.KeyID(),
		PlanName:      plan.DisplayName,
		PlanKey:       plan.PlanKey,
		BillingCycle:  cycle,
		TransactionID: t.ID,
	}, nil
}

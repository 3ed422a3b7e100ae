package api_test

import (
	"context"
	"time"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/usecase"
)

type mockOrderUC struct {
	CreateOrderFunc func(ctx context.Context, userID, planKey string, cycle model.BillingCycle) (*usecase.OrderResult, error)
}

func (m *mockOrderUC) CreateOrder(ctx context.Context, userID, planKey string, cycle model.BillingCycle) (*usecase.OrderResult, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, userID, planKey, cycle)
	}
	return nil, domain.ErrOperationFailed
}

type mockVerifyUC struct {
	VerifyFunc func(ctx context.Context, in usecase.VerifyInput) (*usecase.VerifyResult, error)
}

func (m *mockVerifyUC) Verify(ctx context.Context, in usecase.VerifyInput) (*usecase.VerifyResult, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, in)
	}
	return nil, domain.ErrOperationFailed
}

type mockSubscriptionUC struct {
	GetActiveFunc func(ctx context.Context, userID string) (*model.Subscription, error)
	CancelFunc    func(ctx context.Context, userID string) (*model.Subscription, error)
}

func (m *mockSubscriptionUC) Activate(ctx context.Context, tx repository.Tx, t *model.Transaction) (*model.Subscription, error) {
	return nil, domain.ErrOperationFailed
}

func (m *mockSubscriptionUC) Revoke(ctx context.Context, tx repository.Tx, t *model.Transaction) (*model.Subscription, error) {
	return nil, nil
}

func (m *mockSubscriptionUC) GetActive(ctx context.Context, userID string) (*model.Subscription, error) {
	if m.GetActiveFunc != nil {
		return m.GetActiveFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockSubscriptionUC) Cancel(ctx context.Context, userID string) (*model.Subscription, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, userID)
	}
	return nil, domain.ErrNoActiveSubscription
}

type mockLedgerUC struct {
	HistoryFunc      func(ctx context.Context, userID string) ([]*model.Transaction, error)
	AdminRecordsFunc func(ctx context.Context, limit, offset int) ([]model.AdminRecord, error)
}

func (m *mockLedgerUC) History(ctx context.Context, userID string) ([]*model.Transaction, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, userID)
	}
	return []*model.Transaction{}, nil
}

func (m *mockLedgerUC) AdminRecords(ctx context.Context, limit, offset int) ([]model.AdminRecord, error) {
	if m.AdminRecordsFunc != nil {
		return m.AdminRecordsFunc(ctx, limit, offset)
	}
	return nil, nil
}

type mockWebhookUC struct {
	HandleFunc func(ctx context.Context, body []byte, signature, eventID string) (*usecase.WebhookResult, error)
}

func (m *mockWebhookUC) Handle(ctx context.Context, body []byte, signature, eventID string) (*usecase.WebhookResult, error) {
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, body, signature, eventID)
	}
	return &usecase.WebhookResult{Outcome: usecase.WebhookIgnored}, nil
}

type memPlanRepo struct {
	plans []*model.PricingPlan
	err   error
}

func (m *memPlanRepo) FindActiveByKey(ctx context.Context, tx repository.Tx, planKey string) (*model.PricingPlan, error) {
	for _, p := range m.plans {
		if p.PlanKey == planKey && p.IsActive {
			return p, nil
		}
	}
	return nil, domain.ErrPlanNotFound
}

func (m *memPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PricingPlan, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.plans, nil
}

func (m *memPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.PricingPlan) error {
	m.plans = append(m.plans, p)
	return nil
}

func sampleSubscription(userID string) *model.Subscription {
	start := time.Date(2026, time.January, 31, 10, 0, 0, 0, time.UTC)
	return &model.Subscription{
		ID:              "sub-1",
		UserID:          userID,
		PlanKey:         "pro",
		PlanName:        "Pro",
		AmountMinor:     44900,
		Currency:        "INR",
		BillingCycle:    model.BillingCycleMonthly,
		Status:          model.SubscriptionStatusActive,
		OrderID:         "order_1",
		PaymentID:       "pay_1",
		StartDate:       start,
		EndDate:         model.BillingCycleMonthly.PeriodEnd(start),
		NextBillingDate: model.BillingCycleMonthly.PeriodEnd(start),
		TransactionID:   "txn-1",
		AutoRenew:       true,
		CreatedAt:       start,
		UpdatedAt:       start,
	}
}

func sampleTransaction(userID string, status model.TransactionStatus) *model.Transaction {
	created := time.Date(2026, time.January, 31, 9, 59, 0, 0, time.UTC)
	return &model.Transaction{
		ID:           "txn-1",
		UserID:       userID,
		OrderID:      "order_1",
		Receipt:      "rcpt_1",
		Status:       status,
		AmountMinor:  44900,
		Currency:     "INR",
		PlanKey:      "pro",
		PlanName:     "Pro",
		BillingCycle: model.BillingCycleMonthly,
		PaymentID:    "pay_1",
		Signature:    "deadbeef",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"saas-billing/internal/domain/model"
	"saas-billing/internal/usecase"
)

const (
	testKeySecret     = "key-secret"
	testWebhookSecret = "webhook-secret"
)

// billing wires every use case over the in-memory mocks.
type billing struct {
	plans   *MockPlanRepo
	txs     *MockTransactionRepo
	subRepo *MockSubscriptionRepo
	users   *MockUserBillingRepo
	events  *MockEventStore
	gateway *MockGateway
	tm      *MockTxManager

	orders    usecase.OrderUseCase
	verifier  usecase.VerifyUseCase
	subs      usecase.SubscriptionUseCase
	webhooks  usecase.WebhookUseCase
	ledger    usecase.LedgerUseCase
	reconcile usecase.ReconcileUseCase
}

func defaultPlans() []*model.PricingPlan {
	return []*model.PricingPlan{
		{PlanKey: "free", DisplayName: "Free", Price: "0", IsActive: true, SortOrder: 0},
		{PlanKey: "pro", DisplayName: "Pro", Price: "449", IsActive: true, SortOrder: 1},
		{PlanKey: "business", DisplayName: "Business", Price: "999", IsActive: true, SortOrder: 2},
		{PlanKey: "enterprise", DisplayName: "Enterprise", Price: "Contact", IsActive: true, SortOrder: 3},
		{PlanKey: "legacy", DisplayName: "Legacy", Price: "199", IsActive: false, SortOrder: 4},
	}
}

func newBilling(t *testing.T) *billing {
	t.Helper()
	logger := newTestLogger()
	b := &billing{
		plans:   NewMockPlanRepo(defaultPlans()...),
		txs:     NewMockTransactionRepo(),
		subRepo: NewMockSubscriptionRepo(),
		users:   NewMockUserBillingRepo(),
		events:  NewMockEventStore(),
		gateway: NewMockGateway(),
		tm:      NewMockTxManager(),
	}
	b.subs = usecase.NewSubscriptionUseCase(b.subRepo, b.txs, b.users, b.tm, logger)
	b.orders = usecase.NewOrderUseCase(b.plans, b.txs, b.gateway, "INR", "rcpt_", logger)
	b.verifier = usecase.NewVerifyUseCase(b.txs, b.subs, b.subRepo, b.gateway, b.tm, testKeySecret, logger, false)
	b.webhooks = usecase.NewWebhookUseCase(b.txs, b.subs, b.events, b.tm, testWebhookSecret, logger)
	b.ledger = usecase.NewLedgerUseCase(b.txs, b.subRepo, logger)
	b.reconcile = usecase.NewReconcileUseCase(b.txs, b.gateway, logger)
	return b
}

// order creates an order through the use case and fails the test on error.
func (b *billing) order(t *testing.T, userID, planKey string, cycle model.BillingCycle) *usecase.OrderResult {
	t.Helper()
	res, err := b.orders.CreateOrder(context.Background(), userID, planKey, cycle)
	if err != nil {
		t.Fatalf("CreateOrder(%s, %s): %v", planKey, cycle, err)
	}
	return res
}

// pay registers a captured gateway payment for the order and returns the
// signed verification input.
func (b *billing) pay(userID string, o *usecase.OrderResult, paymentID string) usecase.VerifyInput {
	b.gateway.AddPayment(&model.GatewayPayment{
		ID:          paymentID,
		OrderID:     o.OrderID,
		Status:      model.GatewayPaymentCaptured,
		AmountMinor: o.AmountMinor,
		Currency:    o.Currency,
		Method:      "upi",
		Email:       "buyer@example.in",
		Contact:     "+919800000000",
		CreatedAt:   time.Now(),
	})
	return usecase.VerifyInput{
		UserID:       userID,
		OrderID:      o.OrderID,
		PaymentID:    paymentID,
		Signature:    usecase.SignPayment(testKeySecret, o.OrderID, paymentID),
		PlanKey:      o.PlanKey,
		BillingCycle: o.BillingCycle,
	}
}

// deliver signs body with the webhook secret and hands it to the reconciler.
func (b *billing) deliver(body, eventID string) (*usecase.WebhookResult, error) {
	return b.webhooks.Handle(context.Background(), []byte(body), usecase.SignWebhook(testWebhookSecret, []byte(body)), eventID)
}

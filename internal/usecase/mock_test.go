//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/adapter"
	"saas-billing/internal/domain/ports/repository"
)

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockGateway struct {
	mu sync.Mutex

	CreateOrderFunc        func(ctx context.Context, req model.OrderRequest) (*model.GatewayOrder, error)
	FetchPaymentFunc       func(ctx context.Context, paymentID string) (*model.GatewayPayment, error)
	FetchOrderPaymentsFunc func(ctx context.Context, orderID string) ([]*model.GatewayPayment, error)

	// payments answered by FetchPayment / FetchOrderPayments when no Func is set
	Payments map[string]*model.GatewayPayment

	Calls struct {
		CreateOrder        []model.OrderRequest
		FetchPayment       []string
		FetchOrderPayments []string
	}
	seq int
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func NewMockGateway() *MockGateway {
	return &MockGateway{Payments: map[string]*model.GatewayPayment{}}
}

func (m *MockGateway) Name() string  { return "mock" }
func (m *MockGateway) KeyID() string { return "rzp_test_key" }

func (m *MockGateway) CreateOrder(ctx context.Context, req model.OrderRequest) (*model.GatewayOrder, error) {
	m.mu.Lock()
	m.Calls.CreateOrder = append(m.Calls.CreateOrder, req)
	m.seq++
	n := m.seq
	m.mu.Unlock()
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	return &model.GatewayOrder{
		ID:          fmt.Sprintf("order_%04d", n),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
		Status:      "created",
		CreatedAt:   time.Now(),
	}, nil
}

func (m *MockGateway) FetchPayment(ctx context.Context, paymentID string) (*model.GatewayPayment, error) {
	m.mu.Lock()
	m.Calls.FetchPayment = append(m.Calls.FetchPayment, paymentID)
	p, ok := m.Payments[paymentID]
	m.mu.Unlock()
	if m.FetchPaymentFunc != nil {
		return m.FetchPaymentFunc(ctx, paymentID)
	}
	if !ok {
		return nil, &domain.GatewayError{Op: "fetch_payment", StatusCode: 400, Code: "BAD_REQUEST_ERROR", Err: domain.ErrNotFound}
	}
	cp := *p
	return &cp, nil
}

func (m *MockGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]*model.GatewayPayment, error) {
	m.mu.Lock()
	m.Calls.FetchOrderPayments = append(m.Calls.FetchOrderPayments, orderID)
	var out []*model.GatewayPayment
	for _, p := range m.Payments {
		if p.OrderID == orderID {
			cp := *p
			out = append(out, &cp)
		}
	}
	m.mu.Unlock()
	if m.FetchOrderPaymentsFunc != nil {
		return m.FetchOrderPaymentsFunc(ctx, orderID)
	}
	return out, nil
}

// AddPayment registers a gateway-side payment for an order.
func (m *MockGateway) AddPayment(p *model.GatewayPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Payments[p.ID] = p
}

func (m *MockGateway) CreateOrderCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls.CreateOrder)
}

// =============================
// Repositories
// =============================

// ---- Pricing plans ----

type MockPlanRepo struct {
	mu    sync.RWMutex
	plans map[string]*model.PricingPlan

	FindActiveByKeyFunc func(ctx context.Context, tx repository.Tx, planKey string) (*model.PricingPlan, error)
}

var _ repository.PricingPlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo(plans ...*model.PricingPlan) *MockPlanRepo {
	m := &MockPlanRepo{plans: map[string]*model.PricingPlan{}}
	for _, p := range plans {
		m.plans[p.PlanKey] = p
	}
	return m
}

func (m *MockPlanRepo) FindActiveByKey(ctx context.Context, tx repository.Tx, planKey string) (*model.PricingPlan, error) {
	if m.FindActiveByKeyFunc != nil {
		return m.FindActiveByKeyFunc(ctx, tx, planKey)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[planKey]
	if !ok || !p.IsActive {
		return nil, domain.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PricingPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PricingPlan
	for _, p := range m.plans {
		if p.IsActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.PricingPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.plans[p.PlanKey] = &cp
	return nil
}

// ---- Transaction ledger ----

// MockTransactionRepo keeps rows in memory and applies the same forward-only
// status rules as the SQL implementation, atomically per call.
type MockTransactionRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Transaction // by order id

	SaveFunc       func(ctx context.Context, tx repository.Tx, t *model.Transaction) error
	MarkFailedFunc func(ctx context.Context, tx repository.Tx, orderID, paymentID string, e model.TransactionError) (model.Transition, error)
	ListAllFunc    func(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Transaction, error)
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{rows: map[string]*model.Transaction{}}
}

func cloneTx(t *model.Transaction) *model.Transaction {
	cp := *t
	if t.SubscriptionID != nil {
		id := *t.SubscriptionID
		cp.SubscriptionID = &id
	}
	cp.Metadata = map[string]any{}
	for k, v := range t.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}

func (m *MockTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[t.OrderID]; ok {
		return domain.ErrAlreadyExists
	}
	m.rows[t.OrderID] = cloneTx(t)
	return nil
}

func (m *MockTransactionRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[orderID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTx(t), nil
}

func (m *MockTransactionRepo) FindByOrderIDForUser(ctx context.Context, tx repository.Tx, orderID, userID string) (*model.Transaction, error) {
	t, err := m.FindByOrderID(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, domain.ErrTransactionNotFound
	}
	return t, nil
}

func (m *MockTransactionRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(func(t *model.Transaction) bool {
		return t.PaymentID == paymentID &&
			(t.Status == model.TransactionStatusCaptured || t.Status == model.TransactionStatusRefunded)
	})
	if len(out) == 0 {
		return nil, domain.ErrTransactionNotFound
	}
	return out[0], nil
}

func (m *MockTransactionRepo) sorted(filter func(*model.Transaction) bool) []*model.Transaction {
	var out []*model.Transaction
	for _, t := range m.rows {
		if filter(t) {
			out = append(out, cloneTx(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MockTransactionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(func(t *model.Transaction) bool { return t.UserID == userID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockTransactionRepo) ListAll(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Transaction, error) {
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx, tx, limit, offset)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(func(*model.Transaction) bool { return true })
	return page(out, limit, offset), nil
}

func (m *MockTransactionRepo) ListStale(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(func(t *model.Transaction) bool {
		return t.Status == model.TransactionStatusCreated && t.CreatedAt.Before(olderThan)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// guarded applies fn to the row if its status may move to target.
func (m *MockTransactionRepo) guarded(find func() *model.Transaction, target model.TransactionStatus, fn func(t *model.Transaction)) model.Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := find()
	if t == nil || !t.Status.CanMoveTo(target) {
		return model.Transition{}
	}
	from := t.Status
	fn(t)
	t.Status = target
	t.UpdatedAt = time.Now()
	return model.Transition{Applied: true, From: from}
}

func (m *MockTransactionRepo) byOrder(orderID string) func() *model.Transaction {
	return func() *model.Transaction { return m.rows[orderID] }
}

func (m *MockTransactionRepo) MarkCaptured(ctx context.Context, tx repository.Tx, orderID string, d model.CaptureDetails, at time.Time) (model.Transition, error) {
	return m.guarded(m.byOrder(orderID), model.TransactionStatusCaptured, func(t *model.Transaction) {
		setIf(&t.PaymentID, d.PaymentID)
		setIf(&t.Signature, d.Signature)
		setIf(&t.PaymentMethod, d.PaymentMethod)
		setIf(&t.Email, d.Email)
		setIf(&t.Contact, d.Contact)
		if t.PaidAt == nil {
			t.PaidAt = &at
		}
	}), nil
}

func (m *MockTransactionRepo) MarkFailed(ctx context.Context, tx repository.Tx, orderID, paymentID string, e model.TransactionError) (model.Transition, error) {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, tx, orderID, paymentID, e)
	}
	return m.guarded(m.byOrder(orderID), model.TransactionStatusFailed, func(t *model.Transaction) {
		setIf(&t.PaymentID, paymentID)
		t.Error = e
	}), nil
}

func (m *MockTransactionRepo) MarkRefunded(ctx context.Context, tx repository.Tx, orderID, paymentID string, r model.Refund, at time.Time) (model.Transition, error) {
	return m.guarded(m.byOrder(orderID), model.TransactionStatusRefunded, func(t *model.Transaction) {
		setIf(&t.PaymentID, paymentID)
		t.Refund = r
		if t.RefundedAt == nil {
			t.RefundedAt = &at
		}
	}), nil
}

func (m *MockTransactionRepo) LinkSubscription(ctx context.Context, tx repository.Tx, transactionID, subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.rows {
		if t.ID == transactionID {
			id := subscriptionID
			t.SubscriptionID = &id
			return nil
		}
	}
	return domain.ErrTransactionNotFound
}

// Put stores a row as-is, bypassing the status rules.
func (m *MockTransactionRepo) Put(t *model.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[t.OrderID] = cloneTx(t)
}

func (m *MockTransactionRepo) Get(orderID string) *model.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.rows[orderID]; ok {
		return cloneTx(t)
	}
	return nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if len(in) > limit {
		in = in[:limit]
	}
	return in
}

// ---- Subscriptions ----

type MockSubscriptionRepo struct {
	mu      sync.Mutex
	rows    []*model.Subscription
	upserts []*model.Subscription // commit order

	UpsertActiveFunc func(ctx context.Context, tx repository.Tx, s *model.Subscription) (*model.Subscription, error)
	ListAllFunc      func(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Subscription, error)
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{}
}

func cloneSub(s *model.Subscription) *model.Subscription {
	cp := *s
	return &cp
}

// UpsertActive mirrors INSERT ... ON CONFLICT (user_id) WHERE status='active'
// DO UPDATE: the existing active row keeps its id and takes the new values.
func (m *MockSubscriptionRepo) UpsertActive(ctx context.Context, tx repository.Tx, s *model.Subscription) (*model.Subscription, error) {
	if m.UpsertActiveFunc != nil {
		return m.UpsertActiveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.rows {
		if cur.UserID == s.UserID && cur.Status == model.SubscriptionStatusActive {
			next := cloneSub(s)
			next.ID = cur.ID
			next.CreatedAt = cur.CreatedAt
			m.rows[i] = next
			m.upserts = append(m.upserts, cloneSub(next))
			return cloneSub(next), nil
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.rows = append(m.rows, cloneSub(s))
	m.upserts = append(m.upserts, cloneSub(s))
	return cloneSub(s), nil
}

// Upserts returns every UpsertActive write in the order it was applied.
func (m *MockSubscriptionRepo) Upserts() []*model.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Subscription, 0, len(m.upserts))
	for _, s := range m.upserts {
		out = append(out, cloneSub(s))
	}
	return out
}

func (m *MockSubscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			return cloneSub(s), nil
		}
	}
	return nil, domain.ErrNoActiveSubscription
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.ID == id {
			return cloneSub(s), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) CancelActive(ctx context.Context, tx repository.Tx, userID string, at time.Time) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			s.Status = model.SubscriptionStatusCancelled
			s.AutoRenew = false
			s.UpdatedAt = at
			return cloneSub(s), nil
		}
	}
	return nil, domain.ErrNoActiveSubscription
}

func (m *MockSubscriptionRepo) Revoke(ctx context.Context, tx repository.Tx, id, transactionID string, at time.Time) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.ID == id && s.TransactionID == transactionID && s.Status == model.SubscriptionStatusActive {
			s.Status = model.SubscriptionStatusCancelled
			s.AutoRenew = false
			s.UpdatedAt = at
			return cloneSub(s), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) ListAll(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Subscription, error) {
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx, tx, limit, offset)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Subscription, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, cloneSub(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (m *MockSubscriptionRepo) All() []*model.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Subscription, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, cloneSub(s))
	}
	return out
}

func (m *MockSubscriptionRepo) ActiveCount(userID string) int {
	n := 0
	for _, s := range m.All() {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			n++
		}
	}
	return n
}

// ---- User billing ----

type MockUserBillingRepo struct {
	mu    sync.Mutex
	store map[string]*model.UserBilling

	UpsertFunc func(ctx context.Context, tx repository.Tx, b *model.UserBilling) error
}

var _ repository.UserBillingRepository = (*MockUserBillingRepo)(nil)

func NewMockUserBillingRepo() *MockUserBillingRepo {
	return &MockUserBillingRepo{store: map[string]*model.UserBilling{}}
}

func (m *MockUserBillingRepo) Upsert(ctx context.Context, tx repository.Tx, b *model.UserBilling) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, tx, b)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[b.UserID]
	if !ok {
		cur = &model.UserBilling{UserID: b.UserID}
		m.store[b.UserID] = cur
	}
	cur.SubscriptionPlan = b.SubscriptionPlan
	cur.SubscriptionStatus = b.SubscriptionStatus
	if b.SubscriptionEndDate != nil {
		end := *b.SubscriptionEndDate
		cur.SubscriptionEndDate = &end
	}
	cur.UpdatedAt = time.Now()
	return nil
}

func (m *MockUserBillingRepo) SetStatus(ctx context.Context, tx repository.Tx, userID string, status model.SubscriptionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[userID]
	if !ok {
		cur = &model.UserBilling{UserID: userID}
		m.store[userID] = cur
	}
	cur.SubscriptionStatus = status
	cur.UpdatedAt = time.Now()
	return nil
}

func (m *MockUserBillingRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.UserBilling, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *cur
	return &cp, nil
}

// ---- Webhook event store ----

type MockEventStore struct {
	mu   sync.Mutex
	seen map[string]bool

	SeenErr error
}

var _ repository.WebhookEventStore = (*MockEventStore)(nil)

func NewMockEventStore() *MockEventStore { return &MockEventStore{seen: map[string]bool{}} }

func (m *MockEventStore) Seen(ctx context.Context, eventID string) (bool, error) {
	if m.SeenErr != nil {
		return false, m.SeenErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[eventID], nil
}

func (m *MockEventStore) Remember(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[eventID] = true
	return nil
}

// ---- Transaction manager ----

type MockTxManager struct {
	// Serialize runs transactions one at a time, standing in for row locks.
	Serialize bool
	mu        sync.Mutex

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc overrides it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	if m.Serialize {
		m.mu.Lock()
		defer m.mu.Unlock()
	}
	return fn(ctx, repository.NoTX)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

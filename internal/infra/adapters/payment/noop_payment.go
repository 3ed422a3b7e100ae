package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for local runs and tests.
// Payments only exist once Settle or Fail records them, or, with AutoCapture
// set, as soon as the order is created under NoopPaymentID(order id).
type NoopPaymentGateway struct {
	AutoCapture bool

	mu       sync.Mutex
	seq      int64
	orders   map[string]*model.GatewayOrder
	payments map[string]*model.GatewayPayment
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		orders:   make(map[string]*model.GatewayOrder),
		payments: make(map[string]*model.GatewayPayment),
	}
}

func (g *NoopPaymentGateway) Name() string  { return "noop" }
func (g *NoopPaymentGateway) KeyID() string { return "rzp_test_noop" }

func (g *NoopPaymentGateway) CreateOrder(ctx context.Context, req model.OrderRequest) (*model.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	o := &model.GatewayOrder{
		ID:          fmt.Sprintf("order_noop%06d", g.seq),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
		Status:      "created",
		CreatedAt:   time.Now().UTC(),
	}
	g.orders[o.ID] = o
	if g.AutoCapture {
		g.recordLocked(o, NoopPaymentID(o.ID), model.GatewayPaymentCaptured, model.TransactionError{})
	}
	cp := *o
	return &cp, nil
}

// NoopPaymentID is the payment an auto-capturing gateway records for orderID.
func NoopPaymentID(orderID string) string {
	return "pay_" + strings.TrimPrefix(orderID, "order_")
}

func (g *NoopPaymentGateway) FetchPayment(ctx context.Context, paymentID string) (*model.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, &domain.GatewayError{Op: opFetchPayment, StatusCode: http.StatusBadRequest, Code: "BAD_REQUEST_ERROR", Err: errors.New("payment not found")}
	}
	cp := *p
	return &cp, nil
}

func (g *NoopPaymentGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]*model.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*model.GatewayPayment
	for _, p := range g.payments {
		if p.OrderID == orderID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Settle records a captured payment for the full order amount.
func (g *NoopPaymentGateway) Settle(orderID, paymentID string) error {
	return g.record(orderID, paymentID, model.GatewayPaymentCaptured, model.TransactionError{})
}

// Fail records a failed attempt against the order.
func (g *NoopPaymentGateway) Fail(orderID, paymentID string, e model.TransactionError) error {
	return g.record(orderID, paymentID, model.GatewayPaymentFailed, e)
}

func (g *NoopPaymentGateway) record(orderID, paymentID, status string, e model.TransactionError) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return fmt.Errorf("noop: order %s not found", orderID)
	}
	g.recordLocked(o, paymentID, status, e)
	return nil
}

func (g *NoopPaymentGateway) recordLocked(o *model.GatewayOrder, paymentID, status string, e model.TransactionError) {
	g.payments[paymentID] = &model.GatewayPayment{
		ID:               paymentID,
		OrderID:          o.ID,
		Status:           status,
		AmountMinor:      o.AmountMinor,
		Currency:         o.Currency,
		Method:           "upi",
		ErrorCode:        e.Code,
		ErrorDescription: e.Description,
		ErrorSource:      e.Source,
		ErrorStep:        e.Step,
		ErrorReason:      e.Reason,
		CreatedAt:        time.Now().UTC(),
	}
	if status == model.GatewayPaymentCaptured {
		o.Status = "paid"
	}
}

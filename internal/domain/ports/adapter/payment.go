package adapter

import (
	"context"

	"saas-billing/internal/domain/model"
)

// PaymentGateway is the hex port for the payment provider.
//
// Implementations return *domain.GatewayError for provider failures so callers
// can tell transient errors from permanent ones.
type PaymentGateway interface {
	Name() string
	// KeyID is the public key the client checkout needs. Never a secret.
	KeyID() string

	CreateOrder(ctx context.Context, req model.OrderRequest) (*model.GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*model.GatewayPayment, error)
	FetchOrderPayments(ctx context.Context, orderID string) ([]*model.GatewayPayment, error)
}

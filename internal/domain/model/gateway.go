package model

import "time"

// OrderRequest is what we ask the gateway to create.
type OrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// GatewayOrder is the gateway's view of an order.
type GatewayOrder struct {
	ID          string
	AmountMinor int64
	Currency    string
	Receipt     string
	Status      string // created | attempted | paid
	CreatedAt   time.Time
}

// Gateway payment statuses.
const (
	GatewayPaymentCreated    = "created"
	GatewayPaymentAuthorized = "authorized"
	GatewayPaymentCaptured   = "captured"
	GatewayPaymentRefunded   = "refunded"
	GatewayPaymentFailed     = "failed"
)

// GatewayPayment is the authoritative payment record fetched from the gateway.
type GatewayPayment struct {
	ID          string
	OrderID     string
	Status      string
	AmountMinor int64
	Currency    string
	Method      string
	Email       string
	Contact     string

	ErrorCode        string
	ErrorDescription string
	ErrorSource      string
	ErrorStep        string
	ErrorReason      string

	CreatedAt time.Time
}

// Settled reports whether money has moved for this payment. With auto-capture
// an authorized payment is captured by the gateway shortly after.
func (p *GatewayPayment) Settled() bool {
	return p.Status == GatewayPaymentCaptured || p.Status == GatewayPaymentAuthorized
}

func (p *GatewayPayment) FailureDetails() TransactionError {
	return TransactionError{
		Code:        p.ErrorCode,
		Description: p.ErrorDescription,
		Source:      p.ErrorSource,
		Step:        p.ErrorStep,
		Reason:      p.ErrorReason,
	}
}

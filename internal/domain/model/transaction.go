package model

import (
	"time"

	"github.com/google/uuid"

	"saas-billing/internal/domain"
)

type TransactionStatus string

const (
	TransactionStatusCreated  TransactionStatus = "created"  // gateway order exists, nothing paid yet
	TransactionStatusFailed   TransactionStatus = "failed"   // signature mismatch or gateway reported failure
	TransactionStatusCaptured TransactionStatus = "captured" // money captured by the gateway
	TransactionStatusRefunded TransactionStatus = "refunded" // refund created at the gateway
)

// rank orders statuses so that ledger writes only ever move forward.
// Applying events in any order converges on the highest status seen.
func (s TransactionStatus) rank() int {
	switch s {
	case TransactionStatusCreated:
		return 0
	case TransactionStatusFailed:
		return 1
	case TransactionStatusCaptured:
		return 2
	case TransactionStatusRefunded:
		return 3
	default:
		return -1
	}
}

func (s TransactionStatus) Valid() bool { return s.rank() >= 0 }

// CanMoveTo reports whether a row in status s may be rewritten to next.
// Rewriting to the same status is allowed so repeated events stay idempotent.
func (s TransactionStatus) CanMoveTo(next TransactionStatus) bool {
	return s.Valid() && next.Valid() && s.rank() <= next.rank()
}

// UpdatableFrom lists the statuses a row may currently hold for a write to
// target to apply.
func UpdatableFrom(target TransactionStatus) []TransactionStatus {
	all := []TransactionStatus{
		TransactionStatusCreated,
		TransactionStatusFailed,
		TransactionStatusCaptured,
		TransactionStatusRefunded,
	}
	out := make([]TransactionStatus, 0, len(all))
	for _, s := range all {
		if s.CanMoveTo(target) {
			out = append(out, s)
		}
	}
	return out
}

// Error reasons stored on failed transactions.
const (
	ReasonSignatureMismatch = "signature_mismatch"
)

// TransactionError mirrors the gateway's error fields for a failed attempt.
type TransactionError struct {
	Code        string
	Description string
	Source      string
	Step        string
	Reason      string
}

// Refund holds what the gateway reported when a refund was created.
type Refund struct {
	ID          string
	AmountMinor int64
	Status      string
}

// Transaction is a ledger row: one gateway order and what happened to it.
// OrderID, UserID, AmountMinor, Currency, PlanKey and BillingCycle are fixed
// at creation.
type Transaction struct {
	ID           string // UUID
	UserID       string
	OrderID      string // gateway order id, unique
	Receipt      string
	Status       TransactionStatus
	AmountMinor  int64 // paise
	Currency     string
	PlanKey      string
	PlanName     string
	BillingCycle BillingCycle

	PaymentID     string
	Signature     string
	PaymentMethod string
	Email         string
	Contact       string

	Error  TransactionError
	Refund Refund

	SubscriptionID *string
	Metadata       map[string]any

	PaidAt     *time.Time
	RefundedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AmountMajor returns the amount in whole rupees.
func (t *Transaction) AmountMajor() int64 { return t.AmountMinor / MinorUnitsPerMajor }

// NewTransaction builds the ledger row for a freshly created gateway order.
func NewTransaction(userID string, plan *PricingPlan, cycle BillingCycle, charge Charge, order *GatewayOrder, currency string) (*Transaction, error) {
	if userID == "" || plan.IsZero() || order == nil || order.ID == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Transaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		OrderID:      order.ID,
		Receipt:      order.Receipt,
		Status:       TransactionStatusCreated,
		AmountMinor:  charge.AmountMinor,
		Currency:     currency,
		PlanKey:      plan.PlanKey,
		PlanName:     plan.DisplayName,
		BillingCycle: cycle,
		Metadata: map[string]any{
			"original_amount": charge.OriginalAmountMinor,
			"discount":        charge.DiscountMinor,
			"order_status":    order.Status,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CaptureDetails is the gateway ground truth recorded when a payment is captured.
type CaptureDetails struct {
	PaymentID     string
	Signature     string
	PaymentMethod string
	Email         string
	Contact       string
}

// Transition is the outcome of a conditional ledger write. Applied is false
// when the row was missing or already past the target status.
type Transition struct {
	Applied bool
	From    TransactionStatus
}

// Changed reports whether the write moved the row into a new status.
func (t Transition) Changed(to TransactionStatus) bool {
	return t.Applied && t.From != to
}

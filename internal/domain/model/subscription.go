package model

import (
	"time"

	"github.com/google/uuid"

	"saas-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired" // set by an external expiry job
)

// Subscription is a user's paid billing period. At most one row per user is
// active; a new active subscription replaces the previous one in place.
type Subscription struct {
	ID                    string // UUID
	UserID                string
	PlanKey               string
	PlanName              string
	AmountMinor           int64
	Currency              string
	BillingCycle          BillingCycle
	Status                SubscriptionStatus
	OrderID               string
	PaymentID             string
	GatewaySubscriptionID string
	StartDate             time.Time
	EndDate               time.Time
	NextBillingDate       time.Time
	PaymentMethod         string
	TransactionID         string
	AutoRenew             bool
	Metadata              map[string]any // discount, coupon, original_amount
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewActiveSubscription derives the billing period for a captured transaction
// starting at now.
func NewActiveSubscription(tx *Transaction, now time.Time) (*Subscription, error) {
	if tx == nil || tx.UserID == "" || tx.OrderID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if tx.Status != TransactionStatusCaptured {
		return nil, domain.ErrPaymentNotCaptured
	}
	end := tx.BillingCycle.PeriodEnd(now)
	meta := map[string]any{}
	for _, k := range []string{"original_amount", "discount", "coupon"} {
		if v, ok := tx.Metadata[k]; ok {
			meta[k] = v
		}
	}
	return &Subscription{
		ID:              uuid.NewString(),
		UserID:          tx.UserID,
		PlanKey:         tx.PlanKey,
		PlanName:        tx.PlanName,
		AmountMinor:     tx.AmountMinor,
		Currency:        tx.Currency,
		BillingCycle:    tx.BillingCycle,
		Status:          SubscriptionStatusActive,
		OrderID:         tx.OrderID,
		PaymentID:       tx.PaymentID,
		StartDate:       now,
		EndDate:         end,
		NextBillingDate: end,
		PaymentMethod:   tx.PaymentMethod,
		TransactionID:   tx.ID,
		AutoRenew:       true,
		Metadata:        meta,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

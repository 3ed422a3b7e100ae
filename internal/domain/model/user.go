package model

import "time"

// UserBilling is the denormalized billing state kept on the user profile.
// Feature gating elsewhere reads it instead of the subscription table, so it
// is always written in the same database transaction as the subscription.
type UserBilling struct {
	UserID              string
	SubscriptionPlan    string
	SubscriptionStatus  SubscriptionStatus
	SubscriptionEndDate *time.Time
	UpdatedAt           time.Time
}

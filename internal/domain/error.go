package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrUnauthenticated    = errors.New("user not authenticated")

	// Billing
	ErrPlanNotFound            = fmt.Errorf("pricing plan not found: %w", ErrNotFound)
	ErrTransactionNotFound     = fmt.Errorf("transaction not found: %w", ErrNotFound)
	ErrNoActiveSubscription    = fmt.Errorf("no active subscription: %w", ErrNotFound)
	ErrUnpurchasablePlan       = errors.New("plan is not purchasable online")
	ErrAmountTooLow            = errors.New("amount below gateway minimum")
	ErrInvalidBillingCycle     = errors.New("invalid billing cycle")
	ErrPlanMismatch            = errors.New("plan or billing cycle does not match the order")
	ErrSignatureInvalid        = errors.New("payment signature invalid")
	ErrPaymentNotCaptured      = errors.New("payment not captured by gateway")
	ErrTransactionRefunded     = errors.New("transaction already refunded")
	ErrWebhookSignatureInvalid = errors.New("webhook signature invalid")
	ErrMalformedEvent          = errors.New("malformed webhook event")
	ErrGateway                 = errors.New("payment gateway error")
)

// GatewayError describes a failed call to the payment gateway. It always
// matches ErrGateway with errors.Is.
type GatewayError struct {
	Op         string // create_order | fetch_payment | fetch_order_payments
	StatusCode int    // 0 when the request never got a response
	Code       string // provider error code, if any
	Retryable  bool
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gateway %s: status %d %s: %v", e.Op, e.StatusCode, e.Code, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool { return target == ErrGateway }

// IsRetryable reports whether err is a transient gateway failure the caller may retry.
func IsRetryable(err error) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return false
}

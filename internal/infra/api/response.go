package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"gopkg.in/go-playground/validator.v9"

	"saas-billing/internal/domain"
	"saas-billing/internal/infra/logging"
)

// Error codes returned in the envelope. Clients branch on these and on
// retryable, never on message text.
const (
	codeValidation          = "validation_failed"
	codeUnauthenticated     = "unauthenticated"
	codeForbidden           = "forbidden"
	codeNotFound            = "not_found"
	codePlanNotFound        = "plan_not_found"
	codeTransactionNotFound = "transaction_not_found"
	codeNoSubscription      = "no_active_subscription"
	codeUnpurchasable       = "unpurchasable_plan"
	codeAmountTooLow        = "amount_too_low"
	codeInvalidCycle        = "invalid_billing_cycle"
	codePlanMismatch        = "plan_mismatch"
	codeSignatureMismatch   = "signature_mismatch"
	codeNotCaptured         = "payment_not_captured"
	codeRefunded            = "transaction_refunded"
	codeWebhookSignature    = "webhook_signature_invalid"
	codeMalformedEvent      = "malformed_event"
	codeConflict            = "conflict"
	codeGateway             = "gateway_error"
	codeTimeout             = "timeout"
	codeInternal            = "internal"
)

var (
	errUnauthorized  = errors.New("authentication required")
	errForbidden     = errors.New("forbidden")
	errRouteNotFound = fmt.Errorf("route not found: %w", domain.ErrNotFound)
)

type envelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code      string   `json:"code"`
	Retryable bool     `json:"retryable"`
	Fields    []string `json:"fields,omitempty"`
}

// nullData renders "data": null explicitly, for "no active subscription".
type nullData struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

type problem struct {
	status    int
	code      string
	message   string
	retryable bool
}

func classify(err error) problem {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, errUnauthorized), errors.Is(err, domain.ErrUnauthenticated):
		return problem{http.StatusUnauthorized, codeUnauthenticated, "User not authenticated", false}
	case errors.Is(err, errForbidden):
		return problem{http.StatusForbidden, codeForbidden, "Forbidden", false}
	case errors.As(err, &verrs), errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, errBadBody):
		return problem{http.StatusBadRequest, codeValidation, "Invalid request", false}
	case errors.Is(err, domain.ErrInvalidBillingCycle):
		return problem{http.StatusBadRequest, codeInvalidCycle, "Billing cycle must be monthly or yearly", false}
	case errors.Is(err, domain.ErrUnpurchasablePlan):
		return problem{http.StatusBadRequest, codeUnpurchasable, "Plan cannot be purchased online", false}
	case errors.Is(err, domain.ErrAmountTooLow):
		return problem{http.StatusBadRequest, codeAmountTooLow, "Amount below the minimum charge", false}
	case errors.Is(err, domain.ErrPlanMismatch):
		return problem{http.StatusBadRequest, codePlanMismatch, "Plan or billing cycle does not match the order", false}
	case errors.Is(err, domain.ErrSignatureInvalid):
		return problem{http.StatusBadRequest, codeSignatureMismatch, "Payment verification failed - Invalid signature", false}
	case errors.Is(err, domain.ErrPaymentNotCaptured):
		return problem{http.StatusBadRequest, codeNotCaptured, "Payment not captured", false}
	case errors.Is(err, domain.ErrWebhookSignatureInvalid):
		return problem{http.StatusBadRequest, codeWebhookSignature, "Invalid webhook signature", false}
	case errors.Is(err, domain.ErrMalformedEvent):
		return problem{http.StatusBadRequest, codeMalformedEvent, "Malformed webhook event", false}
	case errors.Is(err, domain.ErrTransactionRefunded):
		return problem{http.StatusConflict, codeRefunded, "Transaction already refunded", false}
	case errors.Is(err, domain.ErrPlanNotFound):
		return problem{http.StatusNotFound, codePlanNotFound, "Pricing plan not found", false}
	case errors.Is(err, domain.ErrTransactionNotFound):
		return problem{http.StatusNotFound, codeTransactionNotFound, "Transaction not found", false}
	case errors.Is(err, domain.ErrNoActiveSubscription):
		return problem{http.StatusNotFound, codeNoSubscription, "No active subscription found", false}
	case errors.Is(err, domain.ErrNotFound):
		return problem{http.StatusNotFound, codeNotFound, "Not found", false}
	case errors.Is(err, domain.ErrAlreadyExists):
		return problem{http.StatusConflict, codeConflict, "Conflicting request", true}
	case errors.Is(err, domain.ErrGateway):
		return problem{http.StatusBadGateway, codeGateway, "Payment gateway unavailable", domain.IsRetryable(err)}
	case errors.Is(err, context.DeadlineExceeded):
		return problem{http.StatusGatewayTimeout, codeTimeout, "Request timed out", true}
	default:
		return problem{http.StatusInternalServerError, codeInternal, "Internal error", true}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	p := classify(err)
	if p.status >= http.StatusInternalServerError && logger != nil {
		l := logging.With(r.Context(), logger)
		l.Error().Err(err).Str("path", r.URL.Path).Str("code", p.code).Msg("request failed")
	}
	body := &errorBody{Code: p.code, Retryable: p.retryable}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			body.Fields = append(body.Fields, fe.Field())
		}
	}
	writeJSON(w, p.status, envelope{Message: p.message, Error: body})
}

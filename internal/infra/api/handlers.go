package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/oapi-codegen/runtime"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/infra/logging"
	"saas-billing/internal/infra/metrics"
	"saas-billing/internal/usecase"
)

const (
	headerWebhookSignature = "X-Razorpay-Signature"
	headerWebhookEventID   = "X-Razorpay-Event-Id"
)

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.orders.CreateOrder(r.Context(), userIDFrom(r.Context()), req.PlanKey, model.BillingCycle(req.BillingCycle))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	metrics.IncPayment(string(model.TransactionStatusCreated))
	writeOK(w, "", toOrderView(res))
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req verifyPaymentRequest
	if err := s.decode(w, r, &req); err != nil {
		metrics.ObserveVerify("fail", "bad_request", time.Since(start))
		writeError(w, r, s.log, err)
		return
	}
	ctx := logging.WithOrderID(r.Context(), req.OrderID)
	res, err := s.verify.Verify(ctx, usecase.VerifyInput{
		UserID:       userIDFrom(ctx),
		OrderID:      req.OrderID,
		PaymentID:    req.PaymentID,
		Signature:    req.Signature,
		PlanKey:      req.PlanKey,
		BillingCycle: model.BillingCycle(req.BillingCycle),
	})
	if err != nil {
		metrics.ObserveVerify("fail", verifyReason(err), time.Since(start))
		writeError(w, r, s.log, err)
		return
	}
	metrics.ObserveVerify("ok", "", time.Since(start))
	if res.FirstCapture {
		metrics.IncPayment(string(model.TransactionStatusCaptured))
		metrics.AddPaymentRevenue(res.Transaction.Currency, res.Transaction.AmountMinor)
		metrics.IncSubscriptionTransition(model.SubscriptionStatusActive)
	}
	writeOK(w, "Payment verified successfully", verifyView{
		Subscription: toSubscriptionView(res.Subscription),
		Transaction:  toTransactionView(res.Transaction),
	})
}

func verifyReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrSignatureInvalid):
		return "signature_mismatch"
	case errors.Is(err, domain.ErrPlanMismatch):
		return "plan_mismatch"
	case errors.Is(err, domain.ErrPaymentNotCaptured):
		return "not_captured"
	case errors.Is(err, domain.ErrTransactionRefunded):
		return "refunded"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrGateway):
		return "gateway"
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidBillingCycle), errors.Is(err, domain.ErrUnauthenticated):
		return "bad_request"
	default:
		return "internal"
	}
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subs.GetActive(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if sub == nil {
		writeJSON(w, http.StatusOK, nullData{Success: true, Message: "No active subscription found"})
		return
	}
	writeOK(w, "", toSubscriptionView(sub))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.History(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, "", toTransactionViews(txs))
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subs.Cancel(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	metrics.IncSubscriptionTransition(model.SubscriptionStatusCancelled)
	writeOK(w, "Subscription cancelled successfully", toSubscriptionView(sub))
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.plans.List(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, "", toPlanViews(quotes))
}

// handleWebhook must see the body exactly as sent; the signature covers raw bytes.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		metrics.IncWebhookEvent("unknown", "rejected")
		writeError(w, r, s.log, errBadBody)
		return
	}
	res, err := s.webhooks.Handle(r.Context(), body, r.Header.Get(headerWebhookSignature), r.Header.Get(headerWebhookEventID))
	if err != nil {
		result := "error"
		if errors.Is(err, domain.ErrWebhookSignatureInvalid) || errors.Is(err, domain.ErrMalformedEvent) {
			result = "rejected"
		}
		metrics.IncWebhookEvent("unknown", result)
		writeError(w, r, s.log, err)
		return
	}

	metrics.IncWebhookEvent(res.Event, res.Outcome)
	if res.Status != "" {
		metrics.IncPayment(string(res.Status))
		if res.Status == model.TransactionStatusCaptured && res.Transaction != nil {
			metrics.AddPaymentRevenue(res.Transaction.Currency, res.Transaction.AmountMinor)
		}
	}
	if res.Revoked != nil {
		metrics.IncSubscriptionTransition(model.SubscriptionStatusCancelled)
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

func (s *Server) handleAdminPayments(w http.ResponseWriter, r *http.Request) {
	var limit, offset int
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &limit); err != nil {
		writeError(w, r, s.log, errors.Join(domain.ErrInvalidArgument, err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", q, &offset); err != nil {
		writeError(w, r, s.log, errors.Join(domain.ErrInvalidArgument, err))
		return
	}
	recs, err := s.ledger.AdminRecords(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeOK(w, "", toAdminRecordViews(recs))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			l := logging.With(r.Context(), s.log)
			l.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, envelope{Message: "database unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "ok"})
}

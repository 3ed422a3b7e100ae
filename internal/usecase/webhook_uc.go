package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

// Gateway event types the reconciler acts on.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventRefundCreated   = "refund.created"
)

// Webhook outcomes, also used as metric labels.
const (
	WebhookApplied   = "applied"
	WebhookNoop      = "noop"
	WebhookDuplicate = "duplicate"
	WebhookIgnored   = "ignored"
)

type WebhookUseCase interface {
	// Handle authenticates a raw gateway delivery and applies it to the ledger.
	// The body must be exactly the bytes received.
	Handle(ctx context.Context, body []byte, signature, eventID string) (*WebhookResult, error)
}

type WebhookResult struct {
	Event   string
	Outcome string
	// Set when the ledger moved into a new status.
	Transaction *model.Transaction
	Status      model.TransactionStatus
	// Revoked is the subscription cancelled by a full refund, if any.
	Revoked *model.Subscription
}

// webhookEvent is the subset of the gateway envelope we read.
type webhookEvent struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment *struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Refund *struct {
			Entity refundEntity `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID               string  `json:"id"`
	OrderID          string  `json:"order_id"`
	Status           string  `json:"status"`
	Amount           int64   `json:"amount"`
	Currency         string  `json:"currency"`
	Method           string  `json:"method"`
	Email            string  `json:"email"`
	Contact          string  `json:"contact"`
	ErrorCode        *string `json:"error_code"`
	ErrorDescription *string `json:"error_description"`
	ErrorSource      *string `json:"error_source"`
	ErrorStep        *string `json:"error_step"`
	ErrorReason      *string `json:"error_reason"`
}

type refundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

type webhookUC struct {
	transactions repository.TransactionRepository
	subs         SubscriptionUseCase
	events       repository.WebhookEventStore
	tm           repository.TransactionManager
	secret       string
	log          *zerolog.Logger
}

// NewWebhookUseCase builds the reconciler. events may be nil.
func NewWebhookUseCase(
	transactions repository.TransactionRepository,
	subs SubscriptionUseCase,
	events repository.WebhookEventStore,
	tm repository.TransactionManager,
	webhookSecret string,
	logger *zerolog.Logger,
) *webhookUC {
	return &webhookUC{
		transactions: transactions,
		subs:         subs,
		events:       events,
		tm:           tm,
		secret:       webhookSecret,
		log:          logger,
	}
}

func (u *webhookUC) Handle(ctx context.Context, body []byte, signature, eventID string) (*WebhookResult, error) {
	if !VerifyWebhookSignature(u.secret, body, signature) {
		return nil, domain.ErrWebhookSignatureInvalid
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.Event == "" {
		return nil, domain.ErrMalformedEvent
	}
	log := u.log.With().Str("event", ev.Event).Str("event_id", eventID).Logger()

	if eventID != "" && u.events != nil {
		seen, err := u.events.Seen(ctx, eventID)
		if err != nil {
			log.Warn().Err(err).Msg("webhook dedup lookup failed; processing anyway")
		} else if seen {
			return &WebhookResult{Event: ev.Event, Outcome: WebhookDuplicate}, nil
		}
	}

	var (
		res *WebhookResult
		err error
	)
	switch ev.Event {
	case EventPaymentCaptured:
		res, err = u.applyCaptured(ctx, &ev)
	case EventPaymentFailed:
		res, err = u.applyFailed(ctx, &ev)
	case EventRefundCreated:
		res, err = u.applyRefund(ctx, &ev)
	default:
		log.Info().Msg("ignoring unhandled webhook event")
		return &WebhookResult{Event: ev.Event, Outcome: WebhookIgnored}, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to apply webhook event")
		return nil, err
	}

	if eventID != "" && u.events != nil {
		if err := u.events.Remember(ctx, eventID); err != nil {
			log.Warn().Err(err).Msg("failed to remember webhook event")
		}
	}
	log.Info().Str("outcome", res.Outcome).Str("status", string(res.Status)).Msg("webhook processed")
	return res, nil
}

func (u *webhookUC) applyCaptured(ctx context.Context, ev *webhookEvent) (*WebhookResult, error) {
	p, err := paymentOf(ev)
	if err != nil {
		return nil, err
	}
	if p.OrderID == "" {
		return nil, fmt.Errorf("%w: payment without order_id", domain.ErrMalformedEvent)
	}
	tr, err := u.transactions.MarkCaptured(ctx, repository.NoTX, p.OrderID, model.CaptureDetails{
		PaymentID:     p.ID,
		PaymentMethod: p.Method,
		Email:         p.Email,
		Contact:       p.Contact,
	}, eventTime(ev))
	if err != nil {
		return nil, err
	}
	return u.result(ctx, ev.Event, p.OrderID, tr, model.TransactionStatusCaptured)
}

func (u *webhookUC) applyFailed(ctx context.Context, ev *webhookEvent) (*WebhookResult, error) {
	p, err := paymentOf(ev)
	if err != nil {
		return nil, err
	}
	if p.OrderID == "" {
		return nil, fmt.Errorf("%w: payment without order_id", domain.ErrMalformedEvent)
	}
	tr, err := u.transactions.MarkFailed(ctx, repository.NoTX, p.OrderID, p.ID, model.TransactionError{
		Code:        deref(p.ErrorCode),
		Description: deref(p.ErrorDescription),
		Source:      deref(p.ErrorSource),
		Step:        deref(p.ErrorStep),
		Reason:      deref(p.ErrorReason),
	})
	if err != nil {
		return nil, err
	}
	return u.result(ctx, ev.Event, p.OrderID, tr, model.TransactionStatusFailed)
}

// applyRefund records the refund and, for a full refund, revokes the
// subscription the transaction paid for. Both happen in one transaction.
func (u *webhookUC) applyRefund(ctx context.Context, ev *webhookEvent) (*WebhookResult, error) {
	if ev.Payload.Refund == nil {
		return nil, fmt.Errorf("%w: missing refund entity", domain.ErrMalformedEvent)
	}
	r := ev.Payload.Refund.Entity
	paymentID := r.PaymentID
	if paymentID == "" && ev.Payload.Payment != nil {
		paymentID = ev.Payload.Payment.Entity.ID
	}
	if paymentID == "" {
		return nil, fmt.Errorf("%w: refund without payment_id", domain.ErrMalformedEvent)
	}

	res := &WebhookResult{Event: ev.Event, Outcome: WebhookNoop}
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// The signed payload's order id is authoritative; the payment id
		// lookup covers refund events that omit the payment entity.
		var (
			t   *model.Transaction
			err error = domain.ErrTransactionNotFound
		)
		if ev.Payload.Payment != nil && ev.Payload.Payment.Entity.OrderID != "" {
			t, err = u.transactions.FindByOrderID(ctx, tx, ev.Payload.Payment.Entity.OrderID)
		}
		if errors.Is(err, domain.ErrNotFound) {
			t, err = u.transactions.FindByPaymentID(ctx, tx, paymentID)
		}
		if errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Str("payment_id", paymentID).Msg("refund for unknown payment")
			return nil
		}
		if err != nil {
			return err
		}
		tr, err := u.transactions.MarkRefunded(ctx, tx, t.OrderID, paymentID, model.Refund{
			ID:          r.ID,
			AmountMinor: r.Amount,
			Status:      r.Status,
		}, eventTime(ev))
		if err != nil {
			return err
		}
		if !tr.Applied {
			return nil
		}
		res.Outcome = WebhookApplied
		if tr.Changed(model.TransactionStatusRefunded) {
			res.Status = model.TransactionStatusRefunded
		}
		t.Status = model.TransactionStatusRefunded
		t.Refund = model.Refund{ID: r.ID, AmountMinor: r.Amount, Status: r.Status}
		res.Transaction = t

		if r.Amount < t.AmountMinor {
			return nil
		}
		revoked, err := u.subs.Revoke(ctx, tx, t)
		if err != nil {
			return err
		}
		res.Revoked = revoked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (u *webhookUC) result(ctx context.Context, event, orderID string, tr model.Transition, to model.TransactionStatus) (*WebhookResult, error) {
	res := &WebhookResult{Event: event, Outcome: WebhookNoop}
	if !tr.Applied {
		return res, nil
	}
	res.Outcome = WebhookApplied
	if !tr.Changed(to) {
		return res, nil
	}
	res.Status = to
	t, err := u.transactions.FindByOrderID(ctx, repository.NoTX, orderID)
	if err != nil {
		// The write already committed; the row is only needed for reporting.
		u.log.Warn().Err(err).Str("order_id", orderID).Msg("failed to reload transaction")
		return res, nil
	}
	res.Transaction = t
	return res, nil
}

func paymentOf(ev *webhookEvent) (*paymentEntity, error) {
	if ev.Payload.Payment == nil || ev.Payload.Payment.Entity.ID == "" {
		return nil, fmt.Errorf("%w: missing payment entity", domain.ErrMalformedEvent)
	}
	return &ev.Payload.Payment.Entity, nil
}

func eventTime(ev *webhookEvent) time.Time {
	if ev.CreatedAt > 0 {
		return time.Unix(ev.CreatedAt, 0).UTC()
	}
	return time.Now().UTC()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/adapter"
	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/infra/logging"
)

// Compile-time check
var _ VerifyUseCase = (*verifyUC)(nil)

type VerifyUseCase interface {
	// Verify checks a client checkout result and, when both the signature and
	// the gateway agree the money moved, activates the subscription.
	Verify(ctx context.Context, in VerifyInput) (*VerifyResult, error)
}

type VerifyInput struct {
	UserID       string
	OrderID      string
	PaymentID    string
	Signature    string
	PlanKey      string
	BillingCycle model.BillingCycle
}

type VerifyResult struct {
	Subscription *model.Subscription
	Transaction  *model.Transaction
	// FirstCapture is false when the ledger already held the capture, e.g. a
	// webhook got there first or the client retried.
	FirstCapture bool
}

type verifyUC struct {
	transactions repository.TransactionRepository
	subs         SubscriptionUseCase
	subRepo      repository.SubscriptionRepository
	gateway      adapter.PaymentGateway
	tm           repository.TransactionManager
	keySecret    string
	log          *zerolog.Logger
	dev          bool
}

func NewVerifyUseCase(
	transactions repository.TransactionRepository,
	subs SubscriptionUseCase,
	subRepo repository.SubscriptionRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	keySecret string,
	logger *zerolog.Logger,
	dev bool,
) *verifyUC {
	return &verifyUC{
		transactions: transactions,
		subs:         subs,
		subRepo:      subRepo,
		gateway:      gateway,
		tm:           tm,
		keySecret:    keySecret,
		log:          logger,
		dev:          dev,
	}
}

func (u *verifyUC) Verify(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	defer logging.TraceDuration(u.log, "VerifyUC.Verify")()

	if in.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	in.OrderID = strings.TrimSpace(in.OrderID)
	in.PaymentID = strings.TrimSpace(in.PaymentID)
	if in.OrderID == "" || in.PaymentID == "" || in.Signature == "" || in.PlanKey == "" {
		return nil, domain.ErrInvalidArgument
	}
	cycle, err := model.ParseBillingCycle(string(in.BillingCycle))
	if err != nil {
		return nil, err
	}
	log := logging.With(logging.WithOrderID(logging.WithUserID(ctx, in.UserID), in.OrderID), u.log)

	// Another user's order id is indistinguishable from a missing one.
	t, err := u.transactions.FindByOrderIDForUser(ctx, repository.NoTX, in.OrderID, in.UserID)
	if err != nil {
		return nil, err
	}

	if !VerifyPaymentSignature(u.keySecret, in.OrderID, in.PaymentID, in.Signature) {
		// The submitted payment id is unproven here and stays out of the row;
		// refunds resolve transactions by payment id.
		tr, err := u.transactions.MarkFailed(ctx, repository.NoTX, in.OrderID, "", model.TransactionError{
			Code:        "SIGNATURE_MISMATCH",
			Description: "payment signature verification failed",
			Source:      "client",
			Step:        "payment_verification",
			Reason:      model.ReasonSignatureMismatch,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to record signature mismatch")
			return nil, err
		}
		log.Warn().
			Str("payment_id", in.PaymentID).
			Str("signature", logging.Redact(in.Signature, u.dev)).
			Bool("recorded", tr.Changed(model.TransactionStatusFailed)).
			Msg("payment signature mismatch")
		return nil, domain.ErrSignatureInvalid
	}

	// The ledger row is authoritative for what was bought.
	if t.PlanKey != in.PlanKey || t.BillingCycle != cycle {
		log.Warn().Str("plan_key", in.PlanKey).Str("billing_cycle", string(cycle)).Msg("verification does not match order")
		return nil, domain.ErrPlanMismatch
	}
	if t.Status == model.TransactionStatusRefunded {
		return nil, domain.ErrTransactionRefunded
	}

	payment, err := u.gateway.FetchPayment(ctx, in.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("fetch payment: %w", err)
	}
	if payment.OrderID != t.OrderID || payment.AmountMinor != t.AmountMinor || !payment.Settled() {
		log.Warn().
			Str("payment_id", payment.ID).
			Str("gateway_status", payment.Status).
			Str("gateway_order_id", payment.OrderID).
			Int64("gateway_amount_minor", payment.AmountMinor).
			Msg("gateway does not confirm payment")
		return nil, domain.ErrPaymentNotCaptured
	}

	var res VerifyResult
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		cur, err := u.transactions.FindByOrderIDForUser(ctx, tx, in.OrderID, in.UserID)
		if err != nil {
			return err
		}
		if cur.Status == model.TransactionStatusRefunded {
			return domain.ErrTransactionRefunded
		}

		now := time.Now().UTC()
		tr, err := u.transactions.MarkCaptured(ctx, tx, in.OrderID, model.CaptureDetails{
			PaymentID:     payment.ID,
			Signature:     in.Signature,
			PaymentMethod: payment.Method,
			Email:         payment.Email,
			Contact:       payment.Contact,
		}, now)
		if err != nil {
			return err
		}
		if !tr.Applied {
			return domain.ErrTransactionRefunded
		}
		res.FirstCapture = tr.Changed(model.TransactionStatusCaptured)

		cur.Status = model.TransactionStatusCaptured
		cur.PaymentID = payment.ID
		cur.Signature = in.Signature
		cur.PaymentMethod = payment.Method
		cur.Email = payment.Email
		cur.Contact = payment.Contact
		if cur.PaidAt == nil {
			cur.PaidAt = &now
		}

		// A capture that already activated never starts another period, even
		// after a later purchase rewrote the subscription row. Only a first
		// capture, or one recorded by the webhook or the reconciler with no
		// subscription yet, may activate.
		if !res.FirstCapture && cur.SubscriptionID != nil && *cur.SubscriptionID != "" {
			sub, err := u.subRepo.FindByID(ctx, tx, *cur.SubscriptionID)
			if err != nil {
				return err
			}
			res.Subscription = sub
			res.Transaction = cur
			return nil
		}

		sub, err := u.subs.Activate(ctx, tx, cur)
		if err != nil {
			return err
		}
		cur.SubscriptionID = &sub.ID
		res.Subscription = sub
		res.Transaction = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("payment_id", payment.ID).
		Str("subscription_id", res.Subscription.ID).
		Bool("first_capture", res.FirstCapture).
		Msg("payment verified")
	return &res, nil
}

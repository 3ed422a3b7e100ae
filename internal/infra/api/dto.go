package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"gopkg.in/go-playground/validator.v9"

	"saas-billing/internal/domain/model"
	"saas-billing/internal/usecase"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("malformed request body")

type createOrderRequest struct {
	PlanKey      string `json:"planKey" validate:"required,max=64"`
	BillingCycle string `json:"billingCycle" validate:"required,max=16"`
}

type verifyPaymentRequest struct {
	OrderID      string `json:"razorpay_order_id" validate:"required,max=64"`
	PaymentID    string `json:"razorpay_payment_id" validate:"required,max=64"`
	Signature    string `json:"razorpay_signature" validate:"required,max=256"`
	PlanKey      string `json:"planKey" validate:"required,max=64"`
	BillingCycle string `json:"billingCycle" validate:"required,max=16"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errBadBody
		}
		return errors.Join(errBadBody, err)
	}
	return s.validate.Struct(dst)
}

type orderView struct {
	OrderID       string `json:"orderId"`
	Amount        int64  `json:"amount"`
	AmountInPaise int64  `json:"amountInPaise"`
	Currency      string `json:"currency"`
	KeyID         string `json:"keyId"`
	PlanName      string `json:"planName"`
	PlanKey       string `json:"planKey"`
	BillingCycle  string `json:"billingCycle"`
	TransactionID string `json:"transactionId"`
}

func toOrderView(o *usecase.OrderResult) orderView {
	return orderView{
		OrderID:       o.OrderID,
		Amount:        o.AmountMajor,
		AmountInPaise: o.AmountMinor,
		Currency:      o.Currency,
		KeyID:         o.KeyID,
		PlanName:      o.PlanName,
		PlanKey:       o.PlanKey,
		BillingCycle:  string(o.BillingCycle),
		TransactionID: o.TransactionID,
	}
}

type subscriptionView struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	PlanKey         string    `json:"planKey"`
	PlanName        string    `json:"planName"`
	Amount          int64     `json:"amount"`
	AmountInPaise   int64     `json:"amountInPaise"`
	Currency        string    `json:"currency"`
	BillingCycle    string    `json:"billingCycle"`
	Status          string    `json:"status"`
	OrderID         string    `json:"orderId"`
	PaymentID       string    `json:"paymentId,omitempty"`
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	NextBillingDate time.Time `json:"nextBillingDate"`
	PaymentMethod   string    `json:"paymentMethod,omitempty"`
	TransactionID   string    `json:"transactionId"`
	AutoRenew       bool      `json:"autoRenew"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func toSubscriptionView(s *model.Subscription) *subscriptionView {
	if s == nil {
		return nil
	}
	return &subscriptionView{
		ID:              s.ID,
		UserID:          s.UserID,
		PlanKey:         s.PlanKey,
		PlanName:        s.PlanName,
		Amount:          s.AmountMinor / model.MinorUnitsPerMajor,
		AmountInPaise:   s.AmountMinor,
		Currency:        s.Currency,
		BillingCycle:    string(s.BillingCycle),
		Status:          string(s.Status),
		OrderID:         s.OrderID,
		PaymentID:       s.PaymentID,
		StartDate:       s.StartDate,
		EndDate:         s.EndDate,
		NextBillingDate: s.NextBillingDate,
		PaymentMethod:   s.PaymentMethod,
		TransactionID:   s.TransactionID,
		AutoRenew:       s.AutoRenew,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

type transactionErrorView struct {
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
	Step        string `json:"step,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type refundView struct {
	ID            string `json:"id"`
	AmountInPaise int64  `json:"amountInPaise"`
	Status        string `json:"status,omitempty"`
}

// transactionView never carries the checkout signature.
type transactionView struct {
	ID             string                `json:"id"`
	UserID         string                `json:"userId"`
	OrderID        string                `json:"orderId"`
	Receipt        string                `json:"receipt,omitempty"`
	Status         string                `json:"status"`
	Amount         int64                 `json:"amount"`
	AmountInPaise  int64                 `json:"amountInPaise"`
	Currency       string                `json:"currency"`
	PlanKey        string                `json:"planKey"`
	PlanName       string                `json:"planName"`
	BillingCycle   string                `json:"billingCycle"`
	PaymentID      string                `json:"paymentId,omitempty"`
	PaymentMethod  string                `json:"paymentMethod,omitempty"`
	Email          string                `json:"email,omitempty"`
	Contact        string                `json:"contact,omitempty"`
	Error          *transactionErrorView `json:"error,omitempty"`
	Refund         *refundView           `json:"refund,omitempty"`
	SubscriptionID *string               `json:"subscriptionId,omitempty"`
	PaidAt         *time.Time            `json:"paidAt,omitempty"`
	RefundedAt     *time.Time            `json:"refundedAt,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

func toTransactionView(t *model.Transaction) *transactionView {
	if t == nil {
		return nil
	}
	v := &transactionView{
		ID:             t.ID,
		UserID:         t.UserID,
		OrderID:        t.OrderID,
		Receipt:        t.Receipt,
		Status:         string(t.Status),
		Amount:         t.AmountMajor(),
		AmountInPaise:  t.AmountMinor,
		Currency:       t.Currency,
		PlanKey:        t.PlanKey,
		PlanName:       t.PlanName,
		BillingCycle:   string(t.BillingCycle),
		PaymentID:      t.PaymentID,
		PaymentMethod:  t.PaymentMethod,
		Email:          t.Email,
		Contact:        t.Contact,
		SubscriptionID: t.SubscriptionID,
		PaidAt:         t.PaidAt,
		RefundedAt:     t.RefundedAt,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if t.Error != (model.TransactionError{}) {
		v.Error = &transactionErrorView{
			Code:        t.Error.Code,
			Description: t.Error.Description,
			Source:      t.Error.Source,
			Step:        t.Error.Step,
			Reason:      t.Error.Reason,
		}
	}
	if t.Refund.ID != "" {
		v.Refund = &refundView{ID: t.Refund.ID, AmountInPaise: t.Refund.AmountMinor, Status: t.Refund.Status}
	}
	return v
}

func toTransactionViews(ts []*model.Transaction) []*transactionView {
	out := make([]*transactionView, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTransactionView(t))
	}
	return out
}

type verifyView struct {
	Subscription *subscriptionView `json:"subscription"`
	Transaction  *transactionView  `json:"transaction"`
}

type adminRecordView struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	Data      any       `json:"data"`
}

func toAdminRecordViews(recs []model.AdminRecord) []adminRecordView {
	out := make([]adminRecordView, 0, len(recs))
	for _, r := range recs {
		v := adminRecordView{Type: string(r.Kind), CreatedAt: r.CreatedAt}
		if r.Kind == model.RecordKindTransaction {
			v.Data = toTransactionView(r.Transaction)
		} else {
			v.Data = toSubscriptionView(r.Subscription)
		}
		out = append(out, v)
	}
	return out
}

type chargeView struct {
	Amount                int64 `json:"amount"`
	AmountInPaise         int64 `json:"amountInPaise"`
	OriginalAmountInPaise int64 `json:"originalAmountInPaise"`
	DiscountInPaise       int64 `json:"discountInPaise"`
}

type planView struct {
	PlanKey     string      `json:"planKey"`
	DisplayName string      `json:"displayName"`
	Price       string      `json:"price"`
	Purchasable bool        `json:"purchasable"`
	Monthly     *chargeView `json:"monthly,omitempty"`
	Yearly      *chargeView `json:"yearly,omitempty"`
}

func toChargeView(c *model.Charge) *chargeView {
	if c == nil {
		return nil
	}
	return &chargeView{
		Amount:                c.AmountMajor,
		AmountInPaise:         c.AmountMinor,
		OriginalAmountInPaise: c.OriginalAmountMinor,
		DiscountInPaise:       c.DiscountMinor,
	}
}

func toPlanViews(qs []usecase.PlanQuote) []planView {
	out := make([]planView, 0, len(qs))
	for _, q := range qs {
		out = append(out, planView{
			PlanKey:     q.Plan.PlanKey,
			DisplayName: q.Plan.DisplayName,
			Price:       q.Plan.Price,
			Purchasable: q.Purchasable(),
			Monthly:     toChargeView(q.Monthly),
			Yearly:      toChargeView(q.Yearly),
		})
	}
	return out
}

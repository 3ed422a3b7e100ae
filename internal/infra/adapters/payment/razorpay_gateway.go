package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"saas-billing/internal/config"
	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/adapter"
	"saas-billing/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

const (
	opCreateOrder        = "create_order"
	opFetchPayment       = "fetch_payment"
	opFetchOrderPayments = "fetch_order_payments"
)

// RazorpayGateway implements adapter.PaymentGateway against the Razorpay v1 REST API.
type RazorpayGateway struct {
	keyID      string
	keySecret  string
	baseURL    string
	timeout    time.Duration
	maxRetries uint64
	client     *http.Client
	log        *zerolog.Logger

	// newBackOff builds the retry schedule for one call; tests shorten it.
	newBackOff func() backoff.BackOff
}

// NewRazorpayGateway builds a client from the payment.razorpay config section.
func NewRazorpayGateway(cfg config.RazorpayConfig, logger *zerolog.Logger) (*RazorpayGateway, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("razorpay key id and secret are required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.razorpay.com"
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid razorpay base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RazorpayGateway{
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		baseURL:    base,
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{},
		log:        logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}, nil
}

func (g *RazorpayGateway) Name() string  { return "razorpay" }
func (g *RazorpayGateway) KeyID() string { return g.keyID }

type rzpOrder struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type rzpPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Method           string `json:"method"`
	Email            string `json:"email"`
	Contact          string `json:"contact"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	ErrorSource      string `json:"error_source"`
	ErrorStep        string `json:"error_step"`
	ErrorReason      string `json:"error_reason"`
	CreatedAt        int64  `json:"created_at"`
}

func (p rzpPayment) toModel() *model.GatewayPayment {
	return &model.GatewayPayment{
		ID:               p.ID,
		OrderID:          p.OrderID,
		Status:           p.Status,
		AmountMinor:      p.Amount,
		Currency:         p.Currency,
		Method:           p.Method,
		Email:            p.Email,
		Contact:          p.Contact,
		ErrorCode:        p.ErrorCode,
		ErrorDescription: p.ErrorDescription,
		ErrorSource:      p.ErrorSource,
		ErrorStep:        p.ErrorStep,
		ErrorReason:      p.ErrorReason,
		CreatedAt:        time.Unix(p.CreatedAt, 0).UTC(),
	}
}

type rzpError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder calls POST /v1/orders with auto-capture enabled.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, req model.OrderRequest) (*model.GatewayOrder, error) {
	body := map[string]any{
		"amount":          req.AmountMinor,
		"currency":        req.Currency,
		"receipt":         req.Receipt,
		"payment_capture": 1,
	}
	if len(req.Notes) > 0 {
		body["notes"] = req.Notes
	}
	var out rzpOrder
	if err := g.do(ctx, opCreateOrder, http.MethodPost, "/v1/orders", body, &out); err != nil {
		return nil, err
	}
	return &model.GatewayOrder{
		ID:          out.ID,
		AmountMinor: out.Amount,
		Currency:    out.Currency,
		Receipt:     out.Receipt,
		Status:      out.Status,
		CreatedAt:   time.Unix(out.CreatedAt, 0).UTC(),
	}, nil
}

// FetchPayment calls GET /v1/payments/{id}.
func (g *RazorpayGateway) FetchPayment(ctx context.Context, paymentID string) (*model.GatewayPayment, error) {
	if paymentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	var out rzpPayment
	if err := g.do(ctx, opFetchPayment, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &out); err != nil {
		return nil, err
	}
	return out.toModel(), nil
}

// FetchOrderPayments calls GET /v1/orders/{id}/payments.
func (g *RazorpayGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]*model.GatewayPayment, error) {
	if orderID == "" {
		return nil, domain.ErrInvalidArgument
	}
	var out struct {
		Items []rzpPayment `json:"items"`
	}
	if err := g.do(ctx, opFetchOrderPayments, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID)+"/payments", nil, &out); err != nil {
		return nil, err
	}
	payments := make([]*model.GatewayPayment, 0, len(out.Items))
	for _, p := range out.Items {
		payments = append(payments, p.toModel())
	}
	return payments, nil
}

// do runs one logical call with retries. Network failures, 429 and 5xx are
// retried up to maxRetries times; any other status is final.
func (g *RazorpayGateway) do(ctx context.Context, op, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &domain.GatewayError{Op: op, Err: err}
		}
		payload = b
	}

	attempt := 0
	policy := backoff.WithContext(backoff.WithMaxRetries(g.newBackOff(), g.maxRetries), ctx)
	err := backoff.Retry(func() error {
		attempt++
		start := time.Now()
		err := g.attempt(ctx, op, method, path, payload, out)
		switch {
		case err == nil:
			metrics.ObserveGatewayRequest(op, "ok", time.Since(start))
			return nil
		case domain.IsRetryable(err):
			metrics.ObserveGatewayRequest(op, "retry", time.Since(start))
			g.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("gateway call failed, retrying")
			return err
		default:
			metrics.ObserveGatewayRequest(op, "error", time.Since(start))
			return backoff.Permanent(err)
		}
	}, policy)
	if err == nil {
		return nil
	}
	var ge *domain.GatewayError
	if !errors.As(err, &ge) {
		// context cancelled between attempts
		return &domain.GatewayError{Op: op, Err: err}
	}
	return err
}

func (g *RazorpayGateway) attempt(ctx context.Context, op, method, path string, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return &domain.GatewayError{Op: op, Err: err}
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &domain.GatewayError{Op: op, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Retryable: true, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e rzpError
		_ = json.Unmarshal(raw, &e)
		desc := e.Error.Description
		if desc == "" {
			desc = http.StatusText(resp.StatusCode)
		}
		return &domain.GatewayError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Code:       e.Error.Code,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			Err:        errors.New(desc),
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gopkg.in/go-playground/validator.v9"

	"saas-billing/internal/infra/metrics"
	"saas-billing/internal/usecase"
)

// Deps are the use cases the HTTP layer drives.
type Deps struct {
	Orders        usecase.OrderUseCase
	Verify        usecase.VerifyUseCase
	Subscriptions usecase.SubscriptionUseCase
	Ledger        usecase.LedgerUseCase
	Webhooks      usecase.WebhookUseCase
	Plans         *usecase.PlanUseCase
	Auth          *Authenticator
	// Health reports whether the database is reachable. Optional.
	Health func(ctx context.Context) error
}

// Server exposes the billing API over chi.
type Server struct {
	orders   usecase.OrderUseCase
	verify   usecase.VerifyUseCase
	subs     usecase.SubscriptionUseCase
	ledger   usecase.LedgerUseCase
	webhooks usecase.WebhookUseCase
	plans    *usecase.PlanUseCase
	auth     *Authenticator
	health   func(ctx context.Context) error
	validate *validator.Validate
	timeout  time.Duration
	log      *zerolog.Logger
}

func NewServer(d Deps, requestTimeout time.Duration, logger *zerolog.Logger) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Server{
		orders:   d.Orders,
		verify:   d.Verify,
		subs:     d.Subscriptions,
		ledger:   d.Ledger,
		webhooks: d.Webhooks,
		plans:    d.Plans,
		auth:     d.Auth,
		health:   d.Health,
		validate: newValidator(),
		timeout:  requestTimeout,
		log:      logger,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(s.timeout))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/payments", func(r chi.Router) {
		r.Get("/plans", s.handleListPlans)
		r.Post("/webhook", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser(s.auth))
			r.Post("/create-order", s.handleCreateOrder)
			r.Post("/verify-payment", s.handleVerifyPayment)
			r.Get("/subscription", s.handleGetSubscription)
			r.Get("/history", s.handleHistory)
			r.Post("/cancel-subscription", s.handleCancelSubscription)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(RequireUser(s.auth))
		r.With(RequireRole(RoleAdmin, "payments_all")).Get("/payments/all", s.handleAdminPayments)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, nil, errRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{
			Message: "Method not allowed",
			Error:   &errorBody{Code: "method_not_allowed"},
		})
	})
	return r
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.log.Info().Msg("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

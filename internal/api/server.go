// Package api implements the HTTP layer for the license storefront backend.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nk2it/license-store-backend/internal/invoice"
	"github.com/nk2it/license-store-backend/internal/store"
	stripeinternal "github.com/nk2it/license-store-backend/internal/stripe"
	"github.com/nk2it/license-store-backend/internal/verify"
	"github.com/nk2it/license-store-backend/internal/worker"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// BaseURL is the externally visible URL, used in CORS decisions.
	BaseURL string

	// StripeWebhookSecret is the signing secret from the Stripe dashboard.
	StripeWebhookSecret string

	// Env is "production" or "development".
	Env string

	// Demo serves the static catalogue and fakes checkout; set when the
	// server runs without a database.
	Demo bool
}

// Storage is the slice of the store the handlers need. *store.Store satisfies
// it; tests inject a stub. Nil storage is demo mode.
type Storage interface {
	ListProducts(ctx context.Context) ([]store.Product, error)
	GetProduct(ctx context.Context, id string) (store.Product, error)
	CreateOrder(ctx context.Context, p store.CreateOrderParams) (store.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error)
	MarkOrderPaid(ctx context.Context, paymentIntentID string) (store.Order, error)
	MarkOrderPaymentFailed(ctx context.Context, paymentIntentID string) error
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	storage Storage

	// stripe creates PaymentIntents and verifies webhook signatures.
	stripe stripeinternal.Client

	// worker enqueues fulfillment after payment confirmation.
	worker worker.Enqueuer

	// verifier classifies recipient addresses before checkout accepts them.
	verifier *verify.Verifier

	// renderer regenerates invoice PDFs on demand.
	renderer *invoice.Renderer

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(
	storage Storage,
	stripeClient stripeinternal.Client,
	enqueuer worker.Enqueuer,
	verifier *verify.Verifier,
	renderer *invoice.Renderer,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	s := &Server{
		storage:  storage,
		stripe:   stripeClient,
		worker:   enqueuer,
		verifier: verifier,
		renderer: renderer,
		cfg:      cfg,
		logger:   logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", s.handleListProducts)
		r.Post("/checkout", s.handleCheckout)

		// Stripe webhook: no auth (signature verification inside handler).
		r.Post("/webhooks/stripe", s.handleStripeWebhook)

		r.Post("/verify-email", s.handleVerifyEmail)
		r.Post("/verify-email/batch", s.handleVerifyEmailBatch)

		r.Get("/invoices/{orderID}/pdf", s.handleInvoicePDF)
	})

	return r
}

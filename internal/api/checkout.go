package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/nk2it/license-store-backend/internal/store"
	stripeinternal "github.com/nk2it/license-store-backend/internal/stripe"
	"github.com/nk2it/license-store-backend/internal/verify"
)

// ─── POST /api/checkout ───────────────────────────────────────────────────────

type checkoutRequest struct {
	ProductID string `json:"product_id"`
	Email     string `json:"email"`
}

type checkoutResponse struct {
	OrderID string `json:"order_id"`
	// ClientSecret is the Stripe PaymentIntent client_secret. The browser
	// passes this to Stripe.js to render the payment UI and confirm the charge.
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"` // GST-exclusive
}

// handleCheckout verifies the buyer's address, creates a Stripe PaymentIntent
// for the product, and records the pending order.
//
// The address is verified up front: taking a payment we can never deliver a
// license key to is worse than rejecting the checkout, so invalid and
// high-risk addresses are refused before any Stripe call.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decode(w, r, &req) {
		return
	}

	if req.ProductID == "" || req.Email == "" {
		respondErr(w, http.StatusBadRequest, "product_id and email are required")
		return
	}

	v := s.verifier.Verify(r.Context(), req.Email)
	if !v.IsValid || v.Risk == verify.RiskHigh {
		respond(w, http.StatusBadRequest, map[string]any{
			"error":        "email address failed verification",
			"verification": v,
		})
		return
	}

	// ── Demo mode: no database, no Stripe ─────────────────────────────────────
	if s.storage == nil {
		respond(w, http.StatusOK, checkoutResponse{
			OrderID:      "demo-ORDER-1234",
			ClientSecret: "demo_client_secret",
		})
		return
	}

	product, err := s.storage.GetProduct(r.Context(), req.ProductID)
	if errors.Is(err, sql.ErrNoRows) {
		respondErr(w, http.StatusNotFound, "unknown product")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get product: %w", err))
		return
	}

	pi, err := s.stripe.CreatePaymentIntent(r.Context(), stripeinternal.CreatePaymentIntentParams{
		AmountCents: product.PriceCents,
		Currency:    "aud",
		Email:       v.Email,
		Metadata: map[string]string{
			"product_id": product.ID,
		},
	})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("create payment intent: %w", err))
		return
	}

	order, err := s.storage.CreateOrder(r.Context(), store.CreateOrderParams{
		Email:               v.Email,
		ProductID:           product.ID,
		AmountCents:         product.PriceCents,
		StripePaymentIntent: pi.ID,
	})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("create order: %w", err))
		return
	}

	respond(w, http.StatusOK, checkoutResponse{
		OrderID:      order.ID.String(),
		ClientSecret: pi.ClientSecret,
		AmountCents:  order.AmountCents,
	})
}

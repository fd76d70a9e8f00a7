package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/nk2it/license-store-backend/internal/store"
	stripeinternal "github.com/nk2it/license-store-backend/internal/stripe"
)

// ─── POST /api/webhooks/stripe ────────────────────────────────────────────────

// handleStripeWebhook is the entry point for all Stripe webhook deliveries.
//
// Stripe delivers events at-least-once and may retry on non-2xx responses.
// The handler must be idempotent: MarkOrderPaid's already-paid guard makes a
// replayed payment_intent.succeeded a no-op ack.
//
// The only events acted on are:
//   - payment_intent.succeeded      → mark order paid + enqueue fulfillment
//   - payment_intent.payment_failed → mark order payment_failed (informational)
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		respondErr(w, http.StatusServiceUnavailable, "webhooks unavailable in demo mode")
		return
	}

	// Read the raw body before anything else so the signature check runs
	// against the exact bytes Stripe signed.
	r.Body = http.MaxBytesReader(w, r.Body, 65536) // 64 KB is generous for any Stripe event
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "could not read request body")
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	event, err := s.stripe.VerifyWebhook(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Warn("webhook: invalid signature", "error", err,
			"request_id", middleware.GetReqID(r.Context()))
		respondErr(w, http.StatusBadRequest, "invalid webhook signature")
		return
	}

	var handlerErr error

	switch event.Type {
	case "payment_intent.succeeded":
		handlerErr = s.onPaymentSucceeded(r, event)

	case "payment_intent.payment_failed":
		handlerErr = s.onPaymentFailed(r, event)

	default:
		// Unknown event type: ack immediately so Stripe stops retrying.
		s.logger.Debug("webhook: unhandled event type", "type", event.Type)
	}

	if handlerErr != nil {
		s.logger.Error("webhook: handler error",
			"event_id", event.ID,
			"type", event.Type,
			"error", handlerErr,
			"request_id", middleware.GetReqID(r.Context()),
		)
		// Return 500 so Stripe retries delivery.
		respondErr(w, http.StatusInternalServerError, "webhook handler failed")
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ─── EVENT HANDLERS ───────────────────────────────────────────────────────────

func (s *Server) onPaymentSucceeded(r *http.Request, event stripeinternal.Event) error {
	piID, err := stripeinternal.ExtractPaymentIntentID(event)
	if err != nil {
		return fmt.Errorf("onPaymentSucceeded: extract PI id: %w", err)
	}

	order, err := s.storage.MarkOrderPaid(r.Context(), piID)
	if errors.Is(err, store.ErrOrderAlreadyPaid) {
		// Duplicate delivery. Re-enqueue only if fulfillment has not finished;
		// covers the case where the worker crashed mid-processing.
		if order.Status == store.OrderStatusPaid {
			_ = s.worker.Enqueue(r.Context(), order.ID)
		}
		s.logger.Debug("webhook: duplicate payment event", "order_id", order.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("onPaymentSucceeded: mark order paid: %w", err)
	}

	if err := s.worker.Enqueue(r.Context(), order.ID); err != nil {
		// Enqueueing failed (queue full); the poller will pick it up.
		s.logger.Warn("webhook: enqueue failed, will be picked up by poller",
			"order_id", order.ID,
			"error", err,
		)
	}

	return nil
}

func (s *Server) onPaymentFailed(r *http.Request, event stripeinternal.Event) error {
	piID, err := stripeinternal.ExtractPaymentIntentID(event)
	if err != nil {
		return fmt.Errorf("onPaymentFailed: extract PI id: %w", err)
	}

	if err := s.storage.MarkOrderPaymentFailed(r.Context(), piID); err != nil {
		return fmt.Errorf("onPaymentFailed: mark order: %w", err)
	}
	return nil
}

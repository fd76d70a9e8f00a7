package worker

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nk2it/license-store-backend/internal/email"
	"github.com/nk2it/license-store-backend/internal/invoice"
	"github.com/nk2it/license-store-backend/internal/store"
)

// OrderStore is the slice of the store the Job needs. *store.Store satisfies
// it; tests inject an in-memory fake.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error)
	FulfillOrder(ctx context.Context, p store.FulfillOrderParams) error
}

// Job holds the dependencies for the fulfillment pipeline. Each step is a
// plain call so the Run method reads top to bottom like the flow it is.
type Job struct {
	orders   OrderStore
	renderer *invoice.Renderer
	pipeline *email.Pipeline
	logger   *slog.Logger
}

// NewJob constructs a Job with all required dependencies.
func NewJob(orders OrderStore, renderer *invoice.Renderer, pipeline *email.Pipeline, logger *slog.Logger) *Job {
	return &Job{
		orders:   orders,
		renderer: renderer,
		pipeline: pipeline,
		logger:   logger,
	}
}

// Run executes the full fulfillment for a single paid order:
//
//  1. Load the order; bail out if it already reached a terminal state.
//  2. Issue a license key (reuse the stored one on retry).
//  3. Render the invoice PDF.
//  4. Send the license email with the PDF attached.
//  5. Atomically persist the invoice record, delivery log, and order state.
//
// Any error is returned to the Runner, which retries up to MaxRetries times
// before marking the order failed.
func (j *Job) Run(ctx context.Context, orderID uuid.UUID) error {
	log := j.logger.With("order_id", orderID)
	log.Info("job: starting fulfillment")

	// ── 1. Load the order ─────────────────────────────────────────────────────
	order, err := j.orders.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("job: get order: %w", err)
	}

	switch order.Status {
	case store.OrderStatusFulfilled:
		log.Debug("job: order already fulfilled, nothing to do")
		return nil
	case store.OrderStatusPaid:
		// proceed
	default:
		return fmt.Errorf("job: order %s in unexpected state %q", orderID, order.Status)
	}

	// ── 2. License key ────────────────────────────────────────────────────────
	// A retried job after a crash between send and commit reuses the stored
	// key so the customer never receives two different keys.
	licenseKey := order.LicenseKey.String
	if licenseKey == "" {
		licenseKey, err = newLicenseKey()
		if err != nil {
			return fmt.Errorf("job: generate license key: %w", err)
		}
	}

	data := invoice.InvoiceData{
		ID:          order.ID.String(),
		Email:       order.Email,
		LicenseKey:  licenseKey,
		AmountCents: order.AmountCents,
	}

	// ── 3. Render the invoice PDF ─────────────────────────────────────────────
	// Regenerated on every attempt; PDFs are never cached.
	rendered, err := j.renderer.Render(data)
	if err != nil {
		return fmt.Errorf("job: render invoice: %w", err)
	}
	for _, w := range rendered.Warnings {
		log.Warn("job: render warning", "warning", w)
	}

	// ── 4. Deliver ────────────────────────────────────────────────────────────
	outcome, err := j.pipeline.SendInvoice(ctx, email.InvoiceEmailParams{
		To:          order.Email,
		InvoiceID:   data.ID,
		LicenseKey:  licenseKey,
		AmountCents: order.AmountCents,
		PDF:         rendered.PDF,
	})
	if err != nil {
		return fmt.Errorf("job: send invoice email: %w", err)
	}

	outcomeJSON, err := json.Marshal(outcome)
	if err != nil {
		// Diagnostics only; fulfillment proceeds without the log payload.
		log.Warn("job: marshal delivery outcome", "error", err)
		outcomeJSON = nil
	}

	// ── 5. Persist ────────────────────────────────────────────────────────────
	err = j.orders.FulfillOrder(ctx, store.FulfillOrderParams{
		OrderID:    order.ID,
		LicenseKey: licenseKey,
		Invoice: store.InvoiceRecord{
			ID:          data.ID,
			UserEmail:   order.Email,
			AmountCents: order.AmountCents,
			GSTCents:    invoice.GSTCents(order.AmountCents),
			LicenseKey:  licenseKey,
			PDFFileName: invoice.PDFFileName(data.ID),
			CreatedAt:   time.Now().UTC(),
		},
		Outcome: outcomeJSON,
	})
	if err != nil {
		return fmt.Errorf("job: persist fulfillment: %w", err)
	}

	log.Info("job: fulfillment done", "sent", outcome.Sent, "message_id", outcome.MessageID)
	return nil
}

// newLicenseKey issues a key in the vendor's 4×5 grouped format, e.g.
// "7FK2M-9QX4T-C8WJZ-3NHB6". 20 random base-32 characters.
func newLicenseKey() (string, error) {
	const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789" // no 0/O, 1/I/L
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	var b strings.Builder
	for i, c := range raw {
		if i > 0 && i%5 == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(alphabet[int(c)%len(alphabet)])
	}
	return b.String(), nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// InvoiceRecord is the persisted invoice tuple. Note there is no total
// column: GST and total are always recomputed from amount_cents by whoever
// needs them, so stored and derived values can never drift.
type InvoiceRecord struct {
	ID          string
	UserEmail   string
	AmountCents int64
	GSTCents    int64
	LicenseKey  string
	PDFFileName string
	CreatedAt   time.Time
}

// FulfillOrderParams groups everything written when an order's license email
// has gone out: the invoice record, the license key on the order row, and a
// delivery log entry carrying the verification/delivery outcome as JSON.
type FulfillOrderParams struct {
	OrderID    uuid.UUID
	LicenseKey string
	Invoice    InvoiceRecord
	// Outcome is the delivery pipeline's structured result, stored verbatim
	// for diagnostics. May be nil when marshalling failed upstream.
	Outcome json.RawMessage
}

// FulfillOrder atomically records a completed fulfillment: invoice row,
// delivery log, and the order's terminal state, all in one transaction. The
// invoice insert is idempotent on id so a retried job after a mid-commit
// crash does not duplicate rows.
func (s *Store) FulfillOrder(ctx context.Context, p FulfillOrderParams) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoices (id, user_email, amount_cents, gst_cents, license_key, pdf_file_name, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			p.Invoice.ID, p.Invoice.UserEmail, p.Invoice.AmountCents, p.Invoice.GSTCents,
			p.Invoice.LicenseKey, p.Invoice.PDFFileName, p.Invoice.CreatedAt)
		if err != nil {
			return fmt.Errorf("store: insert invoice: %w", err)
		}

		outcome := pqtype.NullRawMessage{RawMessage: p.Outcome, Valid: len(p.Outcome) > 0}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO delivery_logs (order_id, outcome, created_at)
			VALUES ($1, $2, now())`,
			p.OrderID, outcome)
		if err != nil {
			return fmt.Errorf("store: insert delivery log: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE orders SET status = $2, license_key = $3, updated_at = now()
			WHERE id = $1 AND status = $4`,
			p.OrderID, OrderStatusFulfilled, p.LicenseKey, OrderStatusPaid)
		if err != nil {
			return fmt.Errorf("store: mark order fulfilled: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("store: order %s not in paid state", p.OrderID)
		}

		return nil
	})
}

// GetInvoice returns one invoice record by id. sql.ErrNoRows passes through.
func (s *Store) GetInvoice(ctx context.Context, id string) (InvoiceRecord, error) {
	var rec InvoiceRecord
	err := s.pool.QueryRowContext(ctx, `
		SELECT id, user_email, amount_cents, gst_cents, license_key, pdf_file_name, created_at
		FROM invoices WHERE id = $1`, id).
		Scan(&rec.ID, &rec.UserEmail, &rec.AmountCents, &rec.GSTCents,
			&rec.LicenseKey, &rec.PDFFileName, &rec.CreatedAt)
	if err != nil {
		return InvoiceRecord{}, err
	}
	return rec, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Order lifecycle states.
const (
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusPaid           = "paid"
	OrderStatusFulfilled      = "fulfilled"
	OrderStatusPaymentFailed  = "payment_failed"
	OrderStatusFailed         = "failed"
)

// Order is one purchase. The order id doubles as the invoice id once the
// order is fulfilled.
type Order struct {
	ID                  uuid.UUID
	Email               string
	ProductID           string
	AmountCents         int64 // GST-exclusive
	StripePaymentIntent sql.NullString
	Status              string
	LicenseKey          sql.NullString
	FailureReason       sql.NullString
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ErrOrderAlreadyPaid is returned by MarkOrderPaid when the order has already
// left pending_payment. Stripe delivers webhooks at least once, so the caller
// must treat this as an idempotent success, not a failure.
var ErrOrderAlreadyPaid = errors.New("store: order already marked paid")

// CreateOrderParams groups the fields written when checkout starts.
type CreateOrderParams struct {
	Email               string
	ProductID           string
	AmountCents         int64
	StripePaymentIntent string
}

const orderColumns = `id, email, product_id, amount_cents, stripe_payment_intent,
	status, license_key, failure_reason, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Email, &o.ProductID, &o.AmountCents, &o.StripePaymentIntent,
		&o.Status, &o.LicenseKey, &o.FailureReason, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// CreateOrder inserts a pending_payment order and returns the stored row.
func (s *Store) CreateOrder(ctx context.Context, p CreateOrderParams) (Order, error) {
	row := s.pool.QueryRowContext(ctx, `
		INSERT INTO orders (id, email, product_id, amount_cents, stripe_payment_intent, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+orderColumns,
		uuid.New(), p.Email, p.ProductID, p.AmountCents, p.StripePaymentIntent, OrderStatusPendingPayment)

	order, err := scanOrder(row)
	if err != nil {
		return Order{}, fmt.Errorf("store: create order: %w", err)
	}
	return order, nil
}

// GetOrder returns one order by id. sql.ErrNoRows passes through.
func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := s.pool.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// MarkOrderPaid transitions the order for a PaymentIntent to paid.
//
// Runs read-then-write under serializable isolation: duplicated webhook
// deliveries (or two concurrent ones) see the committed paid state and get
// ErrOrderAlreadyPaid together with the current row, so the handler can ack
// without re-enqueueing fulfillment for terminal orders.
func (s *Store) MarkOrderPaid(ctx context.Context, paymentIntentID string) (Order, error) {
	var order Order

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE stripe_payment_intent = $1`, paymentIntentID)
		existing, err := scanOrder(row)
		if err != nil {
			return fmt.Errorf("store: order for payment intent %s: %w", paymentIntentID, err)
		}

		if existing.Status != OrderStatusPendingPayment {
			order = existing
			return ErrOrderAlreadyPaid
		}

		row = tx.QueryRowContext(ctx, `
			UPDATE orders SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+orderColumns, existing.ID, OrderStatusPaid)
		updated, err := scanOrder(row)
		if err != nil {
			return fmt.Errorf("store: mark order paid: %w", err)
		}

		order = updated
		return nil
	})

	// Unwrap the sentinel so callers can check with errors.Is and still see
	// the row that won.
	if errors.Is(err, ErrOrderAlreadyPaid) {
		return order, ErrOrderAlreadyPaid
	}
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// MarkOrderPaymentFailed records a failed payment attempt. Informational only;
// the customer can retry checkout with a fresh PaymentIntent.
func (s *Store) MarkOrderPaymentFailed(ctx context.Context, paymentIntentID string) error {
	_, err := s.pool.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE stripe_payment_intent = $1 AND status = $3`,
		paymentIntentID, OrderStatusPaymentFailed, OrderStatusPendingPayment)
	if err != nil {
		return fmt.Errorf("store: mark payment failed: %w", err)
	}
	return nil
}

// ListPendingFulfillments returns ids of paid orders awaiting fulfillment;
// the recovery path for orders that were in flight when the process last
// restarted.
func (s *Store) ListPendingFulfillments(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.QueryContext(ctx,
		`SELECT id FROM orders WHERE status = $1 ORDER BY created_at`, OrderStatusPaid)
	if err != nil {
		return nil, fmt.Errorf("store: list pending fulfillments: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list pending fulfillments: %w", err)
	}
	return ids, nil
}

// MarkOrderFailed records a permanently failed fulfillment so the poller
// stops picking the order up. Called by the worker after retries exhaust.
func (s *Store) MarkOrderFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := s.pool.ExecContext(ctx, `
		UPDATE orders SET status = $2, failure_reason = $3, updated_at = now()
		WHERE id = $1`, id, OrderStatusFailed, reason)
	if err != nil {
		return fmt.Errorf("store: mark order failed: %w", err)
	}
	return nil
}

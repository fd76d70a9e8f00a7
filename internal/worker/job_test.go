package worker_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/nk2it/license-store-backend/internal/email"
	"github.com/nk2it/license-store-backend/internal/invoice"
	"github.com/nk2it/license-store-backend/internal/store"
	"github.com/nk2it/license-store-backend/internal/verify"
	"github.com/nk2it/license-store-backend/internal/worker"
)

// ─── In-memory fakes ──────────────────────────────────────────────────────────

type fakeOrderStore struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]store.Order
	fulfilled []store.FulfillOrderParams
}

func newFakeOrderStore(orders ...store.Order) *fakeOrderStore {
	f := &fakeOrderStore{orders: make(map[uuid.UUID]store.Order)}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return store.Order{}, sql.ErrNoRows
	}
	return o, nil
}

func (f *fakeOrderStore) FulfillOrder(ctx context.Context, p store.FulfillOrderParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fulfilled = append(f.fulfilled, p)
	o := f.orders[p.OrderID]
	o.Status = store.OrderStatusFulfilled
	o.LicenseKey = sql.NullString{String: p.LicenseKey, Valid: true}
	f.orders[p.OrderID] = o
	return nil
}

type stubResolver struct{}

func (stubResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	return []*net.MX{{Host: "mx." + domain + ".", Pref: 10}}, nil
}

func newJob(orders worker.OrderStore) *worker.Job {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	renderer := invoice.NewRenderer("", logger)
	verifier := verify.NewVerifier(stubResolver{})
	pipeline := email.NewPipeline(verifier, nil, logger) // no transport: no-op delivery
	return worker.NewJob(orders, renderer, pipeline, logger)
}

// ─── Run ──────────────────────────────────────────────────────────────────────

func TestJobRun_FulfillsPaidOrder(t *testing.T) {
	orderID := uuid.New()
	orders := newFakeOrderStore(store.Order{
		ID:          orderID,
		Email:       "buyer@example.com",
		AmountCents: 9900,
		Status:      store.OrderStatusPaid,
	})

	if err := newJob(orders).Run(context.Background(), orderID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(orders.fulfilled) != 1 {
		t.Fatalf("FulfillOrder called %d times, want 1", len(orders.fulfilled))
	}
	p := orders.fulfilled[0]

	if p.OrderID != orderID {
		t.Errorf("fulfilled order %s, want %s", p.OrderID, orderID)
	}
	if len(p.LicenseKey) != 23 {
		t.Errorf("license key = %q, want 4x5 dash-grouped format", p.LicenseKey)
	}
	if p.Invoice.GSTCents != 990 {
		t.Errorf("GSTCents = %d, want 990", p.Invoice.GSTCents)
	}
	if p.Invoice.PDFFileName != "NK2IT-Invoice-"+orderID.String()+".pdf" {
		t.Errorf("PDFFileName = %q", p.Invoice.PDFFileName)
	}

	var outcome email.Outcome
	if err := json.Unmarshal(p.Outcome, &outcome); err != nil {
		t.Fatalf("unmarshal outcome: %v", err)
	}
	if !outcome.Verified {
		t.Error("outcome.Verified = false, want true")
	}
	if outcome.Sent {
		t.Error("outcome.Sent = true, want false with no transport")
	}
}

func TestJobRun_ReusesStoredLicenseKeyOnRetry(t *testing.T) {
	orderID := uuid.New()
	orders := newFakeOrderStore(store.Order{
		ID:          orderID,
		Email:       "buyer@example.com",
		AmountCents: 9900,
		Status:      store.OrderStatusPaid,
		LicenseKey:  sql.NullString{String: "ABCDE-FGHJK-MNPQR-STUVW", Valid: true},
	})

	if err := newJob(orders).Run(context.Background(), orderID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if orders.fulfilled[0].LicenseKey != "ABCDE-FGHJK-MNPQR-STUVW" {
		t.Errorf("LicenseKey = %q, want the stored key reused", orders.fulfilled[0].LicenseKey)
	}
}

func TestJobRun_FulfilledOrderIsNoOp(t *testing.T) {
	orderID := uuid.New()
	orders := newFakeOrderStore(store.Order{
		ID:     orderID,
		Status: store.OrderStatusFulfilled,
	})

	if err := newJob(orders).Run(context.Background(), orderID); err != nil {
		t.Fatalf("Run on fulfilled order: %v", err)
	}
	if len(orders.fulfilled) != 0 {
		t.Error("FulfillOrder was called for an already fulfilled order")
	}
}

func TestJobRun_RejectsUnpaidOrder(t *testing.T) {
	orderID := uuid.New()
	orders := newFakeOrderStore(store.Order{
		ID:     orderID,
		Status: store.OrderStatusPendingPayment,
	})

	if err := newJob(orders).Run(context.Background(), orderID); err == nil {
		t.Fatal("Run succeeded for a pending_payment order, want error")
	}
	if len(orders.fulfilled) != 0 {
		t.Error("FulfillOrder was called for an unpaid order")
	}
}

func TestJobRun_UnknownOrder(t *testing.T) {
	orders := newFakeOrderStore()
	if err := newJob(orders).Run(context.Background(), uuid.New()); err == nil {
		t.Fatal("Run succeeded for a missing order, want error")
	}
}

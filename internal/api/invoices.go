package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nk2it/license-store-backend/internal/invoice"
	"github.com/nk2it/license-store-backend/internal/store"
)

// ─── GET /api/invoices/:orderID/pdf ───────────────────────────────────────────

// handleInvoicePDF re-renders and streams the invoice for a fulfilled order.
// PDFs are never cached or stored: the document is regenerated from the order
// row on every request, so the bytes always reflect the persisted amounts.
func (s *Server) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		respondErr(w, http.StatusNotFound, "invoices unavailable in demo mode")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := s.storage.GetOrder(r.Context(), orderID)
	if errors.Is(err, sql.ErrNoRows) {
		respondErr(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get order: %w", err))
		return
	}

	if order.Status != store.OrderStatusFulfilled {
		respondErr(w, http.StatusConflict, "invoice not available until the order is fulfilled")
		return
	}

	rendered, err := s.renderer.Render(invoice.InvoiceData{
		ID:          order.ID.String(),
		Email:       order.Email,
		LicenseKey:  order.LicenseKey.String,
		AmountCents: order.AmountCents,
	})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("render invoice: %w", err))
		return
	}
	for _, warning := range rendered.Warnings {
		s.logger.Warn("invoice render warning", "order_id", orderID, "warning", warning)
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", invoice.PDFFileName(order.ID.String())))
	w.Header().Set("Content-Length", strconv.Itoa(len(rendered.PDF)))
	_, _ = w.Write(rendered.PDF)
}

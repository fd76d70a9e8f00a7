package invoice_test

import (
	"testing"

	"github.com/nk2it/license-store-backend/internal/invoice"
)

// ─── Money arithmetic ─────────────────────────────────────────────────────────

func TestGSTCents_HalfUpRounding(t *testing.T) {
	tests := []struct {
		amount int64
		want   int64
	}{
		{0, 0},
		{1, 0},    // 0.1 → 0
		{4, 0},    // 0.4 → 0
		{5, 1},    // 0.5 → 1 (half-up)
		{14, 1},   // 1.4 → 1
		{15, 2},   // 1.5 → 2
		{100, 10},
		{999, 100},  // 99.9 → 100
		{9900, 990},
		{12345, 1235}, // 1234.5 → 1235
	}
	for _, tt := range tests {
		if got := invoice.GSTCents(tt.amount); got != tt.want {
			t.Errorf("GSTCents(%d) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}

func TestTotalCents(t *testing.T) {
	for _, amount := range []int64{0, 1, 99, 100, 9900, 123456789} {
		want := amount + invoice.GSTCents(amount)
		if got := invoice.TotalCents(amount); got != want {
			t.Errorf("TotalCents(%d) = %d, want %d", amount, got, want)
		}
	}
}

func TestFormatCents_TwoDecimalPlaces(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "$0.00"},
		{5, "$0.05"},
		{50, "$0.50"},
		{100, "$1.00"},
		{9900, "$99.00"},
		{9999, "$99.99"},
		{123456, "$1234.56"},
	}
	for _, tt := range tests {
		if got := invoice.FormatCents(tt.cents); got != tt.want {
			t.Errorf("FormatCents(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestPDFFileName(t *testing.T) {
	got := invoice.PDFFileName("pi_3abc")
	want := "NK2IT-Invoice-pi_3abc.pdf"
	if got != want {
		t.Errorf("PDFFileName = %q, want %q", got, want)
	}
}

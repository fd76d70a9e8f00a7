package invoice_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nk2it/license-store-backend/internal/invoice"
)

func TestRender_MissingLogoDegradesWithWarning(t *testing.T) {
	r := invoice.NewRenderer("testdata/does-not-exist.png", nil)

	res, err := r.Render(invoice.InvoiceData{
		ID:          "pi_3NK2ITtest",
		Email:       "customer@example.com",
		LicenseKey:  "ABCDE-FGHJK-MNPQR-STUVW",
		AmountCents: 9900,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(res.PDF) == 0 {
		t.Fatal("Render produced no bytes")
	}
	if !bytes.HasPrefix(res.PDF, []byte("%PDF-")) {
		t.Errorf("output does not start with a PDF header: %q", res.PDF[:8])
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("got %d warnings, want 1 (skipped logo)", len(res.Warnings))
	}
	if !strings.Contains(res.Warnings[0], "logo skipped") {
		t.Errorf("warning = %q, want a skipped-logo message", res.Warnings[0])
	}
}

func TestRender_VeryLongInvoiceID(t *testing.T) {
	r := invoice.NewRenderer("", nil)

	res, err := r.Render(invoice.InvoiceData{
		ID:          strings.Repeat("pi_verylongidentifier", 12),
		Email:       "customer@example.com",
		LicenseKey:  "ABCDE-FGHJK-MNPQR-STUVW",
		AmountCents: 24900,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(res.PDF, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
}

func TestRender_ZeroAmount(t *testing.T) {
	r := invoice.NewRenderer("", nil)

	res, err := r.Render(invoice.InvoiceData{
		ID:    "ORDER-0",
		Email: "customer@example.com",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(res.PDF) == 0 {
		t.Error("Render produced no bytes")
	}
}

func TestRenderToFile_WritesDefaults(t *testing.T) {
	r := invoice.NewRenderer("", nil)
	out := filepath.Join(t.TempDir(), "invoice.pdf")

	err := r.RenderToFile(invoice.LegacyParams{
		InvoiceNo:   "INV-001",
		AmountCents: 9900,
	}, out)
	if err != nil {
		t.Fatalf("RenderToFile: %v", err)
	}

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Error("written file is not a PDF")
	}
}

// Package invoice holds the invoice data model, the money arithmetic, and the
// one-page PDF renderer. The package is deliberately dependency-light: layout
// decisions (font shrinking, id wrapping) live in pure functions so they can be
// tested without producing a single PDF byte.
package invoice

import "fmt"

// InvoiceData is the immutable input for one invoice. Both the renderer and
// the email pipeline consume it; neither mutates it. All derived amounts
// (GST, total) are recomputed from AmountCents at the point of use; they are
// never stored alongside it, so the two can never drift apart.
type InvoiceData struct {
	// ID is an opaque invoice identifier. It may be arbitrarily long; the
	// renderer wraps it rather than truncating.
	ID string

	// Email is the payer's address, shown in the Bill To section.
	Email string

	// LicenseKey is printed verbatim on the invoice and in the email.
	LicenseKey string

	// AmountCents is the GST-exclusive amount in minor currency units.
	AmountCents int64
}

// GSTCents returns 10% GST on a GST-exclusive amount, rounded half-up.
// Integer arithmetic only: (n + 5) / 10 is exact half-up of n \* 0.10 for
// any non-negative n, with no float rounding in sight.
func GSTCents(amountCents int64) int64 {
	return (amountCents + 5) / 10
}

// TotalCents returns the GST-inclusive total.
func TotalCents(amountCents int64) int64 {
	return amountCents + GSTCents(amountCents)
}

// FormatCents renders cents as a currency string with exactly two decimal
// places and a leading dollar sign, e.g. 12345 → "$123.45".
func FormatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// PDFFileName returns the attachment file name for an invoice id.
func PDFFileName(id string) string {
	return fmt.Sprintf("NK2IT-Invoice-%s.pdf", id)
}

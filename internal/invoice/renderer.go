package invoice

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// Layout constants, in points on a US Letter page. The coordinates are fixed:
// the invoice is a single page with a known structure, not a flowing document.
const (
	pageMargin    = 50.0
	headerY       = 40.0
	logoWidth     = 140.0
	rightColWidth = 220.0
	tableTop      = 280.0
	bodyWidth     = 500.0
)

const (
	issuerName     = "NK2IT PTY LTD"
	productDesc    = "Symantec Endpoint Protection License"
	footerThanks   = "Thank you for your purchase! Powered by NK2IT"
	footerContact  = "Email: support@nk2it.com.au | Phone: 1300 NK2 IT | Website: nk2it.com.au"
	dateLayoutEnAU = "02/01/2006"
)

var issuerAddress = []string{
	"222, 20B Lexington Drive",
	"Norwest Business Park",
	"Baulkham Hills NSW 2153",
}

// termsText is the fixed terms-and-conditions block. Empty strings are
// paragraph breaks rendered as extra vertical space.
var termsText = []string{
	"Payment Terms: Once the payment is processed, a license key will be sent to the registered email address.",
	"",
	"Refund Policy: All sales are final. No refunds will be issued after the software has been purchased or delivered.",
	"If the software is defective or an incorrect product is delivered, please contact customer support within 7 days.",
	"",
	"License Terms: The purchase provides a non-transferable license to use the Symantec Endpoint Agent software.",
	"Ownership remains with Symantec and is subject to the terms of the EULA (End-User License Agreement).",
	"",
	"Support: Basic customer support is available through support@nk2it.com.au. If you require extended support,",
	"you must coordinate with respective vendors.",
	"",
	"Limitation of Liability: Our liability is limited to the purchase price of the software. We are not responsible",
	"for any consequential, incidental, or indirect damages arising from the use or inability to use the software.",
}

// Result is a successful render. Warnings record the degrade-gracefully
// branches that were taken (currently only a missing or unreadable logo) so
// callers can log them instead of the information being silently dropped.
type Result struct {
	PDF      []byte
	Warnings []string
}

// Renderer produces the one-page invoice PDF. It is stateless apart from the
// logo asset path, so a single instance is safe for concurrent use.
type Renderer struct {
	logoPath string
	logger   *slog.Logger
}

// NewRenderer constructs a Renderer. logoPath may point at a missing file;
// rendering degrades to a logo-less invoice rather than failing.
func NewRenderer(logoPath string, logger *slog.Logger) *Renderer {
	return &Renderer{logoPath: logoPath, logger: logger}
}

// fpdfMeasurer adapts an fpdf document to the TextMeasurer interface so the
// pure layout code can use the engine's real glyph metrics.
type fpdfMeasurer struct {
	pdf *fpdf.Fpdf
}

func (m fpdfMeasurer) StringWidth(s string, fontSize float64) float64 {
	m.pdf.SetFont("Helvetica", "", fontSize)
	return m.pdf.GetStringWidth(s)
}

func (m fpdfMeasurer) SplitLines(s string, fontSize, width float64) []string {
	m.pdf.SetFont("Helvetica", "", fontSize)
	return m.pdf.SplitText(s, width)
}

// Render lays out the invoice and returns the encoded PDF bytes.
//
// Failure semantics: a missing logo is recorded as a warning and skipped;
// a stream-encoding failure is returned as an error. There is no retry.
func (r *Renderer) Render(data InvoiceData) (Result, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()

	var res Result

	gst := GSTCents(data.AmountCents)
	total := TotalCents(data.AmountCents)

	// ── Header: centered logo ─────────────────────────────────────────────────
	if err := r.drawLogo(pdf, pageW); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("logo skipped: %v", err))
		if r.logger != nil {
			r.logger.Warn("invoice: rendering without logo", "path", r.logoPath, "error", err)
		}
	}
	afterLogoY := headerY + logoWidth*0.35 + 8 // approximate logo height

	// ── Title ─────────────────────────────────────────────────────────────────
	pdf.SetTextColor(255, 122, 0) // brand orange
	pdf.SetFont("Helvetica", "B", 22)
	cell(pdf, pageMargin, afterLogoY, pageW-2*pageMargin, 24, "C", "INVOICE")

	// ── Issuer block (left column, static) ────────────────────────────────────
	companyY := afterLogoY + 36
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 12)
	cell(pdf, pageMargin, companyY, 250, 14, "L", issuerName)

	pdf.SetFont("Helvetica", "", 10)
	for i, line := range issuerAddress {
		cell(pdf, pageMargin, companyY+18+float64(i)*14, 250, 12, "L", line)
	}

	// ── Invoice metadata (right column) ───────────────────────────────────────
	// The id may be arbitrarily long: shrink the font to a floor, wrap what
	// still overflows, and place the Date strictly below the measured block.
	rightColX := pageW - pageMargin - rightColWidth

	pdf.SetFont("Helvetica", "B", 12)
	cell(pdf, rightColX, companyY, rightColWidth, 14, "R", "INVOICE NUMBER:")

	idLayout := FitInvoiceID(fpdfMeasurer{pdf}, data.ID, rightColWidth)
	idY := companyY + 12 + 6
	pdf.SetFont("Helvetica", "", idLayout.FontSize)
	for i, line := range idLayout.Lines {
		cell(pdf, rightColX, idY+float64(i)*idLayout.LineHeight(), rightColWidth, idLayout.LineHeight(), "R", line)
	}

	dateLabelY := idY + idLayout.Height + 8
	pdf.SetFont("Helvetica", "B", 10)
	cell(pdf, rightColX, dateLabelY, rightColWidth, 12, "R", "Date:")
	pdf.SetFont("Helvetica", "", 10)
	cell(pdf, rightColX, dateLabelY+14, rightColWidth, 12, "R", time.Now().Format(dateLayoutEnAU))

	// ── Bill To ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 14)
	cell(pdf, pageMargin, companyY+80, 300, 16, "L", "BILL TO")
	pdf.SetFont("Helvetica", "", 12)
	cell(pdf, pageMargin, companyY+105, 400, 14, "L", "Email: "+data.Email)

	// ── Line-item table (single fixed row) ────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 12)
	cell(pdf, 50, tableTop, 35, 14, "L", "NO")
	cell(pdf, 90, tableTop, 65, 14, "L", "QUANTITY")
	cell(pdf, 160, tableTop, 215, 14, "L", "PRODUCT DESCRIPTION")
	cell(pdf, 380, tableTop, 85, 14, "L", "UNIT PRICE")
	cell(pdf, 470, tableTop, 90, 14, "L", "TOTAL PRICE")

	pdf.SetDrawColor(0, 0, 0)
	pdf.Line(50, tableTop+20, 550, tableTop+20)

	productRow := tableTop + 30
	pdf.SetFont("Helvetica", "", 12)
	cell(pdf, 50, productRow, 35, 14, "L", "1")
	cell(pdf, 90, productRow, 65, 14, "L", "1")
	cell(pdf, 160, productRow, 215, 14, "L", productDesc)
	cell(pdf, 380, productRow, 85, 14, "L", FormatCents(data.AmountCents))
	cell(pdf, 470, productRow, 90, 14, "L", FormatCents(data.AmountCents))

	// ── License key ───────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 12)
	cell(pdf, 50, productRow+40, 85, 14, "L", "License Key:")
	pdf.SetFont("Helvetica", "", 12)
	cell(pdf, 140, productRow+40, 420, 14, "L", data.LicenseKey)

	// ── Totals ────────────────────────────────────────────────────────────────
	totalsY := productRow + 80
	cell(pdf, 400, totalsY, 65, 14, "L", "AMOUNT:")
	cell(pdf, 470, totalsY, 90, 14, "L", FormatCents(data.AmountCents))
	cell(pdf, 400, totalsY+20, 65, 14, "L", "GST (10%):")
	cell(pdf, 470, totalsY+20, 90, 14, "L", FormatCents(gst))
	pdf.SetFont("Helvetica", "B", 12)
	cell(pdf, 400, totalsY+40, 65, 14, "L", "TOTAL:")
	cell(pdf, 470, totalsY+40, 90, 14, "L", FormatCents(total))

	// ── Terms & Conditions ────────────────────────────────────────────────────
	termsY := totalsY + 100
	pdf.SetFont("Helvetica", "B", 14)
	cell(pdf, 50, termsY, 300, 16, "L", "TERMS & CONDITIONS:")

	y := termsY + 30
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range termsText {
		if line == "" {
			y += 10
			continue
		}
		cell(pdf, 50, y, bodyWidth, 12, "L", line)
		y += 15
	}

	// ── Footer ────────────────────────────────────────────────────────────────
	footerY := pageH - 80
	pdf.SetTextColor(0, 166, 90) // brand green
	pdf.SetFont("Helvetica", "B", 14)
	cell(pdf, 50, footerY, bodyWidth, 16, "C", footerThanks)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 10)
	cell(pdf, 50, footerY+30, bodyWidth, 12, "C", footerContact)

	// ── Encode ────────────────────────────────────────────────────────────────
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Result{}, fmt.Errorf("invoice: encode pdf: %w", err)
	}

	res.PDF = buf.Bytes()
	return res, nil
}

// drawLogo places the centered header logo. Any failure (missing file, bad
// image data) is returned so the caller can record a warning; the document
// itself is left in a clean state for the remaining layout.
func (r *Renderer) drawLogo(pdf *fpdf.Fpdf, pageW float64) error {
	if r.logoPath == "" {
		return fmt.Errorf("no logo path configured")
	}

	b, err := os.ReadFile(r.logoPath)
	if err != nil {
		return fmt.Errorf("read asset: %w", err)
	}

	imgType := "PNG"
	switch strings.ToLower(filepath.Ext(r.logoPath)) {
	case ".jpg", ".jpeg":
		imgType = "JPG"
	case ".gif":
		imgType = "GIF"
	}

	opts := fpdf.ImageOptions{ImageType: imgType}
	pdf.RegisterImageOptionsReader("header-logo", opts, bytes.NewReader(b))
	if pdf.Err() {
		err := pdf.Error()
		pdf.ClearError()
		return fmt.Errorf("decode asset: %w", err)
	}

	centerX := pageW / 2
	pdf.ImageOptions("header-logo", centerX-logoWidth/2, headerY, logoWidth, 0, false, opts, 0, "")
	if pdf.Err() {
		err := pdf.Error()
		pdf.ClearError()
		return fmt.Errorf("place asset: %w", err)
	}
	return nil
}

// cell draws a single line of text in a fixed-position cell. x/y are the top
// left corner; align is "L", "C", or "R".
func cell(pdf *fpdf.Fpdf, x, y, w, h float64, align, txt string) {
	pdf.SetXY(x, y)
	pdf.CellFormat(w, h, txt, "", 0, align, false, 0, "")
}

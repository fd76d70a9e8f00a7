package email

import (
	"context"
	"fmt"

	"github.com/nk2it/license-store-backend/internal/invoice"
)

// InvoiceEmailParams holds everything needed to deliver one license purchase:
// the branded HTML body embeds the invoice id, license key, and the
// GST-inclusive total; the rendered PDF rides along as an attachment.
type InvoiceEmailParams struct {
	To          string
	InvoiceID   string
	LicenseKey  string
	AmountCents int64 // GST-exclusive; the email shows the inclusive total
	PDF         []byte
}

// SendInvoice sends the license delivery email through the pipeline. The
// recipient is verified first like any other send; the attachment is named
// after the invoice id.
func (p *Pipeline) SendInvoice(ctx context.Context, params InvoiceEmailParams) (Outcome, error) {
	subject := fmt.Sprintf("NK2IT Invoice %s - Symantec License Key", params.InvoiceID)
	html := invoiceHTML(params.InvoiceID, params.LicenseKey, invoice.FormatCents(invoice.TotalCents(params.AmountCents)))

	attachments := []Attachment{{
		Filename:    invoice.PDFFileName(params.InvoiceID),
		ContentType: "application/pdf",
		Content:     params.PDF,
	}}

	return p.Send(ctx, params.To, subject, html, attachments)
}

func invoiceHTML(invoiceID, licenseKey, totalInclGST string) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: #FF7A00; color: white; padding: 20px; text-align: center;">
    <h1 style="margin: 0;">NK2IT PTY LTD</h1>
    <p style="margin: 5px 0 0 0;">Professional Software Licensing Solutions</p>
  </div>

  <div style="padding: 30px; background: #f9f9f9;">
    <h2 style="color: #333;">Thank you for your purchase!</h2>

    <p>Your Symantec Endpoint Protection license has been processed successfully.</p>

    <div style="background: white; padding: 20px; border-radius: 8px; margin: 20px 0;">
      <h3 style="color: #FF7A00; margin-top: 0;">Order Details</h3>
      <p><strong>Invoice ID:</strong> %s</p>
      <p><strong>License Key:</strong> <code style="background: #f0f0f0; padding: 4px 8px; border-radius: 4px;">%s</code></p>
      <p><strong>Total Amount:</strong> %s AUD (inc. GST)</p>
    </div>

    <p>Your invoice PDF is attached to this email for your records.</p>

    <div style="background: #e8f5e8; padding: 15px; border-radius: 8px; border-left: 4px solid #00A65A;">
      <p style="margin: 0;"><strong>Next Steps:</strong></p>
      <p style="margin: 5px 0 0 0;">Use the license key above to activate your Symantec Endpoint Protection software. If you need assistance, contact our support team.</p>
    </div>
  </div>

  <div style="background: #00A65A; color: white; padding: 20px; text-align: center;">
    <p style="margin: 0; font-weight: bold;">Thank you for your purchase! Powered by NK2IT</p>
    <p style="margin: 10px 0 0 0; font-size: 14px;">
      Email: support@nk2it.com.au | Phone: 1300 NK2 IT | Website: nk2it.com.au
    </p>
  </div>
</div>`, invoiceID, licenseKey, totalInclGST)
}

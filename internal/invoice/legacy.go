package invoice

import (
	"fmt"
	"os"
)

// LegacyParams is the call shape used by the old standalone invoice scripts.
// It exists only so those callers keep working; everything funnels into the
// single Renderer.
type LegacyParams struct {
	InvoiceNo  string
	Date       string // accepted for compatibility; the renderer stamps today's date
	Email      string
	LicenseKey string
	AmountCents int64
}

// RenderToFile adapts the legacy file-writing call shape onto Render. Missing
// optional fields get the same defaults the old scripts relied on.
func (r *Renderer) RenderToFile(p LegacyParams, outPath string) error {
	email := p.Email
	if email == "" {
		email = "no-reply@nk2it.com.au"
	}
	key := p.LicenseKey
	if key == "" {
		key = "NO-LICENSE-KEY"
	}

	res, err := r.Render(InvoiceData{
		ID:          p.InvoiceNo,
		Email:       email,
		LicenseKey:  key,
		AmountCents: p.AmountCents,
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(outPath, res.PDF, 0o644); err != nil {
		return fmt.Errorf("invoice: write %s: %w", outPath, err)
	}
	return nil
}

package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nk2it/license-store-backend/internal/verify"
)

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrInvalidRecipient is returned by Send when the recipient failed
// verification. No dispatch is ever attempted for such an address.
var ErrInvalidRecipient = errors.New("email: invalid recipient address")

// ErrHighRiskRecipient is returned by Send when the recipient verified as
// high risk. Delivery to high-risk addresses is never attempted.
var ErrHighRiskRecipient = errors.New("email: high-risk recipient address")

// ─── OUTCOME TYPES ───────────────────────────────────────────────────────────

// Outcome is the structured result of a single-recipient send.
type Outcome struct {
	Verified  bool   `json:"verified"`
	Sent      bool   `json:"sent"`
	MessageID string `json:"messageId,omitempty"`

	// Verification is the full verification record for the recipient,
	// persisted alongside delivery logs for diagnostics.
	Verification verify.Result `json:"verification"`
}

// Bulk statuses.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Recipient is one entry in a bulk send.
type Recipient struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	HTML    string `json:"content"`
}

// BulkResult is the per-recipient outcome of SendBulk. One recipient's
// verification or transport failure never affects the rest of the batch.
type BulkResult struct {
	Email   string   `json:"email"`
	Status  string   `json:"status"` // success | skipped | error
	Reason  string   `json:"reason,omitempty"`
	Outcome *Outcome `json:"result,omitempty"`
}

// ─── PIPELINE ────────────────────────────────────────────────────────────────

// Pipeline verifies recipients and hands permitted messages to the transport.
//
// A nil Sender selects no-op mode: verification still runs, but dispatch is
// skipped and Send reports {verified:true, sent:false}. This is deliberate:
// demo and development environments without SMTP credentials keep working.
type Pipeline struct {
	verifier *verify.Verifier
	sender   Sender
	logger   *slog.Logger
}

// NewPipeline constructs the delivery pipeline. sender may be nil.
func NewPipeline(v *verify.Verifier, sender Sender, logger *slog.Logger) *Pipeline {
	return &Pipeline{verifier: v, sender: sender, logger: logger}
}

// Send verifies the recipient, then dispatches if the tier permits.
//
// Fail-fast: an invalid or high-risk address returns ErrInvalidRecipient or
// ErrHighRiskRecipient before any transport work. A transport failure is
// returned to the caller; the pipeline never retries.
func (p *Pipeline) Send(ctx context.Context, to, subject, html string, attachments []Attachment) (Outcome, error) {
	v := p.verifier.Verify(ctx, to)

	if !v.IsValid {
		return Outcome{Verification: v}, fmt.Errorf("%w: %s (%s)", ErrInvalidRecipient, to, v.Reason)
	}
	if v.Risk == verify.RiskHigh {
		return Outcome{Verification: v}, fmt.Errorf("%w: %s", ErrHighRiskRecipient, to)
	}

	return p.dispatch(ctx, v, Message{To: v.Email, Subject: subject, HTML: html, Attachments: attachments})
}

// dispatch performs the transport hand-off for an already-verified recipient.
func (p *Pipeline) dispatch(ctx context.Context, v verify.Result, msg Message) (Outcome, error) {
	if p.sender == nil {
		p.logger.Info("email: no transport configured, skipping dispatch", "to", msg.To)
		return Outcome{Verified: true, Sent: false, Verification: v}, nil
	}

	res, err := p.sender.Send(ctx, msg)
	if err != nil {
		return Outcome{Verified: true, Verification: v}, err
	}

	return Outcome{Verified: true, Sent: true, MessageID: res.MessageID, Verification: v}, nil
}

// SendBulk verifies all recipients at once, then dispatches each permitted
// message independently with all sends in flight together. Results are in
// input order. Invalid or high-risk entries are skipped; transport failures
// are captured per recipient; nothing aborts the batch.
func (p *Pipeline) SendBulk(ctx context.Context, recipients []Recipient) []BulkResult {
	emails := make([]string, len(recipients))
	for i, r := range recipients {
		emails[i] = r.Email
	}
	verifications := p.verifier.VerifyBatch(ctx, emails)

	results := make([]BulkResult, len(recipients))

	var wg sync.WaitGroup
	for i, r := range recipients {
		v := verifications[i]

		if !v.IsValid || v.Risk == verify.RiskHigh {
			results[i] = BulkResult{
				Email:  r.Email,
				Status: StatusSkipped,
				Reason: "invalid or high-risk email",
			}
			continue
		}

		wg.Add(1)
		go func(i int, r Recipient, v verify.Result) {
			defer wg.Done()
			outcome, err := p.dispatch(ctx, v, Message{To: v.Email, Subject: r.Subject, HTML: r.HTML})
			if err != nil {
				results[i] = BulkResult{Email: r.Email, Status: StatusError, Reason: err.Error()}
				return
			}
			results[i] = BulkResult{Email: r.Email, Status: StatusSuccess, Outcome: &outcome}
		}(i, r, v)
	}
	wg.Wait()

	return results
}

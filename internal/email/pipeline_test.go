package email_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/nk2it/license-store-backend/internal/email"
	"github.com/nk2it/license-store-backend/internal/verify"
)

// ─── Stubs ────────────────────────────────────────────────────────────────────

type stubResolver struct {
	records map[string][]*net.MX
}

func (s stubResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	return s.records[domain], nil
}

type stubSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (s *stubSender) Send(ctx context.Context, msg email.Message) (email.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return email.SendResult{}, s.err
	}
	s.sent = append(s.sent, msg)
	return email.SendResult{MessageID: "<test-message-id@localhost>"}, nil
}

func (s *stubSender) messages() []email.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]email.Message(nil), s.sent...)
}

func newVerifier() *verify.Verifier {
	return verify.NewVerifier(stubResolver{records: map[string][]*net.MX{
		"good.example": {{Host: "mx.good.example.", Pref: 10}},
	}})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ─── Send ─────────────────────────────────────────────────────────────────────

func TestSend_NoTransportReportsVerifiedNotSent(t *testing.T) {
	p := email.NewPipeline(newVerifier(), nil, discardLogger())

	out, err := p.Send(context.Background(), "user@good.example", "subject", "<p>hi</p>", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !out.Verified {
		t.Error("Verified = false, want true")
	}
	if out.Sent {
		t.Error("Sent = true, want false (no transport configured)")
	}
	if out.MessageID != "" {
		t.Errorf("MessageID = %q, want empty", out.MessageID)
	}
}

func TestSend_DispatchesThroughTransport(t *testing.T) {
	sender := &stubSender{}
	p := email.NewPipeline(newVerifier(), sender, discardLogger())

	out, err := p.Send(context.Background(), "User@Good.Example", "subject", "<p>hi</p>", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !out.Verified || !out.Sent {
		t.Errorf("Outcome = %+v, want verified and sent", out)
	}
	if out.MessageID != "<test-message-id@localhost>" {
		t.Errorf("MessageID = %q, want transport id", out.MessageID)
	}

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("transport received %d messages, want 1", len(msgs))
	}
	if msgs[0].To != "user@good.example" {
		t.Errorf("To = %q, want the lowercased verified address", msgs[0].To)
	}
}

func TestSend_InvalidRecipientFailsFast(t *testing.T) {
	sender := &stubSender{}
	p := email.NewPipeline(newVerifier(), sender, discardLogger())

	_, err := p.Send(context.Background(), "not-an-address", "subject", "body", nil)
	if !errors.Is(err, email.ErrInvalidRecipient) {
		t.Fatalf("err = %v, want ErrInvalidRecipient", err)
	}
	if len(sender.messages()) != 0 {
		t.Error("transport was called for an invalid recipient")
	}
}

func TestSend_UnresolvableRecipientFailsFast(t *testing.T) {
	sender := &stubSender{}
	p := email.NewPipeline(newVerifier(), sender, discardLogger())

	// Domain resolves to zero MX records: verification marks it invalid.
	_, err := p.Send(context.Background(), "user@no-mx.example", "subject", "body", nil)
	if !errors.Is(err, email.ErrInvalidRecipient) {
		t.Fatalf("err = %v, want ErrInvalidRecipient", err)
	}
	if len(sender.messages()) != 0 {
		t.Error("transport was called for an unresolvable recipient")
	}
}

func TestSend_TransportErrorPropagates(t *testing.T) {
	transportErr := errors.New("smtp: connection refused")
	p := email.NewPipeline(newVerifier(), &stubSender{err: transportErr}, discardLogger())

	out, err := p.Send(context.Background(), "user@good.example", "subject", "body", nil)
	if !errors.Is(err, transportErr) {
		t.Fatalf("err = %v, want the transport error", err)
	}
	if !out.Verified {
		t.Error("Verified = false, want true even when transport fails")
	}
	if out.Sent {
		t.Error("Sent = true, want false")
	}
}

// ─── SendBulk ─────────────────────────────────────────────────────────────────

func TestSendBulk_SkipsBadRecipientsWithoutAborting(t *testing.T) {
	sender := &stubSender{}
	p := email.NewPipeline(newVerifier(), sender, discardLogger())

	recipients := []email.Recipient{
		{Email: "a@good.example", Subject: "s1", HTML: "b1"},
		{Email: "broken", Subject: "s2", HTML: "b2"},
		{Email: "c@good.example", Subject: "s3", HTML: "b3"},
	}
	results := p.SendBulk(context.Background(), recipients)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Status != email.StatusSuccess {
		t.Errorf("results[0].Status = %q, want success", results[0].Status)
	}
	if results[1].Status != email.StatusSkipped {
		t.Errorf("results[1].Status = %q, want skipped", results[1].Status)
	}
	if results[1].Reason == "" {
		t.Error("skipped result has no reason")
	}
	if results[2].Status != email.StatusSuccess {
		t.Errorf("results[2].Status = %q, want success", results[2].Status)
	}
	if len(sender.messages()) != 2 {
		t.Errorf("transport received %d messages, want 2", len(sender.messages()))
	}
	if results[0].Outcome == nil || !results[0].Outcome.Sent {
		t.Error("successful result should carry a sent outcome")
	}
}

func TestSendBulk_TransportFailureIsPerRecipient(t *testing.T) {
	transportErr := errors.New("smtp: 451 try again later")
	p := email.NewPipeline(newVerifier(), &stubSender{err: transportErr}, discardLogger())

	results := p.SendBulk(context.Background(), []email.Recipient{
		{Email: "a@good.example"},
	})

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Status != email.StatusError {
		t.Errorf("Status = %q, want error", results[0].Status)
	}
	if !strings.Contains(results[0].Reason, "451") {
		t.Errorf("Reason = %q, want the transport error text", results[0].Reason)
	}
}

func TestSendBulk_NoTransportStillSucceeds(t *testing.T) {
	p := email.NewPipeline(newVerifier(), nil, discardLogger())

	results := p.SendBulk(context.Background(), []email.Recipient{
		{Email: "a@good.example"},
	})

	if results[0].Status != email.StatusSuccess {
		t.Fatalf("Status = %q, want success in no-op mode", results[0].Status)
	}
	if results[0].Outcome.Sent {
		t.Error("Sent = true, want false in no-op mode")
	}
}

// ─── SendInvoice ──────────────────────────────────────────────────────────────

func TestSendInvoice_BuildsBrandedMessageWithAttachment(t *testing.T) {
	sender := &stubSender{}
	p := email.NewPipeline(newVerifier(), sender, discardLogger())

	out, err := p.SendInvoice(context.Background(), email.InvoiceEmailParams{
		To:          "user@good.example",
		InvoiceID:   "pi_3NK2ITtest",
		LicenseKey:  "ABCDE-FGHJK-MNPQR-STUVW",
		AmountCents: 9900,
		PDF:         []byte("%PDF-fake"),
	})
	if err != nil {
		t.Fatalf("SendInvoice: %v", err)
	}
	if !out.Sent {
		t.Error("Sent = false, want true")
	}

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("transport received %d messages, want 1", len(msgs))
	}
	msg := msgs[0]

	if want := "NK2IT Invoice pi_3NK2ITtest - Symantec License Key"; msg.Subject != want {
		t.Errorf("Subject = %q, want %q", msg.Subject, want)
	}
	if !strings.Contains(msg.HTML, "ABCDE-FGHJK-MNPQR-STUVW") {
		t.Error("body does not contain the license key")
	}
	if !strings.Contains(msg.HTML, "$108.90 AUD (inc. GST)") {
		t.Error("body does not show the GST-inclusive total")
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("got %d attachments, want 1", len(msg.Attachments))
	}
	att := msg.Attachments[0]
	if att.Filename != "NK2IT-Invoice-pi_3NK2ITtest.pdf" {
		t.Errorf("attachment name = %q", att.Filename)
	}
	if att.ContentType != "application/pdf" {
		t.Errorf("attachment type = %q, want application/pdf", att.ContentType)
	}
}

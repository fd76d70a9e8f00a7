package email

import (
	"bytes"
	"context"
	"fmt"

	mail "github.com/wneessen/go-mail"
)

// SMTPOptions enumerates every recognized transport option. It is populated
// from config once at startup; nothing in this package reads the environment.
type SMTPOptions struct {
	Host     string
	Port     int
	Secure   bool // implicit TLS (port 465 style) instead of STARTTLS
	User     string
	Pass     string
	FromAddr string
	FromName string
}

// smtpSender is the concrete Sender backed by an SMTP client.
type smtpSender struct {
	client   *mail.Client
	fromAddr string
	fromName string
}

// NewSMTPSender builds the SMTP transport. Construction validates the host
// settings; per-message errors surface from Send.
func NewSMTPSender(o SMTPOptions) (Sender, error) {
	opts := []mail.Option{
		mail.WithPort(o.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if o.Secure {
		opts = append(opts, mail.WithSSL())
	}
	if o.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(o.User),
			mail.WithPassword(o.Pass),
		)
	}

	client, err := mail.NewClient(o.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("email: smtp client: %w", err)
	}

	return &smtpSender{
		client:   client,
		fromAddr: o.FromAddr,
		fromName: o.FromName,
	}, nil
}

func (s *smtpSender) Send(ctx context.Context, m Message) (SendResult, error) {
	msg := mail.NewMsg()

	if err := msg.FromFormat(s.fromName, s.fromAddr); err != nil {
		return SendResult{}, fmt.Errorf("email: from address: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return SendResult{}, fmt.Errorf("email: to address: %w", err)
	}

	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextHTML, m.HTML)
	msg.SetMessageID()

	for _, a := range m.Attachments {
		if err := msg.AttachReader(a.Filename, bytes.NewReader(a.Content),
			mail.WithFileContentType(mail.ContentType(a.ContentType)),
		); err != nil {
			return SendResult{}, fmt.Errorf("email: attach %s: %w", a.Filename, err)
		}
	}

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return SendResult{}, fmt.Errorf("email: smtp send to %s: %w", m.To, err)
	}

	return SendResult{MessageID: msg.GetMessageID()}, nil
}

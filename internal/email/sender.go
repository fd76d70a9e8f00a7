// Package email contains the mail transport abstraction and the delivery
// pipeline that gates every send behind recipient verification.
package email

import "context"

// Attachment is a file attached to an outgoing message.
type Attachment struct {
	Filename    string
	ContentType string // e.g. "application/pdf"
	Content     []byte
}

// Message is a fully-prepared outgoing email.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// SendResult is the transport's acknowledgement of an accepted message.
type SendResult struct {
	MessageID string
}

// Sender is the transport boundary. The production implementation speaks
// SMTP; tests inject a stub that records calls without touching the network.
type Sender interface {
	Send(ctx context.Context, msg Message) (SendResult, error)
}

// Package mailer provides the outbound email delivery boundary.
package mailer

import "context"

// Message is a fully rendered outreach email ready for delivery.
type Message struct {
	To       string
	ToName   string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers rendered messages. Implementations: SMTPSender for real
// delivery, NoopSender when email sending is disabled.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

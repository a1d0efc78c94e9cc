package mailer

import (
	"context"

	"outreach_backend/platform/logger"
)

// NoopSender logs messages instead of delivering them. Used when email
// sending is disabled, keeping the send pipeline exercisable in development.
type NoopSender struct {
	log *logger.Logger
}

// NewNoopSender creates a sender that only logs.
func NewNoopSender(log *logger.Logger) *NoopSender {
	return &NoopSender{log: log}
}

// Send logs the message and reports success.
func (s *NoopSender) Send(_ context.Context, msg Message) error {
	s.log.Info("email sending disabled, message dropped",
		"to", msg.To, "subject", msg.Subject)
	return nil
}

var _ Sender = (*NoopSender)(nil)

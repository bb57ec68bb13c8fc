// Package mail delivers the verification and password reset emails.
package mail

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// ErrNoRecipient is returned when a message has no To address.
var ErrNoRecipient = errors.New("mail: message has no recipient")

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends a message and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// LogMailer writes messages to a slog logger instead of sending them. It is the
// development default.
type LogMailer struct {
	Logger *slog.Logger
}

// NewLogMailer returns a LogMailer; a nil logger falls back to slog.Default().
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{Logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) (string, error) {
	if msg.To == "" {
		return "", ErrNoRecipient
	}
	id := uuid.NewString()
	m.Logger.InfoContext(ctx, "email delivery stubbed",
		"message_id", id,
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.Text,
	)
	return id, nil
}

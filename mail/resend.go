package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// emailSender is the part of resend's Emails service the mailer needs.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendConfig configures ResendMailer.
type ResendConfig struct {
	APIKey string
	From   string
	// RedirectTo, when set, replaces every recipient. Non-production
	// deployments point it at a sink inbox.
	RedirectTo string
}

// ResendMailer sends through the Resend HTTP API.
type ResendMailer struct {
	emails     emailSender
	from       string
	redirectTo string
}

// NewResendMailer builds a mailer from an API key.
func NewResendMailer(cfg ResendConfig) (*ResendMailer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("mail: resend api key is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mail: sender address is required")
	}
	client := resend.NewClient(cfg.APIKey)
	return &ResendMailer{emails: client.Emails, from: cfg.From, redirectTo: cfg.RedirectTo}, nil
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) (string, error) {
	if msg.To == "" {
		return "", ErrNoRecipient
	}
	to := msg.To
	if m.redirectTo != "" {
		to = m.redirectTo
	}

	resp, err := m.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: msg.Subject,
		Text:    msg.Text,
		Html:    msg.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("mail: resend send: %w", err)
	}
	if resp == nil || resp.Id == "" {
		return "", errors.New("mail: resend returned no message id")
	}
	return resp.Id, nil
}

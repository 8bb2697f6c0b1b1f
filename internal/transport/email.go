package transport

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/knulata/satteli/internal/config"
	"github.com/knulata/satteli/internal/services"
)

// EmailSender delivers alert notifications over SMTP.
type EmailSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailSender(cfg config.SMTPConfig) *EmailSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &EmailSender{dialer: d, from: from}
}

func (e *EmailSender) Send(ctx context.Context, req services.SendRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", req.Recipient)
	m.SetHeader("Subject", req.Subject)
	m.SetHeader("X-Idempotency-Key", req.NotificationID.String())
	m.SetBody("text/plain", req.Body)

	if err := e.dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("failed to send email to %s: %w", req.Recipient, err)
	}

	// SMTP has no provider message ID to hand back; the idempotency key is
	// the reference.
	return req.NotificationID.String(), nil
}

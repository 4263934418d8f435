// Package mailer sends plaintext account emails over SMTP.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopfront/accounts/internal/config"
	"gopkg.in/mail.v2"
)

// Message is an outgoing email
type Message struct {
	To      string
	Subject string
	Body    string
}

// SMTPMailer sends messages with gopkg.in/mail.v2
type SMTPMailer struct {
	from   string
	dialer *mail.Dialer
}

// NewSMTPMailer creates a mailer for the configured SMTP server
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.Timeout = 10 * time.Second
	return &SMTPMailer{
		from:   cfg.From,
		dialer: d,
	}
}

func (m *SMTPMailer) buildMessage(msg Message) *mail.Message {
	message := mail.NewMessage()
	message.SetHeader("From", m.from)
	message.SetHeader("To", msg.To)
	message.SetHeader("Subject", msg.Subject)
	message.SetBody("text/plain", msg.Body)
	return message
}

// Send delivers msg. The context is only checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(m.buildMessage(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/dtnitsch/deck-digest/models"
)

// EmailNotifier sends the digest as a plain-text email via SMTP.
type EmailNotifier struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
}

func NewEmailNotifier(cfg models.EmailConfig) *EmailNotifier {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &EmailNotifier{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.Username,
		password: cfg.Password,
		from:     from,
		to:       cfg.To,
	}
}

func (n *EmailNotifier) Send(_ context.Context, subject, body string) error {
	msg := buildMessage(n.from, n.to, subject, body)

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	auth := smtp.PlainAuth("", n.username, n.password, n.host)

	if err := smtp.SendMail(addr, auth, n.from, n.to, []byte(msg)); err != nil {
		return fmt.Errorf("notify: failed to send email: %w", err)
	}
	return nil
}

func buildMessage(from string, to []string, subject, body string) string {
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s",
		from,
		strings.Join(to, ","),
		subject,
		body,
	)
}

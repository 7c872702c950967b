// Package mail delivers the one-time code messages. SMTPMailer speaks to a
// relay over net/smtp; LogMailer is the fallback for local development when
// no relay is configured.
package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/dmitrijs2005/passlink/internal/logging"
)

type SMTPMailer struct {
	addr string
	from string
}

func NewSMTPMailer(addr, from string) *SMTPMailer {
	return &SMTPMailer{addr: addr, from: from}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(m.from, to, subject, htmlBody)
	if err := smtp.SendMail(m.addr, nil, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// buildMessage assembles an RFC 5322 message with an HTML body.
func buildMessage(from, to, subject, htmlBody string) []byte {
	return []byte("From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		htmlBody + "\r\n")
}

// LogMailer writes messages to the log instead of sending them. The code
// inside the body ends up in plain text, so this is for development only.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "mail")}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.logger.Info(ctx, "mail not sent, no smtp relay configured",
		"to", to, "subject", subject, "body", htmlBody)
	return nil
}

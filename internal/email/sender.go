// Package email delivers digests over SMTP, tracking outcome per
// recipient so a failed send retries on the next tick without
// duplicating ones that already went out.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
)

// Sender abstracts digest delivery so tests can inject a fake transport.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) (providerMessageID string, err error)
}

// SMTPConfig holds what an SMTPSender needs to dial and authenticate.
type SMTPConfig struct {
	Host   string
	Port   int
	Secure bool
	User   string
	Pass   string
	From   string
}

// SMTPSender sends mail over net/smtp, optionally wrapped in TLS for
// submission ports that require it.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) (string, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	msg := s.buildMessage(to, subject, body)

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}

	var err error
	if s.cfg.Secure {
		err = s.sendTLS(addr, auth, to, msg)
	} else {
		err = smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg)
	}
	if err != nil {
		return "", fmt.Errorf("send mail: %w", err)
	}

	// net/smtp does not surface a provider message id; synthesize one so
	// EmailDelivery.provider_message_id is always populated on success.
	return fmt.Sprintf("smtp-%s", s.cfg.Host), nil
}

func (s *SMTPSender) sendTLS(addr string, auth smtp.Auth, to string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (s *SMTPSender) buildMessage(to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", s.cfg.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

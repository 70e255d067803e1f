// Package mail delivers account and digest e-mails over SMTP.
package mail

import (
	"context"
	"fmt"
	"sync"

	"gopkg.in/gomail.v2"

	"mdmc/internal/config"
	"mdmc/internal/utils/logger"
)

// Message is one rendered e-mail.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender dials the configured SMTP server for every message.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	logger *logger.Logger
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
		logger: logger.New("MAIL"),
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return s.logger.Error("Failed to send %q", fmt.Errorf("smtp: %w", err), msg.Subject)
	}
	s.logger.Info("📧 Sent %q to %s", msg.Subject, msg.To)
	return nil
}

// LogSender records messages instead of sending them. It is used when no
// SMTP host is configured and in tests.
type LogSender struct {
	mu     sync.Mutex
	sent   []Message
	logger *logger.Logger
}

func NewLogSender() *LogSender {
	return &LogSender{logger: logger.New("MAIL")}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	s.logger.Warn("SMTP not configured, dropping %q to %s", msg.Subject, msg.To)
	return nil
}

// Sent returns a copy of every message passed to Send.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

// NewSender picks SMTP when a host is configured, else a LogSender.
func NewSender(cfg config.SMTPConfig) Sender {
	if cfg.Host == "" {
		return NewLogSender()
	}
	return NewSMTPSender(cfg)
}

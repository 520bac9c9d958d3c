package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/circuitbreaker"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/pkg/config"
)

// SMTPSender sends plain-text mail through a circuit breaker.
type SMTPSender struct {
	cfg     config.SMTPConfig
	breaker *circuitbreaker.CircuitBreaker
	send    func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now     func() time.Time
}

func NewSMTPSender(cfg config.SMTPConfig, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{
		cfg:     cfg,
		breaker: circuitbreaker.New("smtp", circuitbreaker.DefaultConfig(), logger),
		send:    smtp.SendMail,
		now:     time.Now,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var auth smtp.Auth
		if s.cfg.Username != "" {
			auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		}
		addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
		msg := buildMessage(s.cfg.From, to, subject, body, s.now())
		if err := s.send(addr, auth, envelopeAddress(s.cfg.From), []string{to}, msg); err != nil {
			return fmt.Errorf("smtp send to %s: %w", to, err)
		}
		return nil
	})
}

// envelopeAddress 从 "Name <addr>" 中取出地址
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return from
}

func buildMessage(from, to, subject, body string, at time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	b.WriteString("Date: " + at.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// LogSender 未配置 SMTP 时使用，只记录日志
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, to, subject, _ string) error {
	s.logger.Info("Email suppressed (SMTP not configured)",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

// NewEmailSink 根据配置选择 SMTP 或日志实现
func NewEmailSink(cfg config.SMTPConfig, logger *zap.Logger) EmailSink {
	if cfg.Enabled() {
		return NewSMTPSender(cfg, logger)
	}
	return NewLogSender(logger)
}

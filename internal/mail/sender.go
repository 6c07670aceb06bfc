// Package mail sends notification email and SMS through SES, SMTP or a
// logging transport.
package mail

import (
	"context"
	"fmt"

	"veripass/internal/common/aws"
	"veripass/internal/common/config"
	"veripass/internal/common/logger"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers one message synchronously. A nil error means the
// transport accepted it.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, text string) error
}

// NewSender builds the configured email transport. Email disabled falls
// back to the log transport so queue rows still move to sent.
func NewSender(ctx context.Context, cfg *config.Config, log logger.Logger) (Sender, error) {
	email := cfg.Notifications.Email
	if !email.Enabled {
		return NewLogSender(log), nil
	}

	switch email.Provider {
	case config.EmailProviderSES:
		client, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("create ses client: %w", err)
		}
		return NewSESSender(client, email.FromEmail), nil
	case config.EmailProviderSMTP:
		return NewSMTPSender(cfg.Integrations.SMTP, email.FromEmail), nil
	case config.EmailProviderLog:
		return NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", email.Provider)
	}
}

// NewSMSSender returns nil when SMS is disabled.
func NewSMSSender(ctx context.Context, cfg *config.Config) (SMSSender, error) {
	if !cfg.Notifications.SMS.Enabled {
		return nil, nil
	}
	client, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
	if err != nil {
		return nil, fmt.Errorf("create sns client: %w", err)
	}
	return NewSNSTextSender(client, cfg.Integrations.AWS.SNS.DefaultSMSSenderID), nil
}

// LogSender writes messages to the logger instead of delivering them.
type LogSender struct {
	logger logger.Logger
}

func NewLogSender(log logger.Logger) *LogSender {
	return &LogSender{logger: logger.ForComponent(log, "mail")}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email (log transport)", map[string]interface{}{
		"to":      msg.To,
		"subject": msg.Subject,
		"bytes":   len(msg.Body),
	})
	return nil
}

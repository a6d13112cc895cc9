package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"github.com/xelth-com/arcasync/internal/config"
)

// MailSender sends alerts over SMTP
type MailSender struct {
	cfg config.MailConfig
}

// NewMailSender creates an SMTP sender
func NewMailSender(cfg config.MailConfig) *MailSender {
	return &MailSender{cfg: cfg}
}

// Send delivers one plain text message to the alert recipient
func (s *MailSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(s.cfg.AlertTo); err != nil {
		return fmt.Errorf("invalid alert recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

package notify

import (
	"context"
	"fmt"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/wneessen/go-mail"
)

// Mailer sends one email. Errors are for logging only.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPConfig holds the SMTP settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer creates a mailer for cfg
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{cfg: cfg}
}

// Send implements Mailer
func (m *SMTPMailer) Send(ctx context.Context, to, subject, html string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}

// NopMailer is used when SMTP is not configured
type NopMailer struct{}

// Send implements Mailer
func (NopMailer) Send(ctx context.Context, to, subject, html string) error {
	logger.Debug(fmt.Sprintf("SMTP no configurado, correo omitido: %s", subject), "Mailer")
	return nil
}

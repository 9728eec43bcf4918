package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/mercato-labs/mercato-backend/pkg/config"
	pkgerrors "github.com/mercato-labs/mercato-backend/pkg/errors"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type smtpMailer struct {
	addr string
	from string
	auth smtp.Auth
}

// NewSMTPMailer builds a mailer that talks plain SMTP. Credentials are
// optional so local relays like mailhog work without auth.
func NewSMTPMailer(cfg config.SMTPConfig) (Mailer, error) {
	if cfg.Host == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "smtp host required")
	}
	if cfg.DefaultFrom == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "smtp from address required")
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &smtpMailer{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from: cfg.DefaultFrom,
		auth: auth,
	}, nil
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient required")
	}
	raw := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.from, to, msg.Subject, msg.Body))
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send mail")
	}
	return nil
}

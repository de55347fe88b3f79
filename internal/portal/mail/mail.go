// Package mail sends account lifecycle notifications over SMTP.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"text/template"

	gomail "github.com/wneessen/go-mail"
)

//go:embed templates/*.txt
var templates embed.FS

// Mailer delivers account notifications. Implementations must be safe for
// concurrent use.
type Mailer interface {
	// SendActivation mails the set-password link for a new account.
	SendActivation(ctx context.Context, to, activateURL string) error

	// SendDeactivation notifies an address that its account was removed.
	SendDeactivation(ctx context.Context, to string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // e.g. cert-eu@ec.europa.eu
}

type SMTPMailer struct {
	cfg  Config
	tmpl *template.Template
}

func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	tmpl, err := template.ParseFS(templates, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("mail: parse templates: %w", err)
	}
	return &SMTPMailer{cfg: cfg, tmpl: tmpl}, nil
}

func (m *SMTPMailer) SendActivation(ctx context.Context, to, activateURL string) error {
	return m.send(ctx, to, "Account activation", "activation.txt", map[string]string{
		"ActivateURL": activateURL,
	})
}

func (m *SMTPMailer) SendDeactivation(ctx context.Context, to string) error {
	return m.send(ctx, to, "Account deactivated", "deactivation.txt", map[string]string{
		"Email": to,
	})
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, tmplName string, data any) error {
	var body bytes.Buffer
	if err := m.tmpl.ExecuteTemplate(&body, tmplName, data); err != nil {
		return fmt.Errorf("mail: render %s: %w", tmplName, err)
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("mail: from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mail: to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body.String())

	opts := []gomail.Option{gomail.WithPort(m.cfg.Port)}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}

	client, err := gomail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mail: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	return nil
}

// NopMailer drops every message. Used when SMTP is not configured, the
// activation URL is still logged by the caller.
type NopMailer struct{}

func (NopMailer) SendActivation(ctx context.Context, to, activateURL string) error { return nil }
func (NopMailer) SendDeactivation(ctx context.Context, to string) error            { return nil }

// Package mail sends the daily brief over SMTP as a multipart/alternative
// message with plain-text and HTML parts.
package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

// Config is the SMTP submission endpoint.
type Config struct {
	Host string
	Port int
}

// Message is one report email. The HTML part is optional.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Send delivers msg through cfg's endpoint, authenticating as msg.From
// with password. The connection upgrades to TLS via STARTTLS before
// authenticating, which is what Gmail's submission port expects.
func Send(ctx context.Context, cfg Config, password string, msg Message) error {
	m, err := buildMessage(msg)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(msg.From),
		gomail.WithPassword(password),
		gomail.WithTLSPortPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("mail: configure client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	return nil
}

func buildMessage(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("mail: invalid sender address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail: invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

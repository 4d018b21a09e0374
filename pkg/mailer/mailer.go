package mailer

import (
	"bytes"
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/gpuforge/gpuforge-backend/pkg/config"
)

// Attachment is an in-memory file attached to an outgoing message.
type Attachment struct {
	Name    string
	Content []byte
}

// Message is one outgoing email.
type Message struct {
	To          string
	Subject     string
	HTMLBody    string
	TextBody    string
	Attachments []Attachment
}

// Sender delivers messages; implemented by Client and by test fakes.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client sends mail over SMTP using the configured credentials.
type Client struct {
	cfg config.SMTPConfig
}

func New(cfg config.SMTPConfig) (*Client, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("smtp host and sender email are required")
	}
	return &Client{cfg: cfg}, nil
}

func (c *Client) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("recipient is required")
	}

	m := gomail.NewMsg()
	if err := m.FromFormat(c.cfg.SenderName, c.cfg.SenderMail); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	m.Subject(msg.Subject)
	if msg.HTMLBody != "" {
		m.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)
		if msg.TextBody != "" {
			m.AddAlternativeString(gomail.TypeTextPlain, msg.TextBody)
		}
	} else {
		m.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
	}
	for _, att := range msg.Attachments {
		if err := m.AttachReader(att.Name, bytes.NewReader(att.Content)); err != nil {
			return fmt.Errorf("attach %s: %w", att.Name, err)
		}
	}

	opts := []gomail.Option{
		gomail.WithPort(c.cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if c.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(c.cfg.Username),
			gomail.WithPassword(c.cfg.Password),
		)
	}

	client, err := gomail.NewClient(c.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("build smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// Package smtp relays campaign messages through a plain SMTP server.
package smtp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wneessen/go-mail"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/provider"
)

// Config is the relay address and credentials.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// TLS makes STARTTLS mandatory; otherwise it is opportunistic.
	TLS bool
}

// Dialer delivers composed messages. *mail.Client satisfies it.
type Dialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Client implements provider.MailProvider.
type Client struct {
	dialer Dialer
}

// New builds a go-mail client for cfg.
func New(cfg Config) (*Client, error) {
	policy := mail.TLSOpportunistic
	if cfg.TLS {
		policy = mail.TLSMandatory
	}
	opts := []mail.Option{mail.WithPort(cfg.Port), mail.WithTLSPolicy(policy)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp: new client: %w", err)
	}
	return NewWithDialer(c), nil
}

// NewWithDialer wraps an existing dialer.
func NewWithDialer(d Dialer) *Client {
	return &Client{dialer: d}
}

func (c *Client) Name() domain.ProviderType { return domain.ProviderSMTP }
func (c *Client) MaxRecipients() int        { return 1 }

// Compose builds the MIME message for msg.
func Compose(msg *provider.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("smtp: from: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("smtp: to: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("smtp: reply-to: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetMessageID()
	for _, tag := range msg.Tags {
		m.SetGenHeader(mail.Header("X-Campaign-Tag"), tag)
	}
	for k, v := range msg.Headers {
		m.SetGenHeader(mail.Header(k), v)
	}
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

func (c *Client) Send(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	if len(msg.To) != 1 {
		return nil, fmt.Errorf("smtp: expected exactly one recipient, got %d", len(msg.To))
	}
	m, err := Compose(msg)
	if err != nil {
		return nil, err
	}
	if err := c.dialer.DialAndSendWithContext(ctx, m); err != nil {
		return nil, &provider.Error{Provider: domain.ProviderSMTP, Body: err.Error()}
	}
	return &provider.Response{ID: m.GetMessageID(), Message: "relayed", StatusCode: http.StatusOK}, nil
}

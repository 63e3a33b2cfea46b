// Package resend sends campaign messages through the Resend API.
package resend

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/resend/resend-go/v3"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/provider"
)

// Emails is the part of the Resend SDK used here.
type Emails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Client implements provider.MailProvider.
type Client struct {
	emails Emails
}

// New builds a client for apiKey.
func New(apiKey string) *Client {
	return NewWithEmails(resend.NewClient(apiKey).Emails)
}

// NewWithEmails wraps an existing Emails service.
func NewWithEmails(e Emails) *Client {
	return &Client{emails: e}
}

func (c *Client) Name() domain.ProviderType { return domain.ProviderResend }
func (c *Client) MaxRecipients() int        { return 1 }

// Resend tag values allow ASCII letters, numbers, underscores and dashes.
var tagUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

func (c *Client) Send(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	if len(msg.To) != 1 {
		return nil, fmt.Errorf("resend: expected exactly one recipient, got %d", len(msg.To))
	}
	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Text,
		Html:    msg.HTML,
		ReplyTo: msg.ReplyTo,
		Headers: msg.Headers,
	}
	for _, tag := range msg.Tags {
		req.Tags = append(req.Tags, resend.Tag{Name: "campaign", Value: tagUnsafe.ReplaceAllString(tag, "_")})
	}

	resp, err := c.emails.SendWithContext(ctx, req)
	if err != nil {
		return nil, &provider.Error{Provider: domain.ProviderResend, Body: err.Error()}
	}
	return &provider.Response{ID: resp.Id, Message: "queued", StatusCode: http.StatusOK}, nil
}

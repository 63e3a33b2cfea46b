// Package provider adapts outbound mail APIs behind one MailProvider contract
// and implements the batching client that campaign sends go through.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/personalize"
)

// Message is a fully addressed outbound message. For server-side rendering
// Subject, Text and HTML still carry provider placeholders and
// RecipientVariables holds the values per address.
type Message struct {
	From               string
	ReplyTo            string
	To                 []string
	Subject            string
	Text               string
	HTML               string
	Tags               []string
	Tracking           bool
	Headers            map[string]string
	RecipientVariables map[string]map[string]string
}

// Response is the provider's acceptance of a message.
type Response struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

// MailProvider sends messages through one vendor.
type MailProvider interface {
	Name() domain.ProviderType
	// Send submits msg. A non-success answer from the vendor is returned
	// as *Error.
	Send(ctx context.Context, msg *Message) (*Response, error)
	// MaxRecipients caps len(Message.To); 1 for providers without batch
	// personalization.
	MaxRecipients() int
}

// ServerSideRenderer is implemented by providers that substitute
// per-recipient variables themselves.
type ServerSideRenderer interface {
	Syntax() personalize.Syntax
}

// Bounce is one entry of a provider's bounce list.
type Bounce struct {
	Address   string    `json:"address"`
	Code      string    `json:"code"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// BounceLister is implemented by providers that expose their bounce list.
// The visit callback is invoked per page; returning an error stops paging.
type BounceLister interface {
	ListBounces(ctx context.Context, visit func([]Bounce) error) error
}

// Error is a non-success answer from a provider. It matches
// domain.ErrProvider with errors.Is.
type Error struct {
	Provider   domain.ProviderType
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *Error) Is(target error) bool { return target == domain.ErrProvider }

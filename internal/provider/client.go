package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/personalize"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// ClientConfig controls message decoration and pacing.
type ClientConfig struct {
	FromEmail         string
	FromName          string
	ReplyTo           string
	TagPrefix         string
	Tracking          bool
	BatchSize         int
	BatchDelay        time.Duration
	MessagesPerSecond float64
	MarkdownHTML      bool
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Client is the batching front of a MailProvider. It splits recipient lists
// into chunks, throttles between chunks and chooses between
// server-side and client-side personalization.
type Client struct {
	provider     MailProvider
	personalizer *personalize.Personalizer
	cfg          ClientConfig
	limiter      *rate.Limiter
	html         *htmlRenderer
	sleep        Sleeper
}

// NewClient wraps mp.
func NewClient(mp MailProvider, p *personalize.Personalizer, cfg ClientConfig) *Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	limit := rate.Inf
	if cfg.MessagesPerSecond > 0 {
		limit = rate.Limit(cfg.MessagesPerSecond)
	}
	c := &Client{
		provider:     mp,
		personalizer: p,
		cfg:          cfg,
		limiter:      rate.NewLimiter(limit, 1),
		sleep:        sleepCtx,
	}
	if cfg.MarkdownHTML {
		c.html = newHTMLRenderer()
	}
	return c
}

// WithSleeper replaces the inter-batch wait, mainly for tests.
func (c *Client) WithSleeper(s Sleeper) *Client {
	c.sleep = s
	return c
}

// Provider names the underlying provider.
func (c *Client) Provider() domain.ProviderType { return c.provider.Name() }

// BatchSize is the configured chunk size. Chunks are separated by the batch
// delay; within a chunk client-side sends are paced by the rate limiter.
func (c *Client) BatchSize() int { return c.cfg.BatchSize }

// chunkSize is the number of contacts per chunk. Server-side chunks travel
// as one provider call, so they are also capped by the provider's recipient
// limit.
func (c *Client) chunkSize(server bool) int {
	size := c.cfg.BatchSize
	if !server {
		return size
	}
	if max := c.provider.MaxRecipients(); max > 0 && max < size {
		size = max
	}
	return size
}

// PersonalizedSend is one campaign's worth of recipients.
type PersonalizedSend struct {
	CampaignID int64
	Subject    string
	Body       string
	Contacts   []domain.Contact
}

// Tag is the provider tag attached to every message of a campaign.
func (c *Client) Tag(campaignID int64) string {
	return fmt.Sprintf("%s_%d", c.cfg.TagPrefix, campaignID)
}

func (c *Client) from() string {
	if c.cfg.FromName == "" {
		return c.cfg.FromEmail
	}
	return fmt.Sprintf("%s <%s>", c.cfg.FromName, c.cfg.FromEmail)
}

func (c *Client) serverSide(req PersonalizedSend) (personalize.Syntax, bool) {
	r, ok := c.provider.(ServerSideRenderer)
	if !ok || personalize.NeedsClientRender(req.Subject) || personalize.NeedsClientRender(req.Body) {
		return personalize.Syntax{}, false
	}
	return r.Syntax(), true
}

// SendPersonalized delivers req to every contact and returns one result per
// provider call, in order. Failures are recorded in the results and never
// stop later batches. Chunks are separated by the configured delay; the last
// chunk is not followed by one.
func (c *Client) SendPersonalized(ctx context.Context, req PersonalizedSend) []domain.BatchResult {
	syntax, server := c.serverSide(req)
	chunks := chunk(req.Contacts, c.chunkSize(server))

	var results []domain.BatchResult
	batchNo := 0
	for i, ch := range chunks {
		if i > 0 {
			logger.Info("[provider.Client] waiting before next batch",
				"delay", c.cfg.BatchDelay, "next_batch", i+1, "batches", len(chunks))
			if err := c.sleep(ctx, c.cfg.BatchDelay); err != nil {
				for _, rest := range chunks[i:] {
					batchNo++
					results = append(results, failed(batchNo, rest, err))
				}
				break
			}
		}

		if server {
			batchNo++
			results = append(results, c.sendServerSide(ctx, batchNo, syntax, req, ch))
			continue
		}
		for _, contact := range ch {
			batchNo++
			if err := c.limiter.Wait(ctx); err != nil {
				results = append(results, failed(batchNo, []domain.Contact{contact}, err))
				continue
			}
			results = append(results, c.SendSingle(ctx, batchNo, req.CampaignID, contact, req.Subject, req.Body))
		}
	}
	return results
}

func (c *Client) sendServerSide(ctx context.Context, batchNo int, syntax personalize.Syntax, req PersonalizedSend, contacts []domain.Contact) domain.BatchResult {
	text := personalize.ToServerSide(req.Body, syntax)
	msg := &Message{
		From:               c.from(),
		ReplyTo:            c.cfg.ReplyTo,
		To:                 emails(contacts),
		Subject:            personalize.ToServerSide(req.Subject, syntax),
		Text:               text,
		Tags:               []string{c.Tag(req.CampaignID)},
		Tracking:           c.cfg.Tracking,
		RecipientVariables: c.personalizer.RecipientVariables(contacts),
	}
	if c.html != nil {
		// The provider substitutes values after rendering, so the HTML part
		// reads escaped copies of them.
		htmlSyntax := personalize.Syntax{Prefix: syntax.Prefix, Suffix: htmlVarSuffix + syntax.Suffix}
		html, err := c.html.Render(personalize.ToServerSide(req.Body, htmlSyntax))
		if err != nil {
			return failed(batchNo, contacts, fmt.Errorf("render html: %w", err))
		}
		msg.HTML = html
		addEscapedVariables(msg.RecipientVariables)
	}
	return c.deliver(ctx, batchNo, contacts, msg)
}

// SendSingle renders subject and body for one contact and sends them as a
// single message.
func (c *Client) SendSingle(ctx context.Context, batchNo int, campaignID int64, contact domain.Contact, subject, body string) domain.BatchResult {
	one := []domain.Contact{contact}
	renderedSubject, err := c.personalizer.Render(subject, contact)
	if err != nil {
		return failed(batchNo, one, err)
	}
	renderedBody, err := c.personalizer.Render(body, contact)
	if err != nil {
		return failed(batchNo, one, err)
	}
	msg := &Message{
		From:     c.from(),
		ReplyTo:  c.cfg.ReplyTo,
		To:       []string{contact.Email},
		Subject:  renderedSubject,
		Text:     renderedBody,
		Tags:     []string{c.Tag(campaignID)},
		Tracking: c.cfg.Tracking,
	}
	if err := c.attachHTML(msg); err != nil {
		return failed(batchNo, one, err)
	}
	return c.deliver(ctx, batchNo, one, msg)
}

func (c *Client) attachHTML(msg *Message) error {
	if c.html == nil {
		return nil
	}
	html, err := c.html.Render(msg.Text)
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	msg.HTML = html
	return nil
}

func (c *Client) deliver(ctx context.Context, batchNo int, contacts []domain.Contact, msg *Message) domain.BatchResult {
	resp, err := c.provider.Send(ctx, msg)
	if err != nil {
		logger.Warn("[provider.Client] batch failed",
			"provider", c.provider.Name(), "batch", batchNo, "recipients", len(contacts), "error", err)
		return failed(batchNo, contacts, err)
	}
	logger.Info("[provider.Client] batch accepted",
		"provider", c.provider.Name(), "batch", batchNo, "recipients", len(contacts), "message_id", resp.ID)
	return domain.BatchResult{
		BatchNumber:     batchNo,
		RecipientsCount: len(contacts),
		Recipients:      emails(contacts),
		Success:         true,
		StatusCode:      resp.StatusCode,
		MessageID:       resp.ID,
		Message:         resp.Message,
	}
}

func failed(batchNo int, contacts []domain.Contact, err error) domain.BatchResult {
	r := domain.BatchResult{
		BatchNumber:     batchNo,
		RecipientsCount: len(contacts),
		Recipients:      emails(contacts),
		Error:           err.Error(),
	}
	var perr *Error
	if errors.As(err, &perr) {
		r.StatusCode = perr.StatusCode
	}
	return r
}

func chunk(contacts []domain.Contact, size int) [][]domain.Contact {
	if size <= 0 {
		size = len(contacts)
	}
	var out [][]domain.Contact
	for start := 0; start < len(contacts); start += size {
		end := start + size
		if end > len(contacts) {
			end = len(contacts)
		}
		out = append(out, contacts[start:end])
	}
	return out
}

func emails(contacts []domain.Contact) []string {
	out := make([]string, len(contacts))
	for i, c := range contacts {
		out[i] = c.Email
	}
	return out
}

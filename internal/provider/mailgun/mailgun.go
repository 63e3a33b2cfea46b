// Package mailgun sends campaign batches through the Mailgun Messages API
// and reads back bounces and webhook events.
package mailgun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/personalize"
	"github.com/ignite/campaign-dispatch/internal/pkg/httpretry"
	"github.com/ignite/campaign-dispatch/internal/provider"
)

// maxRecipients is Mailgun's batch-sending limit per API call.
const maxRecipients = 1000

// Config holds the Mailgun credentials and endpoint.
type Config struct {
	APIKey  string
	Domain  string
	BaseURL string
	Timeout time.Duration
}

// Client implements provider.MailProvider, provider.ServerSideRenderer and
// provider.BounceLister.
type Client struct {
	cfg Config
	// send is used for POST /messages and is never retried.
	send httpretry.HTTPDoer
	// read retries idempotent listing calls.
	read httpretry.HTTPDoer
}

// New builds a Mailgun client. A nil doer gets an http.Client with the
// configured timeout.
func New(cfg Config, doer httpretry.HTTPDoer) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mailgun.net"
	}
	cfg.BaseURL = strings.TrimSuffix(strings.TrimSuffix(cfg.BaseURL, "/"), "/v3")
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, send: doer, read: httpretry.NewRetryClient(doer, 3)}
}

func (c *Client) Name() domain.ProviderType  { return domain.ProviderMailgun }
func (c *Client) MaxRecipients() int         { return maxRecipients }
func (c *Client) Syntax() personalize.Syntax { return personalize.MailgunSyntax }

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/v3/%s/%s", c.cfg.BaseURL, c.cfg.Domain, path)
}

// Send posts msg to /messages. Mailgun fans a multi-recipient message out
// into one delivery per address, substituting recipient-variables.
func (c *Client) Send(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("mailgun: API key not configured")
	}
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("mailgun: message has no recipients")
	}
	if len(msg.To) > maxRecipients {
		return nil, fmt.Errorf("mailgun: batch size %d exceeds max of %d", len(msg.To), maxRecipients)
	}

	form := url.Values{}
	form.Set("from", msg.From)
	for _, to := range msg.To {
		form.Add("to", to)
	}
	form.Set("subject", msg.Subject)
	form.Set("text", msg.Text)
	if msg.HTML != "" {
		form.Set("html", msg.HTML)
	}
	if msg.ReplyTo != "" {
		form.Set("h:Reply-To", msg.ReplyTo)
	}
	for k, v := range msg.Headers {
		form.Set("h:"+k, v)
	}
	for _, tag := range msg.Tags {
		form.Add("o:tag", tag)
	}
	tracking := "no"
	if msg.Tracking {
		tracking = "yes"
	}
	form.Set("o:tracking", tracking)
	form.Set("o:tracking-clicks", tracking)
	form.Set("o:tracking-opens", tracking)
	if len(msg.RecipientVariables) > 0 {
		vars, err := json.Marshal(msg.RecipientVariables)
		if err != nil {
			return nil, fmt.Errorf("mailgun: marshal recipient-variables: %w", err)
		}
		form.Set("recipient-variables", string(vars))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("messages"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("mailgun: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", c.cfg.APIKey)

	resp, err := c.send.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mailgun: send request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 400 {
		return nil, &provider.Error{Provider: domain.ProviderMailgun, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("mailgun: decode response: %w", err)
	}
	return &provider.Response{
		ID:         strings.Trim(result.ID, "<>"),
		Message:    result.Message,
		StatusCode: resp.StatusCode,
	}, nil
}

type bouncePage struct {
	Items []struct {
		Address   string `json:"address"`
		Code      any    `json:"code"`
		Error     string `json:"error"`
		CreatedAt string `json:"created_at"`
	} `json:"items"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// ListBounces walks the domain's bounce list page by page.
func (c *Client) ListBounces(ctx context.Context, visit func([]provider.Bounce) error) error {
	next := c.endpoint("bounces") + "?limit=1000"
	seen := map[string]bool{}
	for next != "" && !seen[next] {
		seen[next] = true
		page, err := c.bouncePage(ctx, next)
		if err != nil {
			return err
		}
		if len(page.Items) == 0 {
			return nil
		}
		bounces := make([]provider.Bounce, 0, len(page.Items))
		for _, it := range page.Items {
			b := provider.Bounce{Address: it.Address, Code: fmt.Sprint(it.Code), Error: it.Error}
			if t, err := time.Parse(time.RFC1123, it.CreatedAt); err == nil {
				b.CreatedAt = t
			}
			bounces = append(bounces, b)
		}
		if err := visit(bounces); err != nil {
			return err
		}
		next = page.Paging.Next
	}
	return nil
}

func (c *Client) bouncePage(ctx context.Context, pageURL string) (*bouncePage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("mailgun: create request: %w", err)
	}
	req.SetBasicAuth("api", c.cfg.APIKey)

	resp, err := c.read.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mailgun: list bounces: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, &provider.Error{Provider: domain.ProviderMailgun, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var page bouncePage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("mailgun: decode bounces: %w", err)
	}
	return &page, nil
}

func parseUnix(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return time.Time{}, false
	}
	sec := int64(f)
	return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC(), true
}

package mailgun

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// maxWebhookBody bounds webhook payloads read into memory.
const maxWebhookBody = 1 << 20

// Signature is Mailgun's webhook signature block.
type Signature struct {
	Timestamp string `json:"timestamp"`
	Token     string `json:"token"`
	Signature string `json:"signature"`
}

// Verify checks the HMAC-SHA256 of timestamp+token against the signing key.
func (s Signature) Verify(signingKey string) bool {
	if s.Signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(s.Timestamp + s.Token))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(s.Signature)))
}

// Webhook is a parsed webhook request.
type Webhook struct {
	Signature Signature
	Event     domain.DeliveryEvent
	// Known is false when the event name is not one the reconciler applies.
	Known bool
}

type jsonWebhook struct {
	Signature Signature `json:"signature"`
	EventData struct {
		Event     string  `json:"event"`
		Severity  string  `json:"severity"`
		Recipient string  `json:"recipient"`
		Timestamp float64 `json:"timestamp"`
		Message   struct {
			Headers struct {
				MessageID string `json:"message-id"`
			} `json:"headers"`
		} `json:"message"`
	} `json:"event-data"`
}

// ParseWebhook reads either the legacy form-encoded payload (recipient,
// event, timestamp, message-id, domain, token, signature) or the JSON
// event-data payload. now stamps events that carry no timestamp.
func ParseWebhook(r *http.Request, now time.Time) (*Webhook, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return parseJSON(r, now)
	}
	return parseForm(r, mediaType, now)
}

func parseForm(r *http.Request, mediaType string, now time.Time) (*Webhook, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxWebhookBody)
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxWebhookBody)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return nil, fmt.Errorf("mailgun webhook: parse form: %w", err)
	}
	get := r.FormValue

	ts := get("timestamp")
	at, ok := parseUnix(ts)
	if !ok {
		at = now.UTC()
	}
	kind, known := domain.ParseEventKind(get("event"), get("severity"))
	return &Webhook{
		Signature: Signature{Timestamp: ts, Token: get("token"), Signature: get("signature")},
		Known:     known,
		Event: domain.DeliveryEvent{
			Provider:   domain.ProviderMailgun,
			Recipient:  strings.TrimSpace(get("recipient")),
			Kind:       kind,
			RawEvent:   get("event"),
			MessageID:  strings.Trim(strings.TrimSpace(get("message-id")), "<>"),
			Domain:     get("domain"),
			OccurredAt: at,
		},
	}, nil
}

func parseJSON(r *http.Request, now time.Time) (*Webhook, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, fmt.Errorf("mailgun webhook: read body: %w", err)
	}
	var payload jsonWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("mailgun webhook: invalid JSON: %w", err)
	}
	ed := payload.EventData
	at := now.UTC()
	if ed.Timestamp > 0 {
		sec := int64(ed.Timestamp)
		at = time.Unix(sec, int64((ed.Timestamp-float64(sec))*1e9)).UTC()
	}
	kind, known := domain.ParseEventKind(ed.Event, ed.Severity)
	return &Webhook{
		Signature: payload.Signature,
		Known:     known,
		Event: domain.DeliveryEvent{
			Provider:   domain.ProviderMailgun,
			Recipient:  strings.TrimSpace(ed.Recipient),
			Kind:       kind,
			RawEvent:   ed.Event,
			MessageID:  strings.Trim(ed.Message.Headers.MessageID, "<>"),
			OccurredAt: at,
		},
	}, nil
}

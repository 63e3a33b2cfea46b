package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/metrics"
	"github.com/ignite/campaign-dispatch/internal/pkg/httputil"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/provider/mailgun"
)

var webhookAck = map[string]bool{"success": true}

// Webhook handles POST /webhook/{provider}. It always answers 200 so the
// provider does not retry; malformed, unsigned and unknown events are
// logged and dropped. Every path is read with the Mailgun payload parser,
// so when a signing key is configured every path must carry a valid
// Mailgun signature.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	name := domain.ProviderType(strings.ToLower(chi.URLParam(r, "provider")))

	wh, err := mailgun.ParseWebhook(r, h.now())
	if err != nil {
		logger.Warn("[api] unreadable webhook", "provider", name, "error", err)
		httputil.OK(w, webhookAck)
		return
	}
	if name.Valid() {
		wh.Event.Provider = name
	}

	if h.signingKey != "" && !wh.Signature.Verify(h.signingKey) {
		logger.Warn("[api] webhook signature mismatch", "provider", name, "recipient", wh.Event.Recipient)
		metrics.WebhookEvents.WithLabelValues(string(name), wh.Event.Kind.String(), "false").Inc()
		httputil.OK(w, webhookAck)
		return
	}

	out, err := h.events.ApplyEvent(r.Context(), wh.Event)
	if err != nil {
		logger.Error("[api] webhook event not applied", "provider", name,
			"event", wh.Event.RawEvent, "recipient", wh.Event.Recipient, "error", err)
	} else {
		logger.Debug("[api] webhook processed", "provider", name, "event", wh.Event.RawEvent,
			"recipient", wh.Event.Recipient, "applied", out.Applied)
	}
	httputil.OK(w, webhookAck)
}

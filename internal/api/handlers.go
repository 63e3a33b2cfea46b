package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
	"github.com/ignite/campaign-dispatch/internal/service/contact"
	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
	"github.com/ignite/campaign-dispatch/internal/service/reconcile"
)

// Dispatcher runs campaign and test sends. *dispatch.Engine satisfies it.
type Dispatcher interface {
	SendCampaign(ctx context.Context, req dispatch.SendRequest) (*domain.DispatchResult, error)
	SendTest(ctx context.Context, campaignID int64, email, name string) (*domain.BatchResult, error)
}

// Queue accepts background sends. *dispatch.Pool satisfies it.
type Queue interface {
	Submit(req dispatch.SendRequest) (dispatch.Ack, error)
}

// EventApplier applies delivery events to email logs.
type EventApplier interface {
	ApplyEvent(ctx context.Context, ev domain.DeliveryEvent) (reconcile.Outcome, error)
}

// BounceSyncer copies the provider bounce list onto contacts.
type BounceSyncer interface {
	Run(ctx context.Context) (*reconcile.SyncResult, error)
}

// QuotaReader reports the daily send quota.
type QuotaReader interface {
	Limit() int
	SentToday(ctx context.Context) (int, error)
	CanSendMore(ctx context.Context) (bool, error)
}

// Deps are the services behind the API. Queue and Bounces may be nil: async
// sends and bounce sync then answer with an error.
type Deps struct {
	Contacts   *contact.Service
	Campaigns  *campaign.Service
	Dispatcher Dispatcher
	Queue      Queue
	Events     EventApplier
	Bounces    BounceSyncer
	Quota      QuotaReader
	// WebhookSigningKey enables Mailgun signature checks when set.
	WebhookSigningKey string
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	contacts   *contact.Service
	campaigns  *campaign.Service
	dispatcher Dispatcher
	queue      Queue
	events     EventApplier
	bounces    BounceSyncer
	quota      QuotaReader
	signingKey string
	now        func() time.Time
}

// NewHandlers creates handlers over d.
func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		contacts:   d.Contacts,
		campaigns:  d.Campaigns,
		dispatcher: d.Dispatcher,
		queue:      d.Queue,
		events:     d.Events,
		bounces:    d.Bounces,
		quota:      d.Quota,
		signingKey: d.WebhookSigningKey,
		now:        time.Now,
	}
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.InvalidInputf("invalid id %q", raw)
	}
	return id, nil
}

package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/metrics"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/ignite/campaign-dispatch/internal/provider"
)

// DefaultTestModeLimit caps recipients of a test-mode send.
const DefaultTestModeLimit = 5

// CampaignReader loads campaign definitions.
type CampaignReader interface {
	Get(ctx context.Context, id int64) (*domain.Campaign, error)
}

// ContactSource returns active contacts in a stable order. limit <= 0
// means no cap.
type ContactSource interface {
	Eligible(ctx context.Context, limit int) ([]domain.Contact, error)
}

// LogWriter records delivered messages.
type LogWriter interface {
	LogSent(ctx context.Context, logs []domain.EmailLog) error
}

// Quota is the daily allowance the engine draws from.
type Quota interface {
	Remaining(ctx context.Context) (int, error)
	RecordSent(ctx context.Context, n int) error
}

// Sender delivers personalized messages. *provider.Client satisfies it.
type Sender interface {
	Provider() domain.ProviderType
	SendPersonalized(ctx context.Context, req provider.PersonalizedSend) []domain.BatchResult
	SendSingle(ctx context.Context, batchNo int, campaignID int64, c domain.Contact, subject, body string) domain.BatchResult
}

// Locker serializes sends across processes sharing a quota.
// *distlock.Mutex satisfies it.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// Config tunes the engine.
type Config struct {
	TestModeLimit int
}

// Engine executes campaign sends one at a time.
type Engine struct {
	mu sync.Mutex

	campaigns CampaignReader
	contacts  ContactSource
	logs      LogWriter
	quota     Quota
	sender    Sender
	locker    Locker
	testLimit int
	now       func() time.Time
}

func NewEngine(campaigns CampaignReader, contacts ContactSource, logs LogWriter, quota Quota, sender Sender, cfg Config) *Engine {
	if cfg.TestModeLimit <= 0 {
		cfg.TestModeLimit = DefaultTestModeLimit
	}
	return &Engine{
		campaigns: campaigns,
		contacts:  contacts,
		logs:      logs,
		quota:     quota,
		sender:    sender,
		testLimit: cfg.TestModeLimit,
		now:       time.Now,
	}
}

// WithClock replaces the clock used for sent_at and result timestamps.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithLocker adds a cross-process lock taken after the in-process one.
func (e *Engine) WithLocker(l Locker) *Engine {
	e.locker = l
	return e
}

// SendRequest asks for one campaign send.
type SendRequest struct {
	CampaignID   int64 `json:"campaign_id"`
	ContactLimit int   `json:"contact_limit,omitempty"`
	TestMode     bool  `json:"test_mode,omitempty"`
}

// SendCampaign sends a campaign to the active contacts. It holds the engine
// lock for the whole send, including provider calls and batch delays.
//
// Precondition failures (unknown campaign, no eligible contacts, no quota
// left) are returned as errors. Once sending starts, per-batch failures are
// reported in the result and the returned error is nil. The send is not
// cancelled when ctx is; it runs to the last batch.
func (e *Engine) SendCampaign(ctx context.Context, req SendRequest) (*domain.DispatchResult, error) {
	if req.ContactLimit < 0 {
		return nil, domain.InvalidInputf("contact_limit must not be negative")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.locker != nil {
		if err := e.locker.Lock(ctx); err != nil {
			return nil, fmt.Errorf("acquire send lock: %w", err)
		}
		defer func() {
			if err := e.locker.Unlock(context.Background()); err != nil {
				logger.Warn("[dispatch.Engine] release send lock", "error", err)
			}
		}()
	}
	ctx = context.WithoutCancel(ctx)

	c, err := e.campaigns.Get(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}

	contacts, err := e.contacts.Eligible(ctx, req.ContactLimit)
	if err != nil {
		return nil, fmt.Errorf("load eligible contacts: %w", err)
	}
	if len(contacts) == 0 {
		return nil, ErrNoEligibleContacts
	}

	remaining, err := e.quota.Remaining(ctx)
	if err != nil {
		return nil, err
	}
	metrics.QuotaRemaining.Set(float64(remaining))
	if remaining <= 0 {
		logger.Warn("[dispatch.Engine] daily quota exhausted", "campaign_id", c.ID)
		return nil, ErrQuotaExceeded
	}

	eligible := len(contacts)
	if req.TestMode && len(contacts) > e.testLimit {
		contacts = contacts[:e.testLimit]
	}
	if len(contacts) > remaining {
		logger.Warn("[dispatch.Engine] recipients capped to remaining quota",
			"campaign_id", c.ID, "requested", len(contacts), "remaining", remaining)
		contacts = contacts[:remaining]
	}

	res := &domain.DispatchResult{
		Success:          true,
		CampaignID:       c.ID,
		TestMode:         req.TestMode,
		EligibleContacts: eligible,
		TotalContacts:    len(contacts),
		StartedAt:        e.now(),
	}
	logger.Info("[dispatch.Engine] sending campaign",
		"campaign_id", c.ID, "provider", e.sender.Provider(), "recipients", len(contacts), "test_mode", req.TestMode)

	res.Results = e.sender.SendPersonalized(ctx, provider.PersonalizedSend{
		CampaignID: c.ID,
		Subject:    c.Subject,
		Body:       c.BodyTemplate,
		Contacts:   contacts,
	})

	ids := make(map[string]int64, len(contacts))
	for _, ct := range contacts {
		ids[ct.Email] = ct.ID
	}
	for i := range res.Results {
		b := &res.Results[i]
		metrics.Batches.WithLabelValues(metrics.Result(b.Success)).Inc()
		if !b.Success {
			res.FailedSends += b.RecipientsCount
			continue
		}
		res.SuccessfulSends += b.RecipientsCount
		if err := e.logs.LogSent(ctx, e.logRows(c.ID, b, ids)); err != nil {
			b.Error = fmt.Sprintf("record send: %v", err)
			logger.Error("[dispatch.Engine] failed to log accepted batch",
				"campaign_id", c.ID, "batch", b.BatchNumber, "message_id", b.MessageID, "error", err)
		}
	}

	if err := e.quota.RecordSent(ctx, res.SuccessfulSends); err != nil {
		logger.Error("[dispatch.Engine] failed to advance quota",
			"campaign_id", c.ID, "sent", res.SuccessfulSends, "error", err)
	}
	metrics.EmailsSent.WithLabelValues(string(e.sender.Provider())).Add(float64(res.SuccessfulSends))
	metrics.QuotaRemaining.Set(float64(remaining - res.SuccessfulSends))

	res.FinishedAt = e.now()
	logger.Info("[dispatch.Engine] campaign send finished",
		"campaign_id", c.ID, "sent", res.SuccessfulSends, "failed", res.FailedSends,
		"batches", len(res.Results), "duration", res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}

func (e *Engine) logRows(campaignID int64, b *domain.BatchResult, ids map[string]int64) []domain.EmailLog {
	at := e.now()
	rows := make([]domain.EmailLog, 0, len(b.Recipients))
	for _, email := range b.Recipients {
		row := domain.EmailLog{
			CampaignID: campaignID,
			Email:      email,
			MessageID:  b.MessageID,
			Status:     domain.LogSent,
			SentAt:     &at,
		}
		if id, ok := ids[email]; ok && id != 0 {
			row.ContactID = &id
		}
		rows = append(rows, row)
	}
	return rows
}

// SendTest sends one rendered copy of a campaign to email. It shares the
// send lock and the daily quota but writes no email log.
func (e *Engine) SendTest(ctx context.Context, campaignID int64, email, name string) (*domain.BatchResult, error) {
	if !domain.ValidEmail(email) {
		return nil, domain.InvalidInputf("invalid email %q", email)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	ctx = context.WithoutCancel(ctx)

	c, err := e.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	remaining, err := e.quota.Remaining(ctx)
	if err != nil {
		return nil, err
	}
	if remaining <= 0 {
		return nil, ErrQuotaExceeded
	}

	r := e.sender.SendSingle(ctx, 1, c.ID, domain.Contact{Email: email, Name: name}, c.Subject, c.BodyTemplate)
	metrics.Batches.WithLabelValues(metrics.Result(r.Success)).Inc()
	if r.Success {
		if err := e.quota.RecordSent(ctx, 1); err != nil {
			logger.Error("[dispatch.Engine] failed to advance quota", "campaign_id", c.ID, "error", err)
		}
		metrics.EmailsSent.WithLabelValues(string(e.sender.Provider())).Inc()
	}
	logger.Info("[dispatch.Engine] test send", "campaign_id", c.ID, "email", email, "success", r.Success)
	return &r, nil
}

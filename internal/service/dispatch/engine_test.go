package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/personalize"
	"github.com/ignite/campaign-dispatch/internal/provider"
	"github.com/ignite/campaign-dispatch/internal/repository/memory"
	"github.com/ignite/campaign-dispatch/internal/service/contact"
	"github.com/ignite/campaign-dispatch/internal/service/dispatch"
	"github.com/ignite/campaign-dispatch/internal/service/quota"
)

// fakeProvider renders client-side: one recipient per call.
type fakeProvider struct {
	mu     sync.Mutex
	sent   []*provider.Message
	failTo map[string]bool
	max    int
}

func (f *fakeProvider) Name() domain.ProviderType { return domain.ProviderSMTP }
func (f *fakeProvider) MaxRecipients() int        { return f.max }

func (f *fakeProvider) Send(_ context.Context, msg *provider.Message) (*provider.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, to := range msg.To {
		if f.failTo[to] {
			return nil, &provider.Error{Provider: f.Name(), StatusCode: 400, Body: "rejected"}
		}
	}
	f.sent = append(f.sent, msg)
	return &provider.Response{ID: fmt.Sprintf("msg-%d", len(f.sent)), Message: "Queued", StatusCode: 200}, nil
}

func (f *fakeProvider) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		out = append(out, m.To...)
	}
	return out
}

// batchProvider renders server-side.
type batchProvider struct{ fakeProvider }

func (b *batchProvider) Syntax() personalize.Syntax { return personalize.MailgunSyntax }

type harness struct {
	engine  *dispatch.Engine
	store   *memory.Store
	tracker *quota.Tracker
	now     time.Time
	mu      sync.Mutex
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	h.now = h.now.Add(d)
	h.mu.Unlock()
}

func newHarness(t *testing.T, mp provider.MailProvider, limit, batchSize int) *harness {
	t.Helper()
	h := &harness{now: time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)}
	h.store = memory.New().WithClock(h.clock)
	h.tracker = quota.NewTracker(limit, time.UTC, quota.NewMemoryCounter(), h.clock)
	client := provider.NewClient(mp, personalize.New("there"), provider.ClientConfig{
		FromEmail: "no-reply@example.com",
		FromName:  "Sales",
		TagPrefix: "cold-email-campaign",
		BatchSize: batchSize,
	}).WithSleeper(func(context.Context, time.Duration) error { return nil })
	contacts := contact.NewService(h.store.Contacts())
	h.engine = dispatch.NewEngine(h.store.Campaigns(), contacts, h.store.EmailLogs(), h.tracker, client,
		dispatch.Config{}).WithClock(h.clock)
	return h
}

func (h *harness) addContacts(t *testing.T, n int) {
	t.Helper()
	var cs []domain.Contact
	for i := 1; i <= n; i++ {
		cs = append(cs, domain.Contact{
			Email:  fmt.Sprintf("c%02d@x.com", i),
			Name:   fmt.Sprintf("Contact %d", i),
			Status: domain.ContactActive,
		})
	}
	_, err := h.store.Contacts().Upsert(context.Background(), cs)
	require.NoError(t, err)
}

func (h *harness) addCampaign(t *testing.T, subject, body string) int64 {
	t.Helper()
	id, err := h.store.Campaigns().Create(context.Background(), &domain.Campaign{
		Name: "c", Subject: subject, BodyTemplate: body, Status: domain.CampaignDraft,
	})
	require.NoError(t, err)
	return id
}

func TestSendCampaignRendersPerRecipient(t *testing.T) {
	mp := &fakeProvider{}
	h := newHarness(t, mp, 100, 10)
	_, err := h.store.Contacts().Upsert(context.Background(), []domain.Contact{
		{Email: "a@x.com", Name: "Ana", Status: domain.ContactActive},
	})
	require.NoError(t, err)
	id := h.addCampaign(t, "Hi {name}", "Hello {name}")

	res, err := h.engine.SendCampaign(context.Background(), dispatch.SendRequest{CampaignID: id})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.SuccessfulSends)
	require.Len(t, mp.sent, 1)
	assert.Equal(t, "Hi Ana", mp.sent[0].Subject)
	assert.Equal(t, "Hello Ana", mp.sent[0].Text)
}

func TestSendCampaignLogsOnlySuccessfulBatches(t *testing.T) {
	mp := &batchProvider{fakeProvider{failTo: map[string]bool{"c03@x.com": true}}}
	h := newHarness(t, mp, 100, 2)
	h.addContacts(t, 5)
	id := h.addCampaign(t, "Hi {name}", "Body")

	res, err := h.engine.SendCampaign(context.Background(), dispatch.SendRequest{CampaignID: id})
	require.NoError(t, err)

	require.Len(t, res.Results, 3)
	assert.True(t, res.Results[0].Success)
	assert.False(t, res.Results[1].Success)
	assert.Equal(t, 400, res.Results[1].StatusCode)
	assert.True(t, res.Results[2].Success)
	assert.True(t, res.Success)
	assert.Equal(t, 5, res.TotalContacts)
	assert.Equal(t, 3, res.SuccessfulSends)
	assert.Equal(t, 2, res.FailedSends)

	logs := h.store.EmailLogs().All()
	require.Len(t, logs, 3)
	emails := map[string]string{}
	for _, l := range logs {
		assert.Equal(t, domain.LogSent, l.Status)
		assert.Equal(t, id, l.CampaignID)
		require.NotNil(t, l.SentAt)
		require.NotNil(t, l.ContactID)
		emails[l.Email] = l.MessageID
	}
	assert.Equal(t, map[string]string{"c01@x.com": "msg-1", "c02@x.com": "msg-1", "c05@x.com": "msg-2"}, emails)

	sent, err := h.tracker.SentToday(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
}

func TestTestModeSendsAtMostFive(t *testing.T) {
	mp := &fakeProvider{}
	h := newHarness(t, mp, 100, 1000)
	h.addContacts(t, 12)
	id := h.addCampaign(t, "Hi", "Body")

	res, err := h.engine.SendCampaign(context.Background(), dispatch.SendRequest{CampaignID: id, TestMode: true})
	require.NoError(t, err)
	assert.Equal(t, 12, res.EligibleContacts)
	assert.Equal(t, 5, res.TotalContacts)
	assert.LessOrEqual(t, len(mp.sent), 5)
	assert.Equal(t, []string{"c01@x.com", "c02@x.com", "c03@x.com", "c04@x.com", "c05@x.com"}, mp.recipients())
}

func TestContactLimit(t *testing.T) {
	mp := &fakeProvider{}
	h := newHarness(t, mp, 100, 1000)
	h.addContacts(t, 4)
	id := h.addCampaign(t, "Hi", "Body")

	res, err := h.engine.SendCampaign(context.Background(), dispatch.SendRequest{CampaignID: id, ContactLimit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.EligibleContacts)
	assert.Equal(t, 2, res.SuccessfulSends)

	_, err = h.engine.SendCampaign(context.Background(), dispatch.SendRequest{CampaignID: id, ContactLimit: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuotaNeverExceeded(t *testing.T) {
	mp := &fakeProvider{}
	h := newHarness(t, mp, 3, 1000)
	h.addContacts(t, 5)
	id := h.addCampaign(t, "Hi", "Body")
	ctx := context.Background()

	res, err := h.engine.SendCampaign(ctx, dispatch.SendRequest{CampaignID: id})
	require.NoError(t, err)
	assert.Equal(t, 5, res.EligibleContacts)
	assert.Equal(t, 3, res.SuccessfulSends)

	_, err = h.engine.SendCampaign(ctx, dispatch.SendRequest{CampaignID: id})
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Len(t, h.store.EmailLogs().All(), 3)

	// next day the counter starts over
	h.advance(24 * time.Hour)
	res, err = h.engine.SendCampaign(ctx, dispatch.SendRequest{CampaignID: id})
	require.NoError(t, err)
	assert.Equal(t, 3, res.SuccessfulSends)
	assert.Len(t, h.store.EmailLogs().All(), 6)
}

func TestConcurrentSendsShareQuota(t *testing.T) {
	mp := &fakeProvider{}
	h := newHarness(t, mp, 1, 1000)
	h.addContacts(t, 1)
	first := h.addCampaign(t, "A", "Body")
	second := h.addCampaign(t, "B", "Body")

	type outcome struct {
		res *domain.DispatchResult
		err error
	}
	out := make([]outcome, 2)
	var wg sync.WaitGroup
	for i, id := range []int64{first, second} {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			res, err := h.engine.SendCampaign(context.Background(), dispatch.SendRequest{CampaignID: id})
			out[i] = outcome{res, err}
		}(i, id)
	}
	wg.Wait()

	succeeded, exceeded := 0, 0
	for _, o := range out {
		switch {
		case o.err == nil:
			succeeded++
			assert.Equal(t, 1, o.res.SuccessfulSends)
		case errors.Is(o.err, domain.ErrQuotaExceeded):
			exceeded++
		default:
			t.Fatalf("unexpected error: %v", o.err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, exceeded)
	assert.Len(t, mp.sent, 1)
}

func TestSendCampaignPreconditions(t *testing.T) {
	h := newHarness(t, &fakeProvider{}, 10, 10)
	ctx := context.Background()

	_, err := h.engine.SendCampaign(ctx, dispatch.SendRequest{CampaignID: 99})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	id := h.addCampaign(t, "Hi", "Body")
	_, err = h.engine.SendCampaign(ctx, dispatch.SendRequest{CampaignID: id})
	assert.ErrorIs(t, err, domain.ErrNoEligibleContacts)
}

func TestSendTest(t *testing.T) {
	mp := &fakeProvider{}
	h := newHarness(t, mp, 1, 10)
	id := h.addCampaign(t, "Hi {name}", "Body")
	ctx := context.Background()

	r, err := h.engine.SendTest(ctx, id, "me@x.com", "")
	require.NoError(t, err)
	assert.True(t, r.Success)
	require.Len(t, mp.sent, 1)
	assert.Equal(t, "Hi there", mp.sent[0].Subject)
	assert.Empty(t, h.store.EmailLogs().All())

	_, err = h.engine.SendTest(ctx, id, "me@x.com", "Me")
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	_, err = h.engine.SendTest(ctx, id, "bad", "Me")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

type recordingLocker struct {
	lockErr  error
	locked   int
	unlocked int
}

func (l *recordingLocker) Lock(context.Context) error {
	if l.lockErr != nil {
		return l.lockErr
	}
	l.locked++
	return nil
}

func (l *recordingLocker) Unlock(context.Context) error {
	l.unlocked++
	return nil
}

func TestSendCampaignTakesLocker(t *testing.T) {
	mp := &fakeProvider{}
	h := newHarness(t, mp, 100, 10)
	h.addContacts(t, 2)
	id := h.addCampaign(t, "Hi", "Body")

	l := &recordingLocker{}
	h.engine.WithLocker(l)
	_, err := h.engine.SendCampaign(context.Background(), dispatch.SendRequest{CampaignID: id})
	require.NoError(t, err)
	assert.Equal(t, 1, l.locked)
	assert.Equal(t, 1, l.unlocked)

	// released on precondition failure too
	_, err = h.engine.SendCampaign(context.Background(), dispatch.SendRequest{CampaignID: 404})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 2, l.unlocked)
}

func TestSendCampaignLockFailure(t *testing.T) {
	mp := &fakeProvider{}
	h := newHarness(t, mp, 100, 10)
	h.addContacts(t, 1)
	id := h.addCampaign(t, "Hi", "Body")

	h.engine.WithLocker(&recordingLocker{lockErr: errors.New("redis down")})
	_, err := h.engine.SendCampaign(context.Background(), dispatch.SendRequest{CampaignID: id})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire send lock")
	assert.Empty(t, mp.sent)
}

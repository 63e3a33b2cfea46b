package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/provider"
	"github.com/ignite/campaign-dispatch/internal/repository/memory"
	"github.com/ignite/campaign-dispatch/internal/service/reconcile"
)

type pagedBounces struct {
	pages [][]provider.Bounce
	err   error
}

func (p *pagedBounces) ListBounces(_ context.Context, visit func([]provider.Bounce) error) error {
	for _, page := range p.pages {
		if err := visit(page); err != nil {
			return err
		}
	}
	return p.err
}

func TestBounceSyncMarksKnownContacts(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	_, err := store.Contacts().Upsert(ctx, []domain.Contact{
		{Email: "a@x.com", Status: domain.ContactActive},
		{Email: "b@x.com", Status: domain.ContactInactive},
		{Email: "c@x.com", Status: domain.ContactActive},
	})
	require.NoError(t, err)

	lister := &pagedBounces{pages: [][]provider.Bounce{
		{{Address: "a@x.com", Code: "550"}, {Address: "stranger@x.com"}},
		{{Address: "b@x.com"}},
	}}
	res, err := reconcile.NewBounceSync(lister, store.Contacts()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 3, res.Bounces)
	assert.Equal(t, 2, res.Marked)

	bounced, _, err := store.Contacts().List(ctx, domain.ContactFilter{Status: domain.ContactBounced})
	require.NoError(t, err)
	assert.Len(t, bounced, 2)
}

func TestBounceSyncError(t *testing.T) {
	lister := &pagedBounces{err: errors.New("mailgun error 401")}
	_, err := reconcile.NewBounceSync(lister, memory.New().Contacts()).Run(context.Background())
	assert.Error(t, err)
}

func TestBounceSyncSchedule(t *testing.T) {
	bs := reconcile.NewBounceSync(&pagedBounces{}, memory.New().Contacts())
	assert.Error(t, bs.Start("not a cron spec"))
	require.NoError(t, bs.Start("@daily"))
	require.NoError(t, bs.Stop(context.Background()))
}

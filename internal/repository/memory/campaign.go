package memory

import (
	"context"
	"sort"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository in memory.
type CampaignRepo struct{ s *Store }

func (r *CampaignRepo) Create(_ context.Context, c *domain.Campaign) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextCampaign++
	cp := *c
	cp.ID = r.s.nextCampaign
	cp.CreatedAt = r.s.now()
	cp.UpdatedAt = cp.CreatedAt
	r.s.campaigns[cp.ID] = &cp
	c.CreatedAt, c.UpdatedAt = cp.CreatedAt, cp.UpdatedAt
	return cp.ID, nil
}

func (r *CampaignRepo) Get(_ context.Context, id int64) (*domain.Campaign, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *CampaignRepo) List(_ context.Context) ([]domain.Campaign, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Campaign, 0, len(r.s.campaigns))
	for _, c := range r.s.campaigns {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *CampaignRepo) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.campaigns), nil
}

// Package memory holds process-local implementations of the repository
// interfaces. The server falls back to it when no database is configured,
// and service tests use it as their fake.
package memory

import (
	"sync"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Store is the shared state behind the repositories. The zero value is not
// usable; call New.
type Store struct {
	mu sync.RWMutex

	contacts     map[int64]*domain.Contact
	byEmail      map[string]int64
	nextContact  int64
	campaigns    map[int64]*domain.Campaign
	nextCampaign int64
	logs         []*domain.EmailLog
	nextLog      int64

	now func() time.Time
}

func New() *Store {
	return &Store{
		contacts:  make(map[int64]*domain.Contact),
		byEmail:   make(map[string]int64),
		campaigns: make(map[int64]*domain.Campaign),
		now:       time.Now,
	}
}

// WithClock replaces the clock used for created/updated timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Contacts() *ContactRepo   { return &ContactRepo{s} }
func (s *Store) Campaigns() *CampaignRepo { return &CampaignRepo{s} }
func (s *Store) EmailLogs() *EmailLogRepo { return &EmailLogRepo{s} }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

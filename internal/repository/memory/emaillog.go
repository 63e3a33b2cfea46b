package memory

import (
	"context"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// EmailLogRepo stores email logs in memory. It serves the dispatch engine,
// the reconciler and campaign stats.
type EmailLogRepo struct{ s *Store }

func (r *EmailLogRepo) LogSent(_ context.Context, logs []domain.EmailLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	for _, l := range logs {
		r.s.nextLog++
		l.ID = r.s.nextLog
		l.CreatedAt = now
		l.ContactID = clonePtr(l.ContactID)
		l.SentAt = clonePtr(l.SentAt)
		r.s.logs = append(r.s.logs, &l)
	}
	return nil
}

// All returns a copy of every row in insertion order.
func (r *EmailLogRepo) All() []domain.EmailLog {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.EmailLog, len(r.s.logs))
	for i, l := range r.s.logs {
		out[i] = *l
	}
	return out
}

func (r *EmailLogRepo) FindByMessage(_ context.Context, messageID, email string) (int64, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for i := len(r.s.logs) - 1; i >= 0; i-- {
		l := r.s.logs[i]
		if l.MessageID == messageID && l.Email == email {
			return l.ID, true, nil
		}
	}
	return 0, false, nil
}

// FindLatest returns the row for email with the latest sent_at, ties broken
// by the highest id.
func (r *EmailLogRepo) FindLatest(_ context.Context, email string) (int64, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var best *domain.EmailLog
	for _, l := range r.s.logs {
		if l.Email != email {
			continue
		}
		if best == nil || sentAfterOrEqual(l, best) {
			best = l
		}
	}
	if best == nil {
		return 0, false, nil
	}
	return best.ID, true, nil
}

func sentAfterOrEqual(a, b *domain.EmailLog) bool {
	var at, bt time.Time
	if a.SentAt != nil {
		at = *a.SentAt
	}
	if b.SentAt != nil {
		bt = *b.SentAt
	}
	return !at.Before(bt)
}

func (r *EmailLogRepo) ApplyUpdate(_ context.Context, id int64, u domain.LogUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.logs {
		if l.ID != id {
			continue
		}
		l.Status = u.Status
		at := u.At
		switch u.Stamp {
		case domain.StampOpened:
			if l.OpenedAt == nil {
				l.OpenedAt = &at
			}
		case domain.StampClicked:
			if l.ClickedAt == nil {
				l.ClickedAt = &at
			}
		case domain.StampBounced:
			if l.BouncedAt == nil {
				l.BouncedAt = &at
			}
		case domain.StampNone:
		}
		return nil
	}
	return nil
}

func (r *EmailLogRepo) CampaignCounts(_ context.Context, campaignID int64) (domain.CampaignCounts, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var c domain.CampaignCounts
	for _, l := range r.s.logs {
		if l.CampaignID != campaignID {
			continue
		}
		c.TotalSent++
		if l.OpenedAt != nil {
			c.TotalOpened++
		}
		if l.ClickedAt != nil {
			c.TotalClicked++
		}
		if l.BouncedAt != nil {
			c.TotalBounced++
		}
	}
	return c, nil
}

func (r *EmailLogRepo) CountSentBetween(_ context.Context, from, to time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, l := range r.s.logs {
		if l.SentAt != nil && !l.SentAt.Before(from) && l.SentAt.Before(to) {
			n++
		}
	}
	return n, nil
}

package memory

import (
	"context"
	"sort"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/contact"
)

// ContactRepo implements contact.Repository in memory.
type ContactRepo struct{ s *Store }

func copyContact(c *domain.Contact) domain.Contact {
	out := *c
	out.BatchID = clonePtr(c.BatchID)
	return out
}

func (r *ContactRepo) Upsert(_ context.Context, contacts []domain.Contact) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	for _, c := range contacts {
		c.BatchID = clonePtr(c.BatchID)
		if id, ok := r.s.byEmail[c.Email]; ok {
			existing := r.s.contacts[id]
			if existing.Status == domain.ContactBounced {
				c.Status = domain.ContactBounced
			}
			c.ID = id
			c.CreatedAt = existing.CreatedAt
			c.UpdatedAt = now
			r.s.contacts[id] = &c
			continue
		}
		r.s.nextContact++
		c.ID = r.s.nextContact
		c.CreatedAt, c.UpdatedAt = now, now
		r.s.contacts[c.ID] = &c
		r.s.byEmail[c.Email] = c.ID
	}
	return len(contacts), nil
}

// sorted returns contacts ordered by id. Callers hold the lock.
func (r *ContactRepo) sorted(keep func(*domain.Contact) bool) []domain.Contact {
	var out []domain.Contact
	for _, c := range r.s.contacts {
		if keep(c) {
			out = append(out, copyContact(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func inBatch(c *domain.Contact, batchID string) bool {
	return c.BatchID != nil && *c.BatchID == batchID
}

func (r *ContactRepo) List(_ context.Context, f domain.ContactFilter) ([]domain.Contact, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := r.sorted(func(c *domain.Contact) bool {
		if f.Status != "" && c.Status != f.Status {
			return false
		}
		return f.BatchID == "" || inBatch(c, f.BatchID)
	})
	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < total {
		end = f.Offset + f.Limit
	}
	return all[f.Offset:end], total, nil
}

func (r *ContactRepo) ListActive(_ context.Context, limit int) ([]domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.sorted(func(c *domain.Contact) bool { return c.Status == domain.ContactActive })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ContactRepo) Get(_ context.Context, id int64) (*domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.contacts[id]
	if !ok {
		return nil, contact.ErrNotFound
	}
	out := copyContact(c)
	return &out, nil
}

func (r *ContactRepo) UpdateStatus(_ context.Context, id int64, status domain.ContactStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contacts[id]
	if !ok {
		return contact.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = r.s.now()
	return nil
}

func (r *ContactRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contacts[id]
	if !ok {
		return contact.ErrNotFound
	}
	delete(r.s.byEmail, c.Email)
	delete(r.s.contacts, id)
	for _, l := range r.s.logs {
		if l.ContactID != nil && *l.ContactID == id {
			l.ContactID = nil
		}
	}
	return nil
}

func (r *ContactRepo) CountActive(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, c := range r.s.contacts {
		if c.Status == domain.ContactActive {
			n++
		}
	}
	return n, nil
}

func (r *ContactRepo) ListBatches(_ context.Context) ([]domain.Batch, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	byID := make(map[string]*domain.Batch)
	for _, c := range r.s.contacts {
		if c.BatchID == nil {
			continue
		}
		b, ok := byID[*c.BatchID]
		if !ok {
			b = &domain.Batch{ID: *c.BatchID, FirstImportedAt: c.CreatedAt, LastImportedAt: c.UpdatedAt}
			byID[b.ID] = b
		}
		b.Count++
		if c.Status == domain.ContactActive {
			b.ActiveCount++
		}
		if c.CreatedAt.Before(b.FirstImportedAt) {
			b.FirstImportedAt = c.CreatedAt
		}
		if c.UpdatedAt.After(b.LastImportedAt) {
			b.LastImportedAt = c.UpdatedAt
		}
	}
	out := make([]domain.Batch, 0, len(byID))
	for _, b := range byID {
		b.Status = domain.AggregateStatus(b.ActiveCount)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastImportedAt.Equal(out[j].LastImportedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].LastImportedAt.After(out[j].LastImportedAt)
	})
	return out, nil
}

func (r *ContactRepo) ActivateBatch(_ context.Context, batchID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	found := false
	for _, c := range r.s.contacts {
		if inBatch(c, batchID) {
			found = true
			break
		}
	}
	if !found {
		return 0, contact.ErrBatchNotFound
	}
	now := r.s.now()
	n := 0
	for _, c := range r.s.contacts {
		if c.Status == domain.ContactBounced {
			continue
		}
		want := domain.ContactInactive
		if inBatch(c, batchID) {
			want = domain.ContactActive
			n++
		}
		if c.Status != want {
			c.Status = want
			c.UpdatedAt = now
		}
	}
	return n, nil
}

func (r *ContactRepo) DeactivateBatch(_ context.Context, batchID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	found, n := false, 0
	now := r.s.now()
	for _, c := range r.s.contacts {
		if !inBatch(c, batchID) {
			continue
		}
		found = true
		if c.Status == domain.ContactActive {
			c.Status = domain.ContactInactive
			c.UpdatedAt = now
			n++
		}
	}
	if !found {
		return 0, contact.ErrBatchNotFound
	}
	return n, nil
}

func (r *ContactRepo) MarkBounced(_ context.Context, emails []string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	now := r.s.now()
	for _, e := range emails {
		id, ok := r.s.byEmail[e]
		if !ok {
			continue
		}
		c := r.s.contacts[id]
		if c.Status != domain.ContactBounced {
			c.Status = domain.ContactBounced
			c.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

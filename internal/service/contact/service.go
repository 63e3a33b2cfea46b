package contact

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/importer"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// DefaultSource tags imported contacts when the caller gives no source.
const DefaultSource = "csv_import"

// Service implements contact business logic. It is safe for concurrent use
// if the repository is.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a contact service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock replaces the clock used for batch ids.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// NewBatchID returns an id of the form batch_<yyyymmdd_hhmmss>_<6 hex>.
func NewBatchID(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("batch_%s_%s", t.Format("20060102_150405"), suffix)
}

// ImportOptions controls an import.
type ImportOptions struct {
	Source   string
	Activate bool
}

// Import parses r and stores its rows as a new batch.
func (s *Service) Import(ctx context.Context, r io.Reader, format importer.Format, opts ImportOptions) (*domain.ImportResult, error) {
	recs, err := importer.Parse(r, format)
	if err != nil {
		return nil, err
	}
	return s.ImportRecords(ctx, recs, opts)
}

// ImportRecords upserts recs as a new batch. Rows with a missing or
// malformed email are skipped and reported in the result; a repeated email
// within the file keeps its last row. When opts.Activate is set the new
// batch becomes the only active one.
func (s *Service) ImportRecords(ctx context.Context, recs []importer.Record, opts ImportOptions) (*domain.ImportResult, error) {
	source := strings.TrimSpace(opts.Source)
	if source == "" {
		source = DefaultSource
	}
	batchID := NewBatchID(s.now())
	res := &domain.ImportResult{BatchID: batchID, Source: source, Total: len(recs)}

	byEmail := make(map[string]int, len(recs))
	contacts := make([]domain.Contact, 0, len(recs))
	for _, rec := range recs {
		if !domain.ValidEmail(rec.Email) {
			res.Skipped++
			msg := fmt.Sprintf("line %d: invalid email %q", rec.Line, rec.Email)
			res.Errors = append(res.Errors, msg)
			logger.Warn("[contact.Service] skipping import row", "line", rec.Line, "email", rec.Email)
			continue
		}
		c := domain.Contact{
			Email:    rec.Email,
			Name:     rec.Name,
			Company:  rec.Company,
			Position: rec.Position,
			Source:   source,
			Status:   domain.ContactInactive,
			BatchID:  &batchID,
		}
		if i, dup := byEmail[rec.Email]; dup {
			contacts[i] = c
			continue
		}
		byEmail[rec.Email] = len(contacts)
		contacts = append(contacts, c)
	}

	if len(contacts) == 0 {
		logger.Warn("[contact.Service] import had no valid rows", "batch_id", batchID, "total", res.Total)
		return res, nil
	}

	n, err := s.repo.Upsert(ctx, contacts)
	if err != nil {
		return nil, fmt.Errorf("import contacts: %w", err)
	}
	res.Imported = n

	if opts.Activate {
		if _, err := s.repo.ActivateBatch(ctx, batchID); err != nil {
			return nil, fmt.Errorf("activate imported batch: %w", err)
		}
		res.Activated = true
	}

	logger.Info("[contact.Service] import complete",
		"batch_id", batchID, "imported", res.Imported, "skipped", res.Skipped, "activated", res.Activated)
	return res, nil
}

// List returns contacts matching f.
func (s *Service) List(ctx context.Context, f domain.ContactFilter) ([]domain.Contact, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, 0, domain.InvalidInputf("limit and offset must not be negative")
	}
	return s.repo.List(ctx, f)
}

// Get returns a single contact.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Contact, error) {
	return s.repo.Get(ctx, id)
}

// UpdateStatus sets a contact's status explicitly.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status domain.ContactStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

// Delete removes a contact. Its email logs keep the denormalized address.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Eligible returns the contacts a campaign send may target, in load order.
func (s *Service) Eligible(ctx context.Context, limit int) ([]domain.Contact, error) {
	return s.repo.ListActive(ctx, limit)
}

func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.repo.CountActive(ctx)
}

// ListBatches returns every batch with its aggregate status.
func (s *Service) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	batches, err := s.repo.ListBatches(ctx)
	if err != nil {
		return nil, err
	}
	for i := range batches {
		batches[i].Status = domain.AggregateStatus(batches[i].ActiveCount)
	}
	return batches, nil
}

// ContactsInBatch lists the members of one batch.
func (s *Service) ContactsInBatch(ctx context.Context, batchID string) ([]domain.Contact, error) {
	if batchID == "" {
		return nil, domain.InvalidInputf("batch id is required")
	}
	contacts, _, err := s.repo.List(ctx, domain.ContactFilter{BatchID: batchID})
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, ErrBatchNotFound
	}
	return contacts, nil
}

// ActivateBatch makes batchID the only active batch.
func (s *Service) ActivateBatch(ctx context.Context, batchID string) (int, error) {
	if batchID == "" {
		return 0, domain.InvalidInputf("batch id is required")
	}
	n, err := s.repo.ActivateBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}
	logger.Info("[contact.Service] batch activated", "batch_id", batchID, "contacts", n)
	return n, nil
}

// DeactivateBatch deactivates every member of batchID.
func (s *Service) DeactivateBatch(ctx context.Context, batchID string) (int, error) {
	if batchID == "" {
		return 0, domain.InvalidInputf("batch id is required")
	}
	n, err := s.repo.DeactivateBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}
	logger.Info("[contact.Service] batch deactivated", "batch_id", batchID, "contacts", n)
	return n, nil
}

// MarkBounced flags the given addresses as bounced.
func (s *Service) MarkBounced(ctx context.Context, emails []string) (int, error) {
	if len(emails) == 0 {
		return 0, nil
	}
	return s.repo.MarkBounced(ctx, emails)
}

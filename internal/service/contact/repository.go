package contact

import (
	"context"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Repository defines the data access contract for contacts.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Upsert inserts contacts or overwrites the existing row with the same
	// email. A bounced row keeps its bounced status. Returns rows written.
	Upsert(ctx context.Context, contacts []domain.Contact) (int, error)

	// List returns contacts matching f ordered by id, plus the total match count.
	List(ctx context.Context, f domain.ContactFilter) ([]domain.Contact, int, error)

	// ListActive returns active contacts ordered by id. limit <= 0 means all.
	ListActive(ctx context.Context, limit int) ([]domain.Contact, error)

	// Get returns ErrNotFound if the contact doesn't exist.
	Get(ctx context.Context, id int64) (*domain.Contact, error)

	UpdateStatus(ctx context.Context, id int64, status domain.ContactStatus) error
	Delete(ctx context.Context, id int64) error

	// CountActive returns the number of active contacts.
	CountActive(ctx context.Context) (int, error)

	// ListBatches returns one summary per batch id, newest import first.
	ListBatches(ctx context.Context) ([]domain.Batch, error)

	// ActivateBatch atomically activates every non-bounced member of the
	// batch and deactivates every other non-bounced contact. Returns the
	// number of members activated, or ErrBatchNotFound.
	ActivateBatch(ctx context.Context, batchID string) (int, error)

	// DeactivateBatch deactivates the batch's non-bounced members.
	DeactivateBatch(ctx context.Context, batchID string) (int, error)

	// MarkBounced sets status bounced on the contacts with these emails and
	// returns how many rows changed.
	MarkBounced(ctx context.Context, emails []string) (int, error)
}

package campaign

import (
	"context"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Create inserts c and returns its generated id.
	Create(ctx context.Context, c *domain.Campaign) (int64, error)

	// Get returns ErrNotFound if the campaign doesn't exist.
	Get(ctx context.Context, id int64) (*domain.Campaign, error)

	// List returns every campaign ordered by created_at DESC.
	List(ctx context.Context) ([]domain.Campaign, error)

	Count(ctx context.Context) (int, error)
}

// LogStats reads aggregate figures from the email log.
type LogStats interface {
	// CampaignCounts counts the campaign's log rows and those with an
	// opened, clicked or bounced timestamp.
	CampaignCounts(ctx context.Context, campaignID int64) (domain.CampaignCounts, error)

	// CountSentBetween counts rows with sent_at in [from, to).
	CountSentBetween(ctx context.Context, from, to time.Time) (int, error)
}

// ContactCounter reports how many contacts are eligible to receive mail.
type ContactCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// Quota exposes the daily allowance for the daily stats view.
type Quota interface {
	Today() string
	DayBounds() (time.Time, time.Time)
	Limit() int
	Remaining(ctx context.Context) (int, error)
}

// TemplateValidator rejects templates that would fail to render.
type TemplateValidator interface {
	Validate(tpl string) error
}

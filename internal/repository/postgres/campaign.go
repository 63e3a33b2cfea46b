package postgres

import (
	"context"
	"database/sql"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) (int64, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO campaigns (name, subject, body_template, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, c.Name, c.Subject, c.BodyTemplate, c.Status).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return 0, storageErr("create campaign", err)
	}
	return c.ID, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id int64) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, subject, body_template, status, created_at, updated_at
		FROM campaigns WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Subject, &c.BodyTemplate, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get campaign", err)
	}
	return c, nil
}

// List returns campaigns newest first.
func (r *CampaignRepo) List(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, subject, body_template, status, created_at, updated_at
		FROM campaigns ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, storageErr("list campaigns", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Subject, &c.BodyTemplate, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, storageErr("list campaigns", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list campaigns", err)
	}
	return out, nil
}

func (r *CampaignRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`).Scan(&n); err != nil {
		return 0, storageErr("count campaigns", err)
	}
	return n, nil
}

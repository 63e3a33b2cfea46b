package campaign

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// Service implements campaign business logic. All public methods are safe
// for concurrent use if the underlying repositories are.
type Service struct {
	repo      Repository
	logs      LogStats
	contacts  ContactCounter
	quota     Quota
	templates TemplateValidator
}

// NewService creates a campaign service. templates may be nil to skip
// template validation.
func NewService(repo Repository, logs LogStats, contacts ContactCounter, quota Quota, templates TemplateValidator) *Service {
	return &Service{repo: repo, logs: logs, contacts: contacts, quota: quota, templates: templates}
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Create validates and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Campaign, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, domain.InvalidInputf("name is required")
	}
	if strings.TrimSpace(in.Subject) == "" {
		return nil, domain.InvalidInputf("subject is required")
	}
	if strings.TrimSpace(in.Body) == "" {
		return nil, domain.InvalidInputf("body is required")
	}
	if s.templates != nil {
		if err := s.templates.Validate(in.Subject); err != nil {
			return nil, domain.InvalidInputf("subject: %v", err)
		}
		if err := s.templates.Validate(in.Body); err != nil {
			return nil, domain.InvalidInputf("body: %v", err)
		}
	}

	c := &domain.Campaign{
		Name:         in.Name,
		Subject:      in.Subject,
		BodyTemplate: in.Body,
		Status:       domain.CampaignDraft,
	}
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id
	logger.Info("[campaign.Service] campaign created", "campaign_id", id, "name", c.Name)
	return c, nil
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns every campaign, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Campaign, error) {
	return s.repo.List(ctx)
}

// Stats returns engagement figures for a campaign.
func (s *Service) Stats(ctx context.Context, id int64) (*domain.CampaignStats, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.logs.CampaignCounts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("campaign counts: %w", err)
	}
	return &domain.CampaignStats{
		CampaignID:   c.ID,
		CampaignName: c.Name,
		TotalSent:    counts.TotalSent,
		TotalOpened:  counts.TotalOpened,
		TotalClicked: counts.TotalClicked,
		TotalBounced: counts.TotalBounced,
		OpenRate:     Rate(counts.TotalOpened, counts.TotalSent),
		ClickRate:    Rate(counts.TotalClicked, counts.TotalSent),
		BounceRate:   Rate(counts.TotalBounced, counts.TotalSent),
	}, nil
}

// Rate is part/total as a percentage rounded to two decimals and clamped
// to [0, 100]. It is 0 when total is 0.
func Rate(part, total int) float64 {
	if total <= 0 || part <= 0 {
		return 0
	}
	r := math.Round(float64(part)/float64(total)*10000) / 100
	return math.Min(r, 100)
}

// DailyStats reports today's sending against the quota. Today is the
// quota's calendar day in its configured timezone.
func (s *Service) DailyStats(ctx context.Context) (*domain.DailyStats, error) {
	from, to := s.quota.DayBounds()
	sent, err := s.logs.CountSentBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("count sent today: %w", err)
	}
	contacts, err := s.contacts.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count contacts: %w", err)
	}
	campaigns, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count campaigns: %w", err)
	}
	remaining, err := s.quota.Remaining(ctx)
	if err != nil {
		return nil, fmt.Errorf("remaining quota: %w", err)
	}
	return &domain.DailyStats{
		Date:            s.quota.Today(),
		EmailsSentToday: sent,
		TotalContacts:   contacts,
		TotalCampaigns:  campaigns,
		RemainingQuota:  remaining,
		DailyLimit:      s.quota.Limit(),
	}, nil
}

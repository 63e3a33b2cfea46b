package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft CampaignStatus = "draft"
)

// Campaign is a named subject/body template pair. Templates use {name},
// {company}, {position}, {source} and {email} placeholders resolved per
// recipient at send time. Campaigns are immutable once created.
type Campaign struct {
	ID           int64          `json:"id" db:"id"`
	Name         string         `json:"name" db:"name"`
	Subject      string         `json:"subject" db:"subject"`
	BodyTemplate string         `json:"body_template" db:"body_template"`
	Status       CampaignStatus `json:"status" db:"status"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// CampaignCounts are the raw log counters behind CampaignStats.
type CampaignCounts struct {
	TotalSent    int `json:"total_sent"`
	TotalOpened  int `json:"total_opened"`
	TotalClicked int `json:"total_clicked"`
	TotalBounced int `json:"total_bounced"`
}

// CampaignStats are per-campaign engagement figures. Rates are percentages.
type CampaignStats struct {
	CampaignID   int64   `json:"campaign_id"`
	CampaignName string  `json:"campaign_name"`
	TotalSent    int     `json:"total_sent"`
	TotalOpened  int     `json:"total_opened"`
	TotalClicked int     `json:"total_clicked"`
	TotalBounced int     `json:"total_bounced"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
	BounceRate   float64 `json:"bounce_rate"`
}

// DailyStats is the operator view of today's sending.
type DailyStats struct {
	Date            string `json:"date"`
	EmailsSentToday int    `json:"emails_sent_today"`
	TotalContacts   int    `json:"total_contacts"`
	TotalCampaigns  int    `json:"total_campaigns"`
	RemainingQuota  int    `json:"remaining_quota"`
	DailyLimit      int    `json:"daily_limit"`
}

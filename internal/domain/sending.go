package domain

import "time"

// ProviderType identifies the mail provider used for sending.
type ProviderType string

const (
	ProviderMailgun ProviderType = "mailgun"
	ProviderSES     ProviderType = "ses"
	ProviderSMTP    ProviderType = "smtp"
	ProviderResend  ProviderType = "resend"
)

// Valid reports whether p names a supported provider.
func (p ProviderType) Valid() bool {
	switch p {
	case ProviderMailgun, ProviderSES, ProviderSMTP, ProviderResend:
		return true
	}
	return false
}

// BatchResult is the outcome of one provider call during a campaign send.
// Recipients lists the addresses the call covered; rows are logged for them
// only when Success is true.
type BatchResult struct {
	BatchNumber     int      `json:"batch_number"`
	RecipientsCount int      `json:"recipients_count"`
	Recipients      []string `json:"-"`
	Success         bool     `json:"success"`
	StatusCode      int      `json:"status_code,omitempty"`
	MessageID       string   `json:"message_id,omitempty"`
	Message         string   `json:"message,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// DispatchResult is returned by a synchronous campaign send.
type DispatchResult struct {
	Success          bool          `json:"success"`
	CampaignID       int64         `json:"campaign_id"`
	TestMode         bool          `json:"test_mode"`
	EligibleContacts int           `json:"eligible_contacts"`
	TotalContacts    int           `json:"total_contacts"`
	SuccessfulSends  int           `json:"successful_sends"`
	FailedSends      int           `json:"failed_sends"`
	Results          []BatchResult `json:"results"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
}

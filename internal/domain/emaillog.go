package domain

import "time"

// EmailLogStatus is the delivery state of one logged message.
type EmailLogStatus string

const (
	LogPending      EmailLogStatus = "pending"
	LogSent         EmailLogStatus = "sent"
	LogDelivered    EmailLogStatus = "delivered"
	LogOpened       EmailLogStatus = "opened"
	LogClicked      EmailLogStatus = "clicked"
	LogBounced      EmailLogStatus = "bounced"
	LogComplained   EmailLogStatus = "complained"
	LogUnsubscribed EmailLogStatus = "unsubscribed"
)

// EmailLog is one row per (campaign, contact) send. MessageID is the
// provider identifier of the call that accepted the message.
type EmailLog struct {
	ID         int64          `json:"id" db:"id"`
	CampaignID int64          `json:"campaign_id" db:"campaign_id"`
	ContactID  *int64         `json:"contact_id" db:"contact_id"`
	Email      string         `json:"email" db:"email"`
	MessageID  string         `json:"message_id" db:"message_id"`
	Status     EmailLogStatus `json:"status" db:"status"`
	SentAt     *time.Time     `json:"sent_at" db:"sent_at"`
	OpenedAt   *time.Time     `json:"opened_at" db:"opened_at"`
	ClickedAt  *time.Time     `json:"clicked_at" db:"clicked_at"`
	BouncedAt  *time.Time     `json:"bounced_at" db:"bounced_at"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

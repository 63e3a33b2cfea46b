package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// EmailLogRepo persists per-recipient send records and applies delivery
// events to them.
type EmailLogRepo struct{ db *sql.DB }

// NewEmailLogRepo creates a Postgres-backed email log repository.
func NewEmailLogRepo(db *sql.DB) *EmailLogRepo { return &EmailLogRepo{db: db} }

func (r *EmailLogRepo) LogSent(ctx context.Context, logs []domain.EmailLog) error {
	for start := 0; start < len(logs); start += maxRowsPerInsert {
		end := min(start+maxRowsPerInsert, len(logs))
		chunk := logs[start:end]
		args := make([]any, 0, len(chunk)*6)
		for _, l := range chunk {
			args = append(args, l.CampaignID, l.ContactID, l.Email, l.MessageID, l.Status, l.SentAt)
		}
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO email_logs (campaign_id, contact_id, email, message_id, status, sent_at)
			VALUES `+placeholders(len(chunk), 6), args...); err != nil {
			return storageErr("insert email logs", err)
		}
	}
	return nil
}

func (r *EmailLogRepo) findOne(ctx context.Context, op, q string, args ...any) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storageErr(op, err)
	}
	return id, true, nil
}

func (r *EmailLogRepo) FindByMessage(ctx context.Context, messageID, email string) (int64, bool, error) {
	return r.findOne(ctx, "find log by message", `
		SELECT id FROM email_logs
		WHERE message_id = $1 AND email = $2
		ORDER BY id DESC LIMIT 1
	`, messageID, email)
}

func (r *EmailLogRepo) FindLatest(ctx context.Context, email string) (int64, bool, error) {
	return r.findOne(ctx, "find latest log", `
		SELECT id FROM email_logs
		WHERE email = $1
		ORDER BY sent_at DESC NULLS LAST, id DESC LIMIT 1
	`, email)
}

func stampColumn(s domain.LogStamp) string {
	switch s {
	case domain.StampOpened:
		return "opened_at"
	case domain.StampClicked:
		return "clicked_at"
	case domain.StampBounced:
		return "bounced_at"
	case domain.StampNone:
	}
	return ""
}

// ApplyUpdate sets the status and, for stamped events, the first-seen
// timestamp. An existing timestamp is never overwritten.
func (r *EmailLogRepo) ApplyUpdate(ctx context.Context, id int64, u domain.LogUpdate) error {
	var err error
	if col := stampColumn(u.Stamp); col != "" {
		_, err = r.db.ExecContext(ctx, fmt.Sprintf(
			`UPDATE email_logs SET status = $1, %[1]s = COALESCE(%[1]s, $2) WHERE id = $3`, col),
			u.Status, u.At, id)
	} else {
		_, err = r.db.ExecContext(ctx, `UPDATE email_logs SET status = $1 WHERE id = $2`, u.Status, id)
	}
	if err != nil {
		return storageErr("update email log", err)
	}
	return nil
}

func (r *EmailLogRepo) CampaignCounts(ctx context.Context, campaignID int64) (domain.CampaignCounts, error) {
	var c domain.CampaignCounts
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(opened_at), COUNT(clicked_at), COUNT(bounced_at)
		FROM email_logs WHERE campaign_id = $1
	`, campaignID).Scan(&c.TotalSent, &c.TotalOpened, &c.TotalClicked, &c.TotalBounced)
	if err != nil {
		return c, storageErr("campaign counts", err)
	}
	return c, nil
}

// CountSentBetween counts rows with sent_at in [from, to).
func (r *EmailLogRepo) CountSentBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM email_logs WHERE sent_at >= $1 AND sent_at < $2`, from, to).Scan(&n); err != nil {
		return 0, storageErr("count sent", err)
	}
	return n, nil
}

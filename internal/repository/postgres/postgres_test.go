package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
	"github.com/ignite/campaign-dispatch/internal/service/contact"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

var contactCols = []string{"id", "email", "name", "company", "position", "source", "status", "batch_id", "created_at", "updated_at"}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "($1, $2)", placeholders(1, 2))
	assert.Equal(t, "($1, $2, $3), ($4, $5, $6)", placeholders(2, 3))
}

func TestContactRepo_UpsertKeepsBounced(t *testing.T) {
	db, mock := newMock(t)
	repo := NewContactRepo(db)
	batch := "batch_1"

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO contacts")).
		WithArgs("a@x.com", "Ana", "", "", "csv_import", domain.ContactInactive, &batch,
			"b@x.com", "Bo", "", "", "csv_import", domain.ContactInactive, &batch).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := repo.Upsert(context.Background(), []domain.Contact{
		{Email: "a@x.com", Name: "Ana", Source: "csv_import", Status: domain.ContactInactive, BatchID: &batch},
		{Email: "b@x.com", Name: "Bo", Source: "csv_import", Status: domain.ContactInactive, BatchID: &batch},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestContactRepo_UpsertRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewContactRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO contacts")).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err := repo.Upsert(context.Background(), []domain.Contact{{Email: "a@x.com"}})
	var se *domain.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "upsert contacts", se.Op)
}

func TestContactRepo_ListFilters(t *testing.T) {
	db, mock := newMock(t)
	repo := NewContactRepo(db)
	now := time.Now()

	mock.ExpectQuery(q("SELECT COUNT(*) FROM contacts WHERE status = $1 AND batch_id = $2")).
		WithArgs(domain.ContactActive, "b1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(q("WHERE status = $1 AND batch_id = $2 ORDER BY id LIMIT $3 OFFSET $4")).
		WithArgs(domain.ContactActive, "b1", 2, 1).
		WillReturnRows(sqlmock.NewRows(contactCols).
			AddRow(2, "b@x.com", "Bo", "", "", "csv_import", "active", "b1", now, now).
			AddRow(3, "c@x.com", "", "", "", "csv_import", "active", nil, now, now))

	out, total, err := repo.List(context.Background(), domain.ContactFilter{
		Status: domain.ContactActive, BatchID: "b1", Limit: 2, Offset: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, out, 2)
	require.NotNil(t, out[0].BatchID)
	assert.Equal(t, "b1", *out[0].BatchID)
	assert.Nil(t, out[1].BatchID)
	assert.Equal(t, domain.ContactActive, out[1].Status)
}

func TestContactRepo_GetNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(q("FROM contacts WHERE id = $1")).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(contactCols))

	_, err := NewContactRepo(db).Get(context.Background(), 9)
	assert.ErrorIs(t, err, contact.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestContactRepo_UpdateStatusMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(q("UPDATE contacts SET status = $1")).
		WithArgs(domain.ContactBounced, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewContactRepo(db).UpdateStatus(context.Background(), 4, domain.ContactBounced)
	assert.ErrorIs(t, err, contact.ErrNotFound)
}

func TestContactRepo_ListBatches(t *testing.T) {
	db, mock := newMock(t)
	first := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	last := first.Add(time.Hour)
	mock.ExpectQuery(q("GROUP BY batch_id")).
		WillReturnRows(sqlmock.NewRows([]string{"batch_id", "count", "active", "min", "max"}).
			AddRow("b2", 5, 5, first, last).
			AddRow("b1", 3, 0, first, first))

	out, err := NewContactRepo(db).ListBatches(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, domain.ContactActive, out[0].Status)
	assert.Equal(t, domain.ContactInactive, out[1].Status)
	assert.Equal(t, last, out[0].LastImportedAt)
}

func TestContactRepo_ActivateBatch(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT EXISTS")).WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(q("WHERE status = 'active' AND batch_id IS DISTINCT FROM $1")).WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec(q("WHERE batch_id = $1 AND status <> 'bounced'")).WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	n, err := NewContactRepo(db).ActivateBatch(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestContactRepo_ActivateUnknownBatch(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT EXISTS")).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err := NewContactRepo(db).ActivateBatch(context.Background(), "nope")
	assert.ErrorIs(t, err, contact.ErrBatchNotFound)
}

func TestContactRepo_DeactivateBatch(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT EXISTS")).WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(q("WHERE batch_id = $1 AND status = 'active'")).WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := NewContactRepo(db).DeactivateBatch(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestContactRepo_MarkBounced(t *testing.T) {
	db, mock := newMock(t)
	repo := NewContactRepo(db)

	n, err := repo.MarkBounced(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.ExpectExec(q("WHERE email = ANY($1)")).WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err = repo.MarkBounced(context.Background(), []string{"a@x.com", "b@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCampaignRepo_CreateAndGet(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCampaignRepo(db)
	now := time.Now()

	mock.ExpectQuery(q("INSERT INTO campaigns")).
		WithArgs("Launch", "Hi", "Hello {{ name }}", domain.CampaignDraft).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(11, now, now))

	c := &domain.Campaign{Name: "Launch", Subject: "Hi", BodyTemplate: "Hello {{ name }}", Status: domain.CampaignDraft}
	id, err := repo.Create(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.Equal(t, now, c.CreatedAt)

	mock.ExpectQuery(q("FROM campaigns WHERE id = $1")).WithArgs(int64(12)).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), 12)
	assert.ErrorIs(t, err, campaign.ErrNotFound)
}

func TestCampaignRepo_List(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(q("ORDER BY created_at DESC, id DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "subject", "body_template", "status", "created_at", "updated_at"}).
			AddRow(2, "B", "s", "b", "draft", now, now).
			AddRow(1, "A", "s", "b", "draft", now, now))

	out, err := NewCampaignRepo(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].ID)
}

func TestEmailLogRepo_LogSent(t *testing.T) {
	db, mock := newMock(t)
	sent := time.Now()
	cid := int64(3)

	mock.ExpectExec(q("INSERT INTO email_logs")).
		WithArgs(int64(1), &cid, "a@x.com", "<m1>", domain.LogSent, &sent).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := NewEmailLogRepo(db).LogSent(context.Background(), []domain.EmailLog{
		{CampaignID: 1, ContactID: &cid, Email: "a@x.com", MessageID: "<m1>", Status: domain.LogSent, SentAt: &sent},
	})
	require.NoError(t, err)
}

func TestEmailLogRepo_FindLatest(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEmailLogRepo(db)

	mock.ExpectQuery(q("ORDER BY sent_at DESC NULLS LAST, id DESC LIMIT 1")).WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	id, ok, err := repo.FindLatest(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	mock.ExpectQuery(q("WHERE message_id = $1 AND email = $2")).WithArgs("<m>", "a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, ok, err = repo.FindByMessage(context.Background(), "<m>", "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmailLogRepo_ApplyUpdate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEmailLogRepo(db)
	at := time.Now()

	mock.ExpectExec(q("SET status = $1, opened_at = COALESCE(opened_at, $2) WHERE id = $3")).
		WithArgs(domain.LogOpened, at, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.ApplyUpdate(context.Background(), 5, domain.LogUpdate{
		Status: domain.LogOpened, Stamp: domain.StampOpened, At: at,
	}))

	mock.ExpectExec(q("UPDATE email_logs SET status = $1 WHERE id = $2")).
		WithArgs(domain.LogDelivered, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.ApplyUpdate(context.Background(), 5, domain.LogUpdate{
		Status: domain.LogDelivered, At: at,
	}))
}

func TestEmailLogRepo_Counts(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEmailLogRepo(db)

	mock.ExpectQuery(q("COUNT(opened_at)")).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d"}).AddRow(10, 4, 2, 1))
	c, err := repo.CampaignCounts(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignCounts{TotalSent: 10, TotalOpened: 4, TotalClicked: 2, TotalBounced: 1}, c)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q("WHERE sent_at >= $1 AND sent_at < $2")).WithArgs(from, from.AddDate(0, 0, 1)).
		WillReturnError(errors.New("conn reset"))
	_, err = repo.CountSentBetween(context.Background(), from, from.AddDate(0, 0, 1))
	var se *domain.StorageError
	assert.ErrorAs(t, err, &se)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/contact"
)

// ContactRepo implements contact.Repository against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

const contactColumns = `id, email, name, company, position, source, status, batch_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(s rowScanner) (domain.Contact, error) {
	var c domain.Contact
	var batch sql.NullString
	err := s.Scan(&c.ID, &c.Email, &c.Name, &c.Company, &c.Position, &c.Source,
		&c.Status, &batch, &c.CreatedAt, &c.UpdatedAt)
	if batch.Valid {
		c.BatchID = &batch.String
	}
	return c, err
}

// Upsert writes contacts in chunks inside one transaction. Callers must
// not pass the same email twice in one call.
func (r *ContactRepo) Upsert(ctx context.Context, contacts []domain.Contact) (int, error) {
	if len(contacts) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("upsert contacts", err)
	}
	defer tx.Rollback()

	written := 0
	for start := 0; start < len(contacts); start += maxRowsPerInsert {
		end := min(start+maxRowsPerInsert, len(contacts))
		chunk := contacts[start:end]
		args := make([]any, 0, len(chunk)*7)
		for _, c := range chunk {
			args = append(args, c.Email, c.Name, c.Company, c.Position, c.Source, c.Status, c.BatchID)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO contacts (email, name, company, position, source, status, batch_id)
			VALUES `+placeholders(len(chunk), 7)+`
			ON CONFLICT (email) DO UPDATE SET
				name = EXCLUDED.name,
				company = EXCLUDED.company,
				position = EXCLUDED.position,
				source = EXCLUDED.source,
				batch_id = EXCLUDED.batch_id,
				status = CASE WHEN contacts.status = 'bounced' THEN 'bounced' ELSE EXCLUDED.status END,
				updated_at = NOW()
		`, args...)
		if err != nil {
			return 0, storageErr("upsert contacts", err)
		}
		n, _ := res.RowsAffected()
		written += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("upsert contacts", err)
	}
	return written, nil
}

func (r *ContactRepo) List(ctx context.Context, f domain.ContactFilter) ([]domain.Contact, int, error) {
	var where []string
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.BatchID != "" {
		args = append(args, f.BatchID)
		where = append(where, fmt.Sprintf("batch_id = $%d", len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`+cond, args...).Scan(&total); err != nil {
		return nil, 0, storageErr("count contacts", err)
	}

	q := `SELECT ` + contactColumns + ` FROM contacts` + cond + ` ORDER BY id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	out, err := r.query(ctx, "list contacts", q, args...)
	return out, total, err
}

func (r *ContactRepo) ListActive(ctx context.Context, limit int) ([]domain.Contact, error) {
	q := `SELECT ` + contactColumns + ` FROM contacts WHERE status = 'active' ORDER BY id`
	if limit > 0 {
		return r.query(ctx, "list active contacts", q+` LIMIT $1`, limit)
	}
	return r.query(ctx, "list active contacts", q)
}

func (r *ContactRepo) query(ctx context.Context, op, q string, args ...any) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

func (r *ContactRepo) Get(ctx context.Context, id int64) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get contact", err)
	}
	return &c, nil
}

func (r *ContactRepo) UpdateStatus(ctx context.Context, id int64, status domain.ContactStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE contacts SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return storageErr("update contact status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return storageErr("delete contact", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contacts WHERE status = 'active'`).Scan(&n); err != nil {
		return 0, storageErr("count active contacts", err)
	}
	return n, nil
}

func (r *ContactRepo) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT batch_id, COUNT(*), COUNT(*) FILTER (WHERE status = 'active'),
		       MIN(created_at), MAX(updated_at)
		FROM contacts
		WHERE batch_id IS NOT NULL
		GROUP BY batch_id
		ORDER BY MAX(updated_at) DESC, batch_id DESC
	`)
	if err != nil {
		return nil, storageErr("list batches", err)
	}
	defer rows.Close()

	var out []domain.Batch
	for rows.Next() {
		var b domain.Batch
		if err := rows.Scan(&b.ID, &b.Count, &b.ActiveCount, &b.FirstImportedAt, &b.LastImportedAt); err != nil {
			return nil, storageErr("list batches", err)
		}
		b.Status = domain.AggregateStatus(b.ActiveCount)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list batches", err)
	}
	return out, nil
}

func batchExists(ctx context.Context, tx *sql.Tx, batchID string) error {
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM contacts WHERE batch_id = $1)`, batchID).Scan(&exists); err != nil {
		return storageErr("find batch", err)
	}
	if !exists {
		return contact.ErrBatchNotFound
	}
	return nil
}

func (r *ContactRepo) ActivateBatch(ctx context.Context, batchID string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("activate batch", err)
	}
	defer tx.Rollback()

	if err := batchExists(ctx, tx, batchID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE contacts SET status = 'inactive', updated_at = NOW()
		WHERE status = 'active' AND batch_id IS DISTINCT FROM $1
	`, batchID); err != nil {
		return 0, storageErr("activate batch", err)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE contacts SET status = 'active', updated_at = NOW()
		WHERE batch_id = $1 AND status <> 'bounced'
	`, batchID)
	if err != nil {
		return 0, storageErr("activate batch", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, storageErr("activate batch", err)
	}
	return int(n), nil
}

func (r *ContactRepo) DeactivateBatch(ctx context.Context, batchID string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("deactivate batch", err)
	}
	defer tx.Rollback()

	if err := batchExists(ctx, tx, batchID); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE contacts SET status = 'inactive', updated_at = NOW()
		WHERE batch_id = $1 AND status = 'active'
	`, batchID)
	if err != nil {
		return 0, storageErr("deactivate batch", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, storageErr("deactivate batch", err)
	}
	return int(n), nil
}

func (r *ContactRepo) MarkBounced(ctx context.Context, emails []string) (int, error) {
	if len(emails) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE contacts SET status = 'bounced', updated_at = NOW()
		WHERE email = ANY($1) AND status <> 'bounced'
	`, pq.Array(emails))
	if err != nil {
		return 0, storageErr("mark bounced", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

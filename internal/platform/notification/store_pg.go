package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/preop/preop/internal/platform/db"
)

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type storePG struct {
	pool *pgxpool.Pool
}

func NewStorePG(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (r *storePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const scheduledColumns = `id, patient_id, title, body, fires_at, status, attempts, last_error, sent_at, created_at`

func (r *storePG) Insert(ctx context.Context, n *Scheduled) error {
	n.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO scheduled_notification (id, patient_id, title, body, fires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (patient_id, title, fires_at) DO NOTHING`,
		n.ID, n.PatientID, n.Title, n.Body, n.FiresAt, n.Status,
	)
	if err != nil {
		return fmt.Errorf("insert scheduled notification: %w", err)
	}
	return nil
}

func (r *storePG) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*Due, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		WITH claimed AS (
			UPDATE scheduled_notification
			SET status = 'sending', claimed_at = $1
			WHERE id IN (
				SELECT id FROM scheduled_notification
				WHERE (status = 'pending' AND fires_at <= $1)
				   OR (status = 'sending' AND claimed_at <= $2)
				ORDER BY fires_at
				LIMIT $3
				FOR UPDATE SKIP LOCKED)
			RETURNING `+scheduledColumns+`
		)
		SELECT c.id, c.patient_id, c.title, c.body, c.fires_at, c.status, c.attempts,
		       c.last_error, c.sent_at, c.created_at,
		       p.email, p.first_name || ' ' || p.last_name
		FROM claimed c
		JOIN patient p ON p.id = c.patient_id
		ORDER BY c.fires_at`, now, now.Add(-lease), limit)
	if err != nil {
		return nil, fmt.Errorf("claim due notifications: %w", err)
	}
	defer rows.Close()

	var out []*Due
	for rows.Next() {
		var d Due
		if err := rows.Scan(&d.ID, &d.PatientID, &d.Title, &d.Body, &d.FiresAt, &d.Status,
			&d.Attempts, &d.LastError, &d.SentAt, &d.CreatedAt, &d.Email, &d.PatientName); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *storePG) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE scheduled_notification
		SET status = 'sent', sent_at = $2, attempts = attempts + 1, last_error = NULL, claimed_at = NULL
		WHERE id = $1 AND status = 'sending'`, id, at)
	return err
}

func (r *storePG) MarkAttemptFailed(ctx context.Context, id uuid.UUID, cause string, maxAttempts int) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE scheduled_notification
		SET attempts = attempts + 1,
		    last_error = $2,
		    claimed_at = NULL,
		    status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END
		WHERE id = $1 AND status = 'sending'`, id, cause, maxAttempts)
	return err
}

func (r *storePG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Scheduled, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+scheduledColumns+`
		FROM scheduled_notification WHERE patient_id = $1 ORDER BY fires_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Scheduled
	for rows.Next() {
		var n Scheduled
		if err := rows.Scan(&n.ID, &n.PatientID, &n.Title, &n.Body, &n.FiresAt, &n.Status,
			&n.Attempts, &n.LastError, &n.SentAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (r *storePG) DeletePending(ctx context.Context, patientID uuid.UUID, title string, keep time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM scheduled_notification
		WHERE patient_id = $1 AND title = $2 AND status = 'pending' AND fires_at <> $3`,
		patientID, title, keep)
	if err != nil {
		return 0, fmt.Errorf("delete pending notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

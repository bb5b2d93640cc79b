package consentform

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/preop/preop/internal/platform/apperr"
	"github.com/preop/preop/internal/platform/db"
)

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// file_content is deliberately left out; PDFs can be several megabytes.
const formColumns = `id, type, file_name, file_path, file_size, created_at`

func scanForm(row pgx.Row) (*ConsentForm, error) {
	var f ConsentForm
	if err := row.Scan(&f.ID, &f.Type, &f.FileName, &f.FilePath, &f.FileSize, &f.CreatedAt); err != nil {
		return nil, apperr.FromPG(err, "consent form")
	}
	return &f, nil
}

func (r *repoPG) Insert(ctx context.Context, f *ConsentForm) (bool, error) {
	id := uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consent_form (id, type, file_name, file_path, file_size, file_content)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (type, file_name) DO NOTHING
		RETURNING created_at`,
		id, f.Type, f.FileName, f.FilePath, f.FileSize, f.Content,
	).Scan(&f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.FromPG(err, "consent form")
	}
	f.ID = id
	return true, nil
}

func (r *repoPG) GetByName(ctx context.Context, t Type, fileName string) (*ConsentForm, error) {
	var f ConsentForm
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+formColumns+`, file_content FROM consent_form WHERE type = $1 AND file_name = $2`, t, fileName,
	).Scan(&f.ID, &f.Type, &f.FileName, &f.FilePath, &f.FileSize, &f.CreatedAt, &f.Content)
	if err != nil {
		return nil, apperr.FromPG(err, "consent form")
	}
	return &f, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ConsentForm, error) {
	return scanForm(r.conn(ctx).QueryRow(ctx, `SELECT `+formColumns+` FROM consent_form WHERE id = $1`, id))
}

func (r *repoPG) GetContent(ctx context.Context, id uuid.UUID) (*ConsentForm, error) {
	var f ConsentForm
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+formColumns+`, file_content FROM consent_form WHERE id = $1`, id,
	).Scan(&f.ID, &f.Type, &f.FileName, &f.FilePath, &f.FileSize, &f.CreatedAt, &f.Content)
	if err != nil {
		return nil, apperr.FromPG(err, "consent form")
	}
	return &f, nil
}

func (r *repoPG) ListByType(ctx context.Context, t Type) ([]*ConsentForm, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+formColumns+` FROM consent_form WHERE type = $1 ORDER BY file_name`, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ConsentForm
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

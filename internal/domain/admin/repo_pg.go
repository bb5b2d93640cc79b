package admin

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/preop/preop/internal/platform/apperr"
	"github.com/preop/preop/internal/platform/db"
)

// queryable abstracts pgxpool.Pool and pgx.Tx.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// -- Admin Repository --

type adminRepoPG struct {
	pool *pgxpool.Pool
}

func NewAdminRepo(pool *pgxpool.Pool) AdminRepository {
	return &adminRepoPG{pool: pool}
}

func (r *adminRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const adminColumns = `id, email, first_name, last_name, password_hash, created_at`

func (r *adminRepoPG) scanAdmin(row pgx.Row) (*Admin, error) {
	var a Admin
	if err := row.Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash, &a.CreatedAt); err != nil {
		return nil, apperr.FromPG(err, "admin")
	}
	return &a, nil
}

func (r *adminRepoPG) Create(ctx context.Context, a *Admin) error {
	a.ID = uuid.New()
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO admin (id, email, first_name, last_name, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		a.ID, a.Email, a.FirstName, a.LastName, a.PasswordHash,
	).Scan(&a.CreatedAt)
	return apperr.FromPG(err, "admin")
}

func (r *adminRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admin, error) {
	return r.scanAdmin(r.conn(ctx).QueryRow(ctx, `SELECT `+adminColumns+` FROM admin WHERE id = $1`, id))
}

func (r *adminRepoPG) GetByEmail(ctx context.Context, email string) (*Admin, error) {
	return r.scanAdmin(r.conn(ctx).QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admin WHERE email = $1`, strings.ToLower(strings.TrimSpace(email))))
}

// -- Provider Repository --

type providerRepoPG struct {
	pool *pgxpool.Pool
}

func NewProviderRepo(pool *pgxpool.Pool) ProviderRepository {
	return &providerRepoPG{pool: pool}
}

func (r *providerRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const providerColumns = `id, name, address, phone, contact_email, created_at, updated_at`

func (r *providerRepoPG) scanProvider(row pgx.Row) (*HealthProvider, error) {
	var p HealthProvider
	if err := row.Scan(&p.ID, &p.Name, &p.Address, &p.Phone, &p.ContactEmail, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, apperr.FromPG(err, "health provider")
	}
	return &p, nil
}

func (r *providerRepoPG) Create(ctx context.Context, p *HealthProvider) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO health_provider (id, name, address, phone, contact_email)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Address, p.Phone, p.ContactEmail,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return apperr.FromPG(err, "health provider")
}

func (r *providerRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*HealthProvider, error) {
	return r.scanProvider(r.conn(ctx).QueryRow(ctx, `SELECT `+providerColumns+` FROM health_provider WHERE id = $1`, id))
}

func (r *providerRepoPG) List(ctx context.Context, limit, offset int) ([]*HealthProvider, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM health_provider`).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+providerColumns+` FROM health_provider ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*HealthProvider
	for rows.Next() {
		p, err := r.scanProvider(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

package professional

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

const profColumns = `p.id, p.role, p.first_name, p.last_name, p.license_number, p.password_hash,
	p.specialty, p.created_at, p.updated_at,
	COALESCE((SELECT array_agg(pp.provider_id) FROM professional_provider pp WHERE pp.professional_id = p.id), '{}')`

func scanProfessional(row pgx.Row) (*Professional, error) {
	var p Professional
	if err := row.Scan(&p.ID, &p.Role, &p.FirstName, &p.LastName, &p.LicenseNumber, &p.PasswordHash,
		&p.Specialty, &p.CreatedAt, &p.UpdatedAt, &p.ProviderIDs); err != nil {
		return nil, apperr.FromPG(err, "professional")
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Professional) error {
	p.ID = uuid.New()
	p.LicenseNumber = strings.TrimSpace(p.LicenseNumber)
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO professional (id, role, first_name, last_name, license_number, password_hash, specialty)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.Role, p.FirstName, p.LastName, p.LicenseNumber, p.PasswordHash, p.Specialty,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return apperr.FromPG(err, "professional")
	}
	for _, providerID := range p.ProviderIDs {
		if err := r.LinkProvider(ctx, p.ID, providerID); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	return scanProfessional(r.conn(ctx).QueryRow(ctx, `SELECT `+profColumns+` FROM professional p WHERE p.id = $1`, id))
}

func (r *repoPG) GetByLicense(ctx context.Context, role Role, license string) (*Professional, error) {
	return scanProfessional(r.conn(ctx).QueryRow(ctx,
		`SELECT `+profColumns+` FROM professional p WHERE p.role = $1 AND p.license_number = $2`,
		role, strings.TrimSpace(license)))
}

func (r *repoPG) List(ctx context.Context, role Role, limit, offset int) ([]*Professional, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM professional WHERE role = $1`, role).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+profColumns+` FROM professional p WHERE p.role = $1
		ORDER BY p.last_name, p.first_name LIMIT $2 OFFSET $3`, role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Professional
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repoPG) LinkProvider(ctx context.Context, professionalID, providerID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO professional_provider (professional_id, provider_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, professionalID, providerID)
	return apperr.FromPG(err, "professional or health provider")
}

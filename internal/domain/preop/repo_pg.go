package preop

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

const planColumns = `patient_id, solids, clear_liquids, cow_milk, breast_milk, start_at, updated_at`

func scanPlan(row pgx.Row) (*FastingPlan, error) {
	var p FastingPlan
	if err := row.Scan(&p.PatientID, &p.Solids, &p.ClearLiquids, &p.CowMilk, &p.BreastMilk,
		&p.StartAt, &p.UpdatedAt); err != nil {
		return nil, apperr.FromPG(err, "fasting plan")
	}
	return &p, nil
}

const suspensionColumns = `id, patient_id, medication_name, suspend_at, resume_at, created_at`

func scanSuspension(row pgx.Row) (*Suspension, error) {
	var s Suspension
	if err := row.Scan(&s.ID, &s.PatientID, &s.MedicationName, &s.SuspendAt, &s.ResumeAt, &s.CreatedAt); err != nil {
		return nil, apperr.FromPG(err, "suspension")
	}
	return &s, nil
}

func (r *repoPG) UpsertFastingPlan(ctx context.Context, p *FastingPlan) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO fasting_plan (patient_id, solids, clear_liquids, cow_milk, breast_milk, start_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (patient_id) DO UPDATE SET
			solids = EXCLUDED.solids,
			clear_liquids = EXCLUDED.clear_liquids,
			cow_milk = EXCLUDED.cow_milk,
			breast_milk = EXCLUDED.breast_milk,
			start_at = EXCLUDED.start_at,
			updated_at = NOW()
		RETURNING updated_at`,
		p.PatientID, p.Solids, p.ClearLiquids, p.CowMilk, p.BreastMilk, p.StartAt,
	).Scan(&p.UpdatedAt)
	return apperr.FromPG(err, "fasting plan")
}

func (r *repoPG) GetFastingPlan(ctx context.Context, patientID uuid.UUID) (*FastingPlan, error) {
	return scanPlan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+planColumns+` FROM fasting_plan WHERE patient_id = $1`, patientID))
}

func (r *repoPG) CreateSuspension(ctx context.Context, s *Suspension) error {
	s.ID = uuid.New()
	s.MedicationName = strings.TrimSpace(s.MedicationName)
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO suspension (id, patient_id, medication_name, suspend_at, resume_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		s.ID, s.PatientID, s.MedicationName, s.SuspendAt, s.ResumeAt,
	).Scan(&s.CreatedAt)
	return apperr.FromPG(err, "suspension")
}

func (r *repoPG) ListSuspensions(ctx context.Context, patientID uuid.UUID) ([]*Suspension, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+suspensionColumns+` FROM suspension WHERE patient_id = $1 ORDER BY suspend_at, created_at`,
		patientID)
	if err != nil {
		return nil, apperr.FromPG(err, "suspension")
	}
	defer rows.Close()

	var out []*Suspension
	for rows.Next() {
		s, err := scanSuspension(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repoPG) DeleteSuspension(ctx context.Context, patientID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM suspension WHERE id = $1 AND patient_id = $2`, id, patientID)
	if err != nil {
		return apperr.FromPG(err, "suspension")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("suspension not found")
	}
	return nil
}

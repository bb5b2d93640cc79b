package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/preop/preop/internal/domain/consentform"
	"github.com/preop/preop/internal/domain/professional"
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

const patientColumns = `p.id, p.email, p.cedula, p.first_name, p.last_name, p.date_of_birth, p.sex,
	p.surgical_procedure, p.surgery_at, p.surgeon_id, p.provider_id,
	p.surgical_consent_id, p.surgical_signature_image, p.surgical_signed_at,
	p.anesthesia_consent_id, p.anesthesia_instructions, p.medications_to_suspend,
	p.anesthesiologist_id, p.anesthesia_signature_image, p.anesthesia_signed_at,
	p.created_at, p.updated_at,
	s.first_name, s.last_name, s.license_number, s.specialty,
	a.first_name, a.last_name, a.license_number,
	sc.file_name, ac.file_name`

const patientFrom = ` FROM patient p
	LEFT JOIN professional s ON s.id = p.surgeon_id
	LEFT JOIN professional a ON a.id = p.anesthesiologist_id
	LEFT JOIN consent_form sc ON sc.id = p.surgical_consent_id
	LEFT JOIN consent_form ac ON ac.id = p.anesthesia_consent_id`

func scanPatient(row pgx.Row) (*Patient, error) {
	var (
		p                                   Patient
		sFirst, sLast, sLicense, sSpecialty *string
		aFirst, aLast, aLicense             *string
		scName, acName                      *string
	)
	err := row.Scan(
		&p.ID, &p.Email, &p.Cedula, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Sex,
		&p.SurgicalProcedure, &p.SurgeryAt, &p.SurgeonID, &p.ProviderID,
		&p.SurgicalConsentID, &p.SurgicalSignatureImage, &p.SurgicalSignedAt,
		&p.AnesthesiaConsentID, &p.AnesthesiaInstructions, &p.MedicationsToSuspend,
		&p.AnesthesiologistID, &p.AnesthesiaSignatureImage, &p.AnesthesiaSignedAt,
		&p.CreatedAt, &p.UpdatedAt,
		&sFirst, &sLast, &sLicense, &sSpecialty,
		&aFirst, &aLast, &aLicense,
		&scName, &acName,
	)
	if err != nil {
		return nil, apperr.FromPG(err, "patient")
	}

	if p.SurgeonID != nil && sFirst != nil {
		p.Surgeon = &professional.Summary{
			ID: *p.SurgeonID, FirstName: *sFirst, LastName: deref(sLast),
			LicenseNumber: deref(sLicense), Specialty: sSpecialty,
		}
	}
	if p.AnesthesiologistID != nil && aFirst != nil {
		p.Anesthesiologist = &professional.Summary{
			ID: *p.AnesthesiologistID, FirstName: *aFirst, LastName: deref(aLast),
			LicenseNumber: deref(aLicense),
		}
	}
	if p.SurgicalConsentID != nil && scName != nil {
		p.SurgicalConsent = &consentform.Summary{ID: *p.SurgicalConsentID, FileName: *scName}
	}
	if p.AnesthesiaConsentID != nil && acName != nil {
		p.AnesthesiaConsent = &consentform.Summary{ID: *p.AnesthesiaConsentID, FileName: *acName}
	}
	return &p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	if p.MedicationsToSuspend == nil {
		p.MedicationsToSuspend = []string{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (
			id, email, cedula, first_name, last_name, date_of_birth, sex,
			surgical_procedure, surgery_at, surgeon_id, provider_id,
			surgical_consent_id, medications_to_suspend
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		p.ID, p.Email, p.Cedula, p.FirstName, p.LastName, p.DateOfBirth, p.Sex,
		p.SurgicalProcedure, p.SurgeryAt, p.SurgeonID, p.ProviderID,
		p.SurgicalConsentID, p.MedicationsToSuspend,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return apperr.FromPG(err, "patient")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientColumns+patientFrom+` WHERE p.id = $1`, id))
}

func (r *repoPG) ListByEmail(ctx context.Context, email string) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientColumns+patientFrom+` WHERE p.email = $1`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Patient, int, error) {
	where := []string{"1=1"}
	var args []interface{}
	idx := 1

	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, fmt.Sprintf(
			"(p.first_name ILIKE $%d OR p.last_name ILIKE $%d OR p.email ILIKE $%d OR p.cedula ILIKE $%d)",
			idx, idx, idx, idx))
		args = append(args, "%"+s+"%")
		idx++
	}
	if f.SurgeonID != nil {
		where = append(where, fmt.Sprintf("p.surgeon_id = $%d", idx))
		args = append(args, *f.SurgeonID)
		idx++
	}
	if f.AnesthesiologistID != nil {
		where = append(where, fmt.Sprintf("p.anesthesiologist_id = $%d", idx))
		args = append(args, *f.AnesthesiologistID)
		idx++
	}
	if f.ProviderID != nil {
		where = append(where, fmt.Sprintf("p.provider_id = $%d", idx))
		args = append(args, *f.ProviderID)
		idx++
	}
	whereClause := " WHERE " + strings.Join(where, " AND ")

	var total int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient p`+whereClause, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + patientColumns + patientFrom + whereClause +
		fmt.Sprintf(` ORDER BY p.surgery_at DESC NULLS LAST, p.created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repoPG) UpdateSurgeryDate(ctx context.Context, id uuid.UUID, at *time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patient SET surgery_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return apperr.FromPG(err, "patient")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient not found")
	}
	return nil
}

func (r *repoPG) AttachAnesthesia(ctx context.Context, id uuid.UUID, a AnesthesiaAssignment) error {
	meds := a.MedicationsToSuspend
	if meds == nil {
		meds = []string{}
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET
			anesthesia_consent_id = $2,
			anesthesiologist_id = $3,
			anesthesia_instructions = $4,
			medications_to_suspend = $5,
			updated_at = NOW()
		WHERE id = $1 AND anesthesia_signature_image IS NULL`,
		id, a.ConsentFormID, a.AnesthesiologistID, a.Instructions, meds)
	if err != nil {
		return apperr.FromPG(err, "patient")
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("anesthesia consent already signed")
	}
	return nil
}

// Column names come from a closed switch, never from input.
func signColumns(t ConsentType) (consentCol, imageCol, signedCol string) {
	if t == ConsentAnesthesia {
		return "anesthesia_consent_id", "anesthesia_signature_image", "anesthesia_signed_at"
	}
	return "surgical_consent_id", "surgical_signature_image", "surgical_signed_at"
}

func (r *repoPG) Sign(ctx context.Context, id uuid.UUID, t ConsentType, image string, signedAt time.Time) (bool, error) {
	consentCol, imageCol, signedCol := signColumns(t)
	tag, err := r.conn(ctx).Exec(ctx, fmt.Sprintf(`
		UPDATE patient SET %[2]s = $2, %[3]s = $3, updated_at = NOW()
		WHERE id = $1 AND %[1]s IS NOT NULL AND %[2]s IS NULL`, consentCol, imageCol, signedCol),
		id, image, signedAt)
	if err != nil {
		return false, apperr.FromPG(err, "patient")
	}
	return tag.RowsAffected() == 1, nil
}

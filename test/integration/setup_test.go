//go:build integration

// Package integration runs the Postgres repositories against a real database.
// Run with: go test -tags integration ./test/integration/...
// PREOP_TEST_DATABASE_URL points the suite at an existing database; otherwise a
// throwaway container is started with Docker.
package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/preop/preop/internal/domain/consentform"
	"github.com/preop/preop/internal/domain/patient"
	"github.com/preop/preop/internal/domain/professional"
	"github.com/preop/preop/internal/platform/db"
	"github.com/preop/preop/migrations"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	pool, cleanup, err := setupDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up database: %v\n", err)
		os.Exit(1)
	}

	testPool = pool
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupDatabase(ctx context.Context) (*pgxpool.Pool, func(), error) {
	connStr := os.Getenv("PREOP_TEST_DATABASE_URL")
	stop := func() {}
	if connStr == "" {
		var err error
		connStr, stop, err = startPostgresContainer(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("start postgres container: %w", err)
		}
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	if _, err := db.NewMigrator(pool, migrations.FS).Up(ctx); err != nil {
		pool.Close()
		stop()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}

	return pool, func() {
		pool.Close()
		stop()
	}, nil
}

// unique returns prefix with a random suffix so tests sharing the database do
// not collide on unique columns.
func unique(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
}

func createProfessional(t *testing.T, ctx context.Context, role professional.Role) *professional.Professional {
	t.Helper()
	p := &professional.Professional{
		Role:          role,
		FirstName:     "Test",
		LastName:      string(role),
		LicenseNumber: unique("LIC"),
		PasswordHash:  "$2a$04$notarealhashbutlongenoughforthecolumn",
	}
	if err := professional.NewRepo(testPool).Create(ctx, p); err != nil {
		t.Fatalf("create professional: %v", err)
	}
	return p
}

func createConsentForm(t *testing.T, ctx context.Context, typ consentform.Type) *consentform.ConsentForm {
	t.Helper()
	name := unique("form") + ".pdf"
	f := &consentform.ConsentForm{
		Type:     typ,
		FileName: name,
		FilePath: "uploads/" + name,
		FileSize: 8,
		Content:  []byte("%PDF-1.4"),
	}
	inserted, err := consentform.NewRepo(testPool).Insert(ctx, f)
	if err != nil || !inserted {
		t.Fatalf("create consent form: inserted=%v err=%v", inserted, err)
	}
	return f
}

// createPatient stores a patient with a surgeon and a surgical consent.
func createPatient(t *testing.T, ctx context.Context) *patient.Patient {
	t.Helper()
	surgeon := createProfessional(t, ctx, professional.RoleSurgeon)
	form := createConsentForm(t, ctx, consentform.TypeSurgical)
	p := &patient.Patient{
		Email:             unique("paciente") + "@example.com",
		Cedula:            unique("CI"),
		FirstName:         "María",
		LastName:          "Andrade",
		DateOfBirth:       time.Date(1985, 3, 15, 0, 0, 0, 0, time.UTC),
		Sex:               patient.SexFemale,
		SurgicalProcedure: ptrStr("Apendicectomía"),
		SurgeonID:         &surgeon.ID,
		SurgicalConsentID: &form.ID,
	}
	if err := patient.NewRepo(testPool).Create(ctx, p); err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return p
}

func ptrStr(s string) *string { return &s }

func ptrTime(t time.Time) *time.Time { return &t }

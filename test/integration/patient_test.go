//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/preop/preop/internal/domain/consentform"
	"github.com/preop/preop/internal/domain/patient"
	"github.com/preop/preop/internal/domain/professional"
	"github.com/preop/preop/internal/platform/apperr"
)

func TestPatientRepo_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := patient.NewRepo(testPool)
	created := createPatient(t, ctx)

	fetched, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Email != created.Email {
		t.Errorf("expected email %s, got %s", created.Email, fetched.Email)
	}
	if !fetched.DateOfBirth.Equal(created.DateOfBirth) {
		t.Errorf("expected dob %v, got %v", created.DateOfBirth, fetched.DateOfBirth)
	}
	if fetched.Surgeon == nil || fetched.Surgeon.ID != *created.SurgeonID {
		t.Errorf("expected surgeon summary for %s, got %+v", created.SurgeonID, fetched.Surgeon)
	}
	if fetched.SurgicalConsent == nil || fetched.SurgicalConsent.ID != *created.SurgicalConsentID {
		t.Errorf("expected surgical consent summary, got %+v", fetched.SurgicalConsent)
	}
	if fetched.Anesthesiologist != nil || fetched.AnesthesiaConsent != nil {
		t.Error("expected no anesthesia summaries")
	}
	if fetched.MedicationsToSuspend == nil {
		t.Error("expected empty, non-nil medications list")
	}
}

func TestPatientRepo_GetMissing(t *testing.T) {
	_, err := patient.NewRepo(testPool).GetByID(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestPatientRepo_DuplicateEmailCedula(t *testing.T) {
	ctx := context.Background()
	first := createPatient(t, ctx)

	dup := *first
	err := patient.NewRepo(testPool).Create(ctx, &dup)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict, got %v", err)
	}
}

func TestPatientRepo_ListByEmail(t *testing.T) {
	ctx := context.Background()
	p := createPatient(t, ctx)

	list, err := patient.NewRepo(testPool).ListByEmail(ctx, "  "+p.Email+" ")
	if err != nil {
		t.Fatalf("ListByEmail: %v", err)
	}
	if len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("expected exactly patient %s, got %d rows", p.ID, len(list))
	}
}

func TestPatientRepo_ListFilters(t *testing.T) {
	ctx := context.Background()
	repo := patient.NewRepo(testPool)
	p := createPatient(t, ctx)

	list, total, err := repo.List(ctx, patient.ListFilter{Search: p.Cedula}, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("expected search by cedula to find one patient, got total=%d", total)
	}

	_, total, err = repo.List(ctx, patient.ListFilter{SurgeonID: p.SurgeonID}, 10, 0)
	if err != nil {
		t.Fatalf("List by surgeon: %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 patient for the surgeon, got %d", total)
	}
}

func TestPatientRepo_UpdateSurgeryDate(t *testing.T) {
	ctx := context.Background()
	repo := patient.NewRepo(testPool)
	p := createPatient(t, ctx)

	at := time.Date(2030, 5, 4, 7, 30, 0, 0, time.UTC)
	if err := repo.UpdateSurgeryDate(ctx, p.ID, &at); err != nil {
		t.Fatalf("UpdateSurgeryDate: %v", err)
	}
	fetched, _ := repo.GetByID(ctx, p.ID)
	if fetched.SurgeryAt == nil || !fetched.SurgeryAt.Equal(at) {
		t.Fatalf("expected surgery at %v, got %v", at, fetched.SurgeryAt)
	}

	if err := repo.UpdateSurgeryDate(ctx, p.ID, nil); err != nil {
		t.Fatalf("clear surgery date: %v", err)
	}
	fetched, _ = repo.GetByID(ctx, p.ID)
	if fetched.SurgeryAt != nil {
		t.Errorf("expected cleared surgery date, got %v", fetched.SurgeryAt)
	}

	if err := repo.UpdateSurgeryDate(ctx, uuid.New(), &at); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected NotFound for unknown patient, got %v", err)
	}
}

func TestPatientRepo_SignOnce(t *testing.T) {
	ctx := context.Background()
	repo := patient.NewRepo(testPool)
	p := createPatient(t, ctx)
	signedAt := time.Date(2024, 6, 16, 10, 0, 0, 0, time.UTC)

	ok, err := repo.Sign(ctx, p.ID, patient.ConsentSurgical, "data:image/png;base64,AAA", signedAt)
	if err != nil || !ok {
		t.Fatalf("first Sign: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Sign(ctx, p.ID, patient.ConsentSurgical, "data:image/png;base64,BBB", signedAt.Add(time.Hour))
	if err != nil || ok {
		t.Fatalf("second Sign should not update: ok=%v err=%v", ok, err)
	}

	fetched, _ := repo.GetByID(ctx, p.ID)
	if fetched.SurgicalSignatureImage == nil || *fetched.SurgicalSignatureImage != "data:image/png;base64,AAA" {
		t.Errorf("expected first image kept, got %v", fetched.SurgicalSignatureImage)
	}
	if fetched.SurgicalSignedAt == nil || !fetched.SurgicalSignedAt.Equal(signedAt) {
		t.Errorf("expected signed at %v, got %v", signedAt, fetched.SurgicalSignedAt)
	}

	// No anesthesia consent is assigned yet.
	ok, err = repo.Sign(ctx, p.ID, patient.ConsentAnesthesia, "data:image/png;base64,CCC", signedAt)
	if err != nil || ok {
		t.Fatalf("unassigned Sign should not update: ok=%v err=%v", ok, err)
	}
}

func TestPatientRepo_ConcurrentSign(t *testing.T) {
	ctx := context.Background()
	repo := patient.NewRepo(testPool)
	p := createPatient(t, ctx)

	const signers = 6
	var wg sync.WaitGroup
	results := make(chan bool, signers)
	for i := 0; i < signers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Sign(ctx, p.ID, patient.ConsentSurgical, "data:image/png;base64,AAA", time.Now())
			if err != nil {
				t.Errorf("Sign: %v", err)
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one signer to win, got %d", wins)
	}
}

func TestPatientRepo_AttachAnesthesia(t *testing.T) {
	ctx := context.Background()
	repo := patient.NewRepo(testPool)
	p := createPatient(t, ctx)
	anesth := createProfessional(t, ctx, professional.RoleAnesthesiologist)
	form := createConsentForm(t, ctx, consentform.TypeAnesthesia)

	assignment := patient.AnesthesiaAssignment{
		ConsentFormID:        form.ID,
		AnesthesiologistID:   anesth.ID,
		Instructions:         ptrStr("Ayuno de 8 horas"),
		MedicationsToSuspend: []string{"Aspirina", "Warfarina"},
	}
	if err := repo.AttachAnesthesia(ctx, p.ID, assignment); err != nil {
		t.Fatalf("AttachAnesthesia: %v", err)
	}

	fetched, _ := repo.GetByID(ctx, p.ID)
	if fetched.Anesthesiologist == nil || fetched.Anesthesiologist.ID != anesth.ID {
		t.Errorf("expected anesthesiologist summary, got %+v", fetched.Anesthesiologist)
	}
	if len(fetched.MedicationsToSuspend) != 2 || fetched.MedicationsToSuspend[1] != "Warfarina" {
		t.Errorf("unexpected medications %v", fetched.MedicationsToSuspend)
	}

	if ok, err := repo.Sign(ctx, p.ID, patient.ConsentAnesthesia, "data:image/png;base64,AAA", time.Now()); err != nil || !ok {
		t.Fatalf("Sign anesthesia: ok=%v err=%v", ok, err)
	}
	if err := repo.AttachAnesthesia(ctx, p.ID, assignment); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict re-attaching a signed consent, got %v", err)
	}
}

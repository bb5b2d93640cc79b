package preop

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preop/preop/internal/domain/patient"
	"github.com/preop/preop/internal/platform/ai"
	"github.com/preop/preop/internal/platform/apperr"
	"github.com/preop/preop/internal/platform/notification"
)

// -- Mocks --

type mockRepo struct {
	mu          sync.Mutex
	plans       map[uuid.UUID]*FastingPlan
	suspensions map[uuid.UUID]*Suspension
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		plans:       make(map[uuid.UUID]*FastingPlan),
		suspensions: make(map[uuid.UUID]*Suspension),
	}
}

func (m *mockRepo) UpsertFastingPlan(_ context.Context, p *FastingPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.UpdatedAt = time.Now()
	cp := *p
	m.plans[p.PatientID] = &cp
	return nil
}

func (m *mockRepo) GetFastingPlan(_ context.Context, patientID uuid.UUID) (*FastingPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[patientID]
	if !ok {
		return nil, apperr.NotFound("fasting plan not found")
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) CreateSuspension(_ context.Context, s *Suspension) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	cp := *s
	m.suspensions[s.ID] = &cp
	return nil
}

func (m *mockRepo) ListSuspensions(_ context.Context, patientID uuid.UUID) ([]*Suspension, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Suspension
	for _, s := range m.suspensions {
		if s.PatientID == patientID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SuspendAt.Before(out[j].SuspendAt) })
	return out, nil
}

func (m *mockRepo) DeleteSuspension(_ context.Context, patientID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suspensions[id]
	if !ok || s.PatientID != patientID {
		return apperr.NotFound("suspension not found")
	}
	delete(m.suspensions, id)
	return nil
}

type mockPatients map[uuid.UUID]bool

func (m mockPatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	if !m[id] {
		return nil, apperr.NotFound("patient not found")
	}
	return &patient.Patient{ID: id}, nil
}

type reminderCall struct {
	PatientID uuid.UUID
	Title     string
	Body      string
	FiresAt   time.Time
}

type mockReminders struct {
	mu         sync.Mutex
	calls      []reminderCall
	fail       bool
	cancelFail bool
}

func (m *mockReminders) ScheduleNotification(_ context.Context, patientID uuid.UUID, title, body string, firesAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, reminderCall{patientID, title, body, firesAt})
	if m.fail {
		return errors.New("notifier down")
	}
	return nil
}

func (m *mockReminders) CancelPending(_ context.Context, patientID uuid.UUID, title string, keep time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelFail {
		return 0, errors.New("notifier down")
	}
	var n int64
	kept := m.calls[:0]
	for _, c := range m.calls {
		if c.PatientID == patientID && c.Title == title && !c.FiresAt.Equal(keep) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	m.calls = kept
	return n, nil
}

func (m *mockReminders) ListForPatient(_ context.Context, patientID uuid.UUID) ([]*notification.Scheduled, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*notification.Scheduled
	for _, c := range m.calls {
		if c.PatientID == patientID {
			out = append(out, &notification.Scheduled{PatientID: c.PatientID, Title: c.Title, Body: c.Body, FiresAt: c.FiresAt, Status: notification.StatusPending})
		}
	}
	return out, nil
}

type mockSuggester struct {
	enabled bool
	answer  string
	err     error
	prompt  string
	schema  *ai.Schema
}

func (m *mockSuggester) Enabled() bool { return m.enabled }

func (m *mockSuggester) GenerateJSON(_ context.Context, prompt string, schema *ai.Schema, out interface{}) error {
	m.prompt, m.schema = prompt, schema
	if m.err != nil {
		return m.err
	}
	a := out.(*suggestionAnswer)
	a.InstructionsText = m.answer
	a.MedicationsToSuspend = []string{"Aspirina", " ", "Clopidogrel "}
	return nil
}

// -- Fixture --

type fixture struct {
	svc       *Service
	repo      *mockRepo
	reminders *mockReminders
	suggester *mockSuggester
	patientID uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		repo:      newMockRepo(),
		reminders: &mockReminders{},
		suggester: &mockSuggester{enabled: true, answer: "Suspender antiagregantes 7 días antes."},
		patientID: uuid.New(),
	}
	f.svc = NewService(f.repo, mockPatients{f.patientID: true}, f.reminders, f.suggester, zerolog.Nop())
	return f
}

func planInput(start time.Time) FastingPlanInput {
	milk := "6 horas"
	return FastingPlanInput{
		Solids:       "8 horas",
		ClearLiquids: "2 horas",
		CowMilk:      &milk,
		StartAt:      start,
	}
}

var startAt = time.Date(2024, 7, 1, 22, 0, 0, 0, time.UTC)

// -- Tests --

func TestService_UpsertFastingPlan(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	plan, err := f.svc.UpsertFastingPlan(ctx, f.patientID, planInput(startAt))
	require.NoError(t, err)
	assert.Equal(t, "8 horas", plan.Solids)

	require.Len(t, f.reminders.calls, 1)
	call := f.reminders.calls[0]
	assert.Equal(t, f.patientID, call.PatientID)
	assert.Equal(t, "Comenzar ayuno", call.Title)
	assert.Equal(t, "Debes iniciar el ayuno ahora.", call.Body)
	assert.True(t, call.FiresAt.Equal(startAt))
}

func TestService_UpsertFastingPlan_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.UpsertFastingPlan(ctx, f.patientID, planInput(startAt))
	require.NoError(t, err)
	first, err := f.svc.GetFastingPlan(ctx, f.patientID)
	require.NoError(t, err)

	_, err = f.svc.UpsertFastingPlan(ctx, f.patientID, planInput(startAt))
	require.NoError(t, err)
	second, err := f.svc.GetFastingPlan(ctx, f.patientID)
	require.NoError(t, err)

	first.UpdatedAt, second.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second)
	assert.Len(t, f.repo.plans, 1)
}

func TestService_UpsertFastingPlan_Overwrites(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.UpsertFastingPlan(ctx, f.patientID, planInput(startAt))
	require.NoError(t, err)

	in := planInput(startAt.Add(time.Hour))
	in.CowMilk = nil
	_, err = f.svc.UpsertFastingPlan(ctx, f.patientID, in)
	require.NoError(t, err)

	got, err := f.svc.GetFastingPlan(ctx, f.patientID)
	require.NoError(t, err)
	assert.Nil(t, got.CowMilk)
	assert.True(t, got.StartAt.Equal(startAt.Add(time.Hour)))
}

func TestService_UpsertFastingPlan_ReplacesStartReminder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	later := startAt.Add(3 * time.Hour)

	_, err := f.svc.UpsertFastingPlan(ctx, f.patientID, planInput(startAt))
	require.NoError(t, err)
	_, err = f.svc.UpsertFastingPlan(ctx, f.patientID, planInput(later))
	require.NoError(t, err)

	list, err := f.svc.ListReminders(ctx, f.patientID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Comenzar ayuno", list[0].Title)
	assert.True(t, list[0].FiresAt.Equal(later))
}

func TestService_UpsertFastingPlan_CancelFailureIgnored(t *testing.T) {
	f := newFixture()
	f.reminders.cancelFail = true

	plan, err := f.svc.UpsertFastingPlan(context.Background(), f.patientID, planInput(startAt))
	require.NoError(t, err)
	assert.NotNil(t, plan)
	require.Len(t, f.reminders.calls, 1)
	assert.True(t, f.reminders.calls[0].FiresAt.Equal(startAt))
}

func TestService_UpsertFastingPlan_NotifierFailureIgnored(t *testing.T) {
	f := newFixture()
	f.reminders.fail = true

	plan, err := f.svc.UpsertFastingPlan(context.Background(), f.patientID, planInput(startAt))
	require.NoError(t, err)
	assert.NotNil(t, plan)
	assert.Contains(t, f.repo.plans, f.patientID)
}

func TestService_UpsertFastingPlan_Errors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.UpsertFastingPlan(ctx, uuid.New(), planInput(startAt))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.UpsertFastingPlan(ctx, f.patientID, planInput(time.Time{}))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	in := planInput(startAt)
	in.Solids = "  "
	_, err = f.svc.UpsertFastingPlan(ctx, f.patientID, in)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, f.reminders.calls)
}

func TestService_GetFastingPlan_Missing(t *testing.T) {
	f := newFixture()
	_, err := f.svc.GetFastingPlan(context.Background(), f.patientID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestService_CreateSuspension_PastDate(t *testing.T) {
	f := newFixture()
	past := time.Date(2020, 1, 1, 8, 0, 0, 0, time.UTC)

	susp, err := f.svc.CreateSuspension(context.Background(), f.patientID, SuspensionInput{
		MedicationName: " Aspirina ",
		SuspendAt:      past,
	})
	require.NoError(t, err)
	assert.Equal(t, "Aspirina", susp.MedicationName)
	assert.NotEqual(t, uuid.Nil, susp.ID)

	require.Len(t, f.reminders.calls, 1)
	assert.Equal(t, "Suspender Aspirina", f.reminders.calls[0].Title)
	assert.Equal(t, "Es momento de suspender este medicamento.", f.reminders.calls[0].Body)
	assert.True(t, f.reminders.calls[0].FiresAt.Equal(past))
}

func TestService_CreateSuspension_WithResume(t *testing.T) {
	f := newFixture()
	suspend := startAt.Add(-7 * 24 * time.Hour)
	resume := startAt.Add(2 * 24 * time.Hour)

	_, err := f.svc.CreateSuspension(context.Background(), f.patientID, SuspensionInput{
		MedicationName: "Warfarina",
		SuspendAt:      suspend,
		ResumeAt:       &resume,
	})
	require.NoError(t, err)

	require.Len(t, f.reminders.calls, 2)
	assert.Equal(t, "Suspender Warfarina", f.reminders.calls[0].Title)
	assert.Equal(t, "Reanudar Warfarina", f.reminders.calls[1].Title)
	assert.Equal(t, "Puedes volver a tomar tu medicamento.", f.reminders.calls[1].Body)
	assert.True(t, f.reminders.calls[1].FiresAt.Equal(resume))
}

func TestService_CreateSuspension_ResumeBeforeSuspend(t *testing.T) {
	f := newFixture()
	resume := startAt.Add(-time.Hour)

	_, err := f.svc.CreateSuspension(context.Background(), f.patientID, SuspensionInput{
		MedicationName: "Warfarina",
		SuspendAt:      startAt,
		ResumeAt:       &resume,
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, f.repo.suspensions)
	assert.Empty(t, f.reminders.calls)
}

func TestService_CreateSuspension_NotifierFailureIgnored(t *testing.T) {
	f := newFixture()
	f.reminders.fail = true
	resume := startAt.Add(time.Hour)

	_, err := f.svc.CreateSuspension(context.Background(), f.patientID, SuspensionInput{
		MedicationName: "Metformina",
		SuspendAt:      startAt,
		ResumeAt:       &resume,
	})
	require.NoError(t, err)
	assert.Len(t, f.repo.suspensions, 1)
	assert.Len(t, f.reminders.calls, 2)
}

func TestService_ListAndDeleteSuspensions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	late, err := f.svc.CreateSuspension(ctx, f.patientID, SuspensionInput{MedicationName: "B", SuspendAt: startAt})
	require.NoError(t, err)
	_, err = f.svc.CreateSuspension(ctx, f.patientID, SuspensionInput{MedicationName: "A", SuspendAt: startAt.Add(-time.Hour)})
	require.NoError(t, err)

	list, err := f.svc.ListSuspensions(ctx, f.patientID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].MedicationName)

	// Another patient's id does not own the suspension.
	err = f.svc.DeleteSuspension(ctx, uuid.New(), late.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, f.svc.DeleteSuspension(ctx, f.patientID, late.ID))
	list, err = f.svc.ListSuspensions(ctx, f.patientID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// Reminders for the deleted suspension are kept.
	assert.Len(t, f.reminders.calls, 2)
}

func TestService_ListSuspensions_Empty(t *testing.T) {
	f := newFixture()
	list, err := f.svc.ListSuspensions(context.Background(), f.patientID)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, err = f.svc.ListSuspensions(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestService_ListReminders(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.UpsertFastingPlan(ctx, f.patientID, planInput(startAt))
	require.NoError(t, err)

	list, err := f.svc.ListReminders(ctx, f.patientID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Comenzar ayuno", list[0].Title)
}

func TestService_SuggestSuspensions(t *testing.T) {
	f := newFixture()

	out, err := f.svc.SuggestSuspensions(context.Background(), SuggestInput{
		Medications:       "aspirina 100mg, clopidogrel",
		SurgicalProcedure: "colecistectomía",
	})
	require.NoError(t, err)
	assert.Equal(t, "Suspender antiagregantes 7 días antes.", out.InstructionsText)
	assert.Equal(t, []string{"Aspirina", "Clopidogrel"}, out.MedicationsToSuspend)
	assert.Contains(t, f.suggester.prompt, "colecistectomía")
	assert.ElementsMatch(t, []string{"instructionsText", "medicationsToSuspend"}, f.suggester.schema.Required)
}

func TestService_SuggestSuspensions_UpstreamErrorNotLogged(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture()
	f.suggester.err = errors.New("ai: status 500")
	svc := NewService(f.repo, mockPatients{f.patientID: true}, f.reminders, f.suggester, zerolog.New(&buf))

	_, err := svc.SuggestSuspensions(context.Background(), SuggestInput{Medications: "aspirina", SurgicalProcedure: "hernia"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.ErrorContains(t, err, "ai: status 500")
	// The HTTP error handler logs 5xx errors; the service returns them only.
	assert.Empty(t, buf.String())
}

func TestService_SuggestSuspensions_Errors(t *testing.T) {
	ctx := context.Background()

	f := newFixture()
	_, err := f.svc.SuggestSuspensions(ctx, SuggestInput{Medications: "aspirina"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	f.suggester.err = errors.New("ai: status 500")
	_, err = f.svc.SuggestSuspensions(ctx, SuggestInput{Medications: "aspirina", SurgicalProcedure: "hernia"})
	assert.True(t, apperr.Is(err, apperr.KindUpstream))

	f.suggester.enabled = false
	_, err = f.svc.SuggestSuspensions(ctx, SuggestInput{Medications: "aspirina", SurgicalProcedure: "hernia"})
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))
}

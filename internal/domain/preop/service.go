package preop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/preop/preop/internal/domain/patient"
	"github.com/preop/preop/internal/platform/ai"
	"github.com/preop/preop/internal/platform/apperr"
	"github.com/preop/preop/internal/platform/notification"
)

// PatientLookup confirms a patient exists before plans are attached to it.
type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// Reminders schedules patient reminders and lists what is scheduled.
type Reminders interface {
	notification.Notifier
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*notification.Scheduled, error)
	CancelPending(ctx context.Context, patientID uuid.UUID, title string, keep time.Time) (int64, error)
}

// Suggester produces structured answers from a language model. *ai.Client
// satisfies it.
type Suggester interface {
	Enabled() bool
	GenerateJSON(ctx context.Context, prompt string, schema *ai.Schema, out interface{}) error
}

type Service struct {
	repo      Repository
	patients  PatientLookup
	reminders Reminders
	suggester Suggester
	logger    zerolog.Logger
}

func NewService(repo Repository, patients PatientLookup, reminders Reminders, suggester Suggester, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		patients:  patients,
		reminders: reminders,
		suggester: suggester,
		logger:    logger,
	}
}

// remind schedules a reminder. Failures are logged and otherwise ignored:
// the plan or suspension that triggered it is already stored.
func (s *Service) remind(ctx context.Context, patientID uuid.UUID, title, body string, at time.Time) {
	if err := s.reminders.ScheduleNotification(ctx, patientID, title, body, at); err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", patientID.String()).
			Str("title", title).
			Time("fires_at", at).
			Msg("could not schedule reminder")
	}
}

// UpsertFastingPlan stores the patient's fasting plan, replacing any previous
// one, and schedules the reminder to start fasting. Start reminders still
// pending for an earlier start time are dropped.
func (s *Service) UpsertFastingPlan(ctx context.Context, patientID uuid.UUID, in FastingPlanInput) (*FastingPlan, error) {
	solids := strings.TrimSpace(in.Solids)
	liquids := strings.TrimSpace(in.ClearLiquids)
	if solids == "" || liquids == "" {
		return nil, apperr.Validation("solids and clear_liquids are required")
	}
	if in.StartAt.IsZero() {
		return nil, apperr.Validation("start_at is required")
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}

	plan := &FastingPlan{
		PatientID:    patientID,
		Solids:       solids,
		ClearLiquids: liquids,
		CowMilk:      in.CowMilk,
		BreastMilk:   in.BreastMilk,
		StartAt:      in.StartAt.UTC(),
	}
	if err := s.repo.UpsertFastingPlan(ctx, plan); err != nil {
		return nil, err
	}
	if n, err := s.reminders.CancelPending(ctx, patientID, fastingTitle, plan.StartAt); err != nil {
		s.logger.Warn().Err(err).
			Str("patient_id", patientID.String()).
			Msg("could not cancel previous fasting reminder")
	} else if n > 0 {
		s.logger.Debug().Int64("cancelled", n).Str("patient_id", patientID.String()).Msg("previous fasting reminder cancelled")
	}
	s.remind(ctx, patientID, fastingTitle, fastingBody, plan.StartAt)
	return plan, nil
}

func (s *Service) GetFastingPlan(ctx context.Context, patientID uuid.UUID) (*FastingPlan, error) {
	return s.repo.GetFastingPlan(ctx, patientID)
}

// CreateSuspension records a medication suspension and schedules the suspend
// and, if set, resume reminders. Dates in the past are accepted.
func (s *Service) CreateSuspension(ctx context.Context, patientID uuid.UUID, in SuspensionInput) (*Suspension, error) {
	med := strings.TrimSpace(in.MedicationName)
	if med == "" {
		return nil, apperr.Validation("medication_name is required")
	}
	if in.SuspendAt.IsZero() {
		return nil, apperr.Validation("suspend_at is required")
	}
	if in.ResumeAt != nil && !in.ResumeAt.After(in.SuspendAt) {
		return nil, apperr.Validation("resume_at must be after suspend_at")
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}

	susp := &Suspension{
		PatientID:      patientID,
		MedicationName: med,
		SuspendAt:      in.SuspendAt.UTC(),
	}
	if in.ResumeAt != nil {
		resume := in.ResumeAt.UTC()
		susp.ResumeAt = &resume
	}
	if err := s.repo.CreateSuspension(ctx, susp); err != nil {
		return nil, err
	}

	s.remind(ctx, patientID, suspendTitle(med), suspendBody, susp.SuspendAt)
	if susp.ResumeAt != nil {
		s.remind(ctx, patientID, resumeTitle(med), resumeBody, *susp.ResumeAt)
	}
	return susp, nil
}

func (s *Service) ListSuspensions(ctx context.Context, patientID uuid.UUID) ([]*Suspension, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListSuspensions(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*Suspension{}
	}
	return list, nil
}

// DeleteSuspension removes a suspension. Reminders already scheduled for it
// still fire.
func (s *Service) DeleteSuspension(ctx context.Context, patientID, id uuid.UUID) error {
	return s.repo.DeleteSuspension(ctx, patientID, id)
}

// ListReminders returns the reminders scheduled for a patient.
func (s *Service) ListReminders(ctx context.Context, patientID uuid.UUID) ([]*notification.Scheduled, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	list, err := s.reminders.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*notification.Scheduled{}
	}
	return list, nil
}

var suggestionSchema = &ai.Schema{
	Type: "OBJECT",
	Properties: map[string]*ai.Schema{
		"instructionsText":     {Type: "STRING"},
		"medicationsToSuspend": {Type: "ARRAY", Items: &ai.Schema{Type: "STRING"}},
	},
	Required: []string{"instructionsText", "medicationsToSuspend"},
}

type suggestionAnswer struct {
	InstructionsText     string   `json:"instructionsText"`
	MedicationsToSuspend []string `json:"medicationsToSuspend"`
}

func suggestionPrompt(medications, procedure string) string {
	return fmt.Sprintf("Un paciente toma %q y será operado de %q. "+
		"Redacta instrucciones preoperatorias sobre su medicación (\"instructionsText\") "+
		"y lista los medicamentos que debe suspender antes de la cirugía (\"medicationsToSuspend\"). "+
		"Responde solo con JSON.", medications, procedure)
}

// SuggestSuspensions asks the model which medications to suspend before a
// procedure. Nothing is stored.
func (s *Service) SuggestSuspensions(ctx context.Context, in SuggestInput) (*Suggestion, error) {
	meds := strings.TrimSpace(in.Medications)
	procedure := strings.TrimSpace(in.SurgicalProcedure)
	if meds == "" || procedure == "" {
		return nil, apperr.Validation("medications and surgical_procedure are required")
	}
	if s.suggester == nil || !s.suggester.Enabled() {
		return nil, apperr.Unavailable("medication suggestions are not configured")
	}

	var answer suggestionAnswer
	if err := s.suggester.GenerateJSON(ctx, suggestionPrompt(meds, procedure), suggestionSchema, &answer); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "suggestion service failed", err)
	}

	out := &Suggestion{
		InstructionsText:     strings.TrimSpace(answer.InstructionsText),
		MedicationsToSuspend: make([]string, 0, len(answer.MedicationsToSuspend)),
	}
	for _, m := range answer.MedicationsToSuspend {
		if m = strings.TrimSpace(m); m != "" {
			out.MedicationsToSuspend = append(out.MedicationsToSuspend, m)
		}
	}
	return out, nil
}

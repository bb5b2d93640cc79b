package preop

import (
	"time"

	"github.com/google/uuid"
)

// FastingPlan is the single fasting schedule of a patient.
type FastingPlan struct {
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	Solids       string    `db:"solids" json:"solids"`
	ClearLiquids string    `db:"clear_liquids" json:"clear_liquids"`
	CowMilk      *string   `db:"cow_milk" json:"cow_milk,omitempty"`
	BreastMilk   *string   `db:"breast_milk" json:"breast_milk,omitempty"`
	StartAt      time.Time `db:"start_at" json:"start_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Suspension is a medication the patient stops before surgery and, when
// ResumeAt is set, starts again afterwards.
type Suspension struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	MedicationName string     `db:"medication_name" json:"medication_name"`
	SuspendAt      time.Time  `db:"suspend_at" json:"suspend_at"`
	ResumeAt       *time.Time `db:"resume_at" json:"resume_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

type FastingPlanInput struct {
	Solids       string    `json:"solids" validate:"required"`
	ClearLiquids string    `json:"clear_liquids" validate:"required"`
	CowMilk      *string   `json:"cow_milk"`
	BreastMilk   *string   `json:"breast_milk"`
	StartAt      time.Time `json:"start_at" validate:"required"`
}

type SuspensionInput struct {
	MedicationName string     `json:"medication_name" validate:"required,max=255"`
	SuspendAt      time.Time  `json:"suspend_at" validate:"required"`
	ResumeAt       *time.Time `json:"resume_at"`
}

type SuggestInput struct {
	Medications       string `json:"medications" validate:"required"`
	SurgicalProcedure string `json:"surgical_procedure" validate:"required"`
}

// Suggestion is the model's proposal. Anesthesiologists review it before
// anything is stored.
type Suggestion struct {
	InstructionsText     string   `json:"instructions_text"`
	MedicationsToSuspend []string `json:"medications_to_suspend"`
}

// Reminder titles and bodies shown to patients.
const (
	fastingTitle = "Comenzar ayuno"
	fastingBody  = "Debes iniciar el ayuno ahora."
	suspendBody  = "Es momento de suspender este medicamento."
	resumeBody   = "Puedes volver a tomar tu medicamento."
)

func suspendTitle(med string) string { return "Suspender " + med }

func resumeTitle(med string) string { return "Reanudar " + med }

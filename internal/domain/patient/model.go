package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/preop/preop/internal/domain/consentform"
	"github.com/preop/preop/internal/domain/professional"
)

// Sex values accepted for a patient.
const (
	SexMale   = "Masculino"
	SexFemale = "Femenino"
	SexOther  = "Otro"
)

func validSex(s string) bool {
	return s == SexMale || s == SexFemale || s == SexOther
}

// ConsentType is the path form of a consent kind.
type ConsentType string

const (
	ConsentSurgical   ConsentType = "surgical"
	ConsentAnesthesia ConsentType = "anesthesia"
)

func ParseConsentType(s string) (ConsentType, bool) {
	switch ConsentType(strings.ToLower(strings.TrimSpace(s))) {
	case ConsentSurgical:
		return ConsentSurgical, true
	case ConsentAnesthesia:
		return ConsentAnesthesia, true
	}
	return "", false
}

// FormType is the stored consent form type for this consent kind.
func (t ConsentType) FormType() consentform.Type {
	if t == ConsentAnesthesia {
		return consentform.TypeAnesthesia
	}
	return consentform.TypeSurgical
}

// ConsentState is derived per consent kind, never stored.
type ConsentState string

const (
	ConsentUnassigned ConsentState = "Unassigned"
	ConsentAssigned   ConsentState = "Assigned"
	ConsentSigned     ConsentState = "Signed"
)

// Patient maps to the patient table. The summaries and the fields after
// UpdatedAt are filled on reads.
type Patient struct {
	ID                       uuid.UUID  `db:"id" json:"id"`
	Email                    string     `db:"email" json:"email"`
	Cedula                   string     `db:"cedula" json:"cedula"`
	FirstName                string     `db:"first_name" json:"first_name"`
	LastName                 string     `db:"last_name" json:"last_name"`
	DateOfBirth              time.Time  `db:"date_of_birth" json:"date_of_birth"`
	Sex                      string     `db:"sex" json:"sex"`
	SurgicalProcedure        *string    `db:"surgical_procedure" json:"surgical_procedure,omitempty"`
	SurgeryAt                *time.Time `db:"surgery_at" json:"surgery_at,omitempty"`
	SurgeonID                *uuid.UUID `db:"surgeon_id" json:"surgeon_id,omitempty"`
	ProviderID               *uuid.UUID `db:"provider_id" json:"provider_id,omitempty"`
	SurgicalConsentID        *uuid.UUID `db:"surgical_consent_id" json:"surgical_consent_id,omitempty"`
	SurgicalSignatureImage   *string    `db:"surgical_signature_image" json:"surgical_signature_image,omitempty"`
	SurgicalSignedAt         *time.Time `db:"surgical_signed_at" json:"surgical_signed_at,omitempty"`
	AnesthesiaConsentID      *uuid.UUID `db:"anesthesia_consent_id" json:"anesthesia_consent_id,omitempty"`
	AnesthesiaInstructions   *string    `db:"anesthesia_instructions" json:"anesthesia_instructions,omitempty"`
	MedicationsToSuspend     []string   `db:"medications_to_suspend" json:"medications_to_suspend"`
	AnesthesiologistID       *uuid.UUID `db:"anesthesiologist_id" json:"anesthesiologist_id,omitempty"`
	AnesthesiaSignatureImage *string    `db:"anesthesia_signature_image" json:"anesthesia_signature_image,omitempty"`
	AnesthesiaSignedAt       *time.Time `db:"anesthesia_signed_at" json:"anesthesia_signed_at,omitempty"`
	CreatedAt                time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at" json:"updated_at"`

	Surgeon           *professional.Summary `json:"surgeon,omitempty"`
	Anesthesiologist  *professional.Summary `json:"anesthesiologist,omitempty"`
	SurgicalConsent   *consentform.Summary  `json:"surgical_consent,omitempty"`
	AnesthesiaConsent *consentform.Summary  `json:"anesthesia_consent,omitempty"`

	Age                    int          `json:"age"`
	IsArchived             bool         `json:"is_archived"`
	IsActionRequired       bool         `json:"is_action_required"`
	SurgicalConsentState   ConsentState `json:"surgical_consent_state"`
	AnesthesiaConsentState ConsentState `json:"anesthesia_consent_state"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// consentFields returns the id, image and signed-at of one consent kind.
func (p *Patient) consentFields(t ConsentType) (*uuid.UUID, *string, *time.Time) {
	if t == ConsentAnesthesia {
		return p.AnesthesiaConsentID, p.AnesthesiaSignatureImage, p.AnesthesiaSignedAt
	}
	return p.SurgicalConsentID, p.SurgicalSignatureImage, p.SurgicalSignedAt
}

// ListFilter narrows ListPatients. Zero values are ignored.
type ListFilter struct {
	Search             string
	SurgeonID          *uuid.UUID
	AnesthesiologistID *uuid.UUID
	ProviderID         *uuid.UUID
}

type CreateInput struct {
	Email             string     `json:"email" validate:"required,email"`
	Cedula            string     `json:"cedula" validate:"required,max=50"`
	FirstName         string     `json:"first_name" validate:"required,max=100"`
	LastName          string     `json:"last_name" validate:"required,max=100"`
	DateOfBirth       string     `json:"date_of_birth" validate:"required"`
	Sex               string     `json:"sex" validate:"required,oneof=Masculino Femenino Otro"`
	SurgicalProcedure *string    `json:"surgical_procedure"`
	SurgeryAt         *time.Time `json:"surgery_at"`
	ConsentFormID     uuid.UUID  `json:"consent_form_id" validate:"required"`
	ProviderID        *uuid.UUID `json:"provider_id"`
	// SurgeonID is honoured only when an admin creates on a surgeon's behalf.
	SurgeonID *uuid.UUID `json:"surgeon_id"`
}

type AnesthesiaConsentInput struct {
	ConsentFormID        uuid.UUID `json:"consent_form_id" validate:"required"`
	Instructions         *string   `json:"instructions"`
	MedicationsToSuspend []string  `json:"medications_to_suspend"`
	// AnesthesiologistID is honoured only for admins.
	AnesthesiologistID *uuid.UUID `json:"anesthesiologist_id"`
}

type SignInput struct {
	Image string `json:"image" validate:"required,dataimage"`
}

type SurgeryDateInput struct {
	SurgeryAt *time.Time `json:"surgery_at"`
}

type LoginInput struct {
	Email  string `json:"email" validate:"required,email"`
	Cedula string `json:"cedula" validate:"required"`
}

// LoginResult is returned by a successful patient login.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Patient     *Patient  `json:"patient"`
}

// EmailReceipt reports what SendConsentEmail delivered.
type EmailReceipt struct {
	SentTo      string   `json:"sent_to"`
	Attachments []string `json:"attachments"`
}

package preop

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for fasting plans and
// medication suspensions.
type Repository interface {
	// UpsertFastingPlan inserts the plan or overwrites the patient's existing one.
	UpsertFastingPlan(ctx context.Context, p *FastingPlan) error
	GetFastingPlan(ctx context.Context, patientID uuid.UUID) (*FastingPlan, error)
	CreateSuspension(ctx context.Context, s *Suspension) error
	// ListSuspensions returns a patient's suspensions ordered by suspend_at.
	ListSuspensions(ctx context.Context, patientID uuid.UUID) ([]*Suspension, error)
	// DeleteSuspension removes a suspension owned by patientID.
	DeleteSuspension(ctx context.Context, patientID, id uuid.UUID) error
}

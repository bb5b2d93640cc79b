package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AnesthesiaAssignment is written by AttachAnesthesia.
type AnesthesiaAssignment struct {
	ConsentFormID        uuid.UUID
	AnesthesiologistID   uuid.UUID
	Instructions         *string
	MedicationsToSuspend []string
}

// Repository defines the persistence interface for patients.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListByEmail(ctx context.Context, email string) ([]*Patient, error)
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Patient, int, error)
	UpdateSurgeryDate(ctx context.Context, id uuid.UUID, at *time.Time) error
	AttachAnesthesia(ctx context.Context, id uuid.UUID, a AnesthesiaAssignment) error
	// Sign stores image and signedAt only if the consent is assigned and not
	// yet signed. It reports whether a row was updated.
	Sign(ctx context.Context, id uuid.UUID, t ConsentType, image string, signedAt time.Time) (bool, error)
}

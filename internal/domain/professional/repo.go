package professional

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for surgeons and
// anesthesiologists.
type Repository interface {
	Create(ctx context.Context, p *Professional) error
	GetByID(ctx context.Context, id uuid.UUID) (*Professional, error)
	GetByLicense(ctx context.Context, role Role, license string) (*Professional, error)
	List(ctx context.Context, role Role, limit, offset int) ([]*Professional, int, error)
	// LinkProvider is idempotent. Unknown ids surface as NotFound.
	LinkProvider(ctx context.Context, professionalID, providerID uuid.UUID) error
}

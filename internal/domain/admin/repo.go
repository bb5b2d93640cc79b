package admin

import (
	"context"

	"github.com/google/uuid"
)

// AdminRepository defines the persistence interface for administrators.
type AdminRepository interface {
	Create(ctx context.Context, a *Admin) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admin, error)
	GetByEmail(ctx context.Context, email string) (*Admin, error)
}

// ProviderRepository defines the persistence interface for health providers.
type ProviderRepository interface {
	Create(ctx context.Context, p *HealthProvider) error
	GetByID(ctx context.Context, id uuid.UUID) (*HealthProvider, error)
	List(ctx context.Context, limit, offset int) ([]*HealthProvider, int, error)
}

package consentform

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for consent forms.
type Repository interface {
	// Insert stores f unless a form with the same type and file name exists.
	// Stored forms are never rewritten; it reports whether a row was added.
	Insert(ctx context.Context, f *ConsentForm) (bool, error)
	// GetByName returns the form, content included, stored under t and fileName.
	GetByName(ctx context.Context, t Type, fileName string) (*ConsentForm, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ConsentForm, error)
	GetContent(ctx context.Context, id uuid.UUID) (*ConsentForm, error)
	ListByType(ctx context.Context, t Type) ([]*ConsentForm, error)
}

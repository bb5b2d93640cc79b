package professional

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/preop/preop/internal/platform/auth"
)

// Role is the stored professional kind.
type Role string

const (
	RoleSurgeon          Role = "SURGEON"
	RoleAnesthesiologist Role = "ANESTHESIOLOGIST"
)

func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleSurgeon:
		return RoleSurgeon, true
	case RoleAnesthesiologist:
		return RoleAnesthesiologist, true
	}
	return "", false
}

// AuthRole is the token role granted to this kind of professional.
func (r Role) AuthRole() string {
	if r == RoleAnesthesiologist {
		return auth.RoleAnesthesiologist
	}
	return auth.RoleSurgeon
}

// Professional maps to the professional table.
type Professional struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	Role          Role        `db:"role" json:"role"`
	FirstName     string      `db:"first_name" json:"first_name"`
	LastName      string      `db:"last_name" json:"last_name"`
	LicenseNumber string      `db:"license_number" json:"license_number"`
	PasswordHash  string      `db:"password_hash" json:"-"`
	Specialty     *string     `db:"specialty" json:"specialty,omitempty"`
	ProviderIDs   []uuid.UUID `json:"provider_ids"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

func (p *Professional) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Summary is what patient reads embed for the assigned surgeon and
// anesthesiologist.
type Summary struct {
	ID            uuid.UUID `json:"id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	LicenseNumber string    `json:"license_number"`
	Specialty     *string   `json:"specialty,omitempty"`
}

type CreateInput struct {
	Role          string      `json:"role" validate:"required,oneof=SURGEON ANESTHESIOLOGIST"`
	FirstName     string      `json:"first_name" validate:"required,max=100"`
	LastName      string      `json:"last_name" validate:"required,max=100"`
	LicenseNumber string      `json:"license_number" validate:"required,max=100"`
	Password      string      `json:"password" validate:"required,min=8"`
	Specialty     *string     `json:"specialty" validate:"omitempty,max=100"`
	ProviderIDs   []uuid.UUID `json:"provider_ids"`
}

type LoginInput struct {
	LicenseNumber string `json:"license_number" validate:"required"`
	Password      string `json:"password" validate:"required"`
}

type LinkProviderInput struct {
	ProfessionalID uuid.UUID `json:"professional_id" validate:"required"`
}

// LoginResult is returned by a successful professional login.
type LoginResult struct {
	AccessToken  string        `json:"access_token"`
	TokenType    string        `json:"token_type"`
	ExpiresAt    time.Time     `json:"expires_at"`
	Professional *Professional `json:"professional"`
}

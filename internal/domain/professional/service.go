package professional

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/preop/preop/internal/platform/apperr"
	"github.com/preop/preop/internal/platform/auth"
	"github.com/preop/preop/internal/platform/db"
)

type Service struct {
	repo      Repository
	passwords auth.PasswordVerifier
	tokens    *auth.TokenIssuer
	withTx    db.TxFunc
}

func NewService(repo Repository, passwords auth.PasswordVerifier, tokens *auth.TokenIssuer, withTx db.TxFunc) *Service {
	if withTx == nil {
		withTx = db.NoTx
	}
	return &Service{repo: repo, passwords: passwords, tokens: tokens, withTx: withTx}
}

// Create registers a surgeon or anesthesiologist and links the given
// providers in one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Professional, error) {
	role, ok := ParseRole(in.Role)
	if !ok {
		return nil, apperr.Validation("role must be SURGEON or ANESTHESIOLOGIST")
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, apperr.Validation("first and last name are required")
	}
	if strings.TrimSpace(in.LicenseNumber) == "" {
		return nil, apperr.Validation("license_number is required")
	}
	if len(in.Password) < 8 {
		return nil, apperr.Validation("password must be at least 8 characters")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	p := &Professional{
		Role:          role,
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		LicenseNumber: strings.TrimSpace(in.LicenseNumber),
		PasswordHash:  hash,
		ProviderIDs:   in.ProviderIDs,
	}
	// Specialty is only recorded for surgeons.
	if role == RoleSurgeon {
		p.Specialty = in.Specialty
	}

	err = s.withTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	if p.ProviderIDs == nil {
		p.ProviderIDs = []uuid.UUID{}
	}
	return p, nil
}

// Login checks a license number and password for the given role.
func (s *Service) Login(ctx context.Context, role Role, in LoginInput) (*LoginResult, error) {
	if strings.TrimSpace(in.LicenseNumber) == "" || in.Password == "" {
		return nil, apperr.Validation("license_number and password are required")
	}
	p, err := s.repo.GetByLicense(ctx, role, in.LicenseNumber)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Auth("invalid credentials")
		}
		return nil, err
	}
	if err := s.passwords.Verify(p.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, apperr.Auth("invalid credentials")
		}
		return nil, err
	}

	tok, err := s.tokens.Issue(p.ID.String(), p.FullName(), role.AuthRole())
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.ExpiresAt,
		Professional: p,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Professional, error) {
	return s.repo.GetByID(ctx, id)
}

// GetWithRole returns the professional only when it has the expected role.
func (s *Service) GetWithRole(ctx context.Context, id uuid.UUID, role Role) (*Professional, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Role != role {
		return nil, apperr.NotFound("%s not found", strings.ToLower(string(role)))
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, rawRole string, limit, offset int) ([]*Professional, int, error) {
	role, ok := ParseRole(rawRole)
	if !ok {
		return nil, 0, apperr.Validation("role must be SURGEON or ANESTHESIOLOGIST")
	}
	return s.repo.List(ctx, role, limit, offset)
}

func (s *Service) LinkProvider(ctx context.Context, professionalID, providerID uuid.UUID) error {
	if professionalID == uuid.Nil || providerID == uuid.Nil {
		return apperr.Validation("professional_id and provider id are required")
	}
	if _, err := s.repo.GetByID(ctx, professionalID); err != nil {
		return err
	}
	return s.repo.LinkProvider(ctx, professionalID, providerID)
}

package admin

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/preop/preop/internal/platform/apperr"
	"github.com/preop/preop/internal/platform/auth"
)

type Service struct {
	admins    AdminRepository
	providers ProviderRepository
	passwords auth.PasswordVerifier
	tokens    *auth.TokenIssuer
}

func NewService(admins AdminRepository, providers ProviderRepository, passwords auth.PasswordVerifier, tokens *auth.TokenIssuer) *Service {
	return &Service{admins: admins, providers: providers, passwords: passwords, tokens: tokens}
}

// -- Admin --

// Login checks email and password. Unknown emails and wrong passwords are
// reported identically.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, apperr.Validation("email and password are required")
	}
	a, err := s.admins.GetByEmail(ctx, in.Email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Auth("invalid credentials")
		}
		return nil, err
	}
	if err := s.passwords.Verify(a.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, apperr.Auth("invalid credentials")
		}
		return nil, err
	}

	tok, err := s.tokens.Issue(a.ID.String(), a.FullName(), auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresAt:   tok.ExpiresAt,
		Admin:       a,
	}, nil
}

// CreateAdmin bootstraps an administrator. Used from the CLI.
func (s *Service) CreateAdmin(ctx context.Context, in CreateAdminInput) (*Admin, error) {
	if strings.TrimSpace(in.Email) == "" {
		return nil, apperr.Validation("email is required")
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, apperr.Validation("first and last name are required")
	}
	if len(in.Password) < 8 {
		return nil, apperr.Validation("password must be at least 8 characters")
	}
	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	a := &Admin{
		Email:        in.Email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
	}
	if err := s.admins.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// -- HealthProvider --

func (s *Service) CreateProvider(ctx context.Context, in CreateProviderInput) (*HealthProvider, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("provider name is required")
	}
	p := &HealthProvider{
		Name:         name,
		Address:      in.Address,
		Phone:        in.Phone,
		ContactEmail: in.ContactEmail,
	}
	if err := s.providers.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (*HealthProvider, error) {
	return s.providers.GetByID(ctx, id)
}

func (s *Service) ListProviders(ctx context.Context, limit, offset int) ([]*HealthProvider, int, error) {
	return s.providers.List(ctx, limit, offset)
}

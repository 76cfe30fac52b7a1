package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/security"
	pkgvalidator "github.com/jwalitptl/clinic-api/pkg/validator"
)

var ErrTokenRevoked = errors.New("token has been revoked")

type Service struct {
	patients    repository.PatientRepository
	doctors     repository.DoctorRepository
	hasher      security.PasswordHasher
	jwtSvc      auth.JWTService
	revocations auth.RevocationStore
	validate    *validator.Validate
	logger      *logger.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewService(
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	hasher security.PasswordHasher,
	jwtSvc auth.JWTService,
	revocations auth.RevocationStore,
	log *logger.Logger,
) *Service {
	return &Service{
		patients:    patients,
		doctors:     doctors,
		hasher:      hasher,
		jwtSvc:      jwtSvc,
		revocations: revocations,
		validate:    pkgvalidator.New(),
		logger:      log,
	}
}

// Register creates a patient account. Names and email are trimmed before
// validation, so blank values are rejected.
func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (*model.Patient, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = normalizeEmail(req.Email)
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.Validation(pkgvalidator.Describe(err), err)
	}

	birthDate, err := time.Parse(model.DateLayout, req.BirthDate)
	if err != nil {
		return nil, apperrors.Validation("birth_date must be YYYY-MM-DD", err)
	}
	if birthDate.After(time.Now()) {
		return nil, apperrors.Validation("birth_date cannot be in the future", nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.Validation(err.Error(), err)
		}
		return nil, apperrors.Internal(err)
	}

	patient := &model.Patient{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
		BirthDate:    birthDate,
	}
	if err := s.patients.Create(ctx, patient); err != nil {
		return nil, err
	}

	s.logger.Info("patient registered", "patient_id", patient.ID.String())
	return patient, nil
}

// Login checks credentials for the given role and issues an access token.
// Unknown accounts and wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.TokenResponse, error) {
	identity, hash, err := s.lookup(ctx, req.Role, normalizeEmail(req.Email))
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		// Keep timing similar to a real comparison.
		_ = s.hasher.Compare(s.dummy(), req.Password)
		return nil, apperrors.InvalidCredentials()
	}

	if err := s.hasher.Compare(hash, req.Password); err != nil {
		s.logger.Warn("login failed", "role", string(req.Role), "account_id", identity.ID.String())
		return nil, apperrors.InvalidCredentials()
	}

	token, expiresAt, err := s.jwtSvc.GenerateAccessToken(identity)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to generate token: %w", err))
	}

	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		Identity:    identity,
	}, nil
}

func (s *Service) lookup(ctx context.Context, role model.Role, email string) (model.Identity, string, error) {
	switch role {
	case model.RolePatient:
		p, err := s.patients.GetByEmail(ctx, email)
		if err != nil {
			return model.Identity{}, "", err
		}
		return model.Identity{ID: p.ID, Role: role, Email: p.Email}, p.PasswordHash, nil
	case model.RoleDoctor:
		d, err := s.doctors.GetByEmail(ctx, email)
		if err != nil {
			return model.Identity{}, "", err
		}
		return model.Identity{ID: d.ID, Role: role, Email: d.Email}, d.PasswordHash, nil
	default:
		return model.Identity{}, "", apperrors.NotFound("account", nil)
	}
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("placeholder-password")
	})
	return s.dummyHash
}

// Authenticate resolves a bearer token into the caller's identity.
func (s *Service) Authenticate(ctx context.Context, token string) (model.Identity, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return model.Identity{}, apperrors.Unauthorized(err)
	}
	identity, err := auth.IdentityFromClaims(claims)
	if err != nil {
		return model.Identity{}, apperrors.Unauthorized(err)
	}

	revoked, err := s.revocations.IsRevoked(ctx, identity.TokenID)
	if err != nil {
		return model.Identity{}, apperrors.Internal(err)
	}
	if revoked {
		return model.Identity{}, apperrors.Unauthorized(ErrTokenRevoked)
	}
	return identity, nil
}

// Logout revokes the token the identity was authenticated with.
func (s *Service) Logout(ctx context.Context, identity model.Identity) error {
	if identity.TokenID == "" {
		return apperrors.Unauthorized(errors.New("no active token"))
	}
	if err := s.revocations.Revoke(ctx, identity.TokenID, identity.ExpiresAt); err != nil {
		return apperrors.Internal(err)
	}
	s.logger.Info("logged out", "account_id", identity.ID.String(), "role", string(identity.Role))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

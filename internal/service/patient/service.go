package patient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

var errPatientOnly = errors.New("only patients have a patient profile")

type Service struct {
	repo repository.PatientRepository
}

func NewService(repo repository.PatientRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetProfile(ctx context.Context, identity model.Identity) (*model.Patient, error) {
	if !identity.IsPatient() {
		return nil, apperrors.Unauthorized(errPatientOnly)
	}
	return s.repo.Get(ctx, identity.ID)
}

// UpdateProfile applies the non-nil fields of req to the caller's profile.
func (s *Service) UpdateProfile(ctx context.Context, identity model.Identity, req model.UpdatePatientRequest) (*model.Patient, error) {
	if !identity.IsPatient() {
		return nil, apperrors.Unauthorized(errPatientOnly)
	}

	patient, err := s.repo.Get(ctx, identity.ID)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		name := strings.TrimSpace(*req.FirstName)
		if name == "" {
			return nil, apperrors.Validation("first_name cannot be empty", nil)
		}
		patient.FirstName = name
	}
	if req.LastName != nil {
		name := strings.TrimSpace(*req.LastName)
		if name == "" {
			return nil, apperrors.Validation("last_name cannot be empty", nil)
		}
		patient.LastName = name
	}
	if req.Email != nil {
		patient.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.BirthDate != nil {
		birthDate, err := time.Parse(model.DateLayout, *req.BirthDate)
		if err != nil {
			return nil, apperrors.Validation("birth_date must be YYYY-MM-DD", err)
		}
		if birthDate.After(time.Now()) {
			return nil, apperrors.Validation("birth_date cannot be in the future", nil)
		}
		patient.BirthDate = birthDate
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

package doctor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/availability"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/security"
	pkgvalidator "github.com/jwalitptl/clinic-api/pkg/validator"
)

const directoryKey = "doctors"

var errDoctorOnly = errors.New("only doctors have a doctor profile")

type Service struct {
	repo     repository.DoctorRepository
	avail    *availability.Service
	hasher   security.PasswordHasher
	validate *validator.Validate
	cache    *cache.Cache
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(
	repo repository.DoctorRepository,
	avail *availability.Service,
	hasher security.PasswordHasher,
	directoryTTL, cleanupInterval time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		avail:    avail,
		hasher:   hasher,
		validate: pkgvalidator.New(),
		cache:    cache.New(directoryTTL, cleanupInterval),
		logger:   log,
		now:      time.Now,
	}
}

// Create registers a doctor and opens the availability window starting today,
// in one transaction.
func (s *Service) Create(ctx context.Context, req model.CreateDoctorRequest) (*model.Doctor, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.Validation(pkgvalidator.Describe(err), err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.Validation(err.Error(), err)
		}
		return nil, apperrors.Internal(err)
	}

	doctor := &model.Doctor{
		Base:         model.Base{ID: uuid.New()},
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
		Specialty:    req.Specialty,
	}
	slots := s.avail.SlotsFor(doctor.ID, s.now())

	event, err := model.NewOutboxEvent(model.EventDoctorCreated, map[string]interface{}{
		"doctor_id": doctor.ID,
		"specialty": doctor.Specialty,
		"slots":     len(slots),
	})
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to build doctor event: %w", err))
	}

	if err := s.repo.Create(ctx, doctor, slots, event); err != nil {
		return nil, err
	}
	s.cache.Delete(directoryKey)

	s.logger.Info("doctor created",
		"doctor_id", doctor.ID.String(),
		"specialty", string(doctor.Specialty),
		"slots", len(slots),
	)
	return doctor, nil
}

// List returns the doctor directory, served from cache when fresh.
func (s *Service) List(ctx context.Context) ([]*model.Doctor, error) {
	if cached, found := s.cache.Get(directoryKey); found {
		return cached.([]*model.Doctor), nil
	}

	doctors, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if doctors == nil {
		doctors = []*model.Doctor{}
	}
	s.cache.SetDefault(directoryKey, doctors)
	return doctors, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Profile(ctx context.Context, identity model.Identity) (*model.Doctor, error) {
	if !identity.IsDoctor() {
		return nil, apperrors.Unauthorized(errDoctorOnly)
	}
	return s.repo.Get(ctx, identity.ID)
}

// SeedAvailability opens the window starting at from for one doctor.
// Slots that already exist are kept as they are.
func (s *Service) SeedAvailability(ctx context.Context, doctorID uuid.UUID, from time.Time) (int64, error) {
	if _, err := s.repo.Get(ctx, doctorID); err != nil {
		return 0, err
	}
	return s.avail.Seed(ctx, doctorID, from)
}

// SeedAll runs SeedAvailability for every doctor and reports inserted slots
// per doctor.
func (s *Service) SeedAll(ctx context.Context, from time.Time) (map[uuid.UUID]int64, error) {
	doctors, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	inserted := make(map[uuid.UUID]int64, len(doctors))
	for _, d := range doctors {
		n, err := s.avail.Seed(ctx, d.ID, from)
		if err != nil {
			return inserted, fmt.Errorf("doctor %s: %w", d.ID, err)
		}
		inserted[d.ID] = n
	}
	return inserted, nil
}

package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type Service struct {
	slots        repository.SlotRepository
	reservations repository.ReservationRepository
	doctors      repository.DoctorRepository
	policy       Policy
	metrics      *metrics.Metrics
}

func NewService(
	slots repository.SlotRepository,
	reservations repository.ReservationRepository,
	doctors repository.DoctorRepository,
	policy Policy,
	m *metrics.Metrics,
) *Service {
	return &Service{
		slots:        slots,
		reservations: reservations,
		doctors:      doctors,
		policy:       policy,
		metrics:      m,
	}
}

func (s *Service) Policy() Policy {
	return s.policy
}

// SlotsFor binds the generated window starting at from to doctorID.
func (s *Service) SlotsFor(doctorID uuid.UUID, from time.Time) []model.AvailableSlot {
	return model.ForDoctor(doctorID, GenerateWeek(from, s.policy))
}

// Seed persists the window starting at from. Existing slots are left alone.
func (s *Service) Seed(ctx context.Context, doctorID uuid.UUID, from time.Time) (int64, error) {
	inserted, err := s.slots.Upsert(ctx, s.SlotsFor(doctorID, from))
	if err != nil {
		return 0, fmt.Errorf("failed to seed availability: %w", err)
	}
	s.metrics.SlotsGenerated.Add(float64(inserted))
	return inserted, nil
}

// ListAvailability returns the free start times of doctorID on date.
func (s *Service) ListAvailability(ctx context.Context, doctorID uuid.UUID, date string) (*model.Availability, error) {
	day, err := time.ParseInLocation(model.DateLayout, date, s.policy.Location)
	if err != nil {
		return nil, apperrors.Validation("date must be YYYY-MM-DD", err)
	}

	if _, err := s.doctors.Get(ctx, doctorID); err != nil {
		return nil, err
	}

	slots, err := s.slots.ListByDoctorAndDay(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}
	booked, err := s.reservations.ListByDoctorBetween(ctx, doctorID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	return &model.Availability{
		DoctorID: doctorID,
		Date:     day.Format(model.DateLayout),
		Times:    FilterFree(slots, booked, s.policy.Location),
	}, nil
}

// FilterFree returns the ascending, distinct start times of slots that no
// reservation starts at.
func FilterFree(slots []model.AvailableSlot, reservations []*model.ReservationView, loc *time.Location) []string {
	if loc == nil {
		loc = time.UTC
	}
	taken := make(map[string]struct{}, len(reservations))
	for _, r := range reservations {
		taken[r.ScheduledAt.In(loc).Format(model.ClockLayout)] = struct{}{}
	}

	free := make([]string, 0, len(slots))
	seen := make(map[string]struct{}, len(slots))
	for _, slot := range slots {
		if _, ok := taken[slot.StartTime]; ok {
			continue
		}
		if _, ok := seen[slot.StartTime]; ok {
			continue
		}
		seen[slot.StartTime] = struct{}{}
		free = append(free, slot.StartTime)
	}
	sort.Strings(free)
	return free
}

package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

const requestLayout = model.DateLayout + " " + model.ClockLayout

var errPatientOnly = errors.New("only patients can manage reservations")

type Service struct {
	reservations repository.ReservationRepository
	slots        repository.SlotRepository
	doctors      repository.DoctorRepository
	loc          *time.Location
	logger       *logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(
	reservations repository.ReservationRepository,
	slots repository.SlotRepository,
	doctors repository.DoctorRepository,
	loc *time.Location,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		reservations: reservations,
		slots:        slots,
		doctors:      doctors,
		loc:          loc,
		logger:       log,
		metrics:      m,
		now:          time.Now,
	}
}

// Book reserves the slot starting at req.Date req.Time for the calling patient.
func (s *Service) Book(ctx context.Context, identity model.Identity, req model.BookRequest) (*model.Reservation, error) {
	if !identity.IsPatient() {
		return nil, apperrors.Unauthorized(errPatientOnly)
	}

	at, err := time.ParseInLocation(requestLayout, req.Date+" "+req.Time, s.loc)
	if err != nil {
		return nil, apperrors.Validation("date must be YYYY-MM-DD and time HH:MM", err)
	}
	if at.Minute() != 0 {
		return nil, apperrors.Validation("reservations start on the hour", nil)
	}

	if _, err := s.doctors.Get(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	open, err := s.slots.Exists(ctx, req.DoctorID, at, at.Format(model.ClockLayout))
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, apperrors.NotFound("slot", nil)
	}

	taken, err := s.reservations.ExistsAt(ctx, req.DoctorID, at)
	if err != nil {
		return nil, err
	}
	if taken {
		s.metrics.BookingConflicts.Inc()
		return nil, apperrors.AlreadyBooked(nil)
	}

	reservation := &model.Reservation{
		ID:          uuid.New(),
		PatientID:   identity.ID,
		DoctorID:    req.DoctorID,
		ScheduledAt: at,
	}
	event, err := model.NewOutboxEvent(model.EventReservationBooked, model.ReservationBookedPayload{
		ReservationID: reservation.ID,
		PatientID:     reservation.PatientID,
		DoctorID:      reservation.DoctorID,
		ScheduledAt:   reservation.ScheduledAt,
	})
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to build booking event: %w", err))
	}

	// A concurrent booking that slipped past ExistsAt surfaces here as
	// AlreadyBooked from the unique constraint.
	if err := s.reservations.Create(ctx, reservation, event); err != nil {
		if apperrors.Is(err, apperrors.ErrAlreadyBooked) {
			s.metrics.BookingConflicts.Inc()
		}
		return nil, err
	}

	s.metrics.ReservationsBooked.Inc()
	s.logger.Info("reservation booked",
		"reservation_id", reservation.ID.String(),
		"doctor_id", reservation.DoctorID.String(),
		"scheduled_at", reservation.ScheduledAt.Format(time.RFC3339),
	)
	return reservation, nil
}

// ListReservations returns the caller's reservations, newest first.
func (s *Service) ListReservations(ctx context.Context, identity model.Identity, filters model.ReservationFilters) ([]*model.ReservationView, error) {
	if !identity.IsPatient() {
		return nil, apperrors.Unauthorized(errPatientOnly)
	}
	reservations, err := s.reservations.ListByPatient(ctx, identity.ID, filters)
	if err != nil {
		return nil, err
	}
	if reservations == nil {
		reservations = []*model.ReservationView{}
	}
	return reservations, nil
}

// MarkPaid flags the caller's reservation as paid. A reservation that does
// not exist or belongs to someone else is reported as not found.
func (s *Service) MarkPaid(ctx context.Context, identity model.Identity, reservationID uuid.UUID) (*model.Reservation, error) {
	if !identity.IsPatient() {
		return nil, apperrors.Unauthorized(errPatientOnly)
	}

	paidAt := s.now()
	event, err := model.NewOutboxEvent(model.EventReservationPaid, map[string]interface{}{
		"reservation_id": reservationID,
		"patient_id":     identity.ID,
		"paid_at":        paidAt,
	})
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to build payment event: %w", err))
	}

	updated, err := s.reservations.MarkPaid(ctx, reservationID, identity.ID, paidAt, event)
	if err != nil {
		return nil, err
	}

	current, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if current.PatientID != identity.ID {
		return nil, apperrors.NotFound("reservation", nil)
	}
	if !updated {
		if current.Paid {
			return nil, apperrors.AlreadyPaid()
		}
		return nil, apperrors.Conflict("reservation could not be marked paid", nil)
	}

	s.metrics.ReservationsPaid.Inc()
	s.logger.Info("reservation paid", "reservation_id", reservationID.String())
	return current, nil
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// Notifier emails patients when their reservations are booked or paid.
type Notifier struct {
	broker       messaging.Broker
	patients     repository.PatientRepository
	doctors      repository.DoctorRepository
	reservations repository.ReservationRepository
	mailer       email.Service
	location     *time.Location
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func NewNotifier(
	broker messaging.Broker,
	patients repository.PatientRepository,
	doctors repository.DoctorRepository,
	reservations repository.ReservationRepository,
	mailer email.Service,
	location *time.Location,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Notifier {
	return &Notifier{
		broker:       broker,
		patients:     patients,
		doctors:      doctors,
		reservations: reservations,
		mailer:       mailer,
		location:     location,
		logger:       logger,
		metrics:      metrics,
	}
}

// Start consumes both reservation channels until ctx is done.
func (n *Notifier) Start(ctx context.Context) {
	handlers := map[string]messaging.Handler{
		model.EventReservationBooked: n.HandleBooked,
		model.EventReservationPaid:   n.HandlePaid,
	}

	var wg sync.WaitGroup
	for eventType, handler := range handlers {
		wg.Add(1)
		go func(channel string, handler messaging.Handler) {
			defer wg.Done()
			if err := messaging.Consume(ctx, n.broker, channel, handler, n.logger); err != nil && ctx.Err() == nil {
				n.logger.Error(err, "Notifier subscription ended", "channel", channel)
			}
		}(messaging.Channel(eventType), handler)
	}

	n.logger.Info("Notifier started")
	wg.Wait()
	n.logger.Info("Notifier stopped")
}

func (n *Notifier) HandleBooked(ctx context.Context, msg messaging.Message) error {
	var payload model.ReservationBookedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid %s payload: %w", msg.Type, err)
	}

	patient, doctor, err := n.parties(ctx, payload.PatientID, payload.DoctorID)
	if err != nil {
		return err
	}

	subject, body := email.BookingConfirmation(patient.FullName(), doctor.DisplayName(), payload.ScheduledAt.In(n.location))
	return n.send(ctx, patient.Email, subject, body)
}

type reservationPaidPayload struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	PaidAt        time.Time `json:"paid_at"`
}

func (n *Notifier) HandlePaid(ctx context.Context, msg messaging.Message) error {
	var payload reservationPaidPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid %s payload: %w", msg.Type, err)
	}

	reservation, err := n.reservations.Get(ctx, payload.ReservationID)
	if err != nil {
		return fmt.Errorf("failed to load reservation: %w", err)
	}

	patient, doctor, err := n.parties(ctx, reservation.PatientID, reservation.DoctorID)
	if err != nil {
		return err
	}

	subject, body := email.PaymentReceipt(
		patient.FullName(),
		doctor.DisplayName(),
		reservation.ScheduledAt.In(n.location),
		payload.PaidAt.In(n.location),
	)
	return n.send(ctx, patient.Email, subject, body)
}

func (n *Notifier) parties(ctx context.Context, patientID, doctorID uuid.UUID) (*model.Patient, *model.Doctor, error) {
	patient, err := n.patients.Get(ctx, patientID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load patient: %w", err)
	}
	doctor, err := n.doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load doctor: %w", err)
	}
	return patient, doctor, nil
}

func (n *Notifier) send(ctx context.Context, to, subject, body string) error {
	if err := n.mailer.Send(ctx, to, subject, body); err != nil {
		n.metrics.NotificationsSent.WithLabelValues("error").Inc()
		return err
	}
	n.metrics.NotificationsSent.WithLabelValues("success").Inc()
	return nil
}

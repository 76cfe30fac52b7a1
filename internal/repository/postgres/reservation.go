package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const reservationViewSelect = `
	SELECT r.id, r.patient_id, r.doctor_id, r.scheduled_at, r.paid, r.paid_at, r.created_at,
		d.first_name AS doctor_first_name,
		d.last_name AS doctor_last_name,
		d.specialty AS doctor_specialty,
		p.first_name AS patient_first_name,
		p.last_name AS patient_last_name
	FROM reservations r
	JOIN doctors d ON d.id = r.doctor_id
	JOIN patients p ON p.id = r.patient_id
`

type reservationRepository struct {
	BaseRepository
}

func NewReservationRepository(db *sqlx.DB) repository.ReservationRepository {
	return &reservationRepository{NewBaseRepository(db)}
}

func (r *reservationRepository) ExistsAt(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM reservations WHERE doctor_id = $1 AND scheduled_at = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, doctorID, at); err != nil {
		return false, fmt.Errorf("failed to check reservation: %w", err)
	}
	return exists, nil
}

func (r *reservationRepository) Create(ctx context.Context, reservation *model.Reservation, event *model.OutboxEvent) error {
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	reservation.CreatedAt = time.Now()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO reservations (id, patient_id, doctor_id, scheduled_at, paid, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		_, err := tx.ExecContext(ctx, query,
			reservation.ID,
			reservation.PatientID,
			reservation.DoctorID,
			reservation.ScheduledAt,
			reservation.Paid,
			reservation.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.AlreadyBooked(err)
			}
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		return insertOutboxEvent(ctx, tx, event)
	})
}

func (r *reservationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	query := `
		SELECT id, patient_id, doctor_id, scheduled_at, paid, paid_at, created_at
		FROM reservations WHERE id = $1
	`
	var reservation model.Reservation
	if err := r.db.GetContext(ctx, &reservation, query, id); err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", notFoundOr(err, "reservation"))
	}
	return &reservation, nil
}

func (r *reservationRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, filters model.ReservationFilters) ([]*model.ReservationView, error) {
	query := reservationViewSelect + ` WHERE r.patient_id = $1`
	if filters.UnpaidOnly {
		query += ` AND r.paid = false`
	}
	query += ` ORDER BY r.scheduled_at DESC`

	var reservations []*model.ReservationView
	if err := r.db.SelectContext(ctx, &reservations, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list patient reservations: %w", err)
	}
	return reservations, nil
}

func (r *reservationRepository) ListByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.ReservationView, error) {
	query := reservationViewSelect + `
		WHERE r.doctor_id = $1 AND r.scheduled_at >= $2 AND r.scheduled_at < $3
		ORDER BY r.scheduled_at, r.created_at
	`
	var reservations []*model.ReservationView
	if err := r.db.SelectContext(ctx, &reservations, query, doctorID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list doctor reservations: %w", err)
	}
	return reservations, nil
}

func (r *reservationRepository) MarkPaid(ctx context.Context, id, patientID uuid.UUID, paidAt time.Time, event *model.OutboxEvent) (bool, error) {
	var updated bool
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE reservations
			SET paid = true, paid_at = $3
			WHERE id = $1 AND patient_id = $2 AND paid = false
		`
		result, err := tx.ExecContext(ctx, query, id, patientID, paidAt)
		if err != nil {
			return fmt.Errorf("failed to mark reservation paid: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to mark reservation paid: %w", err)
		}
		if n == 0 {
			return nil
		}
		updated = true
		return insertOutboxEvent(ctx, tx, event)
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

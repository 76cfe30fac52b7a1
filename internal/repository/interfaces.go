package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// OutboxHandler delivers a single outbox event.
type OutboxHandler func(ctx context.Context, event *model.OutboxEvent) error

// All repository interfaces in one file
type (
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByEmail(ctx context.Context, email string) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
	}

	DoctorRepository interface {
		// Create inserts the doctor, its slots and the event atomically.
		Create(ctx context.Context, doctor *model.Doctor, slots []model.AvailableSlot, event *model.OutboxEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByEmail(ctx context.Context, email string) (*model.Doctor, error)
		List(ctx context.Context) ([]*model.Doctor, error)
	}

	SlotRepository interface {
		// Upsert skips slots that already exist and reports how many were inserted.
		Upsert(ctx context.Context, slots []model.AvailableSlot) (int64, error)
		ListByDoctorAndDay(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]model.AvailableSlot, error)
		Exists(ctx context.Context, doctorID uuid.UUID, day time.Time, startTime string) (bool, error)
	}

	ReservationRepository interface {
		ExistsAt(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error)
		Create(ctx context.Context, reservation *model.Reservation, event *model.OutboxEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID, filters model.ReservationFilters) ([]*model.ReservationView, error)
		ListByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.ReservationView, error)
		// MarkPaid flips paid only for an owned, unpaid reservation. It reports
		// whether a row changed; event is written only in that case.
		MarkPaid(ctx context.Context, id, patientID uuid.UUID, paidAt time.Time, event *model.OutboxEvent) (bool, error)
	}

	MedicalRecordRepository interface {
		FindByPatient(ctx context.Context, patientID uuid.UUID) (*model.MedicalRecord, error)
		FindOrCreate(ctx context.Context, patientID uuid.UUID) (*model.MedicalRecord, error)
		AddEntry(ctx context.Context, entry *model.RecordEntry, event *model.OutboxEvent) error
		ListEntries(ctx context.Context, recordID uuid.UUID) ([]*model.RecordEntryView, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// ProcessPending locks up to limit pending events, hands each to fn and
		// records the outcome in the same transaction. An event whose failure
		// count reaches maxFailures is marked failed for good.
		ProcessPending(ctx context.Context, limit, maxFailures int, fn OutboxHandler) (processed, failed int, err error)
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

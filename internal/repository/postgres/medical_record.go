package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type medicalRecordRepository struct {
	BaseRepository
}

func NewMedicalRecordRepository(db *sqlx.DB) repository.MedicalRecordRepository {
	return &medicalRecordRepository{NewBaseRepository(db)}
}

func (r *medicalRecordRepository) FindByPatient(ctx context.Context, patientID uuid.UUID) (*model.MedicalRecord, error) {
	query := `SELECT id, patient_id, created_at FROM medical_records WHERE patient_id = $1`
	var record model.MedicalRecord
	if err := r.GetDB().GetContext(ctx, &record, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to get medical record: %w", notFoundOr(err, "medical record"))
	}
	return &record, nil
}

// FindOrCreate relies on UNIQUE (patient_id): concurrent callers converge on
// the same row.
func (r *medicalRecordRepository) FindOrCreate(ctx context.Context, patientID uuid.UUID) (*model.MedicalRecord, error) {
	insert := `
		INSERT INTO medical_records (id, patient_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (patient_id) DO NOTHING
	`
	if _, err := r.GetDB().ExecContext(ctx, insert, uuid.New(), patientID, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to create medical record: %w", err)
	}
	return r.FindByPatient(ctx, patientID)
}

func (r *medicalRecordRepository) AddEntry(ctx context.Context, entry *model.RecordEntry, event *model.OutboxEvent) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO record_entries (id, record_id, doctor_id, kind, body, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		_, err := tx.ExecContext(ctx, query,
			entry.ID,
			entry.RecordID,
			entry.DoctorID,
			entry.Kind,
			entry.Body,
			entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", entry.Kind, err)
		}
		return insertOutboxEvent(ctx, tx, event)
	})
}

func (r *medicalRecordRepository) ListEntries(ctx context.Context, recordID uuid.UUID) ([]*model.RecordEntryView, error) {
	query := `
		SELECT e.id, e.record_id, e.doctor_id, e.kind, e.body, e.created_at,
			d.first_name AS doctor_first_name,
			d.last_name AS doctor_last_name
		FROM record_entries e
		JOIN doctors d ON d.id = e.doctor_id
		WHERE e.record_id = $1
		ORDER BY e.created_at DESC, e.seq DESC
	`
	var entries []*model.RecordEntryView
	if err := r.GetDB().SelectContext(ctx, &entries, query, recordID); err != nil {
		return nil, fmt.Errorf("failed to list record entries: %w", err)
	}
	return entries, nil
}

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

type slotRepository struct {
	BaseRepository
}

func NewSlotRepository(db *sqlx.DB) repository.SlotRepository {
	return &slotRepository{NewBaseRepository(db)}
}

func (r *slotRepository) Upsert(ctx context.Context, slots []model.AvailableSlot) (int64, error) {
	var inserted int64
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		n, err := upsertSlots(ctx, tx, slots)
		inserted = n
		return err
	})
	return inserted, err
}

// upsertSlots inserts slots that do not exist yet, keyed by
// (doctor_id, day, start_time).
func upsertSlots(ctx context.Context, tx *sqlx.Tx, slots []model.AvailableSlot) (int64, error) {
	query := `
		INSERT INTO available_slots (doctor_id, day, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doctor_id, day, start_time) DO NOTHING
	`
	var inserted int64
	for _, slot := range slots {
		result, err := tx.ExecContext(ctx, query,
			slot.DoctorID,
			slot.Day.Format(model.DateLayout),
			slot.StartTime,
			slot.EndTime,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to upsert slot %s %s: %w",
				slot.Day.Format(model.DateLayout), slot.StartTime, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += n
		}
	}
	return inserted, nil
}

func (r *slotRepository) ListByDoctorAndDay(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]model.AvailableSlot, error) {
	query := `
		SELECT doctor_id, day,
			to_char(start_time, 'HH24:MI') AS start_time,
			to_char(end_time, 'HH24:MI') AS end_time
		FROM available_slots
		WHERE doctor_id = $1 AND day = $2
		ORDER BY start_time
	`
	var slots []model.AvailableSlot
	if err := r.db.SelectContext(ctx, &slots, query, doctorID, day.Format(model.DateLayout)); err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return slots, nil
}

func (r *slotRepository) Exists(ctx context.Context, doctorID uuid.UUID, day time.Time, startTime string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM available_slots
			WHERE doctor_id = $1 AND day = $2 AND start_time = $3
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, doctorID, day.Format(model.DateLayout), startTime); err != nil {
		return false, fmt.Errorf("failed to check slot: %w", err)
	}
	return exists, nil
}

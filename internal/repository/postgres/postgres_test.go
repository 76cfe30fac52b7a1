package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func bookedEvent(t *testing.T, r *model.Reservation) *model.OutboxEvent {
	evt, err := model.NewOutboxEvent(model.EventReservationBooked, model.ReservationBookedPayload{
		ReservationID: r.ID,
		PatientID:     r.PatientID,
		DoctorID:      r.DoctorID,
		ScheduledAt:   r.ScheduledAt,
	})
	require.NoError(t, err)
	return evt
}

func TestReservationCreate_WritesOutboxInSameTx(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReservationRepository(db)

	res := &model.Reservation{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		DoctorID:    uuid.New(),
		ScheduledAt: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
	}
	evt := bookedEvent(t, res)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO reservations`).
		WithArgs(res.ID, res.PatientID, res.DoctorID, res.ScheduledAt, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO outbox_events`).
		WithArgs(evt.ID, model.EventReservationBooked, sqlmock.AnyArg(), model.OutboxStatusPending, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), res, evt))
	assert.False(t, res.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCreate_UniqueViolationIsAlreadyBooked(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReservationRepository(db)

	res := &model.Reservation{
		PatientID:   uuid.New(),
		DoctorID:    uuid.New(),
		ScheduledAt: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO reservations`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "reservations_doctor_id_scheduled_at_key"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), res, bookedEvent(t, res))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyBooked))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationMarkPaid(t *testing.T) {
	id, patientID := uuid.New(), uuid.New()
	paidAt := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)

	t.Run("updates unpaid owned reservation", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewReservationRepository(db)
		evt, err := model.NewOutboxEvent(model.EventReservationPaid, map[string]string{"reservation_id": id.String()})
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE reservations`).
			WithArgs(id, patientID, paidAt).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO outbox_events`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		updated, err := repo.MarkPaid(context.Background(), id, patientID, paidAt, evt)
		require.NoError(t, err)
		assert.True(t, updated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no row changed writes no event", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewReservationRepository(db)
		evt, err := model.NewOutboxEvent(model.EventReservationPaid, map[string]string{"reservation_id": id.String()})
		require.NoError(t, err)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE reservations`).
			WithArgs(id, patientID, paidAt).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		updated, err := repo.MarkPaid(context.Background(), id, patientID, paidAt, evt)
		require.NoError(t, err)
		assert.False(t, updated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReservationListByPatient_UnpaidFilter(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReservationRepository(db)
	patientID, doctorID := uuid.New(), uuid.New()
	at := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "patient_id", "doctor_id", "scheduled_at", "paid", "paid_at", "created_at",
		"doctor_first_name", "doctor_last_name", "doctor_specialty",
		"patient_first_name", "patient_last_name",
	}).AddRow(uuid.NewString(), patientID.String(), doctorID.String(), at, false, nil, at,
		"Gregory", "House", "cardiology", "Ada", "Lovelace")

	mock.ExpectQuery(`r\.paid = false ORDER BY r\.scheduled_at DESC`).
		WithArgs(patientID).
		WillReturnRows(rows)

	list, err := repo.ListByPatient(context.Background(), patientID, model.ReservationFilters{UnpaidOnly: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, doctorID, list[0].DoctorID)
	assert.Equal(t, model.SpecialtyCardiology, list[0].DoctorSpecialty)
	assert.Nil(t, list[0].PaidAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotUpsert_CountsOnlyNewRows(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSlotRepository(db)
	doctorID := uuid.New()
	day := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	slots := []model.AvailableSlot{
		{DoctorID: doctorID, Day: day, StartTime: "08:00", EndTime: "09:00"},
		{DoctorID: doctorID, Day: day, StartTime: "09:00", EndTime: "10:00"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`ON CONFLICT \(doctor_id, day, start_time\) DO NOTHING`).
		WithArgs(doctorID, "2024-01-08", "08:00", "09:00").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`ON CONFLICT \(doctor_id, day, start_time\) DO NOTHING`).
		WithArgs(doctorID, "2024-01-08", "09:00", "10:00").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	inserted, err := repo.Upsert(context.Background(), slots)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotListByDoctorAndDay(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSlotRepository(db)
	doctorID := uuid.New()
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"doctor_id", "day", "start_time", "end_time"}).
		AddRow(doctorID.String(), day, "08:00", "09:00").
		AddRow(doctorID.String(), day, "09:00", "10:00")
	mock.ExpectQuery(`FROM available_slots`).
		WithArgs(doctorID, "2024-01-10").
		WillReturnRows(rows)

	slots, err := repo.ListByDoctorAndDay(context.Background(), doctorID, day)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[1].StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDoctorCreate_SeedsSlotsAtomically(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDoctorRepository(db)

	doctor := &model.Doctor{FirstName: "Gregory", LastName: "House", Email: "house@clinic.test", PasswordHash: "hash", Specialty: model.SpecialtyCardiology}
	slots := []model.AvailableSlot{{Day: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), StartTime: "08:00", EndTime: "09:00"}}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO doctors`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO available_slots`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), doctor, slots, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upsert slot 2024-01-08 08:00")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientGet_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPatientRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`FROM patients WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientCreate_DuplicateEmail(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPatientRepository(db)

	mock.ExpectExec(`INSERT INTO patients`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &model.Patient{Email: "ada@clinic.test", BirthDate: time.Now()})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicalRecordFindOrCreate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMedicalRecordRepository(db)
	patientID, recordID := uuid.New(), uuid.New()

	mock.ExpectExec(`ON CONFLICT \(patient_id\) DO NOTHING`).
		WithArgs(sqlmock.AnyArg(), patientID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM medical_records WHERE patient_id = \$1`).
		WithArgs(patientID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "created_at"}).
			AddRow(recordID.String(), patientID.String(), time.Now()))

	record, err := repo.FindOrCreate(context.Background(), patientID)
	require.NoError(t, err)
	assert.Equal(t, recordID, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxProcessPending(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewOutboxRepository(db)
	okID, badID := uuid.New(), uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "event_type", "payload", "status", "error_message", "retry_count",
		"created_at", "updated_at", "processed_at",
	}).
		AddRow(okID.String(), model.EventReservationBooked, []byte(`{}`), "PENDING", nil, 0, now, now, nil).
		AddRow(badID.String(), model.EventReservationPaid, []byte(`{}`), "PENDING", "timeout", 2, now, now, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(model.OutboxStatusPending, 10).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE outbox_events`).
		WithArgs(model.OutboxStatusProcessed, sqlmock.AnyArg(), okID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE outbox_events`).
		WithArgs(model.OutboxStatusFailed, "broker down", sqlmock.AnyArg(), badID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	processed, failed, err := repo.ProcessPending(context.Background(), 10, 3, func(_ context.Context, evt *model.OutboxEvent) error {
		if evt.ID == badID {
			return errors.New("broker down")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientGetByEmail_MatchesLowerEmailIndex(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPatientRepository(db)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`FROM patients WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("Ada@Clinic.test").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "email", "password_hash", "birth_date", "created_at", "updated_at"}).
			AddRow(id.String(), "Ada", "Lovelace", "ada@clinic.test", "hash", now, now, now))

	patient, err := repo.GetByEmail(context.Background(), "Ada@Clinic.test")
	require.NoError(t, err)
	assert.Equal(t, id, patient.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_EmailUniquenessIgnoresCase(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS patients`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)DROP CONSTRAINT IF EXISTS patients_email_key.*ON patients \(lower\(email\)\).*ON doctors \(lower\(email\)\).*ADD COLUMN IF NOT EXISTS seq BIGSERIAL`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"migrations/001_init.sql", "migrations/002_email_index_entry_seq.sql"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicalRecordListEntries_NewestFirstWithStableTies(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMedicalRecordRepository(db)
	recordID, doctorID := uuid.New(), uuid.New()
	first, second := uuid.New(), uuid.New()
	at := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`ORDER BY e\.created_at DESC, e\.seq DESC`).
		WithArgs(recordID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "record_id", "doctor_id", "kind", "body", "created_at", "doctor_first_name", "doctor_last_name"}).
			AddRow(second.String(), recordID.String(), doctorID.String(), "prescription", []byte("b"), at, "Gregory", "House").
			AddRow(first.String(), recordID.String(), doctorID.String(), "observation", []byte("a"), at, "Gregory", "House"))

	entries, err := repo.ListEntries(context.Background(), recordID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second, entries[0].ID)
	assert.Equal(t, first, entries[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

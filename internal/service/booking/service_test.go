package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/availability"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type fixture struct {
	store    *memory.Store
	svc      *Service
	avail    *availability.Service
	doctor   *model.Doctor
	patientA model.Identity
	patientB model.Identity
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	m := metrics.NewNop()

	doctor := &model.Doctor{FirstName: "Gregory", LastName: "House", Email: "house@clinic.test", Specialty: model.SpecialtyCardiology}
	require.NoError(t, store.Doctors().Create(ctx, doctor, nil, nil))
	week := availability.GenerateWeek(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), availability.DefaultPolicy())
	_, err := store.Slots().Upsert(ctx, model.ForDoctor(doctor.ID, week))
	require.NoError(t, err)

	a := &model.Patient{FirstName: "Ada", LastName: "Lovelace", Email: "ada@clinic.test"}
	b := &model.Patient{FirstName: "Alan", LastName: "Turing", Email: "alan@clinic.test"}
	require.NoError(t, store.Patients().Create(ctx, a))
	require.NoError(t, store.Patients().Create(ctx, b))

	return &fixture{
		store:    store,
		svc:      NewService(store.Reservations(), store.Slots(), store.Doctors(), time.UTC, logger.NewNop(), m),
		avail:    availability.NewService(store.Slots(), store.Reservations(), store.Doctors(), availability.DefaultPolicy(), m),
		doctor:   doctor,
		patientA: model.Identity{ID: a.ID, Role: model.RolePatient},
		patientB: model.Identity{ID: b.ID, Role: model.RolePatient},
	}
}

func (f *fixture) request(date, clock string) model.BookRequest {
	return model.BookRequest{DoctorID: f.doctor.ID, Date: date, Time: clock}
}

func TestBook_SecondPatientGetsAlreadyBooked(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Book(ctx, f.patientA, f.request("2024-01-10", "09:00"))
	require.NoError(t, err)
	assert.False(t, res.Paid)
	assert.Equal(t, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), res.ScheduledAt)

	avail, err := f.avail.ListAvailability(ctx, f.doctor.ID, "2024-01-10")
	require.NoError(t, err)
	assert.NotContains(t, avail.Times, "09:00")
	assert.Contains(t, avail.Times, "10:00")

	_, err = f.svc.Book(ctx, f.patientB, f.request("2024-01-10", "09:00"))
	assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyBooked))

	_, err = f.svc.Book(ctx, f.patientA, f.request("2024-01-10", "09:00"))
	assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyBooked))

	assert.Equal(t, 1, f.store.ReservationCount())
	events := f.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventReservationBooked, events[0].EventType)
}

func TestBook_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	doctor := model.Identity{ID: f.doctor.ID, Role: model.RoleDoctor}

	tests := []struct {
		name     string
		identity model.Identity
		req      model.BookRequest
		code     apperrors.ErrorCode
	}{
		{"doctor cannot book", doctor, f.request("2024-01-10", "09:00"), apperrors.ErrUnauthorized},
		{"anonymous cannot book", model.Identity{}, f.request("2024-01-10", "09:00"), apperrors.ErrUnauthorized},
		{"malformed date", f.patientA, f.request("10/01/2024", "09:00"), apperrors.ErrValidation},
		{"malformed time", f.patientA, f.request("2024-01-10", "9h"), apperrors.ErrValidation},
		{"not on the hour", f.patientA, f.request("2024-01-10", "09:30"), apperrors.ErrValidation},
		{"outside opening hours", f.patientA, f.request("2024-01-10", "18:00"), apperrors.ErrNotFound},
		{"rest day", f.patientA, f.request("2024-01-14", "09:00"), apperrors.ErrNotFound},
		{"unknown doctor", f.patientA, model.BookRequest{DoctorID: uuid.New(), Date: "2024-01-10", Time: "09:00"}, apperrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Book(ctx, tt.identity, tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, tt.code), "got %v", err)
		})
	}
	assert.Zero(t, f.store.ReservationCount())
}

// racingReservations hides existing rows from ExistsAt, as a concurrent
// request would see them before commit.
type racingReservations struct {
	repository.ReservationRepository
}

func (racingReservations) ExistsAt(context.Context, uuid.UUID, time.Time) (bool, error) {
	return false, nil
}

func TestBook_ConstraintViolationIsAlreadyBooked(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	racing := NewService(racingReservations{f.store.Reservations()}, f.store.Slots(), f.store.Doctors(), time.UTC, logger.NewNop(), metrics.NewNop())

	_, err := racing.Book(ctx, f.patientA, f.request("2024-01-11", "14:00"))
	require.NoError(t, err)
	_, err = racing.Book(ctx, f.patientB, f.request("2024-01-11", "14:00"))
	assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyBooked))
	assert.Equal(t, 1, f.store.ReservationCount())
}

func TestMarkPaid_SecondCallLeavesStateUnchanged(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	res, err := f.svc.Book(ctx, f.patientA, f.request("2024-01-12", "08:00"))
	require.NoError(t, err)

	paid, err := f.svc.MarkPaid(ctx, f.patientA, res.ID)
	require.NoError(t, err)
	require.True(t, paid.Paid)
	require.NotNil(t, paid.PaidAt)
	firstPaidAt := *paid.PaidAt

	_, err = f.svc.MarkPaid(ctx, f.patientA, res.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyPaid))

	current, err := f.store.Reservations().Get(ctx, res.ID)
	require.NoError(t, err)
	assert.True(t, current.Paid)
	assert.Equal(t, firstPaidAt, *current.PaidAt)

	var paidEvents int
	for _, evt := range f.store.OutboxEvents() {
		if evt.EventType == model.EventReservationPaid {
			paidEvents++
		}
	}
	assert.Equal(t, 1, paidEvents)
}

func TestMarkPaid_NotOwnedOrMissing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	res, err := f.svc.Book(ctx, f.patientA, f.request("2024-01-12", "10:00"))
	require.NoError(t, err)

	_, err = f.svc.MarkPaid(ctx, f.patientB, res.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = f.svc.MarkPaid(ctx, f.patientA, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	current, err := f.store.Reservations().Get(ctx, res.ID)
	require.NoError(t, err)
	assert.False(t, current.Paid)
}

func TestListReservations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	early, err := f.svc.Book(ctx, f.patientA, f.request("2024-01-09", "08:00"))
	require.NoError(t, err)
	late, err := f.svc.Book(ctx, f.patientA, f.request("2024-01-13", "15:00"))
	require.NoError(t, err)
	_, err = f.svc.MarkPaid(ctx, f.patientA, late.ID)
	require.NoError(t, err)

	all, err := f.svc.ListReservations(ctx, f.patientA, model.ReservationFilters{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, late.ID, all[0].ID)
	assert.Equal(t, "House", all[0].DoctorLastName)

	unpaid, err := f.svc.ListReservations(ctx, f.patientA, model.ReservationFilters{UnpaidOnly: true})
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, early.ID, unpaid[0].ID)

	none, err := f.svc.ListReservations(ctx, f.patientB, model.ReservationFilters{})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

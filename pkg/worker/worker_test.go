package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type recordingBroker struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	published map[string][]messaging.Message
}

func (b *recordingBroker) Publish(_ context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.calls <= b.failFirst {
		return errors.New("broker down")
	}
	if b.published == nil {
		b.published = map[string][]messaging.Message{}
	}
	b.published[channel] = append(b.published[channel], message.(messaging.Message))
	return nil
}

func (b *recordingBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *recordingBroker) Close() error { return nil }

func testProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		MaxFailures:   2,
	}
}

func seedEvent(t *testing.T, store *memory.Store, eventType string) *model.OutboxEvent {
	t.Helper()
	evt, err := model.NewOutboxEvent(eventType, map[string]string{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, store.Outbox().Create(context.Background(), evt))
	return evt
}

func TestOutboxProcessor_PublishesPendingEvents(t *testing.T) {
	store := memory.NewStore()
	evt := seedEvent(t, store, model.EventReservationBooked)
	broker := &recordingBroker{failFirst: 1}
	p := NewOutboxProcessor(store.Outbox(), broker, testProcessorConfig(), logger.NewNop(), metrics.NewNop())

	processed, failed, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Zero(t, failed)

	msgs := broker.published[messaging.Channel(model.EventReservationBooked)]
	require.Len(t, msgs, 1)
	assert.Equal(t, evt.ID, msgs[0].ID)
	assert.JSONEq(t, `{"k":"v"}`, string(msgs[0].Payload))

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusProcessed, events[0].Status)

	// Nothing left to do.
	processed, failed, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed+failed)
}

func TestOutboxProcessor_MarksFailedAfterMaxFailures(t *testing.T) {
	store := memory.NewStore()
	seedEvent(t, store, model.EventDoctorCreated)
	broker := &recordingBroker{failFirst: 1000}
	p := NewOutboxProcessor(store.Outbox(), broker, testProcessorConfig(), logger.NewNop(), metrics.NewNop())

	_, failed, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Equal(t, model.OutboxStatusPending, store.OutboxEvents()[0].Status)

	_, failed, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	events := store.OutboxEvents()
	assert.Equal(t, model.OutboxStatusFailed, events[0].Status)
	assert.Equal(t, 2, events[0].RetryCount)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Contains(t, *events[0].ErrorMessage, "broker down")
	assert.Equal(t, 4, broker.calls)
}

func TestNewOutboxProcessor_PanicsOnInvalidConfig(t *testing.T) {
	cfg := testProcessorConfig()
	cfg.BatchSize = 0
	assert.Panics(t, func() {
		NewOutboxProcessor(memory.NewStore().Outbox(), &recordingBroker{}, cfg, logger.NewNop(), metrics.NewNop())
	})
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func notifierFixture(t *testing.T) (*memory.Store, *model.Patient, *model.Doctor) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	patient := &model.Patient{FirstName: "Jane", LastName: "Doe", Email: "jane@clinic.test"}
	require.NoError(t, store.Patients().Create(ctx, patient))
	doctor := &model.Doctor{FirstName: "Gregory", LastName: "House", Email: "house@clinic.test", Specialty: model.SpecialtyCardiology}
	require.NoError(t, store.Doctors().Create(ctx, doctor, nil, nil))
	return store, patient, doctor
}

func TestNotifier_HandleBooked(t *testing.T) {
	store, patient, doctor := notifierFixture(t)
	mailer := &fakeMailer{}
	n := NewNotifier(&recordingBroker{}, store.Patients(), store.Doctors(), store.Reservations(), mailer, time.UTC, logger.NewNop(), metrics.NewNop())

	payload, err := json.Marshal(model.ReservationBookedPayload{
		ReservationID: uuid.New(),
		PatientID:     patient.ID,
		DoctorID:      doctor.ID,
		ScheduledAt:   time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NoError(t, n.HandleBooked(context.Background(), messaging.Message{Type: model.EventReservationBooked, Payload: payload}))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "jane@clinic.test", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].body, "Dr Gregory House")
	assert.Contains(t, mailer.sent[0].body, "09:00")
}

func TestNotifier_HandlePaid(t *testing.T) {
	store, patient, doctor := notifierFixture(t)
	ctx := context.Background()
	reservation := &model.Reservation{PatientID: patient.ID, DoctorID: doctor.ID, ScheduledAt: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)}
	require.NoError(t, store.Reservations().Create(ctx, reservation, nil))

	mailer := &fakeMailer{}
	n := NewNotifier(&recordingBroker{}, store.Patients(), store.Doctors(), store.Reservations(), mailer, time.UTC, logger.NewNop(), metrics.NewNop())

	payload, err := json.Marshal(map[string]interface{}{
		"reservation_id": reservation.ID,
		"patient_id":     patient.ID,
		"paid_at":        time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NoError(t, n.HandlePaid(ctx, messaging.Message{Type: model.EventReservationPaid, Payload: payload}))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Payment received", mailer.sent[0].subject)
}

func TestNotifier_Errors(t *testing.T) {
	store, patient, _ := notifierFixture(t)
	mailer := &fakeMailer{}
	n := NewNotifier(&recordingBroker{}, store.Patients(), store.Doctors(), store.Reservations(), mailer, time.UTC, logger.NewNop(), metrics.NewNop())
	ctx := context.Background()

	err := n.HandleBooked(ctx, messaging.Message{Type: model.EventReservationBooked, Payload: json.RawMessage(`"nope"`)})
	assert.Error(t, err)

	payload, _ := json.Marshal(model.ReservationBookedPayload{PatientID: patient.ID, DoctorID: uuid.New()})
	err = n.HandleBooked(ctx, messaging.Message{Type: model.EventReservationBooked, Payload: payload})
	assert.ErrorContains(t, err, "failed to load doctor")
	assert.Empty(t, mailer.sent)
}

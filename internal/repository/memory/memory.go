// Package memory is an in-process implementation of the repository
// interfaces. It enforces the same uniqueness rules as the SQL schema and is
// used by service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type slotKey struct {
	doctorID uuid.UUID
	day      string
	start    string
}

type reservationKey struct {
	doctorID uuid.UUID
	at       int64
}

type Store struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]model.Patient
	doctors      map[uuid.UUID]model.Doctor
	slots        map[slotKey]model.AvailableSlot
	reservations map[uuid.UUID]model.Reservation
	booked       map[reservationKey]uuid.UUID
	records      map[uuid.UUID]model.MedicalRecord
	entries      []model.RecordEntry
	outbox       []*model.OutboxEvent
}

func NewStore() *Store {
	return &Store{
		patients:     make(map[uuid.UUID]model.Patient),
		doctors:      make(map[uuid.UUID]model.Doctor),
		slots:        make(map[slotKey]model.AvailableSlot),
		reservations: make(map[uuid.UUID]model.Reservation),
		booked:       make(map[reservationKey]uuid.UUID),
		records:      make(map[uuid.UUID]model.MedicalRecord),
	}
}

func (s *Store) Patients() repository.PatientRepository { return &patientRepo{s} }
func (s *Store) Doctors() repository.DoctorRepository { return &doctorRepo{s} }
func (s *Store) Slots() repository.SlotRepository { return &slotRepo{s} }
func (s *Store) Reservations() repository.ReservationRepository { return &reservationRepo{s} }
func (s *Store) MedicalRecords() repository.MedicalRecordRepository { return &recordRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository { return &outboxRepo{s} }

// OutboxEvents returns a snapshot of every event written so far.
func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OutboxEvent, 0, len(s.outbox))
	for _, evt := range s.outbox {
		out = append(out, *evt)
	}
	return out
}

// ReservationCount reports how many reservations are stored.
func (s *Store) ReservationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reservations)
}

// SlotCount reports how many slots are stored.
func (s *Store) SlotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

func (s *Store) appendEvent(event *model.OutboxEvent) {
	if event != nil {
		cp := *event
		s.outbox = append(s.outbox, &cp)
	}
}

func (s *Store) patientEmailTaken(email string, except uuid.UUID) bool {
	for id, p := range s.patients {
		if id != except && strings.EqualFold(p.Email, email) {
			return true
		}
	}
	return false
}

func (s *Store) doctorEmailTaken(email string) bool {
	for _, d := range s.doctors {
		if strings.EqualFold(d.Email, email) {
			return true
		}
	}
	return false
}

func (s *Store) view(r model.Reservation) *model.ReservationView {
	d := s.doctors[r.DoctorID]
	p := s.patients[r.PatientID]
	return &model.ReservationView{
		Reservation:      r,
		DoctorFirstName:  d.FirstName,
		DoctorLastName:   d.LastName,
		DoctorSpecialty:  d.Specialty,
		PatientFirstName: p.FirstName,
		PatientLastName:  p.LastName,
	}
}

type patientRepo struct{ *Store }

func (r *patientRepo) Create(_ context.Context, patient *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.patientEmailTaken(patient.Email, uuid.Nil) {
		return apperrors.Validation("email is already registered", nil)
	}
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = patient.CreatedAt
	r.patients[patient.ID] = *patient
	return nil
}

func (r *patientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, apperrors.NotFound("patient", nil)
	}
	return &p, nil
}

func (r *patientRepo) GetByEmail(_ context.Context, email string) (*model.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.patients {
		if strings.EqualFold(p.Email, email) {
			p := p
			return &p, nil
		}
	}
	return nil, apperrors.NotFound("patient", nil)
}

func (r *patientRepo) Update(_ context.Context, patient *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[patient.ID]; !ok {
		return apperrors.NotFound("patient", nil)
	}
	if r.patientEmailTaken(patient.Email, patient.ID) {
		return apperrors.Validation("email is already registered", nil)
	}
	patient.UpdatedAt = time.Now()
	r.patients[patient.ID] = *patient
	return nil
}

type doctorRepo struct{ *Store }

func (r *doctorRepo) Create(_ context.Context, doctor *model.Doctor, slots []model.AvailableSlot, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doctorEmailTaken(doctor.Email) {
		return apperrors.Validation("email is already registered", nil)
	}
	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	doctor.CreatedAt = time.Now()
	doctor.UpdatedAt = doctor.CreatedAt
	r.doctors[doctor.ID] = *doctor
	r.upsertSlots(slots)
	r.appendEvent(event)
	return nil
}

func (r *doctorRepo) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, apperrors.NotFound("doctor", nil)
	}
	return &d, nil
}

func (r *doctorRepo) GetByEmail(_ context.Context, email string) (*model.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.doctors {
		if strings.EqualFold(d.Email, email) {
			d := d
			return &d, nil
		}
	}
	return nil, apperrors.NotFound("doctor", nil)
}

func (r *doctorRepo) List(_ context.Context) ([]*model.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		d := d
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out, nil
}

type slotRepo struct{ *Store }

func (s *Store) upsertSlots(slots []model.AvailableSlot) int64 {
	var inserted int64
	for _, slot := range slots {
		key := slotKey{slot.DoctorID, slot.Day.Format(model.DateLayout), slot.StartTime}
		if _, ok := s.slots[key]; ok {
			continue
		}
		s.slots[key] = slot
		inserted++
	}
	return inserted
}

func (r *slotRepo) Upsert(_ context.Context, slots []model.AvailableSlot) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsertSlots(slots), nil
}

func (r *slotRepo) ListByDoctorAndDay(_ context.Context, doctorID uuid.UUID, day time.Time) ([]model.AvailableSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	date := day.Format(model.DateLayout)
	var out []model.AvailableSlot
	for key, slot := range r.slots {
		if key.doctorID == doctorID && key.day == date {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (r *slotRepo) Exists(_ context.Context, doctorID uuid.UUID, day time.Time, startTime string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.slots[slotKey{doctorID, day.Format(model.DateLayout), startTime}]
	return ok, nil
}

type reservationRepo struct{ *Store }

func (r *reservationRepo) ExistsAt(_ context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.booked[reservationKey{doctorID, at.UnixNano()}]
	return ok, nil
}

func (r *reservationRepo) Create(_ context.Context, reservation *model.Reservation, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := reservationKey{reservation.DoctorID, reservation.ScheduledAt.UnixNano()}
	if _, ok := r.booked[key]; ok {
		return apperrors.AlreadyBooked(nil)
	}
	if reservation.ID == uuid.Nil {
		reservation.ID = uuid.New()
	}
	reservation.CreatedAt = time.Now()
	r.reservations[reservation.ID] = *reservation
	r.booked[key] = reservation.ID
	r.appendEvent(event)
	return nil
}

func (r *reservationRepo) Get(_ context.Context, id uuid.UUID) (*model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok {
		return nil, apperrors.NotFound("reservation", nil)
	}
	return &res, nil
}

func (r *reservationRepo) ListByPatient(_ context.Context, patientID uuid.UUID, filters model.ReservationFilters) ([]*model.ReservationView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ReservationView
	for _, res := range r.reservations {
		if res.PatientID != patientID || (filters.UnpaidOnly && res.Paid) {
			continue
		}
		out = append(out, r.view(res))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	return out, nil
}

func (r *reservationRepo) ListByDoctorBetween(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]*model.ReservationView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ReservationView
	for _, res := range r.reservations {
		if res.DoctorID != doctorID || res.ScheduledAt.Before(from) || !res.ScheduledAt.Before(to) {
			continue
		}
		out = append(out, r.view(res))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *reservationRepo) MarkPaid(_ context.Context, id, patientID uuid.UUID, paidAt time.Time, event *model.OutboxEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok || res.PatientID != patientID || res.Paid {
		return false, nil
	}
	res.Paid = true
	res.PaidAt = &paidAt
	r.reservations[id] = res
	r.appendEvent(event)
	return true, nil
}

type recordRepo struct{ *Store }

func (r *recordRepo) FindByPatient(_ context.Context, patientID uuid.UUID) (*model.MedicalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[patientID]
	if !ok {
		return nil, apperrors.NotFound("medical record", nil)
	}
	return &rec, nil
}

func (r *recordRepo) FindOrCreate(_ context.Context, patientID uuid.UUID) (*model.MedicalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[patientID]
	if !ok {
		rec = model.MedicalRecord{ID: uuid.New(), PatientID: patientID, CreatedAt: time.Now()}
		r.records[patientID] = rec
	}
	return &rec, nil
}

func (r *recordRepo) AddEntry(_ context.Context, entry *model.RecordEntry, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, *entry)
	r.appendEvent(event)
	return nil
}

func (r *recordRepo) ListEntries(_ context.Context, recordID uuid.UUID) ([]*model.RecordEntryView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.RecordEntryView
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.RecordID != recordID {
			continue
		}
		d := r.doctors[e.DoctorID]
		out = append(out, &model.RecordEntryView{
			RecordEntry:     e,
			DoctorFirstName: d.FirstName,
			DoctorLastName:  d.LastName,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type outboxRepo struct{ *Store }

func (r *outboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendEvent(event)
	return nil
}

func (r *outboxRepo) ProcessPending(ctx context.Context, limit, maxFailures int, fn repository.OutboxHandler) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var processed, failed int
	for _, evt := range r.outbox {
		if processed+failed >= limit {
			break
		}
		if evt.Status != model.OutboxStatusPending {
			continue
		}
		now := time.Now()
		evt.UpdatedAt = now
		if err := fn(ctx, evt); err != nil {
			msg := err.Error()
			evt.ErrorMessage = &msg
			evt.RetryCount++
			if evt.RetryCount >= maxFailures {
				evt.Status = model.OutboxStatusFailed
			}
			failed++
			continue
		}
		evt.Status = model.OutboxStatusProcessed
		evt.ErrorMessage = nil
		evt.ProcessedAt = &now
		processed++
	}
	return processed, failed, nil
}

func (r *outboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.outbox[:0]
	var deleted int64
	for _, evt := range r.outbox {
		if evt.Status == model.OutboxStatusProcessed && evt.ProcessedAt != nil && evt.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, evt)
	}
	r.outbox = kept
	return deleted, nil
}

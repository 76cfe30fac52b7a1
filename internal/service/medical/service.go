package medical

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

var (
	errDoctorOnly = errors.New("only doctors can write medical records")
	errNotOwner   = errors.New("patients may only read their own record")
)

// Service manages medical records. Entry text is encrypted before it reaches
// the repository.
type Service struct {
	records   repository.MedicalRecordRepository
	patients  repository.PatientRepository
	encryptor security.Encryptor
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(
	records repository.MedicalRecordRepository,
	patients repository.PatientRepository,
	encryptor security.Encryptor,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		records:   records,
		patients:  patients,
		encryptor: encryptor,
		logger:    log,
		metrics:   m,
		now:       time.Now,
	}
}

// FindRecord returns the patient's record without creating one.
func (s *Service) FindRecord(ctx context.Context, patientID uuid.UUID) (*model.MedicalRecord, error) {
	return s.records.FindByPatient(ctx, patientID)
}

// FindOrCreateRecord returns the patient's record, creating it on first use.
func (s *Service) FindOrCreateRecord(ctx context.Context, patientID uuid.UUID) (*model.MedicalRecord, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	return s.records.FindOrCreate(ctx, patientID)
}

func (s *Service) AddObservation(ctx context.Context, identity model.Identity, patientID uuid.UUID, text string) (*model.RecordEntryView, error) {
	return s.addEntry(ctx, identity, patientID, model.EntryObservation, text)
}

func (s *Service) AddPrescription(ctx context.Context, identity model.Identity, patientID uuid.UUID, text string) (*model.RecordEntryView, error) {
	return s.addEntry(ctx, identity, patientID, model.EntryPrescription, text)
}

func (s *Service) addEntry(ctx context.Context, identity model.Identity, patientID uuid.UUID, kind model.EntryKind, text string) (*model.RecordEntryView, error) {
	if !identity.IsDoctor() {
		return nil, apperrors.Unauthorized(errDoctorOnly)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation(fmt.Sprintf("%s text is required", kind), nil)
	}

	record, err := s.FindOrCreateRecord(ctx, patientID)
	if err != nil {
		return nil, err
	}

	body, err := s.encryptor.Seal([]byte(text), record.ID[:])
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to encrypt %s: %w", kind, err))
	}

	entry := &model.RecordEntry{
		ID:        uuid.New(),
		RecordID:  record.ID,
		DoctorID:  identity.ID,
		Kind:      kind,
		Body:      body,
		CreatedAt: s.now(),
	}
	// Event payloads carry ids only; entry text stays in the database.
	event, err := model.NewOutboxEvent(model.EventRecordEntryAdded, map[string]interface{}{
		"entry_id":   entry.ID,
		"record_id":  record.ID,
		"patient_id": patientID,
		"doctor_id":  identity.ID,
		"kind":       kind,
	})
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to build record event: %w", err))
	}

	if err := s.records.AddEntry(ctx, entry, event); err != nil {
		return nil, err
	}

	s.metrics.RecordEntriesAdded.WithLabelValues(string(kind)).Inc()
	s.logger.Info("medical record entry added",
		"record_id", record.ID.String(),
		"kind", string(kind),
		"doctor_id", identity.ID.String(),
	)
	return &model.RecordEntryView{RecordEntry: *entry, Text: text}, nil
}

// ListRecord returns a patient's observations and prescriptions, newest
// first. Doctors may read any record, patients only their own. A patient
// without a record gets empty lists.
func (s *Service) ListRecord(ctx context.Context, identity model.Identity, patientID uuid.UUID) (*model.RecordView, error) {
	switch {
	case identity.IsDoctor():
	case identity.IsPatient() && identity.ID == patientID:
	default:
		return nil, apperrors.Unauthorized(errNotOwner)
	}

	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}

	view := &model.RecordView{
		PatientID:     patientID,
		Observations:  []model.RecordEntryView{},
		Prescriptions: []model.RecordEntryView{},
	}

	record, err := s.records.FindByPatient(ctx, patientID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return view, nil
		}
		return nil, err
	}
	view.RecordID = &record.ID

	entries, err := s.records.ListEntries(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		plain, err := s.encryptor.Open(e.Body, record.ID[:])
		if err != nil {
			return nil, apperrors.Internal(fmt.Errorf("failed to decrypt entry %s: %w", e.ID, err))
		}
		e.Text = string(plain)
		switch e.Kind {
		case model.EntryObservation:
			view.Observations = append(view.Observations, *e)
		case model.EntryPrescription:
			view.Prescriptions = append(view.Prescriptions, *e)
		}
	}
	return view, nil
}

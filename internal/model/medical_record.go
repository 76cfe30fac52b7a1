package model

import (
	"time"

	"github.com/google/uuid"
)

type MedicalRecord struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type EntryKind string

const (
	EntryObservation  EntryKind = "observation"
	EntryPrescription EntryKind = "prescription"
)

// RecordEntry is an observation or prescription. Body is stored encrypted.
type RecordEntry struct {
	ID        uuid.UUID `db:"id" json:"id"`
	RecordID  uuid.UUID `db:"record_id" json:"record_id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Kind      EntryKind `db:"kind" json:"kind"`
	Body      []byte    `db:"body" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type RecordEntryView struct {
	RecordEntry
	DoctorFirstName string `db:"doctor_first_name" json:"doctor_first_name"`
	DoctorLastName  string `db:"doctor_last_name" json:"doctor_last_name"`
	Text            string `db:"-" json:"text"`
}

type RecordView struct {
	PatientID     uuid.UUID         `json:"patient_id"`
	RecordID      *uuid.UUID        `json:"record_id,omitempty"`
	Observations  []RecordEntryView `json:"observations"`
	Prescriptions []RecordEntryView `json:"prescriptions"`
}

type AddEntryRequest struct {
	Text string `json:"text" binding:"required,max=10000"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

type Reservation struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	ScheduledAt time.Time  `db:"scheduled_at" json:"scheduled_at"`
	Paid        bool       `db:"paid" json:"paid"`
	PaidAt      *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// ReservationView is a reservation joined with both parties' names.
type ReservationView struct {
	Reservation
	DoctorFirstName  string    `db:"doctor_first_name" json:"doctor_first_name"`
	DoctorLastName   string    `db:"doctor_last_name" json:"doctor_last_name"`
	DoctorSpecialty  Specialty `db:"doctor_specialty" json:"doctor_specialty"`
	PatientFirstName string    `db:"patient_first_name" json:"patient_first_name"`
	PatientLastName  string    `db:"patient_last_name" json:"patient_last_name"`
}

type BookRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" binding:"required"`
	Date     string    `json:"date" binding:"required,datetime=2006-01-02"`
	Time     string    `json:"time" binding:"required,datetime=15:04"`
}

type ReservationFilters struct {
	UnpaidOnly bool
}

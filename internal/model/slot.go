package model

import (
	"time"

	"github.com/google/uuid"
)

// AvailableSlot is one generated hour of a doctor's agenda.
// StartTime and EndTime use ClockLayout.
type AvailableSlot struct {
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Day       time.Time `db:"day" json:"day"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
}

type Availability struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Times    []string  `json:"times"`
}

// SlotSpec is a generated slot before it is bound to a doctor.
type SlotSpec struct {
	Day       time.Time
	StartTime string
	EndTime   string
}

// ForDoctor binds specs to a doctor.
func ForDoctor(doctorID uuid.UUID, specs []SlotSpec) []AvailableSlot {
	slots := make([]AvailableSlot, 0, len(specs))
	for _, s := range specs {
		slots = append(slots, AvailableSlot{
			DoctorID:  doctorID,
			Day:       s.Day,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
		})
	}
	return slots
}

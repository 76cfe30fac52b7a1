package model

import (
	"github.com/google/uuid"
)

// WeeklyPlanning is a doctor's Monday..Saturday grid. Every day carries one
// cell per planning hour; Reservation is nil for a free cell.
type WeeklyPlanning struct {
	DoctorID  uuid.UUID     `json:"doctor_id"`
	WeekStart string        `json:"week_start"`
	Hours     []int         `json:"hours"`
	Days      []PlanningDay `json:"days"`
}

type PlanningDay struct {
	Date  string         `json:"date"`
	Cells []PlanningCell `json:"cells"`
}

type PlanningCell struct {
	Hour        int              `json:"hour"`
	Reservation *ReservationView `json:"reservation"`
}

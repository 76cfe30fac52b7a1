package planning

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// Days is the number of columns in a planning week, Monday through Saturday.
const Days = 6

var errDoctorOnly = errors.New("only doctors have a planning")

type Service struct {
	reservations repository.ReservationRepository
	hours        []int
	loc          *time.Location
	logger       *logger.Logger
}

func NewService(reservations repository.ReservationRepository, hours []int, loc *time.Location, log *logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		reservations: reservations,
		hours:        hours,
		loc:          loc,
		logger:       log,
	}
}

// WeekStart returns midnight of the Monday of now's week in loc.
func WeekStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	return time.Date(local.Year(), local.Month(), local.Day()-offset, 0, 0, 0, 0, loc)
}

// WeeklyPlanning builds the calling doctor's grid for the week containing now.
func (s *Service) WeeklyPlanning(ctx context.Context, identity model.Identity, now time.Time) (*model.WeeklyPlanning, error) {
	if !identity.IsDoctor() {
		return nil, apperrors.Unauthorized(errDoctorOnly)
	}

	monday := WeekStart(now, s.loc)
	reservations, err := s.reservations.ListByDoctorBetween(ctx, identity.ID, monday, monday.AddDate(0, 0, Days))
	if err != nil {
		return nil, err
	}

	planning, collisions := BuildWeek(monday, s.hours, reservations, s.loc)
	planning.DoctorID = identity.ID
	for _, c := range collisions {
		s.logger.Warn("planning cell holds more than one reservation, keeping the last",
			"doctor_id", identity.ID.String(),
			"date", c.Date,
			"hour", c.Hour,
			"dropped_reservation_id", c.Dropped.String(),
		)
	}
	return planning, nil
}

// Collision reports a reservation hidden by a later one in the same cell.
type Collision struct {
	Date    string
	Hour    int
	Dropped uuid.UUID
}

// BuildWeek lays reservations onto a Monday..Saturday × hours grid. Each
// reservation lands in the cell of its date and truncated hour; when two land
// in the same cell the later one in the input wins.
func BuildWeek(monday time.Time, hours []int, reservations []*model.ReservationView, loc *time.Location) (*model.WeeklyPlanning, []Collision) {
	if loc == nil {
		loc = time.UTC
	}
	monday = WeekStart(monday, loc)

	hourIndex := make(map[int]int, len(hours))
	for i, h := range hours {
		hourIndex[h] = i
	}

	planning := &model.WeeklyPlanning{
		WeekStart: monday.Format(model.DateLayout),
		Hours:     append([]int(nil), hours...),
		Days:      make([]model.PlanningDay, Days),
	}
	dayIndex := make(map[string]int, Days)
	for d := 0; d < Days; d++ {
		date := monday.AddDate(0, 0, d).Format(model.DateLayout)
		dayIndex[date] = d
		cells := make([]model.PlanningCell, len(hours))
		for i, h := range hours {
			cells[i] = model.PlanningCell{Hour: h}
		}
		planning.Days[d] = model.PlanningDay{Date: date, Cells: cells}
	}

	var collisions []Collision
	for _, r := range reservations {
		at := r.ScheduledAt.In(loc)
		d, ok := dayIndex[at.Format(model.DateLayout)]
		if !ok {
			continue
		}
		h, ok := hourIndex[at.Hour()]
		if !ok {
			continue
		}
		cell := &planning.Days[d].Cells[h]
		if cell.Reservation != nil {
			collisions = append(collisions, Collision{
				Date:    planning.Days[d].Date,
				Hour:    cell.Hour,
				Dropped: cell.Reservation.ID,
			})
		}
		cell.Reservation = r
	}
	return planning, collisions
}

package availability

import (
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
)

// Policy is the clinic's opening pattern. Hours in [OpenHour, CloseHour)
// start a one-hour slot on every day of the horizon except RestDay.
type Policy struct {
	Location    *time.Location
	OpenHour    int
	CloseHour   int
	RestDay     time.Weekday
	HorizonDays int
}

func DefaultPolicy() Policy {
	return Policy{
		Location:    time.UTC,
		OpenHour:    8,
		CloseHour:   16,
		RestDay:     time.Sunday,
		HorizonDays: 7,
	}
}

func PolicyFromConfig(cfg config.ClinicConfig) (Policy, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Policy{}, fmt.Errorf("invalid clinic timezone: %w", err)
	}
	return Policy{
		Location:    loc,
		OpenHour:    cfg.OpenHour,
		CloseHour:   cfg.CloseHour,
		RestDay:     cfg.RestWeekday(),
		HorizonDays: cfg.HorizonDays,
	}, nil
}

// Hours lists the slot start hours of a working day.
func (p Policy) Hours() []int {
	hours := make([]int, 0, p.CloseHour-p.OpenHour)
	for h := p.OpenHour; h < p.CloseHour; h++ {
		hours = append(hours, h)
	}
	return hours
}

// GenerateWeek enumerates the slots of the HorizonDays calendar days starting
// at from's date in the clinic location. Days are returned as UTC midnights
// so they format to the clinic-local calendar date.
func GenerateWeek(from time.Time, policy Policy) []model.SlotSpec {
	loc := policy.Location
	if loc == nil {
		loc = time.UTC
	}
	local := from.In(loc)

	specs := make([]model.SlotSpec, 0, policy.HorizonDays*(policy.CloseHour-policy.OpenHour))
	for i := 0; i < policy.HorizonDays; i++ {
		date := time.Date(local.Year(), local.Month(), local.Day()+i, 0, 0, 0, 0, time.UTC)
		if date.Weekday() == policy.RestDay {
			continue
		}
		for _, h := range policy.Hours() {
			specs = append(specs, model.SlotSpec{
				Day:       date,
				StartTime: fmt.Sprintf("%02d:00", h),
				EndTime:   fmt.Sprintf("%02d:00", h+1),
			})
		}
	}
	return specs
}

package engine

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	gerr "github.com/jekabolt/grbpwr-attribution/internal/errors"
)

// Request selects the attributed rows of one shop. Dates are calendar days,
// both inclusive; EndDate defaults to StartDate. Empty Model, Mode and
// WindowDays fall back to the service configuration.
type Request struct {
	Account     string
	StartDate   time.Time
	EndDate     time.Time
	Model       string
	Mode        entity.DataMode
	WindowDays  int
	Channels    []string
	CampaignIDs []int64
}

// Validate reports an InvalidFilter error for a malformed request.
func (r Request) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Account, validation.Required),
		validation.Field(&r.StartDate, validation.Required),
		validation.Field(&r.EndDate, validation.When(!r.EndDate.IsZero() && !r.StartDate.IsZero(),
			validation.By(notBefore(r.StartDate)))),
		validation.Field(&r.Mode, validation.In(entity.DataModeWindow, entity.DataModeEvent)),
	)
	if err != nil {
		return fmt.Errorf("%w: %s", gerr.InvalidFilter, err.Error())
	}
	return nil
}

// CohortRequest selects the cohorts acquired between StartDate and EndDate.
type CohortRequest struct {
	Account     string
	StartDate   time.Time
	EndDate     time.Time
	Granularity entity.CohortGranularity
	MaxPeriods  int
	ProductIDs  []int64
}

// Validate reports an InvalidFilter error for a malformed request.
func (r CohortRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Account, validation.Required),
		validation.Field(&r.StartDate, validation.Required),
		validation.Field(&r.EndDate, validation.When(!r.EndDate.IsZero() && !r.StartDate.IsZero(),
			validation.By(notBefore(r.StartDate)))),
		validation.Field(&r.Granularity, validation.Required, validation.In(
			entity.CohortWeek, entity.CohortMonth, entity.CohortQuarter, entity.CohortYear)),
		validation.Field(&r.MaxPeriods, validation.Min(0)),
	)
	if err != nil {
		return fmt.Errorf("%w: %s", gerr.InvalidFilter, err.Error())
	}
	return nil
}

func notBefore(start time.Time) validation.RuleFunc {
	return func(value interface{}) error {
		end, _ := value.(time.Time)
		if calendarDay(end, time.UTC).Before(calendarDay(start, time.UTC)) {
			return fmt.Errorf("end date must not be before start date")
		}
		return nil
	}
}

// calendarDay reinterprets the calendar date of t as midnight in loc.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func dateRange(start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	if end.IsZero() {
		end = start
	}
	return calendarDay(start, loc), calendarDay(end, loc)
}

package cohort

import (
	"time"

	"github.com/jekabolt/grbpwr-attribution/internal/entity"
)

// DefaultMaxPeriods returns the number of periods reported when none is
// requested: about one year of history, two periods for yearly cohorts.
func DefaultMaxPeriods(g entity.CohortGranularity) int {
	switch g {
	case entity.CohortWeek:
		return 52
	case entity.CohortMonth:
		return 12
	case entity.CohortQuarter:
		return 4
	case entity.CohortYear:
		return 2
	default:
		return 0
	}
}

// PeriodStart returns the start of the period containing t, in t's location.
// Weeks start on Monday.
func PeriodStart(t time.Time, g entity.CohortGranularity) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch g {
	case entity.CohortWeek:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case entity.CohortMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case entity.CohortQuarter:
		return time.Date(y, ((m-1)/3)*3+1, 1, 0, 0, 0, 0, loc)
	case entity.CohortYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// PeriodIndex is the number of whole periods from the cohort period to the
// order period. It is negative when the order precedes the cohort.
func PeriodIndex(cohort, order time.Time, g entity.CohortGranularity) int {
	cy, cm, cd := cohort.Date()
	oy, om, od := order.Date()
	switch g {
	case entity.CohortWeek:
		c := time.Date(cy, cm, cd, 0, 0, 0, 0, time.UTC)
		o := time.Date(oy, om, od, 0, 0, 0, 0, time.UTC)
		days := int(o.Sub(c).Hours() / 24)
		if days < 0 {
			return -((-days + 6) / 7)
		}
		return days / 7
	case entity.CohortMonth:
		return (oy-cy)*12 + int(om-cm)
	case entity.CohortQuarter:
		return (oy-cy)*4 + (int(om)-1)/3 - (int(cm)-1)/3
	case entity.CohortYear:
		return oy - cy
	default:
		return 0
	}
}

// NextPeriod returns the start of the period after the one starting at start.
func NextPeriod(start time.Time, g entity.CohortGranularity) time.Time {
	switch g {
	case entity.CohortWeek:
		return start.AddDate(0, 0, 7)
	case entity.CohortMonth:
		return start.AddDate(0, 1, 0)
	case entity.CohortQuarter:
		return start.AddDate(0, 3, 0)
	case entity.CohortYear:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// Periods widens r to whole periods: from the start of the period holding
// r.From to the end of the period holding the last instant of r.
func Periods(r entity.TimeRange, g entity.CohortGranularity) entity.TimeRange {
	last := PeriodStart(r.To.Add(-time.Nanosecond), g)
	return entity.TimeRange{From: PeriodStart(r.From, g), To: NextPeriod(last, g)}
}

// Package timebucket picks the time-series granularity for a date range and
// aligns timestamps to bucket boundaries.
package timebucket

import (
	"time"

	"github.com/jekabolt/grbpwr-attribution/internal/entity"
)

// Select returns hourly granularity when start and end fall on the same
// calendar day and daily granularity otherwise.
func Select(start, end time.Time) entity.MetricsGranularity {
	sy, sm, sd := start.Date()
	ey, em, ed := end.In(start.Location()).Date()
	if sy == ey && sm == em && sd == ed {
		return entity.MetricsGranularityHour
	}
	return entity.MetricsGranularityDay
}

// Range converts inclusive calendar dates into the half-open interval
// [start 00:00, end+1day 00:00) in loc. Filters must use a strict < on To.
func Range(start, end time.Time, loc *time.Location) entity.TimeRange {
	if loc == nil {
		loc = time.UTC
	}
	sy, sm, sd := start.In(loc).Date()
	ey, em, ed := end.In(loc).Date()
	return entity.TimeRange{
		From: time.Date(sy, sm, sd, 0, 0, 0, 0, loc),
		To:   time.Date(ey, em, ed+1, 0, 0, 0, 0, loc),
	}
}

// Truncate returns the start of the bucket containing t, in t's location.
// Hours are cut on the instant, so the two 01:00 hours of a fall-back day
// stay separate buckets.
func Truncate(t time.Time, g entity.MetricsGranularity) time.Time {
	switch g {
	case entity.MetricsGranularityHour:
		return t.Add(-(time.Duration(t.Minute())*time.Minute +
			time.Duration(t.Second())*time.Second +
			time.Duration(t.Nanosecond())))
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

// Next returns the start of the bucket following t.
func Next(t time.Time, g entity.MetricsGranularity) time.Time {
	switch g {
	case entity.MetricsGranularityHour:
		return t.Add(time.Hour)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// Buckets lists every bucket start in [r.From, r.To).
func Buckets(r entity.TimeRange, g entity.MetricsGranularity) []time.Time {
	var out []time.Time
	for cur := Truncate(r.From, g); cur.Before(r.To); cur = Next(cur, g) {
		out = append(out, cur)
	}
	return out
}

// FillGaps returns one point per bucket of r, taking existing points by their
// bucket and creating empty ones where none exists.
func FillGaps[T any](points []T, date func(T) time.Time, r entity.TimeRange, g entity.MetricsGranularity, empty func(time.Time) T) []T {
	pointMap := make(map[int64]T, len(points))
	for _, p := range points {
		pointMap[Truncate(date(p), g).Unix()] = p
	}
	var result []T
	for _, b := range Buckets(r, g) {
		if p, ok := pointMap[b.Unix()]; ok {
			result = append(result, p)
		} else {
			result = append(result, empty(b))
		}
	}
	return result
}

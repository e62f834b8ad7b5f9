// Package query describes what a request fetches from the analytical store and
// renders it into per-dialect SQL plans.
package query

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jekabolt/grbpwr-attribution/internal/attribution"
	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	gerr "github.com/jekabolt/grbpwr-attribution/internal/errors"
)

// Level is the key the rows are grouped by.
type Level string

const (
	// LevelChannel groups by channel.
	LevelChannel Level = "channel"
	// LevelCampaign groups by channel and campaign name, for non-paid campaign views.
	LevelCampaign Level = "campaign"
	// LevelAd groups by channel, campaign, ad set and ad ids.
	LevelAd Level = "ad"
)

// DefaultWindowDays is the lookback window used when none is requested.
const DefaultWindowDays = 28

// WindowDays are the lookback windows the precomputed tables are keyed by.
var WindowDays = []int{1, 7, 14, 28, 30, 60, 90}

// Spec is a validated description of one attribution fetch.
type Spec struct {
	ShopID      int64
	Range       entity.TimeRange
	Location    *time.Location
	Model       attribution.Definition
	Mode        entity.DataMode
	WindowDays  int
	Granularity entity.MetricsGranularity
	Level       Level
	Channels    []string
	CampaignIDs []int64
	Timeseries  bool
}

// Validate reports an InvalidFilter error for a spec no store can serve.
func (s Spec) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.ShopID, validation.Required, validation.Min(int64(1))),
		validation.Field(&s.Range, validation.By(validateRange)),
		validation.Field(&s.Mode, validation.Required, validation.In(entity.DataModeWindow, entity.DataModeEvent)),
		validation.Field(&s.WindowDays, validation.When(s.Mode == entity.DataModeWindow,
			validation.Required, validation.In(windowValues()...))),
		validation.Field(&s.Granularity, validation.Required,
			validation.In(entity.MetricsGranularityHour, entity.MetricsGranularityDay)),
		validation.Field(&s.Level, validation.Required, validation.In(LevelChannel, LevelCampaign, LevelAd)),
		validation.Field(&s.Channels, validation.Each(validation.Required, validation.Length(1, 64))),
		validation.Field(&s.CampaignIDs, validation.Each(validation.Min(int64(0)))),
	)
	if err != nil {
		return fmt.Errorf("%w: %s", gerr.InvalidFilter, err.Error())
	}
	if _, ok := attribution.Lookup(s.Model.Model); !ok {
		return fmt.Errorf("%w: unsupported attribution model %q", gerr.InvalidFilter, s.Model.Model)
	}
	return nil
}

func (s Spec) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// CohortSpec describes the facts the cohort engine needs.
type CohortSpec struct {
	ShopID      int64
	Range       entity.TimeRange
	Location    *time.Location
	Granularity entity.CohortGranularity
	ProductIDs  []int64
}

// Validate reports an InvalidFilter error for an unusable cohort spec.
func (s CohortSpec) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.ShopID, validation.Required, validation.Min(int64(1))),
		validation.Field(&s.Range, validation.By(validateRange)),
		validation.Field(&s.Granularity, validation.Required, validation.In(
			entity.CohortWeek, entity.CohortMonth, entity.CohortQuarter, entity.CohortYear)),
		validation.Field(&s.ProductIDs, validation.Each(validation.Min(int64(1)))),
	)
	if err != nil {
		return fmt.Errorf("%w: %s", gerr.InvalidFilter, err.Error())
	}
	return nil
}

func (s CohortSpec) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func validateRange(value interface{}) error {
	r, ok := value.(entity.TimeRange)
	if !ok {
		return errors.New("invalid type for date range")
	}
	if r.From.IsZero() || r.To.IsZero() {
		return errors.New("date range is required")
	}
	if !r.From.Before(r.To) {
		return errors.New("start date must be before end date")
	}
	return nil
}

func windowValues() []interface{} {
	out := make([]interface{}, len(WindowDays))
	for i, w := range WindowDays {
		out[i] = w
	}
	return out
}

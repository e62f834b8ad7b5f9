// Package attribution defines the supported attribution models and the
// event-selection rule each one applies to an order's touchpoints.
package attribution

import (
	"fmt"
	"strings"

	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	gerr "github.com/jekabolt/grbpwr-attribution/internal/errors"
)

// Flag is a per-event boolean computed across the order's full path.
// Its value doubles as the column name in the analytical store.
type Flag string

const (
	FlagNone              Flag = ""
	FlagFirstEventOverall Flag = "is_first_event_overall"
	FlagLastEventOverall  Flag = "is_last_event_overall"
	FlagLastPaidOverall   Flag = "is_last_paid_event_overall"
	FlagHasAnyPaidEvents  Flag = "has_any_paid_events"
	FlagPaidChannel       Flag = "is_paid_channel"
)

// Rule is the event-selection predicate of a model.
//
// An event is selected when it carries Flag (every event when Flag is empty).
// For orders without any paid event, Fallback replaces Flag, and FallbackAll
// selects every event of the order. Selected events of an order share the
// order's credit equally, so each order contributes a total weight of 1.
type Rule struct {
	Flag        Flag
	Fallback    Flag
	FallbackAll bool
	Linear      bool
}

// Definition is a registered attribution model.
type Definition struct {
	Model entity.AttributionModel
	Label string
	Rule  Rule
}

var registry = []Definition{
	{
		Model: entity.FirstClick,
		Label: "First click",
		Rule:  Rule{Flag: FlagFirstEventOverall},
	},
	{
		Model: entity.LastClick,
		Label: "Last click",
		Rule:  Rule{Flag: FlagLastEventOverall},
	},
	{
		Model: entity.LastPaidClick,
		Label: "Last paid click",
		Rule:  Rule{Flag: FlagLastPaidOverall, Fallback: FlagLastEventOverall},
	},
	{
		Model: entity.LinearAll,
		Label: "Linear (all touchpoints)",
		Rule:  Rule{Linear: true},
	},
	{
		Model: entity.LinearPaid,
		Label: "Linear (paid touchpoints)",
		Rule:  Rule{Flag: FlagPaidChannel, FallbackAll: true, Linear: true},
	},
}

// Models returns every registered model in display order.
func Models() []Definition {
	out := make([]Definition, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the definition registered for m.
func Lookup(m entity.AttributionModel) (Definition, bool) {
	for _, d := range registry {
		if d.Model == m {
			return d, true
		}
	}
	return Definition{}, false
}

// Parse resolves a model name. Unknown names are an InvalidFilter error.
func Parse(name string) (Definition, error) {
	d, ok := Lookup(entity.AttributionModel(strings.ToLower(strings.TrimSpace(name))))
	if !ok {
		return Definition{}, fmt.Errorf("%w: unsupported attribution model %q", gerr.InvalidFilter, name)
	}
	return d, nil
}

// HasFallback reports whether orders without paid events use a different predicate.
func (r Rule) HasFallback() bool {
	return r.Fallback != FlagNone || r.FallbackAll
}

// Selects reports whether the rule selects tp.
func (r Rule) Selects(tp entity.Touchpoint) bool {
	if !tp.HasAnyPaidEvents && r.HasFallback() {
		if r.FallbackAll {
			return true
		}
		return flagValue(tp, r.Fallback)
	}
	if r.Flag == FlagNone {
		return true
	}
	return flagValue(tp, r.Flag)
}

func flagValue(tp entity.Touchpoint, f Flag) bool {
	switch f {
	case FlagFirstEventOverall:
		return tp.IsFirstEventOverall
	case FlagLastEventOverall:
		return tp.IsLastEventOverall
	case FlagLastPaidOverall:
		return tp.IsLastPaidEventOverall
	case FlagHasAnyPaidEvents:
		return tp.HasAnyPaidEvents
	case FlagPaidChannel:
		return tp.IsPaidChannel
	default:
		return false
	}
}

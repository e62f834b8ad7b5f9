package attribution

import (
	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	"github.com/shopspring/decimal"
)

// Weights returns the credit each event receives under the model, parallel to events.
// Events are grouped by OrderID; within an order every selected event gets
// 1/|selected| and every other event gets 0.
func Weights(def Definition, events []entity.Touchpoint) []decimal.Decimal {
	weights := make([]decimal.Decimal, len(events))

	selected := make(map[string][]int)
	for i, ev := range events {
		weights[i] = decimal.Zero
		if def.Rule.Selects(ev) {
			selected[ev.OrderID] = append(selected[ev.OrderID], i)
		}
	}

	for _, idx := range selected {
		w := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(len(idx))))
		for _, i := range idx {
			weights[i] = w
		}
	}
	return weights
}

// OrderWeights sums the weights per order. Every order with at least one
// selected event sums to 1.
func OrderWeights(def Definition, events []entity.Touchpoint) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for i, w := range Weights(def, events) {
		id := events[i].OrderID
		out[id] = out[id].Add(w)
	}
	return out
}

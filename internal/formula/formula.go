// Package formula holds the derived-metric formulas shared by every view.
// Every ratio returns exactly zero when its denominator is not positive.
package formula

import (
	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ROAS is attributed revenue per unit of ad spend.
func ROAS(revenue, spend decimal.Decimal) decimal.Decimal {
	if !spend.IsPositive() {
		return decimal.Zero
	}
	return revenue.Div(spend)
}

// CPC is ad spend per click.
func CPC(spend decimal.Decimal, clicks int64) decimal.Decimal {
	if clicks <= 0 {
		return decimal.Zero
	}
	return spend.Div(decimal.NewFromInt(clicks))
}

// CTR is clicks per impression, in percent.
func CTR(clicks, impressions int64) decimal.Decimal {
	if impressions <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(clicks).Mul(hundred).Div(decimal.NewFromInt(impressions))
}

// ProfitMargin is profit over revenue, in percent.
func ProfitMargin(profit, revenue decimal.Decimal) decimal.Decimal {
	if !revenue.IsPositive() {
		return decimal.Zero
	}
	return profit.Div(revenue).Mul(hundred)
}

// AvgOrderValue is revenue per attributed order.
func AvgOrderValue(revenue, orders decimal.Decimal) decimal.Decimal {
	if !orders.IsPositive() {
		return decimal.Zero
	}
	return revenue.Div(orders)
}

// RevenuePerOrderTouched is revenue per distinct order touched.
func RevenuePerOrderTouched(revenue decimal.Decimal, distinctOrders int64) decimal.Decimal {
	if distinctOrders <= 0 {
		return decimal.Zero
	}
	return revenue.Div(decimal.NewFromInt(distinctOrders))
}

// Profit evaluates the shop's VAT setting once and applies it to every row
// of a response.
type Profit struct {
	IgnoreVAT bool
}

// ForShop returns the profit calculator configured for shop.
func ForShop(shop entity.Shop) Profit {
	return Profit{IgnoreVAT: shop.IgnoreVAT}
}

// BeforeAdSpend is revenue minus tax (unless VAT is ignored), COGS and payment fees.
func (p Profit) BeforeAdSpend(m entity.Metrics) decimal.Decimal {
	net := m.AttributedRevenue
	if !p.IgnoreVAT {
		net = net.Sub(m.AttributedTax)
	}
	return net.Sub(m.AttributedCOGS).Sub(m.AttributedPaymentFees)
}

// NetProfit is BeforeAdSpend minus ad spend.
func (p Profit) NetProfit(m entity.Metrics) decimal.Decimal {
	return p.BeforeAdSpend(m).Sub(m.AdSpend)
}

// Derive computes every ratio of m. Paid views get the spend ratios,
// organic views get the profit margin.
func (p Profit) Derive(m entity.Metrics, paid bool) entity.Derived {
	d := entity.Derived{
		NetProfit:              p.NetProfit(m),
		ROAS:                   decimal.Zero,
		FirstTimeCustomerROAS:  decimal.Zero,
		CPC:                    decimal.Zero,
		CTR:                    decimal.Zero,
		ProfitMargin:           decimal.Zero,
		AvgOrderValue:          AvgOrderValue(m.AttributedRevenue, m.AttributedOrders),
		RevenuePerOrderTouched: RevenuePerOrderTouched(m.AttributedRevenue, m.DistinctOrdersTouched),
	}
	if paid {
		d.ROAS = ROAS(m.AttributedRevenue, m.AdSpend)
		d.FirstTimeCustomerROAS = ROAS(m.FirstTimeCustomerRevenue, m.AdSpend)
		d.CPC = CPC(m.AdSpend, m.Clicks)
		d.CTR = CTR(m.Clicks, m.Impressions)
	} else {
		d.ProfitMargin = ProfitMargin(p.BeforeAdSpend(m), m.AttributedRevenue)
	}
	return d
}

// Totals wraps m with its derived ratios.
func (p Profit) Totals(m entity.Metrics, paid bool) entity.Totals {
	return entity.Totals{Metrics: m, Derived: p.Derive(m, paid)}
}

package formula

import (
	"testing"

	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func assertDec(t *testing.T, want float64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "want %v, got %s", want, got.String())
}

func TestNetProfit_VATSwitch(t *testing.T) {
	m := entity.Metrics{
		AttributedRevenue:     d(10000),
		AttributedTax:         d(800),
		AttributedCOGS:        d(3000),
		AttributedPaymentFees: d(200),
	}

	assertDec(t, 6800, Profit{IgnoreVAT: true}.NetProfit(m))
	assertDec(t, 6000, Profit{IgnoreVAT: false}.NetProfit(m))
	assertDec(t, 6800, ForShop(entity.Shop{IgnoreVAT: true}).NetProfit(m))
}

func TestNetProfit_SubtractsSpend(t *testing.T) {
	m := entity.Metrics{AttributedRevenue: d(500), AdSpend: d(120)}
	assertDec(t, 380, Profit{}.NetProfit(m))
	assertDec(t, 500, Profit{}.BeforeAdSpend(m))
}

func TestRatios_ZeroDenominators(t *testing.T) {
	assert.True(t, ROAS(d(100), decimal.Zero).IsZero())
	assert.True(t, ROAS(d(100), d(-5)).IsZero())
	assert.True(t, CPC(d(100), 0).IsZero())
	assert.True(t, CTR(10, 0).IsZero())
	assert.True(t, ProfitMargin(d(10), decimal.Zero).IsZero())
	assert.True(t, ProfitMargin(d(10), d(-50)).IsZero())
	assert.True(t, AvgOrderValue(d(10), decimal.Zero).IsZero())
	assert.True(t, RevenuePerOrderTouched(d(10), 0).IsZero())
}

func TestRatios(t *testing.T) {
	assertDec(t, 4, ROAS(d(400), d(100)))
	assertDec(t, 0.5, CPC(d(10), 20))
	assertDec(t, 2.5, CTR(25, 1000))
	assertDec(t, 25, ProfitMargin(d(50), d(200)))
	assertDec(t, 40, AvgOrderValue(d(100), d(2.5)))
	assertDec(t, 25, RevenuePerOrderTouched(d(100), 4))
}

func TestDerive_PaidAndOrganic(t *testing.T) {
	m := entity.Metrics{
		AttributedOrders:         d(4),
		AttributedRevenue:        d(400),
		DistinctOrdersTouched:    5,
		AttributedCOGS:           d(100),
		AdSpend:                  d(100),
		Impressions:              2000,
		Clicks:                   50,
		FirstTimeCustomerRevenue: d(200),
	}

	paid := Profit{IgnoreVAT: true}.Derive(m, true)
	assertDec(t, 200, paid.NetProfit)
	assertDec(t, 4, paid.ROAS)
	assertDec(t, 2, paid.FirstTimeCustomerROAS)
	assertDec(t, 2, paid.CPC)
	assertDec(t, 2.5, paid.CTR)
	assert.True(t, paid.ProfitMargin.IsZero())
	assertDec(t, 100, paid.AvgOrderValue)
	assertDec(t, 80, paid.RevenuePerOrderTouched)

	organic := Profit{IgnoreVAT: true}.Derive(m, false)
	assert.True(t, organic.ROAS.IsZero())
	assert.True(t, organic.CPC.IsZero())
	assertDec(t, 75, organic.ProfitMargin)
}

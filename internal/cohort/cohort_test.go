package cohort

import (
	"testing"
	"time"

	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func order(customer string, first, placed time.Time, revenue, net, cogs int64) entity.CohortOrder {
	return entity.CohortOrder{
		CustomerID:   customer,
		OrderID:      customer + placed.Format("0102"),
		PlacedAt:     placed,
		FirstOrderAt: first,
		Revenue:      decimal.NewFromInt(revenue),
		NetRevenue:   decimal.NewFromInt(net),
		COGS:         decimal.NewFromInt(cogs),
	}
}

func fixture() ([]entity.CohortOrder, []entity.SpendPoint) {
	jan5, jan20, feb3 := day(2024, 1, 5), day(2024, 1, 20), day(2024, 2, 3)
	orders := []entity.CohortOrder{
		order("c1", jan5, jan5, 100, 80, 30),
		order("c1", jan5, day(2024, 3, 2), 50, 40, 10),
		order("c2", jan20, jan20, 100, 80, 30),
		order("c2", jan20, day(2024, 1, 25), 20, 16, 6),
		order("c3", feb3, feb3, 200, 160, 60),
	}
	spend := []entity.SpendPoint{
		{Day: day(2023, 12, 31), AdSpend: decimal.NewFromInt(999)},
		{Day: day(2024, 1, 1), AdSpend: decimal.NewFromInt(100)},
		{Day: day(2024, 1, 15), AdSpend: decimal.NewFromInt(100)},
		{Day: day(2024, 2, 1), AdSpend: decimal.NewFromInt(50)},
	}
	return orders, spend
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func assertDec(t *testing.T, want decimal.Decimal, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, want.Equal(got), "%s: want %s got %s", field, want, got)
}

func TestBuild_Monthly(t *testing.T) {
	orders, spend := fixture()
	records, summary := Build(orders, spend, Params{Granularity: entity.CohortMonth})
	require.Len(t, records, 2)

	jan := records[0]
	assert.True(t, jan.CohortKey.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(2), jan.CohortSize)
	assertDec(t, dec(200), jan.CohortAdSpend, "cohort ad spend")
	assertDec(t, dec(100), jan.CACPerCustomer, "cac")
	require.Len(t, jan.Periods, 3)

	p0 := jan.Periods[0]
	assert.Equal(t, int64(2), p0.ActiveCustomers)
	assert.Equal(t, int64(3), p0.Orders)
	assertDec(t, dec(100), p0.RetentionRate, "retention p0")
	assertDec(t, dec(110), p0.CM1, "cm1")
	assertDec(t, dec(200), p0.AdSpendAllocated, "allocated")
	assertDec(t, dec(-90), p0.CM3, "cm3")
	assertDec(t, dec(110), p0.LTVToDate, "ltv p0")
	assertDec(t, dec(1.1), p0.LTVToCACRatio, "ltv/cac p0")
	assert.True(t, p0.IsPaybackAchieved)

	p1 := jan.Periods[1]
	assert.Equal(t, 1, p1.PeriodIndex)
	assert.Equal(t, int64(0), p1.ActiveCustomers)
	assertDec(t, decimal.Zero, p1.AdSpendAllocated, "allocated p1")
	assert.Equal(t, int64(2), p1.CumulativeActiveCustomers)
	assert.Equal(t, int64(3), p1.CumulativeOrders)

	p2 := jan.Periods[2]
	assert.Equal(t, int64(1), p2.ActiveCustomers)
	assertDec(t, dec(50), p2.RetentionRate, "retention p2")
	assertDec(t, dec(270), p2.CumulativeRevenue, "cumulative revenue")
	assertDec(t, dec(135), p2.LTVToDate, "ltv p2")
	assertDec(t, dec(108), p2.NetLTVToDate, "net ltv p2")
	assertDec(t, dec(1.35), p2.LTVToCACRatio, "ltv/cac p2")
	assertDec(t, dec(-30), p2.CumulativeCM3PerCustomer, "cm3 per customer")
	assert.Equal(t, int64(2), p2.CumulativeActiveCustomers)
	assert.Equal(t, int64(4), p2.CumulativeOrders)

	feb := records[1]
	assert.Equal(t, int64(1), feb.CohortSize)
	assertDec(t, dec(50), feb.CACPerCustomer, "feb cac")
	assertDec(t, dec(4), feb.Periods[0].LTVToCACRatio, "feb ltv/cac")

	assert.Equal(t, int64(3), summary.TotalCustomers)
	assertDec(t, dec(250), summary.TotalAdSpend, "total spend")
	f, _ := summary.AvgCAC.Float64()
	assert.InDelta(t, 83.333, f, 0.001)
	require.Len(t, summary.RetentionByPeriod, 3)
	assertDec(t, dec(100), summary.RetentionByPeriod[0], "retention 0")
	assertDec(t, decimal.Zero, summary.RetentionByPeriod[1], "retention 1")
	assertDec(t, dec(50), summary.RetentionByPeriod[2], "retention 2")
	require.NotNil(t, summary.BestCohort)
	assert.True(t, summary.BestCohort.Equal(feb.CohortKey))
}

func TestBuild_RetentionAtAcquisitionIsAlwaysFull(t *testing.T) {
	orders, spend := fixture()
	for _, g := range []entity.CohortGranularity{entity.CohortWeek, entity.CohortMonth, entity.CohortQuarter, entity.CohortYear} {
		records, _ := Build(orders, spend, Params{Granularity: g})
		for _, r := range records {
			assertDec(t, dec(100), r.Periods[0].RetentionRate, string(g))
		}
	}
}

func TestBuild_ZeroCAC(t *testing.T) {
	orders, _ := fixture()
	records, summary := Build(orders, nil, Params{Granularity: entity.CohortMonth})
	for _, r := range records {
		assertDec(t, decimal.Zero, r.CACPerCustomer, "cac")
		for _, p := range r.Periods {
			assertDec(t, decimal.Zero, p.LTVToCACRatio, "ltv/cac")
			assert.True(t, p.IsPaybackAchieved)
		}
	}
	assertDec(t, decimal.Zero, summary.AvgCAC, "avg cac")
}

func TestBuild_PaybackNotAchieved(t *testing.T) {
	first := day(2024, 1, 5)
	orders := []entity.CohortOrder{order("c1", first, first, 50, 40, 10)}
	spend := []entity.SpendPoint{{Day: first, AdSpend: decimal.NewFromInt(80)}}

	records, _ := Build(orders, spend, Params{Granularity: entity.CohortMonth})
	require.Len(t, records, 1)
	p := records[0].Periods[0]
	assert.False(t, p.IsPaybackAchieved)
	assertDec(t, dec(0.625), p.LTVToCACRatio, "ltv/cac")
}

func TestBuild_ExcludesNegativePeriods(t *testing.T) {
	first := day(2024, 2, 10)
	orders := []entity.CohortOrder{
		order("c1", first, first, 100, 100, 0),
		order("c1", first, day(2024, 1, 30), 999, 999, 0),
	}
	records, _ := Build(orders, nil, Params{Granularity: entity.CohortMonth})
	require.Len(t, records, 1)
	require.Len(t, records[0].Periods, 1)
	assertDec(t, dec(100), records[0].Periods[0].Revenue, "revenue")
}

func TestBuild_MaxPeriods(t *testing.T) {
	orders, spend := fixture()
	records, _ := Build(orders, spend, Params{Granularity: entity.CohortMonth, MaxPeriods: 2})
	require.Len(t, records[0].Periods, 1)
}

func TestBuild_EmptyCohortGuard(t *testing.T) {
	// the acquisition order was filtered out upstream
	orders := []entity.CohortOrder{order("c1", day(2024, 1, 5), day(2024, 2, 5), 100, 100, 0)}
	spend := []entity.SpendPoint{{Day: day(2024, 1, 5), AdSpend: decimal.NewFromInt(10)}}

	records, _ := Build(orders, spend, Params{Granularity: entity.CohortMonth})
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, int64(0), r.CohortSize)
	assertDec(t, decimal.Zero, r.CACPerCustomer, "cac")
	require.Len(t, r.Periods, 2)
	for _, p := range r.Periods {
		assertDec(t, decimal.Zero, p.RetentionRate, "retention")
		assertDec(t, decimal.Zero, p.LTVToDate, "ltv")
		assertDec(t, decimal.Zero, p.LTVToCACRatio, "ltv/cac")
	}
}

func TestBuild_Location(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Riga")
	require.NoError(t, err)
	// 23:30 UTC on Jan 31 is already February in Riga
	first := time.Date(2024, 1, 31, 23, 30, 0, 0, time.UTC)
	records, _ := Build([]entity.CohortOrder{order("c1", first, first, 1, 1, 0)}, nil,
		Params{Granularity: entity.CohortMonth, Location: loc})
	require.Len(t, records, 1)
	assert.Equal(t, time.February, records[0].CohortKey.Month())
}

func TestPeriodStart(t *testing.T) {
	wed := time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)
	sun := time.Date(2024, 3, 17, 15, 0, 0, 0, time.UTC)
	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	assert.True(t, PeriodStart(wed, entity.CohortWeek).Equal(monday))
	assert.True(t, PeriodStart(sun, entity.CohortWeek).Equal(monday))
	assert.True(t, PeriodStart(monday, entity.CohortWeek).Equal(monday))

	assert.True(t, PeriodStart(wed, entity.CohortMonth).Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, PeriodStart(time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC), entity.CohortQuarter).
		Equal(time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, PeriodStart(wed, entity.CohortYear).Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPeriodIndex(t *testing.T) {
	cases := []struct {
		g      entity.CohortGranularity
		cohort time.Time
		order  time.Time
		want   int
	}{
		{entity.CohortWeek, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), 2},
		{entity.CohortWeek, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), -1},
		{entity.CohortMonth, time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 3},
		{entity.CohortQuarter, time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 1},
		{entity.CohortYear, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 2},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, PeriodIndex(c.cohort, c.order, c.g), "%s %s", c.g, c.order)
	}
}

func TestDefaultMaxPeriods(t *testing.T) {
	assert.Equal(t, 52, DefaultMaxPeriods(entity.CohortWeek))
	assert.Equal(t, 12, DefaultMaxPeriods(entity.CohortMonth))
	assert.Equal(t, 4, DefaultMaxPeriods(entity.CohortQuarter))
	assert.Equal(t, 2, DefaultMaxPeriods(entity.CohortYear))
}

func TestPeriods(t *testing.T) {
	r := entity.TimeRange{
		From: time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	got := Periods(r, entity.CohortMonth)
	assert.True(t, got.From.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, got.To.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))

	got = Periods(r, entity.CohortQuarter)
	assert.True(t, got.From.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, got.To.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))

	assert.True(t, NextPeriod(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), entity.CohortWeek).
		Equal(time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)))
}

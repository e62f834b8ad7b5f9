package aggregate

import (
	"testing"
	"time"

	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	"github.com/jekabolt/grbpwr-attribution/internal/formula"
	"github.com/jekabolt/grbpwr-attribution/internal/timebucket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(channel, campaign string, revenue, spend float64) entity.MetricRow {
	return entity.MetricRow{
		Channel:      channel,
		CampaignName: campaign,
		Metrics: entity.Metrics{
			AttributedOrders:      decimal.NewFromInt(1),
			AttributedRevenue:     decimal.NewFromFloat(revenue),
			DistinctOrdersTouched: 1,
			AttributedTax:         decimal.NewFromFloat(revenue / 10),
			AdSpend:               decimal.NewFromFloat(spend),
			Impressions:           200,
			Clicks:                4,
		},
	}
}

func TestByChannel(t *testing.T) {
	a := New(formula.Profit{IgnoreVAT: true}, []string{"Meta"})
	rows := []entity.MetricRow{
		row("email", "newsletter", 50, 0),
		row("meta", "", 100, 40),
		row("google", "", 300, 100),
		row("meta", "", 60, 40),
		row("direct", "", 0, 0),
	}
	got := a.ByChannel(rows)
	require.Len(t, got, 4)

	assert.Equal(t, "google", got[0].Channel)
	assert.True(t, got[0].Paid, "spend makes a channel paid")
	assert.True(t, got[0].ROAS.Equal(decimal.NewFromInt(3)))

	assert.Equal(t, "meta", got[1].Channel)
	assert.True(t, got[1].Paid)
	assert.True(t, got[1].AttributedRevenue.Equal(decimal.NewFromInt(160)))
	assert.True(t, got[1].ROAS.Equal(decimal.NewFromInt(2)))
	assert.True(t, got[1].CPC.Equal(decimal.NewFromInt(10)))
	assert.True(t, got[1].CTR.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, int64(1), got[1].DistinctOrdersTouched)

	assert.Equal(t, "email", got[2].Channel)
	assert.False(t, got[2].Paid)
	assert.True(t, got[2].ROAS.IsZero())
	assert.True(t, got[2].ProfitMargin.Equal(decimal.NewFromInt(100)))

	assert.Equal(t, "direct", got[3].Channel)
	assert.True(t, got[3].ProfitMargin.IsZero())
}

func TestByChannel_PaidChannelWithoutSpend(t *testing.T) {
	a := New(formula.Profit{}, []string{"taboola"})
	got := a.ByChannel([]entity.MetricRow{row("taboola", "", 10, 0)})
	require.Len(t, got, 1)
	assert.True(t, got[0].Paid)
	assert.True(t, got[0].ROAS.IsZero())
	assert.True(t, got[0].CPC.IsZero())
}

func TestByCampaign(t *testing.T) {
	a := New(formula.Profit{}, []string{"meta"})
	rows := []entity.MetricRow{
		row("email", "newsletter", 50, 0),
		row("meta", "prospecting", 500, 100),
		row("email", "newsletter", 30, 0),
		row("email", "winback", 100, 0),
		row("organic", "", 10, 0),
	}
	got := a.ByCampaign(rows)
	require.Len(t, got, 3)
	assert.Equal(t, "winback", got[0].CampaignName)
	assert.Equal(t, "newsletter", got[1].CampaignName)
	assert.True(t, got[1].AttributedRevenue.Equal(decimal.NewFromInt(80)))
	// 80 revenue - 8 tax
	assert.True(t, got[1].ProfitMargin.Equal(decimal.NewFromInt(90)), got[1].ProfitMargin.String())
	assert.Equal(t, "organic", got[2].Channel)
}

func TestByCampaign_ChannelWithSpendIsPaid(t *testing.T) {
	a := New(formula.Profit{}, []string{"meta"})
	rows := []entity.MetricRow{
		row("tiktok", "spring", 40, 0),
		row("tiktok", "summer", 20, 15),
		row("email", "newsletter", 10, 0),
	}

	channels := a.ByChannel(rows)
	require.Len(t, channels, 2)
	assert.Equal(t, "tiktok", channels[0].Channel)
	assert.True(t, channels[0].Paid)

	got := a.ByCampaign(rows)
	require.Len(t, got, 1)
	assert.Equal(t, "email", got[0].Channel)
}

func TestTimeseries_FillsGaps(t *testing.T) {
	a := New(formula.Profit{}, nil)
	r := entity.TimeRange{
		From: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
	}
	day2 := row("meta", "", 100, 50)
	day2.Bucket = time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	day2b := row("meta", "", 20, 0)
	day2b.Bucket = time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	email := row("email", "", 5, 0)
	email.Bucket = time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)

	got := a.Timeseries([]entity.MetricRow{day2, email, day2b}, r, entity.MetricsGranularityDay, time.UTC)
	require.Len(t, got, 6)

	assert.Equal(t, "email", got[0].Channel)
	assert.True(t, got[0].AttributedRevenue.IsZero())
	assert.True(t, got[2].AttributedRevenue.Equal(decimal.NewFromInt(5)))

	meta := got[3:]
	assert.Equal(t, "meta", meta[0].Channel)
	assert.True(t, meta[0].AttributedRevenue.IsZero())
	assert.True(t, meta[1].AttributedRevenue.Equal(decimal.NewFromInt(120)))
	assert.True(t, meta[1].ROAS.Equal(decimal.NewFromFloat(2.4)))
	assert.True(t, meta[2].ROAS.IsZero())
	assert.True(t, meta[1].Date.Equal(day2.Bucket))
}

func TestTimeseries_ShopLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Riga")
	require.NoError(t, err)
	a := New(formula.Profit{}, nil)
	r := entity.TimeRange{
		From: time.Date(2024, 3, 10, 0, 0, 0, 0, loc),
		To:   time.Date(2024, 3, 11, 0, 0, 0, 0, loc),
	}
	// 22:00 UTC is midnight in Riga
	rw := row("meta", "", 10, 0)
	rw.Bucket = time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC)

	got := a.Timeseries([]entity.MetricRow{rw}, r, entity.MetricsGranularityHour, loc)
	require.Len(t, got, 24)
	assert.True(t, got[0].AttributedRevenue.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 0, got[0].Date.Hour())
}

func TestTimeseries_FallBackDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	a := New(formula.Profit{}, nil)
	sunday := time.Date(2024, 11, 3, 0, 0, 0, 0, ny)
	r := timebucket.Range(sunday, sunday, ny)

	edt := row("meta", "", 100, 0)
	edt.Bucket = time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC)
	est := row("meta", "", 50, 0)
	est.Bucket = time.Date(2024, 11, 3, 6, 30, 0, 0, time.UTC)

	got := a.Timeseries([]entity.MetricRow{edt, est}, r, entity.MetricsGranularityHour, ny)
	require.Len(t, got, 25)
	assert.True(t, got[1].AttributedRevenue.Equal(decimal.NewFromInt(100)), got[1].AttributedRevenue.String())
	assert.True(t, got[2].AttributedRevenue.Equal(decimal.NewFromInt(50)), got[2].AttributedRevenue.String())
	assert.Equal(t, got[1].Date.Hour(), got[2].Date.Hour())
}

func TestTotals(t *testing.T) {
	a := New(formula.Profit{}, nil)
	tot := a.Totals([]entity.MetricRow{row("meta", "", 100, 50), row("email", "", 100, 0)})
	assert.True(t, tot.AttributedRevenue.Equal(decimal.NewFromInt(200)))
	assert.True(t, tot.ROAS.Equal(decimal.NewFromInt(4)))

	// lower bound: the largest single row count
	assert.Equal(t, int64(1), tot.DistinctOrdersTouched)

	empty := a.Totals(nil)
	assert.True(t, empty.ROAS.IsZero())
	assert.True(t, empty.ProfitMargin.IsZero())
}

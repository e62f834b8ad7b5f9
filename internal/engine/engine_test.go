package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jekabolt/grbpwr-attribution/internal/dependency"
	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	gerr "github.com/jekabolt/grbpwr-attribution/internal/errors"
	"github.com/jekabolt/grbpwr-attribution/internal/query"
	"github.com/jekabolt/grbpwr-attribution/internal/source"
	"github.com/jekabolt/grbpwr-attribution/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMeta struct {
	mu          sync.Mutex
	resolved    int
	campaignIDs []int64
	campaigns   []entity.CampaignRecord
	adsErr      error
}

func (f *fakeMeta) ResolveShop(_ context.Context, account string) (*entity.Shop, error) {
	f.mu.Lock()
	f.resolved++
	f.mu.Unlock()
	if account != "acct" {
		return nil, fmt.Errorf("%w: account %q", gerr.ShopNotFound, account)
	}
	return &entity.Shop{ID: 1, Name: "grbpwr", Currency: "EUR", Timezone: "UTC"}, nil
}

func (f *fakeMeta) GetCampaignsByIds(_ context.Context, shopID int64, ids []int64) ([]entity.CampaignRecord, error) {
	f.mu.Lock()
	f.campaignIDs = ids
	f.mu.Unlock()
	return f.campaigns, nil
}

func (f *fakeMeta) GetAdSetsByIds(context.Context, []int64) ([]entity.AdSetRecord, error) {
	return nil, nil
}

func (f *fakeMeta) GetAdsByIds(context.Context, []int64) ([]entity.AdRecord, error) {
	return nil, f.adsErr
}

type failingSpend struct {
	*source.Events
}

func (failingSpend) SpendRows(context.Context, query.Spec) ([]entity.MetricRow, error) {
	return nil, fmt.Errorf("%w: warehouse: connection refused", gerr.UpstreamQueryFailed)
}

func id(v int64) *int64 { return &v }

type step struct {
	channel string
	paid    bool
	ad      int64
}

func orderPath(orderID string, orderAt time.Time, revenue int64, steps ...step) []entity.Touchpoint {
	anyPaid, lastPaid := false, -1
	for i, s := range steps {
		if s.paid {
			anyPaid, lastPaid = true, i
		}
	}
	out := make([]entity.Touchpoint, len(steps))
	for i, s := range steps {
		tp := entity.Touchpoint{
			ID:                     orderID + "-" + s.channel,
			ShopID:                 1,
			OrderID:                orderID,
			EventAt:                orderAt.Add(-time.Duration(len(steps)-i) * time.Hour),
			OrderAt:                orderAt,
			Channel:                s.channel,
			CampaignName:           s.channel + " campaign",
			IsFirstEventOverall:    i == 0,
			IsLastEventOverall:     i == len(steps)-1,
			IsLastPaidEventOverall: i == lastPaid,
			HasAnyPaidEvents:       anyPaid,
			IsPaidChannel:          s.paid,
			Windows:                []int{7, 28},
			OrderRevenue:           decimal.NewFromInt(revenue),
			OrderTax:               decimal.NewFromInt(revenue / 10),
			IsFirstOrder:           true,
		}
		if s.ad > 0 {
			tp.CampaignID, tp.AdSetID, tp.AdID = id(s.ad*100), id(s.ad*10), id(s.ad)
			tp.PlatformAdID = "p" + s.channel
		}
		out[i] = tp
	}
	return out
}

var orderAt = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func testEvents() *source.Events {
	var tps []entity.Touchpoint
	tps = append(tps, orderPath("o1", orderAt, 100, step{"meta", true, 1}, step{"organic", false, 0}, step{"google", true, 2})...)
	tps = append(tps, orderPath("o2", orderAt.AddDate(0, 0, 1), 50, step{"organic", false, 0}, step{"email", false, 0})...)

	cohortOrder := func(customer, order string, placed time.Time, revenue int64) entity.CohortOrder {
		return entity.CohortOrder{
			CustomerID: customer,
			OrderID:    order,
			PlacedAt:   placed,
			Revenue:    decimal.NewFromInt(revenue),
			NetRevenue: decimal.NewFromInt(revenue),
			COGS:       decimal.NewFromInt(revenue / 4),
		}
	}

	e := source.NewEvents()
	e.Load(1, source.Dataset{
		Touchpoints: tps,
		Spend: []entity.SpendRecord{
			{ShopID: 1, At: orderAt, Channel: "meta", CampaignID: id(100), AdSetID: id(10), AdID: id(1),
				Spend: decimal.NewFromInt(40), Impressions: 1000, Clicks: 20},
			{ShopID: 1, At: orderAt.AddDate(0, 0, 2), Channel: "tiktok", Spend: decimal.NewFromInt(10)},
			{ShopID: 1, At: orderAt.AddDate(0, 2, 0), Channel: "meta", Spend: decimal.NewFromInt(500)},
		},
		Orders: []entity.CohortOrder{
			cohortOrder("c1", "o-1", time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), 100),
			cohortOrder("c1", "o-2", time.Date(2024, 4, 5, 10, 0, 0, 0, time.UTC), 60),
			cohortOrder("c2", "o-3", time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC), 80),
		},
	})
	return e
}

func newService(rows dependency.RowSource, meta *fakeMeta) (*Service, *telemetry.Metrics) {
	m := telemetry.NewMetrics(prometheus.NewRegistry(), "test")
	return New(Config{PaidChannels: []string{"meta", "google"}}, rows, meta, m), m
}

func march() Request {
	return Request{
		Account:   "acct",
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestChannelPerformance(t *testing.T) {
	s, _ := newService(testEvents(), &fakeMeta{})
	res, err := s.ChannelPerformance(context.Background(), march())
	require.NoError(t, err)

	require.Len(t, res.Channels, 4)
	assert.Equal(t, "google", res.Channels[0].Channel)
	assert.True(t, res.Channels[0].AttributedRevenue.Equal(decimal.NewFromInt(100)))
	assert.True(t, res.Channels[0].Paid)
	assert.True(t, res.Channels[0].ROAS.IsZero())

	assert.Equal(t, "email", res.Channels[1].Channel)
	assert.False(t, res.Channels[1].Paid)

	assert.Equal(t, "meta", res.Channels[2].Channel)
	assert.True(t, res.Channels[2].AdSpend.Equal(decimal.NewFromInt(40)))
	assert.True(t, res.Channels[2].AttributedRevenue.IsZero())

	assert.Equal(t, "tiktok", res.Channels[3].Channel)
	assert.True(t, res.Channels[3].Paid)

	assert.True(t, res.Totals.AttributedRevenue.Equal(decimal.NewFromInt(150)))
	assert.True(t, res.Totals.AdSpend.Equal(decimal.NewFromInt(50)))

	env := res.Envelope
	assert.Equal(t, entity.LastPaidClick, env.AttributionModel)
	assert.Equal(t, entity.DataModeWindow, env.DataMode)
	assert.Equal(t, 28, env.WindowDays)
	assert.Equal(t, entity.MetricsGranularityDay, env.Granularity)
	assert.Equal(t, 4, env.TotalCounts["total_channels"])
	assert.NotEmpty(t, env.QueryID)
	assert.True(t, env.DateRange.To.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestChannelPerformance_ChannelFilter(t *testing.T) {
	s, _ := newService(testEvents(), &fakeMeta{})
	req := march()
	req.Model = "linear_all"
	req.Channels = []string{"organic"}

	res, err := s.ChannelPerformance(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Channels, 1)
	// 1/3 of o1 and 1/2 of o2
	f, _ := res.Channels[0].AttributedOrders.Float64()
	assert.InDelta(t, 1.0/3+0.5, f, 1e-9)
}

func TestCampaignPerformance_EventMode(t *testing.T) {
	s, _ := newService(testEvents(), &fakeMeta{})
	req := march()
	req.Model = "linear_all"
	req.Mode = entity.DataModeEvent

	res, err := s.CampaignPerformance(context.Background(), req)
	require.NoError(t, err)
	for _, c := range res.Campaigns {
		assert.NotEqual(t, "meta", c.Channel)
		assert.NotEqual(t, "google", c.Channel)
	}
	require.NotEmpty(t, res.Campaigns)
	assert.Equal(t, "organic campaign", res.Campaigns[0].CampaignName)
	f, _ := res.Campaigns[0].AttributedRevenue.Float64()
	assert.InDelta(t, 100.0/3+25, f, 1e-6)
	assert.Equal(t, 0, res.Envelope.WindowDays)
	assert.Equal(t, entity.DataModeEvent, res.Envelope.DataMode)
	assert.Equal(t, len(res.Campaigns), res.Envelope.TotalCounts["total_campaigns"])
}

func TestHierarchy(t *testing.T) {
	meta := &fakeMeta{
		campaigns: []entity.CampaignRecord{{ID: 100, ShopID: 1, PlatformID: "120", Channel: "meta", AccountID: "act_9", Name: "Spring drop", Active: true}},
		adsErr:    fmt.Errorf("%w: ads: timeout", gerr.MetadataFetchFailed),
	}
	s, m := newService(testEvents(), meta)
	req := march()
	req.Model = "linear_paid"

	res, err := s.Hierarchy(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Campaigns, 2)
	assert.ElementsMatch(t, []int64{100, 200}, meta.campaignIDs)

	spring := res.Campaigns[0]
	node := spring.Identity.(entity.Identified)
	assert.Equal(t, "Spring drop", node.Meta.Name)
	assert.Contains(t, node.Meta.URL, "act=9")
	assert.True(t, spring.Totals.AttributedRevenue.Equal(decimal.NewFromInt(50)))
	assert.True(t, spring.Totals.AdSpend.Equal(decimal.NewFromInt(40)))
	assert.True(t, spring.Totals.ROAS.Equal(decimal.NewFromFloat(1.25)), spring.Totals.ROAS.String())

	ad := spring.AdSets[0].Ads[0].Identity.(entity.Identified)
	assert.Equal(t, "Ad pmeta", ad.Meta.Name)

	other := res.Campaigns[1].Identity.(entity.Identified)
	assert.Equal(t, "Campaign 200", other.Meta.Name)

	assert.Equal(t, 2, res.Envelope.TotalCounts["total_campaigns"])
	assert.Equal(t, 2, res.Envelope.TotalCounts["total_ad_sets"])
	assert.Equal(t, 2, res.Envelope.TotalCounts["total_ads"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MetadataDegraded.WithLabelValues("ad")))
}

func TestTimeseries_SingleDayIsHourly(t *testing.T) {
	s, _ := newService(testEvents(), &fakeMeta{})
	req := march()
	req.StartDate = orderAt
	req.EndDate = orderAt
	req.Model = "last_click"

	res, err := s.Timeseries(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, entity.MetricsGranularityHour, res.Envelope.Granularity)
	require.Len(t, res.Points, 48)
	assert.Equal(t, 2, res.Envelope.TotalCounts["total_channels"])

	google := res.Points[:24]
	assert.Equal(t, "google", google[12].Channel)
	assert.True(t, google[12].AttributedRevenue.Equal(decimal.NewFromInt(100)))
	assert.True(t, google[11].AttributedRevenue.IsZero())

	meta := res.Points[24:]
	assert.True(t, meta[12].AdSpend.Equal(decimal.NewFromInt(40)))
}

func TestCohorts(t *testing.T) {
	s, _ := newService(testEvents(), &fakeMeta{})
	res, err := s.Cohorts(context.Background(), CohortRequest{
		Account:     "acct",
		StartDate:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Granularity: entity.CohortMonth,
	})
	require.NoError(t, err)
	require.Len(t, res.Cohorts, 1)

	c := res.Cohorts[0]
	assert.Equal(t, int64(2), c.CohortSize)
	assert.True(t, c.CohortAdSpend.Equal(decimal.NewFromInt(50)), c.CohortAdSpend.String())
	assert.True(t, c.CACPerCustomer.Equal(decimal.NewFromInt(25)))
	require.Len(t, c.Periods, 2)
	assert.True(t, c.Periods[1].RetentionRate.Equal(decimal.NewFromInt(50)))
	assert.True(t, c.Periods[1].LTVToDate.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, 1, res.Envelope.TotalCounts["total_cohorts"])
	assert.Equal(t, entity.CohortMonth, res.Granularity)
}

func TestErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown account", func(t *testing.T) {
		s, _ := newService(testEvents(), &fakeMeta{})
		req := march()
		req.Account = "nobody"
		_, err := s.ChannelPerformance(ctx, req)
		assert.ErrorIs(t, err, gerr.ShopNotFound)
	})

	t.Run("unknown model", func(t *testing.T) {
		meta := &fakeMeta{}
		s, _ := newService(testEvents(), meta)
		req := march()
		req.Model = "time_decay"
		_, err := s.ChannelPerformance(ctx, req)
		assert.ErrorIs(t, err, gerr.InvalidFilter)
		assert.Zero(t, meta.resolved)
	})

	t.Run("end before start", func(t *testing.T) {
		s, _ := newService(testEvents(), &fakeMeta{})
		req := march()
		req.StartDate, req.EndDate = req.EndDate, req.StartDate
		_, err := s.Hierarchy(ctx, req)
		assert.ErrorIs(t, err, gerr.InvalidFilter)
	})

	t.Run("unsupported window", func(t *testing.T) {
		s, _ := newService(testEvents(), &fakeMeta{})
		req := march()
		req.WindowDays = 3
		_, err := s.Timeseries(ctx, req)
		assert.ErrorIs(t, err, gerr.InvalidFilter)
	})

	t.Run("upstream failure", func(t *testing.T) {
		s, m := newService(failingSpend{testEvents()}, &fakeMeta{})
		_, err := s.ChannelPerformance(ctx, march())
		require.Error(t, err)
		assert.ErrorIs(t, err, gerr.UpstreamQueryFailed)
		assert.False(t, errors.Is(err, gerr.InvalidFilter))
		assert.Equal(t, 1, testutil.CollectAndCount(m.RequestLatency))
	})

	t.Run("cohort granularity", func(t *testing.T) {
		s, _ := newService(testEvents(), &fakeMeta{})
		_, err := s.Cohorts(ctx, CohortRequest{Account: "acct", StartDate: orderAt, Granularity: "fortnight"})
		assert.ErrorIs(t, err, gerr.InvalidFilter)
	})
}

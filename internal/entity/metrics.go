package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// AttributionModel names the rule used to credit an order to touchpoints.
type AttributionModel string

const (
	FirstClick    AttributionModel = "first_click"
	LastClick     AttributionModel = "last_click"
	LastPaidClick AttributionModel = "last_paid_click"
	LinearAll     AttributionModel = "linear_all"
	LinearPaid    AttributionModel = "linear_paid"
)

// DataMode selects the event source attribution is computed from.
type DataMode string

const (
	// DataModeWindow reads precomputed per-order attribution keyed by a lookback window.
	DataModeWindow DataMode = "window"
	// DataModeEvent reads raw event facts filtered by event time only.
	DataModeEvent DataMode = "event"
)

// MetricsGranularity controls time bucket size for time series (hour, day).
type MetricsGranularity string

const (
	MetricsGranularityHour MetricsGranularity = "hour"
	MetricsGranularityDay  MetricsGranularity = "day"
)

type TimeRange struct {
	From time.Time
	To   time.Time
}

// Metrics holds the additive measures shared by flat rows and hierarchy nodes.
type Metrics struct {
	AttributedOrders         decimal.Decimal
	AttributedRevenue        decimal.Decimal
	DistinctOrdersTouched    int64
	AttributedCOGS           decimal.Decimal
	AttributedPaymentFees    decimal.Decimal
	AttributedTax            decimal.Decimal
	AdSpend                  decimal.Decimal
	Impressions              int64
	Clicks                   int64
	Conversions              decimal.Decimal
	FirstTimeCustomerOrders  decimal.Decimal
	FirstTimeCustomerRevenue decimal.Decimal
}

// Add folds o into m. Every measure is summed except DistinctOrdersTouched,
// which keeps the maximum: one order touching several children is still one order.
func (m *Metrics) Add(o Metrics) {
	m.AttributedOrders = m.AttributedOrders.Add(o.AttributedOrders)
	m.AttributedRevenue = m.AttributedRevenue.Add(o.AttributedRevenue)
	if o.DistinctOrdersTouched > m.DistinctOrdersTouched {
		m.DistinctOrdersTouched = o.DistinctOrdersTouched
	}
	m.AttributedCOGS = m.AttributedCOGS.Add(o.AttributedCOGS)
	m.AttributedPaymentFees = m.AttributedPaymentFees.Add(o.AttributedPaymentFees)
	m.AttributedTax = m.AttributedTax.Add(o.AttributedTax)
	m.AdSpend = m.AdSpend.Add(o.AdSpend)
	m.Impressions += o.Impressions
	m.Clicks += o.Clicks
	m.Conversions = m.Conversions.Add(o.Conversions)
	m.FirstTimeCustomerOrders = m.FirstTimeCustomerOrders.Add(o.FirstTimeCustomerOrders)
	m.FirstTimeCustomerRevenue = m.FirstTimeCustomerRevenue.Add(o.FirstTimeCustomerRevenue)
}

// HasAttribution reports whether any order credit is present. Rows that only
// carry delivery measures come from the spend side alone.
func (m Metrics) HasAttribution() bool {
	return m.DistinctOrdersTouched > 0 ||
		!m.AttributedOrders.IsZero() ||
		!m.AttributedRevenue.IsZero()
}

// MetricRow is one normalized row produced by the row source: a channel, an
// ad-level touchpoint bucket or a non-paid campaign, optionally per time bucket.
// Nil ids mean the row is malformed; 0 means unassigned.
type MetricRow struct {
	Bucket             time.Time
	Channel            string
	CampaignName       string
	CampaignID         *int64
	AdSetID            *int64
	AdID               *int64
	PlatformCampaignID string
	PlatformAdSetID    string
	PlatformAdID       string
	Metrics
}

// Derived holds ratios computed from accumulated Metrics.
type Derived struct {
	NetProfit              decimal.Decimal
	ROAS                   decimal.Decimal
	FirstTimeCustomerROAS  decimal.Decimal
	CPC                    decimal.Decimal
	CTR                    decimal.Decimal
	ProfitMargin           decimal.Decimal
	AvgOrderValue          decimal.Decimal
	RevenuePerOrderTouched decimal.Decimal
}

// Totals is the accumulator carried by every aggregated entity.
type Totals struct {
	Metrics
	Derived
}

// ChannelPerformance is one row of the flat channel view.
type ChannelPerformance struct {
	Channel string
	Paid    bool
	Totals
}

// CampaignPerformance is one row of the flat non-paid campaign view.
type CampaignPerformance struct {
	Channel      string
	CampaignName string
	Totals
}

// TimeSeriesPoint is a channel's totals for a single time bucket.
type TimeSeriesPoint struct {
	Date    time.Time
	Channel string
	Totals
}

// Envelope describes the query that produced a response.
type Envelope struct {
	Shop             Shop
	DateRange        TimeRange
	AttributionModel AttributionModel
	DataMode         DataMode
	WindowDays       int
	Granularity      MetricsGranularity
	TotalCounts      map[string]int
	QueryID          string
	QueryTimestamp   time.Time
}

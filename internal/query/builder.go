package query

import (
	"fmt"
	"strings"

	"github.com/jekabolt/grbpwr-attribution/internal/attribution"
	"github.com/jekabolt/grbpwr-attribution/internal/entity"
)

// Plan is a parametrized statement ready for a store client. Params are keyed
// by bare name; the dialect decides the placeholder syntax.
type Plan struct {
	SQL    string
	Params map[string]any
}

// Builder renders specs into plans for one backing store.
type Builder interface {
	Attribution(s Spec) (Plan, error)
	Spend(s Spec) (Plan, error)
	CohortOrders(s CohortSpec) (Plan, error)
	CohortSpend(s CohortSpec) (Plan, error)
}

// Tables names the analytical tables read by the plans.
type Tables struct {
	// Touchpoints holds precomputed per-order attribution paths, one row per
	// touchpoint and lookback window.
	Touchpoints string `mapstructure:"touchpoints"`
	// Events holds raw touchpoint events without window expansion.
	Events      string `mapstructure:"events"`
	SpendDaily  string `mapstructure:"spend_daily"`
	SpendHourly string `mapstructure:"spend_hourly"`
	Orders      string `mapstructure:"orders"`
	OrderLines  string `mapstructure:"order_lines"`
}

// DefaultTables returns the table names used when none are configured.
func DefaultTables() Tables {
	return Tables{
		Touchpoints: "attribution_touchpoints",
		Events:      "touchpoint_events",
		SpendDaily:  "ad_spend_daily",
		SpendHourly: "ad_spend_hourly",
		Orders:      "orders",
		OrderLines:  "order_lines",
	}
}

func (t Tables) withDefaults() Tables {
	d := DefaultTables()
	if t.Touchpoints == "" {
		t.Touchpoints = d.Touchpoints
	}
	if t.Events == "" {
		t.Events = d.Events
	}
	if t.SpendDaily == "" {
		t.SpendDaily = d.SpendDaily
	}
	if t.SpendHourly == "" {
		t.SpendHourly = d.SpendHourly
	}
	if t.Orders == "" {
		t.Orders = d.Orders
	}
	if t.OrderLines == "" {
		t.OrderLines = d.OrderLines
	}
	return t
}

// dialect is the store-specific part of the SQL.
type dialect struct {
	name string
	// param renders a named placeholder.
	param func(name string) string
	// in renders a membership test against a slice parameter.
	in func(col, name string) string
	// trunc truncates a timestamp column to the granularity in the param-named timezone.
	trunc func(col, unit, tz string) string
	// table quotes a table name, optionally prefixed by a dataset.
	table func(name string) string
}

// SQLBuilder renders plans for one dialect.
type SQLBuilder struct {
	d      dialect
	tables Tables
}

// Shared output columns. Row decoders in the source package rely on them.
const (
	ColBucket                   = "bucket"
	ColChannel                  = "channel"
	ColCampaignName             = "campaign_name"
	ColCampaignID               = "campaign_id"
	ColAdSetID                  = "ad_set_id"
	ColAdID                     = "ad_id"
	ColPlatformCampaignID       = "platform_campaign_id"
	ColPlatformAdSetID          = "platform_ad_set_id"
	ColPlatformAdID             = "platform_ad_id"
	ColAttributedOrders         = "attributed_orders"
	ColAttributedRevenue        = "attributed_revenue"
	ColDistinctOrdersTouched    = "distinct_orders_touched"
	ColAttributedCOGS           = "attributed_cogs"
	ColAttributedPaymentFees    = "attributed_payment_fees"
	ColAttributedTax            = "attributed_tax"
	ColFirstTimeCustomerOrders  = "first_time_customer_orders"
	ColFirstTimeCustomerRevenue = "first_time_customer_revenue"
	ColAdSpend                  = "ad_spend"
	ColImpressions              = "impressions"
	ColClicks                   = "clicks"
	ColConversions              = "conversions"
)

func granularityUnit(g entity.MetricsGranularity) string {
	if g == entity.MetricsGranularityHour {
		return "HOUR"
	}
	return "DAY"
}

// keyColumns are the grouping columns of a level, excluding the bucket.
func keyColumns(l Level) []string {
	switch l {
	case LevelCampaign:
		return []string{ColChannel, ColCampaignName}
	case LevelAd:
		return []string{ColChannel, ColCampaignID, ColAdSetID, ColAdID}
	default:
		return []string{ColChannel}
	}
}

// Predicate renders the model's event-selection rule as a boolean SQL expression.
func Predicate(r attribution.Rule) string {
	primary := flagExpr(r.Flag)
	if !r.HasFallback() {
		return primary
	}
	fallback := flagExpr(r.Fallback)
	if r.FallbackAll {
		fallback = "TRUE"
	}
	return fmt.Sprintf("((%[1]s AND %[2]s) OR (NOT %[1]s AND %[3]s))",
		attribution.FlagHasAnyPaidEvents, primary, fallback)
}

func flagExpr(f attribution.Flag) string {
	if f == attribution.FlagNone {
		return "TRUE"
	}
	return string(f)
}

// Attribution renders the weighted attribution query. Weights are assigned
// over the selected events of each order before the channel filter applies.
func (b *SQLBuilder) Attribution(s Spec) (Plan, error) {
	if err := s.Validate(); err != nil {
		return Plan{}, err
	}
	p := b.d.param
	params := map[string]any{
		"shopId": s.ShopID,
		"from":   s.Range.From,
		"to":     s.Range.To,
	}

	table := b.tables.Events
	timeCol := "event_at"
	windowFilter := ""
	if s.Mode == entity.DataModeWindow {
		table = b.tables.Touchpoints
		timeCol = "order_at"
		windowFilter = fmt.Sprintf("\n\t\tAND window_days = %s", p("windowDays"))
		params["windowDays"] = s.WindowDays
	}

	keys := keyColumns(s.Level)
	sel := make([]string, 0, len(keys)+4)
	group := make([]string, 0, len(keys)+1)
	if s.Timeseries {
		params["tz"] = s.location().String()
		sel = append(sel, fmt.Sprintf("%s AS %s", b.d.trunc(timeCol, granularityUnit(s.Granularity), "tz"), ColBucket))
		group = append(group, ColBucket)
	}
	sel = append(sel, keys...)
	group = append(group, keys...)
	if s.Level == LevelAd {
		sel = append(sel,
			fmt.Sprintf("ANY_VALUE(%[1]s) AS %[1]s", ColPlatformCampaignID),
			fmt.Sprintf("ANY_VALUE(%[1]s) AS %[1]s", ColPlatformAdSetID),
			fmt.Sprintf("ANY_VALUE(%[1]s) AS %[1]s", ColPlatformAdID),
		)
	}

	var outer []string
	if len(s.Channels) > 0 {
		outer = append(outer, b.d.in(ColChannel, "channels"))
		params["channels"] = s.Channels
	}
	if len(s.CampaignIDs) > 0 {
		outer = append(outer, b.d.in(ColCampaignID, "campaignIds"))
		params["campaignIds"] = s.CampaignIDs
	}
	if s.Level == LevelAd {
		outer = append(outer, ColCampaignID+" IS NOT NULL", ColAdSetID+" IS NOT NULL", ColAdID+" IS NOT NULL")
	}
	where := ""
	if len(outer) > 0 {
		where = "\nWHERE " + strings.Join(outer, "\n\tAND ")
	}

	sql := fmt.Sprintf(`WITH selected AS (
	SELECT t.*, 1.0 / COUNT(*) OVER (PARTITION BY t.order_id) AS weight
	FROM %[1]s t
	WHERE t.shop_id = %[2]s
		AND t.%[3]s >= %[4]s
		AND t.%[3]s < %[5]s%[6]s
		AND %[7]s
)
SELECT
	%[8]s,
	SUM(weight) AS %[9]s,
	SUM(weight * order_revenue) AS %[10]s,
	COUNT(DISTINCT order_id) AS %[11]s,
	SUM(weight * order_cogs) AS %[12]s,
	SUM(weight * order_payment_fees) AS %[13]s,
	SUM(weight * order_tax) AS %[14]s,
	SUM(CASE WHEN is_first_order THEN weight ELSE 0 END) AS %[15]s,
	SUM(CASE WHEN is_first_order THEN weight * order_revenue ELSE 0 END) AS %[16]s
FROM selected%[17]s
GROUP BY %[18]s
ORDER BY %[18]s`,
		b.d.table(table), p("shopId"), timeCol, p("from"), p("to"), windowFilter, Predicate(s.Model.Rule),
		strings.Join(sel, ",\n\t"),
		ColAttributedOrders, ColAttributedRevenue, ColDistinctOrdersTouched,
		ColAttributedCOGS, ColAttributedPaymentFees, ColAttributedTax,
		ColFirstTimeCustomerOrders, ColFirstTimeCustomerRevenue,
		where, strings.Join(group, ", "),
	)
	return Plan{SQL: sql, Params: params}, nil
}

// Spend renders the ad-spend query for the same key as Attribution.
func (b *SQLBuilder) Spend(s Spec) (Plan, error) {
	if err := s.Validate(); err != nil {
		return Plan{}, err
	}
	p := b.d.param
	params := map[string]any{
		"shopId": s.ShopID,
		"from":   s.Range.From,
		"to":     s.Range.To,
	}

	table := b.tables.SpendDaily
	if s.Timeseries && s.Granularity == entity.MetricsGranularityHour {
		table = b.tables.SpendHourly
	}

	keys := keyColumns(s.Level)
	sel := make([]string, 0, len(keys)+4)
	group := make([]string, 0, len(keys)+1)
	if s.Timeseries {
		params["tz"] = s.location().String()
		sel = append(sel, fmt.Sprintf("%s AS %s", b.d.trunc("period_start", granularityUnit(s.Granularity), "tz"), ColBucket))
		group = append(group, ColBucket)
	}
	sel = append(sel, keys...)
	group = append(group, keys...)
	if s.Level == LevelAd {
		sel = append(sel,
			fmt.Sprintf("ANY_VALUE(%[1]s) AS %[1]s", ColPlatformCampaignID),
			fmt.Sprintf("ANY_VALUE(%[1]s) AS %[1]s", ColPlatformAdSetID),
			fmt.Sprintf("ANY_VALUE(%[1]s) AS %[1]s", ColPlatformAdID),
		)
	}

	filters := []string{
		"shop_id = " + p("shopId"),
		"period_start >= " + p("from"),
		"period_start < " + p("to"),
	}
	if len(s.Channels) > 0 {
		filters = append(filters, b.d.in(ColChannel, "channels"))
		params["channels"] = s.Channels
	}
	if len(s.CampaignIDs) > 0 {
		filters = append(filters, b.d.in(ColCampaignID, "campaignIds"))
		params["campaignIds"] = s.CampaignIDs
	}

	sql := fmt.Sprintf(`SELECT
	%[1]s,
	SUM(spend) AS %[2]s,
	SUM(impressions) AS %[3]s,
	SUM(clicks) AS %[4]s,
	SUM(conversions) AS %[5]s
FROM %[6]s
WHERE %[7]s
GROUP BY %[8]s
ORDER BY %[8]s`,
		strings.Join(sel, ",\n\t"),
		ColAdSpend, ColImpressions, ColClicks, ColConversions,
		b.d.table(table), strings.Join(filters, "\n\tAND "), strings.Join(group, ", "),
	)
	return Plan{SQL: sql, Params: params}, nil
}

// CohortOrders renders the order facts of customers whose first order falls in the range.
func (b *SQLBuilder) CohortOrders(s CohortSpec) (Plan, error) {
	if err := s.Validate(); err != nil {
		return Plan{}, err
	}
	p := b.d.param
	params := map[string]any{
		"shopId": s.ShopID,
		"from":   s.Range.From,
		"to":     s.Range.To,
	}
	productFilter := ""
	if len(s.ProductIDs) > 0 {
		productFilter = fmt.Sprintf("\n\t\tAND order_id IN (SELECT order_id FROM %s WHERE %s)",
			b.d.table(b.tables.OrderLines), b.d.in("product_id", "productIds"))
		params["productIds"] = s.ProductIDs
	}

	sql := fmt.Sprintf(`WITH scoped AS (
	SELECT customer_id, order_id, placed_at, revenue, net_revenue, cogs
	FROM %[1]s
	WHERE shop_id = %[2]s%[3]s
),
firsts AS (
	SELECT customer_id, MIN(placed_at) AS first_order_at
	FROM scoped
	GROUP BY customer_id
)
SELECT
	o.customer_id AS customer_id,
	o.order_id AS order_id,
	o.placed_at AS placed_at,
	f.first_order_at AS first_order_at,
	o.revenue AS revenue,
	o.net_revenue AS net_revenue,
	o.cogs AS cogs
FROM scoped o
JOIN firsts f ON f.customer_id = o.customer_id
WHERE f.first_order_at >= %[4]s
	AND f.first_order_at < %[5]s
ORDER BY o.placed_at`,
		b.d.table(b.tables.Orders), p("shopId"), productFilter, p("from"), p("to"),
	)
	return Plan{SQL: sql, Params: params}, nil
}

// CohortSpend renders total daily ad spend over the range.
func (b *SQLBuilder) CohortSpend(s CohortSpec) (Plan, error) {
	if err := s.Validate(); err != nil {
		return Plan{}, err
	}
	p := b.d.param
	params := map[string]any{
		"shopId": s.ShopID,
		"from":   s.Range.From,
		"to":     s.Range.To,
		"tz":     s.location().String(),
	}
	sql := fmt.Sprintf(`SELECT
	%[1]s AS day,
	SUM(spend) AS ad_spend
FROM %[2]s
WHERE shop_id = %[3]s
	AND period_start >= %[4]s
	AND period_start < %[5]s
GROUP BY day
ORDER BY day`,
		b.d.trunc("period_start", "DAY", "tz"), b.d.table(b.tables.SpendDaily), p("shopId"), p("from"), p("to"),
	)
	return Plan{SQL: sql, Params: params}, nil
}

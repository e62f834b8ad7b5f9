package dto

import (
	"time"

	"github.com/jekabolt/grbpwr-attribution/internal/attribution"
	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	"github.com/shopspring/decimal"
)

// NotSet is the display name of unassigned hierarchy nodes.
const NotSet = "Not Set"

const dateLayout = "2006-01-02"

type Metrics struct {
	AttributedOrders         float64 `json:"attributed_orders"`
	AttributedRevenue        float64 `json:"attributed_revenue"`
	DistinctOrdersTouched    int64   `json:"distinct_orders_touched"`
	AttributedCOGS           float64 `json:"attributed_cogs"`
	AttributedPaymentFees    float64 `json:"attributed_payment_fees"`
	AttributedTax            float64 `json:"attributed_tax"`
	AdSpend                  float64 `json:"ad_spend"`
	Impressions              int64   `json:"impressions"`
	Clicks                   int64   `json:"clicks"`
	Conversions              float64 `json:"conversions"`
	FirstTimeCustomerOrders  float64 `json:"first_time_customer_orders"`
	FirstTimeCustomerRevenue float64 `json:"first_time_customer_revenue"`
	NetProfit                float64 `json:"net_profit"`
	ROAS                     float64 `json:"roas"`
	FirstTimeCustomerROAS    float64 `json:"first_time_customer_roas"`
	CPC                      float64 `json:"cpc"`
	CTR                      float64 `json:"ctr"`
	ProfitMargin             float64 `json:"profit_margin_pct"`
	AvgOrderValue            float64 `json:"avg_order_value"`
	RevenuePerOrderTouched   float64 `json:"revenue_per_order_touched"`
}

type Shop struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Timezone string `json:"timezone"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Envelope struct {
	Shop             Shop      `json:"shop"`
	DateRange        DateRange `json:"date_range"`
	AttributionModel string    `json:"attribution_model,omitempty"`
	DataMode         string    `json:"data_mode,omitempty"`
	WindowDays       int       `json:"window_days,omitempty"`
	Granularity      string    `json:"granularity,omitempty"`
	TotalChannels    *int      `json:"total_channels,omitempty"`
	TotalCampaigns   *int      `json:"total_campaigns,omitempty"`
	TotalAdSets      *int      `json:"total_ad_sets,omitempty"`
	TotalAds         *int      `json:"total_ads,omitempty"`
	TotalPoints      *int      `json:"total_points,omitempty"`
	TotalCohorts     *int      `json:"total_cohorts,omitempty"`
	QueryID          string    `json:"query_id"`
	QueryTimestamp   time.Time `json:"query_timestamp"`
}

type Channel struct {
	Channel string `json:"channel"`
	Paid    bool   `json:"paid"`
	Metrics
}

type Campaign struct {
	Channel      string `json:"channel"`
	CampaignName string `json:"campaign_name"`
	Metrics
}

type TimeSeriesPoint struct {
	Date    time.Time `json:"date"`
	Channel string    `json:"channel"`
	Metrics
}

// Node is a campaign, ad set or ad of the hierarchy view.
type Node struct {
	ID         int64    `json:"id"`
	PlatformID string   `json:"platform_id,omitempty"`
	Name       string   `json:"name"`
	Active     bool     `json:"active"`
	Budget     *float64 `json:"budget,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	URL        string   `json:"url,omitempty"`
	Channel    string   `json:"channel,omitempty"`
	AccountID  string   `json:"account_id,omitempty"`
	Metrics    Metrics  `json:"metrics"`
	Children   []Node   `json:"children,omitempty"`
}

type ChannelsResponse struct {
	Meta     Envelope  `json:"meta"`
	Channels []Channel `json:"channels"`
	Totals   Metrics   `json:"totals"`
}

type CampaignsResponse struct {
	Meta      Envelope   `json:"meta"`
	Campaigns []Campaign `json:"campaigns"`
	Totals    Metrics    `json:"totals"`
}

type HierarchyResponse struct {
	Meta      Envelope `json:"meta"`
	Campaigns []Node   `json:"campaigns"`
}

type TimeseriesResponse struct {
	Meta   Envelope          `json:"meta"`
	Points []TimeSeriesPoint `json:"points"`
}

type AttributionModel struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Default bool   `json:"default"`
}

func float(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func ConvertTotals(t entity.Totals) Metrics {
	return Metrics{
		AttributedOrders:         float(t.AttributedOrders),
		AttributedRevenue:        float(t.AttributedRevenue),
		DistinctOrdersTouched:    t.DistinctOrdersTouched,
		AttributedCOGS:           float(t.AttributedCOGS),
		AttributedPaymentFees:    float(t.AttributedPaymentFees),
		AttributedTax:            float(t.AttributedTax),
		AdSpend:                  float(t.AdSpend),
		Impressions:              t.Impressions,
		Clicks:                   t.Clicks,
		Conversions:              float(t.Conversions),
		FirstTimeCustomerOrders:  float(t.FirstTimeCustomerOrders),
		FirstTimeCustomerRevenue: float(t.FirstTimeCustomerRevenue),
		NetProfit:                float(t.NetProfit),
		ROAS:                     float(t.ROAS),
		FirstTimeCustomerROAS:    float(t.FirstTimeCustomerROAS),
		CPC:                      float(t.CPC),
		CTR:                      float(t.CTR),
		ProfitMargin:             float(t.ProfitMargin),
		AvgOrderValue:            float(t.AvgOrderValue),
		RevenuePerOrderTouched:   float(t.RevenuePerOrderTouched),
	}
}

// ConvertEnvelope renders the envelope; the date range end is shown inclusive.
func ConvertEnvelope(e entity.Envelope) Envelope {
	out := Envelope{
		Shop: Shop{
			ID:       e.Shop.ID,
			Name:     e.Shop.Name,
			Currency: e.Shop.Currency,
			Timezone: e.Shop.Location().String(),
		},
		AttributionModel: string(e.AttributionModel),
		DataMode:         string(e.DataMode),
		WindowDays:       e.WindowDays,
		Granularity:      string(e.Granularity),
		QueryID:          e.QueryID,
		QueryTimestamp:   e.QueryTimestamp,
	}
	if !e.DateRange.From.IsZero() {
		out.DateRange = DateRange{
			Start: e.DateRange.From.Format(dateLayout),
			End:   e.DateRange.To.AddDate(0, 0, -1).Format(dateLayout),
		}
	}
	for k, v := range e.TotalCounts {
		v := v
		switch k {
		case "total_channels":
			out.TotalChannels = &v
		case "total_campaigns":
			out.TotalCampaigns = &v
		case "total_ad_sets":
			out.TotalAdSets = &v
		case "total_ads":
			out.TotalAds = &v
		case "total_points":
			out.TotalPoints = &v
		case "total_cohorts":
			out.TotalCohorts = &v
		}
	}
	return out
}

func ConvertChannels(cs []entity.ChannelPerformance) []Channel {
	out := make([]Channel, 0, len(cs))
	for _, c := range cs {
		out = append(out, Channel{Channel: c.Channel, Paid: c.Paid, Metrics: ConvertTotals(c.Totals)})
	}
	return out
}

func ConvertCampaigns(cs []entity.CampaignPerformance) []Campaign {
	out := make([]Campaign, 0, len(cs))
	for _, c := range cs {
		out = append(out, Campaign{Channel: c.Channel, CampaignName: c.CampaignName, Metrics: ConvertTotals(c.Totals)})
	}
	return out
}

func ConvertTimeSeries(ps []entity.TimeSeriesPoint) []TimeSeriesPoint {
	out := make([]TimeSeriesPoint, 0, len(ps))
	for _, p := range ps {
		out = append(out, TimeSeriesPoint{Date: p.Date, Channel: p.Channel, Metrics: ConvertTotals(p.Totals)})
	}
	return out
}

// identityNode renders an identity. Unassigned nodes are named NotSet and
// carry no id, platform id, URL or budget.
func identityNode(id entity.Identity, t entity.Totals) Node {
	n := Node{Metrics: ConvertTotals(t)}
	ident, ok := id.(entity.Identified)
	if !ok {
		n.Name = NotSet
		return n
	}
	n.ID = ident.ID
	n.PlatformID = ident.PlatformID
	n.Name = ident.Meta.Name
	n.Active = ident.Meta.Active
	n.ImageURL = ident.Meta.ImageURL
	n.URL = ident.Meta.URL
	if ident.Meta.Budget.Valid {
		b := float(ident.Meta.Budget.Decimal)
		n.Budget = &b
	}
	return n
}

func ConvertHierarchy(cs []*entity.Campaign) []Node {
	out := make([]Node, 0, len(cs))
	for _, c := range cs {
		cn := identityNode(c.Identity, c.Totals)
		cn.Channel = c.Channel
		if _, ok := c.Identity.(entity.Identified); ok {
			cn.AccountID = c.AccountID
		}
		for _, s := range c.AdSets {
			sn := identityNode(s.Identity, s.Totals)
			for _, a := range s.Ads {
				sn.Children = append(sn.Children, identityNode(a.Identity, a.Totals))
			}
			cn.Children = append(cn.Children, sn)
		}
		out = append(out, cn)
	}
	return out
}

func ConvertModels(defs []attribution.Definition, def entity.AttributionModel) []AttributionModel {
	out := make([]AttributionModel, 0, len(defs))
	for _, d := range defs {
		out = append(out, AttributionModel{Name: string(d.Model), Label: d.Label, Default: d.Model == def})
	}
	return out
}

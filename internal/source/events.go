package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jekabolt/grbpwr-attribution/internal/attribution"
	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	gerr "github.com/jekabolt/grbpwr-attribution/internal/errors"
	"github.com/jekabolt/grbpwr-attribution/internal/query"
	"github.com/jekabolt/grbpwr-attribution/internal/timebucket"
	"github.com/shopspring/decimal"
)

// Dataset is the raw facts of one shop.
type Dataset struct {
	Touchpoints []entity.Touchpoint
	Spend       []entity.SpendRecord
	Orders      []entity.CohortOrder
	// OrderProducts lists the product ids of each order, for product-filtered cohorts.
	OrderProducts map[string][]int64
}

// Events evaluates attribution in memory over raw touchpoint facts with the
// same semantics as the SQL plans.
type Events struct {
	mu    sync.RWMutex
	shops map[int64]Dataset
}

// NewEvents returns an empty in-memory source.
func NewEvents() *Events {
	return &Events{shops: make(map[int64]Dataset)}
}

// Load replaces the facts of a shop.
func (e *Events) Load(shopID int64, ds Dataset) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shops[shopID] = ds
}

func (e *Events) dataset(shopID int64) Dataset {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.shops[shopID]
}

func inRange(t time.Time, r entity.TimeRange) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

type group struct {
	row    entity.MetricRow
	orders map[string]struct{}
}

func groupKey(s query.Spec, bucket time.Time, channel, campaignName string, campaign, adSet, ad *int64) rowKey {
	k := rowKey{channel: channel}
	if s.Timeseries {
		k.bucket = bucket.UnixNano()
	}
	switch s.Level {
	case query.LevelCampaign:
		k.campaignName = campaignName
	case query.LevelAd:
		k.campaign, k.adSet, k.ad = keyID(campaign), keyID(adSet), keyID(ad)
	}
	return k
}

func (e *Events) bucket(s query.Spec, t time.Time) time.Time {
	if !s.Timeseries {
		return time.Time{}
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return timebucket.Truncate(t.In(loc), s.Granularity)
}

func matchesFilters(s query.Spec, channel string, campaignID *int64) bool {
	if len(s.Channels) > 0 && !slices.Contains(s.Channels, channel) {
		return false
	}
	if len(s.CampaignIDs) > 0 && (campaignID == nil || !slices.Contains(s.CampaignIDs, *campaignID)) {
		return false
	}
	return true
}

// AttributionRows implements dependency.RowSource.
func (e *Events) AttributionRows(ctx context.Context, s query.Spec) ([]entity.MetricRow, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: events: %w", gerr.UpstreamQueryFailed, err)
	}

	var scoped []entity.Touchpoint
	for _, tp := range e.dataset(s.ShopID).Touchpoints {
		if s.Mode == entity.DataModeWindow {
			if tp.InWindow(s.WindowDays) && inRange(tp.OrderAt, s.Range) {
				scoped = append(scoped, tp)
			}
			continue
		}
		if inRange(tp.EventAt, s.Range) {
			scoped = append(scoped, tp)
		}
	}

	weights := attribution.Weights(s.Model, scoped)

	groups := make(map[rowKey]*group)
	var order []rowKey
	for i, tp := range scoped {
		w := weights[i]
		if w.IsZero() || !matchesFilters(s, tp.Channel, tp.CampaignID) {
			continue
		}
		if s.Level == query.LevelAd && (tp.CampaignID == nil || tp.AdSetID == nil || tp.AdID == nil) {
			continue
		}
		at := tp.EventAt
		if s.Mode == entity.DataModeWindow {
			at = tp.OrderAt
		}
		b := e.bucket(s, at)
		k := groupKey(s, b, tp.Channel, tp.CampaignName, tp.CampaignID, tp.AdSetID, tp.AdID)
		g, ok := groups[k]
		if !ok {
			g = &group{row: keyRow(s, b, tp.Channel, tp.CampaignName, tp.CampaignID, tp.AdSetID, tp.AdID), orders: map[string]struct{}{}}
			groups[k] = g
			order = append(order, k)
		}
		if s.Level == query.LevelAd && g.row.PlatformAdID == "" {
			g.row.PlatformCampaignID = tp.PlatformCampaignID
			g.row.PlatformAdSetID = tp.PlatformAdSetID
			g.row.PlatformAdID = tp.PlatformAdID
		}
		m := &g.row.Metrics
		m.AttributedOrders = m.AttributedOrders.Add(w)
		m.AttributedRevenue = m.AttributedRevenue.Add(w.Mul(tp.OrderRevenue))
		m.AttributedCOGS = m.AttributedCOGS.Add(w.Mul(tp.OrderCOGS))
		m.AttributedPaymentFees = m.AttributedPaymentFees.Add(w.Mul(tp.OrderPaymentFees))
		m.AttributedTax = m.AttributedTax.Add(w.Mul(tp.OrderTax))
		if tp.IsFirstOrder {
			m.FirstTimeCustomerOrders = m.FirstTimeCustomerOrders.Add(w)
			m.FirstTimeCustomerRevenue = m.FirstTimeCustomerRevenue.Add(w.Mul(tp.OrderRevenue))
		}
		g.orders[tp.OrderID] = struct{}{}
		m.DistinctOrdersTouched = int64(len(g.orders))
	}

	return collect(groups, order), nil
}

// SpendRows implements dependency.RowSource.
func (e *Events) SpendRows(ctx context.Context, s query.Spec) ([]entity.MetricRow, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: events: %w", gerr.UpstreamQueryFailed, err)
	}

	groups := make(map[rowKey]*group)
	var order []rowKey
	for _, sr := range e.dataset(s.ShopID).Spend {
		if !inRange(sr.At, s.Range) || !matchesFilters(s, sr.Channel, sr.CampaignID) {
			continue
		}
		b := e.bucket(s, sr.At)
		k := groupKey(s, b, sr.Channel, sr.CampaignName, sr.CampaignID, sr.AdSetID, sr.AdID)
		g, ok := groups[k]
		if !ok {
			g = &group{row: keyRow(s, b, sr.Channel, sr.CampaignName, sr.CampaignID, sr.AdSetID, sr.AdID)}
			groups[k] = g
			order = append(order, k)
		}
		if s.Level == query.LevelAd && g.row.PlatformAdID == "" {
			g.row.PlatformCampaignID = sr.PlatformCampaignID
			g.row.PlatformAdSetID = sr.PlatformAdSetID
			g.row.PlatformAdID = sr.PlatformAdID
		}
		m := &g.row.Metrics
		m.AdSpend = m.AdSpend.Add(sr.Spend)
		m.Impressions += sr.Impressions
		m.Clicks += sr.Clicks
		m.Conversions = m.Conversions.Add(sr.Conversions)
	}
	return collect(groups, order), nil
}

func keyRow(s query.Spec, bucket time.Time, channel, campaignName string, campaign, adSet, ad *int64) entity.MetricRow {
	row := entity.MetricRow{Bucket: bucket, Channel: channel}
	switch s.Level {
	case query.LevelCampaign:
		row.CampaignName = campaignName
	case query.LevelAd:
		row.CampaignID, row.AdSetID, row.AdID = copyID(campaign), copyID(adSet), copyID(ad)
	}
	return row
}

func copyID(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// collect returns the groups sorted by bucket, then in first-seen order.
func collect(groups map[rowKey]*group, order []rowKey) []entity.MetricRow {
	out := make([]entity.MetricRow, 0, len(order))
	for _, k := range order {
		out = append(out, groups[k].row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Bucket.Before(out[j].Bucket)
	})
	return out
}

// CohortOrders implements dependency.RowSource.
func (e *Events) CohortOrders(ctx context.Context, s query.CohortSpec) ([]entity.CohortOrder, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	ds := e.dataset(s.ShopID)

	var scoped []entity.CohortOrder
	for _, o := range ds.Orders {
		if len(s.ProductIDs) > 0 && !containsAnyInt(s.ProductIDs, ds.OrderProducts[o.OrderID]) {
			continue
		}
		scoped = append(scoped, o)
	}

	firsts := make(map[string]time.Time)
	for _, o := range scoped {
		if f, ok := firsts[o.CustomerID]; !ok || o.PlacedAt.Before(f) {
			firsts[o.CustomerID] = o.PlacedAt
		}
	}

	var out []entity.CohortOrder
	for _, o := range scoped {
		first := firsts[o.CustomerID]
		if !inRange(first, s.Range) {
			continue
		}
		o.FirstOrderAt = first
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	return out, nil
}

// CohortSpend implements dependency.RowSource.
func (e *Events) CohortSpend(ctx context.Context, s query.CohortSpec) ([]entity.SpendPoint, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}

	byDay := make(map[int64]*entity.SpendPoint)
	var days []int64
	for _, sr := range e.dataset(s.ShopID).Spend {
		if !inRange(sr.At, s.Range) {
			continue
		}
		day := timebucket.Truncate(sr.At.In(loc), entity.MetricsGranularityDay)
		p, ok := byDay[day.Unix()]
		if !ok {
			p = &entity.SpendPoint{Day: day, AdSpend: decimal.Zero}
			byDay[day.Unix()] = p
			days = append(days, day.Unix())
		}
		p.AdSpend = p.AdSpend.Add(sr.Spend)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	out := make([]entity.SpendPoint, 0, len(days))
	for _, d := range days {
		out = append(out, *byDay[d])
	}
	return out, nil
}

func containsAnyInt(list, values []int64) bool {
	for _, v := range values {
		if slices.Contains(list, v) {
			return true
		}
	}
	return false
}

// EventsConfig enables the in-memory source backed by a JSON fixture file.
type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Fixture string `mapstructure:"fixture"`
}

type eventsFixture struct {
	Shops map[int64]Dataset `json:"shops"`
}

// LoadEvents reads a fixture of the form {"shops": {"<shop id>": Dataset}}.
func LoadEvents(path string) (*Events, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read events fixture: %w", err)
	}
	var f eventsFixture
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("can't decode events fixture %s: %w", path, err)
	}
	e := NewEvents()
	for shopID, ds := range f.Shops {
		e.Load(shopID, ds)
	}
	return e, nil
}

// Close releases nothing; it lets Events stand in for the remote sources.
func (e *Events) Close() error {
	return nil
}

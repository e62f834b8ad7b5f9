// Package engine answers attribution requests: it resolves the shop, fetches
// attribution and spend rows concurrently and shapes them into views.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jekabolt/grbpwr-attribution/internal/aggregate"
	"github.com/jekabolt/grbpwr-attribution/internal/attribution"
	"github.com/jekabolt/grbpwr-attribution/internal/cohort"
	"github.com/jekabolt/grbpwr-attribution/internal/dependency"
	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	"github.com/jekabolt/grbpwr-attribution/internal/formula"
	"github.com/jekabolt/grbpwr-attribution/internal/hierarchy"
	"github.com/jekabolt/grbpwr-attribution/internal/query"
	"github.com/jekabolt/grbpwr-attribution/internal/source"
	"github.com/jekabolt/grbpwr-attribution/internal/telemetry"
	"github.com/jekabolt/grbpwr-attribution/internal/timebucket"
	"golang.org/x/sync/errgroup"
)

// Config holds engine defaults.
type Config struct {
	DefaultModel entity.AttributionModel `mapstructure:"default_model"`
	DefaultMode  entity.DataMode         `mapstructure:"default_mode"`
	WindowDays   int                     `mapstructure:"window_days"`
	// PaidChannels are treated as paid even without ad spend in the range.
	PaidChannels []string      `mapstructure:"paid_channels"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.DefaultModel == "" {
		c.DefaultModel = entity.LastPaidClick
	}
	if c.DefaultMode == "" {
		c.DefaultMode = entity.DataModeWindow
	}
	if c.WindowDays == 0 {
		c.WindowDays = query.DefaultWindowDays
	}
	return c
}

// Service is the attribution engine.
type Service struct {
	c       Config
	rows    dependency.RowSource
	meta    dependency.MetadataReader
	metrics *telemetry.Metrics
}

// New creates a new engine.
func New(c Config, rows dependency.RowSource, meta dependency.MetadataReader, m *telemetry.Metrics) *Service {
	if m == nil {
		m = telemetry.DefaultMetrics
	}
	return &Service{
		c:       c.withDefaults(),
		rows:    rows,
		meta:    meta,
		metrics: m,
	}
}

// ChannelResult is the flat channel view.
type ChannelResult struct {
	Envelope entity.Envelope
	Channels []entity.ChannelPerformance
	Totals   entity.Totals
}

// CampaignResult is the flat non-paid campaign view.
type CampaignResult struct {
	Envelope  entity.Envelope
	Campaigns []entity.CampaignPerformance
	Totals    entity.Totals
}

// HierarchyResult is the campaign → ad set → ad tree.
type HierarchyResult struct {
	Envelope  entity.Envelope
	Campaigns []*entity.Campaign
}

// TimeseriesResult is the bucketed channel view.
type TimeseriesResult struct {
	Envelope entity.Envelope
	Points   []entity.TimeSeriesPoint
}

// CohortResult is the cohort retention report.
type CohortResult struct {
	Envelope    entity.Envelope
	Granularity entity.CohortGranularity
	Cohorts     []entity.CohortRecord
	Summary     entity.CohortSummary
}

// prepared is a resolved request.
type prepared struct {
	shop   *entity.Shop
	spec   query.Spec
	profit formula.Profit
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.c.Timeout > 0 {
		return context.WithTimeout(ctx, s.c.Timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Service) prepare(ctx context.Context, req Request, level query.Level, timeseries bool) (*prepared, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	modelName := req.Model
	if modelName == "" {
		modelName = string(s.c.DefaultModel)
	}
	def, err := attribution.Parse(modelName)
	if err != nil {
		return nil, err
	}

	shop, err := s.meta.ResolveShop(ctx, req.Account)
	if err != nil {
		return nil, err
	}

	loc := shop.Location()
	start, end := dateRange(req.StartDate, req.EndDate, loc)

	mode := req.Mode
	if mode == "" {
		mode = s.c.DefaultMode
	}
	window := 0
	if mode == entity.DataModeWindow {
		window = req.WindowDays
		if window == 0 {
			window = s.c.WindowDays
		}
	}

	spec := query.Spec{
		ShopID:      shop.ID,
		Range:       timebucket.Range(start, end, loc),
		Location:    loc,
		Model:       def,
		Mode:        mode,
		WindowDays:  window,
		Granularity: timebucket.Select(start, end),
		Level:       level,
		Channels:    req.Channels,
		CampaignIDs: req.CampaignIDs,
		Timeseries:  timeseries,
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &prepared{shop: shop, spec: spec, profit: formula.ForShop(*shop)}, nil
}

// fetch reads attribution and spend rows concurrently and joins them.
// Any upstream failure fails the request.
func (s *Service) fetch(ctx context.Context, spec query.Spec) ([]entity.MetricRow, error) {
	var attributed, spend []entity.MetricRow
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		attributed, err = s.rows.AttributionRows(ctx, spec)
		return err
	})
	g.Go(func() error {
		var err error
		spend, err = s.rows.SpendRows(ctx, spec)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return source.Join(attributed, spend), nil
}

func envelope(p *prepared, counts map[string]int) entity.Envelope {
	return entity.Envelope{
		Shop:             *p.shop,
		DateRange:        p.spec.Range,
		AttributionModel: p.spec.Model.Model,
		DataMode:         p.spec.Mode,
		WindowDays:       p.spec.WindowDays,
		Granularity:      p.spec.Granularity,
		TotalCounts:      counts,
		QueryID:          uuid.NewString(),
		QueryTimestamp:   time.Now().UTC(),
	}
}

func (s *Service) aggregator(p *prepared) aggregate.Aggregator {
	return aggregate.New(p.profit, s.c.PaidChannels)
}

// ChannelPerformance returns attributed metrics per channel.
func (s *Service) ChannelPerformance(ctx context.Context, req Request) (res *ChannelResult, err error) {
	defer s.record(ctx, "channel_performance", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.prepare(ctx, req, query.LevelChannel, false)
	if err != nil {
		return nil, err
	}
	rows, err := s.fetch(ctx, p.spec)
	if err != nil {
		return nil, err
	}
	agg := s.aggregator(p)
	channels := agg.ByChannel(rows)
	return &ChannelResult{
		Envelope: envelope(p, map[string]int{"total_channels": len(channels)}),
		Channels: channels,
		Totals:   agg.Totals(rows),
	}, nil
}

// CampaignPerformance returns attributed metrics per non-paid campaign.
func (s *Service) CampaignPerformance(ctx context.Context, req Request) (res *CampaignResult, err error) {
	defer s.record(ctx, "campaign_performance", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.prepare(ctx, req, query.LevelCampaign, false)
	if err != nil {
		return nil, err
	}
	rows, err := s.fetch(ctx, p.spec)
	if err != nil {
		return nil, err
	}
	agg := s.aggregator(p)
	campaigns := agg.ByCampaign(rows)
	return &CampaignResult{
		Envelope:  envelope(p, map[string]int{"total_campaigns": len(campaigns)}),
		Campaigns: campaigns,
		Totals:    agg.Totals(rows),
	}, nil
}

// Timeseries returns attributed metrics per channel and time bucket.
func (s *Service) Timeseries(ctx context.Context, req Request) (res *TimeseriesResult, err error) {
	defer s.record(ctx, "timeseries", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.prepare(ctx, req, query.LevelChannel, true)
	if err != nil {
		return nil, err
	}
	rows, err := s.fetch(ctx, p.spec)
	if err != nil {
		return nil, err
	}
	points := s.aggregator(p).Timeseries(rows, p.spec.Range, p.spec.Granularity, p.spec.Location)
	channels := make(map[string]struct{})
	for _, pt := range points {
		channels[pt.Channel] = struct{}{}
	}
	return &TimeseriesResult{
		Envelope: envelope(p, map[string]int{
			"total_channels": len(channels),
			"total_points":   len(points),
		}),
		Points: points,
	}, nil
}

// Hierarchy returns the campaign tree of paid ads, enriched with metadata.
// Metadata failures are logged and fall back to default names.
func (s *Service) Hierarchy(ctx context.Context, req Request) (res *HierarchyResult, err error) {
	defer s.record(ctx, "hierarchy", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.prepare(ctx, req, query.LevelAd, false)
	if err != nil {
		return nil, err
	}
	rows, err := s.fetch(ctx, p.spec)
	if err != nil {
		return nil, err
	}
	meta := s.metadata(ctx, p.shop.ID, rows)
	tree := hierarchy.Merge(rows, meta, p.profit)

	adSets, ads := 0, 0
	for _, c := range tree {
		adSets += len(c.AdSets)
		for _, as := range c.AdSets {
			ads += len(as.Ads)
		}
	}
	return &HierarchyResult{
		Envelope: envelope(p, map[string]int{
			"total_campaigns": len(tree),
			"total_ad_sets":   adSets,
			"total_ads":       ads,
		}),
		Campaigns: tree,
	}, nil
}

// metadata loads the records of every assigned id in rows. The three lookups
// run concurrently and a failing one leaves its level empty.
func (s *Service) metadata(ctx context.Context, shopID int64, rows []entity.MetricRow) entity.MetadataIndex {
	campaignIDs, adSetIDs, adIDs := idSets(rows)

	var (
		campaigns []entity.CampaignRecord
		adSets    []entity.AdSetRecord
		ads       []entity.AdRecord
		g         errgroup.Group
	)
	g.Go(func() error {
		var err error
		if campaigns, err = s.meta.GetCampaignsByIds(ctx, shopID, campaignIDs); err != nil {
			s.degraded(ctx, "campaign", err)
			campaigns = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if adSets, err = s.meta.GetAdSetsByIds(ctx, adSetIDs); err != nil {
			s.degraded(ctx, "ad_set", err)
			adSets = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if ads, err = s.meta.GetAdsByIds(ctx, adIDs); err != nil {
			s.degraded(ctx, "ad", err)
			ads = nil
		}
		return nil
	})
	_ = g.Wait()
	return entity.NewMetadataIndex(campaigns, adSets, ads)
}

func (s *Service) degraded(ctx context.Context, level string, err error) {
	slog.Default().WarnContext(ctx, "metadata fetch failed, using fallback names",
		slog.String("level", level),
		slog.String("err", err.Error()),
	)
	s.metrics.RecordMetadataDegraded(level)
}

func idSets(rows []entity.MetricRow) (campaigns, adSets, ads []int64) {
	seen := make(map[[2]int64]struct{})
	add := func(level int64, id *int64, out *[]int64) {
		if id == nil || *id == 0 {
			return
		}
		k := [2]int64{level, *id}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		*out = append(*out, *id)
	}
	for _, r := range rows {
		add(0, r.CampaignID, &campaigns)
		add(1, r.AdSetID, &adSets)
		add(2, r.AdID, &ads)
	}
	return campaigns, adSets, ads
}

// Cohorts returns the retention report of customers acquired in the range.
func (s *Service) Cohorts(ctx context.Context, req CohortRequest) (res *CohortResult, err error) {
	defer s.record(ctx, "cohorts", time.Now(), &err)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	shop, err := s.meta.ResolveShop(ctx, req.Account)
	if err != nil {
		return nil, err
	}
	loc := shop.Location()
	start, end := dateRange(req.StartDate, req.EndDate, loc)
	spec := query.CohortSpec{
		ShopID:      shop.ID,
		Range:       timebucket.Range(start, end, loc),
		Location:    loc,
		Granularity: req.Granularity,
		ProductIDs:  req.ProductIDs,
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	// cohorts are charged the spend of their whole acquisition period
	spendSpec := spec
	spendSpec.Range = cohort.Periods(spec.Range, req.Granularity)

	var (
		orders []entity.CohortOrder
		spend  []entity.SpendPoint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.rows.CohortOrders(gctx, spec)
		return err
	})
	g.Go(func() error {
		var err error
		spend, err = s.rows.CohortSpend(gctx, spendSpec)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records, summary := cohort.Build(orders, spend, cohort.Params{
		Granularity: req.Granularity,
		MaxPeriods:  req.MaxPeriods,
		Location:    loc,
	})
	return &CohortResult{
		Envelope: entity.Envelope{
			Shop:           *shop,
			DateRange:      spec.Range,
			TotalCounts:    map[string]int{"total_cohorts": len(records)},
			QueryID:        uuid.NewString(),
			QueryTimestamp: time.Now().UTC(),
		},
		Granularity: req.Granularity,
		Cohorts:     records,
		Summary:     summary,
	}, nil
}

func (s *Service) record(ctx context.Context, operation string, started time.Time, err *error) {
	s.metrics.RecordRequest(operation, started, *err)
	if *err != nil {
		slog.Default().ErrorContext(ctx, "attribution request failed",
			slog.String("operation", operation),
			slog.String("err", (*err).Error()),
		)
	}
}

// Models lists the supported attribution models.
func (s *Service) Models() []attribution.Definition {
	return attribution.Models()
}

// DefaultModel is the model used when a request names none.
func (s *Service) DefaultModel() entity.AttributionModel {
	return s.c.DefaultModel
}

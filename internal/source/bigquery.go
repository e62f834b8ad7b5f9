package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	gerr "github.com/jekabolt/grbpwr-attribution/internal/errors"
	"github.com/jekabolt/grbpwr-attribution/internal/query"
	"github.com/jekabolt/grbpwr-attribution/internal/telemetry"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BigQueryConfig holds BigQuery row source configuration.
type BigQueryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Dataset   string `mapstructure:"dataset"`
	Location  string `mapstructure:"location"`
	// CredentialsJSON is a path to a service account JSON file, or raw JSON.
	CredentialsJSON string        `mapstructure:"credentials_json"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	Tables          query.Tables  `mapstructure:"tables"`
}

// BigQuery reads metric rows from BigQuery.
type BigQuery struct {
	client  *bigquery.Client
	builder query.Builder
	timeout time.Duration
	metrics *telemetry.Metrics
}

// NewBigQuery creates a BigQuery row source.
func NewBigQuery(ctx context.Context, cfg *BigQueryConfig, m *telemetry.Metrics) (*BigQuery, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("bigquery project_id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		jsonBytes := []byte(cfg.CredentialsJSON)
		if jsonBytes[0] == '{' {
			opts = append(opts, option.WithCredentialsJSON(jsonBytes))
		} else {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsJSON))
		}
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery client: %w", err)
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}

	slog.Default().InfoContext(ctx, "bigquery row source initialized",
		slog.String("project_id", cfg.ProjectID),
		slog.String("dataset", cfg.Dataset))

	return &BigQuery{
		client:  client,
		builder: query.BigQuery(cfg.Tables, cfg.Dataset),
		timeout: cfg.QueryTimeout,
		metrics: m,
	}, nil
}

// Close closes the underlying client.
func (b *BigQuery) Close() error {
	return b.client.Close()
}

type bqMetricRow struct {
	Bucket                   bigquery.NullTimestamp `bigquery:"bucket"`
	Channel                  bigquery.NullString    `bigquery:"channel"`
	CampaignName             bigquery.NullString    `bigquery:"campaign_name"`
	CampaignID               bigquery.NullInt64     `bigquery:"campaign_id"`
	AdSetID                  bigquery.NullInt64     `bigquery:"ad_set_id"`
	AdID                     bigquery.NullInt64     `bigquery:"ad_id"`
	PlatformCampaignID       bigquery.NullString    `bigquery:"platform_campaign_id"`
	PlatformAdSetID          bigquery.NullString    `bigquery:"platform_ad_set_id"`
	PlatformAdID             bigquery.NullString    `bigquery:"platform_ad_id"`
	AttributedOrders         bigquery.NullFloat64   `bigquery:"attributed_orders"`
	AttributedRevenue        bigquery.NullFloat64   `bigquery:"attributed_revenue"`
	DistinctOrdersTouched    bigquery.NullInt64     `bigquery:"distinct_orders_touched"`
	AttributedCOGS           bigquery.NullFloat64   `bigquery:"attributed_cogs"`
	AttributedPaymentFees    bigquery.NullFloat64   `bigquery:"attributed_payment_fees"`
	AttributedTax            bigquery.NullFloat64   `bigquery:"attributed_tax"`
	FirstTimeCustomerOrders  bigquery.NullFloat64   `bigquery:"first_time_customer_orders"`
	FirstTimeCustomerRevenue bigquery.NullFloat64   `bigquery:"first_time_customer_revenue"`
	AdSpend                  bigquery.NullFloat64   `bigquery:"ad_spend"`
	Impressions              bigquery.NullInt64     `bigquery:"impressions"`
	Clicks                   bigquery.NullInt64     `bigquery:"clicks"`
	Conversions              bigquery.NullFloat64   `bigquery:"conversions"`
}

func (r bqMetricRow) toEntity() entity.MetricRow {
	row := entity.MetricRow{
		Channel:            r.Channel.StringVal,
		CampaignName:       r.CampaignName.StringVal,
		CampaignID:         bqID(r.CampaignID),
		AdSetID:            bqID(r.AdSetID),
		AdID:               bqID(r.AdID),
		PlatformCampaignID: r.PlatformCampaignID.StringVal,
		PlatformAdSetID:    r.PlatformAdSetID.StringVal,
		PlatformAdID:       r.PlatformAdID.StringVal,
		Metrics: entity.Metrics{
			AttributedOrders:         bqDecimal(r.AttributedOrders),
			AttributedRevenue:        bqDecimal(r.AttributedRevenue),
			DistinctOrdersTouched:    r.DistinctOrdersTouched.Int64,
			AttributedCOGS:           bqDecimal(r.AttributedCOGS),
			AttributedPaymentFees:    bqDecimal(r.AttributedPaymentFees),
			AttributedTax:            bqDecimal(r.AttributedTax),
			FirstTimeCustomerOrders:  bqDecimal(r.FirstTimeCustomerOrders),
			FirstTimeCustomerRevenue: bqDecimal(r.FirstTimeCustomerRevenue),
			AdSpend:                  bqDecimal(r.AdSpend),
			Impressions:              r.Impressions.Int64,
			Clicks:                   r.Clicks.Int64,
			Conversions:              bqDecimal(r.Conversions),
		},
	}
	if r.Bucket.Valid {
		row.Bucket = r.Bucket.Timestamp
	}
	return row
}

type bqCohortOrder struct {
	CustomerID   string               `bigquery:"customer_id"`
	OrderID      string               `bigquery:"order_id"`
	PlacedAt     time.Time            `bigquery:"placed_at"`
	FirstOrderAt time.Time            `bigquery:"first_order_at"`
	Revenue      bigquery.NullFloat64 `bigquery:"revenue"`
	NetRevenue   bigquery.NullFloat64 `bigquery:"net_revenue"`
	COGS         bigquery.NullFloat64 `bigquery:"cogs"`
}

type bqSpendPoint struct {
	Day     time.Time            `bigquery:"day"`
	AdSpend bigquery.NullFloat64 `bigquery:"ad_spend"`
}

func bqID(v bigquery.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func bqDecimal(v bigquery.NullFloat64) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v.Float64)
}

// AttributionRows implements dependency.RowSource.
func (b *BigQuery) AttributionRows(ctx context.Context, s query.Spec) ([]entity.MetricRow, error) {
	plan, err := b.builder.Attribution(s)
	if err != nil {
		return nil, err
	}
	return b.metricRows(ctx, "attribution", plan)
}

// SpendRows implements dependency.RowSource.
func (b *BigQuery) SpendRows(ctx context.Context, s query.Spec) ([]entity.MetricRow, error) {
	plan, err := b.builder.Spend(s)
	if err != nil {
		return nil, err
	}
	return b.metricRows(ctx, "spend", plan)
}

func (b *BigQuery) metricRows(ctx context.Context, kind string, plan query.Plan) ([]entity.MetricRow, error) {
	rows, err := readBigQuery[bqMetricRow](ctx, b, kind, plan)
	if err != nil {
		return nil, err
	}
	out := make([]entity.MetricRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntity())
	}
	return out, nil
}

// CohortOrders implements dependency.RowSource.
func (b *BigQuery) CohortOrders(ctx context.Context, s query.CohortSpec) ([]entity.CohortOrder, error) {
	plan, err := b.builder.CohortOrders(s)
	if err != nil {
		return nil, err
	}
	rows, err := readBigQuery[bqCohortOrder](ctx, b, "cohort_orders", plan)
	if err != nil {
		return nil, err
	}
	out := make([]entity.CohortOrder, 0, len(rows))
	for _, r := range rows {
		out = append(out, entity.CohortOrder{
			CustomerID:   r.CustomerID,
			OrderID:      r.OrderID,
			PlacedAt:     r.PlacedAt,
			FirstOrderAt: r.FirstOrderAt,
			Revenue:      bqDecimal(r.Revenue),
			NetRevenue:   bqDecimal(r.NetRevenue),
			COGS:         bqDecimal(r.COGS),
		})
	}
	return out, nil
}

// CohortSpend implements dependency.RowSource.
func (b *BigQuery) CohortSpend(ctx context.Context, s query.CohortSpec) ([]entity.SpendPoint, error) {
	plan, err := b.builder.CohortSpend(s)
	if err != nil {
		return nil, err
	}
	rows, err := readBigQuery[bqSpendPoint](ctx, b, "cohort_spend", plan)
	if err != nil {
		return nil, err
	}
	out := make([]entity.SpendPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, entity.SpendPoint{Day: r.Day, AdSpend: bqDecimal(r.AdSpend)})
	}
	return out, nil
}

func readBigQuery[T any](ctx context.Context, b *BigQuery, kind string, plan query.Plan) (out []T, err error) {
	started := time.Now()
	defer func() {
		b.metrics.RecordQuery("bigquery", kind, started, len(out), err)
	}()

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	q := b.client.Query(plan.SQL)
	q.Parameters = parameters(plan.Params)

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: bigquery %s: %w", gerr.UpstreamQueryFailed, kind, err)
	}
	for {
		var row T
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: bigquery %s: %w", gerr.UpstreamQueryFailed, kind, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// parameters converts plan params into BigQuery named parameters, sorted by name.
func parameters(params map[string]any) []bigquery.QueryParameter {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]bigquery.QueryParameter, 0, len(names))
	for _, name := range names {
		out = append(out, bigquery.QueryParameter{Name: name, Value: params[name]})
	}
	return out
}

package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	gerr "github.com/jekabolt/grbpwr-attribution/internal/errors"
	"github.com/jekabolt/grbpwr-attribution/internal/query"
	"github.com/jekabolt/grbpwr-attribution/internal/store"
	"github.com/jekabolt/grbpwr-attribution/internal/telemetry"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/shopspring/decimal"

	_ "github.com/snowflakedb/gosnowflake"
)

// WarehouseConfig holds SQL warehouse row source configuration.
type WarehouseConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Driver             string        `mapstructure:"driver"`
	DSN                string        `mapstructure:"dsn"`
	MaxOpenConnections int           `mapstructure:"max_open_connections"`
	QueryTimeout       time.Duration `mapstructure:"query_timeout"`
	Tables             query.Tables  `mapstructure:"tables"`
}

// Warehouse reads metric rows from a SQL warehouse through database/sql.
type Warehouse struct {
	db      *sqlx.DB
	builder query.Builder
	driver  string
	timeout time.Duration
	metrics *telemetry.Metrics
}

// OpenWarehouse connects to the configured warehouse.
func OpenWarehouse(ctx context.Context, cfg *WarehouseConfig, m *telemetry.Metrics) (*Warehouse, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "snowflake"
	}
	db, err := sqlx.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("couldn't open warehouse: %w", err)
	}
	if cfg.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConnections)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}

	slog.Default().InfoContext(ctx, "warehouse row source initialized", slog.String("driver", driver))
	return NewWarehouse(db, query.Snowflake(cfg.Tables), cfg.QueryTimeout, m), nil
}

// NewWarehouse wraps an open connection. Snowflake folds unquoted identifiers
// to upper case, so column matching is upper-cased for that driver.
func NewWarehouse(db *sqlx.DB, b query.Builder, timeout time.Duration, m *telemetry.Metrics) *Warehouse {
	if db.DriverName() == "snowflake" {
		db.Mapper = reflectx.NewMapperTagFunc("db", strings.ToUpper, strings.ToUpper)
	}
	return &Warehouse{
		db:      db,
		builder: b,
		driver:  db.DriverName(),
		timeout: timeout,
		metrics: m,
	}
}

// Close closes the connection pool.
func (w *Warehouse) Close() error {
	return w.db.Close()
}

type sqlMetricRow struct {
	Bucket                   sql.NullTime        `db:"bucket"`
	Channel                  sql.NullString      `db:"channel"`
	CampaignName             sql.NullString      `db:"campaign_name"`
	CampaignID               sql.NullInt64       `db:"campaign_id"`
	AdSetID                  sql.NullInt64       `db:"ad_set_id"`
	AdID                     sql.NullInt64       `db:"ad_id"`
	PlatformCampaignID       sql.NullString      `db:"platform_campaign_id"`
	PlatformAdSetID          sql.NullString      `db:"platform_ad_set_id"`
	PlatformAdID             sql.NullString      `db:"platform_ad_id"`
	AttributedOrders         decimal.NullDecimal `db:"attributed_orders"`
	AttributedRevenue        decimal.NullDecimal `db:"attributed_revenue"`
	DistinctOrdersTouched    sql.NullInt64       `db:"distinct_orders_touched"`
	AttributedCOGS           decimal.NullDecimal `db:"attributed_cogs"`
	AttributedPaymentFees    decimal.NullDecimal `db:"attributed_payment_fees"`
	AttributedTax            decimal.NullDecimal `db:"attributed_tax"`
	FirstTimeCustomerOrders  decimal.NullDecimal `db:"first_time_customer_orders"`
	FirstTimeCustomerRevenue decimal.NullDecimal `db:"first_time_customer_revenue"`
	AdSpend                  decimal.NullDecimal `db:"ad_spend"`
	Impressions              sql.NullInt64       `db:"impressions"`
	Clicks                   sql.NullInt64       `db:"clicks"`
	Conversions              decimal.NullDecimal `db:"conversions"`
}

func (r sqlMetricRow) toEntity() entity.MetricRow {
	row := entity.MetricRow{
		Channel:            r.Channel.String,
		CampaignName:       r.CampaignName.String,
		CampaignID:         sqlID(r.CampaignID),
		AdSetID:            sqlID(r.AdSetID),
		AdID:               sqlID(r.AdID),
		PlatformCampaignID: r.PlatformCampaignID.String,
		PlatformAdSetID:    r.PlatformAdSetID.String,
		PlatformAdID:       r.PlatformAdID.String,
		Metrics: entity.Metrics{
			AttributedOrders:         r.AttributedOrders.Decimal,
			AttributedRevenue:        r.AttributedRevenue.Decimal,
			DistinctOrdersTouched:    r.DistinctOrdersTouched.Int64,
			AttributedCOGS:           r.AttributedCOGS.Decimal,
			AttributedPaymentFees:    r.AttributedPaymentFees.Decimal,
			AttributedTax:            r.AttributedTax.Decimal,
			FirstTimeCustomerOrders:  r.FirstTimeCustomerOrders.Decimal,
			FirstTimeCustomerRevenue: r.FirstTimeCustomerRevenue.Decimal,
			AdSpend:                  r.AdSpend.Decimal,
			Impressions:              r.Impressions.Int64,
			Clicks:                   r.Clicks.Int64,
			Conversions:              r.Conversions.Decimal,
		},
	}
	if r.Bucket.Valid {
		row.Bucket = r.Bucket.Time
	}
	return row
}

func sqlID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

// AttributionRows implements dependency.RowSource.
func (w *Warehouse) AttributionRows(ctx context.Context, s query.Spec) ([]entity.MetricRow, error) {
	plan, err := w.builder.Attribution(s)
	if err != nil {
		return nil, err
	}
	return w.metricRows(ctx, "attribution", plan)
}

// SpendRows implements dependency.RowSource.
func (w *Warehouse) SpendRows(ctx context.Context, s query.Spec) ([]entity.MetricRow, error) {
	plan, err := w.builder.Spend(s)
	if err != nil {
		return nil, err
	}
	return w.metricRows(ctx, "spend", plan)
}

func (w *Warehouse) metricRows(ctx context.Context, kind string, plan query.Plan) ([]entity.MetricRow, error) {
	rows, err := readWarehouse[sqlMetricRow](ctx, w, kind, plan)
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
func (w *Warehouse) CohortOrders(ctx context.Context, s query.CohortSpec) ([]entity.CohortOrder, error) {
	plan, err := w.builder.CohortOrders(s)
	if err != nil {
		return nil, err
	}
	return readWarehouse[entity.CohortOrder](ctx, w, "cohort_orders", plan)
}

// CohortSpend implements dependency.RowSource.
func (w *Warehouse) CohortSpend(ctx context.Context, s query.CohortSpec) ([]entity.SpendPoint, error) {
	plan, err := w.builder.CohortSpend(s)
	if err != nil {
		return nil, err
	}
	return readWarehouse[entity.SpendPoint](ctx, w, "cohort_spend", plan)
}

func readWarehouse[T any](ctx context.Context, w *Warehouse, kind string, plan query.Plan) (out []T, err error) {
	started := time.Now()
	defer func() {
		w.metrics.RecordQuery(w.driver, kind, started, len(out), err)
	}()

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	out, err = store.QueryListNamed[T](ctx, w.db, plan.SQL, plan.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", gerr.UpstreamQueryFailed, w.driver, kind, err)
	}
	return out, nil
}

package dependency

import (
	"context"
	"database/sql"

	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	"github.com/jekabolt/grbpwr-attribution/internal/query"
	"github.com/jmoiron/sqlx"
)

type (
	// RowSource is the analytical store. Attribution and spend rows come back
	// unjoined; the source package combines them.
	RowSource interface {
		// AttributionRows returns weighted order metrics per key and bucket.
		AttributionRows(ctx context.Context, s query.Spec) ([]entity.MetricRow, error)
		// SpendRows returns delivery metrics per key and bucket.
		SpendRows(ctx context.Context, s query.Spec) ([]entity.MetricRow, error)
		// CohortOrders returns the orders of customers acquired within the range.
		CohortOrders(ctx context.Context, s query.CohortSpec) ([]entity.CohortOrder, error)
		// CohortSpend returns the shop's daily ad spend within the range.
		CohortSpend(ctx context.Context, s query.CohortSpec) ([]entity.SpendPoint, error)
	}

	// ShopResolver maps an opaque account identifier to a shop.
	ShopResolver interface {
		ResolveShop(ctx context.Context, account string) (*entity.Shop, error)
	}

	// Metadata is the hierarchy metadata store, queried by id set.
	Metadata interface {
		GetCampaignsByIds(ctx context.Context, shopID int64, ids []int64) ([]entity.CampaignRecord, error)
		GetAdSetsByIds(ctx context.Context, ids []int64) ([]entity.AdSetRecord, error)
		GetAdsByIds(ctx context.Context, ids []int64) ([]entity.AdRecord, error)
	}

	// MetadataReader is everything the engine reads from the metadata store.
	MetadataReader interface {
		ShopResolver
		Metadata
	}

	MetadataStore interface {
		MetadataReader
		Close()
	}

	DB interface {
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

		// sqlx methods
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
		QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}
)

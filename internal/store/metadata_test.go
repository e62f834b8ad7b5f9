package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	gerr "github.com/jekabolt/grbpwr-attribution/internal/errors"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*MYSQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewFromDB(sqlx.NewDb(db, "mysql")), mock
}

var shopColumns = []string{"id", "name", "currency", "timezone", "ignore_vat"}

func TestResolveShop(t *testing.T) {
	ms, mock := newMockStore(t)
	mock.ExpectQuery("FROM shop s").
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows(shopColumns).AddRow(7, "grbpwr", "EUR", "Europe/Riga", true))

	shop, err := ms.ResolveShop(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), shop.ID)
	assert.Equal(t, "EUR", shop.Currency)
	assert.True(t, shop.IgnoreVAT)
	assert.Equal(t, "Europe/Riga", shop.Location().String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveShop_NotFound(t *testing.T) {
	ms, mock := newMockStore(t)
	mock.ExpectQuery("FROM shop s").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(shopColumns))

	_, err := ms.ResolveShop(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, gerr.ShopNotFound)
}

func TestResolveShop_DatabaseError(t *testing.T) {
	ms, mock := newMockStore(t)
	mock.ExpectQuery("FROM shop s").WillReturnError(errors.New("connection reset"))

	_, err := ms.ResolveShop(context.Background(), "acct-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, gerr.MetadataFetchFailed)
	assert.NotErrorIs(t, err, gerr.ShopNotFound)
}

func TestGetShopById(t *testing.T) {
	ms, mock := newMockStore(t)
	mock.ExpectQuery("FROM shop WHERE id = ?").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(shopColumns).AddRow(7, "grbpwr", "USD", "", false))

	shop, err := ms.GetShopById(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "UTC", shop.Location().String())
}

func TestGetCampaignsByIds(t *testing.T) {
	ms, mock := newMockStore(t)
	mock.ExpectQuery("FROM ad_campaign").
		WithArgs(int64(7), int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id", "platform_id", "channel", "account_id", "name", "active", "budget"}).
			AddRow(1, 7, "120200", "meta", "act_1", "Spring drop", true, "1500.00").
			AddRow(2, 7, "998", "google", "123-456", "Brand", false, nil))

	campaigns, err := ms.GetCampaignsByIds(context.Background(), 7, []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, campaigns, 2)
	assert.Equal(t, "Spring drop", campaigns[0].Name)
	assert.True(t, campaigns[0].Budget.Valid)
	assert.True(t, campaigns[0].Budget.Decimal.Equal(decimal.NewFromInt(1500)))
	assert.False(t, campaigns[1].Budget.Valid)
	assert.False(t, campaigns[1].Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIds_EmptyIdsSkipQuery(t *testing.T) {
	ms, mock := newMockStore(t)
	ctx := context.Background()

	campaigns, err := ms.GetCampaignsByIds(ctx, 7, nil)
	require.NoError(t, err)
	assert.Nil(t, campaigns)
	adSets, err := ms.GetAdSetsByIds(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, adSets)
	ads, err := ms.GetAdsByIds(ctx, []int64{})
	require.NoError(t, err)
	assert.Nil(t, ads)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAdsByIds(t *testing.T) {
	ms, mock := newMockStore(t)
	mock.ExpectQuery("FROM ad\\s+WHERE id IN").
		WithArgs(int64(30)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ad_set_id", "platform_id", "name", "active", "image_url"}).
			AddRow(30, 20, "ad-30", "Jacket video", true, "https://cdn.example.com/30.jpg"))

	ads, err := ms.GetAdsByIds(context.Background(), []int64{30})
	require.NoError(t, err)
	require.Len(t, ads, 1)
	assert.Equal(t, int64(20), ads[0].AdSetID)
	assert.Equal(t, "https://cdn.example.com/30.jpg", ads[0].ImageURL)
}

func TestGetAdSetsByIds_Error(t *testing.T) {
	ms, mock := newMockStore(t)
	mock.ExpectQuery("FROM ad_set").WillReturnError(errors.New("timeout"))

	_, err := ms.GetAdSetsByIds(context.Background(), []int64{1})
	assert.ErrorIs(t, err, gerr.MetadataFetchFailed)
}

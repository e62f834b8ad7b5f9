package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	gerr "github.com/jekabolt/grbpwr-attribution/internal/errors"
)

// ResolveShop maps an account identifier to its shop.
func (ms *MYSQLStore) ResolveShop(ctx context.Context, account string) (*entity.Shop, error) {
	query := `
	SELECT s.id, s.name, s.currency, s.timezone, s.ignore_vat
	FROM shop s
	JOIN shop_account sa ON sa.shop_id = s.id
	WHERE sa.account = :account`

	shop, err := QueryNamedOne[entity.Shop](ctx, ms.db, query, map[string]any{
		"account": account,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %q", gerr.ShopNotFound, account)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: resolve shop: %w", gerr.MetadataFetchFailed, err)
	}
	return &shop, nil
}

// GetShopById returns a shop by its id.
func (ms *MYSQLStore) GetShopById(ctx context.Context, id int64) (*entity.Shop, error) {
	query := `SELECT id, name, currency, timezone, ignore_vat FROM shop WHERE id = :id`

	shop, err := QueryNamedOne[entity.Shop](ctx, ms.db, query, map[string]any{
		"id": id,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: shop %d", gerr.ShopNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get shop: %w", gerr.MetadataFetchFailed, err)
	}
	return &shop, nil
}

// GetCampaignsByIds returns the shop's campaigns among ids.
func (ms *MYSQLStore) GetCampaignsByIds(ctx context.Context, shopID int64, ids []int64) ([]entity.CampaignRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
	SELECT id, shop_id, platform_id, channel, account_id, name, active, budget
	FROM ad_campaign
	WHERE shop_id = :shopId AND id IN (:ids)`

	campaigns, err := QueryListNamed[entity.CampaignRecord](ctx, ms.db, query, map[string]any{
		"shopId": shopID,
		"ids":    ids,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: campaigns: %w", gerr.MetadataFetchFailed, err)
	}
	return campaigns, nil
}

// GetAdSetsByIds returns the ad sets among ids.
func (ms *MYSQLStore) GetAdSetsByIds(ctx context.Context, ids []int64) ([]entity.AdSetRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
	SELECT id, campaign_id, platform_id, name, active, budget
	FROM ad_set
	WHERE id IN (:ids)`

	adSets, err := QueryListNamed[entity.AdSetRecord](ctx, ms.db, query, map[string]any{
		"ids": ids,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ad sets: %w", gerr.MetadataFetchFailed, err)
	}
	return adSets, nil
}

// GetAdsByIds returns the ads among ids.
func (ms *MYSQLStore) GetAdsByIds(ctx context.Context, ids []int64) ([]entity.AdRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
	SELECT id, ad_set_id, platform_id, name, active, image_url
	FROM ad
	WHERE id IN (:ids)`

	ads, err := QueryListNamed[entity.AdRecord](ctx, ms.db, query, map[string]any{
		"ids": ids,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ads: %w", gerr.MetadataFetchFailed, err)
	}
	return ads, nil
}

package entity

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Identity identifies a hierarchy node: either a known record or the
// unassigned bucket. Display names for Unassigned are chosen at presentation.
type Identity interface {
	isIdentity()
}

// NodeMeta is the display metadata resolved for an identified node.
type NodeMeta struct {
	Name     string
	Active   bool
	Budget   decimal.NullDecimal
	ImageURL string
	URL      string
}

// Identified is a node with a known internal id.
type Identified struct {
	ID         int64
	PlatformID string
	Meta       NodeMeta
}

// Unassigned is the single per-level bucket for rows whose id is 0.
type Unassigned struct{}

func (Identified) isIdentity() {}
func (Unassigned) isIdentity() {}

type Campaign struct {
	Identity  Identity
	Channel   string
	AccountID string
	AdSets    []*AdSet
	Totals    Totals
}

type AdSet struct {
	Identity Identity
	Ads      []*Ad
	Totals   Totals
}

type Ad struct {
	Identity Identity
	Totals   Totals
}

// CampaignRecord is a paid campaign as stored in the metadata store.
type CampaignRecord struct {
	ID         int64               `db:"id"`
	ShopID     int64               `db:"shop_id"`
	PlatformID string              `db:"platform_id"`
	Channel    string              `db:"channel"`
	AccountID  string              `db:"account_id"`
	Name       string              `db:"name"`
	Active     bool                `db:"active"`
	Budget     decimal.NullDecimal `db:"budget"`
}

type AdSetRecord struct {
	ID         int64               `db:"id"`
	CampaignID int64               `db:"campaign_id"`
	PlatformID string              `db:"platform_id"`
	Name       string              `db:"name"`
	Active     bool                `db:"active"`
	Budget     decimal.NullDecimal `db:"budget"`
}

type AdRecord struct {
	ID         int64  `db:"id"`
	AdSetID    int64  `db:"ad_set_id"`
	PlatformID string `db:"platform_id"`
	Name       string `db:"name"`
	Active     bool   `db:"active"`
	ImageURL   string `db:"image_url"`
}

// MetadataIndex is the per-request lookup of hierarchy metadata by internal id.
type MetadataIndex struct {
	Campaigns map[int64]CampaignRecord
	AdSets    map[int64]AdSetRecord
	Ads       map[int64]AdRecord
}

// NewMetadataIndex indexes the given records by id.
func NewMetadataIndex(campaigns []CampaignRecord, adSets []AdSetRecord, ads []AdRecord) MetadataIndex {
	idx := MetadataIndex{
		Campaigns: make(map[int64]CampaignRecord, len(campaigns)),
		AdSets:    make(map[int64]AdSetRecord, len(adSets)),
		Ads:       make(map[int64]AdRecord, len(ads)),
	}
	for _, c := range campaigns {
		idx.Campaigns[c.ID] = c
	}
	for _, s := range adSets {
		idx.AdSets[s.ID] = s
	}
	for _, a := range ads {
		idx.Ads[a.ID] = a
	}
	return idx
}

// AdPlatform is an ad network whose deep links can be built.
type AdPlatform string

const (
	PlatformMeta    AdPlatform = "meta"
	PlatformGoogle  AdPlatform = "google"
	PlatformTaboola AdPlatform = "taboola"
	PlatformUnknown AdPlatform = ""
)

// PlatformOf maps a channel name to its ad platform.
func PlatformOf(channel string) AdPlatform {
	switch strings.ToLower(strings.TrimSpace(channel)) {
	case "meta", "facebook", "instagram", "meta-ads", "facebook-ads":
		return PlatformMeta
	case "google", "google-ads", "adwords", "youtube":
		return PlatformGoogle
	case "taboola":
		return PlatformTaboola
	default:
		return PlatformUnknown
	}
}

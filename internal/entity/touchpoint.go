package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Touchpoint is one recorded channel interaction on the path to an order.
// The overall flags are computed across the order's full path.
type Touchpoint struct {
	ID      string
	ShopID  int64
	OrderID string
	EventAt time.Time
	OrderAt time.Time

	Channel            string
	CampaignName       string
	CampaignID         *int64
	AdSetID            *int64
	AdID               *int64
	PlatformCampaignID string
	PlatformAdSetID    string
	PlatformAdID       string

	IsFirstEventOverall    bool
	IsLastEventOverall     bool
	IsLastPaidEventOverall bool
	HasAnyPaidEvents       bool
	IsPaidChannel          bool

	// Windows lists the lookback windows (in days) the touchpoint falls into.
	Windows []int

	OrderRevenue     decimal.Decimal
	OrderCOGS        decimal.Decimal
	OrderPaymentFees decimal.Decimal
	OrderTax         decimal.Decimal
	IsFirstOrder     bool
}

// InWindow reports whether the touchpoint counts for the given lookback window.
func (t Touchpoint) InWindow(days int) bool {
	for _, w := range t.Windows {
		if w == days {
			return true
		}
	}
	return false
}

// SpendRecord is one ad-platform delivery record.
type SpendRecord struct {
	ShopID             int64
	At                 time.Time
	Channel            string
	CampaignName       string
	CampaignID         *int64
	AdSetID            *int64
	AdID               *int64
	PlatformCampaignID string
	PlatformAdSetID    string
	PlatformAdID       string
	Spend              decimal.Decimal
	Impressions        int64
	Clicks             int64
	Conversions        decimal.Decimal
}

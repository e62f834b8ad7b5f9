package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CohortGranularity is the period size customers are grouped by.
type CohortGranularity string

const (
	CohortWeek    CohortGranularity = "week"
	CohortMonth   CohortGranularity = "month"
	CohortQuarter CohortGranularity = "quarter"
	CohortYear    CohortGranularity = "year"
)

// CohortOrder is a single order fact joined with its customer's first purchase.
type CohortOrder struct {
	CustomerID   string          `db:"customer_id"`
	OrderID      string          `db:"order_id"`
	PlacedAt     time.Time       `db:"placed_at"`
	FirstOrderAt time.Time       `db:"first_order_at"`
	Revenue      decimal.Decimal `db:"revenue"`
	NetRevenue   decimal.Decimal `db:"net_revenue"`
	COGS         decimal.Decimal `db:"cogs"`
}

// SpendPoint is the shop's total ad spend for one day.
type SpendPoint struct {
	Day     time.Time       `db:"day"`
	AdSpend decimal.Decimal `db:"ad_spend"`
}

type CohortRecord struct {
	CohortKey      time.Time
	CohortSize     int64
	CohortAdSpend  decimal.Decimal
	CACPerCustomer decimal.Decimal
	Periods        []CohortPeriod
}

// CohortPeriod holds incremental and cumulative metrics for one period since acquisition.
type CohortPeriod struct {
	PeriodIndex int

	ActiveCustomers  int64
	Orders           int64
	Revenue          decimal.Decimal
	NetRevenue       decimal.Decimal
	COGS             decimal.Decimal
	CM1              decimal.Decimal
	AdSpendAllocated decimal.Decimal
	CM3              decimal.Decimal
	RetentionRate    decimal.Decimal

	CumulativeOrders int64
	// CumulativeActiveCustomers is max(previous, current active); it is not a
	// unique-customer union across periods.
	CumulativeActiveCustomers int64
	CumulativeRevenue         decimal.Decimal
	CumulativeNetRevenue      decimal.Decimal
	CumulativeCM1             decimal.Decimal
	CumulativeCM3             decimal.Decimal

	LTVToDate                decimal.Decimal
	NetLTVToDate             decimal.Decimal
	CumulativeCM1PerCustomer decimal.Decimal
	CumulativeCM3PerCustomer decimal.Decimal
	LTVToCACRatio            decimal.Decimal
	IsPaybackAchieved        bool
}

// CohortSummary aggregates all cohorts of a report.
type CohortSummary struct {
	TotalCustomers    int64
	TotalAdSpend      decimal.Decimal
	AvgCAC            decimal.Decimal
	RetentionByPeriod []decimal.Decimal
	BestCohort        *time.Time
}

// Package cohort computes retention, contribution margin, LTV, CAC and
// payback for customers grouped by their first purchase period.
package cohort

import (
	"sort"
	"time"

	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Params control how orders are grouped into cohorts.
type Params struct {
	Granularity entity.CohortGranularity
	// MaxPeriods caps the reported periods per cohort; 0 uses DefaultMaxPeriods.
	MaxPeriods int
	Location   *time.Location
}

type periodFacts struct {
	customers  map[string]struct{}
	orders     int64
	revenue    decimal.Decimal
	netRevenue decimal.Decimal
	cogs       decimal.Decimal
}

type cohortFacts struct {
	key     time.Time
	periods map[int]*periodFacts
	last    int
}

// Build groups orders into cohorts and computes every period of each cohort.
// spend is the shop's daily ad spend; a cohort is charged the spend of its
// acquisition period only. Cohorts are returned oldest first.
func Build(orders []entity.CohortOrder, spend []entity.SpendPoint, p Params) ([]entity.CohortRecord, entity.CohortSummary) {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	maxPeriods := p.MaxPeriods
	if maxPeriods <= 0 {
		maxPeriods = DefaultMaxPeriods(p.Granularity)
	}

	cohorts := make(map[int64]*cohortFacts)
	for _, o := range orders {
		key := PeriodStart(o.FirstOrderAt.In(loc), p.Granularity)
		idx := PeriodIndex(key, PeriodStart(o.PlacedAt.In(loc), p.Granularity), p.Granularity)
		if idx < 0 || idx >= maxPeriods {
			continue
		}
		c, ok := cohorts[key.Unix()]
		if !ok {
			c = &cohortFacts{key: key, periods: make(map[int]*periodFacts)}
			cohorts[key.Unix()] = c
		}
		pf, ok := c.periods[idx]
		if !ok {
			pf = &periodFacts{customers: make(map[string]struct{})}
			c.periods[idx] = pf
		}
		pf.customers[o.CustomerID] = struct{}{}
		pf.orders++
		pf.revenue = pf.revenue.Add(o.Revenue)
		pf.netRevenue = pf.netRevenue.Add(o.NetRevenue)
		pf.cogs = pf.cogs.Add(o.COGS)
		if idx > c.last {
			c.last = idx
		}
	}

	spendByPeriod := make(map[int64]decimal.Decimal)
	for _, s := range spend {
		key := PeriodStart(s.Day.In(loc), p.Granularity).Unix()
		spendByPeriod[key] = spendByPeriod[key].Add(s.AdSpend)
	}

	keys := make([]int64, 0, len(cohorts))
	for k := range cohorts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	records := make([]entity.CohortRecord, 0, len(keys))
	for _, k := range keys {
		records = append(records, buildRecord(cohorts[k], spendByPeriod[k]))
	}
	return records, Summarize(records)
}

func buildRecord(c *cohortFacts, adSpend decimal.Decimal) entity.CohortRecord {
	rec := entity.CohortRecord{
		CohortKey:      c.key,
		CohortAdSpend:  adSpend,
		CACPerCustomer: decimal.Zero,
	}
	if first, ok := c.periods[0]; ok {
		rec.CohortSize = int64(len(first.customers))
	}
	size := decimal.NewFromInt(rec.CohortSize)
	if rec.CohortSize > 0 {
		rec.CACPerCustomer = adSpend.Div(size)
	}

	var prev entity.CohortPeriod
	rec.Periods = make([]entity.CohortPeriod, 0, c.last+1)
	for idx := 0; idx <= c.last; idx++ {
		pf, ok := c.periods[idx]
		if !ok {
			pf = &periodFacts{}
		}
		cur := entity.CohortPeriod{
			PeriodIndex:      idx,
			ActiveCustomers:  int64(len(pf.customers)),
			Orders:           pf.orders,
			Revenue:          pf.revenue,
			NetRevenue:       pf.netRevenue,
			COGS:             pf.cogs,
			CM1:              pf.netRevenue.Sub(pf.cogs),
			AdSpendAllocated: decimal.Zero,
		}
		if idx == 0 {
			cur.AdSpendAllocated = adSpend
		}
		cur.CM3 = cur.CM1.Sub(cur.AdSpendAllocated)

		cur.CumulativeOrders = prev.CumulativeOrders + cur.Orders
		// approximation: not a union of customers across periods
		cur.CumulativeActiveCustomers = max(prev.CumulativeActiveCustomers, cur.ActiveCustomers)
		cur.CumulativeRevenue = prev.CumulativeRevenue.Add(cur.Revenue)
		cur.CumulativeNetRevenue = prev.CumulativeNetRevenue.Add(cur.NetRevenue)
		cur.CumulativeCM1 = prev.CumulativeCM1.Add(cur.CM1)
		cur.CumulativeCM3 = prev.CumulativeCM3.Add(cur.CM3)

		cur.RetentionRate = decimal.Zero
		cur.LTVToDate = decimal.Zero
		cur.NetLTVToDate = decimal.Zero
		cur.CumulativeCM1PerCustomer = decimal.Zero
		cur.CumulativeCM3PerCustomer = decimal.Zero
		cur.LTVToCACRatio = decimal.Zero
		if rec.CohortSize > 0 {
			cur.RetentionRate = decimal.NewFromInt(cur.ActiveCustomers).Div(size).Mul(hundred)
			cur.LTVToDate = cur.CumulativeRevenue.Div(size)
			cur.NetLTVToDate = cur.CumulativeNetRevenue.Div(size)
			cur.CumulativeCM1PerCustomer = cur.CumulativeCM1.Div(size)
			cur.CumulativeCM3PerCustomer = cur.CumulativeCM3.Div(size)
		}
		if rec.CACPerCustomer.IsPositive() {
			cur.LTVToCACRatio = cur.LTVToDate.Div(rec.CACPerCustomer)
		}
		cur.IsPaybackAchieved = cur.LTVToDate.GreaterThanOrEqual(rec.CACPerCustomer)

		rec.Periods = append(rec.Periods, cur)
		prev = cur
	}
	return rec
}

// Summarize aggregates cohorts: retention per period index is weighted by
// cohort size over the cohorts that reached that period, and the best cohort
// is the one with the highest LTV at its latest period.
func Summarize(records []entity.CohortRecord) entity.CohortSummary {
	s := entity.CohortSummary{
		TotalAdSpend: decimal.Zero,
		AvgCAC:       decimal.Zero,
	}
	var active, sizes []int64
	var bestLTV decimal.Decimal
	for i, r := range records {
		s.TotalCustomers += r.CohortSize
		s.TotalAdSpend = s.TotalAdSpend.Add(r.CohortAdSpend)
		for _, p := range r.Periods {
			for len(active) <= p.PeriodIndex {
				active = append(active, 0)
				sizes = append(sizes, 0)
			}
			active[p.PeriodIndex] += p.ActiveCustomers
			sizes[p.PeriodIndex] += r.CohortSize
		}
		if len(r.Periods) == 0 {
			continue
		}
		ltv := r.Periods[len(r.Periods)-1].LTVToDate
		if s.BestCohort == nil || ltv.GreaterThan(bestLTV) {
			key := records[i].CohortKey
			s.BestCohort = &key
			bestLTV = ltv
		}
	}
	if s.TotalCustomers > 0 {
		s.AvgCAC = s.TotalAdSpend.Div(decimal.NewFromInt(s.TotalCustomers))
	}
	s.RetentionByPeriod = make([]decimal.Decimal, len(active))
	for i := range active {
		s.RetentionByPeriod[i] = decimal.Zero
		if sizes[i] > 0 {
			s.RetentionByPeriod[i] = decimal.NewFromInt(active[i]).Div(decimal.NewFromInt(sizes[i])).Mul(hundred)
		}
	}
	return s
}

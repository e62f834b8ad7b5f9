package dto

import (
	"github.com/jekabolt/grbpwr-attribution/internal/entity"
)

type CohortPeriod struct {
	PeriodIndex               int     `json:"period_index"`
	ActiveCustomers           int64   `json:"active_customers"`
	Orders                    int64   `json:"orders"`
	Revenue                   float64 `json:"revenue"`
	NetRevenue                float64 `json:"net_revenue"`
	COGS                      float64 `json:"cogs"`
	CM1                       float64 `json:"contribution_margin_one"`
	AdSpendAllocated          float64 `json:"ad_spend_allocated"`
	CM3                       float64 `json:"contribution_margin_three"`
	RetentionRate             float64 `json:"retention_rate"`
	CumulativeOrders          int64   `json:"cumulative_orders"`
	CumulativeActiveCustomers int64   `json:"cumulative_active_customers"`
	CumulativeRevenue         float64 `json:"cumulative_revenue"`
	CumulativeNetRevenue      float64 `json:"cumulative_net_revenue"`
	CumulativeCM1             float64 `json:"cumulative_cm1"`
	CumulativeCM3             float64 `json:"cumulative_cm3"`
	LTVToDate                 float64 `json:"ltv_to_date"`
	NetLTVToDate              float64 `json:"net_ltv_to_date"`
	CumulativeCM1PerCustomer  float64 `json:"cumulative_cm1_per_customer"`
	CumulativeCM3PerCustomer  float64 `json:"cumulative_cm3_per_customer"`
	LTVToCACRatio             float64 `json:"ltv_to_cac_ratio"`
	IsPaybackAchieved         bool    `json:"is_payback_achieved"`
}

type Cohort struct {
	CohortKey      string         `json:"cohort_key"`
	CohortSize     int64          `json:"cohort_size"`
	CohortAdSpend  float64        `json:"cohort_ad_spend"`
	CACPerCustomer float64        `json:"cac_per_customer"`
	Periods        []CohortPeriod `json:"periods"`
}

type CohortSummary struct {
	TotalCustomers    int64     `json:"total_customers"`
	TotalAdSpend      float64   `json:"total_ad_spend"`
	AvgCAC            float64   `json:"avg_cac"`
	RetentionByPeriod []float64 `json:"retention_by_period"`
	BestCohort        string    `json:"best_cohort,omitempty"`
}

type CohortsResponse struct {
	Meta        Envelope      `json:"meta"`
	Granularity string        `json:"cohort_granularity"`
	Cohorts     []Cohort      `json:"cohorts"`
	Summary     CohortSummary `json:"summary"`
}

func ConvertCohorts(rs []entity.CohortRecord) []Cohort {
	out := make([]Cohort, 0, len(rs))
	for _, r := range rs {
		c := Cohort{
			CohortKey:      r.CohortKey.Format(dateLayout),
			CohortSize:     r.CohortSize,
			CohortAdSpend:  float(r.CohortAdSpend),
			CACPerCustomer: float(r.CACPerCustomer),
			Periods:        make([]CohortPeriod, 0, len(r.Periods)),
		}
		for _, p := range r.Periods {
			c.Periods = append(c.Periods, CohortPeriod{
				PeriodIndex:               p.PeriodIndex,
				ActiveCustomers:           p.ActiveCustomers,
				Orders:                    p.Orders,
				Revenue:                   float(p.Revenue),
				NetRevenue:                float(p.NetRevenue),
				COGS:                      float(p.COGS),
				CM1:                       float(p.CM1),
				AdSpendAllocated:          float(p.AdSpendAllocated),
				CM3:                       float(p.CM3),
				RetentionRate:             float(p.RetentionRate),
				CumulativeOrders:          p.CumulativeOrders,
				CumulativeActiveCustomers: p.CumulativeActiveCustomers,
				CumulativeRevenue:         float(p.CumulativeRevenue),
				CumulativeNetRevenue:      float(p.CumulativeNetRevenue),
				CumulativeCM1:             float(p.CumulativeCM1),
				CumulativeCM3:             float(p.CumulativeCM3),
				LTVToDate:                 float(p.LTVToDate),
				NetLTVToDate:              float(p.NetLTVToDate),
				CumulativeCM1PerCustomer:  float(p.CumulativeCM1PerCustomer),
				CumulativeCM3PerCustomer:  float(p.CumulativeCM3PerCustomer),
				LTVToCACRatio:             float(p.LTVToCACRatio),
				IsPaybackAchieved:         p.IsPaybackAchieved,
			})
		}
		out = append(out, c)
	}
	return out
}

func ConvertCohortSummary(s entity.CohortSummary) CohortSummary {
	out := CohortSummary{
		TotalCustomers:    s.TotalCustomers,
		TotalAdSpend:      float(s.TotalAdSpend),
		AvgCAC:            float(s.AvgCAC),
		RetentionByPeriod: make([]float64, 0, len(s.RetentionByPeriod)),
	}
	for _, r := range s.RetentionByPeriod {
		out.RetentionByPeriod = append(out.RetentionByPeriod, float(r))
	}
	if s.BestCohort != nil {
		out.BestCohort = s.BestCohort.Format(dateLayout)
	}
	return out
}

// Package aggregate builds the flat channel and non-paid campaign views.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	"github.com/jekabolt/grbpwr-attribution/internal/formula"
	"github.com/jekabolt/grbpwr-attribution/internal/timebucket"
)

// Aggregator groups metric rows for one shop's response.
type Aggregator struct {
	profit formula.Profit
	paid   map[string]struct{}
}

// New returns an aggregator. Channels in paidChannels are always treated as
// paid; any other channel is paid when it carries ad spend.
func New(profit formula.Profit, paidChannels []string) Aggregator {
	paid := make(map[string]struct{}, len(paidChannels))
	for _, c := range paidChannels {
		paid[normalize(c)] = struct{}{}
	}
	return Aggregator{profit: profit, paid: paid}
}

func normalize(channel string) string {
	return strings.ToLower(strings.TrimSpace(channel))
}

// IsPaid reports whether a channel with the given totals is a paid channel.
func (a Aggregator) IsPaid(channel string, m entity.Metrics) bool {
	if _, ok := a.paid[normalize(channel)]; ok {
		return true
	}
	return m.AdSpend.IsPositive()
}

// ByChannel sums rows per channel, ordered by attributed revenue descending.
func (a Aggregator) ByChannel(rows []entity.MetricRow) []entity.ChannelPerformance {
	index := make(map[string]int)
	var out []entity.ChannelPerformance
	for _, r := range rows {
		i, ok := index[r.Channel]
		if !ok {
			i = len(out)
			index[r.Channel] = i
			out = append(out, entity.ChannelPerformance{Channel: r.Channel})
		}
		out[i].Metrics.Add(r.Metrics)
	}
	for i := range out {
		out[i].Paid = a.IsPaid(out[i].Channel, out[i].Metrics)
		out[i].Derived = a.profit.Derive(out[i].Metrics, out[i].Paid)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].AttributedRevenue.Cmp(out[j].AttributedRevenue); c != 0 {
			return c > 0
		}
		return out[i].Channel < out[j].Channel
	})
	return out
}

type campaignKey struct {
	channel string
	name    string
}

// ByCampaign sums rows per channel and campaign name for non-paid channels.
// A channel is paid by the same rule as in ByChannel, judged on its totals
// across all rows.
func (a Aggregator) ByCampaign(rows []entity.MetricRow) []entity.CampaignPerformance {
	totals := make(map[string]*entity.Metrics)
	for _, r := range rows {
		m, ok := totals[r.Channel]
		if !ok {
			m = &entity.Metrics{}
			totals[r.Channel] = m
		}
		m.Add(r.Metrics)
	}

	index := make(map[campaignKey]int)
	var out []entity.CampaignPerformance
	for _, r := range rows {
		if a.IsPaid(r.Channel, *totals[r.Channel]) {
			continue
		}
		k := campaignKey{channel: r.Channel, name: r.CampaignName}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, entity.CampaignPerformance{Channel: r.Channel, CampaignName: r.CampaignName})
		}
		out[i].Metrics.Add(r.Metrics)
	}
	for i := range out {
		out[i].Derived = a.profit.Derive(out[i].Metrics, false)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].AttributedRevenue.Cmp(out[j].AttributedRevenue); c != 0 {
			return c > 0
		}
		if out[i].Channel != out[j].Channel {
			return out[i].Channel < out[j].Channel
		}
		return out[i].CampaignName < out[j].CampaignName
	})
	return out
}

// Timeseries groups bucketed rows per channel and fills every bucket of r,
// in loc. Channels are ordered by name; points by date.
func (a Aggregator) Timeseries(rows []entity.MetricRow, r entity.TimeRange, g entity.MetricsGranularity, loc *time.Location) []entity.TimeSeriesPoint {
	if loc == nil {
		loc = time.UTC
	}
	byChannel := make(map[string]map[int64]*entity.TimeSeriesPoint)
	for _, row := range rows {
		bucket := timebucket.Truncate(row.Bucket.In(loc), g)
		points, ok := byChannel[row.Channel]
		if !ok {
			points = make(map[int64]*entity.TimeSeriesPoint)
			byChannel[row.Channel] = points
		}
		p, ok := points[bucket.Unix()]
		if !ok {
			p = &entity.TimeSeriesPoint{Date: bucket, Channel: row.Channel}
			points[bucket.Unix()] = p
		}
		p.Metrics.Add(row.Metrics)
	}

	channels := make([]string, 0, len(byChannel))
	for c := range byChannel {
		channels = append(channels, c)
	}
	sort.Strings(channels)

	rng := entity.TimeRange{From: r.From.In(loc), To: r.To.In(loc)}
	var out []entity.TimeSeriesPoint
	for _, channel := range channels {
		points := make([]entity.TimeSeriesPoint, 0, len(byChannel[channel]))
		var total entity.Metrics
		for _, p := range byChannel[channel] {
			points = append(points, *p)
			total.Add(p.Metrics)
		}
		paid := a.IsPaid(channel, total)
		filled := timebucket.FillGaps(points,
			func(p entity.TimeSeriesPoint) time.Time { return p.Date },
			rng, g,
			func(t time.Time) entity.TimeSeriesPoint {
				return entity.TimeSeriesPoint{Date: t, Channel: channel}
			})
		for i := range filled {
			filled[i].Derived = a.profit.Derive(filled[i].Metrics, paid)
		}
		out = append(out, filled...)
	}
	return out
}

// Totals is the response-wide total across all rows. DistinctOrdersTouched
// is the largest count of any single row, a lower bound on the distinct
// orders of the response: rows do not carry order ids to union.
func (a Aggregator) Totals(rows []entity.MetricRow) entity.Totals {
	var m entity.Metrics
	for _, r := range rows {
		m.Add(r.Metrics)
	}
	return a.profit.Totals(m, m.AdSpend.IsPositive())
}

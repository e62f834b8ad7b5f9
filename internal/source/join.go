// Package source fetches metric rows from the analytical store and combines
// the attribution and spend streams into one row set.
package source

import (
	"github.com/jekabolt/grbpwr-attribution/internal/entity"
)

type idKey struct {
	set bool
	v   int64
}

type rowKey struct {
	bucket       int64
	channel      string
	campaignName string
	campaign     idKey
	adSet        idKey
	ad           idKey
}

func keyID(p *int64) idKey {
	if p == nil {
		return idKey{}
	}
	return idKey{set: true, v: *p}
}

func keyOf(r entity.MetricRow) rowKey {
	k := rowKey{
		channel:      r.Channel,
		campaignName: r.CampaignName,
		campaign:     keyID(r.CampaignID),
		adSet:        keyID(r.AdSetID),
		ad:           keyID(r.AdID),
	}
	if !r.Bucket.IsZero() {
		k.bucket = r.Bucket.UnixNano()
	}
	return k
}

// Join full-outer-joins attribution and spend rows on bucket and key. A side
// without a match contributes zeros. Attribution rows come first in input
// order, followed by spend-only rows in input order.
func Join(attribution, spend []entity.MetricRow) []entity.MetricRow {
	out := make([]entity.MetricRow, 0, len(attribution)+len(spend))
	index := make(map[rowKey]int, len(attribution))
	for _, r := range attribution {
		k := keyOf(r)
		if _, ok := index[k]; !ok {
			index[k] = len(out)
		}
		out = append(out, r)
	}

	for _, s := range spend {
		i, ok := index[keyOf(s)]
		if !ok {
			out = append(out, spendOnly(s))
			continue
		}
		r := &out[i]
		r.AdSpend = r.AdSpend.Add(s.AdSpend)
		r.Impressions += s.Impressions
		r.Clicks += s.Clicks
		r.Conversions = r.Conversions.Add(s.Conversions)
		if r.PlatformCampaignID == "" {
			r.PlatformCampaignID = s.PlatformCampaignID
		}
		if r.PlatformAdSetID == "" {
			r.PlatformAdSetID = s.PlatformAdSetID
		}
		if r.PlatformAdID == "" {
			r.PlatformAdID = s.PlatformAdID
		}
	}
	return out
}

func spendOnly(s entity.MetricRow) entity.MetricRow {
	return entity.MetricRow{
		Bucket:             s.Bucket,
		Channel:            s.Channel,
		CampaignName:       s.CampaignName,
		CampaignID:         s.CampaignID,
		AdSetID:            s.AdSetID,
		AdID:               s.AdID,
		PlatformCampaignID: s.PlatformCampaignID,
		PlatformAdSetID:    s.PlatformAdSetID,
		PlatformAdID:       s.PlatformAdID,
		Metrics: entity.Metrics{
			AdSpend:     s.AdSpend,
			Impressions: s.Impressions,
			Clicks:      s.Clicks,
			Conversions: s.Conversions,
		},
	}
}

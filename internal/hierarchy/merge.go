// Package hierarchy folds ad-level metric rows into campaign, ad set and ad
// trees enriched with metadata.
package hierarchy

import (
	"strconv"

	"github.com/jekabolt/grbpwr-attribution/internal/entity"
	"github.com/jekabolt/grbpwr-attribution/internal/formula"
)

type adSetKey struct {
	campaignID int64
	adSetID    int64
}

// merger holds the per-request id→node index. It is discarded after Merge.
type merger struct {
	meta      entity.MetadataIndex
	profit    formula.Profit
	campaigns map[int64]*entity.Campaign
	adSets    map[adSetKey]*entity.AdSet
	order     []*entity.Campaign
}

// Merge builds the campaign tree from ad-level rows.
//
// Rows missing any of the three ids are dropped; id 0 folds into the single
// unassigned node of its level. A campaign whose rows carry no attribution,
// only spend, is left out entirely. Every row becomes one ad leaf. Additive
// measures are summed upward, DistinctOrdersTouched keeps the maximum, and
// ratios are computed once all rows are folded. Campaigns, ad sets and ads
// keep the order of their first appearance.
func Merge(rows []entity.MetricRow, meta entity.MetadataIndex, profit formula.Profit) []*entity.Campaign {
	m := &merger{
		meta:      meta,
		profit:    profit,
		campaigns: make(map[int64]*entity.Campaign),
		adSets:    make(map[adSetKey]*entity.AdSet),
	}
	attributed := make(map[int64]struct{})
	for _, r := range rows {
		if complete(r) && r.Metrics.HasAttribution() {
			attributed[*r.CampaignID] = struct{}{}
		}
	}
	for _, r := range rows {
		if !complete(r) {
			continue
		}
		if _, ok := attributed[*r.CampaignID]; !ok {
			continue
		}
		m.fold(r)
	}
	for _, c := range m.order {
		for _, s := range c.AdSets {
			s.Totals = profit.Totals(s.Totals.Metrics, true)
		}
		c.Totals = profit.Totals(c.Totals.Metrics, true)
	}
	return m.order
}

func complete(r entity.MetricRow) bool {
	return r.CampaignID != nil && r.AdSetID != nil && r.AdID != nil
}

func (m *merger) fold(r entity.MetricRow) {
	c := m.campaign(r)
	s := m.adSet(c, r)

	ad := &entity.Ad{
		Identity: m.adIdentity(c, s, r),
		Totals:   m.profit.Totals(r.Metrics, true),
	}
	s.Ads = append(s.Ads, ad)

	s.Totals.Metrics.Add(r.Metrics)
	c.Totals.Metrics.Add(r.Metrics)
}

func (m *merger) campaign(r entity.MetricRow) *entity.Campaign {
	id := *r.CampaignID
	if c, ok := m.campaigns[id]; ok {
		return c
	}

	c := &entity.Campaign{Channel: r.Channel}
	if id == 0 {
		c.Identity = entity.Unassigned{}
	} else {
		rec, ok := m.meta.Campaigns[id]
		pid := r.PlatformCampaignID
		node := entity.Identified{ID: id, PlatformID: pid}
		if ok {
			if pid == "" {
				node.PlatformID = rec.PlatformID
			}
			if rec.Channel != "" {
				c.Channel = rec.Channel
			}
			c.AccountID = rec.AccountID
			node.Meta = entity.NodeMeta{Name: rec.Name, Active: rec.Active, Budget: rec.Budget}
		}
		if node.Meta.Name == "" {
			node.Meta.Name = fallbackName("Campaign", node.PlatformID, id)
		}
		node.Meta.URL = CampaignURL(entity.PlatformOf(c.Channel), c.AccountID, node.PlatformID)
		c.Identity = node
	}

	m.campaigns[id] = c
	m.order = append(m.order, c)
	return c
}

func (m *merger) adSet(c *entity.Campaign, r entity.MetricRow) *entity.AdSet {
	key := adSetKey{campaignID: *r.CampaignID, adSetID: *r.AdSetID}
	if s, ok := m.adSets[key]; ok {
		return s
	}

	s := &entity.AdSet{}
	if key.adSetID == 0 {
		s.Identity = entity.Unassigned{}
	} else {
		rec, ok := m.meta.AdSets[key.adSetID]
		node := entity.Identified{ID: key.adSetID, PlatformID: r.PlatformAdSetID}
		if ok {
			if node.PlatformID == "" {
				node.PlatformID = rec.PlatformID
			}
			node.Meta = entity.NodeMeta{Name: rec.Name, Active: rec.Active, Budget: rec.Budget}
		}
		if node.Meta.Name == "" {
			node.Meta.Name = fallbackName("Ad Set", node.PlatformID, key.adSetID)
		}
		node.Meta.URL = AdSetURL(entity.PlatformOf(c.Channel), c.AccountID, platformID(c.Identity), node.PlatformID)
		s.Identity = node
	}

	m.adSets[key] = s
	c.AdSets = append(c.AdSets, s)
	return s
}

func (m *merger) adIdentity(c *entity.Campaign, s *entity.AdSet, r entity.MetricRow) entity.Identity {
	id := *r.AdID
	if id == 0 {
		return entity.Unassigned{}
	}
	rec, ok := m.meta.Ads[id]
	node := entity.Identified{ID: id, PlatformID: r.PlatformAdID}
	if ok {
		if node.PlatformID == "" {
			node.PlatformID = rec.PlatformID
		}
		node.Meta = entity.NodeMeta{Name: rec.Name, Active: rec.Active, ImageURL: rec.ImageURL}
	}
	if node.Meta.Name == "" {
		node.Meta.Name = fallbackName("Ad", node.PlatformID, id)
	}
	node.Meta.URL = AdURL(entity.PlatformOf(c.Channel), c.AccountID,
		platformID(c.Identity), platformID(s.Identity), node.PlatformID)
	return node
}

// fallbackName names a node without metadata after its platform id, or its
// internal id when the platform id is unknown too.
func fallbackName(kind, platformID string, id int64) string {
	if platformID == "" {
		platformID = strconv.FormatInt(id, 10)
	}
	return kind + " " + platformID
}

func platformID(id entity.Identity) string {
	if n, ok := id.(entity.Identified); ok {
		return n.PlatformID
	}
	return ""
}

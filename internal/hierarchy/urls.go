package hierarchy

import (
	"net/url"
	"strings"

	"github.com/jekabolt/grbpwr-attribution/internal/entity"
)

const (
	metaAdsManager = "https://adsmanager.facebook.com/adsmanager/manage/"
	googleAds      = "https://ads.google.com/aw/"
	taboolaAds     = "https://ads.taboola.com/campaigns"
)

// CampaignURL returns the ad platform deep link of a campaign, or "" when the
// platform has no known link pattern.
func CampaignURL(p entity.AdPlatform, accountID, campaignID string) string {
	if campaignID == "" {
		return ""
	}
	switch p {
	case entity.PlatformMeta:
		return metaURL("campaigns", accountID, url.Values{"selected_campaign_ids": {campaignID}})
	case entity.PlatformGoogle:
		return googleURL("adgroups", accountID, url.Values{"campaignId": {campaignID}})
	case entity.PlatformTaboola:
		return taboolaURL(accountID, url.Values{"campaignId": {campaignID}})
	default:
		return ""
	}
}

// AdSetURL returns the deep link of an ad set, nested under its campaign's account.
func AdSetURL(p entity.AdPlatform, accountID, campaignID, adSetID string) string {
	if adSetID == "" {
		return ""
	}
	switch p {
	case entity.PlatformMeta:
		return metaURL("adsets", accountID, url.Values{"selected_adset_ids": {adSetID}})
	case entity.PlatformGoogle:
		q := url.Values{"adGroupId": {adSetID}}
		if campaignID != "" {
			q.Set("campaignId", campaignID)
		}
		return googleURL("ads", accountID, q)
	case entity.PlatformTaboola:
		// taboola has no ad set level; link to the campaign
		return CampaignURL(p, accountID, campaignID)
	default:
		return ""
	}
}

// AdURL returns the deep link of an ad.
func AdURL(p entity.AdPlatform, accountID, campaignID, adSetID, adID string) string {
	if adID == "" {
		return ""
	}
	switch p {
	case entity.PlatformMeta:
		return metaURL("ads", accountID, url.Values{"selected_ad_ids": {adID}})
	case entity.PlatformGoogle:
		q := url.Values{"adId": {adID}}
		if campaignID != "" {
			q.Set("campaignId", campaignID)
		}
		if adSetID != "" {
			q.Set("adGroupId", adSetID)
		}
		return googleURL("ads", accountID, q)
	case entity.PlatformTaboola:
		q := url.Values{"itemId": {adID}}
		if campaignID != "" {
			q.Set("campaignId", campaignID)
		}
		return taboolaURL(accountID, q)
	default:
		return ""
	}
}

func metaURL(level, accountID string, q url.Values) string {
	if id := strings.TrimPrefix(accountID, "act_"); id != "" {
		q.Set("act", id)
	}
	return metaAdsManager + level + "?" + q.Encode()
}

func googleURL(page, accountID string, q url.Values) string {
	if id := strings.ReplaceAll(accountID, "-", ""); id != "" {
		q.Set("__c", id)
	}
	return googleAds + page + "?" + q.Encode()
}

func taboolaURL(accountID string, q url.Values) string {
	if accountID != "" {
		q.Set("accountId", accountID)
	}
	return taboolaAds + "?" + q.Encode()
}

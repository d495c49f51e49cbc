package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adscout/adscout/pkg/models"
)

func TestNormalizeWebsite(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare domain", "goodshop.fr", "https://goodshop.fr"},
		{"www stripped", "www.goodshop.fr", "https://goodshop.fr"},
		{"http upgraded", "http://goodshop.fr", "https://goodshop.fr"},
		{"path dropped", "https://goodshop.fr/products/ring", "https://goodshop.fr"},
		{"trailing slash", "goodshop.fr/", "https://goodshop.fr"},
		{"uppercase folded", "GOODSHOP.FR", "https://goodshop.fr"},
		{"subdomain kept", "shop.maison.fr", "https://shop.maison.fr"},
		{"social excluded", "facebook.com", ""},
		{"social subdomain excluded", "m.facebook.com", ""},
		{"shortener excluded", "bit.ly", ""},
		{"platform host excluded", "boutique.myshopify.com", ""},
		{"empty", "", ""},
		{"garbage", "not a domain", ""},
		{"no tld", "localhost", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeWebsite(tt.in))
		})
	}
}

func TestExtractWebsite(t *testing.T) {
	ads := []models.AdRecord{
		{AdID: "1", CreativeLinkCaptions: []string{"facebook.com"}},
		{AdID: "2", CreativeLinkCaptions: []string{"instagram.com", "www.realshop.com"}},
	}
	assert.Equal(t, "https://realshop.com", extractWebsite(ads))

	assert.Empty(t, extractWebsite([]models.AdRecord{{AdID: "3"}}))
}

func TestAPIAccumulator(t *testing.T) {
	var acc apiAccumulator
	acc.init(nil)

	acc.record(models.ChannelArchiveAPI, 100, false, false)
	acc.record(models.ChannelArchiveAPI, 300, true, true)
	acc.record(models.ChannelWebDirect, 50, false, false)
	acc.addCost(models.ChannelScraperAPI, 0.25)
	acc.record(models.ChannelScraperAPI, 80, false, false)

	snap := acc.snapshot()
	assert.EqualValues(t, 2, snap.Archive.Calls)
	assert.EqualValues(t, 1, snap.Archive.Errors)
	assert.EqualValues(t, 1, snap.Archive.RateLimitHits)
	assert.InDelta(t, 200, snap.Archive.AvgLatencyMS, 0.01)
	assert.EqualValues(t, 1, snap.Web.Calls)
	assert.InDelta(t, 0.25, snap.Scraper.Cost, 0.0001)
}

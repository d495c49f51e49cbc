package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adscout/adscout/pkg/models"
)

// HTTPConfig configures the archive REST client.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPClient talks to the ad-archive REST API. It maps HTTP failures onto
// the error taxonomy and never retries — policy lives in the orchestrator.
type HTTPClient struct {
	baseURL string
	timeout time.Duration

	// One http.Client per proxy URL, built lazily.
	clients map[string]*http.Client
}

// NewHTTPClient creates an archive client.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		clients: make(map[string]*http.Client),
	}
}

// wireAd is the archive's JSON shape for one advertisement.
type wireAd struct {
	ID             string `json:"id"`
	PageID         string `json:"page_id"`
	PageName       string `json:"page_name"`
	AdCreationTime string `json:"ad_creation_time"`
	EUTotalReach   struct {
		LowerBound json.Number `json:"lower_bound"`
		UpperBound json.Number `json:"upper_bound"`
	} `json:"eu_total_reach"`
	CreativeBodies       []string `json:"ad_creative_bodies"`
	CreativeLinkTitles   []string `json:"ad_creative_link_titles"`
	CreativeLinkCaptions []string `json:"ad_creative_link_captions"`
	SnapshotURL          string   `json:"ad_snapshot_url"`
	Currency             string   `json:"currency"`
	Languages            []string `json:"languages"`
	PublisherPlatforms   []string `json:"publisher_platforms"`
	TargetAges           string   `json:"target_ages"`
}

type wireResponse struct {
	Data   []wireAd `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// SearchByKeyword implements Client.
func (c *HTTPClient) SearchByKeyword(ctx context.Context, keyword string, countries, languages []string, cred models.CredentialRef) ([]models.AdRecord, error) {
	params := url.Values{
		"search_terms":         {keyword},
		"ad_reached_countries": {strings.Join(countries, ",")},
		"ad_active_status":     {"ACTIVE"},
	}
	if len(languages) > 0 {
		params.Set("languages", strings.Join(languages, ","))
	}
	return c.fetchAll(ctx, params, cred)
}

// GetPageAds implements Client.
func (c *HTTPClient) GetPageAds(ctx context.Context, pageID string, countries, languages []string, cred models.CredentialRef) ([]models.AdRecord, error) {
	params := url.Values{
		"search_page_ids":      {pageID},
		"ad_reached_countries": {strings.Join(countries, ",")},
		"ad_active_status":     {"ACTIVE"},
	}
	if len(languages) > 0 {
		params.Set("languages", strings.Join(languages, ","))
	}
	return c.fetchAll(ctx, params, cred)
}

// fetchAll pages through the archive result set.
func (c *HTTPClient) fetchAll(ctx context.Context, params url.Values, cred models.CredentialRef) ([]models.AdRecord, error) {
	params.Set("access_token", cred.Token)
	endpoint := c.baseURL + "/ads_archive?" + params.Encode()

	var out []models.AdRecord
	const maxPages = 10
	for page := 0; page < maxPages && endpoint != ""; page++ {
		resp, err := c.get(ctx, endpoint, cred.ProxyURL)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Data {
			rec, ok := toAdRecord(raw)
			if !ok {
				continue
			}
			out = append(out, rec)
		}
		endpoint = resp.Paging.Next
	}
	return out, nil
}

func (c *HTTPClient) get(ctx context.Context, endpoint, proxyURL string) (*wireResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, Fatal(fmt.Sprintf("building request: %v", err), err)
	}

	resp, err := c.clientFor(proxyURL).Do(req)
	if err != nil {
		return nil, Transient(fmt.Sprintf("archive request failed: %v", err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, Transient(fmt.Sprintf("reading archive response: %v", err), err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var parsed wireResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, Transient(fmt.Sprintf("decoding archive response: %v", err), err)
		}
		return &parsed, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, RateLimited("archive rate limit", retryAfter(resp))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, Fatal(fmt.Sprintf("archive rejected credential: HTTP %d", resp.StatusCode), nil)
	default:
		return nil, Transient(fmt.Sprintf("archive HTTP %d: %s", resp.StatusCode, truncateBody(body)), nil)
	}
}

// clientFor returns the http.Client for a proxy URL (cached).
func (c *HTTPClient) clientFor(proxyURL string) *http.Client {
	if client, ok := c.clients[proxyURL]; ok {
		return client
	}
	client := &http.Client{Timeout: c.timeout}
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			client.Transport = &http.Transport{Proxy: http.ProxyURL(parsed)}
		}
	}
	c.clients[proxyURL] = client
	return client
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func toAdRecord(raw wireAd) (models.AdRecord, bool) {
	if raw.ID == "" || raw.PageID == "" {
		return models.AdRecord{}, false
	}

	rec := models.AdRecord{
		AdID:                 raw.ID,
		PageID:               raw.PageID,
		PageName:             raw.PageName,
		CreativeBodies:       raw.CreativeBodies,
		CreativeLinkTitles:   raw.CreativeLinkTitles,
		CreativeLinkCaptions: raw.CreativeLinkCaptions,
		SnapshotURL:          raw.SnapshotURL,
		Currency:             raw.Currency,
		Languages:            raw.Languages,
		Platforms:            raw.PublisherPlatforms,
		Targeting:            raw.TargetAges,
	}

	if raw.AdCreationTime != "" {
		if t, err := time.Parse("2006-01-02", raw.AdCreationTime); err == nil {
			rec.CreationDate = t
		} else if t, err := time.Parse(time.RFC3339, raw.AdCreationTime); err == nil {
			rec.CreationDate = t
		}
	}

	if lower, err := raw.EUTotalReach.LowerBound.Int64(); err == nil {
		rec.Reach.Lower = lower
		rec.Reach.Value = lower
	}
	if upper, err := raw.EUTotalReach.UpperBound.Int64(); err == nil {
		rec.Reach.Upper = upper
	}

	return rec, true
}

func truncateBody(body []byte) string {
	const max = 200
	s := string(body)
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}

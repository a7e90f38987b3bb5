// Package newznab implements the Newznab and Torznab indexer APIs: search,
// RSS fetch, capability discovery, and release payload download.
package newznab

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

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/indexer/ratelimit"
	"github.com/sideline/sideline/internal/indexer/types"
	"github.com/sideline/sideline/internal/store"
)

const (
	modeSearch = "search"
	modeCaps   = "caps"

	userAgent       = "Sideline/1.0"
	maxResponseSize = 10 * 1024 * 1024
	maxDownloadSize = 50 * 1024 * 1024
)

// DefaultCategories is the sport-TV category set applied when an indexer
// has none configured. RSS fetches never go out without a category filter.
var DefaultCategories = []int{5060, 5070}

// Client talks to Newznab/Torznab endpoints. API keys on the indexers it
// receives must already be decrypted.
type Client struct {
	http   *http.Client
	pacer  *ratelimit.Pacer
	logger zerolog.Logger
}

// NewClient creates a client with its own request pacer.
func NewClient(logger zerolog.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: 30 * time.Second},
		pacer:  ratelimit.NewPacer(logger),
		logger: logger.With().Str("component", "newznab").Logger(),
	}
}

// SetTimeout overrides the per-request HTTP timeout. Zero or negative
// values are ignored.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.http.Timeout = d
	}
}

// Pacer returns the client's request pacer. Callers that space their own
// indexer calls share it so a single schedule governs each indexer.
func (c *Client) Pacer() *ratelimit.Pacer {
	return c.pacer
}

// Search runs a text query against the indexer and returns parsed releases.
func (c *Client) Search(ctx context.Context, ix store.Indexer, query string, maxResults int) ([]types.ReleaseInfo, error) {
	u, err := apiURL(ix, modeSearch, query, maxResults)
	if err != nil {
		return nil, err
	}

	body, err := c.fetch(ctx, ix, u)
	if err != nil {
		return nil, err
	}

	releases, err := parseResponse(body, ix)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("indexer", ix.Name).
		Str("query", query).
		Int("results", len(releases)).
		Msg("Search complete")
	return releases, nil
}

// FetchRSS pulls the indexer's latest releases without a query term.
func (c *Client) FetchRSS(ctx context.Context, ix store.Indexer, maxResults int) ([]types.ReleaseInfo, error) {
	u, err := apiURL(ix, modeSearch, "", maxResults)
	if err != nil {
		return nil, err
	}

	body, err := c.fetch(ctx, ix, u)
	if err != nil {
		return nil, err
	}

	releases, err := parseResponse(body, ix)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("indexer", ix.Name).
		Int("results", len(releases)).
		Msg("RSS fetch complete")
	return releases, nil
}

// FetchCaps queries the indexer's t=caps endpoint. Used by the connection
// test and to surface the category tree in the UI.
func (c *Client) FetchCaps(ctx context.Context, ix store.Indexer) (types.Capabilities, error) {
	u, err := apiURL(ix, modeCaps, "", 0)
	if err != nil {
		return types.Capabilities{}, err
	}

	body, err := c.fetch(ctx, ix, u)
	if err != nil {
		return types.Capabilities{}, err
	}
	return parseCaps(body, ix)
}

// Download fetches the release payload (.torrent or .nzb) behind a
// download URL. Magnet links carry no payload and are rejected.
func (c *Client) Download(ctx context.Context, ix store.Indexer, downloadURL string) ([]byte, error) {
	if strings.HasPrefix(strings.ToLower(downloadURL), "magnet:") {
		return nil, fmt.Errorf("magnet link has no payload to download")
	}

	if err := c.pacer.Wait(ctx, ix.ID, ix.RequestDelayMs); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/x-bittorrent,application/x-nzb,application/octet-stream,*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := translateStatus(ix, resp); err != nil {
		return nil, err
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize))
}

// Forget drops per-indexer pacing state, typically after deletion.
func (c *Client) Forget(indexerID int64) {
	c.pacer.Forget(indexerID)
}

func (c *Client) fetch(ctx context.Context, ix store.Indexer, u string) ([]byte, error) {
	if err := c.pacer.Wait(ctx, ix.ID, ix.RequestDelayMs); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/xml,text/xml,application/rss+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := translateStatus(ix, resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// translateStatus maps HTTP failures onto the health model: 429 becomes a
// rate-limit with the server's Retry-After, everything else non-2xx a
// request error.
func translateStatus(ix store.Indexer, resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &types.RateLimitedError{
			IndexerName: ix.Name,
			RetryAfter:  parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &types.RequestError{IndexerName: ix.Name, StatusCode: resp.StatusCode}
	}
	return nil
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms. Zero
// means the server gave no usable hint.
func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func apiURL(ix store.Indexer, mode, query string, maxResults int) (string, error) {
	base, err := url.Parse(strings.TrimRight(ix.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", ix.BaseURL, err)
	}

	apiPath := ix.APIPath
	if apiPath == "" {
		apiPath = "/api"
	}
	base.Path = strings.TrimRight(base.Path, "/") + apiPath

	params := url.Values{}
	params.Set("t", mode)
	if ix.APIKey != "" {
		params.Set("apikey", ix.APIKey)
	}
	if mode == modeSearch {
		if query != "" {
			params.Set("q", query)
		}
		params.Set("cat", joinCategories(categoriesFor(ix.Categories)))
		// Jackett and friends omit seeders/infohash unless extended output
		// is requested.
		params.Set("extended", "1")
		if maxResults > 0 {
			params.Set("limit", strconv.Itoa(maxResults))
		}
	}
	base.RawQuery = params.Encode()
	return base.String(), nil
}

func categoriesFor(configured string) []int {
	if configured != "" {
		var cats []int
		if err := json.Unmarshal([]byte(configured), &cats); err == nil && len(cats) > 0 {
			return cats
		}
	}
	return append([]int(nil), DefaultCategories...)
}

func joinCategories(cats []int) string {
	parts := make([]string, len(cats))
	for i, cat := range cats {
		parts[i] = strconv.Itoa(cat)
	}
	return strings.Join(parts, ",")
}

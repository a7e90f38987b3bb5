// Package qbittorrent implements a qBittorrent WebUI API v2 client.
package qbittorrent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/anacrolix/torrent/metainfo"

	"github.com/sideline/sideline/internal/downloader/types"
)

// qBittorrent reports 8640000 seconds when the ETA is unknown.
const etaInfinity = 8640000

// Config holds the configuration for a qBittorrent client.
type Config struct {
	Host     string
	Port     int
	UseSSL   bool
	URLBase  string
	Username string
	Password string
	Category string
}

// Client implements a qBittorrent WebUI client that satisfies the
// types.TorrentClient interface. The SID session cookie is cached and
// refreshed once on a 403.
type Client struct {
	config     Config
	httpClient *http.Client

	mu  sync.Mutex
	sid string
}

var _ types.TorrentClient = (*Client)(nil)

// New creates a new qBittorrent client.
func New(cfg Config) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewFromConfig creates a client from a ClientConfig.
func NewFromConfig(cfg *types.ClientConfig) *Client {
	return New(Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		UseSSL:   cfg.UseSSL,
		URLBase:  cfg.URLBase,
		Username: cfg.Username,
		Password: cfg.Password,
		Category: cfg.Category,
	})
}

// Type returns the client type.
func (c *Client) Type() types.ClientType {
	return types.ClientTypeQBittorrent
}

// Protocol returns the protocol.
func (c *Client) Protocol() types.Protocol {
	return types.ProtocolTorrent
}

// Test verifies the client connection.
func (c *Client) Test(ctx context.Context) error {
	_, err := c.get(ctx, "/api/v2/app/version", nil)
	return err
}

// Add adds a torrent from a URL, magnet link, or raw file content and
// returns the infohash when it can be determined.
func (c *Client) Add(ctx context.Context, opts types.AddOptions) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	hash := ""
	switch {
	case len(opts.FileContent) > 0:
		part, err := form.CreateFormFile("torrents", "release.torrent")
		if err != nil {
			return "", fmt.Errorf("failed to build upload form: %w", err)
		}
		if _, err := part.Write(opts.FileContent); err != nil {
			return "", fmt.Errorf("failed to build upload form: %w", err)
		}
		hash = hashFromTorrent(opts.FileContent)
	case opts.URL != "":
		if err := form.WriteField("urls", opts.URL); err != nil {
			return "", fmt.Errorf("failed to build upload form: %w", err)
		}
		hash = extractHashFromMagnet(opts.URL)
	default:
		return "", fmt.Errorf("either URL or FileContent must be provided")
	}

	category := opts.Category
	if category == "" {
		category = c.config.Category
	}
	if category != "" {
		if err := form.WriteField("category", category); err != nil {
			return "", fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	if opts.DownloadDir != "" {
		if err := form.WriteField("savepath", opts.DownloadDir); err != nil {
			return "", fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	if opts.Paused {
		// Both spellings: v4 reads "paused", v5 reads "stopped".
		if err := form.WriteField("paused", "true"); err != nil {
			return "", fmt.Errorf("failed to build upload form: %w", err)
		}
		if err := form.WriteField("stopped", "true"); err != nil {
			return "", fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v2/torrents/add", form.FormDataContentType(), body.Bytes())
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(string(resp), "Ok") {
		return "", fmt.Errorf("qbittorrent rejected torrent: %s", strings.TrimSpace(string(resp)))
	}
	return hash, nil
}

// List returns all torrents, optionally scoped to the configured category.
func (c *Client) List(ctx context.Context) ([]types.DownloadItem, error) {
	params := url.Values{}
	if c.config.Category != "" {
		params.Set("category", c.config.Category)
	}

	payload, err := c.get(ctx, "/api/v2/torrents/info", params)
	if err != nil {
		return nil, err
	}

	var torrents []qbitTorrent
	if err := json.Unmarshal(payload, &torrents); err != nil {
		return nil, fmt.Errorf("failed to parse torrent list: %w", err)
	}

	items := make([]types.DownloadItem, 0, len(torrents))
	for i := range torrents {
		items = append(items, torrents[i].toItem())
	}
	return items, nil
}

// Get retrieves a specific torrent by infohash.
func (c *Client) Get(ctx context.Context, id string) (*types.DownloadItem, error) {
	params := url.Values{}
	params.Set("hashes", strings.ToLower(id))

	payload, err := c.get(ctx, "/api/v2/torrents/info", params)
	if err != nil {
		return nil, err
	}

	var torrents []qbitTorrent
	if err := json.Unmarshal(payload, &torrents); err != nil {
		return nil, fmt.Errorf("failed to parse torrent list: %w", err)
	}
	if len(torrents) == 0 {
		return nil, types.ErrNotFound
	}
	item := torrents[0].toItem()
	return &item, nil
}

// Remove removes a torrent, optionally deleting its data.
func (c *Client) Remove(ctx context.Context, id string, deleteFiles bool) error {
	form := url.Values{}
	form.Set("hashes", strings.ToLower(id))
	form.Set("deleteFiles", fmt.Sprintf("%t", deleteFiles))
	return c.postForm(ctx, "/api/v2/torrents/delete", form)
}

// Pause stops a torrent.
func (c *Client) Pause(ctx context.Context, id string) error {
	form := url.Values{}
	form.Set("hashes", strings.ToLower(id))
	return c.postForm(ctx, "/api/v2/torrents/pause", form)
}

// Resume starts a torrent.
func (c *Client) Resume(ctx context.Context, id string) error {
	form := url.Values{}
	form.Set("hashes", strings.ToLower(id))
	return c.postForm(ctx, "/api/v2/torrents/resume", form)
}

// FindByTitle locates a torrent by display name within a category.
func (c *Client) FindByTitle(ctx context.Context, title, category string) (*types.DownloadItem, error) {
	params := url.Values{}
	if category != "" {
		params.Set("category", category)
	}

	payload, err := c.get(ctx, "/api/v2/torrents/info", params)
	if err != nil {
		return nil, err
	}

	var torrents []qbitTorrent
	if err := json.Unmarshal(payload, &torrents); err != nil {
		return nil, fmt.Errorf("failed to parse torrent list: %w", err)
	}
	for i := range torrents {
		if strings.EqualFold(torrents[i].Name, title) {
			item := torrents[i].toItem()
			return &item, nil
		}
	}
	return nil, types.ErrNotFound
}

// GetDownloadDir returns the default save path.
func (c *Client) GetDownloadDir(ctx context.Context) (string, error) {
	payload, err := c.get(ctx, "/api/v2/app/preferences", nil)
	if err != nil {
		return "", err
	}

	var prefs qbitPreferences
	if err := json.Unmarshal(payload, &prefs); err != nil {
		return "", fmt.Errorf("failed to parse preferences: %w", err)
	}
	return prefs.SavePath, nil
}

// SetSeedLimits configures share limits for a torrent.
func (c *Client) SetSeedLimits(ctx context.Context, id string, ratio float64, seedTime time.Duration) error {
	form := url.Values{}
	form.Set("hashes", strings.ToLower(id))
	if ratio > 0 {
		form.Set("ratioLimit", fmt.Sprintf("%.2f", ratio))
	} else {
		form.Set("ratioLimit", "-2") // global default
	}
	if seedTime > 0 {
		form.Set("seedingTimeLimit", fmt.Sprintf("%d", int(seedTime.Minutes())))
	} else {
		form.Set("seedingTimeLimit", "-2")
	}
	return c.postForm(ctx, "/api/v2/torrents/setShareLimits", form)
}

// qbitTorrent is the subset of /torrents/info fields this client reads.
type qbitTorrent struct {
	Hash        string  `json:"hash"`
	Name        string  `json:"name"`
	Size        int64   `json:"size"`
	Progress    float64 `json:"progress"` // 0-1
	ETA         int64   `json:"eta"`
	State       string  `json:"state"`
	Category    string  `json:"category"`
	SavePath    string  `json:"save_path"`
	ContentPath string  `json:"content_path"`
	Ratio       float64 `json:"ratio"`
	DLSpeed     int64   `json:"dlspeed"`
	UPSpeed     int64   `json:"upspeed"`
	Completed   int64   `json:"completed"`
	AddedOn     int64   `json:"added_on"`
}

type qbitPreferences struct {
	SavePath string `json:"save_path"`
}

func (t *qbitTorrent) toItem() types.DownloadItem {
	eta := t.ETA
	if eta >= etaInfinity {
		eta = -1
	}

	item := types.DownloadItem{
		ID:            t.Hash,
		Name:          t.Name,
		InfoHash:      strings.ToLower(t.Hash),
		Status:        mapStatus(t.State),
		Progress:      t.Progress * 100,
		Size:          t.Size,
		Downloaded:    t.Completed,
		DownloadSpeed: t.DLSpeed,
		ETASeconds:    eta,
		Category:      t.Category,
		DownloadDir:   t.SavePath,
		OutputPath:    t.ContentPath,
	}
	if t.AddedOn > 0 {
		item.AddedAt = time.Unix(t.AddedOn, 0).UTC()
	}
	if item.Status == types.StatusFailed {
		item.Error = fmt.Sprintf("qbittorrent state %s", t.State)
	}
	return item
}

// mapStatus maps qBittorrent states to normalized statuses. Stall
// classification is the lifecycle monitor's call, so stalledDL stays a
// plain download here.
func mapStatus(state string) types.Status {
	switch state {
	case "error", "missingFiles":
		return types.StatusFailed
	case "pausedDL", "stoppedDL":
		return types.StatusPaused
	case "queuedDL", "checkingResumeData", "metaDL", "forcedMetaDL", "allocating":
		return types.StatusQueued
	case "downloading", "stalledDL", "forcedDL", "checkingDL", "moving":
		return types.StatusDownloading
	case "uploading", "stalledUP", "queuedUP", "forcedUP", "checkingUP", "pausedUP", "stoppedUP":
		return types.StatusCompleted
	default:
		return types.StatusUnknown
	}
}

// hashFromTorrent computes the infohash of a raw torrent payload. The add
// endpoint returns nothing, so this is the only way to track the torrent
// without a name search.
func hashFromTorrent(content []byte) string {
	mi, err := metainfo.Load(bytes.NewReader(content))
	if err != nil {
		return ""
	}
	return strings.ToLower(mi.HashInfoBytes().HexString())
}

// extractHashFromMagnet pulls the btih value out of a magnet link.
func extractHashFromMagnet(magnet string) string {
	if !strings.HasPrefix(magnet, "magnet:") {
		return ""
	}
	u, err := url.Parse(magnet)
	if err != nil {
		return ""
	}
	for _, xt := range u.Query()["xt"] {
		if h, ok := strings.CutPrefix(xt, "urn:btih:"); ok && h != "" {
			return strings.ToLower(h)
		}
	}
	return ""
}

func (c *Client) baseURL() string {
	scheme := "http"
	if c.config.UseSSL {
		scheme = "https"
	}
	base := fmt.Sprintf("%s://%s:%d", scheme, c.config.Host, c.config.Port)
	if c.config.URLBase != "" {
		base += "/" + strings.Trim(c.config.URLBase, "/")
	}
	return base
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, path, "", nil)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) error {
	_, err := c.do(ctx, http.MethodPost, path, "application/x-www-form-urlencoded", []byte(form.Encode()))
	return err
}

// do issues an authenticated request, logging in on demand and retrying
// exactly once when the cached session has expired.
func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	if err := c.ensureSession(ctx, false); err != nil {
		return nil, err
	}

	payload, status, err := c.roundTrip(ctx, method, path, contentType, body)
	if err != nil {
		return nil, err
	}
	if status == http.StatusForbidden {
		if err := c.ensureSession(ctx, true); err != nil {
			return nil, err
		}
		payload, status, err = c.roundTrip(ctx, method, path, contentType, body)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, types.ErrAuthFailed
	case status < 200 || status > 299:
		return nil, fmt.Errorf("qbittorrent returned status %d", status)
	}
	return payload, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path, contentType string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.mu.Lock()
	if c.sid != "" {
		req.AddCookie(&http.Cookie{Name: "SID", Value: c.sid})
	}
	c.mu.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}
	return payload, resp.StatusCode, nil
}

// ensureSession logs in when credentials are configured and no usable
// session cookie is cached. force discards the cached cookie first.
func (c *Client) ensureSession(ctx context.Context, force bool) error {
	if c.config.Username == "" {
		return nil
	}

	c.mu.Lock()
	if force {
		c.sid = ""
	}
	if c.sid != "" {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	form := url.Values{}
	form.Set("username", c.config.Username)
	form.Set("password", c.config.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/api/v2/auth/login",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return types.ErrAuthFailed
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "SID" {
			c.mu.Lock()
			c.sid = cookie.Value
			c.mu.Unlock()
			return nil
		}
	}
	return types.ErrAuthFailed
}

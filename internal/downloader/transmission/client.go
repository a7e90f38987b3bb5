// Package transmission implements a Transmission RPC client.
package transmission

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/sideline/sideline/internal/downloader/types"
)

const sessionIDHeader = "X-Transmission-Session-Id"

// torrentFields is the field set requested from torrent-get.
var torrentFields = []string{
	"id", "name", "status", "percentDone",
	"totalSize", "downloadDir", "hashString",
	"eta", "rateDownload", "addedDate",
	"downloadedEver", "sizeWhenDone", "error", "errorString",
}

// Config holds the configuration for a Transmission client.
type Config struct {
	Host     string
	Port     int
	UseSSL   bool
	URLBase  string
	Username string
	Password string
	Category string
}

// Client implements a Transmission RPC client that satisfies the
// types.TorrentClient interface. Transmission has no label support worth
// relying on, so the category becomes a subdirectory under the default
// download directory.
type Client struct {
	config     Config
	httpClient *http.Client

	mu        sync.Mutex
	sessionID string
}

var _ types.TorrentClient = (*Client)(nil)

// New creates a new Transmission client.
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
	return types.ClientTypeTransmission
}

// Protocol returns the protocol.
func (c *Client) Protocol() types.Protocol {
	return types.ProtocolTorrent
}

// Test verifies the client connection.
func (c *Client) Test(ctx context.Context) error {
	_, err := c.call(ctx, "session-get", nil)
	return err
}

// Add adds a torrent from a URL, magnet link, or raw file content and
// returns its infohash.
func (c *Client) Add(ctx context.Context, opts types.AddOptions) (string, error) {
	args := make(map[string]interface{})

	switch {
	case len(opts.FileContent) > 0:
		args["metainfo"] = base64.StdEncoding.EncodeToString(opts.FileContent)
	case opts.URL != "":
		args["filename"] = opts.URL
	default:
		return "", fmt.Errorf("either URL or FileContent must be provided")
	}

	dir := opts.DownloadDir
	if dir == "" {
		category := opts.Category
		if category == "" {
			category = c.config.Category
		}
		if category != "" {
			base, err := c.GetDownloadDir(ctx)
			if err == nil && base != "" {
				dir = path.Join(strings.ReplaceAll(base, "\\", "/"), category)
			}
		}
	}
	if dir != "" {
		args["download-dir"] = dir
	}
	if opts.Paused {
		args["paused"] = true
	}

	resp, err := c.call(ctx, "torrent-add", args)
	if err != nil {
		return "", err
	}
	return extractAddedHash(resp)
}

// List returns all torrents.
func (c *Client) List(ctx context.Context) ([]types.DownloadItem, error) {
	resp, err := c.call(ctx, "torrent-get", map[string]interface{}{"fields": torrentFields})
	if err != nil {
		return nil, err
	}

	torrentsRaw, ok := resp.Arguments["torrents"].([]interface{})
	if !ok {
		return []types.DownloadItem{}, nil
	}

	items := make([]types.DownloadItem, 0, len(torrentsRaw))
	for _, t := range torrentsRaw {
		torrent, ok := t.(map[string]interface{})
		if !ok {
			continue
		}
		items = append(items, mapToDownloadItem(torrent))
	}
	return items, nil
}

// Get retrieves a specific torrent by infohash.
func (c *Client) Get(ctx context.Context, id string) (*types.DownloadItem, error) {
	args := map[string]interface{}{
		"ids":    []string{id},
		"fields": torrentFields,
	}

	resp, err := c.call(ctx, "torrent-get", args)
	if err != nil {
		return nil, err
	}

	torrentsRaw, ok := resp.Arguments["torrents"].([]interface{})
	if !ok || len(torrentsRaw) == 0 {
		return nil, types.ErrNotFound
	}
	torrent, ok := torrentsRaw[0].(map[string]interface{})
	if !ok {
		return nil, types.ErrNotFound
	}

	item := mapToDownloadItem(torrent)
	return &item, nil
}

// Remove removes a torrent, optionally deleting its data.
func (c *Client) Remove(ctx context.Context, id string, deleteFiles bool) error {
	args := map[string]interface{}{
		"ids":               []string{id},
		"delete-local-data": deleteFiles,
	}
	_, err := c.call(ctx, "torrent-remove", args)
	return err
}

// Pause stops a torrent.
func (c *Client) Pause(ctx context.Context, id string) error {
	_, err := c.call(ctx, "torrent-stop", map[string]interface{}{"ids": []string{id}})
	return err
}

// Resume starts a torrent.
func (c *Client) Resume(ctx context.Context, id string) error {
	_, err := c.call(ctx, "torrent-start", map[string]interface{}{"ids": []string{id}})
	return err
}

// FindByTitle locates a torrent by display name.
func (c *Client) FindByTitle(ctx context.Context, title, _ string) (*types.DownloadItem, error) {
	items, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if strings.EqualFold(items[i].Name, title) {
			return &items[i], nil
		}
	}
	return nil, types.ErrNotFound
}

// GetDownloadDir returns the default download directory.
func (c *Client) GetDownloadDir(ctx context.Context) (string, error) {
	resp, err := c.call(ctx, "session-get", nil)
	if err != nil {
		return "", err
	}
	if downloadDir, ok := resp.Arguments["download-dir"].(string); ok {
		return downloadDir, nil
	}
	return "", fmt.Errorf("download-dir not found in session response")
}

// SetSeedLimits configures seed ratio/time limits for a torrent.
func (c *Client) SetSeedLimits(ctx context.Context, id string, ratio float64, seedTime time.Duration) error {
	args := map[string]interface{}{
		"ids": []string{id},
	}
	if ratio > 0 {
		args["seedRatioLimit"] = ratio
		args["seedRatioMode"] = 1 // torrent-specific limit
	}
	if seedTime > 0 {
		args["seedIdleLimit"] = int(seedTime.Minutes())
		args["seedIdleMode"] = 1
	}
	_, err := c.call(ctx, "torrent-set", args)
	return err
}

// rpcRequest represents a Transmission RPC request.
type rpcRequest struct {
	Method    string                 `json:"method"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// rpcResponse represents a Transmission RPC response.
type rpcResponse struct {
	Result    string                 `json:"result"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// call issues an RPC request, absorbing at most one 409 session-id
// handshake.
func (c *Client) call(ctx context.Context, method string, args map[string]interface{}) (*rpcResponse, error) {
	for attempt := 0; ; attempt++ {
		req, err := c.buildRPCRequest(ctx, method, args)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}

		if resp.StatusCode == http.StatusConflict && attempt == 0 {
			sid := resp.Header.Get(sessionIDHeader)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if sid == "" {
				return nil, fmt.Errorf("received 409 but no session ID in response")
			}
			c.mu.Lock()
			c.sessionID = sid
			c.mu.Unlock()
			continue
		}

		parsed, err := parseRPCResponse(resp)
		resp.Body.Close()
		return parsed, err
	}
}

func (c *Client) buildRPCRequest(ctx context.Context, method string, args map[string]interface{}) (*http.Request, error) {
	scheme := "http"
	if c.config.UseSSL {
		scheme = "https"
	}
	rpcPath := "/transmission/rpc"
	if c.config.URLBase != "" {
		rpcPath = "/" + strings.Trim(c.config.URLBase, "/") + "/rpc"
	}
	url := fmt.Sprintf("%s://%s:%d%s", scheme, c.config.Host, c.config.Port, rpcPath)

	body, err := json.Marshal(rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	if c.sessionID != "" {
		req.Header.Set(sessionIDHeader, c.sessionID)
	}
	c.mu.Unlock()
	if c.config.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.config.Username + ":" + c.config.Password))
		req.Header.Set("Authorization", "Basic "+auth)
	}
	return req, nil
}

func parseRPCResponse(resp *http.Response) (*rpcResponse, error) {
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, types.ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if rpcResp.Result != "success" {
		return nil, fmt.Errorf("RPC error: %s", rpcResp.Result)
	}
	return &rpcResp, nil
}

// mapToDownloadItem converts a Transmission torrent response to a DownloadItem.
func mapToDownloadItem(torrent map[string]interface{}) types.DownloadItem {
	hash := strings.ToLower(getString(torrent, "hashString"))
	eta := int64(getFloat(torrent, "eta"))
	if eta < 0 {
		eta = -1
	}

	item := types.DownloadItem{
		ID:            hash,
		Name:          getString(torrent, "name"),
		InfoHash:      hash,
		Status:        mapStatus(getInt(torrent, "status")),
		Progress:      getFloat(torrent, "percentDone") * 100,
		Size:          int64(getFloat(torrent, "sizeWhenDone")),
		Downloaded:    int64(getFloat(torrent, "downloadedEver")),
		DownloadSpeed: int64(getFloat(torrent, "rateDownload")),
		ETASeconds:    eta,
		DownloadDir:   getString(torrent, "downloadDir"),
	}
	if added := getInt(torrent, "addedDate"); added > 0 {
		item.AddedAt = time.Unix(int64(added), 0).UTC()
	}

	// Transmission error codes: 1 tracker warning, 2 tracker error,
	// 3 local error. Only a local error dooms the download.
	switch getInt(torrent, "error") {
	case 0:
	case 3:
		item.Status = types.StatusFailed
		item.Error = getString(torrent, "errorString")
	default:
		item.Status = types.StatusWarning
		item.Error = getString(torrent, "errorString")
	}
	return item
}

// extractAddedHash extracts the infohash from a torrent-add response.
func extractAddedHash(resp *rpcResponse) (string, error) {
	for _, key := range []string{"torrent-added", "torrent-duplicate"} {
		added, ok := resp.Arguments[key].(map[string]interface{})
		if !ok {
			continue
		}
		if hashString, ok := added["hashString"].(string); ok && hashString != "" {
			return strings.ToLower(hashString), nil
		}
	}
	return "", fmt.Errorf("could not extract torrent hash from response")
}

// mapStatus maps Transmission status codes to normalized statuses.
func mapStatus(status int) types.Status {
	switch status {
	case 0: // stopped
		return types.StatusPaused
	case 1, 3: // queued to verify, queued to download
		return types.StatusQueued
	case 2, 4: // verifying, downloading
		return types.StatusDownloading
	case 5, 6: // queued to seed, seeding
		return types.StatusCompleted
	default:
		return types.StatusUnknown
	}
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}

func getFloat(m map[string]interface{}, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}

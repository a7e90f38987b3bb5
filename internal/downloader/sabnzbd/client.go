// Package sabnzbd implements a SABnzbd JSON API client.
package sabnzbd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sideline/sideline/internal/downloader/types"
)

// Config holds the configuration for a SABnzbd client.
type Config struct {
	Host     string
	Port     int
	UseSSL   bool
	URLBase  string
	APIKey   string
	Category string
}

// Client implements a SABnzbd client that satisfies the types.Client
// interface. Download ids are SABnzbd nzo ids; items move from the queue
// to the history when they finish, so lookups scan both.
type Client struct {
	config     Config
	httpClient *http.Client
}

var _ types.Client = (*Client)(nil)

// New creates a new SABnzbd client.
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
		APIKey:   cfg.APIKey,
		Category: cfg.Category,
	})
}

// Type returns the client type.
func (c *Client) Type() types.ClientType {
	return types.ClientTypeSABnzbd
}

// Protocol returns the protocol.
func (c *Client) Protocol() types.Protocol {
	return types.ProtocolUsenet
}

// Test verifies the client connection. mode=version answers without an
// API key, so the queue is fetched instead to prove the key works.
func (c *Client) Test(ctx context.Context) error {
	params := url.Values{}
	params.Set("limit", "1")
	var resp sabQueueResponse
	return c.apiCall(ctx, "queue", params, &resp)
}

// Add submits an NZB from a URL or raw file content and returns the nzo id.
func (c *Client) Add(ctx context.Context, opts types.AddOptions) (string, error) {
	category := opts.Category
	if category == "" {
		category = c.config.Category
	}

	var resp sabAddResponse
	switch {
	case len(opts.FileContent) > 0:
		if err := c.postNZB(ctx, opts, category, &resp); err != nil {
			return "", err
		}
	case opts.URL != "":
		params := url.Values{}
		params.Set("name", opts.URL)
		if opts.Name != "" {
			params.Set("nzbname", opts.Name)
		}
		if category != "" {
			params.Set("cat", category)
		}
		if opts.Paused {
			params.Set("priority", "-2")
		}
		if err := c.apiCall(ctx, "addurl", params, &resp); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("either URL or FileContent must be provided")
	}

	if len(resp.NzoIDs) == 0 {
		return "", fmt.Errorf("sabnzbd accepted the nzb but returned no nzo id")
	}
	return resp.NzoIDs[0], nil
}

// List returns all queue and history entries.
func (c *Client) List(ctx context.Context) ([]types.DownloadItem, error) {
	queue, err := c.fetchQueue(ctx)
	if err != nil {
		return nil, err
	}
	history, err := c.fetchHistory(ctx, "")
	if err != nil {
		return nil, err
	}

	items := make([]types.DownloadItem, 0, len(queue.Slots)+len(history.Slots))
	for i := range queue.Slots {
		items = append(items, queue.Slots[i].toItem())
	}
	for i := range history.Slots {
		items = append(items, history.Slots[i].toItem())
	}
	return items, nil
}

// Get retrieves a download by nzo id, checking the queue first and the
// history second.
func (c *Client) Get(ctx context.Context, id string) (*types.DownloadItem, error) {
	queue, err := c.fetchQueue(ctx)
	if err != nil {
		return nil, err
	}
	for i := range queue.Slots {
		if queue.Slots[i].NzoID == id {
			item := queue.Slots[i].toItem()
			return &item, nil
		}
	}

	history, err := c.fetchHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range history.Slots {
		if history.Slots[i].NzoID == id {
			item := history.Slots[i].toItem()
			return &item, nil
		}
	}
	return nil, types.ErrNotFound
}

// Remove deletes a download from the queue or the history.
func (c *Client) Remove(ctx context.Context, id string, deleteFiles bool) error {
	params := url.Values{}
	params.Set("name", "delete")
	params.Set("value", id)
	if deleteFiles {
		params.Set("del_files", "1")
	}

	// Queue first. A miss reports status false, which means the item
	// already moved to the history.
	var resp sabStatusResponse
	if err := c.apiCall(ctx, "queue", params, &resp); err == nil && resp.ok() {
		return nil
	}
	if err := c.apiCall(ctx, "history", params, &resp); err != nil {
		return err
	}
	if !resp.ok() {
		return types.ErrNotFound
	}
	return nil
}

// Pause pauses a queue entry.
func (c *Client) Pause(ctx context.Context, id string) error {
	params := url.Values{}
	params.Set("name", "pause")
	params.Set("value", id)
	var resp sabStatusResponse
	return c.apiCall(ctx, "queue", params, &resp)
}

// Resume resumes a queue entry.
func (c *Client) Resume(ctx context.Context, id string) error {
	params := url.Values{}
	params.Set("name", "resume")
	params.Set("value", id)
	var resp sabStatusResponse
	return c.apiCall(ctx, "queue", params, &resp)
}

// FindByTitle locates a download by its job name within a category.
func (c *Client) FindByTitle(ctx context.Context, title, category string) (*types.DownloadItem, error) {
	queue, err := c.fetchQueue(ctx)
	if err != nil {
		return nil, err
	}
	for i := range queue.Slots {
		slot := &queue.Slots[i]
		if category != "" && !strings.EqualFold(slot.Cat, category) {
			continue
		}
		if strings.EqualFold(slot.Filename, title) {
			item := slot.toItem()
			return &item, nil
		}
	}

	history, err := c.fetchHistory(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range history.Slots {
		slot := &history.Slots[i]
		if category != "" && !strings.EqualFold(slot.Category, category) {
			continue
		}
		if strings.EqualFold(slot.Name, title) {
			item := slot.toItem()
			return &item, nil
		}
	}
	return nil, types.ErrNotFound
}

// GetDownloadDir returns the configured completed-download directory.
func (c *Client) GetDownloadDir(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("section", "misc")

	var resp sabConfigResponse
	if err := c.apiCall(ctx, "get_config", params, &resp); err != nil {
		return "", err
	}
	return resp.Config.Misc.CompleteDir, nil
}

func (c *Client) fetchQueue(ctx context.Context) (*sabQueue, error) {
	var resp sabQueueResponse
	if err := c.apiCall(ctx, "queue", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Queue, nil
}

// fetchHistory returns history slots, optionally filtered to one nzo id.
func (c *Client) fetchHistory(ctx context.Context, nzoID string) (*sabHistory, error) {
	params := url.Values{}
	if nzoID != "" {
		params.Set("nzo_ids", nzoID)
	}
	var resp sabHistoryResponse
	if err := c.apiCall(ctx, "history", params, &resp); err != nil {
		return nil, err
	}
	return &resp.History, nil
}

type sabQueueResponse struct {
	Queue sabQueue `json:"queue"`
}

type sabQueue struct {
	Slots []sabQueueSlot `json:"slots"`
}

// sabQueueSlot is a queue entry. SABnzbd serializes its numbers as
// strings.
type sabQueueSlot struct {
	NzoID      string `json:"nzo_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Cat        string `json:"cat"`
	MB         string `json:"mb"`
	MBLeft     string `json:"mbleft"`
	Percentage string `json:"percentage"`
	Timeleft   string `json:"timeleft"`
}

func (s *sabQueueSlot) toItem() types.DownloadItem {
	size := int64(parseFloat(s.MB) * 1024 * 1024)
	left := int64(parseFloat(s.MBLeft) * 1024 * 1024)

	return types.DownloadItem{
		ID:         s.NzoID,
		Name:       s.Filename,
		Status:     mapStatus(s.Status),
		Progress:   parseFloat(s.Percentage),
		Size:       size,
		Downloaded: size - left,
		ETASeconds: parseTimeleft(s.Timeleft),
		Category:   s.Cat,
	}
}

type sabHistoryResponse struct {
	History sabHistory `json:"history"`
}

type sabHistory struct {
	Slots []sabHistorySlot `json:"slots"`
}

type sabHistorySlot struct {
	NzoID       string `json:"nzo_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	FailMessage string `json:"fail_message"`
	Storage     string `json:"storage"`
	Bytes       int64  `json:"bytes"`
	Completed   int64  `json:"completed"`
}

func (s *sabHistorySlot) toItem() types.DownloadItem {
	item := types.DownloadItem{
		ID:         s.NzoID,
		Name:       s.Name,
		Status:     mapStatus(s.Status),
		Size:       s.Bytes,
		Category:   s.Category,
		OutputPath: s.Storage,
		Error:      s.FailMessage,
	}
	if item.Status == types.StatusCompleted {
		item.Progress = 100
		item.Downloaded = s.Bytes
	}
	if s.Completed > 0 {
		item.AddedAt = time.Unix(s.Completed, 0).UTC()
	}
	return item
}

type sabAddResponse struct {
	Status bool     `json:"status"`
	NzoIDs []string `json:"nzo_ids"`
}

type sabStatusResponse struct {
	Status *bool `json:"status"`
}

func (r *sabStatusResponse) ok() bool {
	return r.Status != nil && *r.Status
}

type sabConfigResponse struct {
	Config struct {
		Misc struct {
			CompleteDir string `json:"complete_dir"`
		} `json:"misc"`
	} `json:"config"`
}

// sabError is the envelope SABnzbd wraps failures in regardless of mode.
type sabError struct {
	Status *bool  `json:"status"`
	Error  string `json:"error"`
}

// mapStatus maps SABnzbd states to normalized statuses. Post-processing
// states stay downloading: the files are not importable yet.
func mapStatus(status string) types.Status {
	switch strings.ToLower(status) {
	case "queued", "grabbing", "propagating", "checking":
		return types.StatusQueued
	case "paused":
		return types.StatusPaused
	case "downloading", "fetching", "quickcheck", "verifying", "repairing", "extracting", "moving", "running":
		return types.StatusDownloading
	case "completed":
		return types.StatusCompleted
	case "failed":
		return types.StatusFailed
	default:
		return types.StatusUnknown
	}
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// parseTimeleft parses SABnzbd's H:MM:SS (or D:HH:MM:SS) countdown into
// seconds. Unknown or empty values report -1.
func parseTimeleft(s string) int64 {
	if s == "" || s == "0:00:00" {
		return -1
	}
	parts := strings.Split(s, ":")
	multipliers := []int64{1, 60, 3600, 86400}
	if len(parts) > len(multipliers) {
		return -1
	}

	var total int64
	for i := 0; i < len(parts); i++ {
		v, err := strconv.ParseInt(strings.TrimSpace(parts[len(parts)-1-i]), 10, 64)
		if err != nil {
			return -1
		}
		total += v * multipliers[i]
	}
	return total
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

// apiCall issues a GET request for the given mode and decodes the JSON
// response into out.
func (c *Client) apiCall(ctx context.Context, mode string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("mode", mode)
	params.Set("output", "json")
	params.Set("apikey", c.config.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/api?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.send(req, out)
}

// postNZB uploads raw NZB content via mode=addfile.
func (c *Client) postNZB(ctx context.Context, opts types.AddOptions, category string, out interface{}) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	name := opts.Name
	if name == "" {
		name = "download"
	}
	fields := map[string]string{
		"mode":    "addfile",
		"output":  "json",
		"apikey":  c.config.APIKey,
		"nzbname": name,
	}
	if category != "" {
		fields["cat"] = category
	}
	if opts.Paused {
		fields["priority"] = "-2"
	}
	for key, value := range fields {
		if err := form.WriteField(key, value); err != nil {
			return fmt.Errorf("failed to build upload form: %w", err)
		}
	}
	part, err := form.CreateFormFile("name", name+".nzb")
	if err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(opts.FileContent); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/api", &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return types.ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sabnzbd returned status %d", resp.StatusCode)
	}

	var envelope sabError
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Error != "" {
		if strings.Contains(strings.ToLower(envelope.Error), "api key") {
			return types.ErrAuthFailed
		}
		return fmt.Errorf("sabnzbd error: %s", envelope.Error)
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

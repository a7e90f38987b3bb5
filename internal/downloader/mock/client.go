// Package mock implements an in-memory download client. Downloads only
// advance through explicit control calls, so tests and trial setups get
// deterministic behavior.
package mock

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sideline/sideline/internal/downloader/types"
)

const defaultSize = int64(1 << 30)

// Client implements types.TorrentClient backed by an in-memory map.
// Every New call returns the same instance: the grab path and the queue
// monitor construct their clients independently and must observe the
// same downloads.
type Client struct {
	mu          sync.Mutex
	items       map[string]*types.DownloadItem
	seq         int
	downloadDir string
	testErr     error
}

var _ types.TorrentClient = (*Client)(nil)

var (
	instance *Client
	once     sync.Once
)

// New returns the shared mock client.
func New() *Client {
	once.Do(func() {
		instance = &Client{
			items:       make(map[string]*types.DownloadItem),
			downloadDir: "/downloads",
		}
	})
	return instance
}

// NewFromConfig returns the shared mock client. The config is ignored.
func NewFromConfig(_ *types.ClientConfig) *Client {
	return New()
}

// Type returns the client type.
func (c *Client) Type() types.ClientType {
	return types.ClientTypeMock
}

// Protocol returns the protocol.
func (c *Client) Protocol() types.Protocol {
	return types.ProtocolTorrent
}

// Test reports the connection failure configured via FailConnection.
func (c *Client) Test(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.testErr
}

// Add registers a new queued download and returns its id.
func (c *Client) Add(_ context.Context, opts types.AddOptions) (string, error) {
	if opts.URL == "" && len(opts.FileContent) == 0 {
		return "", fmt.Errorf("either URL or FileContent must be provided")
	}

	name := opts.Name
	if name == "" {
		name = nameFromURL(opts.URL)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	id := fmt.Sprintf("mock-%04d", c.seq)
	status := types.StatusQueued
	if opts.Paused {
		status = types.StatusPaused
	}
	dir := opts.DownloadDir
	if dir == "" {
		dir = c.downloadDir
	}

	c.items[id] = &types.DownloadItem{
		ID:          id,
		Name:        name,
		InfoHash:    pseudoHash(name),
		Status:      status,
		Size:        defaultSize,
		ETASeconds:  -1,
		Category:    opts.Category,
		DownloadDir: dir,
		AddedAt:     time.Now().UTC(),
	}
	return id, nil
}

// Get returns a copy of the download with the given id.
func (c *Client) Get(_ context.Context, id string) (*types.DownloadItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

// List returns copies of all downloads.
func (c *Client) List(_ context.Context) ([]types.DownloadItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]types.DownloadItem, 0, len(c.items))
	for _, item := range c.items {
		items = append(items, *item)
	}
	return items, nil
}

// Remove deletes a download.
func (c *Client) Remove(_ context.Context, id string, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[id]; !ok {
		return types.ErrNotFound
	}
	delete(c.items, id)
	return nil
}

// Pause pauses a download.
func (c *Client) Pause(_ context.Context, id string) error {
	return c.setStatus(id, types.StatusPaused)
}

// Resume resumes a paused download.
func (c *Client) Resume(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[id]
	if !ok {
		return types.ErrNotFound
	}
	if item.Progress >= 100 {
		item.Status = types.StatusCompleted
	} else {
		item.Status = types.StatusDownloading
	}
	return nil
}

// FindByTitle locates a download by name within a category.
func (c *Client) FindByTitle(_ context.Context, title, category string) (*types.DownloadItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, item := range c.items {
		if category != "" && !strings.EqualFold(item.Category, category) {
			continue
		}
		if strings.EqualFold(item.Name, title) {
			copied := *item
			return &copied, nil
		}
	}
	return nil, types.ErrNotFound
}

// GetDownloadDir returns the configured download directory.
func (c *Client) GetDownloadDir(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.downloadDir, nil
}

// SetSeedLimits is accepted and ignored.
func (c *Client) SetSeedLimits(_ context.Context, id string, _ float64, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return types.ErrNotFound
	}
	return nil
}

// Control methods. These drive downloads through their lifecycle in
// place of a real backend.

// Start moves a download into the downloading state.
func (c *Client) Start(id string) error {
	return c.setStatus(id, types.StatusDownloading)
}

// SetProgress sets the completion percentage. Reaching 100 completes the
// download.
func (c *Client) SetProgress(id string, pct float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[id]
	if !ok {
		return types.ErrNotFound
	}
	if pct < 0 {
		pct = 0
	}
	if pct >= 100 {
		c.complete(item)
		return nil
	}
	item.Progress = pct
	item.Downloaded = int64(float64(item.Size) * pct / 100)
	return nil
}

// Complete marks a download finished and assigns its output path.
func (c *Client) Complete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[id]
	if !ok {
		return types.ErrNotFound
	}
	c.complete(item)
	return nil
}

// Fail marks a download failed with the given message.
func (c *Client) Fail(id, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[id]
	if !ok {
		return types.ErrNotFound
	}
	item.Status = types.StatusFailed
	item.Error = message
	return nil
}

// SetStatus forces a download into an arbitrary status.
func (c *Client) SetStatus(id string, status types.Status) error {
	return c.setStatus(id, status)
}

// FailConnection makes Test report err until called with nil.
func (c *Client) FailConnection(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.testErr = err
}

// SetDownloadDir changes the reported download directory.
func (c *Client) SetDownloadDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downloadDir = dir
}

// Clear removes all downloads and resets connection state.
func (c *Client) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*types.DownloadItem)
	c.testErr = nil
}

func (c *Client) setStatus(id string, status types.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[id]
	if !ok {
		return types.ErrNotFound
	}
	item.Status = status
	return nil
}

func (c *Client) complete(item *types.DownloadItem) {
	item.Progress = 100
	item.Downloaded = item.Size
	item.Status = types.StatusCompleted
	item.ETASeconds = 0
	item.OutputPath = item.DownloadDir + "/" + item.Name
}

// pseudoHash derives a stable infohash-shaped hex string from a name.
func pseudoHash(name string) string {
	sum := sha1.Sum([]byte(strings.ToLower(name)))
	return hex.EncodeToString(sum[:])
}

func nameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Scheme == "magnet" {
		if dn := u.Query().Get("dn"); dn != "" {
			return dn
		}
		return "magnet download"
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) > 0 && segments[len(segments)-1] != "" {
		return segments[len(segments)-1]
	}
	return raw
}

// Package types defines shared types for download clients.
package types

import (
	"context"
	"errors"
	"time"
)

// Common errors for download clients.
var (
	ErrNotFound   = errors.New("download not found")
	ErrAuthFailed = errors.New("authentication failed")
)

// Protocol represents the download protocol.
type Protocol string

const (
	ProtocolTorrent Protocol = "torrent"
	ProtocolUsenet  Protocol = "usenet"
)

// ClientType represents the type of download client.
type ClientType string

const (
	ClientTypeQBittorrent  ClientType = "qbittorrent"
	ClientTypeTransmission ClientType = "transmission"
	ClientTypeSABnzbd      ClientType = "sabnzbd"
	ClientTypeMock         ClientType = "mock"
)

// ProtocolForClient returns the protocol for a given client type.
func ProtocolForClient(clientType ClientType) Protocol {
	switch clientType {
	case ClientTypeQBittorrent, ClientTypeTransmission, ClientTypeMock:
		return ProtocolTorrent
	case ClientTypeSABnzbd:
		return ProtocolUsenet
	default:
		return ""
	}
}

// ClientConfig holds common configuration for all download clients.
type ClientConfig struct {
	Host     string
	Port     int
	UseSSL   bool
	URLBase  string
	Username string
	Password string
	APIKey   string
	Category string
}

// Client is the common interface over download client backends. IDs are
// backend-opaque: torrent infohash, SABnzbd nzo id, mock token.
type Client interface {
	Type() ClientType
	Protocol() Protocol

	Test(ctx context.Context) error

	Add(ctx context.Context, opts AddOptions) (string, error)
	Get(ctx context.Context, id string) (*DownloadItem, error)
	List(ctx context.Context) ([]DownloadItem, error)
	Remove(ctx context.Context, id string, deleteFiles bool) error

	Pause(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error

	// FindByTitle locates a download by display name within a category.
	// Debrid proxies re-add torrents under fresh ids; the name survives.
	FindByTitle(ctx context.Context, title, category string) (*DownloadItem, error)

	GetDownloadDir(ctx context.Context) (string, error)
}

// TorrentClient extends Client with torrent-specific operations.
type TorrentClient interface {
	Client

	SetSeedLimits(ctx context.Context, id string, ratio float64, seedTime time.Duration) error
}

// AddOptions specifies options for adding a download.
type AddOptions struct {
	URL         string // magnet link or torrent/nzb URL
	FileContent []byte // raw torrent/nzb payload

	Name        string // display name; SABnzbd and the mock use it
	Category    string
	DownloadDir string

	Paused bool
}

// DownloadItem is the normalized view of a download across backends.
type DownloadItem struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	InfoHash      string    `json:"infoHash,omitempty"`
	Status        Status    `json:"status"`
	Progress      float64   `json:"progress"` // 0-100
	Size          int64     `json:"size"`
	Downloaded    int64     `json:"downloaded"`
	DownloadSpeed int64     `json:"downloadSpeed"` // bytes/sec
	ETASeconds    int64     `json:"etaSeconds"`    // -1 when unavailable
	Category      string    `json:"category,omitempty"`
	DownloadDir   string    `json:"downloadDir"`
	OutputPath    string    `json:"outputPath,omitempty"`
	AddedAt       time.Time `json:"addedAt,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Status is the normalized download status.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusWarning     Status = "warning"
	StatusUnknown     Status = "unknown"
)

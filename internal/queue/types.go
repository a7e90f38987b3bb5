package queue

import (
	"context"
	"time"

	"github.com/sideline/sideline/internal/store"
)

// Row statuses beyond the normalized client statuses. A completed
// download passes through importing on its way to the terminal
// imported state.
const (
	StatusImporting = "importing"
	StatusImported  = "imported"
)

// Broadcaster pushes queue state to connected UIs.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Importer moves a completed download into the library.
type Importer interface {
	Import(ctx context.Context, item store.QueueItem) error
}

// Item is the API view of a queue row.
type Item struct {
	ID                int64      `json:"id"`
	EventID           int64      `json:"eventId"`
	EventTitle        string     `json:"eventTitle,omitempty"`
	PartID            int64      `json:"partId,omitempty"`
	PartName          string     `json:"partName,omitempty"`
	ClientID          int64      `json:"clientId"`
	ClientName        string     `json:"clientName,omitempty"`
	DownloadID        string     `json:"downloadId,omitempty"`
	Title             string     `json:"title"`
	InfoHash          string     `json:"infoHash,omitempty"`
	IndexerName       string     `json:"indexerName,omitempty"`
	Protocol          string     `json:"protocol"`
	Size              int64      `json:"size"`
	Downloaded        int64      `json:"downloaded"`
	Progress          float64    `json:"progress"`
	TimeRemainingSecs int64      `json:"timeRemainingSecs"`
	Status            string     `json:"status"`
	StatusMessage     string     `json:"statusMessage,omitempty"`
	RetryCount        int64      `json:"retryCount"`
	Quality           string     `json:"quality,omitempty"`
	OutputPath        string     `json:"outputPath,omitempty"`
	GrabbedAt         time.Time  `json:"grabbedAt"`
	ImportedAt        *time.Time `json:"importedAt,omitempty"`
}

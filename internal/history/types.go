package history

import "time"

// EventType classifies a history entry.
type EventType string

const (
	EventTypeGrabbed            EventType = "grabbed"
	EventTypeImported           EventType = "imported"
	EventTypeDownloadFailed     EventType = "download_failed"
	EventTypeBlocklisted        EventType = "blocklisted"
	EventTypeFileDeleted        EventType = "file_deleted"
	EventTypeRecordingScheduled EventType = "recording_scheduled"
	EventTypeRecordingImported  EventType = "recording_imported"
	EventTypeRecordingFailed    EventType = "recording_failed"
)

// Entry is the API view of a history record.
type Entry struct {
	ID          int64          `json:"id"`
	EventID     int64          `json:"eventId,omitempty"`
	EventTitle  string         `json:"eventTitle,omitempty"`
	EventType   EventType      `json:"eventType"`
	SourceTitle string         `json:"sourceTitle,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// ListOptions filters and paginates history listings.
type ListOptions struct {
	EventType string
	Page      int
	PageSize  int
}

// ListResponse is a page of history entries.
type ListResponse struct {
	Items      []Entry `json:"items"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalCount int64   `json:"totalCount"`
	TotalPages int     `json:"totalPages"`
}

// GrabData records where a release came from and where it went.
type GrabData struct {
	Indexer        string `json:"indexer,omitempty"`
	Protocol       string `json:"protocol,omitempty"`
	DownloadClient string `json:"downloadClient,omitempty"`
	DownloadID     string `json:"downloadId,omitempty"`
	Quality        string `json:"quality,omitempty"`
	QualityScore   int64  `json:"qualityScore,omitempty"`
	FormatScore    int64  `json:"formatScore,omitempty"`
	Size           int64  `json:"size,omitempty"`
}

// ImportData records a completed import.
type ImportData struct {
	SourcePath      string `json:"sourcePath,omitempty"`
	DestinationPath string `json:"destinationPath,omitempty"`
	Quality         string `json:"quality,omitempty"`
	Size            int64  `json:"size,omitempty"`
	Source          string `json:"source,omitempty"`
}

// DownloadFailedData records a download the client gave up on.
type DownloadFailedData struct {
	DownloadClient string `json:"downloadClient,omitempty"`
	Reason         string `json:"reason,omitempty"`
	RetryCount     int64  `json:"retryCount,omitempty"`
}

// BlocklistData records a release being blocked from re-grab.
type BlocklistData struct {
	InfoHash string `json:"infoHash,omitempty"`
	Indexer  string `json:"indexer,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// RecordingData records DVR scheduling and completion details.
type RecordingData struct {
	Channel string    `json:"channel,omitempty"`
	StartAt time.Time `json:"startAt,omitempty"`
	EndAt   time.Time `json:"endAt,omitempty"`
	Path    string    `json:"path,omitempty"`
	Error   string    `json:"error,omitempty"`
}

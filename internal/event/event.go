package event

import (
	"strings"
	"time"
)

// Acquisition states computed from queue and file rows.
const (
	StatusMissing    = "missing"
	StatusQueued     = "queued"
	StatusDownloaded = "downloaded"
	StatusRecorded   = "recorded"
)

// Event is the API view of a sporting event.
type Event struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	SortTitle        string     `json:"sortTitle"`
	Sport            string     `json:"sport"`
	League           string     `json:"league,omitempty"`
	Season           string     `json:"season,omitempty"`
	EventNumber      int        `json:"eventNumber,omitempty"`
	HomeTeam         string     `json:"homeTeam,omitempty"`
	AwayTeam         string     `json:"awayTeam,omitempty"`
	Venue            string     `json:"venue,omitempty"`
	EventDate        time.Time  `json:"eventDate"`
	BroadcastAt      *time.Time `json:"broadcastAt,omitempty"`
	ExternalID       string     `json:"externalId,omitempty"`
	Overview         string     `json:"overview,omitempty"`
	Monitored        bool       `json:"monitored"`
	QualityProfileID int64      `json:"qualityProfileId,omitempty"`
	RootFolderID     int64      `json:"rootFolderId,omitempty"`
	LastSearchAt     *time.Time `json:"lastSearchAt,omitempty"`
	Status           string     `json:"status"`
	HasFile          bool       `json:"hasFile"`
	SizeOnDisk       int64      `json:"sizeOnDisk,omitempty"`
	AddedAt          time.Time  `json:"addedAt"`
	Parts            []Part     `json:"parts,omitempty"`
	Files            []File     `json:"files,omitempty"`
}

// Part is a named segment of an event (Early Prelims, Prelims, Main Card...).
type Part struct {
	ID        int64  `json:"id"`
	EventID   int64  `json:"eventId"`
	Name      string `json:"name"`
	Position  int    `json:"position"`
	Monitored bool   `json:"monitored"`
}

// File is a media file acquired for an event.
type File struct {
	ID             int64     `json:"id"`
	EventID        int64     `json:"eventId"`
	PartID         int64     `json:"partId,omitempty"`
	Path           string    `json:"path"`
	Size           int64     `json:"size"`
	Quality        string    `json:"quality,omitempty"`
	QualityScore   int       `json:"qualityScore"`
	FormatScore    int       `json:"formatScore"`
	Source         string    `json:"source"`
	ReleaseTitle   string    `json:"releaseTitle,omitempty"`
	VideoCodec     string    `json:"videoCodec,omitempty"`
	AudioCodec     string    `json:"audioCodec,omitempty"`
	Resolution     string    `json:"resolution,omitempty"`
	RuntimeSeconds int       `json:"runtimeSeconds,omitempty"`
	AddedAt        time.Time `json:"addedAt"`
}

// CreateEventInput contains fields for adding an event.
type CreateEventInput struct {
	Title            string   `json:"title"`
	Sport            string   `json:"sport"`
	League           string   `json:"league,omitempty"`
	Season           string   `json:"season,omitempty"`
	EventNumber      int      `json:"eventNumber,omitempty"`
	HomeTeam         string   `json:"homeTeam,omitempty"`
	AwayTeam         string   `json:"awayTeam,omitempty"`
	Venue            string   `json:"venue,omitempty"`
	EventDate        string   `json:"eventDate"`
	BroadcastAt      string   `json:"broadcastAt,omitempty"`
	ExternalID       string   `json:"externalId,omitempty"`
	Overview         string   `json:"overview,omitempty"`
	Monitored        bool     `json:"monitored"`
	QualityProfileID int64    `json:"qualityProfileId,omitempty"`
	RootFolderID     int64    `json:"rootFolderId,omitempty"`
	Parts            []string `json:"parts,omitempty"`
}

// UpdateEventInput contains fields for updating an event. Nil fields are
// left untouched.
type UpdateEventInput struct {
	Title            *string `json:"title,omitempty"`
	Sport            *string `json:"sport,omitempty"`
	League           *string `json:"league,omitempty"`
	Season           *string `json:"season,omitempty"`
	EventNumber      *int    `json:"eventNumber,omitempty"`
	HomeTeam         *string `json:"homeTeam,omitempty"`
	AwayTeam         *string `json:"awayTeam,omitempty"`
	Venue            *string `json:"venue,omitempty"`
	EventDate        *string `json:"eventDate,omitempty"`
	BroadcastAt      *string `json:"broadcastAt,omitempty"`
	Overview         *string `json:"overview,omitempty"`
	Monitored        *bool   `json:"monitored,omitempty"`
	QualityProfileID *int64  `json:"qualityProfileId,omitempty"`
	RootFolderID     *int64  `json:"rootFolderId,omitempty"`
}

// ListEventsOptions filters the event list.
type ListEventsOptions struct {
	Monitored *bool
	Missing   bool
}

// generateSortTitle strips leading articles for sorting.
func generateSortTitle(title string) string {
	lower := strings.ToLower(title)
	for _, prefix := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(lower, prefix) && len(title) > len(prefix) {
			return title[len(prefix):]
		}
	}
	return title
}

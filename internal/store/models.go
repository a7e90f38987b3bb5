package store

import (
	"database/sql"
	"time"
)

// Event is a monitored sporting event.
type Event struct {
	ID               int64
	Title            string
	SortTitle        string
	Sport            string
	League           string
	Season           string
	EventNumber      sql.NullInt64
	HomeTeam         string
	AwayTeam         string
	Venue            string
	EventDate        time.Time
	BroadcastAt      sql.NullTime
	ExternalID       string
	Overview         string
	Monitored        int64
	QualityProfileID sql.NullInt64
	RootFolderID     sql.NullInt64
	LastSearchAt     sql.NullTime
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EventPart is a named segment of an event, such as a fight card portion
// or a session of a race weekend.
type EventPart struct {
	ID        int64
	EventID   int64
	Name      string
	Position  int64
	Monitored int64
}

// EventFile is a media file imported for an event or an event part.
type EventFile struct {
	ID             int64
	EventID        int64
	PartID         sql.NullInt64
	Path           string
	Size           int64
	Quality        string
	QualityScore   int64
	FormatScore    int64
	Source         string
	ReleaseTitle   string
	VideoCodec     string
	AudioCodec     string
	Resolution     string
	RuntimeSeconds int64
	AddedAt        time.Time
}

// QualityProfile orders allowed qualities and carries custom format scores.
// Items and FormatItems hold JSON payloads.
type QualityProfile struct {
	ID              int64
	Name            string
	UpgradesAllowed int64
	Cutoff          int64
	Items           string
	FormatItems     string
	MinFormatScore  int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CustomFormat is a named set of release specifications. Specifications
// holds a JSON payload.
type CustomFormat struct {
	ID             int64
	Name           string
	Specifications string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RootFolder is a library destination directory.
type RootFolder struct {
	ID        int64
	Path      string
	Name      string
	CreatedAt time.Time
}

// Indexer is a configured Torznab or Newznab endpoint. Categories holds a
// JSON array of numeric category ids.
type Indexer struct {
	ID             int64
	Name           string
	Implementation string
	BaseURL        string
	APIPath        string
	APIKey         string
	Categories     string
	Protocol       string
	Enabled        int64
	RSSEnabled     int64
	Priority       int64
	QueryLimit     int64
	GrabLimit      int64
	RequestDelayMs int64
	SeedRatio      float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IndexerStatus tracks indexer health and hourly usage counters.
type IndexerStatus struct {
	IndexerID           int64
	ConsecutiveFailures int64
	LastFailureAt       sql.NullTime
	LastFailureReason   string
	LastSuccessAt       sql.NullTime
	DisabledUntil       sql.NullTime
	RateLimitedUntil    sql.NullTime
	QueriesThisHour     int64
	GrabsThisHour       int64
	HourResetAt         sql.NullTime
	UpdatedAt           time.Time
}

// CachedRelease is a release row in the shared cache.
type CachedRelease struct {
	ID           int64
	GUID         string
	Title        string
	SearchTerms  string
	DownloadURL  string
	InfoURL      string
	IndexerID    int64
	IndexerName  string
	Protocol     string
	InfoHash     string
	Size         int64
	Seeders      int64
	Leechers     int64
	Quality      string
	Resolution   string
	Source       string
	VideoCodec   string
	AudioCodec   string
	ReleaseGroup string
	SportPrefix  string
	Year         int64
	IsPack       int64
	FromRSS      int64
	PublishDate  sql.NullTime
	CachedAt     time.Time
	ExpiresAt    time.Time
}

// DownloadClient is a configured download client.
type DownloadClient struct {
	ID              int64
	Name            string
	Type            string
	Host            string
	Port            int64
	UseSSL          int64
	URLBase         string
	Username        string
	Password        string
	APIKey          string
	Category        string
	Priority        int64
	Enabled         int64
	RemoveCompleted int64
	RemoveFailed    int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// QueueItem is a grabbed release being tracked through download and import.
type QueueItem struct {
	ID                int64
	EventID           int64
	PartID            sql.NullInt64
	ClientID          int64
	DownloadID        string
	Title             string
	GUID              string
	InfoHash          string
	IndexerID         int64
	IndexerName       string
	Protocol          string
	DownloadURL       string
	Category          string
	Size              int64
	Downloaded        int64
	Progress          float64
	TimeRemainingSecs int64
	Status            string
	StatusMessage     string
	MissingCount      int64
	RetryCount        int64
	Quality           string
	QualityScore      int64
	FormatScore       int64
	OutputPath        string
	LastProgressAt    sql.NullTime
	GrabbedAt         time.Time
	ImportedAt        sql.NullTime
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BlocklistEntry marks a release as permanently rejected for an event.
type BlocklistEntry struct {
	ID          int64
	EventID     int64
	Title       string
	InfoHash    string
	IndexerName string
	Protocol    string
	Reason      string
	AddedAt     time.Time
}

// RemotePathMapping translates a download client path to a local path.
type RemotePathMapping struct {
	ID         int64
	Host       string
	RemotePath string
	LocalPath  string
	CreatedAt  time.Time
}

// Channel is an IPTV channel available for recording.
type Channel struct {
	ID           int64
	Name         string
	TvgID        string
	StreamURL    string
	GroupName    string
	LogoURL      string
	QualityScore int64
	Enabled      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LeagueChannel maps a league to a channel that broadcasts it.
type LeagueChannel struct {
	ID        int64
	League    string
	ChannelID int64
	Priority  int64
	CreatedAt time.Time
}

// EPGProgram is one guide entry for a channel.
type EPGProgram struct {
	ID           int64
	ChannelTvgID string
	Title        string
	Subtitle     string
	Description  string
	Category     string
	IsSports     int64
	StartTime    time.Time
	EndTime      time.Time
	CreatedAt    time.Time
}

// Recording is a scheduled or captured DVR job.
type Recording struct {
	ID             int64
	EventID        int64
	PartID         sql.NullInt64
	ChannelID      int64
	ProgramID      sql.NullInt64
	Title          string
	JobID          string
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	ActualStart    sql.NullTime
	ActualEnd      sql.NullTime
	OutputPath     string
	FileSize       int64
	MatchScore     int64
	Status         string
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HistoryEntry records a lifecycle action. Data holds a JSON payload.
type HistoryEntry struct {
	ID          int64
	EventID     sql.NullInt64
	EventType   string
	SourceTitle string
	Data        string
	CreatedAt   time.Time
}

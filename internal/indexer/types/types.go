// Package types contains shared type definitions for indexer packages.
package types

import (
	"fmt"
	"time"
)

// Protocol is the transfer protocol a release is delivered over.
type Protocol string

const (
	ProtocolTorrent Protocol = "torrent"
	ProtocolUsenet  Protocol = "usenet"
)

// Implementation names accepted in indexer configuration.
const (
	ImplementationTorznab = "torznab"
	ImplementationNewznab = "newznab"
)

// SearchCriteria defines the parameters of one indexer query.
type SearchCriteria struct {
	Query      string `json:"query,omitempty"`
	Categories []int  `json:"categories,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// ReleaseInfo is a single release returned by an indexer search or RSS fetch.
type ReleaseInfo struct {
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	DownloadURL string    `json:"downloadUrl"`
	InfoURL     string    `json:"infoUrl,omitempty"`
	Size        int64     `json:"size"`
	PublishDate time.Time `json:"publishDate"`
	Categories  []int     `json:"categories,omitempty"`

	IndexerID   int64    `json:"indexerId"`
	IndexerName string   `json:"indexer"`
	Protocol    Protocol `json:"protocol"`

	// Torznab attributes; zero for usenet releases.
	Seeders  int    `json:"seeders,omitempty"`
	Leechers int    `json:"leechers,omitempty"`
	InfoHash string `json:"infoHash,omitempty"`

	// Transport-level desirability (seeders, quality, recency), computed at
	// parse time before any event matching happens.
	Score int `json:"score"`
}

// Age returns how long ago the release was published.
func (r ReleaseInfo) Age(now time.Time) time.Duration {
	if r.PublishDate.IsZero() {
		return 0
	}
	return now.Sub(r.PublishDate)
}

// Capabilities is the subset of a caps response used to validate an indexer.
type Capabilities struct {
	Server     string            `json:"server,omitempty"`
	SearchMode string            `json:"searchMode,omitempty"`
	Categories []CategoryMapping `json:"categories,omitempty"`
}

// CategoryMapping maps an indexer category id to its display name.
type CategoryMapping struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// RateLimitedError reports an HTTP 429 from an indexer. RetryAfter is zero
// when the response carried no usable Retry-After header.
type RateLimitedError struct {
	IndexerName string
	RetryAfter  time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("indexer %s rate limited, retry after %s", e.IndexerName, e.RetryAfter)
	}
	return fmt.Sprintf("indexer %s rate limited", e.IndexerName)
}

// RequestError reports a non-2xx, non-429 HTTP response from an indexer.
type RequestError struct {
	IndexerName string
	StatusCode  int
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("indexer %s request failed with status %d", e.IndexerName, e.StatusCode)
}

// IsAuthFailure reports whether the status indicates bad credentials.
func (e *RequestError) IsAuthFailure() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

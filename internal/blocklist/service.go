// Package blocklist keeps releases that failed or were rejected from
// being grabbed again for the same event. Torrents are blocked by
// infohash; usenet releases, which have no hash, by indexer and title.
package blocklist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/history"
	"github.com/sideline/sideline/internal/store"
)

const defaultListLimit = 500

// Service provides blocklist operations.
type Service struct {
	queries *store.Queries
	history *history.Service
	logger  zerolog.Logger
}

func NewService(db *sql.DB, historySvc *history.Service, logger zerolog.Logger) *Service {
	return &Service{
		queries: store.New(db),
		history: historySvc,
		logger:  logger.With().Str("component", "blocklist").Logger(),
	}
}

// Entry is the API view of a blocklist row.
type Entry struct {
	ID          int64     `json:"id"`
	EventID     int64     `json:"eventId"`
	Title       string    `json:"title"`
	InfoHash    string    `json:"infoHash,omitempty"`
	IndexerName string    `json:"indexerName,omitempty"`
	Protocol    string    `json:"protocol,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	AddedAt     time.Time `json:"addedAt"`
}

// BlockInput identifies the release to block and why.
type BlockInput struct {
	EventID     int64
	Title       string
	InfoHash    string
	IndexerName string
	Protocol    string
	Reason      string
}

// Add blocks a release for an event. Adding the same release twice is a
// no-op; the return reports whether a new entry was created.
func (s *Service) Add(ctx context.Context, input BlockInput) (bool, error) {
	blocked, err := s.IsBlocked(ctx, input.EventID, input.InfoHash, input.IndexerName, input.Title)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}

	_, err = s.queries.CreateBlocklistEntry(ctx, store.CreateBlocklistEntryParams{
		EventID:     input.EventID,
		Title:       input.Title,
		InfoHash:    input.InfoHash,
		IndexerName: input.IndexerName,
		Protocol:    input.Protocol,
		Reason:      input.Reason,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create blocklist entry: %w", err)
	}

	s.history.RecordBlocklisted(ctx, input.EventID, input.Title, history.BlocklistData{
		InfoHash: input.InfoHash,
		Indexer:  input.IndexerName,
		Reason:   input.Reason,
	})
	s.logger.Info().
		Int64("eventId", input.EventID).
		Str("title", input.Title).
		Str("infoHash", input.InfoHash).
		Str("reason", input.Reason).
		Msg("release blocklisted")
	return true, nil
}

// IsBlocked reports whether a release is blocked for an event, by
// infohash when one is known, otherwise by indexer and title.
func (s *Service) IsBlocked(ctx context.Context, eventID int64, infoHash, indexerName, title string) (bool, error) {
	if infoHash != "" {
		n, err := s.queries.CountBlocklistByHash(ctx, eventID, infoHash)
		if err != nil {
			return false, fmt.Errorf("failed to check blocklist: %w", err)
		}
		if n > 0 {
			return true, nil
		}
	}
	n, err := s.queries.CountBlocklistByTitle(ctx, eventID, indexerName, title)
	if err != nil {
		return false, fmt.Errorf("failed to check blocklist: %w", err)
	}
	return n > 0, nil
}

// List returns recent blocklist entries, newest first.
func (s *Service) List(ctx context.Context, limit int64) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.queries.ListBlocklist(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocklist: %w", err)
	}
	return rowsToEntries(rows), nil
}

// ListForEvent returns all blocklist entries for one event.
func (s *Service) ListForEvent(ctx context.Context, eventID int64) ([]Entry, error) {
	rows, err := s.queries.ListBlocklistForEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocklist: %w", err)
	}
	return rowsToEntries(rows), nil
}

// Delete removes one entry, making the release grabbable again.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.queries.DeleteBlocklistEntry(ctx, id); err != nil {
		return fmt.Errorf("failed to delete blocklist entry: %w", err)
	}
	return nil
}

// ClearForEvent removes all entries for an event.
func (s *Service) ClearForEvent(ctx context.Context, eventID int64) error {
	if err := s.queries.DeleteBlocklistForEvent(ctx, eventID); err != nil {
		return fmt.Errorf("failed to clear blocklist: %w", err)
	}
	return nil
}

func rowsToEntries(rows []store.BlocklistEntry) []Entry {
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			ID:          row.ID,
			EventID:     row.EventID,
			Title:       row.Title,
			InfoHash:    row.InfoHash,
			IndexerName: row.IndexerName,
			Protocol:    row.Protocol,
			Reason:      row.Reason,
			AddedAt:     row.AddedAt,
		})
	}
	return entries
}

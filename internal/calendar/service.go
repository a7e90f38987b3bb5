// Package calendar feeds the UI's schedule view: monitored events and DVR
// recordings in a date range, each tagged with its acquisition state.
package calendar

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	dltypes "github.com/sideline/sideline/internal/downloader/types"
	"github.com/sideline/sideline/internal/store"
)

// Entry kinds.
const (
	KindEvent     = "event"
	KindRecording = "recording"
)

// Acquisition states for event entries.
const (
	StatusDownloaded  = "downloaded"
	StatusDownloading = "downloading"
	StatusMissing     = "missing"
)

// Entry is one calendar item: a monitored event or a DVR recording window.
type Entry struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Date      time.Time `json:"date"`
	Status    string    `json:"status"`
	Monitored bool      `json:"monitored"`

	// Event entries.
	Sport       string     `json:"sport,omitempty"`
	League      string     `json:"league,omitempty"`
	HomeTeam    string     `json:"homeTeam,omitempty"`
	AwayTeam    string     `json:"awayTeam,omitempty"`
	Venue       string     `json:"venue,omitempty"`
	BroadcastAt *time.Time `json:"broadcastAt,omitempty"`

	// Recording entries.
	EventID int64      `json:"eventId,omitempty"`
	Channel string     `json:"channel,omitempty"`
	EndsAt  *time.Time `json:"endsAt,omitempty"`
}

// Service provides calendar lookups.
type Service struct {
	queries *store.Queries
	logger  zerolog.Logger
}

// NewService creates a new calendar service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		queries: store.New(db),
		logger:  logger.With().Str("component", "calendar").Logger(),
	}
}

// GetEntries returns events and recordings within [start, end).
func (s *Service) GetEntries(ctx context.Context, start, end time.Time) ([]Entry, error) {
	entries, err := s.eventEntries(ctx, start, end)
	if err != nil {
		return nil, err
	}
	recordings, err := s.recordingEntries(ctx, start, end)
	if err != nil {
		return nil, err
	}
	entries = append(entries, recordings...)

	s.logger.Debug().
		Time("start", start).
		Time("end", end).
		Int("entries", len(entries)).
		Msg("calendar range resolved")
	return entries, nil
}

func (s *Service) eventEntries(ctx context.Context, start, end time.Time) ([]Entry, error) {
	events, err := s.queries.ListEventsBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(events))
	for _, ev := range events {
		entry := Entry{
			ID:        ev.ID,
			Kind:      KindEvent,
			Title:     ev.Title,
			Date:      ev.EventDate,
			Status:    s.eventStatus(ctx, ev.ID),
			Monitored: ev.Monitored == 1,
			Sport:     ev.Sport,
			League:    ev.League,
			HomeTeam:  ev.HomeTeam,
			AwayTeam:  ev.AwayTeam,
			Venue:     ev.Venue,
		}
		if ev.BroadcastAt.Valid {
			t := ev.BroadcastAt.Time
			entry.BroadcastAt = &t
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// eventStatus reduces an event's library and queue state to one word.
func (s *Service) eventStatus(ctx context.Context, eventID int64) string {
	files, err := s.queries.ListEventFiles(ctx, eventID)
	if err == nil && len(files) > 0 {
		return StatusDownloaded
	}
	queued, err := s.queries.ListQueueItemsForEvent(ctx, eventID)
	if err == nil {
		for _, item := range queued {
			if item.ImportedAt.Valid || item.Status == string(dltypes.StatusFailed) {
				continue
			}
			return StatusDownloading
		}
	}
	return StatusMissing
}

func (s *Service) recordingEntries(ctx context.Context, start, end time.Time) ([]Entry, error) {
	recordings, err := s.queries.ListRecordingsBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(recordings) == 0 {
		return nil, nil
	}

	channels, err := s.queries.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(channels))
	for _, ch := range channels {
		names[ch.ID] = ch.Name
	}

	entries := make([]Entry, 0, len(recordings))
	for _, rec := range recordings {
		endsAt := rec.ScheduledEnd
		entries = append(entries, Entry{
			ID:        rec.ID,
			Kind:      KindRecording,
			Title:     rec.Title,
			Date:      rec.ScheduledStart,
			Status:    rec.Status,
			Monitored: true,
			EventID:   rec.EventID,
			Channel:   names[rec.ChannelID],
			EndsAt:    &endsAt,
		})
	}
	return entries, nil
}

// Package history keeps the immutable record of what happened to each
// event: grabs, imports, failures, blocklists, recordings. Entries are
// append-only; the only deletions are the retention sweep and an
// explicit clear.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/store"
)

const retentionKey = "history_retention"

// Service provides history recording and retrieval.
type Service struct {
	queries *store.Queries
	logger  zerolog.Logger
}

func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		queries: store.New(db),
		logger:  logger.With().Str("component", "history").Logger(),
	}
}

// CreateInput holds one history record. EventID zero means the entry is
// not tied to an event. Data is marshaled to JSON.
type CreateInput struct {
	EventID     int64
	EventType   EventType
	SourceTitle string
	Data        any
}

func (s *Service) Create(ctx context.Context, input CreateInput) error {
	var data string
	if input.Data != nil {
		raw, err := json.Marshal(input.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal history data: %w", err)
		}
		data = string(raw)
	}

	err := s.queries.CreateHistoryEntry(ctx, store.CreateHistoryEntryParams{
		EventID:     sql.NullInt64{Int64: input.EventID, Valid: input.EventID != 0},
		EventType:   string(input.EventType),
		SourceTitle: input.SourceTitle,
		Data:        data,
	})
	if err != nil {
		return fmt.Errorf("failed to create history entry: %w", err)
	}
	return nil
}

// RecordGrab logs a release handed to a download client.
func (s *Service) RecordGrab(ctx context.Context, eventID int64, title string, data GrabData) {
	s.record(ctx, eventID, EventTypeGrabbed, title, data)
}

// RecordImport logs a file landing in the library.
func (s *Service) RecordImport(ctx context.Context, eventID int64, title string, data ImportData) {
	s.record(ctx, eventID, EventTypeImported, title, data)
}

// RecordDownloadFailed logs a download the monitor marked failed.
func (s *Service) RecordDownloadFailed(ctx context.Context, eventID int64, title string, data DownloadFailedData) {
	s.record(ctx, eventID, EventTypeDownloadFailed, title, data)
}

// RecordBlocklisted logs a release being blocked from future grabs.
func (s *Service) RecordBlocklisted(ctx context.Context, eventID int64, title string, data BlocklistData) {
	s.record(ctx, eventID, EventTypeBlocklisted, title, data)
}

// RecordFileDeleted logs a library file removal.
func (s *Service) RecordFileDeleted(ctx context.Context, eventID int64, path string) {
	s.record(ctx, eventID, EventTypeFileDeleted, path, nil)
}

// RecordRecording logs a DVR scheduling or completion transition.
func (s *Service) RecordRecording(ctx context.Context, eventType EventType, eventID int64, title string, data RecordingData) {
	s.record(ctx, eventID, eventType, title, data)
}

/// record is fire-and-forget: history must never fail the operation it
// documents.
func (s *Service) record(ctx context.Context, eventID int64, eventType EventType, title string, data any) {
	if err := s.Create(ctx, CreateInput{EventID: eventID, EventType: eventType, SourceTitle: title, Data: data}); err != nil {
		s.logger.Warn().Err(err).Str("type", string(eventType)).Msg("failed to record history")
	}
}

// List returns a page of history, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}
	if opts.PageSize > 100 {
		opts.PageSize = 100
	}

	limit := int64(opts.PageSize)
	offset := int64((opts.Page - 1) * opts.PageSize)

	var (
		rows  []store.HistoryEntry
		total int64
		err   error
	)
	if opts.EventType != "" {
		rows, err = s.queries.ListHistoryByType(ctx, opts.EventType, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list history: %w", err)
		}
		total, err = s.queries.CountHistoryByType(ctx, opts.EventType)
	} else {
		rows, err = s.queries.ListHistory(ctx, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list history: %w", err)
		}
		total, err = s.queries.CountHistory(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	titles := map[int64]string{}
	for _, row := range rows {
		entry := rowToEntry(row)
		if row.EventID.Valid {
			entry.EventTitle = s.eventTitle(ctx, titles, row.EventID.Int64)
		}
		entries = append(entries, entry)
	}

	totalPages := int(total) / opts.PageSize
	if int(total)%opts.PageSize > 0 {
		totalPages++
	}

	return &ListResponse{
		Items:      entries,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// ListForEvent returns all history for one event, newest first.
func (s *Service) ListForEvent(ctx context.Context, eventID int64) ([]Entry, error) {
	rows, err := s.queries.ListHistoryForEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event history: %w", err)
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, rowToEntry(row))
	}
	return entries, nil
}

// Clear deletes all history.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.queries.DeleteAllHistory(ctx); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	s.logger.Info().Msg("history cleared")
	return nil
}

// RetentionSettings controls the age-out sweep.
type RetentionSettings struct {
	Enabled       bool `json:"enabled"`
	RetentionDays int  `json:"retentionDays"`
}

func DefaultRetentionSettings() RetentionSettings {
	return RetentionSettings{Enabled: true, RetentionDays: 365}
}

func (s *Service) GetRetentionSettings(ctx context.Context) (RetentionSettings, error) {
	value, err := s.queries.GetSetting(ctx, retentionKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultRetentionSettings(), nil
		}
		return RetentionSettings{}, err
	}

	var settings RetentionSettings
	if err := json.Unmarshal([]byte(value), &settings); err != nil {
		return DefaultRetentionSettings(), nil
	}
	return settings, nil
}

func (s *Service) SaveRetentionSettings(ctx context.Context, settings RetentionSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.queries.UpsertSetting(ctx, retentionKey, string(data))
}

// CleanupOldEntries deletes entries past the configured retention age.
// Runs as a scheduled task.
func (s *Service) CleanupOldEntries(ctx context.Context) error {
	settings, err := s.GetRetentionSettings(ctx)
	if err != nil {
		return err
	}
	if !settings.Enabled || settings.RetentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -settings.RetentionDays)
	n, err := s.queries.DeleteOldHistory(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete old history: %w", err)
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Int("retentionDays", settings.RetentionDays).Msg("history retention sweep")
	}
	return nil
}

// eventTitle resolves an event title through a per-call cache so one
// page of history does not hit the same event row repeatedly.
func (s *Service) eventTitle(ctx context.Context, cache map[int64]string, eventID int64) string {
	if title, ok := cache[eventID]; ok {
		return title
	}
	event, err := s.queries.GetEvent(ctx, eventID)
	if err != nil {
		cache[eventID] = ""
		return ""
	}
	cache[eventID] = event.Title
	return event.Title
}

func rowToEntry(row store.HistoryEntry) Entry {
	entry := Entry{
		ID:          row.ID,
		EventType:   EventType(row.EventType),
		SourceTitle: row.SourceTitle,
		CreatedAt:   row.CreatedAt,
	}
	if row.EventID.Valid {
		entry.EventID = row.EventID.Int64
	}
	if row.Data != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(row.Data), &data); err == nil {
			entry.Data = data
		}
	}
	return entry
}

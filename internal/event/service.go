// Package event manages the catalog of sporting events and their parts and files.
package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/history"
	"github.com/sideline/sideline/internal/store"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrPartNotFound      = errors.New("event part not found")
	ErrFileNotFound      = errors.New("event file not found")
	ErrInvalidEvent      = errors.New("invalid event data")
	ErrDuplicateExternal = errors.New("event with this external id already exists")
)

// Broadcaster pushes state changes to connected clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Service provides event catalog operations.
type Service struct {
	db      *sql.DB
	queries *store.Queries
	hub     Broadcaster
	hist    *history.Service
	logger  zerolog.Logger
}

// NewService creates a new event service.
func NewService(db *sql.DB, hub Broadcaster, hist *history.Service, logger zerolog.Logger) *Service {
	return &Service{
		db:      db,
		queries: store.New(db),
		hub:     hub,
		hist:    hist,
		logger:  logger.With().Str("component", "event").Logger(),
	}
}

// Get retrieves an event with its parts and files.
func (s *Service) Get(ctx context.Context, id int64) (*Event, error) {
	row, err := s.queries.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return s.hydrate(ctx, row)
}

// List returns events, optionally filtered.
func (s *Service) List(ctx context.Context, opts ListEventsOptions) ([]*Event, error) {
	var rows []store.Event
	var err error
	if opts.Monitored != nil && *opts.Monitored {
		rows, err = s.queries.ListMonitoredEvents(ctx)
	} else {
		rows, err = s.queries.ListEvents(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*Event, 0, len(rows))
	for _, row := range rows {
		ev, err := s.hydrate(ctx, row)
		if err != nil {
			return nil, err
		}
		if opts.Missing && ev.HasFile {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Create adds an event, with optional named parts.
func (s *Service) Create(ctx context.Context, input CreateEventInput) (*Event, error) {
	if input.Title == "" || input.Sport == "" {
		return nil, fmt.Errorf("%w: title and sport are required", ErrInvalidEvent)
	}
	eventDate, err := parseEventTime(input.EventDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	if input.ExternalID != "" {
		if _, err := s.queries.GetEventByExternalID(ctx, input.ExternalID); err == nil {
			return nil, ErrDuplicateExternal
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to check external id: %w", err)
		}
	}

	params := store.CreateEventParams{
		Title:            input.Title,
		SortTitle:        generateSortTitle(input.Title),
		Sport:            input.Sport,
		League:           input.League,
		Season:           input.Season,
		HomeTeam:         input.HomeTeam,
		AwayTeam:         input.AwayTeam,
		Venue:            input.Venue,
		EventDate:        eventDate,
		ExternalID:       input.ExternalID,
		Overview:         input.Overview,
		Monitored:        boolToInt(input.Monitored),
		QualityProfileID: nullInt64(input.QualityProfileID),
		RootFolderID:     nullInt64(input.RootFolderID),
	}
	if input.EventNumber > 0 {
		params.EventNumber = sql.NullInt64{Int64: int64(input.EventNumber), Valid: true}
	}
	if input.BroadcastAt != "" {
		at, err := parseEventTime(input.BroadcastAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		params.BroadcastAt = sql.NullTime{Time: at, Valid: true}
	}

	row, err := s.queries.CreateEvent(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	for i, name := range input.Parts {
		if name == "" {
			continue
		}
		if _, err := s.queries.CreateEventPart(ctx, row.ID, name, int64(i)); err != nil {
			s.logger.Warn().Err(err).Int64("eventId", row.ID).Str("part", name).Msg("failed to create event part")
		}
	}

	ev, err := s.hydrate(ctx, row)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("eventId", ev.ID).Str("title", ev.Title).Str("sport", ev.Sport).Msg("event added")
	s.broadcast("event:added", ev)
	return ev, nil
}

// Update modifies an event in place.
func (s *Service) Update(ctx context.Context, id int64, input UpdateEventInput) (*Event, error) {
	row, err := s.queries.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	params := store.UpdateEventParams{
		ID:               row.ID,
		Title:            row.Title,
		SortTitle:        row.SortTitle,
		Sport:            row.Sport,
		League:           row.League,
		Season:           row.Season,
		EventNumber:      row.EventNumber,
		HomeTeam:         row.HomeTeam,
		AwayTeam:         row.AwayTeam,
		Venue:            row.Venue,
		EventDate:        row.EventDate,
		BroadcastAt:      row.BroadcastAt,
		Overview:         row.Overview,
		Monitored:        row.Monitored,
		QualityProfileID: row.QualityProfileID,
		RootFolderID:     row.RootFolderID,
	}

	if input.Title != nil {
		params.Title = *input.Title
		params.SortTitle = generateSortTitle(*input.Title)
	}
	if input.Sport != nil {
		params.Sport = *input.Sport
	}
	if input.League != nil {
		params.League = *input.League
	}
	if input.Season != nil {
		params.Season = *input.Season
	}
	if input.EventNumber != nil {
		params.EventNumber = sql.NullInt64{Int64: int64(*input.EventNumber), Valid: *input.EventNumber > 0}
	}
	if input.HomeTeam != nil {
		params.HomeTeam = *input.HomeTeam
	}
	if input.AwayTeam != nil {
		params.AwayTeam = *input.AwayTeam
	}
	if input.Venue != nil {
		params.Venue = *input.Venue
	}
	if input.EventDate != nil {
		at, err := parseEventTime(*input.EventDate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		params.EventDate = at
	}
	if input.BroadcastAt != nil {
		if *input.BroadcastAt == "" {
			params.BroadcastAt = sql.NullTime{}
		} else {
			at, err := parseEventTime(*input.BroadcastAt)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
			}
			params.BroadcastAt = sql.NullTime{Time: at, Valid: true}
		}
	}
	if input.Overview != nil {
		params.Overview = *input.Overview
	}
	if input.Monitored != nil {
		params.Monitored = boolToInt(*input.Monitored)
	}
	if input.QualityProfileID != nil {
		params.QualityProfileID = nullInt64(*input.QualityProfileID)
	}
	if input.RootFolderID != nil {
		params.RootFolderID = nullInt64(*input.RootFolderID)
	}

	if err := s.queries.UpdateEvent(ctx, params); err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.broadcast("event:updated", ev)
	return ev, nil
}

// SetMonitored toggles acquisition for an event.
func (s *Service) SetMonitored(ctx context.Context, id int64, monitored bool) error {
	if _, err := s.queries.GetEvent(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to get event: %w", err)
	}
	if err := s.queries.UpdateEventMonitored(ctx, id, boolToInt(monitored)); err != nil {
		return fmt.Errorf("failed to update monitored flag: %w", err)
	}
	s.broadcast("event:updated", map[string]interface{}{"id": id, "monitored": monitored})
	return nil
}

// Delete removes an event. Files on disk are removed only when deleteFiles
// is set; rows cascade either way.
func (s *Service) Delete(ctx context.Context, id int64, deleteFiles bool) error {
	row, err := s.queries.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to get event: %w", err)
	}

	if deleteFiles {
		files, err := s.queries.ListEventFiles(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list event files: %w", err)
		}
		for _, f := range files {
			if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
				s.logger.Warn().Err(err).Str("path", f.Path).Msg("failed to remove event file from disk")
			}
		}
	}

	if err := s.queries.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	s.logger.Info().Int64("eventId", id).Str("title", row.Title).Bool("deleteFiles", deleteFiles).Msg("event removed")
	s.broadcast("event:removed", map[string]interface{}{"id": id})
	return nil
}

// Parts.

// AddPart appends a named part to an event.
func (s *Service) AddPart(ctx context.Context, eventID int64, name string) (*Part, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: part name is required", ErrInvalidEvent)
	}
	if _, err := s.queries.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	existing, err := s.queries.ListEventParts(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event parts: %w", err)
	}
	row, err := s.queries.CreateEventPart(ctx, eventID, name, int64(len(existing)))
	if err != nil {
		return nil, fmt.Errorf("failed to create event part: %w", err)
	}
	p := rowToPart(row)
	s.broadcast("event:updated", map[string]interface{}{"id": eventID})
	return &p, nil
}

// SetPartMonitored toggles acquisition for a single part.
func (s *Service) SetPartMonitored(ctx context.Context, partID int64, monitored bool) error {
	if _, err := s.queries.GetEventPart(ctx, partID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPartNotFound
		}
		return fmt.Errorf("failed to get event part: %w", err)
	}
	return s.queries.UpdateEventPartMonitored(ctx, partID, boolToInt(monitored))
}

// RemovePart deletes a part.
func (s *Service) RemovePart(ctx context.Context, partID int64) error {
	if _, err := s.queries.GetEventPart(ctx, partID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPartNotFound
		}
		return fmt.Errorf("failed to get event part: %w", err)
	}
	return s.queries.DeleteEventPart(ctx, partID)
}

// Files.

// ListFiles returns the media files attached to an event.
func (s *Service) ListFiles(ctx context.Context, eventID int64) ([]File, error) {
	rows, err := s.queries.ListEventFiles(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event files: %w", err)
	}
	files := make([]File, len(rows))
	for i, row := range rows {
		files[i] = rowToFile(row)
	}
	return files, nil
}

// DeleteFile removes a file row and optionally the file on disk.
func (s *Service) DeleteFile(ctx context.Context, eventID, fileID int64, fromDisk bool) error {
	rows, err := s.queries.ListEventFiles(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to list event files: %w", err)
	}
	var target *store.EventFile
	for i := range rows {
		if rows[i].ID == fileID {
			target = &rows[i]
			break
		}
	}
	if target == nil {
		return ErrFileNotFound
	}

	if fromDisk {
		if err := os.Remove(target.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove file from disk: %w", err)
		}
	}
	if err := s.queries.DeleteEventFile(ctx, fileID); err != nil {
		return fmt.Errorf("failed to delete event file: %w", err)
	}

	if s.hist != nil {
		s.hist.RecordFileDeleted(ctx, eventID, target.Path)
	}
	s.broadcast("event:updated", map[string]interface{}{"id": eventID})
	return nil
}

// hydrate builds the API view from a store row plus parts, files and queue state.
func (s *Service) hydrate(ctx context.Context, row store.Event) (*Event, error) {
	ev := rowToEvent(row)

	parts, err := s.queries.ListEventParts(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event parts: %w", err)
	}
	for _, p := range parts {
		ev.Parts = append(ev.Parts, rowToPart(p))
	}

	files, err := s.queries.ListEventFiles(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event files: %w", err)
	}
	for _, f := range files {
		ev.Files = append(ev.Files, rowToFile(f))
		ev.SizeOnDisk += f.Size
	}
	ev.HasFile = len(files) > 0

	ev.Status = s.computeStatus(ctx, row.ID, files)
	return ev, nil
}

// computeStatus derives the acquisition state shown in the UI.
func (s *Service) computeStatus(ctx context.Context, eventID int64, files []store.EventFile) string {
	if len(files) > 0 {
		for _, f := range files {
			if f.Source != "IPTV" {
				return StatusDownloaded
			}
		}
		return StatusRecorded
	}
	items, err := s.queries.ListQueueItemsForEvent(ctx, eventID)
	if err == nil {
		for _, it := range items {
			if !it.ImportedAt.Valid && it.Status != "failed" {
				return StatusQueued
			}
		}
	}
	return StatusMissing
}

func (s *Service) broadcast(msgType string, payload interface{}) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Broadcast(msgType, payload); err != nil {
		s.logger.Debug().Err(err).Str("type", msgType).Msg("broadcast failed")
	}
}

func rowToEvent(row store.Event) *Event {
	ev := &Event{
		ID:         row.ID,
		Title:      row.Title,
		SortTitle:  row.SortTitle,
		Sport:      row.Sport,
		League:     row.League,
		Season:     row.Season,
		HomeTeam:   row.HomeTeam,
		AwayTeam:   row.AwayTeam,
		Venue:      row.Venue,
		EventDate:  row.EventDate,
		ExternalID: row.ExternalID,
		Overview:   row.Overview,
		Monitored:  row.Monitored == 1,
		AddedAt:    row.CreatedAt,
	}
	if row.EventNumber.Valid {
		ev.EventNumber = int(row.EventNumber.Int64)
	}
	if row.BroadcastAt.Valid {
		t := row.BroadcastAt.Time
		ev.BroadcastAt = &t
	}
	if row.QualityProfileID.Valid {
		ev.QualityProfileID = row.QualityProfileID.Int64
	}
	if row.RootFolderID.Valid {
		ev.RootFolderID = row.RootFolderID.Int64
	}
	if row.LastSearchAt.Valid {
		t := row.LastSearchAt.Time
		ev.LastSearchAt = &t
	}
	return ev
}

func rowToPart(row store.EventPart) Part {
	return Part{
		ID:        row.ID,
		EventID:   row.EventID,
		Name:      row.Name,
		Position:  int(row.Position),
		Monitored: row.Monitored == 1,
	}
}

func rowToFile(row store.EventFile) File {
	f := File{
		ID:             row.ID,
		EventID:        row.EventID,
		Path:           row.Path,
		Size:           row.Size,
		Quality:        row.Quality,
		QualityScore:   int(row.QualityScore),
		FormatScore:    int(row.FormatScore),
		Source:         row.Source,
		ReleaseTitle:   row.ReleaseTitle,
		VideoCodec:     row.VideoCodec,
		AudioCodec:     row.AudioCodec,
		Resolution:     row.Resolution,
		RuntimeSeconds: int(row.RuntimeSeconds),
		AddedAt:        row.AddedAt,
	}
	if row.PartID.Valid {
		f.PartID = row.PartID.Int64
	}
	return f
}

// parseEventTime accepts RFC 3339 or a bare date.
func parseEventTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", value)
	}
	return t.UTC(), nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v > 0}
}

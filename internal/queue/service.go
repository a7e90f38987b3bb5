// Package queue tracks grabbed releases from hand-off to a download
// client through import into the library. The service is the API
// surface over the queue table; the monitor drives each item's status
// from client polls.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/blocklist"
	"github.com/sideline/sideline/internal/downloader"
	"github.com/sideline/sideline/internal/downloader/types"
	"github.com/sideline/sideline/internal/store"
)

var (
	ErrItemNotFound = errors.New("queue item not found")
	ErrNotActive    = errors.New("queue item is no longer active")
)

// Service provides queue operations for the API.
type Service struct {
	queries   *store.Queries
	clients   *downloader.Service
	blocklist *blocklist.Service
	hub       Broadcaster
	logger    zerolog.Logger
}

func NewService(db *sql.DB, clients *downloader.Service, blocklistSvc *blocklist.Service, hub Broadcaster, logger zerolog.Logger) *Service {
	return &Service{
		queries:   store.New(db),
		clients:   clients,
		blocklist: blocklistSvc,
		hub:       hub,
		logger:    logger.With().Str("component", "queue").Logger(),
	}
}

// List returns every queue row, newest grab first, with event and
// client names resolved.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	rows, err := s.queries.ListQueueItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}

	clientNames := map[int64]string{}
	if clients, err := s.queries.ListDownloadClients(ctx); err == nil {
		for _, c := range clients {
			clientNames[c.ID] = c.Name
		}
	}

	eventTitles := map[int64]string{}
	partNames := map[int64]string{}
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		item := rowToItem(row)
		item.ClientName = clientNames[row.ClientID]
		item.EventTitle = s.eventTitle(ctx, eventTitles, row.EventID)
		if row.PartID.Valid {
			item.PartName = s.partName(ctx, partNames, row.PartID.Int64)
		}
		items = append(items, item)
	}
	return items, nil
}

// ListForEvent returns the queue rows for one event.
func (s *Service) ListForEvent(ctx context.Context, eventID int64) ([]Item, error) {
	rows, err := s.queries.ListQueueItemsForEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, rowToItem(row))
	}
	return items, nil
}

// Pause suspends a download in its client.
func (s *Service) Pause(ctx context.Context, id int64) error {
	item, err := s.getRow(ctx, id)
	if err != nil {
		return err
	}
	if item.ImportedAt.Valid {
		return ErrNotActive
	}

	client, err := s.clients.ClientFor(ctx, item.ClientID)
	if err != nil {
		return fmt.Errorf("failed to reach download client: %w", err)
	}
	if err := client.Pause(ctx, item.DownloadID); err != nil {
		return fmt.Errorf("failed to pause download: %w", err)
	}

	if err := s.queries.UpdateQueueItemStatus(ctx, id, string(types.StatusPaused), ""); err != nil {
		return fmt.Errorf("failed to update queue item: %w", err)
	}
	s.logger.Info().Int64("id", id).Str("title", item.Title).Msg("download paused")
	s.BroadcastState(ctx)
	return nil
}

// Resume restarts a paused download in its client.
func (s *Service) Resume(ctx context.Context, id int64) error {
	item, err := s.getRow(ctx, id)
	if err != nil {
		return err
	}
	if item.ImportedAt.Valid {
		return ErrNotActive
	}

	client, err := s.clients.ClientFor(ctx, item.ClientID)
	if err != nil {
		return fmt.Errorf("failed to reach download client: %w", err)
	}
	if err := client.Resume(ctx, item.DownloadID); err != nil {
		return fmt.Errorf("failed to resume download: %w", err)
	}

	if err := s.queries.UpdateQueueItemStatus(ctx, id, string(types.StatusDownloading), ""); err != nil {
		return fmt.Errorf("failed to update queue item: %w", err)
	}
	s.logger.Info().Int64("id", id).Str("title", item.Title).Msg("download resumed")
	s.BroadcastState(ctx)
	return nil
}

// RemoveOptions controls what Remove does beyond dropping the row.
type RemoveOptions struct {
	RemoveFromClient bool
	Blocklist        bool
}

// Remove drops a queue row, optionally deleting the download and its
// files from the client and blocking the release from re-grab.
func (s *Service) Remove(ctx context.Context, id int64, opts RemoveOptions) error {
	item, err := s.getRow(ctx, id)
	if err != nil {
		return err
	}

	if opts.RemoveFromClient && item.DownloadID != "" {
		client, err := s.clients.ClientFor(ctx, item.ClientID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("id", id).Msg("failed to reach client for removal")
		} else if err := client.Remove(ctx, item.DownloadID, true); err != nil && !errors.Is(err, types.ErrNotFound) {
			s.logger.Warn().Err(err).Int64("id", id).Msg("failed to remove download from client")
		}
	}

	if opts.Blocklist {
		_, err := s.blocklist.Add(ctx, blocklist.BlockInput{
			EventID:     item.EventID,
			Title:       item.Title,
			InfoHash:    item.InfoHash,
			IndexerName: item.IndexerName,
			Protocol:    item.Protocol,
			Reason:      "Removed from queue",
		})
		if err != nil {
			s.logger.Warn().Err(err).Int64("id", id).Msg("failed to blocklist removed item")
		}
	}

	if err := s.queries.DeleteQueueItem(ctx, id); err != nil {
		return fmt.Errorf("failed to delete queue item: %w", err)
	}
	s.logger.Info().
		Int64("id", id).
		Str("title", item.Title).
		Bool("removedFromClient", opts.RemoveFromClient).
		Bool("blocklisted", opts.Blocklist).
		Msg("queue item removed")
	s.BroadcastState(ctx)
	return nil
}

// BroadcastState pushes the full queue to the hub.
func (s *Service) BroadcastState(ctx context.Context) {
	if s.hub == nil {
		return
	}
	items, err := s.List(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to build queue broadcast")
		return
	}
	if err := s.hub.Broadcast("queue:state", items); err != nil {
		s.logger.Warn().Err(err).Msg("failed to broadcast queue state")
	}
}

func (s *Service) getRow(ctx context.Context, id int64) (store.QueueItem, error) {
	item, err := s.queries.GetQueueItem(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.QueueItem{}, ErrItemNotFound
		}
		return store.QueueItem{}, fmt.Errorf("failed to get queue item: %w", err)
	}
	return item, nil
}

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

func (s *Service) partName(ctx context.Context, cache map[int64]string, partID int64) string {
	if name, ok := cache[partID]; ok {
		return name
	}
	part, err := s.queries.GetEventPart(ctx, partID)
	if err != nil {
		cache[partID] = ""
		return ""
	}
	cache[partID] = part.Name
	return part.Name
}

func rowToItem(row store.QueueItem) Item {
	item := Item{
		ID:                row.ID,
		EventID:           row.EventID,
		ClientID:          row.ClientID,
		DownloadID:        row.DownloadID,
		Title:             row.Title,
		InfoHash:          row.InfoHash,
		IndexerName:       row.IndexerName,
		Protocol:          row.Protocol,
		Size:              row.Size,
		Downloaded:        row.Downloaded,
		Progress:          row.Progress,
		TimeRemainingSecs: row.TimeRemainingSecs,
		Status:            row.Status,
		StatusMessage:     row.StatusMessage,
		RetryCount:        row.RetryCount,
		Quality:           row.Quality,
		OutputPath:        row.OutputPath,
		GrabbedAt:         row.GrabbedAt,
	}
	if row.PartID.Valid {
		item.PartID = row.PartID.Int64
	}
	if row.ImportedAt.Valid {
		t := row.ImportedAt.Time
		item.ImportedAt = &t
	}
	return item
}

package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/blocklist"
	"github.com/sideline/sideline/internal/downloader/types"
	"github.com/sideline/sideline/internal/history"
	"github.com/sideline/sideline/internal/store"
)

const (
	// Strikes before a download missing from its client drops the row.
	missingStrikes = 3
	// Failed grabs per event before replacement searches stop.
	maxRetries = 3
	// Debrid-backed clients park finished transfers paused at full
	// progress instead of reporting completion.
	debridCompleteProgress = 99.9

	sweepTimeout = 5 * time.Minute
)

// Config holds monitor tunables.
type Config struct {
	// StallThreshold is how long a download may sit without progress
	// before it is flagged stalled.
	StallThreshold time.Duration
	// RedownloadFailed leaves failed items eligible for replacement
	// searches until maxRetries is reached.
	RedownloadFailed bool
}

// Monitor advances every tracked download through the queue state
// machine on each sweep: poll the client, normalize the status, then
// run the completion or failure path when an item crosses a terminal
// edge. Each item commits independently so one poison item cannot roll
// back its siblings.
type Monitor struct {
	service  *Service
	queries  *store.Queries
	importer Importer
	history  *history.Service
	cfg      Config
	logger   zerolog.Logger

	mu       sync.Mutex
	sweeping bool
}

func NewMonitor(service *Service, importer Importer, historySvc *history.Service, cfg Config, logger zerolog.Logger) *Monitor {
	return &Monitor{
		service:  service,
		queries:  service.queries,
		importer: importer,
		history:  historySvc,
		cfg:      cfg,
		logger:   logger.With().Str("component", "queue-monitor").Logger(),
	}
}

// Trigger runs a sweep in the background without waiting for the next
// scheduled tick. Used after grabs so fresh items get polled
// immediately. If a sweep is already running the trigger is dropped;
// the running sweep observes the new row anyway.
func (m *Monitor) Trigger() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if err := m.Sweep(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("triggered sweep failed")
		}
	}()
}

// Sweep runs one monitor pass over every unimported queue item.
// Concurrent calls collapse: if a sweep is already running, the call
// returns immediately.
func (m *Monitor) Sweep(ctx context.Context) error {
	if !m.begin() {
		return nil
	}
	defer m.end()

	items, err := m.queries.ListUnimportedQueueItems(ctx)
	if err != nil {
		return fmt.Errorf("failed to list queue items: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	byClient := map[int64][]store.QueueItem{}
	for _, item := range items {
		byClient[item.ClientID] = append(byClient[item.ClientID], item)
	}
	clientIDs := make([]int64, 0, len(byClient))
	for id := range byClient {
		clientIDs = append(clientIDs, id)
	}
	sort.Slice(clientIDs, func(i, j int) bool { return clientIDs[i] < clientIDs[j] })

	rows, err := m.queries.ListDownloadClients(ctx)
	if err != nil {
		return fmt.Errorf("failed to list download clients: %w", err)
	}
	clientRows := make(map[int64]store.DownloadClient, len(rows))
	for _, row := range rows {
		clientRows[row.ID] = row
	}

	sw := &sweepState{monitored: map[string]bool{}}
	changed := 0

	for _, clientID := range clientIDs {
		clientRow, ok := clientRows[clientID]
		if !ok {
			// Client rows cascade-delete their queue items, so this is
			// a read race at worst.
			continue
		}

		client, err := m.service.clients.ClientFor(ctx, clientID)
		if err != nil {
			m.logger.Warn().Err(err).Int64("clientId", clientID).Msg("failed to build download client")
			continue
		}
		downloads, err := client.List(ctx)
		if err != nil {
			// Transport trouble is not "missing": items keep their
			// counters until the client answers again.
			m.logger.Warn().Err(err).Int64("clientId", clientID).Msg("failed to list downloads")
			continue
		}
		lookup := make(map[string]types.DownloadItem, len(downloads))
		for _, d := range downloads {
			lookup[d.ID] = d
		}

		for _, item := range byClient[clientID] {
			if err := ctx.Err(); err != nil {
				return err
			}
			if m.processItem(ctx, sw, item, clientRow, client, lookup) {
				changed++
			}
		}
	}

	if changed > 0 {
		m.service.BroadcastState(ctx)
	}
	return nil
}

func (m *Monitor) begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sweeping {
		return false
	}
	m.sweeping = true
	return true
}

func (m *Monitor) end() {
	m.mu.Lock()
	m.sweeping = false
	m.mu.Unlock()
}

// sweepState caches monitored flags so one sweep hits each event and
// part row at most once.
type sweepState struct {
	monitored map[string]bool
}

func (m *Monitor) processItem(ctx context.Context, sw *sweepState, item store.QueueItem, clientRow store.DownloadClient, client types.Client, downloads map[string]types.DownloadItem) bool {
	// Failed is a sink for the row: the failure path already ran, and
	// the only ways out are a replacement grab, a manual resume, or
	// removal. Re-deriving status here would thrash the import and
	// retry machinery against a client that still reports the download.
	if item.Status == string(types.StatusFailed) {
		return false
	}

	d, found := downloads[item.DownloadID]
	if !found {
		return m.handleMissing(ctx, item)
	}
	if item.MissingCount > 0 {
		if err := m.queries.UpdateQueueItemMissingCount(ctx, item.ID, 0); err != nil {
			m.logger.Warn().Err(err).Int64("id", item.ID).Msg("failed to reset missing count")
		}
	}

	now := time.Now().UTC()
	status, message := normalize(d)

	progressAt := item.LastProgressAt
	if d.Progress >= item.Progress+0.1 {
		progressAt = sql.NullTime{Time: now, Valid: true}
	}

	if status == string(types.StatusDownloading) {
		since := item.GrabbedAt
		if progressAt.Valid {
			since = progressAt.Time
		}
		if now.Sub(since) >= m.cfg.StallThreshold {
			status = string(types.StatusWarning)
			message = "Download stalled"
		}
	}

	// An unmonitored event downgrades active items to a warning; the
	// polled status takes back over once it is monitored again.
	if status != string(types.StatusCompleted) && status != string(types.StatusFailed) {
		if !m.isMonitored(ctx, sw, item) {
			status = string(types.StatusWarning)
			message = "Event is not monitored"
		}
	}

	size := d.Size
	if size == 0 {
		size = item.Size
	}
	// Clients occasionally report a byte or two past the total while
	// finalizing; keep the stored row within bounds.
	downloaded := d.Downloaded
	if downloaded < 0 {
		downloaded = 0
	}
	if size > 0 && downloaded > size {
		downloaded = size
	}
	progress := d.Progress
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	outputPath := d.OutputPath
	if outputPath == "" && d.DownloadDir != "" {
		outputPath = filepath.Join(d.DownloadDir, d.Name)
	}

	err := m.queries.UpdateQueueItemProgress(ctx, store.UpdateQueueProgressParams{
		ID:                item.ID,
		DownloadID:        item.DownloadID,
		Size:              size,
		Downloaded:        downloaded,
		Progress:          progress,
		TimeRemainingSecs: d.ETASeconds,
		Status:            status,
		StatusMessage:     message,
		OutputPath:        outputPath,
		LastProgressAt:    progressAt,
	})
	if err != nil {
		m.logger.Warn().Err(err).Int64("id", item.ID).Msg("failed to update queue item")
		return false
	}

	if status != item.Status {
		m.logger.Info().
			Int64("id", item.ID).
			Str("title", item.Title).
			Str("from", item.Status).
			Str("to", status).
			Msg("queue item transitioned")
	}

	if status == string(types.StatusCompleted) && !item.ImportedAt.Valid {
		m.handleCompleted(ctx, item.ID, clientRow, client)
		return true
	}
	if status == string(types.StatusFailed) && item.Status != string(types.StatusFailed) {
		m.handleFailed(ctx, item, clientRow, client, message)
		return true
	}

	return status != item.Status ||
		message != item.StatusMessage ||
		progress != item.Progress ||
		outputPath != item.OutputPath
}

// handleMissing counts strikes against an item its client no longer
// reports; the third consecutive one drops the row.
func (m *Monitor) handleMissing(ctx context.Context, item store.QueueItem) bool {
	count := item.MissingCount + 1
	if count >= missingStrikes {
		m.logger.Info().
			Int64("id", item.ID).
			Str("title", item.Title).
			Str("downloadId", item.DownloadID).
			Msg("download missing from client, dropping queue item")
		if err := m.queries.DeleteQueueItem(ctx, item.ID); err != nil {
			m.logger.Warn().Err(err).Int64("id", item.ID).Msg("failed to delete queue item")
			return false
		}
		return true
	}

	if err := m.queries.UpdateQueueItemMissingCount(ctx, item.ID, count); err != nil {
		m.logger.Warn().Err(err).Int64("id", item.ID).Msg("failed to update missing count")
	}
	return false
}

// handleCompleted imports a finished download. Import runs at most once
// per item: importedAt stays null until it succeeds, so a crash mid-way
// retries on the next sweep and the importer's destination check keeps
// the retry from copying twice.
func (m *Monitor) handleCompleted(ctx context.Context, itemID int64, clientRow store.DownloadClient, client types.Client) {
	if err := m.queries.UpdateQueueItemStatus(ctx, itemID, StatusImporting, ""); err != nil {
		m.logger.Warn().Err(err).Int64("id", itemID).Msg("failed to mark queue item importing")
		return
	}

	item, err := m.queries.GetQueueItem(ctx, itemID)
	if err != nil {
		m.logger.Warn().Err(err).Int64("id", itemID).Msg("failed to reload queue item")
		return
	}

	m.logger.Info().Int64("id", item.ID).Str("title", item.Title).Msg("download completed, importing")

	if err := m.importer.Import(ctx, item); err != nil {
		message := "Import failed: " + err.Error()
		m.logger.Warn().Err(err).Int64("id", item.ID).Str("title", item.Title).Msg("import failed")
		if err := m.queries.UpdateQueueItemStatus(ctx, item.ID, string(types.StatusFailed), message); err != nil {
			m.logger.Warn().Err(err).Int64("id", item.ID).Msg("failed to mark queue item failed")
			return
		}
		m.handleFailed(ctx, item, clientRow, client, message)
		return
	}

	if err := m.queries.MarkQueueItemImported(ctx, item.ID, time.Now().UTC()); err != nil {
		m.logger.Warn().Err(err).Int64("id", item.ID).Msg("failed to mark queue item imported")
		return
	}
	m.logger.Info().Int64("id", item.ID).Str("title", item.Title).Msg("queue item imported")

	if clientRow.RemoveCompleted != 0 {
		if err := client.Remove(ctx, item.DownloadID, true); err != nil && !errors.Is(err, types.ErrNotFound) {
			m.logger.Warn().Err(err).Int64("id", item.ID).Msg("failed to remove completed download from client")
		}
	}
}

// handleFailed runs once per failure: bump the retry count, blocklist
// the release so replacement searches skip it, and either leave the row
// for the next search cycle or annotate that retries ran out.
func (m *Monitor) handleFailed(ctx context.Context, item store.QueueItem, clientRow store.DownloadClient, client types.Client, reason string) {
	retry := item.RetryCount + 1
	if err := m.queries.UpdateQueueItemRetryCount(ctx, item.ID, retry); err != nil {
		m.logger.Warn().Err(err).Int64("id", item.ID).Msg("failed to update retry count")
	}

	if _, err := m.service.blocklist.Add(ctx, blocklist.BlockInput{
		EventID:     item.EventID,
		Title:       item.Title,
		InfoHash:    item.InfoHash,
		IndexerName: item.IndexerName,
		Protocol:    item.Protocol,
		Reason:      reason,
	}); err != nil {
		m.logger.Warn().Err(err).Int64("id", item.ID).Msg("failed to blocklist failed release")
	}

	m.history.RecordDownloadFailed(ctx, item.EventID, item.Title, history.DownloadFailedData{
		DownloadClient: clientRow.Name,
		Reason:         reason,
		RetryCount:     retry,
	})

	if clientRow.RemoveFailed != 0 {
		if err := client.Remove(ctx, item.DownloadID, true); err != nil && !errors.Is(err, types.ErrNotFound) {
			m.logger.Warn().Err(err).Int64("id", item.ID).Msg("failed to remove failed download from client")
		}
	}

	if m.cfg.RedownloadFailed && retry < maxRetries {
		m.logger.Info().
			Int64("id", item.ID).
			Str("title", item.Title).
			Int64("retryCount", retry).
			Msg("download failed, leaving for replacement search")
		return
	}

	message := reason
	if m.cfg.RedownloadFailed {
		message = fmt.Sprintf("Download failed %d times; giving up", retry)
	}
	if err := m.queries.UpdateQueueItemStatus(ctx, item.ID, string(types.StatusFailed), message); err != nil {
		m.logger.Warn().Err(err).Int64("id", item.ID).Msg("failed to annotate failed queue item")
	}
	m.logger.Warn().
		Int64("id", item.ID).
		Str("title", item.Title).
		Int64("retryCount", retry).
		Msg("download failed, not retrying")
}

func (m *Monitor) isMonitored(ctx context.Context, sw *sweepState, item store.QueueItem) bool {
	key := fmt.Sprintf("event:%d", item.EventID)
	monitored, ok := sw.monitored[key]
	if !ok {
		event, err := m.queries.GetEvent(ctx, item.EventID)
		if err != nil {
			// A lookup hiccup must not spray warnings over the queue.
			monitored = true
		} else {
			monitored = event.Monitored != 0
		}
		sw.monitored[key] = monitored
	}
	if !monitored {
		return false
	}

	if item.PartID.Valid {
		key := fmt.Sprintf("part:%d", item.PartID.Int64)
		partMonitored, ok := sw.monitored[key]
		if !ok {
			part, err := m.queries.GetEventPart(ctx, item.PartID.Int64)
			if err != nil {
				partMonitored = true
			} else {
				partMonitored = part.Monitored != 0
			}
			sw.monitored[key] = partMonitored
		}
		return partMonitored
	}
	return true
}

// normalize maps one client poll onto the queue status set.
func normalize(d types.DownloadItem) (string, string) {
	switch d.Status {
	case types.StatusPaused:
		if d.Progress >= debridCompleteProgress {
			return string(types.StatusCompleted), ""
		}
		return string(types.StatusPaused), ""
	case types.StatusFailed:
		message := d.Error
		if message == "" {
			message = "Download failed"
		}
		return string(types.StatusFailed), message
	case types.StatusWarning:
		return string(types.StatusWarning), d.Error
	case types.StatusUnknown:
		return string(types.StatusWarning), "Download client reported an unrecognized state"
	default:
		return string(d.Status), ""
	}
}

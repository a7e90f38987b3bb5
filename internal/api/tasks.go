package api

import (
	"fmt"

	"github.com/sideline/sideline/internal/scheduler/tasks"
)

// registerTasks wires the recurring jobs into the scheduler. Intervals
// come from configuration; the scheduler itself is started by main once
// the server is constructed.
func (s *Server) registerTasks() error {
	if s.scheduler == nil {
		return nil
	}

	if err := tasks.RegisterRSSSyncTask(s.scheduler, s.rssSyncService, s.cfg.Indexers.RSSIntervalMinutes); err != nil {
		return fmt.Errorf("rss sync task: %w", err)
	}
	if err := tasks.RegisterSearchSweepTask(s.scheduler, s.searchService, s.cfg.Search.IntervalMinutes); err != nil {
		return fmt.Errorf("search sweep task: %w", err)
	}
	if err := tasks.RegisterQueueMonitorTask(s.scheduler, s.queueMonitor, s.cfg.Downloads.MonitorIntervalSeconds); err != nil {
		return fmt.Errorf("queue monitor task: %w", err)
	}
	if err := tasks.RegisterCacheSweepTask(s.scheduler, s.cacheService, s.cfg.Indexers.CacheSweepMinutes); err != nil {
		return fmt.Errorf("cache sweep task: %w", err)
	}
	if err := tasks.RegisterEPGRefreshTask(s.scheduler, s.epgService, s.cfg.EPG.RefreshHours, s.cfg.EPG.URL); err != nil {
		return fmt.Errorf("epg refresh task: %w", err)
	}
	if err := tasks.RegisterDVRTasks(s.scheduler, s.dvrService, s.cfg.DVR.Enabled, s.cfg.DVR.IntervalMinutes); err != nil {
		return fmt.Errorf("dvr tasks: %w", err)
	}
	if err := tasks.RegisterHistoryCleanupTask(s.scheduler, s.historyService); err != nil {
		return fmt.Errorf("history cleanup task: %w", err)
	}

	interval := s.cfg.Health.CheckIntervalMinutes
	if err := tasks.RegisterIndexerHealthTask(s.scheduler, s.indexerService, s.healthService, interval, s.logs.Logger); err != nil {
		return fmt.Errorf("indexer health task: %w", err)
	}
	if err := tasks.RegisterClientHealthTask(s.scheduler, s.downloaderService, s.healthService, interval, s.logs.Logger); err != nil {
		return fmt.Errorf("client health task: %w", err)
	}
	if err := tasks.RegisterRootFolderHealthTask(s.scheduler, s.queries, s.healthService, interval, s.logs.Logger); err != nil {
		return fmt.Errorf("root folder health task: %w", err)
	}
	if err := tasks.RegisterDVRHealthTask(s.scheduler, s.dvrService, s.healthService, interval, s.logs.Logger); err != nil {
		return fmt.Errorf("dvr health task: %w", err)
	}

	return nil
}

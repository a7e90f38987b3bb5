// Package dvr records monitored events straight off mapped IPTV channels.
// Scheduling runs in two phases: league mappings pick the channel, then the
// programme guide pins the exact air time. Finished captures are retitled
// like scene releases and imported through the regular pipeline, so a
// capture competes with indexer releases instead of bypassing them.
package dvr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/history"
	"github.com/sideline/sideline/internal/importer"
	"github.com/sideline/sideline/internal/mediainfo"
	"github.com/sideline/sideline/internal/parser"
	"github.com/sideline/sideline/internal/quality"
	"github.com/sideline/sideline/internal/store"
)

// Recording lifecycle statuses.
const (
	StatusScheduled = "scheduled"
	StatusRecording = "recording"
	StatusCompleted = "completed"
	StatusImported  = "imported"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

const (
	// defaultEventDuration pads recordings when no guide entry pins the
	// air window.
	defaultEventDuration = 3 * time.Hour
	// stopGrace is how far past the scheduled end a capture may run
	// before it is interrupted.
	stopGrace = 2 * time.Minute
	// minRemaining is the shortest window still worth starting.
	minRemaining = time.Minute
	// staleEventAge is how long after air time a scheduled recording is
	// still worth keeping.
	staleEventAge = 6 * time.Hour
)

var (
	ErrRecordingNotFound = errors.New("recording not found")
	ErrNotCancellable    = errors.New("recording cannot be cancelled in its current state")
	ErrNotRetryable      = errors.New("recording cannot be retried")
	ErrDVRDisabled       = errors.New("dvr is disabled")
)

// Broadcaster pushes recording lifecycle updates to connected UIs.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Config tunes the scheduler.
type Config struct {
	Enabled bool
	// Window is how far ahead events are scheduled for recording.
	Window time.Duration
	// PrePad starts captures early; PostPad lets overtime finish.
	PrePad  time.Duration
	PostPad time.Duration
	// OutputDir receives in-progress capture files.
	OutputDir string
	// EncodingProfile selects the ffmpeg codec arguments.
	EncodingProfile string
}

// DefaultConfig returns scheduler defaults.
func DefaultConfig() Config {
	return Config{
		Window:          14 * 24 * time.Hour,
		PrePad:          5 * time.Minute,
		PostPad:         30 * time.Minute,
		EncodingProfile: "copy",
	}
}

// Service schedules, dispatches, and imports channel recordings.
type Service struct {
	queries  *store.Queries
	recorder *Recorder
	watcher  *OutputWatcher
	importer *importer.Service
	profiles *quality.Service
	probe    *mediainfo.Service
	hist     *history.Service
	hub      Broadcaster
	cfg      Config
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// completeMu serializes completion: the recorder result and the
	// stability watcher can both report the same capture.
	completeMu sync.Mutex
}

// NewService creates the DVR service.
func NewService(
	db *sql.DB,
	recorder *Recorder,
	watcher *OutputWatcher,
	imp *importer.Service,
	profiles *quality.Service,
	probe *mediainfo.Service,
	hist *history.Service,
	hub Broadcaster,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.PrePad <= 0 {
		cfg.PrePad = def.PrePad
	}
	if cfg.PostPad <= 0 {
		cfg.PostPad = def.PostPad
	}
	if cfg.EncodingProfile == "" {
		cfg.EncodingProfile = def.EncodingProfile
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		queries:  store.New(db),
		recorder: recorder,
		watcher:  watcher,
		importer: imp,
		profiles: profiles,
		probe:    probe,
		hist:     hist,
		hub:      hub,
		cfg:      cfg,
		logger:   logger.With().Str("component", "dvr").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the output watcher and the completion worker.
func (s *Service) Start() error {
	if err := s.watcher.Start(); err != nil {
		return fmt.Errorf("failed to start output watcher: %w", err)
	}
	s.wg.Add(1)
	go s.worker()
	return nil
}

// Stop interrupts running captures and waits for workers to drain.
func (s *Service) Stop() {
	s.recorder.Close()
	if err := s.watcher.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to stop output watcher")
	}
	s.cancel()
	s.wg.Wait()
}

// worker turns recorder exits and stable files into completed recordings.
func (s *Service) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case res := <-s.recorder.Results():
			s.onJobResult(res)
		case path := <-s.watcher.Stable():
			s.onStableFile(path)
		}
	}
}

func (s *Service) onJobResult(res JobResult) {
	ctx := s.ctx
	rec, err := s.queries.GetRecording(ctx, res.RecordingID)
	if err != nil {
		s.logger.Error().Err(err).Int64("recordingId", res.RecordingID).Msg("recording row missing for finished job")
		return
	}

	switch rec.Status {
	case StatusCancelled:
		if err := os.Remove(res.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", res.OutputPath).Msg("failed to remove cancelled capture")
		}
		return
	case StatusRecording, StatusCompleted:
	default:
		return
	}

	if res.Err != nil {
		s.fail(ctx, rec, "capture failed: "+res.Err.Error())
		return
	}
	s.complete(ctx, rec.ID)
}

// onStableFile handles a capture file that stopped growing. A stable file
// under a live job means the stream stalled: stopping the job routes
// completion through the normal result path.
func (s *Service) onStableFile(path string) {
	ctx := s.ctx
	rec, err := s.queries.GetRecordingByOutputPath(ctx, path)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error().Err(err).Str("path", path).Msg("failed to look up stable file")
		}
		return
	}
	if rec.Status != StatusRecording {
		return
	}

	if s.recorder.Running(rec.JobID) {
		s.logger.Warn().Int64("recordingId", rec.ID).Str("path", path).Msg("capture stalled, stopping job")
		s.recorder.Stop(rec.JobID)
		return
	}
	s.complete(ctx, rec.ID)
}

// complete finalizes a capture and imports it. Idempotent: both completion
// signals can fire for the same recording.
func (s *Service) complete(ctx context.Context, id int64) {
	s.completeMu.Lock()
	defer s.completeMu.Unlock()

	rec, err := s.queries.GetRecording(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("recordingId", id).Msg("failed to load recording for completion")
		return
	}
	switch rec.Status {
	case StatusRecording, StatusCompleted:
	default:
		return
	}

	info, err := os.Stat(rec.OutputPath)
	if err != nil || info.Size() == 0 {
		s.fail(ctx, rec, "capture produced no output")
		return
	}

	if rec.Status == StatusRecording {
		if err := s.queries.UpdateRecordingFinished(ctx, rec.ID, time.Now(), info.Size(), StatusCompleted); err != nil {
			s.logger.Error().Err(err).Int64("recordingId", rec.ID).Msg("failed to mark recording completed")
			return
		}
		s.broadcast("dvr:completed", map[string]interface{}{
			"recordingId": rec.ID,
			"eventId":     rec.EventID,
			"size":        info.Size(),
		})
	}

	s.importCapture(ctx, rec, info.Size())
}

// importCapture retitles the capture like a scene release and hands it to
// the importer, so it scores and upgrades like anything grabbed from an
// indexer.
func (s *Service) importCapture(ctx context.Context, rec store.Recording, size int64) {
	ev, err := s.queries.GetEvent(ctx, rec.EventID)
	if err != nil {
		s.fail(ctx, rec, "event no longer exists")
		return
	}

	var info *mediainfo.MediaInfo
	if s.probe != nil {
		info = s.probe.ProbeWithFallback(ctx, rec.OutputPath, &mediainfo.MediaInfo{})
	}
	title := BuildTitle(ev, settingsFromProbe(info))
	parsed := parser.Parse(title)
	profile, formats := s.loadProfile(ctx, ev)
	score := quality.ScoreRelease(profile, formats, title, parsed, size)

	file, err := s.importer.ImportRecording(ctx, importer.RecordingImport{
		Event:        ev,
		PartID:       rec.PartID,
		SourcePath:   rec.OutputPath,
		ReleaseTitle: title,
		Quality:      parsed.Quality.Name(),
		QualityScore: int64(score.Quality),
		FormatScore:  int64(score.Format),
		Info:         info,
	})
	if err != nil {
		s.fail(ctx, rec, "import failed: "+err.Error())
		return
	}

	if err := s.queries.UpdateRecordingStatus(ctx, rec.ID, StatusImported, ""); err != nil {
		s.logger.Error().Err(err).Int64("recordingId", rec.ID).Msg("failed to mark recording imported")
	}
	// The capture landed in the library; the working copy is done.
	if err := os.Remove(rec.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Debug().Err(err).Str("path", rec.OutputPath).Msg("failed to remove capture file")
	}

	data := history.RecordingData{
		Channel: s.channelName(ctx, rec.ChannelID),
		EndAt:   time.Now(),
		Path:    file.Path,
	}
	if rec.ActualStart.Valid {
		data.StartAt = rec.ActualStart.Time
	}
	if s.hist != nil {
		s.hist.RecordRecording(ctx, history.EventTypeRecordingImported, ev.ID, title, data)
	}
	s.broadcast("dvr:imported", map[string]interface{}{
		"recordingId": rec.ID,
		"eventId":     ev.ID,
		"title":       title,
		"path":        file.Path,
	})
	s.logger.Info().
		Int64("recordingId", rec.ID).
		Int64("eventId", ev.ID).
		Str("title", title).
		Int64("size", size).
		Msg("recording imported")
}

func (s *Service) fail(ctx context.Context, rec store.Recording, msg string) {
	if err := s.queries.UpdateRecordingStatus(ctx, rec.ID, StatusFailed, msg); err != nil {
		s.logger.Error().Err(err).Int64("recordingId", rec.ID).Msg("failed to mark recording failed")
		return
	}
	if s.hist != nil {
		s.hist.RecordRecording(ctx, history.EventTypeRecordingFailed, rec.EventID, rec.Title, history.RecordingData{
			Channel: s.channelName(ctx, rec.ChannelID),
			Error:   msg,
		})
	}
	s.broadcast("dvr:failed", map[string]interface{}{
		"recordingId": rec.ID,
		"eventId":     rec.EventID,
		"error":       msg,
	})
	s.logger.Warn().Int64("recordingId", rec.ID).Str("reason", msg).Msg("recording failed")
}

func (s *Service) loadProfile(ctx context.Context, ev store.Event) (*quality.Profile, []quality.CustomFormat) {
	var profile *quality.Profile
	if ev.QualityProfileID.Valid {
		p, err := s.profiles.GetProfile(ctx, ev.QualityProfileID.Int64)
		if err != nil && !errors.Is(err, quality.ErrProfileNotFound) {
			s.logger.Warn().Err(err).Int64("eventId", ev.ID).Msg("failed to load quality profile")
		}
		profile = p
	}
	if profile == nil {
		def := quality.DefaultProfile()
		profile = &def
	}
	formats, err := s.profiles.ListFormats(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load custom formats")
	}
	return profile, formats
}

func (s *Service) channelName(ctx context.Context, channelID int64) string {
	ch, err := s.queries.GetChannel(ctx, channelID)
	if err != nil {
		return ""
	}
	return ch.Name
}

func (s *Service) broadcast(msgType string, payload interface{}) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Broadcast(msgType, payload); err != nil {
		s.logger.Debug().Err(err).Str("type", msgType).Msg("failed to broadcast")
	}
}

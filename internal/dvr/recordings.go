package dvr

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"time"

	"github.com/sideline/sideline/internal/store"
)

// RecordingView is the API shape of a recording.
type RecordingView struct {
	ID             int64      `json:"id"`
	EventID        int64      `json:"eventId"`
	PartID         *int64     `json:"partId,omitempty"`
	ChannelID      int64      `json:"channelId"`
	ChannelName    string     `json:"channelName,omitempty"`
	ProgramID      *int64     `json:"programId,omitempty"`
	Title          string     `json:"title"`
	ScheduledStart time.Time  `json:"scheduledStart"`
	ScheduledEnd   time.Time  `json:"scheduledEnd"`
	ActualStart    *time.Time `json:"actualStart,omitempty"`
	ActualEnd      *time.Time `json:"actualEnd,omitempty"`
	OutputPath     string     `json:"outputPath,omitempty"`
	FileSize       int64      `json:"fileSize,omitempty"`
	MatchScore     int64      `json:"matchScore,omitempty"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
}

// Status reports DVR availability for the UI.
type Status struct {
	Enabled         bool   `json:"enabled"`
	RecorderFound   bool   `json:"recorderFound"`
	ActiveCaptures  int    `json:"activeCaptures"`
	OutputDir       string `json:"outputDir"`
	EncodingProfile string `json:"encodingProfile"`
}

// GetStatus returns current DVR availability.
func (s *Service) GetStatus() Status {
	return Status{
		Enabled:         s.cfg.Enabled,
		RecorderFound:   s.recorder.Available(),
		ActiveCaptures:  s.recorder.ActiveCount(),
		OutputDir:       s.cfg.OutputDir,
		EncodingProfile: s.cfg.EncodingProfile,
	}
}

// ListRecordings returns all recordings, newest window first.
func (s *Service) ListRecordings(ctx context.Context) ([]RecordingView, error) {
	rows, err := s.queries.ListRecordings(ctx)
	if err != nil {
		return nil, err
	}
	names, err := s.channelNames(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]RecordingView, 0, len(rows))
	for _, rec := range rows {
		views = append(views, toRecordingView(rec, names[rec.ChannelID]))
	}
	return views, nil
}

// GetRecordingView returns one recording by ID.
func (s *Service) GetRecordingView(ctx context.Context, id int64) (RecordingView, error) {
	rec, err := s.queries.GetRecording(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RecordingView{}, ErrRecordingNotFound
		}
		return RecordingView{}, err
	}
	return toRecordingView(rec, s.channelName(ctx, rec.ChannelID)), nil
}

// CancelRecording stops a scheduled or running recording. The partial
// capture file of a running job is removed once the process exits.
func (s *Service) CancelRecording(ctx context.Context, id int64) (RecordingView, error) {
	rec, err := s.queries.GetRecording(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RecordingView{}, ErrRecordingNotFound
		}
		return RecordingView{}, err
	}

	switch rec.Status {
	case StatusScheduled, StatusRecording:
	default:
		return RecordingView{}, ErrNotCancellable
	}

	if err := s.queries.UpdateRecordingStatus(ctx, rec.ID, StatusCancelled, ""); err != nil {
		return RecordingView{}, err
	}
	if rec.Status == StatusRecording {
		s.recorder.Stop(rec.JobID)
	}

	s.broadcast("dvr:cancelled", map[string]interface{}{
		"recordingId": rec.ID,
		"eventId":     rec.EventID,
	})
	s.logger.Info().Int64("recordingId", rec.ID).Msg("recording cancelled")
	return s.GetRecordingView(ctx, id)
}

// RetryRecording gives a failed recording another chance: re-import when a
// capture file exists, otherwise rearm it while the window is still open.
func (s *Service) RetryRecording(ctx context.Context, id int64) (RecordingView, error) {
	rec, err := s.queries.GetRecording(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RecordingView{}, ErrRecordingNotFound
		}
		return RecordingView{}, err
	}
	if rec.Status != StatusFailed {
		return RecordingView{}, ErrNotRetryable
	}

	if rec.OutputPath != "" {
		if info, err := os.Stat(rec.OutputPath); err == nil && info.Size() > 0 {
			if err := s.queries.UpdateRecordingStatus(ctx, rec.ID, StatusCompleted, ""); err != nil {
				return RecordingView{}, err
			}
			s.complete(ctx, rec.ID)
			return s.GetRecordingView(ctx, id)
		}
	}

	if rec.ScheduledEnd.After(time.Now().Add(minRemaining)) {
		if err := s.queries.UpdateRecordingStatus(ctx, rec.ID, StatusScheduled, ""); err != nil {
			return RecordingView{}, err
		}
		s.logger.Info().Int64("recordingId", rec.ID).Msg("recording rearmed")
		return s.GetRecordingView(ctx, id)
	}
	return RecordingView{}, ErrNotRetryable
}

// DeleteRecording removes a recording row. Running captures must be
// cancelled first. Unimported capture files are removed with the row.
func (s *Service) DeleteRecording(ctx context.Context, id int64) error {
	rec, err := s.queries.GetRecording(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRecordingNotFound
		}
		return err
	}
	if rec.Status == StatusRecording {
		return ErrNotCancellable
	}

	if rec.Status != StatusImported && rec.OutputPath != "" {
		if err := os.Remove(rec.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", rec.OutputPath).Msg("failed to remove capture file")
		}
	}
	return s.queries.DeleteRecording(ctx, id)
}

func (s *Service) channelNames(ctx context.Context) (map[int64]string, error) {
	channels, err := s.queries.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(channels))
	for _, ch := range channels {
		names[ch.ID] = ch.Name
	}
	return names, nil
}

func toRecordingView(rec store.Recording, channelName string) RecordingView {
	view := RecordingView{
		ID:             rec.ID,
		EventID:        rec.EventID,
		ChannelID:      rec.ChannelID,
		ChannelName:    channelName,
		Title:          rec.Title,
		ScheduledStart: rec.ScheduledStart,
		ScheduledEnd:   rec.ScheduledEnd,
		OutputPath:     rec.OutputPath,
		FileSize:       rec.FileSize,
		MatchScore:     rec.MatchScore,
		Status:         rec.Status,
		ErrorMessage:   rec.ErrorMessage,
	}
	if rec.PartID.Valid {
		view.PartID = &rec.PartID.Int64
	}
	if rec.ProgramID.Valid {
		view.ProgramID = &rec.ProgramID.Int64
	}
	if rec.ActualStart.Valid {
		t := rec.ActualStart.Time
		view.ActualStart = &t
	}
	if rec.ActualEnd.Valid {
		t := rec.ActualEnd.Time
		view.ActualEnd = &t
	}
	return view
}

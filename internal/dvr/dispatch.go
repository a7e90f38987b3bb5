package dvr

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sideline/sideline/internal/store"
)

// Dispatch runs on a short cadence: it starts captures whose window opened,
// fails the ones that missed their window, interrupts overruns, and
// finalizes rows orphaned by a process restart.
func (s *Service) Dispatch(ctx context.Context) error {
	if !s.cfg.Enabled {
		return ErrDVRDisabled
	}
	now := time.Now()

	scheduled, err := s.queries.ListRecordingsByStatus(ctx, StatusScheduled)
	if err != nil {
		return err
	}
	for _, rec := range scheduled {
		if rec.ScheduledStart.After(now) {
			continue
		}
		if !rec.ScheduledEnd.After(now.Add(minRemaining)) {
			s.fail(ctx, rec, "recording window passed before capture started")
			continue
		}
		s.startCapture(ctx, rec)
	}

	running, err := s.queries.ListRecordingsByStatus(ctx, StatusRecording)
	if err != nil {
		return err
	}
	for _, rec := range running {
		if s.recorder.Running(rec.JobID) {
			if now.After(rec.ScheduledEnd.Add(stopGrace)) {
				s.logger.Warn().Int64("recordingId", rec.ID).Msg("capture overran its window, stopping")
				s.recorder.Stop(rec.JobID)
			}
			continue
		}

		// No live job for a recording row: the process died or the
		// service restarted mid-capture.
		if now.After(rec.ScheduledEnd) {
			s.complete(ctx, rec.ID)
			continue
		}
		if rec.ScheduledEnd.Sub(now) > minRemaining {
			s.resumeCapture(ctx, rec)
		}
	}
	return nil
}

func (s *Service) startCapture(ctx context.Context, rec store.Recording) {
	channel, err := s.queries.GetChannel(ctx, rec.ChannelID)
	if err != nil {
		s.fail(ctx, rec, "channel no longer exists")
		return
	}

	outputPath := filepath.Join(s.cfg.OutputDir, captureFileName(rec.Title, rec.ScheduledStart))
	err = s.recorder.Start(Job{
		ID:          rec.JobID,
		RecordingID: rec.ID,
		StreamURL:   channel.StreamURL,
		OutputPath:  outputPath,
		Deadline:    rec.ScheduledEnd,
		Profile:     s.cfg.EncodingProfile,
	})
	if err != nil {
		s.fail(ctx, rec, "failed to start capture: "+err.Error())
		return
	}

	if err := s.queries.UpdateRecordingStarted(ctx, rec.ID, time.Now(), outputPath); err != nil {
		s.logger.Error().Err(err).Int64("recordingId", rec.ID).Msg("failed to mark recording started")
	}
	s.broadcast("dvr:started", map[string]interface{}{
		"recordingId": rec.ID,
		"eventId":     rec.EventID,
		"channel":     channel.Name,
		"until":       rec.ScheduledEnd,
	})
	s.logger.Info().
		Int64("recordingId", rec.ID).
		Str("channel", channel.Name).
		Str("output", outputPath).
		Time("until", rec.ScheduledEnd).
		Msg("capture started")
}

// resumeCapture restarts a capture that lost its process mid-window.
// ffmpeg truncates the output file, so the earlier portion is lost; the
// remainder of the window is still worth more than a partial head.
func (s *Service) resumeCapture(ctx context.Context, rec store.Recording) {
	channel, err := s.queries.GetChannel(ctx, rec.ChannelID)
	if err != nil {
		s.fail(ctx, rec, "channel no longer exists")
		return
	}

	err = s.recorder.Start(Job{
		ID:          rec.JobID,
		RecordingID: rec.ID,
		StreamURL:   channel.StreamURL,
		OutputPath:  rec.OutputPath,
		Deadline:    rec.ScheduledEnd,
		Profile:     s.cfg.EncodingProfile,
	})
	if err != nil {
		s.fail(ctx, rec, "failed to resume capture: "+err.Error())
		return
	}
	s.logger.Warn().
		Int64("recordingId", rec.ID).
		Str("channel", channel.Name).
		Time("until", rec.ScheduledEnd).
		Msg("capture resumed after interruption, earlier portion lost")
}

func captureFileName(title string, start time.Time) string {
	return fmt.Sprintf("%s.%s.ts", sceneify(title), start.Format("20060102.1504"))
}

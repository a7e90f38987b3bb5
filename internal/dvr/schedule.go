package dvr

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sideline/sideline/internal/dvr/epgmatch"
	"github.com/sideline/sideline/internal/history"
	"github.com/sideline/sideline/internal/store"
)

// ScheduleResult summarizes one scheduling pass.
type ScheduleResult struct {
	Scheduled int   `json:"scheduled"`
	Refined   int   `json:"refined"`
	Cancelled int   `json:"cancelled"`
	ElapsedMs int64 `json:"elapsedMs"`
}

// Schedule runs the two-phase scheduling pass: pick a channel for every
// monitored event in the window via league mappings, then pin air times
// from the programme guide where a matching broadcast exists. Recordings
// created before guide data arrived are re-pointed once a match shows up.
func (s *Service) Schedule(ctx context.Context) (ScheduleResult, error) {
	if !s.cfg.Enabled {
		return ScheduleResult{}, ErrDVRDisabled
	}
	started := time.Now()
	var res ScheduleResult

	cancelled, err := s.cancelStale(ctx)
	if err != nil {
		return res, err
	}
	res.Cancelled = cancelled

	now := time.Now()
	events, err := s.queries.ListEventsBetween(ctx, now.Add(-defaultEventDuration), now.Add(s.cfg.Window))
	if err != nil {
		return res, err
	}

	for _, ev := range events {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if ev.Monitored != 1 {
			continue
		}
		outcome, err := s.scheduleEvent(ctx, ev, now)
		if err != nil {
			s.logger.Error().Err(err).Int64("eventId", ev.ID).Msg("failed to schedule recording")
			continue
		}
		switch outcome {
		case outcomeScheduled:
			res.Scheduled++
		case outcomeRefined:
			res.Refined++
		}
	}

	res.ElapsedMs = time.Since(started).Milliseconds()
	if res.Scheduled > 0 || res.Refined > 0 || res.Cancelled > 0 {
		s.logger.Info().
			Int("scheduled", res.Scheduled).
			Int("refined", res.Refined).
			Int("cancelled", res.Cancelled).
			Msg("scheduling pass finished")
	}
	return res, nil
}

type scheduleOutcome int

const (
	outcomeSkipped scheduleOutcome = iota
	outcomeScheduled
	outcomeRefined
)

// cancelStale drops scheduled recordings whose event vanished, lost its
// monitored flag, or aired too long ago to still catch.
func (s *Service) cancelStale(ctx context.Context) (int, error) {
	scheduled, err := s.queries.ListRecordingsByStatus(ctx, StatusScheduled)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	cancelled := 0
	for _, rec := range scheduled {
		reason := ""
		ev, err := s.queries.GetEvent(ctx, rec.EventID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			reason = "event was deleted"
		case err != nil:
			s.logger.Error().Err(err).Int64("recordingId", rec.ID).Msg("failed to load event for recording")
			continue
		case ev.Monitored != 1:
			reason = "event is no longer monitored"
		case now.Sub(ev.EventDate) >= staleEventAge:
			reason = "event aired too long ago"
		}
		if reason == "" {
			continue
		}
		if err := s.queries.UpdateRecordingStatus(ctx, rec.ID, StatusCancelled, reason); err != nil {
			s.logger.Error().Err(err).Int64("recordingId", rec.ID).Msg("failed to cancel stale recording")
			continue
		}
		cancelled++
		s.broadcast("dvr:cancelled", map[string]interface{}{
			"recordingId": rec.ID,
			"eventId":     rec.EventID,
			"reason":      reason,
		})
	}
	return cancelled, nil
}

func (s *Service) scheduleEvent(ctx context.Context, ev store.Event, now time.Time) (scheduleOutcome, error) {
	files, err := s.queries.ListEventFiles(ctx, ev.ID)
	if err != nil {
		return outcomeSkipped, err
	}
	if len(files) > 0 {
		return outcomeSkipped, nil
	}

	active, err := s.queries.ListActiveRecordingsForEvent(ctx, ev.ID)
	if err != nil {
		return outcomeSkipped, err
	}

	// An existing recording blocks a second one, except a fallback-timed
	// row that a fresh guide match can replace.
	var refine *store.Recording
	if len(active) > 0 {
		r := active[0]
		if r.Status != StatusScheduled || r.ProgramID.Valid {
			return outcomeSkipped, nil
		}
		refine = &r
	}

	mapped, err := s.mappedChannels(ctx, ev.League)
	if err != nil {
		return outcomeSkipped, err
	}

	// League-mapped events can record on event-date timing alone; events
	// without a mapping only record when the guide pins a broadcast on
	// some linked channel.
	candidates := mapped
	if len(candidates) == 0 {
		candidates, err = s.linkedChannels(ctx)
		if err != nil {
			return outcomeSkipped, err
		}
	}
	if len(candidates) == 0 {
		s.logger.Debug().Int64("eventId", ev.ID).Str("league", ev.League).Msg("no channel can carry event")
		return outcomeSkipped, nil
	}

	prog, progChannel, matchScore := s.matchProgram(ctx, ev, candidates)

	if prog == nil && (refine != nil || len(mapped) == 0) {
		return outcomeSkipped, nil
	}

	var (
		channel   store.Channel
		start     time.Time
		end       time.Time
		programID sql.NullInt64
	)
	if prog != nil {
		channel = progChannel
		start = prog.StartTime.Add(-s.cfg.PrePad)
		end = prog.EndTime.Add(s.cfg.PostPad)
		programID = sql.NullInt64{Int64: prog.ID, Valid: true}
	} else {
		channel = mapped[0]
		start = ev.EventDate.Add(-s.cfg.PrePad)
		end = ev.EventDate.Add(defaultEventDuration + s.cfg.PostPad)
	}
	if !end.After(now) {
		return outcomeSkipped, nil
	}

	if refine != nil {
		if err := s.queries.UpdateRecordingStatus(ctx, refine.ID, StatusCancelled, "superseded by guide match"); err != nil {
			return outcomeSkipped, err
		}
	}

	rec, err := s.queries.CreateRecording(ctx, store.CreateRecordingParams{
		EventID:        ev.ID,
		ChannelID:      channel.ID,
		ProgramID:      programID,
		Title:          ev.Title,
		JobID:          uuid.NewString(),
		ScheduledStart: start,
		ScheduledEnd:   end,
		MatchScore:     matchScore,
		Status:         StatusScheduled,
	})
	if err != nil {
		return outcomeSkipped, err
	}

	if s.hist != nil {
		s.hist.RecordRecording(ctx, history.EventTypeRecordingScheduled, ev.ID, ev.Title, history.RecordingData{
			Channel: channel.Name,
			StartAt: start,
			EndAt:   end,
		})
	}
	s.broadcast("dvr:scheduled", map[string]interface{}{
		"recordingId": rec.ID,
		"eventId":     ev.ID,
		"channelId":   channel.ID,
		"start":       start,
		"end":         end,
		"viaGuide":    prog != nil,
	})
	s.logger.Info().
		Int64("recordingId", rec.ID).
		Int64("eventId", ev.ID).
		Str("channel", channel.Name).
		Time("start", start).
		Bool("viaGuide", prog != nil).
		Msg("recording scheduled")

	if refine != nil {
		return outcomeRefined, nil
	}
	return outcomeScheduled, nil
}

// mappedChannels resolves a league's channels, best first: highest quality
// score wins, mapping priority breaks ties.
func (s *Service) mappedChannels(ctx context.Context, league string) ([]store.Channel, error) {
	mappings, err := s.queries.ListLeagueChannels(ctx, league)
	if err != nil {
		return nil, err
	}

	var channels []store.Channel
	for _, m := range mappings {
		ch, err := s.queries.GetChannel(ctx, m.ChannelID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
			continue
		}
		if ch.Enabled != 1 {
			continue
		}
		channels = append(channels, ch)
	}
	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].QualityScore > channels[j].QualityScore
	})
	return channels, nil
}

// linkedChannels returns every enabled channel with guide data.
func (s *Service) linkedChannels(ctx context.Context) ([]store.Channel, error) {
	channels, err := s.queries.ListEnabledChannels(ctx)
	if err != nil {
		return nil, err
	}
	linked := channels[:0]
	for _, ch := range channels {
		if ch.TvgID != "" {
			linked = append(linked, ch)
		}
	}
	return linked, nil
}

// matchProgram finds the best guide entry for an event across its mapped
// channels. Programs that already have a recording are skipped, so two
// events never claim the same broadcast.
func (s *Service) matchProgram(ctx context.Context, ev store.Event, channels []store.Channel) (*store.EPGProgram, store.Channel, int64) {
	mev := epgmatch.Event{
		Title:    ev.Title,
		Sport:    ev.Sport,
		League:   ev.League,
		HomeTeam: ev.HomeTeam,
		AwayTeam: ev.AwayTeam,
		Date:     ev.EventDate,
	}

	var (
		best        *store.EPGProgram
		bestChannel store.Channel
		bestScore   = -1
	)
	for _, ch := range channels {
		if ch.TvgID == "" {
			continue
		}
		programs, err := s.queries.ListEPGProgramsForChannel(ctx, ch.TvgID,
			ev.EventDate.Add(-3*time.Hour), ev.EventDate.Add(3*time.Hour))
		if err != nil {
			s.logger.Error().Err(err).Str("channel", ch.Name).Msg("failed to load guide programs")
			continue
		}
		for i := range programs {
			p := programs[i]
			result := epgmatch.Score(mev, epgmatch.Program{
				Title:       p.Title,
				Subtitle:    p.Subtitle,
				Description: p.Description,
				Category:    p.Category,
				Start:       p.StartTime,
				IsSports:    p.IsSports == 1,
			})
			if !result.IsMatch || result.Score <= bestScore {
				continue
			}
			if n, err := s.queries.CountRecordingsForProgram(ctx, p.ID); err != nil || n > 0 {
				continue
			}
			best = &p
			bestChannel = ch
			bestScore = result.Score
		}
	}
	if best == nil {
		return nil, store.Channel{}, 0
	}
	return best, bestChannel, int64(bestScore)
}

package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sideline/sideline/internal/mediainfo"
	"github.com/sideline/sideline/internal/store"
)

// RecordingImport describes a finished DVR capture headed for the library.
// The release title is the synthetic scene title built from the probe, so
// captures score and sort exactly like indexer releases.
type RecordingImport struct {
	Event        store.Event
	PartID       sql.NullInt64
	SourcePath   string
	ReleaseTitle string
	Quality      string
	QualityScore int64
	FormatScore  int64
	Info         *mediainfo.MediaInfo
}

// ImportRecording places a DVR capture the same way a completed download
// lands: same destination scheme, same idempotency guard. Returns the
// event file row, existing or created. History is the caller's concern.
func (s *Service) ImportRecording(ctx context.Context, imp RecordingImport) (store.EventFile, error) {
	source, _, err := findPrimaryVideo(imp.SourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store.EventFile{}, fmt.Errorf("%w: %s", ErrSourceMissing, imp.SourcePath)
		}
		return store.EventFile{}, err
	}

	dest, err := s.buildDestination(ctx, imp.Event, imp.PartID, filepath.Ext(source))
	if err != nil {
		return store.EventFile{}, err
	}

	if _, err := os.Stat(dest); err == nil {
		if existing, err := s.queries.GetEventFileByPath(ctx, dest); err == nil {
			s.logger.Info().
				Int64("eventId", imp.Event.ID).
				Str("path", dest).
				Msg("recording already imported, skipping")
			return existing, nil
		}
		return store.EventFile{}, fmt.Errorf("%w: %s", ErrDestinationExists, dest)
	}

	mode, err := s.placeFile(source, dest)
	if err != nil {
		return store.EventFile{}, fmt.Errorf("failed to place recording: %w", err)
	}

	info := imp.Info
	if info == nil {
		if s.probe != nil {
			info = s.probe.ProbeWithFallback(ctx, dest, &mediainfo.MediaInfo{})
		} else {
			info = &mediainfo.MediaInfo{}
		}
	}
	size := info.FileSize
	if size == 0 {
		if stat, err := os.Stat(dest); err == nil {
			size = stat.Size()
		}
	}

	file, err := s.queries.CreateEventFile(ctx, store.CreateEventFileParams{
		EventID:        imp.Event.ID,
		PartID:         imp.PartID,
		Path:           dest,
		Size:           size,
		Quality:        imp.Quality,
		QualityScore:   imp.QualityScore,
		FormatScore:    imp.FormatScore,
		Source:         "IPTV",
		ReleaseTitle:   imp.ReleaseTitle,
		VideoCodec:     info.VideoCodec,
		AudioCodec:     info.AudioCodec,
		Resolution:     info.ResolutionLabel(),
		RuntimeSeconds: int64(info.DurationSeconds()),
	})
	if err != nil {
		return store.EventFile{}, fmt.Errorf("failed to create event file: %w", err)
	}

	s.logger.Info().
		Int64("eventId", imp.Event.ID).
		Str("dest", dest).
		Str("mode", mode).
		Int64("size", size).
		Msg("recording imported")
	return file, nil
}

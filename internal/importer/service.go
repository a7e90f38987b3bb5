// Package importer moves completed downloads into the event library.
package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/history"
	"github.com/sideline/sideline/internal/mediainfo"
	"github.com/sideline/sideline/internal/parser"
	"github.com/sideline/sideline/internal/pathutil"
	"github.com/sideline/sideline/internal/store"
)

var (
	ErrEventNotFound     = errors.New("event for download not found")
	ErrNoOutputPath      = errors.New("download has no output path")
	ErrNoVideoFile       = errors.New("no video file found in download")
	ErrNoRootFolder      = errors.New("no root folder configured")
	ErrDestinationExists = errors.New("destination file already exists")
	ErrSourceMissing     = errors.New("download path does not exist")
)

// Config controls import mechanics.
type Config struct {
	UseHardlinks bool
}

// Service imports completed downloads into the library.
type Service struct {
	queries      *store.Queries
	probe        *mediainfo.Service
	hist         *history.Service
	useHardlinks bool
	logger       zerolog.Logger
}

// NewService creates an importer.
func NewService(db *sql.DB, probe *mediainfo.Service, hist *history.Service, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		queries:      store.New(db),
		probe:        probe,
		hist:         hist,
		useHardlinks: cfg.UseHardlinks,
		logger:       logger.With().Str("component", "importer").Logger(),
	}
}

// Import brings one completed download into the library: map the remote
// path, pick the primary video file, land it under the event folder, and
// record the event file. Safe to retry; a destination that already has
// an event file row short-circuits to success.
func (s *Service) Import(ctx context.Context, item store.QueueItem) error {
	event, err := s.queries.GetEvent(ctx, item.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to get event: %w", err)
	}

	if item.OutputPath == "" {
		return ErrNoOutputPath
	}

	localPath, err := s.mapToLocal(ctx, item)
	if err != nil {
		return err
	}

	source, _, err := findPrimaryVideo(localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSourceMissing, localPath)
		}
		return err
	}

	dest, err := s.buildDestination(ctx, event, item.PartID, filepath.Ext(source))
	if err != nil {
		return err
	}

	if _, err := os.Stat(dest); err == nil {
		if existing, err := s.queries.GetEventFileByPath(ctx, dest); err == nil {
			s.logger.Info().
				Int64("eventId", event.ID).
				Str("path", dest).
				Int64("fileId", existing.ID).
				Msg("destination already imported, skipping")
			return nil
		}
		return fmt.Errorf("%w: %s", ErrDestinationExists, dest)
	}

	mode, err := s.placeFile(source, dest)
	if err != nil {
		return fmt.Errorf("failed to place file: %w", err)
	}

	file, err := s.recordFile(ctx, event, item, source, dest)
	if err != nil {
		return err
	}

	s.logger.Info().
		Int64("eventId", event.ID).
		Str("title", event.Title).
		Str("dest", dest).
		Str("mode", mode).
		Int64("size", file.Size).
		Msg("download imported")
	return nil
}

// mapToLocal translates the client-reported output path through the
// remote path mapping table.
func (s *Service) mapToLocal(ctx context.Context, item store.QueueItem) (string, error) {
	mappings, err := s.queries.ListRemotePathMappings(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list remote path mappings: %w", err)
	}
	if len(mappings) == 0 {
		return item.OutputPath, nil
	}

	host := ""
	if client, err := s.queries.GetDownloadClient(ctx, item.ClientID); err == nil {
		host = client.Host
	}
	return MapRemotePath(mappings, host, item.OutputPath), nil
}

// buildDestination composes the library path:
// root / league / event title / "league - title (date) [- part].ext".
func (s *Service) buildDestination(ctx context.Context, event store.Event, partID sql.NullInt64, ext string) (string, error) {
	root, err := s.rootFolder(ctx, event)
	if err != nil {
		return "", err
	}

	league := event.League
	if league == "" {
		league = event.Sport
	}
	leagueDir := pathutil.SanitizeName(league)
	titleDir := pathutil.SanitizeName(event.Title)

	name := fmt.Sprintf("%s - %s (%s)", league, event.Title, event.EventDate.Format("2006-01-02"))
	if partID.Valid {
		if part, err := s.queries.GetEventPart(ctx, partID.Int64); err == nil {
			name += " - " + part.Name
		}
	}
	filename := pathutil.SanitizeName(name) + strings.ToLower(ext)

	return filepath.Join(root.Path, leagueDir, titleDir, filename), nil
}

func (s *Service) rootFolder(ctx context.Context, event store.Event) (store.RootFolder, error) {
	if event.RootFolderID.Valid {
		root, err := s.queries.GetRootFolder(ctx, event.RootFolderID.Int64)
		if err == nil {
			return root, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return store.RootFolder{}, fmt.Errorf("failed to get root folder: %w", err)
		}
	}

	roots, err := s.queries.ListRootFolders(ctx)
	if err != nil {
		return store.RootFolder{}, fmt.Errorf("failed to list root folders: %w", err)
	}
	if len(roots) == 0 {
		return store.RootFolder{}, ErrNoRootFolder
	}
	return roots[0], nil
}

// recordFile probes the landed file and writes the event file row plus
// the import history entry.
func (s *Service) recordFile(ctx context.Context, event store.Event, item store.QueueItem, source, dest string) (store.EventFile, error) {
	parsed := parser.Parse(item.Title)

	var info *mediainfo.MediaInfo
	if s.probe != nil {
		info = s.probe.ProbeWithFallback(ctx, dest, fallbackInfo(parsed))
	} else {
		info = fallbackInfo(parsed)
	}

	size := info.FileSize
	if size == 0 {
		if stat, err := os.Stat(dest); err == nil {
			size = stat.Size()
		}
	}

	quality := item.Quality
	if quality == "" {
		quality = parsed.Quality.Name()
	}
	resolution := info.ResolutionLabel()
	if resolution == "" && parsed.Quality.Resolution > 0 {
		resolution = fmt.Sprintf("%dp", parsed.Quality.Resolution)
	}

	file, err := s.queries.CreateEventFile(ctx, store.CreateEventFileParams{
		EventID:        event.ID,
		PartID:         item.PartID,
		Path:           dest,
		Size:           size,
		Quality:        quality,
		QualityScore:   item.QualityScore,
		FormatScore:    item.FormatScore,
		Source:         sourceLabel(item.Protocol),
		ReleaseTitle:   item.Title,
		VideoCodec:     info.VideoCodec,
		AudioCodec:     info.AudioCodec,
		Resolution:     resolution,
		RuntimeSeconds: int64(info.DurationSeconds()),
	})
	if err != nil {
		return store.EventFile{}, fmt.Errorf("failed to create event file: %w", err)
	}

	if s.hist != nil {
		s.hist.RecordImport(ctx, event.ID, item.Title, history.ImportData{
			SourcePath:      source,
			DestinationPath: dest,
			Quality:         quality,
			Size:            size,
			Source:          sourceLabel(item.Protocol),
		})
	}
	return file, nil
}

// fallbackInfo builds probe defaults from the parsed release title.
func fallbackInfo(parsed parser.ParsedTitle) *mediainfo.MediaInfo {
	info := &mediainfo.MediaInfo{
		VideoCodec:    parsed.Quality.Codec,
		AudioCodec:    parsed.AudioCodec,
		AudioChannels: parsed.AudioChannels,
	}
	switch parsed.Quality.Resolution {
	case 2160:
		info.Width, info.Height = 3840, 2160
	case 1080:
		info.Width, info.Height = 1920, 1080
	case 720:
		info.Width, info.Height = 1280, 720
	case 576:
		info.Width, info.Height = 720, 576
	case 480:
		info.Width, info.Height = 640, 480
	}
	return info
}

func sourceLabel(protocol string) string {
	switch strings.ToLower(protocol) {
	case "torrent":
		return "Torrent"
	case "usenet":
		return "Usenet"
	default:
		return protocol
	}
}

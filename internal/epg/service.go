// Package epg ingests XMLTV program guides: it streams guide documents into
// the epg_programs table, links stored channels to guide identifiers by
// normalized display name, and flags sports programming for the DVR
// scheduler to match against.
package epg

import (
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/store"
)

var ErrNoGuideURL = errors.New("no epg source configured")

// guideRetention is how long finished programmes stay queryable. The DVR
// matcher only looks forward, but recent history helps mapping suggestions.
const guideRetention = 24 * time.Hour

// Service downloads and ingests XMLTV guides.
type Service struct {
	queries *store.Queries
	client  *http.Client
	url     string
	logger  zerolog.Logger

	mu   sync.Mutex
	last RefreshResult
}

// NewService creates the EPG ingestion service. url may be empty, in which
// case Refresh reports ErrNoGuideURL until one is configured.
func NewService(db *sql.DB, url string, logger zerolog.Logger) *Service {
	return &Service{
		queries: store.New(db),
		client:  &http.Client{Timeout: 5 * time.Minute},
		url:     url,
		logger:  logger.With().Str("component", "epg").Logger(),
	}
}

// RefreshResult summarizes one guide ingestion.
type RefreshResult struct {
	RefreshedAt time.Time `json:"refreshedAt"`
	Channels    int       `json:"channels"`
	Programs    int       `json:"programs"`
	Sports      int       `json:"sports"`
	Linked      int       `json:"linked"`
	Pruned      int64     `json:"pruned"`
	ElapsedMs   int64     `json:"elapsedMs"`
	Error       string    `json:"error,omitempty"`
}

// Status returns the outcome of the last refresh and current guide size.
func (s *Service) Status(ctx context.Context) (map[string]interface{}, error) {
	count, err := s.queries.CountEPGPrograms(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	return map[string]interface{}{
		"programCount": count,
		"lastRefresh":  last,
	}, nil
}

// Refresh downloads the configured guide and ingests it.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	if s.url == "" {
		return RefreshResult{}, ErrNoGuideURL
	}

	start := time.Now()
	result := RefreshResult{RefreshedAt: start.UTC()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return result, fmt.Errorf("invalid guide url: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return s.fail(result, start, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return s.fail(result, start, fmt.Errorf("guide fetch returned status %d", resp.StatusCode))
	}

	body := resp.Body
	if strings.HasSuffix(strings.ToLower(s.url), ".gz") || resp.Header.Get("Content-Type") == "application/gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return s.fail(result, start, fmt.Errorf("guide is not valid gzip: %w", err))
		}
		defer gz.Close()
		body = gz
	}

	// Guide channel id -> normalized display names, collected while
	// streaming. Channels precede programmes in XMLTV.
	nameToGuideID := map[string]string{}
	err = decodeXMLTV(body,
		func(c xmltvChannel) error {
			if c.ID == "" {
				return nil
			}
			result.Channels++
			for _, name := range c.DisplayNames {
				if key := NormalizeChannelName(name); key != "" {
					nameToGuideID[key] = c.ID
				}
			}
			return nil
		},
		func(p xmltvProgramme) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			startAt, err := parseXMLTVTime(p.Start)
			if err != nil {
				return nil // tolerate scattered bad rows
			}
			endAt, err := parseXMLTVTime(p.Stop)
			if err != nil || !endAt.After(startAt) {
				return nil
			}
			if endAt.Before(time.Now().Add(-guideRetention)) {
				return nil
			}

			sports := isSportsProgramme(p.Categories)
			if err := s.queries.UpsertEPGProgram(ctx, store.UpsertEPGProgramParams{
				ChannelTvgID: p.Channel,
				Title:        strings.TrimSpace(p.Title),
				Subtitle:     strings.TrimSpace(p.SubTitle),
				Description:  strings.TrimSpace(p.Desc),
				Category:     strings.Join(p.Categories, ", "),
				IsSports:     boolToInt(sports),
				StartTime:    startAt,
				EndTime:      endAt,
			}); err != nil {
				return fmt.Errorf("failed to store programme: %w", err)
			}
			result.Programs++
			if sports {
				result.Sports++
			}
			return nil
		})
	if err != nil {
		return s.fail(result, start, err)
	}

	linked, err := s.linkChannels(ctx, nameToGuideID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("channel linking failed")
	}
	result.Linked = linked

	pruned, err := s.queries.DeleteEPGProgramsBefore(ctx, time.Now().UTC().Add(-guideRetention))
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to prune stale programmes")
	}
	result.Pruned = pruned

	result.ElapsedMs = time.Since(start).Milliseconds()
	s.setLast(result)

	s.logger.Info().
		Int("channels", result.Channels).
		Int("programs", result.Programs).
		Int("sports", result.Sports).
		Int("linked", result.Linked).
		Int64("pruned", result.Pruned).
		Int64("elapsed_ms", result.ElapsedMs).
		Msg("guide refresh complete")
	return result, nil
}

// linkChannels assigns guide identifiers to stored channels that lack one,
// matching on normalized display name.
func (s *Service) linkChannels(ctx context.Context, nameToGuideID map[string]string) (int, error) {
	if len(nameToGuideID) == 0 {
		return 0, nil
	}
	channels, err := s.queries.ListChannels(ctx)
	if err != nil {
		return 0, err
	}

	linked := 0
	for _, ch := range channels {
		if ch.TvgID != "" {
			continue
		}
		guideID, ok := nameToGuideID[NormalizeChannelName(ch.Name)]
		if !ok {
			continue
		}
		err := s.queries.UpdateChannel(ctx, store.UpdateChannelParams{
			ID:           ch.ID,
			Name:         ch.Name,
			TvgID:        guideID,
			StreamURL:    ch.StreamURL,
			GroupName:    ch.GroupName,
			LogoURL:      ch.LogoURL,
			QualityScore: ch.QualityScore,
			Enabled:      ch.Enabled,
		})
		if err != nil {
			return linked, err
		}
		linked++
		s.logger.Info().Str("channel", ch.Name).Str("tvgId", guideID).Msg("linked channel to guide")
	}
	return linked, nil
}

func (s *Service) fail(result RefreshResult, start time.Time, err error) (RefreshResult, error) {
	result.Error = err.Error()
	result.ElapsedMs = time.Since(start).Milliseconds()
	s.setLast(result)
	return result, err
}

func (s *Service) setLast(result RefreshResult) {
	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

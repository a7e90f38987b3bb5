package dvr

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sideline/sideline/internal/store"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrInvalidChannel  = errors.New("channel name and stream url are required")
	ErrInvalidMapping  = errors.New("league and channel are required")
)

// ChannelInput is the writable shape of a channel.
type ChannelInput struct {
	Name         string `json:"name"`
	TvgID        string `json:"tvgId"`
	StreamURL    string `json:"streamUrl"`
	GroupName    string `json:"groupName"`
	LogoURL      string `json:"logoUrl"`
	QualityScore int64  `json:"qualityScore"`
	Enabled      *bool  `json:"enabled"`
}

// ChannelView is the API shape of a channel.
type ChannelView struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	TvgID        string    `json:"tvgId,omitempty"`
	StreamURL    string    `json:"streamUrl"`
	GroupName    string    `json:"groupName,omitempty"`
	LogoURL      string    `json:"logoUrl,omitempty"`
	QualityScore int64     `json:"qualityScore"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// LeagueMappingView is the API shape of a league to channel mapping.
type LeagueMappingView struct {
	ID          int64     `json:"id"`
	League      string    `json:"league"`
	ChannelID   int64     `json:"channelId"`
	ChannelName string    `json:"channelName,omitempty"`
	Priority    int64     `json:"priority"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListChannelViews returns all channels, sorted by name.
func (s *Service) ListChannelViews(ctx context.Context) ([]ChannelView, error) {
	channels, err := s.queries.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ChannelView, 0, len(channels))
	for _, ch := range channels {
		views = append(views, toChannelView(ch))
	}
	return views, nil
}

// CreateChannel adds a channel. New channels default to enabled.
func (s *Service) CreateChannel(ctx context.Context, in ChannelInput) (ChannelView, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.StreamURL = strings.TrimSpace(in.StreamURL)
	if in.Name == "" || in.StreamURL == "" {
		return ChannelView{}, ErrInvalidChannel
	}

	enabled := int64(1)
	if in.Enabled != nil && !*in.Enabled {
		enabled = 0
	}
	ch, err := s.queries.CreateChannel(ctx, store.CreateChannelParams{
		Name:         in.Name,
		TvgID:        strings.TrimSpace(in.TvgID),
		StreamURL:    in.StreamURL,
		GroupName:    in.GroupName,
		LogoURL:      in.LogoURL,
		QualityScore: in.QualityScore,
		Enabled:      enabled,
	})
	if err != nil {
		return ChannelView{}, err
	}
	s.logger.Info().Int64("channelId", ch.ID).Str("name", ch.Name).Msg("channel created")
	return toChannelView(ch), nil
}

// UpdateChannel replaces a channel's fields. A nil Enabled keeps the
// current flag.
func (s *Service) UpdateChannel(ctx context.Context, id int64, in ChannelInput) (ChannelView, error) {
	current, err := s.queries.GetChannel(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ChannelView{}, ErrChannelNotFound
		}
		return ChannelView{}, err
	}

	in.Name = strings.TrimSpace(in.Name)
	in.StreamURL = strings.TrimSpace(in.StreamURL)
	if in.Name == "" || in.StreamURL == "" {
		return ChannelView{}, ErrInvalidChannel
	}

	enabled := current.Enabled
	if in.Enabled != nil {
		enabled = 0
		if *in.Enabled {
			enabled = 1
		}
	}
	err = s.queries.UpdateChannel(ctx, store.UpdateChannelParams{
		ID:           id,
		Name:         in.Name,
		TvgID:        strings.TrimSpace(in.TvgID),
		StreamURL:    in.StreamURL,
		GroupName:    in.GroupName,
		LogoURL:      in.LogoURL,
		QualityScore: in.QualityScore,
		Enabled:      enabled,
	})
	if err != nil {
		return ChannelView{}, err
	}
	updated, err := s.queries.GetChannel(ctx, id)
	if err != nil {
		return ChannelView{}, err
	}
	return toChannelView(updated), nil
}

// DeleteChannel removes a channel and, via the schema, its recordings.
func (s *Service) DeleteChannel(ctx context.Context, id int64) error {
	if _, err := s.queries.GetChannel(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrChannelNotFound
		}
		return err
	}
	return s.queries.DeleteChannel(ctx, id)
}

// ListLeagueMappings returns every league mapping with its channel name.
func (s *Service) ListLeagueMappings(ctx context.Context) ([]LeagueMappingView, error) {
	mappings, err := s.queries.ListAllLeagueChannels(ctx)
	if err != nil {
		return nil, err
	}
	names, err := s.channelNames(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]LeagueMappingView, 0, len(mappings))
	for _, m := range mappings {
		views = append(views, LeagueMappingView{
			ID:          m.ID,
			League:      m.League,
			ChannelID:   m.ChannelID,
			ChannelName: names[m.ChannelID],
			Priority:    m.Priority,
			CreatedAt:   m.CreatedAt,
		})
	}
	return views, nil
}

// CreateLeagueMapping declares that a channel carries a league.
func (s *Service) CreateLeagueMapping(ctx context.Context, league string, channelID, priority int64) (LeagueMappingView, error) {
	league = strings.TrimSpace(league)
	if league == "" || channelID == 0 {
		return LeagueMappingView{}, ErrInvalidMapping
	}
	ch, err := s.queries.GetChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LeagueMappingView{}, ErrChannelNotFound
		}
		return LeagueMappingView{}, err
	}

	m, err := s.queries.CreateLeagueChannel(ctx, league, channelID, priority)
	if err != nil {
		return LeagueMappingView{}, err
	}
	s.logger.Info().Str("league", league).Str("channel", ch.Name).Msg("league mapped to channel")
	return LeagueMappingView{
		ID:          m.ID,
		League:      m.League,
		ChannelID:   m.ChannelID,
		ChannelName: ch.Name,
		Priority:    m.Priority,
		CreatedAt:   m.CreatedAt,
	}, nil
}

// DeleteLeagueMapping removes a league to channel mapping.
func (s *Service) DeleteLeagueMapping(ctx context.Context, id int64) error {
	return s.queries.DeleteLeagueChannel(ctx, id)
}

func toChannelView(ch store.Channel) ChannelView {
	return ChannelView{
		ID:           ch.ID,
		Name:         ch.Name,
		TvgID:        ch.TvgID,
		StreamURL:    ch.StreamURL,
		GroupName:    ch.GroupName,
		LogoURL:      ch.LogoURL,
		QualityScore: ch.QualityScore,
		Enabled:      ch.Enabled == 1,
		CreatedAt:    ch.CreatedAt,
		UpdatedAt:    ch.UpdatedAt,
	}
}

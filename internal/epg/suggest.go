package epg

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Suggestion proposes a channel for a league mapping, backed by how many
// guide programmes on that channel mention the league.
type Suggestion struct {
	ChannelID   int64    `json:"channelId"`
	ChannelName string   `json:"channelName"`
	TvgID       string   `json:"tvgId"`
	Matches     int      `json:"matches"`
	Samples     []string `json:"samples,omitempty"`
}

const (
	suggestLookback = 3 * 24 * time.Hour
	suggestHorizon  = 7 * 24 * time.Hour
	maxSamples      = 3
)

// SuggestLeagueChannels ranks guide-linked channels by how often their
// sports programming mentions the league. Feeds the mapping UI; the DVR
// scheduler itself only uses confirmed mappings.
func (s *Service) SuggestLeagueChannels(ctx context.Context, league string) ([]Suggestion, error) {
	needle := " " + squash(league) + " "
	if strings.TrimSpace(needle) == "" {
		return nil, nil
	}

	channels, err := s.queries.ListEnabledChannels(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var suggestions []Suggestion
	for _, ch := range channels {
		if ch.TvgID == "" {
			continue
		}
		programs, err := s.queries.ListEPGProgramsForChannel(ctx, ch.TvgID, now.Add(-suggestLookback), now.Add(suggestHorizon))
		if err != nil {
			return nil, err
		}

		sug := Suggestion{ChannelID: ch.ID, ChannelName: ch.Name, TvgID: ch.TvgID}
		for _, p := range programs {
			if p.IsSports != 1 {
				continue
			}
			haystack := " " + squash(p.Title+" "+p.Subtitle+" "+p.Category) + " "
			if !strings.Contains(haystack, needle) {
				continue
			}
			sug.Matches++
			if len(sug.Samples) < maxSamples {
				sug.Samples = append(sug.Samples, p.Title)
			}
		}
		if sug.Matches > 0 {
			suggestions = append(suggestions, sug)
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Matches > suggestions[j].Matches
	})
	return suggestions, nil
}

// squash lowercases and reduces all non-alphanumeric runs to single spaces,
// so substring checks respect word boundaries.
func squash(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

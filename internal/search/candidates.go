package search

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/sideline/sideline/internal/indexer/types"
	"github.com/sideline/sideline/internal/matcher"
	"github.com/sideline/sideline/internal/parser"
	"github.com/sideline/sideline/internal/quality"
	"github.com/sideline/sideline/internal/store"
)

// candidate is one release that passed event matching and profile rules.
type candidate struct {
	Title       string
	GUID        string
	DownloadURL string
	InfoURL     string
	InfoHash    string
	IndexerID   int64
	IndexerName string
	Protocol    types.Protocol
	Size        int64
	Seeders     int
	PublishDate time.Time
	Parsed      parser.ParsedTitle
	Match       matcher.Result
	Score       quality.Score
}

// searchPart finds and grabs the best release for one target. The cache is
// consulted first; indexers are only queried when the cache has nothing and
// external search is allowed.
func (s *Service) searchPart(
	ctx context.Context,
	ev store.Event,
	parts []store.EventPart,
	tgt target,
	profile *quality.Profile,
	formats []quality.CustomFormat,
	current *store.EventFile,
	allowExternal bool,
) (*Grabbed, int, error) {
	mev := matcherEvent(ev, parts)

	cands, err := s.cachedCandidates(ctx, ev, mev, tgt.partName, profile, formats, current)
	if err != nil {
		return nil, 0, err
	}
	if len(cands) == 0 && allowExternal {
		cands, err = s.externalCandidates(ctx, ev, mev, tgt.partName, profile, formats, current)
		if err != nil {
			return nil, 0, err
		}
	}
	if len(cands) == 0 {
		return nil, 0, ErrNoCandidates
	}

	sortCandidates(cands)

	blocked := 0
	for _, cand := range cands {
		isBlocked, err := s.blocked.IsBlocked(ctx, ev.ID, cand.InfoHash, cand.IndexerName, cand.Title)
		if err != nil {
			s.logger.Warn().Err(err).Str("title", cand.Title).Msg("blocklist check failed")
		}
		if isBlocked {
			blocked++
			s.logger.Debug().Str("title", cand.Title).Msg("candidate is blocklisted, trying next")
			continue
		}
		grabbed, err := s.grab(ctx, ev, tgt, cand)
		if err != nil {
			return nil, len(cands), err
		}
		return grabbed, len(cands), nil
	}
	if blocked == len(cands) {
		return nil, len(cands), ErrAllBlocked
	}
	return nil, len(cands), ErrNoCandidates
}

// cachedCandidates filters the release cache for the target.
func (s *Service) cachedCandidates(
	ctx context.Context,
	ev store.Event,
	mev matcher.Event,
	partName string,
	profile *quality.Profile,
	formats []quality.CustomFormat,
	current *store.EventFile,
) ([]candidate, error) {
	rows, err := s.cache.ReleasesForEvent(ctx, ev)
	if err != nil {
		return nil, err
	}

	var cands []candidate
	for _, row := range rows {
		cand, ok := s.evaluate(row.Title, row.Size, mev, partName, profile, formats, current)
		if !ok {
			continue
		}
		cand.GUID = row.GUID
		cand.DownloadURL = row.DownloadURL
		cand.InfoURL = row.InfoURL
		cand.InfoHash = row.InfoHash
		cand.IndexerID = row.IndexerID
		cand.IndexerName = row.IndexerName
		cand.Protocol = types.Protocol(row.Protocol)
		cand.Size = row.Size
		cand.Seeders = int(row.Seeders)
		if row.PublishDate.Valid {
			cand.PublishDate = row.PublishDate.Time
		}
		cands = append(cands, cand)
	}
	s.logger.Debug().
		Int64("eventId", ev.ID).
		Str("part", partName).
		Int("cached", len(rows)).
		Int("accepted", len(cands)).
		Msg("evaluated cached releases")
	return cands, nil
}

// externalCandidates issues one query per green indexer, folds the results
// into the cache, and evaluates them for the target.
func (s *Service) externalCandidates(
	ctx context.Context,
	ev store.Event,
	mev matcher.Event,
	partName string,
	profile *quality.Profile,
	formats []quality.CustomFormat,
	current *store.EventFile,
) ([]candidate, error) {
	query := composeQuery(ev, partName)
	if query == "" {
		return nil, nil
	}

	rows, err := s.indexers.ListSearchable(ctx)
	if err != nil {
		return nil, err
	}

	var found []types.ReleaseInfo
	for _, ix := range rows {
		avail, err := s.health.Check(ctx, ix)
		if err != nil || !avail.OK {
			continue
		}
		if err := s.pacer.Wait(ctx, ix.ID, ix.RequestDelayMs); err != nil {
			return nil, err
		}

		releases, err := s.client.Search(ctx, ix, query, s.cfg.MaxResults)
		if obsErr := s.health.Observe(ctx, ix.ID, err); obsErr != nil {
			s.logger.Warn().Err(obsErr).Str("indexer", ix.Name).Msg("failed to record indexer outcome")
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("indexer", ix.Name).Str("query", query).Msg("search failed")
			continue
		}
		found = append(found, releases...)
	}

	if len(found) == 0 {
		return nil, nil
	}
	if _, err := s.cache.CacheReleases(ctx, found, false); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache search results")
	}

	var cands []candidate
	for _, rel := range found {
		cand, ok := s.evaluate(rel.Title, rel.Size, mev, partName, profile, formats, current)
		if !ok {
			continue
		}
		cand.GUID = rel.GUID
		cand.DownloadURL = rel.DownloadURL
		cand.InfoURL = rel.InfoURL
		cand.InfoHash = rel.InfoHash
		cand.IndexerID = rel.IndexerID
		cand.IndexerName = rel.IndexerName
		cand.Protocol = rel.Protocol
		cand.Size = rel.Size
		cand.Seeders = rel.Seeders
		cand.PublishDate = rel.PublishDate
		cands = append(cands, cand)
	}
	s.logger.Debug().
		Int64("eventId", ev.ID).
		Str("query", query).
		Int("found", len(found)).
		Int("accepted", len(cands)).
		Msg("evaluated indexer results")
	return cands, nil
}

// evaluate runs one title through matching, profile admission, and the
// upgrade rule against any existing file.
func (s *Service) evaluate(
	title string,
	size int64,
	mev matcher.Event,
	partName string,
	profile *quality.Profile,
	formats []quality.CustomFormat,
	current *store.EventFile,
) (candidate, bool) {
	parsed := parser.Parse(title)
	match := matcher.Validate(title, parsed, mev, partName)
	if !match.IsMatch {
		return candidate{}, false
	}

	label := parsed.Quality.Name()
	if !profile.IsAllowed(label) {
		return candidate{}, false
	}
	score := quality.ScoreRelease(profile, formats, title, parsed, size)
	if score.Format < profile.MinFormatScore {
		return candidate{}, false
	}
	if current != nil && !profile.IsUpgrade(current.Quality, label) {
		return candidate{}, false
	}

	return candidate{
		Title:  title,
		Parsed: parsed,
		Match:  match,
		Score:  score,
	}, true
}

// sortCandidates orders by match confidence, then total score, then
// seeders, then recency.
func sortCandidates(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Match.Confidence != cands[j].Match.Confidence {
			return cands[i].Match.Confidence > cands[j].Match.Confidence
		}
		if cands[i].Score.Total() != cands[j].Score.Total() {
			return cands[i].Score.Total() > cands[j].Score.Total()
		}
		if cands[i].Seeders != cands[j].Seeders {
			return cands[i].Seeders > cands[j].Seeders
		}
		return cands[i].PublishDate.After(cands[j].PublishDate)
	})
}

// matcherEvent converts a store row to the matcher's view.
func matcherEvent(ev store.Event, parts []store.EventPart) matcher.Event {
	known := make([]string, 0, len(parts))
	for _, p := range parts {
		known = append(known, p.Name)
	}
	num := 0
	if ev.EventNumber.Valid {
		num = int(ev.EventNumber.Int64)
	}
	return matcher.Event{
		Title:       ev.Title,
		League:      ev.League,
		Sport:       ev.Sport,
		EventNumber: num,
		HomeTeam:    ev.HomeTeam,
		AwayTeam:    ev.AwayTeam,
		Date:        ev.EventDate,
		KnownParts:  known,
	}
}

// composeQuery builds the indexer query for a target: the canonical
// "<prefix> <number>" for numbered events, the team pairing for matches,
// the event title otherwise. Part names narrow the query further.
func composeQuery(ev store.Event, partName string) string {
	var base string
	switch {
	case ev.EventNumber.Valid:
		prefix := parser.SportPrefixFor(ev.League)
		if prefix == "" {
			prefix = ev.League
		}
		if prefix == "" {
			base = ev.Title
		} else {
			base = prefix + " " + strconv.FormatInt(ev.EventNumber.Int64, 10)
		}
	case ev.HomeTeam != "" && ev.AwayTeam != "":
		base = ev.HomeTeam + " vs " + ev.AwayTeam
	default:
		base = ev.Title
	}
	if base == "" {
		return ""
	}
	if partName != "" {
		base += " " + partName
	}
	return base
}

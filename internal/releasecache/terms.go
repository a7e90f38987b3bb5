// Package releasecache persists every release seen from any indexer and
// answers event and free-text lookups against it without external I/O.
// Indexers impose strict hourly quotas; the cache turns N event searches
// into at most one RSS poll per indexer per cycle plus in-memory filtering.
package releasecache

import (
	"strconv"
	"strings"

	"github.com/sideline/sideline/internal/parser"
	"github.com/sideline/sideline/internal/store"
)

// EventTerms is the search vocabulary expected on releases for one event.
type EventTerms struct {
	// Phrases are normalized multi-word needles. Any one appearing verbatim
	// in a release title is accepted outright.
	Phrases []string
	// Tokens is the flattened significant-word bag used for overlap
	// matching against an entry's stored term bag.
	Tokens []string
	// Year of the event date, zero when unknown.
	Year int
	// SportPrefix is the canonical league tag, when recognized.
	SportPrefix string
}

var termStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"at": true, "in": true, "on": true, "vs": true, "v": true, "versus": true,
	"fc": true,
}

func skipToken(w string) bool {
	return len(w) < 2 || termStopwords[w]
}

// Common city abbreviations release groups substitute for full locations.
// Replacement is prefix-only to keep false positives down.
var locationAliases = []struct{ full, short string }{
	{"los angeles", "la"},
	{"new york", "ny"},
	{"new jersey", "nj"},
	{"new england", "ne"},
	{"san francisco", "sf"},
	{"golden state", "gs"},
	{"kansas city", "kc"},
	{"oklahoma city", "okc"},
	{"salt lake city", "slc"},
	{"tampa bay", "tb"},
	{"green bay", "gb"},
	{"las vegas", "lv"},
	{"saint", "st"},
}

func locationAlias(normTeam string) string {
	for _, a := range locationAliases {
		if normTeam == a.full || strings.HasPrefix(normTeam, a.full+" ") {
			return a.short + normTeam[len(a.full):]
		}
	}
	return ""
}

// TermsForEvent computes the vocabulary an event's releases are expected to
// carry: the canonical "<prefix> <number>" needle for numbered events, team
// pairings and their location-alias variants, league names, and the
// significant words of the event title.
func TermsForEvent(ev store.Event) EventTerms {
	terms := EventTerms{SportPrefix: parser.SportPrefixFor(ev.League)}
	if !ev.EventDate.IsZero() {
		terms.Year = ev.EventDate.Year()
	}

	seen := map[string]bool{}
	addPhrase := func(s string) {
		n := parser.Normalize(s)
		if n == "" || seen["p:"+n] {
			return
		}
		seen["p:"+n] = true
		terms.Phrases = append(terms.Phrases, n)
	}

	if ev.EventNumber.Valid {
		num := strconv.FormatInt(ev.EventNumber.Int64, 10)
		if terms.SportPrefix != "" {
			addPhrase(terms.SportPrefix + " " + num)
		}
		addPhrase(ev.League + " " + num)
	}
	addPhrase(ev.Title)
	if ev.HomeTeam != "" && ev.AwayTeam != "" {
		addPhrase(ev.HomeTeam + " vs " + ev.AwayTeam)
		addPhrase(ev.AwayTeam + " vs " + ev.HomeTeam)
	}
	// A lone word is too weak a needle; single-word teams still count via
	// the token bag below.
	for _, team := range []string{ev.HomeTeam, ev.AwayTeam} {
		n := parser.Normalize(team)
		if !strings.Contains(n, " ") {
			continue
		}
		addPhrase(n)
		if alias := locationAlias(n); alias != "" {
			addPhrase(alias)
		}
	}

	addToken := func(w string) {
		if skipToken(w) || seen["t:"+w] {
			return
		}
		seen["t:"+w] = true
		terms.Tokens = append(terms.Tokens, w)
	}
	for _, p := range terms.Phrases {
		for _, w := range strings.Fields(p) {
			addToken(w)
		}
	}
	for _, team := range []string{ev.HomeTeam, ev.AwayTeam} {
		for _, w := range strings.Fields(parser.Normalize(team)) {
			addToken(w)
		}
	}
	for _, w := range strings.Fields(parser.Normalize(ev.League)) {
		addToken(w)
	}
	for _, w := range strings.Fields(parser.Normalize(ev.Season)) {
		addToken(w)
	}
	return terms
}

// TermBag derives the denormalized search tokens stored with a cached
// release: the significant words of the parsed event-title portion plus the
// sport prefix and year.
func TermBag(parsed parser.ParsedTitle) string {
	seen := map[string]bool{}
	var tokens []string
	add := func(w string) {
		if w == "" || skipToken(w) || seen[w] {
			return
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	for _, w := range strings.Fields(parser.Normalize(parsed.Title)) {
		add(w)
	}
	add(strings.ToLower(parsed.SportPrefix))
	if parsed.Year > 0 {
		add(strconv.Itoa(parsed.Year))
	}
	return strings.Join(tokens, " ")
}

// IsReleaseMatch reports whether a cached entry plausibly belongs to the
// event the terms were computed from. A verbatim phrase hit in the
// normalized title passes; otherwise at least a third of the expected
// tokens must appear in the entry's term bag. A year disagreement vetoes
// both paths.
func IsReleaseMatch(entry store.CachedRelease, terms EventTerms) bool {
	if terms.Year > 0 && entry.Year > 0 && entry.Year != int64(terms.Year) {
		return false
	}

	padded := " " + parser.Normalize(entry.Title) + " "
	for _, p := range terms.Phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}

	if len(terms.Tokens) == 0 {
		return false
	}
	bag := map[string]bool{}
	for _, w := range strings.Fields(entry.SearchTerms) {
		bag[w] = true
	}
	hits := 0
	for _, tok := range terms.Tokens {
		if bag[tok] {
			hits++
		}
	}
	return hits*3 >= len(terms.Tokens)
}

// MatchesQuery reports whether every token of a free-text query appears in
// the entry's normalized title. Used by single-query sweep strategies.
func MatchesQuery(entry store.CachedRelease, query string) bool {
	tokens := strings.Fields(parser.Normalize(query))
	if len(tokens) == 0 {
		return false
	}
	padded := " " + parser.Normalize(entry.Title) + " "
	for _, tok := range tokens {
		if !strings.Contains(padded, " "+tok+" ") {
			return false
		}
	}
	return true
}

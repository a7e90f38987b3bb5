// Package matcher decides whether a release belongs to a monitored event.
// Scoring is additive from a neutral baseline; a hard reject overrides any
// score a release accumulates.
package matcher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sideline/sideline/internal/parser"
)

// Event carries the fields of a monitored event the matcher scores against.
type Event struct {
	Title       string
	League      string
	Sport       string
	EventNumber int // 0 when the event has no number
	HomeTeam    string
	AwayTeam    string
	Date        time.Time
	KnownParts  []string // names of the event's defined parts
}

// IsTeamSport reports whether both team fields are populated.
func (e Event) IsTeamSport() bool {
	return e.HomeTeam != "" && e.AwayTeam != ""
}

// Result is the outcome of validating one release against one event.
type Result struct {
	Confidence int      `json:"confidence"`
	IsMatch    bool     `json:"isMatch"`
	HardReject bool     `json:"hardReject"`
	Reasons    []string `json:"reasons,omitempty"`
	Rejections []string `json:"rejections,omitempty"`
}

const (
	baseConfidence = 50
	matchThreshold = 50
)

// Validate scores a release title against an event. requestedPart names a
// specific event part ("Main Card", "Race") when the caller wants exactly
// that segment; the empty string accepts any.
func Validate(title string, parsed parser.ParsedTitle, event Event, requestedPart string) Result {
	res := Result{Confidence: baseConfidence}
	normTitle := parser.Normalize(title)

	scoreEventNumber(&res, normTitle, event)
	scoreTeams(&res, normTitle, event)
	scoreDate(&res, parsed, event)
	scoreLeague(&res, normTitle, parsed, event)
	scorePart(&res, normTitle, event, requestedPart)
	scoreWordOverlap(&res, parsed, event)

	if res.Confidence < 0 {
		res.Confidence = 0
	}
	if res.Confidence > 100 {
		res.Confidence = 100
	}
	res.IsMatch = res.Confidence >= matchThreshold && !res.HardReject
	return res
}

func (r *Result) add(delta int, reason string) {
	r.Confidence += delta
	if delta >= 0 {
		r.Reasons = append(r.Reasons, reason)
	} else {
		r.Rejections = append(r.Rejections, reason)
	}
}

func (r *Result) reject(delta int, reason string) {
	r.Confidence += delta
	r.HardReject = true
	r.Rejections = append(r.Rejections, reason)
}

var numberAfterToken = regexp.MustCompile(`(\d{1,4})\b`)

// detectEventNumber finds the number following the event's organization
// token in a normalized title, e.g. 299 in "ufc 299 main card".
func detectEventNumber(normTitle string, event Event) int {
	tokens := leagueTokens(event)
	for _, tok := range tokens {
		idx := strings.Index(" "+normTitle+" ", " "+tok+" ")
		if idx < 0 {
			continue
		}
		rest := normTitle[idx+len(tok):]
		m := numberAfterToken.FindStringSubmatch(strings.TrimLeft(rest, " "))
		if m == nil {
			continue
		}
		// The number must directly follow the token, not appear later.
		if !strings.HasPrefix(strings.TrimLeft(rest, " "), m[1]) {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

func leagueTokens(event Event) []string {
	var tokens []string
	if p := parser.SportPrefixFor(event.League); p != "" {
		tokens = append(tokens, parser.Normalize(p))
	}
	if l := parser.Normalize(event.League); l != "" {
		tokens = append(tokens, l)
	}
	return tokens
}

func scoreEventNumber(res *Result, normTitle string, event Event) {
	if event.EventNumber == 0 {
		return
	}

	detected := detectEventNumber(normTitle, event)
	switch {
	case detected == event.EventNumber:
		res.add(40, fmt.Sprintf("event number %d matches", event.EventNumber))
	case detected == 0:
		res.add(-50, fmt.Sprintf("event number %d not found in title", event.EventNumber))
	default:
		res.reject(-80, fmt.Sprintf("conflicting event number %d (expected %d)", detected, event.EventNumber))
	}
}

func scoreTeams(res *Result, normTitle string, event Event) {
	if !event.IsTeamSport() {
		return
	}

	found := 0
	if teamInTitle(normTitle, event.HomeTeam) {
		found++
	}
	if teamInTitle(normTitle, event.AwayTeam) {
		found++
	}

	switch found {
	case 2:
		res.add(35, "both teams in title")
	case 1:
		res.add(15, "one team in title")
	default:
		res.add(-20, "neither team in title")
	}
}

// teamInTitle accepts either the full team name or its final word, which is
// how scene titles usually abbreviate ("Celtics vs Lakers").
func teamInTitle(normTitle, team string) bool {
	normTeam := parser.Normalize(team)
	if normTeam == "" {
		return false
	}
	padded := " " + normTitle + " "
	if strings.Contains(padded, " "+normTeam+" ") {
		return true
	}
	words := strings.Fields(normTeam)
	last := words[len(words)-1]
	return len(last) >= 3 && strings.Contains(padded, " "+last+" ")
}

func scoreDate(res *Result, parsed parser.ParsedTitle, event Event) {
	if event.Date.IsZero() || parsed.Year == 0 {
		return
	}

	if parsed.Month == 0 || parsed.Day == 0 {
		// Year is the only signal available.
		if parsed.Year == event.Date.Year() {
			res.add(5, "year matches")
		} else {
			res.add(-30, "year differs from event date")
		}
		return
	}

	releaseDate := time.Date(parsed.Year, time.Month(parsed.Month), parsed.Day, 0, 0, 0, 0, time.UTC)
	eventDay := time.Date(event.Date.Year(), event.Date.Month(), event.Date.Day(), 0, 0, 0, 0, time.UTC)
	days := releaseDate.Sub(eventDay).Hours() / 24
	if days < 0 {
		days = -days
	}

	switch {
	case days <= 1:
		res.add(25, "date within 1 day")
	case days <= 3:
		res.add(15, "date within 3 days")
	case days <= 7:
		res.add(5, "date within 7 days")
	case days > 30:
		res.add(-30, "date more than 30 days off")
	}
}

func scoreLeague(res *Result, normTitle string, parsed parser.ParsedTitle, event Event) {
	if event.League == "" {
		return
	}

	prefix := parser.SportPrefixFor(event.League)
	if prefix != "" && parsed.SportPrefix == prefix {
		res.add(15, "league token matches")
		return
	}
	for _, tok := range leagueTokens(event) {
		if strings.Contains(" "+normTitle+" ", " "+tok+" ") {
			res.add(15, "league token matches")
			return
		}
	}
}

func scorePart(res *Result, normTitle string, event Event, requestedPart string) {
	if requestedPart == "" {
		return
	}

	requested := parser.Normalize(requestedPart)
	detected := detectPart(normTitle, append([]string{requestedPart}, event.KnownParts...))
	switch {
	case detected == "":
		res.reject(-80, fmt.Sprintf("part %q requested but none detected", requestedPart))
	case detected == requested:
		res.add(20, "part matches")
	default:
		res.reject(-80, fmt.Sprintf("wrong part %q (requested %q)", detected, requestedPart))
	}
}

// detectPart returns the longest known part name present in the title.
// Longest wins so "Early Prelims" is not mistaken for "Prelims".
func detectPart(normTitle string, known []string) string {
	padded := " " + normTitle + " "
	best := ""
	for _, part := range known {
		p := parser.Normalize(part)
		if p == "" || !strings.Contains(padded, " "+p+" ") {
			continue
		}
		if len(p) > len(best) {
			best = p
		}
	}
	return best
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"at": true, "in": true, "on": true, "vs": true, "v": true, "versus": true,
	"fc": true, "de": true, "la": true,
}

func significantWords(s string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(parser.Normalize(s)) {
		if len(w) < 2 || stopwords[w] {
			continue
		}
		words[w] = true
	}
	return words
}

// scoreWordOverlap adds up to 20 points for Jaccard similarity between the
// human-readable portion of the release and the event title.
func scoreWordOverlap(res *Result, parsed parser.ParsedTitle, event Event) {
	releaseWords := significantWords(parsed.Title)
	eventWords := significantWords(event.Title)
	if len(releaseWords) == 0 || len(eventWords) == 0 {
		return
	}

	intersection := 0
	for w := range releaseWords {
		if eventWords[w] {
			intersection++
		}
	}
	union := len(releaseWords) + len(eventWords) - intersection
	if union == 0 {
		return
	}

	points := int(float64(intersection) / float64(union) * 20)
	if points > 0 {
		res.add(points, fmt.Sprintf("word overlap %d/%d", intersection, union))
	}
}

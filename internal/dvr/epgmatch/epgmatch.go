// Package epgmatch scores guide programs against monitored events for the
// DVR scheduler. Matching is additive like release matching, but the fatal
// rule is cross-sport conflict: a basketball broadcast never records a
// hockey game no matter how well the team names line up.
package epgmatch

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sideline/sideline/internal/parser"
)

//go:embed conflicts.yaml
var conflictsYAML []byte

// Event is the matcher's view of a monitored event.
type Event struct {
	Title    string
	Sport    string
	League   string
	HomeTeam string
	AwayTeam string
	Date     time.Time
}

// Program is the matcher's view of one guide entry.
type Program struct {
	Title       string
	Subtitle    string
	Description string
	Category    string
	Start       time.Time
	IsSports    bool
}

// Result is the outcome of scoring one program against one event.
type Result struct {
	Score      int      `json:"score"`
	IsMatch    bool     `json:"isMatch"`
	Reasons    []string `json:"reasons,omitempty"`
	Rejections []string `json:"rejections,omitempty"`
}

const (
	matchThreshold = 50
	// Programs further than this from the event start are never candidates.
	maxStartDrift = time.Hour
)

type conflictTable struct {
	Families map[string]struct {
		Keywords []string `yaml:"keywords"`
	} `yaml:"families"`
	Conflicts [][]string `yaml:"conflicts"`
}

var (
	familyKeywords map[string][]string
	conflictsWith  map[string]map[string]bool
)

func init() {
	var table conflictTable
	if err := yaml.Unmarshal(conflictsYAML, &table); err != nil {
		panic(fmt.Sprintf("epgmatch: bad conflict table: %v", err))
	}

	familyKeywords = make(map[string][]string, len(table.Families))
	for name, f := range table.Families {
		kws := make([]string, 0, len(f.Keywords))
		for _, kw := range f.Keywords {
			kws = append(kws, parser.Normalize(kw))
		}
		familyKeywords[name] = kws
	}

	conflictsWith = map[string]map[string]bool{}
	for _, pair := range table.Conflicts {
		if len(pair) != 2 {
			panic(fmt.Sprintf("epgmatch: conflict pair %v must have two entries", pair))
		}
		a, b := pair[0], pair[1]
		if _, ok := familyKeywords[a]; !ok {
			panic(fmt.Sprintf("epgmatch: unknown family %q in conflicts", a))
		}
		if _, ok := familyKeywords[b]; !ok {
			panic(fmt.Sprintf("epgmatch: unknown family %q in conflicts", b))
		}
		if conflictsWith[a] == nil {
			conflictsWith[a] = map[string]bool{}
		}
		if conflictsWith[b] == nil {
			conflictsWith[b] = map[string]bool{}
		}
		conflictsWith[a][b] = true
		conflictsWith[b][a] = true
	}
}

// FamilyFor maps an event's league and sport labels to a known sport
// family, empty when unrecognized.
func FamilyFor(league, sport string) string {
	padded := " " + parser.Normalize(league+" "+sport) + " "
	for family, kws := range familyKeywords {
		for _, kw := range kws {
			if strings.Contains(padded, " "+kw+" ") {
				return family
			}
		}
	}
	return ""
}

// Score rates one guide program as a recording source for one event.
func Score(ev Event, p Program) Result {
	res := Result{}

	drift := p.Start.Sub(ev.Date)
	if drift < 0 {
		drift = -drift
	}
	if drift > maxStartDrift {
		res.Rejections = append(res.Rejections, "program start too far from event")
		return res
	}

	text := " " + parser.Normalize(strings.Join([]string{p.Title, p.Subtitle, p.Description, p.Category}, " ")) + " "
	family := FamilyFor(ev.League, ev.Sport)

	if family != "" {
		for other := range conflictsWith[family] {
			if kw := keywordIn(text, familyKeywords[other]); kw != "" {
				res.Rejections = append(res.Rejections, fmt.Sprintf("program is %s content (%q)", other, kw))
				return res
			}
		}
	}

	terms := matchTerms(ev)
	matched := 0
	for _, term := range terms {
		if strings.Contains(text, " "+term+" ") {
			matched++
		}
	}
	if len(terms) > 0 && matched == 0 {
		res.Rejections = append(res.Rejections, "no event terms in program text")
		return res
	}
	res.add(matched*30, fmt.Sprintf("%d/%d event terms", matched, len(terms)))
	if bothTeamsIn(text, ev) {
		res.add(40, "both teams named")
	}

	if family != "" {
		if kw := keywordIn(text, familyKeywords[family]); kw != "" {
			res.add(20, fmt.Sprintf("sport keyword %q", kw))
		}
	}

	switch {
	case drift <= 5*time.Minute:
		res.add(30, "start within 5m")
	case drift <= 15*time.Minute:
		res.add(20, "start within 15m")
	case drift <= 30*time.Minute:
		res.add(10, "start within 30m")
	}

	if p.IsSports {
		res.add(10, "flagged as sports")
	}

	res.IsMatch = res.Score >= matchThreshold
	return res
}

func (r *Result) add(points int, reason string) {
	if points <= 0 {
		return
	}
	r.Score += points
	r.Reasons = append(r.Reasons, reason)
}

func keywordIn(paddedText string, keywords []string) string {
	for _, kw := range keywords {
		if strings.Contains(paddedText, " "+kw+" ") {
			return kw
		}
	}
	return ""
}

// matchTerms returns the terms a program must echo: team names for team
// sports, the significant words of the title otherwise.
func matchTerms(ev Event) []string {
	seen := map[string]bool{}
	var terms []string
	add := func(s string) {
		n := parser.Normalize(s)
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		terms = append(terms, n)
	}

	if ev.HomeTeam != "" && ev.AwayTeam != "" {
		add(ev.HomeTeam)
		add(ev.AwayTeam)
		return terms
	}
	for _, w := range strings.Fields(parser.Normalize(ev.Title)) {
		if len(w) < 2 || termStopwords[w] {
			continue
		}
		add(w)
	}
	return terms
}

func bothTeamsIn(paddedText string, ev Event) bool {
	if ev.HomeTeam == "" || ev.AwayTeam == "" {
		return false
	}
	return strings.Contains(paddedText, " "+parser.Normalize(ev.HomeTeam)+" ") &&
		strings.Contains(paddedText, " "+parser.Normalize(ev.AwayTeam)+" ")
}

var termStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"at": true, "in": true, "on": true, "vs": true, "v": true, "versus": true,
}

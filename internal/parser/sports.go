package parser

import "strings"

// sportToken maps one normalized title token to its canonical prefix.
// Multi-word tokens must appear before their single-word fallbacks so the
// earliest, most specific match wins.
type sportToken struct {
	token     string
	canonical string
}

var sportTokens = []sportToken{
	{"ultimate fighting championship", "UFC"},
	{"national football league", "NFL"},
	{"national basketball association", "NBA"},
	{"national hockey league", "NHL"},
	{"major league baseball", "MLB"},
	{"major league soccer", "MLS"},
	{"formula 1", "Formula1"},
	{"formula1", "Formula1"},
	{"formula e", "FormulaE"},
	{"moto gp", "MotoGP"},
	{"motogp", "MotoGP"},
	{"premier league", "EPL"},
	{"champions league", "UEFA"},
	{"monday night football", "NFL"},
	{"ufc", "UFC"},
	{"bellator", "Bellator"},
	{"pfl", "PFL"},
	{"one championship", "ONE"},
	{"boxing", "Boxing"},
	{"wwe", "WWE"},
	{"aew", "AEW"},
	{"nfl", "NFL"},
	{"ncaa", "NCAA"},
	{"nba", "NBA"},
	{"wnba", "WNBA"},
	{"nhl", "NHL"},
	{"mlb", "MLB"},
	{"mls", "MLS"},
	{"epl", "EPL"},
	{"uefa", "UEFA"},
	{"fifa", "FIFA"},
	{"nascar", "NASCAR"},
	{"indycar", "IndyCar"},
	{"wrc", "WRC"},
	{"f1", "Formula1"},
	{"atp", "ATP"},
	{"wta", "WTA"},
	{"pga", "PGA"},
	{"rugby", "Rugby"},
	{"cricket", "Cricket"},
}

// matchSportPrefix finds the earliest known league/organization token in a
// normalized title. Sports releases lead with the league, so position breaks
// ties ahead of table order.
func matchSportPrefix(normalized string) string {
	padded := " " + normalized + " "
	canonical := ""
	best := len(padded)
	for _, st := range sportTokens {
		idx := strings.Index(padded, " "+st.token+" ")
		if idx >= 0 && idx < best {
			best = idx
			canonical = st.canonical
		}
	}
	return canonical
}

// SportPrefixFor maps a user-entered league or organization name to the same
// canonical prefix space used when parsing titles. Returns "" when the league
// is not recognized.
func SportPrefixFor(league string) string {
	return matchSportPrefix(Normalize(league))
}

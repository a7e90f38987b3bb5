// Package quality scores releases against user profiles. A release earns a
// quality score from its position in the profile's ordered quality list and a
// custom-format score from regex-style format specifications; the sum decides
// ranking between otherwise equal candidates.
package quality

import (
	"strings"

	"github.com/sideline/sideline/internal/parser"
)

// Definition is one entry in the fixed quality catalog.
type Definition struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Source     string `json:"source"`
	Resolution int    `json:"resolution"`
	Weight     int    `json:"weight"` // higher = better
}

// Definitions is the catalog of recognized qualities, worst to best.
// TV captures dominate sports content, so the HDTV tiers sit close to
// their WEB equivalents.
var Definitions = []Definition{
	{ID: 1, Name: "SDTV", Source: parser.SourceSDTV, Resolution: 480, Weight: 1},
	{ID: 2, Name: "DVD", Source: parser.SourceDVD, Resolution: 480, Weight: 2},
	{ID: 3, Name: "HDTV-720p", Source: parser.SourceHDTV, Resolution: 720, Weight: 3},
	{ID: 4, Name: "WEBRip-720p", Source: parser.SourceWEBRip, Resolution: 720, Weight: 4},
	{ID: 5, Name: "WEB-DL-720p", Source: parser.SourceWEBDL, Resolution: 720, Weight: 5},
	{ID: 6, Name: "Bluray-720p", Source: parser.SourceBluray, Resolution: 720, Weight: 6},
	{ID: 7, Name: "HDTV-1080p", Source: parser.SourceHDTV, Resolution: 1080, Weight: 7},
	{ID: 8, Name: "RawHD", Source: parser.SourceRawHD, Resolution: 1080, Weight: 8},
	{ID: 9, Name: "WEBRip-1080p", Source: parser.SourceWEBRip, Resolution: 1080, Weight: 9},
	{ID: 10, Name: "WEB-DL-1080p", Source: parser.SourceWEBDL, Resolution: 1080, Weight: 10},
	{ID: 11, Name: "Bluray-1080p", Source: parser.SourceBluray, Resolution: 1080, Weight: 11},
	{ID: 12, Name: "Remux-1080p", Source: parser.SourceBlurayRaw, Resolution: 1080, Weight: 12},
	{ID: 13, Name: "HDTV-2160p", Source: parser.SourceHDTV, Resolution: 2160, Weight: 13},
	{ID: 14, Name: "WEBRip-2160p", Source: parser.SourceWEBRip, Resolution: 2160, Weight: 14},
	{ID: 15, Name: "WEB-DL-2160p", Source: parser.SourceWEBDL, Resolution: 2160, Weight: 15},
	{ID: 16, Name: "Bluray-2160p", Source: parser.SourceBluray, Resolution: 2160, Weight: 16},
	{ID: 17, Name: "Remux-2160p", Source: parser.SourceBlurayRaw, Resolution: 2160, Weight: 17},
}

var definitionByID map[int]Definition

func init() {
	definitionByID = make(map[int]Definition, len(Definitions))
	for _, d := range Definitions {
		definitionByID[d.ID] = d
	}
}

// DefinitionByID returns a catalog entry by ID.
func DefinitionByID(id int) (Definition, bool) {
	d, ok := definitionByID[id]
	return d, ok
}

// DefinitionFor resolves a parsed quality to its catalog entry.
func DefinitionFor(q parser.Quality) (Definition, bool) {
	key := normalizeLabel(q.Name())
	for _, d := range Definitions {
		if normalizeLabel(d.Name) == key {
			return d, true
		}
	}
	return Definition{}, false
}

// labelAliases folds parser renderings onto catalog names. Ordered so the
// longest prefix is tried first.
var labelAliases = []struct{ from, to string }{
	{"blurayraw", "remux"},
	{"bdremux", "remux"},
	{"brrip", "bluray"},
	{"bdrip", "bluray"},
}

// normalizeLabel lowercases a quality label and collapses separators so
// "WEB-DL 1080p", "WEBDL-1080p" and "web dl 1080p" compare equal.
func normalizeLabel(label string) string {
	s := strings.ToLower(label)
	s = strings.NewReplacer("-", "", "_", "", ".", "", " ", "").Replace(s)
	for _, a := range labelAliases {
		if strings.HasPrefix(s, a.from) {
			s = a.to + s[len(a.from):]
			break
		}
	}
	return s
}

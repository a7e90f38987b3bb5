package quality

import (
	"github.com/sideline/sideline/internal/parser"
)

// positionWeight is what one step up the profile's quality ladder is worth.
const positionWeight = 100

// resolutionBonus breaks ties between same-position qualities at different
// resolutions and gives the no-profile fallback its spread.
func resolutionBonus(resolution int) int {
	switch {
	case resolution >= 2160:
		return 40
	case resolution >= 1080:
		return 30
	case resolution >= 720:
		return 20
	case resolution > 0:
		return 10
	default:
		return 0
	}
}

// fallbackScore ranks a release by resolution alone when no profile applies.
func fallbackScore(resolution int) int {
	switch {
	case resolution >= 2160:
		return 400
	case resolution >= 1080:
		return 300
	case resolution >= 720:
		return 200
	case resolution > 0:
		return 100
	default:
		return 50
	}
}

// Score is the two-part ranking of a release under a profile.
type Score struct {
	Quality int `json:"quality"`
	Format  int `json:"format"`
}

// Total is the value releases are ranked by.
func (s Score) Total() int {
	return s.Quality + s.Format
}

// QualityScore positions a quality label within the profile's ordered list.
// The first slot (by order) whose name or member set covers the label wins;
// its 1-based position times the position weight plus a resolution bonus is
// the score. Labels no slot covers score zero. Without a profile the
// resolution-only fallback applies.
func QualityScore(profile *Profile, q parser.Quality) int {
	if profile == nil {
		return fallbackScore(q.Resolution)
	}

	key := normalizeLabel(q.Name())
	for idx, item := range profile.Items {
		if !item.Allowed {
			continue
		}
		for _, member := range item.Members() {
			if normalizeLabel(member) == key {
				return (idx+1)*positionWeight + resolutionBonus(q.Resolution)
			}
		}
	}
	return 0
}

// FormatScore sums the profile's score assignments over all matching formats.
// Formats the profile does not reference contribute nothing.
func FormatScore(profile *Profile, formats []CustomFormat, title string, parsed parser.ParsedTitle, size int64) int {
	if profile == nil || len(profile.FormatItems) == 0 || len(formats) == 0 {
		return 0
	}

	scoreByID := make(map[int64]int, len(profile.FormatItems))
	for _, fi := range profile.FormatItems {
		scoreByID[fi.FormatID] = fi.Score
	}

	total := 0
	for i := range formats {
		score, assigned := scoreByID[formats[i].ID]
		if !assigned {
			continue
		}
		if formats[i].Matches(title, parsed, size) {
			total += score
		}
	}
	return total
}

// ScoreRelease computes both halves for a release title. Size is in bytes,
// zero when the transport did not report one.
func ScoreRelease(profile *Profile, formats []CustomFormat, title string, parsed parser.ParsedTitle, size int64) Score {
	return Score{
		Quality: QualityScore(profile, parsed.Quality),
		Format:  FormatScore(profile, formats, title, parsed, size),
	}
}

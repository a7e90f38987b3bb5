// Package parser extracts structured metadata from scene-style release
// titles. Parsing never fails; fields that cannot be recognized are left
// unset so callers can fall back on other signals.
package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	resolutionPattern = regexp.MustCompile(`(?i)\b(360|480|540|576|720|1080|2160)p\b`)
	fourKPattern      = regexp.MustCompile(`(?i)\b(?:4k|uhd)\b`)
	fullHDPattern     = regexp.MustCompile(`(?i)\bfull[_. -]?hd\b`)
	dimensionPattern  = regexp.MustCompile(`\b(\d{3,4})\s?[xX]\s?(\d{3,4})\b`)

	// One union for every source token. Scene titles often lead with the
	// originating platform and end with the actual format, so the last
	// match decides.
	sourcePattern = regexp.MustCompile(`(?i)\b(?:` +
		`(?P<webrip>web[_. -]?rip)|` +
		`(?P<webdl>web[_. -]?dl|web)|` +
		`(?P<bluray>blu[_. -]?ray|bd[_. -]?rip|br[_. -]?rip|bd[_. -]?remux)|` +
		`(?P<rawhd>raw[_. -]?hd)|` +
		`(?P<hdtv>hd[_. -]?tv)|` +
		`(?P<sdtv>sd[_. -]?tv|pdtv|dsr|tv[_. -]?rip)|` +
		`(?P<dvd>dvd[_. -]?rip|dvdr|dvd|ntsc|pal)` +
		`)\b`)

	remuxPattern   = regexp.MustCompile(`(?i)remux`)
	properPattern  = regexp.MustCompile(`(?i)\b(?:proper|repack|rerip)\b`)
	repackPattern  = regexp.MustCompile(`(?i)\b(?:repack|rerip)\b`)
	versionPattern = regexp.MustCompile(`(?i)\bv([2-9])\b`)
	realPattern    = regexp.MustCompile(`\bREAL\b`) // case-sensitive by scene convention

	datePattern      = regexp.MustCompile(`\b(19\d{2}|20\d{2})[._ -](0?[1-9]|1[0-2])[._ -](0?[1-9]|[12]\d|3[01])\b`)
	yearPattern      = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	roundPattern     = regexp.MustCompile(`(?i)\b(?:round|week)[._ -]?(\d{1,2})\b`)
	versusPattern    = regexp.MustCompile(`(?i)\bvs\b|@|(?:^|[._ -])v(?:[._ -])`)
	groupPattern     = regexp.MustCompile(`-([A-Za-z][A-Za-z0-9]{1,24})(?:\[[^\]]*\])?$`)
	channelsPattern  = regexp.MustCompile(`(?:^|[^0-9])([2567])[. ]([01])\b`)
	separatorPattern = regexp.MustCompile(`[._\- ]+`)
	nonAlnumPattern  = regexp.MustCompile(`[^a-z0-9]+`)

	videoCodecPatterns = []tokenPattern{
		{"H265", regexp.MustCompile(`(?i)\b(?:x[_. -]?265|h[_. -]?265|hevc)\b`)},
		{"H264", regexp.MustCompile(`(?i)\b(?:x[_. -]?264|h[_. -]?264|avc)\b`)},
		{"AV1", regexp.MustCompile(`(?i)\bav1\b`)},
		{"VP9", regexp.MustCompile(`(?i)\bvp9\b`)},
		{"XviD", regexp.MustCompile(`(?i)\bxvid\b`)},
		{"DivX", regexp.MustCompile(`(?i)\bdivx\b`)},
		{"MPEG2", regexp.MustCompile(`(?i)\bmpe?g[_. -]?2\b`)},
	}

	audioCodecPatterns = []tokenPattern{
		{"Atmos", regexp.MustCompile(`(?i)\batmos\b`)},
		{"TrueHD", regexp.MustCompile(`(?i)\btrue[_. -]?hd\b`)},
		{"DTS-X", regexp.MustCompile(`(?i)\bdts[_. -]?x\b`)},
		{"DTS-HD", regexp.MustCompile(`(?i)\bdts[_. -]?hd(?:[_. -]?ma)?\b`)},
		{"DTS", regexp.MustCompile(`(?i)\bdts\b`)},
		{"EAC3", regexp.MustCompile(`(?i)\b(?:e[_. -]?ac[_. -]?3\b|ddp|dd\+)`)},
		{"AC3", regexp.MustCompile(`(?i)\b(?:ac[_. -]?3\b|dd(?:[_. -]?[2567][._ ][01])?\b)`)},
		{"AAC", regexp.MustCompile(`(?i)\baac\b`)},
		{"FLAC", regexp.MustCompile(`(?i)\bflac\b`)},
		{"MP2", regexp.MustCompile(`(?i)\bmp2\b`)},
		{"MP3", regexp.MustCompile(`(?i)\bmp3\b`)},
	}

	languagePatterns = []tokenPattern{
		{"Multi", regexp.MustCompile(`(?i)\bmulti\b`)},
		{"French", regexp.MustCompile(`(?i)\b(?:french|vostfr|truefrench)\b`)},
		{"German", regexp.MustCompile(`(?i)\bgerman\b`)},
		{"Spanish", regexp.MustCompile(`(?i)\b(?:spanish|castellano)\b`)},
		{"Italian", regexp.MustCompile(`(?i)\bitalian\b`)},
		{"Dutch", regexp.MustCompile(`(?i)\bdutch\b`)},
		{"Portuguese", regexp.MustCompile(`(?i)\bportuguese\b`)},
		{"Russian", regexp.MustCompile(`(?i)\brussian\b`)},
		{"Japanese", regexp.MustCompile(`(?i)\bjapanese\b`)},
		{"Korean", regexp.MustCompile(`(?i)\bkorean\b`)},
		{"Polish", regexp.MustCompile(`(?i)\bpolish\b`)},
		{"Nordic", regexp.MustCompile(`(?i)\b(?:nordic|swedish|norwegian|danish|finnish)\b`)},
	}

	editionPattern = regexp.MustCompile(`(?i)\b(extended|uncut|international|directors?[_. -]cut)\b`)

	// Release group suffixes that are really the tail of a hyphenated
	// technical token, e.g. the DL of WEB-DL.
	groupExclusions = map[string]bool{
		"dl": true, "dd": true, "ddp": true, "rip": true, "hd": true, "ma": true,
		"ray": true, "web": true, "remux": true, "proper": true, "repack": true,
		"real": true, "hdtv": true, "sdtv": true, "aac": true, "ac3": true,
		"eac3": true, "dts": true, "truehd": true, "atmos": true, "x264": true,
		"x265": true, "h264": true, "h265": true, "hevc": true, "avc": true,
		"xvid": true, "divx": true, "mp2": true, "mpeg2": true, "pal": true,
		"ntsc": true,
	}

	videoExtensions = map[string]bool{
		".mkv": true, ".mp4": true, ".avi": true, ".ts": true, ".wmv": true,
		".m2ts": true, ".mov": true, ".flv": true, ".webm": true, ".mpg": true,
		".mpeg": true, ".m4v": true,
	}

	diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

type tokenPattern struct {
	name    string
	pattern *regexp.Regexp
}

// Parse extracts everything recognizable from a release title. It is a pure
// function and never returns an error.
func Parse(title string) ParsedTitle {
	name := strings.TrimSpace(title)

	ext := strings.ToLower(filepath.Ext(name))
	if videoExtensions[ext] {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	} else {
		ext = ""
	}

	parsed := ParsedTitle{
		Revision: Revision{Version: 1},
	}

	parsed.ReleaseGroup, name = parseReleaseGroup(name)

	parsed.Quality.Resolution = parseResolution(name)
	source, remux := parseSource(name)
	parsed.Quality.Source = source
	parsed.Quality.IsRemux = remux

	// Sports feeds default to TV captures, so a bare resolution means HDTV.
	// With no signal at all, the container extension is the last hint.
	if parsed.Quality.Source == "" {
		switch {
		case parsed.Quality.Resolution > 0:
			parsed.Quality.Source = SourceHDTV
		case ext == ".ts":
			parsed.Quality.Source = SourceRawHD
		case ext == ".avi" || ext == ".wmv":
			parsed.Quality.Source = SourceSDTV
		}
	}

	for _, tp := range videoCodecPatterns {
		if tp.pattern.MatchString(name) {
			parsed.Quality.Codec = tp.name
			break
		}
	}
	for _, tp := range audioCodecPatterns {
		if tp.pattern.MatchString(name) {
			parsed.AudioCodec = tp.name
			break
		}
	}
	if m := channelsPattern.FindStringSubmatch(name); m != nil {
		parsed.AudioChannels = m[1] + "." + m[2]
	}
	for _, tp := range languagePatterns {
		if tp.pattern.MatchString(name) {
			parsed.Language = tp.name
			break
		}
	}
	if m := editionPattern.FindStringSubmatch(name); m != nil {
		parsed.Edition = cleanSeparators(m[1])
	}

	if properPattern.MatchString(name) && parsed.Revision.Version < 2 {
		parsed.Revision.Version = 2
	}
	parsed.Revision.IsRepack = repackPattern.MatchString(name)
	if m := versionPattern.FindStringSubmatch(name); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			parsed.Revision.Version = v
		}
	}
	parsed.Revision.IsReal = realPattern.MatchString(name)

	dateSpan := datePattern.FindStringSubmatchIndex(name)
	if dateSpan != nil {
		parsed.Year, _ = strconv.Atoi(name[dateSpan[2]:dateSpan[3]])
		parsed.Month, _ = strconv.Atoi(name[dateSpan[4]:dateSpan[5]])
		parsed.Day, _ = strconv.Atoi(name[dateSpan[6]:dateSpan[7]])
	} else if m := yearPattern.FindStringSubmatch(name); m != nil {
		parsed.Year, _ = strconv.Atoi(m[1])
	}

	if m := roundPattern.FindStringSubmatch(name); m != nil {
		parsed.Round, _ = strconv.Atoi(m[1])
	}
	parsed.IsPack = roundPattern.MatchString(name) && !versusPattern.MatchString(name)

	parsed.SportPrefix = matchSportPrefix(Normalize(name))
	parsed.Title = extractTitle(name, dateSpan)

	return parsed
}

// parseSource scans the source union and keeps the last match.
func parseSource(name string) (string, bool) {
	remux := remuxPattern.MatchString(name)

	matches := sourcePattern.FindAllStringSubmatchIndex(name, -1)
	if len(matches) == 0 {
		return "", remux
	}

	source := ""
	last := matches[len(matches)-1]
	for gi, gname := range sourcePattern.SubexpNames() {
		if gname == "" || last[2*gi] < 0 {
			continue
		}
		switch gname {
		case "webrip":
			source = SourceWEBRip
		case "webdl":
			source = SourceWEBDL
		case "bluray":
			source = SourceBluray
		case "rawhd":
			source = SourceRawHD
		case "hdtv":
			source = SourceHDTV
		case "sdtv":
			source = SourceSDTV
		case "dvd":
			source = SourceDVD
		}
	}

	if source == SourceBluray && remux {
		source = SourceBlurayRaw
	}
	return source, remux
}

func parseResolution(name string) int {
	if m := resolutionPattern.FindStringSubmatch(name); m != nil {
		r, _ := strconv.Atoi(m[1])
		return r
	}
	if fourKPattern.MatchString(name) {
		return 2160
	}
	if fullHDPattern.MatchString(name) {
		return 1080
	}
	if m := dimensionPattern.FindStringSubmatch(name); m != nil {
		width, _ := strconv.Atoi(m[1])
		height, _ := strconv.Atoi(m[2])
		return resolutionFromDimensions(width, height)
	}
	return 0
}

var canonicalResolutions = []int{2160, 1080, 720, 576, 540, 480, 360}

func resolutionFromDimensions(width, height int) int {
	for _, r := range canonicalResolutions {
		if height == r {
			return r
		}
	}
	switch width {
	case 4096, 3840:
		return 2160
	case 1920:
		return 1080
	case 1280:
		return 720
	case 720:
		return 576
	case 640:
		return 480
	}
	for _, r := range canonicalResolutions {
		if height >= r {
			return r
		}
	}
	return 360
}

// parseReleaseGroup strips and returns a trailing -GROUP token, guarding
// against hyphenated technical tokens like WEB-DL.
func parseReleaseGroup(name string) (string, string) {
	m := groupPattern.FindStringSubmatch(name)
	if m == nil {
		return "", name
	}
	if groupExclusions[strings.ToLower(m[1])] {
		return "", name
	}
	return m[1], name[:len(name)-len(m[0])]
}

// extractTitle returns the human-meaningful portion of the name: everything
// before the first technical token. Date-led titles take the segment between
// the date and the next technical token instead.
func extractTitle(name string, dateSpan []int) string {
	cut := len(name)
	for _, p := range []*regexp.Regexp{resolutionPattern, fourKPattern, fullHDPattern, dimensionPattern, sourcePattern} {
		if loc := p.FindStringIndex(name); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	for _, tp := range videoCodecPatterns {
		if loc := tp.pattern.FindStringIndex(name); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	if dateSpan != nil && dateSpan[0] < cut {
		cut = dateSpan[0]
	}

	title := cleanSeparators(name[:cut])
	if title != "" {
		return title
	}

	// Date-led form, e.g. "2024.03.09.UFC.299.1080p".
	if dateSpan != nil {
		rest := name[dateSpan[1]:]
		restCut := len(rest)
		for _, p := range []*regexp.Regexp{resolutionPattern, fourKPattern, fullHDPattern, dimensionPattern, sourcePattern} {
			if loc := p.FindStringIndex(rest); loc != nil && loc[0] < restCut {
				restCut = loc[0]
			}
		}
		for _, tp := range videoCodecPatterns {
			if loc := tp.pattern.FindStringIndex(rest); loc != nil && loc[0] < restCut {
				restCut = loc[0]
			}
		}
		if title := cleanSeparators(rest[:restCut]); title != "" {
			return title
		}
	}

	return cleanSeparators(name)
}

func cleanSeparators(s string) string {
	return strings.TrimSpace(separatorPattern.ReplaceAllString(s, " "))
}

// Normalize lowercases, strips diacritics, and reduces every run of
// non-alphanumeric characters to a single space. Used for cache keys and
// fuzzy comparisons.
func Normalize(title string) string {
	folded, _, err := transform.String(diacriticFold, title)
	if err != nil {
		folded = title
	}
	return strings.TrimSpace(nonAlnumPattern.ReplaceAllString(strings.ToLower(folded), " "))
}

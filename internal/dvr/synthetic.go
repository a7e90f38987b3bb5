package dvr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sideline/sideline/internal/mediainfo"
	"github.com/sideline/sideline/internal/store"
)

// TitleSettings are the media tokens embedded in a capture's release title.
type TitleSettings struct {
	Resolution string
	VideoCodec string
	AudioCodec string
	Channels   string
}

// settingsFromProbe fills title tokens from probed media properties,
// defaulting to what a live TV capture typically is when the probe
// came back empty.
func settingsFromProbe(info *mediainfo.MediaInfo) TitleSettings {
	set := TitleSettings{
		Resolution: "720p",
		VideoCodec: "H264",
		AudioCodec: "AAC",
		Channels:   "2.0",
	}
	if info == nil {
		return set
	}
	if label := info.ResolutionLabel(); label != "" {
		set.Resolution = label
	}
	if token := sceneVideoToken(info.VideoCodec); token != "" {
		set.VideoCodec = token
	}
	if token := sceneToken(info.AudioCodec); token != "" {
		set.AudioCodec = token
	}
	if info.AudioChannels != "" {
		set.Channels = info.AudioChannels
	}
	return set
}

// BuildTitle produces the scene-style release title recorded captures are
// filed under, so they rank and upgrade exactly like indexer releases:
//
//	St.Louis.Blues.vs.Chicago.Blackhawks.2026.720p.HDTV.H264.AAC.2.0-DVR
func BuildTitle(ev store.Event, set TitleSettings) string {
	return fmt.Sprintf("%s.%d.%s.HDTV.%s.%s.%s-DVR",
		sceneify(ev.Title), ev.EventDate.Year(),
		set.Resolution, set.VideoCodec, set.AudioCodec, set.Channels)
}

var nonSceneChars = regexp.MustCompile(`[^A-Za-z0-9]+`)

// sceneify renders free text as a dot-separated scene token run.
func sceneify(s string) string {
	return strings.Trim(nonSceneChars.ReplaceAllString(s, "."), ".")
}

// sceneVideoToken maps probe codec labels onto unambiguous title tokens.
// "H.264" would smuggle an extra separator into a dotted name.
func sceneVideoToken(codec string) string {
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "h.264", "h264", "avc", "x264":
		return "H264"
	case "h.265", "h265", "hevc", "x265":
		return "H265"
	case "mpeg2", "mpeg-2":
		return "MPEG2"
	default:
		return sceneToken(codec)
	}
}

func sceneToken(s string) string {
	return nonSceneChars.ReplaceAllString(strings.TrimSpace(s), "")
}

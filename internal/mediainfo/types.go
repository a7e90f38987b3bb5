package mediainfo

import (
	"fmt"
	"strings"
	"time"
)

// MediaInfo holds the probed properties of a media file.
type MediaInfo struct {
	Width         int           `json:"width"`
	Height        int           `json:"height"`
	VideoCodec    string        `json:"videoCodec"`
	AudioCodec    string        `json:"audioCodec"`
	AudioChannels string        `json:"audioChannels"`
	Container     string        `json:"container"`
	Duration      time.Duration `json:"duration"`
	FileSize      int64         `json:"fileSize"`
}

// DurationSeconds returns the runtime rounded to whole seconds.
func (m *MediaInfo) DurationSeconds() int {
	return int(m.Duration.Round(time.Second) / time.Second)
}

// ResolutionLabel maps the probed dimensions onto a canonical label
// ("1080p", "720p"...). Empty when no video stream was found.
func (m *MediaInfo) ResolutionLabel() string {
	if m.Width == 0 && m.Height == 0 {
		return ""
	}
	for _, r := range []int{2160, 1080, 720, 576, 540, 480, 360} {
		if m.Height == r {
			return fmt.Sprintf("%dp", r)
		}
	}
	switch m.Width {
	case 4096, 3840:
		return "2160p"
	case 1920:
		return "1080p"
	case 1280:
		return "720p"
	case 720:
		return "576p"
	case 640:
		return "480p"
	}
	for _, r := range []int{2160, 1080, 720, 576, 540, 480} {
		if m.Height >= r {
			return fmt.Sprintf("%dp", r)
		}
	}
	return "360p"
}

// videoCodecMap maps raw codec names to standard display names.
var videoCodecMap = map[string]string{
	"hevc":       "HEVC",
	"h265":       "HEVC",
	"h.265":      "HEVC",
	"x265":       "x265",
	"h264":       "H.264",
	"h.264":      "H.264",
	"avc":        "H.264",
	"x264":       "x264",
	"av1":        "AV1",
	"vp9":        "VP9",
	"mpeg2":      "MPEG2",
	"mpeg-2":     "MPEG2",
	"mpeg2video": "MPEG2",
	"vc1":        "VC-1",
}

// audioCodecMap maps raw audio codec names to standard display names.
var audioCodecMap = map[string]string{
	"dts":    "DTS",
	"truehd": "TrueHD",
	"e-ac-3": "EAC3",
	"eac3":   "EAC3",
	"ac3":    "AC3",
	"ac-3":   "AC3",
	"aac":    "AAC",
	"flac":   "FLAC",
	"opus":   "Opus",
	"mp3":    "MP3",
	"mp2":    "MP2",
	"pcm":    "PCM",
	"vorbis": "Vorbis",
}

// NormalizeVideoCodec maps a raw codec name to its display form.
func NormalizeVideoCodec(codec string) string {
	lower := strings.ToLower(strings.TrimSpace(codec))
	if normalized, ok := videoCodecMap[lower]; ok {
		return normalized
	}
	for key, value := range videoCodecMap {
		if strings.Contains(lower, key) {
			return value
		}
	}
	return codec
}

// NormalizeAudioCodec maps a raw audio codec name to its display form.
func NormalizeAudioCodec(codec string) string {
	lower := strings.ToLower(strings.TrimSpace(codec))
	if normalized, ok := audioCodecMap[lower]; ok {
		return normalized
	}
	for key, value := range audioCodecMap {
		if strings.Contains(lower, key) {
			return value
		}
	}
	return codec
}

// FormatChannels renders a channel count and layout as "5.1"-style text.
func FormatChannels(channels int, layout string) string {
	lower := strings.ToLower(layout)
	switch {
	case strings.Contains(lower, "7.1"):
		return "7.1"
	case strings.Contains(lower, "5.1"):
		return "5.1"
	case strings.Contains(lower, "stereo") || strings.Contains(lower, "2.0"):
		return "2.0"
	case strings.Contains(lower, "mono"):
		return "1.0"
	}

	switch {
	case channels >= 8:
		return "7.1"
	case channels >= 6:
		return "5.1"
	case channels >= 2:
		return "2.0"
	case channels == 1:
		return "1.0"
	default:
		return ""
	}
}

package parser

import "fmt"

// Source identifies where a release was captured from. Values double as the
// display names used in quality labels.
const (
	SourceSDTV      = "SDTV"
	SourceDVD       = "DVD"
	SourceHDTV      = "HDTV"
	SourceRawHD     = "RawHD"
	SourceWEBDL     = "WEB-DL"
	SourceWEBRip    = "WEBRip"
	SourceBluray    = "Bluray"
	SourceBlurayRaw = "BlurayRaw"
)

// Quality is the media quality extracted from a release title.
type Quality struct {
	Resolution int    `json:"resolution,omitempty"` // 360, 480, 540, 576, 720, 1080, 2160
	Source     string `json:"source,omitempty"`
	Codec      string `json:"codec,omitempty"`
	IsRemux    bool   `json:"isRemux,omitempty"`
}

// Name renders the canonical quality label, e.g. "HDTV-1080p".
func (q Quality) Name() string {
	switch {
	case q.Source != "" && q.Resolution > 0:
		return fmt.Sprintf("%s-%dp", q.Source, q.Resolution)
	case q.Source != "":
		return q.Source
	case q.Resolution > 0:
		return fmt.Sprintf("%dp", q.Resolution)
	default:
		return "Unknown"
	}
}

// Revision tracks PROPER/REPACK/REAL markers on a release.
type Revision struct {
	Version  int  `json:"version"`
	IsRepack bool `json:"isRepack,omitempty"`
	IsReal   bool `json:"isReal,omitempty"`
}

// IsProper reports whether the release is a revised cut of an earlier one.
func (r Revision) IsProper() bool {
	return r.Version > 1
}

// ParsedTitle is the structured form of a scene-style release title. Fields
// that could not be extracted are left at their zero values.
type ParsedTitle struct {
	Title         string   `json:"title"`
	Quality       Quality  `json:"quality"`
	Revision      Revision `json:"revision"`
	ReleaseGroup  string   `json:"releaseGroup,omitempty"`
	Language      string   `json:"language,omitempty"`
	Edition       string   `json:"edition,omitempty"`
	Year          int      `json:"year,omitempty"`
	Month         int      `json:"month,omitempty"`
	Day           int      `json:"day,omitempty"`
	Round         int      `json:"round,omitempty"`
	SportPrefix   string   `json:"sportPrefix,omitempty"`
	IsPack        bool     `json:"isPack,omitempty"`
	AudioCodec    string   `json:"audioCodec,omitempty"`
	AudioChannels string   `json:"audioChannels,omitempty"`
}

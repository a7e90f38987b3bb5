package parser

import "testing"

func TestParseQuality(t *testing.T) {
	tests := []struct {
		name           string
		title          string
		wantResolution int
		wantSource     string
		wantCodec      string
		wantRemux      bool
	}{
		{
			name:           "web-dl 1080p",
			title:          "UFC.299.Main.Card.1080p.WEB-DL.H264-GRP",
			wantResolution: 1080,
			wantSource:     SourceWEBDL,
			wantCodec:      "H264",
		},
		{
			name:           "webrip beats web token",
			title:          "NBA.2024.03.09.Celtics.vs.Lakers.720p.WEBRip.x264",
			wantResolution: 720,
			wantSource:     SourceWEBRip,
			wantCodec:      "H264",
		},
		{
			name:           "platform prefix does not decide source",
			title:          "F1.2024.Round.04.Japanese.GP.Race.WEB.1080p.HDTV.H264",
			wantResolution: 1080,
			wantSource:     SourceHDTV,
			wantCodec:      "H264",
		},
		{
			name:           "bluray remux upgrades to raw tier",
			title:          "Boxing.2023.Fury.vs.Ngannou.2160p.BluRay.REMUX.HEVC",
			wantResolution: 2160,
			wantSource:     SourceBlurayRaw,
			wantCodec:      "H265",
			wantRemux:      true,
		},
		{
			name:           "bare resolution implies hdtv",
			title:          "NFL.2024.Week.10.Bills.at.Chiefs.720p",
			wantResolution: 720,
			wantSource:     SourceHDTV,
		},
		{
			name:       "ts extension implies rawhd",
			title:      "MotoGP.2024.Qatar.Sprint.ts",
			wantSource: SourceRawHD,
		},
		{
			name:       "avi extension implies sdtv",
			title:      "WWE.SmackDown.2008.05.02.avi",
			wantSource: SourceSDTV,
		},
		{
			name:           "4k token",
			title:          "UFC.300.PPV.4K.WEB-DL.DDP5.1.H265",
			wantResolution: 2160,
			wantSource:     SourceWEBDL,
			wantCodec:      "H265",
		},
		{
			name:           "dimensions fall back to canonical height",
			title:          "NHL.2024.Bruins.vs.Rangers.1920x1080.HDTV.AVC",
			wantResolution: 1080,
			wantSource:     SourceHDTV,
			wantCodec:      "H264",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.title)
			if got.Quality.Resolution != tt.wantResolution {
				t.Errorf("resolution = %d, want %d", got.Quality.Resolution, tt.wantResolution)
			}
			if got.Quality.Source != tt.wantSource {
				t.Errorf("source = %q, want %q", got.Quality.Source, tt.wantSource)
			}
			if got.Quality.Codec != tt.wantCodec {
				t.Errorf("codec = %q, want %q", got.Quality.Codec, tt.wantCodec)
			}
			if got.Quality.IsRemux != tt.wantRemux {
				t.Errorf("isRemux = %v, want %v", got.Quality.IsRemux, tt.wantRemux)
			}
		})
	}
}

func TestParseRevision(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		wantVersion int
		wantRepack  bool
		wantReal    bool
		wantProper  bool
	}{
		{
			name:        "plain title is version 1",
			title:       "UFC.299.1080p.WEB-DL.H264",
			wantVersion: 1,
		},
		{
			name:        "proper bumps version",
			title:       "UFC.299.PROPER.1080p.WEB-DL.H264",
			wantVersion: 2,
			wantProper:  true,
		},
		{
			name:        "repack bumps version and flags repack",
			title:       "NFL.2024.Week.10.REPACK.720p.HDTV.x264",
			wantVersion: 2,
			wantRepack:  true,
			wantProper:  true,
		},
		{
			name:        "explicit v3",
			title:       "MotoGP.2024.Round.02.Race.v3.1080p.WEB.h264",
			wantVersion: 3,
			wantProper:  true,
		},
		{
			name:        "REAL is case sensitive",
			title:       "NBA.Finals.2024.Game.5.REAL.720p.HDTV.x264",
			wantVersion: 1,
			wantReal:    true,
		},
		{
			name:        "lowercase real is ignored",
			title:       "NBA.Finals.2024.real.madrid.720p.HDTV.x264",
			wantVersion: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.title)
			if got.Revision.Version != tt.wantVersion {
				t.Errorf("version = %d, want %d", got.Revision.Version, tt.wantVersion)
			}
			if got.Revision.IsRepack != tt.wantRepack {
				t.Errorf("isRepack = %v, want %v", got.Revision.IsRepack, tt.wantRepack)
			}
			if got.Revision.IsReal != tt.wantReal {
				t.Errorf("isReal = %v, want %v", got.Revision.IsReal, tt.wantReal)
			}
			if got.Revision.IsProper() != tt.wantProper {
				t.Errorf("IsProper() = %v, want %v", got.Revision.IsProper(), tt.wantProper)
			}
		})
	}
}

func TestParseDateAndRound(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		wantYear  int
		wantMonth int
		wantDay   int
		wantRound int
		wantPack  bool
	}{
		{
			name:      "full date",
			title:     "NBA.2024.03.09.Celtics.vs.Lakers.720p",
			wantYear:  2024,
			wantMonth: 3,
			wantDay:   9,
		},
		{
			name:     "year only",
			title:    "UFC.299.2024.1080p.WEB-DL",
			wantYear: 2024,
		},
		{
			name:      "week pack without versus",
			title:     "NFL.2024.Week.10.720p.HDTV.x264",
			wantYear:  2024,
			wantRound: 10,
			wantPack:  true,
		},
		{
			name:      "round with versus is not a pack",
			title:     "EPL.2024.Round.5.Arsenal.vs.Spurs.1080p",
			wantYear:  2024,
			wantRound: 5,
		},
		{
			name:      "at-sign also breaks pack",
			title:     "NFL.2024.Week.10.Bills.@.Chiefs.720p",
			wantYear:  2024,
			wantRound: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.title)
			if got.Year != tt.wantYear {
				t.Errorf("year = %d, want %d", got.Year, tt.wantYear)
			}
			if got.Month != tt.wantMonth {
				t.Errorf("month = %d, want %d", got.Month, tt.wantMonth)
			}
			if got.Day != tt.wantDay {
				t.Errorf("day = %d, want %d", got.Day, tt.wantDay)
			}
			if got.Round != tt.wantRound {
				t.Errorf("round = %d, want %d", got.Round, tt.wantRound)
			}
			if got.IsPack != tt.wantPack {
				t.Errorf("isPack = %v, want %v", got.IsPack, tt.wantPack)
			}
		})
	}
}

func TestParseReleaseGroup(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		wantGroup string
	}{
		{
			name:      "trailing group",
			title:     "UFC.299.Main.Card.1080p.WEB-DL.H264-GRP",
			wantGroup: "GRP",
		},
		{
			name:      "web-dl suffix is not a group",
			title:     "UFC.299.Main.Card.1080p.WEB-DL",
			wantGroup: "",
		},
		{
			name:      "group with tag suffix",
			title:     "NFL.2024.Week.10.720p.HDTV.x264-VERUM[rartv]",
			wantGroup: "VERUM",
		},
		{
			name:      "no group",
			title:     "MotoGP.2024.Qatar.Race.1080p",
			wantGroup: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.title)
			if got.ReleaseGroup != tt.wantGroup {
				t.Errorf("releaseGroup = %q, want %q", got.ReleaseGroup, tt.wantGroup)
			}
		})
	}
}

func TestParseSportPrefix(t *testing.T) {
	tests := []struct {
		name       string
		title      string
		wantPrefix string
	}{
		{name: "ufc", title: "UFC.299.OMalley.vs.Vera.2.1080p", wantPrefix: "UFC"},
		{name: "formula 1 dotted", title: "Formula.1.2024.Round.04.Japan.Race.1080p", wantPrefix: "Formula1"},
		{name: "f1 short token", title: "F1.2024.R04.Race.SkyF1.1080p", wantPrefix: "Formula1"},
		{name: "motogp", title: "MotoGP.2024.Qatar.Sprint.1080p", wantPrefix: "MotoGP"},
		{name: "earliest token wins", title: "NFL.Films.Boxing.Special.720p", wantPrefix: "NFL"},
		{name: "premier league multiword", title: "Premier.League.2024.Arsenal.vs.Spurs.1080p", wantPrefix: "EPL"},
		{name: "no prefix", title: "Some.Random.Documentary.1080p", wantPrefix: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.title)
			if got.SportPrefix != tt.wantPrefix {
				t.Errorf("sportPrefix = %q, want %q", got.SportPrefix, tt.wantPrefix)
			}
		})
	}
}

func TestParseAudio(t *testing.T) {
	got := Parse("UFC.300.PPV.2160p.WEB-DL.DDP5.1.Atmos.H265-GRP")
	if got.AudioCodec != "Atmos" {
		t.Errorf("audioCodec = %q, want %q", got.AudioCodec, "Atmos")
	}
	if got.AudioChannels != "5.1" {
		t.Errorf("audioChannels = %q, want %q", got.AudioChannels, "5.1")
	}
}

func TestParseTitleExtraction(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		wantTitle string
	}{
		{
			name:      "title before technical tokens",
			title:     "UFC.299.Main.Card.1080p.WEB-DL.H264-GRP",
			wantTitle: "UFC 299 Main Card",
		},
		{
			name:      "title before date",
			title:     "NBA.2024.03.09.Celtics.vs.Lakers.720p.HDTV",
			wantTitle: "NBA",
		},
		{
			name:      "date-led title uses segment after date",
			title:     "2024.03.09.UFC.299.1080p.WEB-DL",
			wantTitle: "UFC 299",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.title)
			if got.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", got.Title, tt.wantTitle)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"UFC.299:.O'Malley.vs.Vera", "ufc 299 o malley vs vera"},
		{"São.Paulo.GP", "sao paulo gp"},
		{"NFL  2024--Week 10", "nfl 2024 week 10"},
		{"Boxing: Fury vs. Usyk (Undisputed)", "boxing fury vs usyk undisputed"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSportPrefixFor(t *testing.T) {
	tests := []struct {
		league string
		want   string
	}{
		{"UFC", "UFC"},
		{"Formula 1", "Formula1"},
		{"National Football League", "NFL"},
		{"Curling", ""},
	}

	for _, tt := range tests {
		if got := SportPrefixFor(tt.league); got != tt.want {
			t.Errorf("SportPrefixFor(%q) = %q, want %q", tt.league, got, tt.want)
		}
	}
}

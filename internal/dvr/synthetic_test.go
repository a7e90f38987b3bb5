package dvr

import (
	"testing"
	"time"

	"github.com/sideline/sideline/internal/mediainfo"
	"github.com/sideline/sideline/internal/parser"
	"github.com/sideline/sideline/internal/store"
)

func TestBuildTitle(t *testing.T) {
	ev := store.Event{
		Title:     "St. Louis Blues vs Chicago Blackhawks",
		EventDate: time.Date(2026, 4, 4, 19, 0, 0, 0, time.UTC),
	}

	got := BuildTitle(ev, TitleSettings{
		Resolution: "720p",
		VideoCodec: "H264",
		AudioCodec: "AAC",
		Channels:   "2.0",
	})
	want := "St.Louis.Blues.vs.Chicago.Blackhawks.2026.720p.HDTV.H264.AAC.2.0-DVR"
	if got != want {
		t.Errorf("BuildTitle = %q, want %q", got, want)
	}
}

func TestBuildTitleParsesBack(t *testing.T) {
	ev := store.Event{
		Title:     "UFC 312: Jones vs Miocic",
		EventDate: time.Date(2026, 4, 4, 19, 0, 0, 0, time.UTC),
	}
	title := BuildTitle(ev, settingsFromProbe(nil))

	// A capture title must rank through the same parser as indexer releases.
	parsed := parser.Parse(title)
	if parsed.Quality.Source != parser.SourceHDTV {
		t.Errorf("Expected HDTV source, got %v", parsed.Quality.Source)
	}
	if parsed.Quality.Resolution != 720 {
		t.Errorf("Expected 720p, got %d", parsed.Quality.Resolution)
	}
}

func TestSettingsFromProbe(t *testing.T) {
	tests := []struct {
		name string
		info *mediainfo.MediaInfo
		want TitleSettings
	}{
		{
			name: "nil probe uses live capture defaults",
			info: nil,
			want: TitleSettings{Resolution: "720p", VideoCodec: "H264", AudioCodec: "AAC", Channels: "2.0"},
		},
		{
			name: "empty probe uses live capture defaults",
			info: &mediainfo.MediaInfo{},
			want: TitleSettings{Resolution: "720p", VideoCodec: "H264", AudioCodec: "AAC", Channels: "2.0"},
		},
		{
			name: "probed stream overrides",
			info: &mediainfo.MediaInfo{
				Width:         1920,
				Height:        1080,
				VideoCodec:    "hevc",
				AudioCodec:    "eac3",
				AudioChannels: "5.1",
			},
			want: TitleSettings{Resolution: "1080p", VideoCodec: "H265", AudioCodec: "eac3", Channels: "5.1"},
		},
		{
			name: "dotted codec loses the separator",
			info: &mediainfo.MediaInfo{VideoCodec: "H.264"},
			want: TitleSettings{Resolution: "720p", VideoCodec: "H264", AudioCodec: "AAC", Channels: "2.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := settingsFromProbe(tt.info); got != tt.want {
				t.Errorf("settingsFromProbe = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSceneify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"St. Louis Blues vs Chicago Blackhawks", "St.Louis.Blues.vs.Chicago.Blackhawks"},
		{"UFC 312: Jones vs Miocic", "UFC.312.Jones.vs.Miocic"},
		{"  padded  ", "padded"},
	}
	for _, tt := range tests {
		if got := sceneify(tt.input); got != tt.want {
			t.Errorf("sceneify(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

package epgmatch

import (
	"testing"
	"time"
)

var faceoff = time.Date(2026, 4, 4, 19, 0, 0, 0, time.UTC)

func hockeyEvent() Event {
	return Event{
		Title:    "St. Louis Blues vs Chicago Blackhawks",
		Sport:    "hockey",
		League:   "NHL",
		HomeTeam: "St. Louis Blues",
		AwayTeam: "Chicago Blackhawks",
		Date:     faceoff,
	}
}

func TestScoreGuideMatch(t *testing.T) {
	res := Score(hockeyEvent(), Program{
		Title:    "NHL Hockey",
		Subtitle: "St. Louis Blues vs. Chicago Blackhawks",
		Category: "Sports",
		Start:    faceoff,
		IsSports: true,
	})

	if !res.IsMatch {
		t.Fatalf("Expected match, got rejections %v", res.Rejections)
	}
	// 2 terms + both teams + sport keyword + exact start + sports flag.
	want := 60 + 40 + 20 + 30 + 10
	if res.Score != want {
		t.Errorf("Score = %d, want %d (reasons %v)", res.Score, want, res.Reasons)
	}
	if len(res.Reasons) == 0 {
		t.Error("Expected reasons for a match")
	}
}

func TestScoreRejections(t *testing.T) {
	tests := []struct {
		name    string
		program Program
	}{
		{
			name: "conflicting sport beats team names",
			program: Program{
				Title:    "NBA Basketball",
				Subtitle: "St. Louis Blues vs. Chicago Blackhawks",
				Start:    faceoff,
				IsSports: true,
			},
		},
		{
			name: "start too far from event",
			program: Program{
				Title:    "NHL Hockey",
				Subtitle: "St. Louis Blues vs. Chicago Blackhawks",
				Start:    faceoff.Add(2 * time.Hour),
				IsSports: true,
			},
		},
		{
			name: "no event terms in text",
			program: Program{
				Title:    "Poker After Dark",
				Start:    faceoff,
				IsSports: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Score(hockeyEvent(), tt.program)
			if res.IsMatch {
				t.Fatalf("Expected rejection, got match with score %d", res.Score)
			}
			if len(res.Rejections) == 0 {
				t.Error("Expected a rejection reason")
			}
		})
	}
}

func TestScoreBelowThreshold(t *testing.T) {
	// One team name, vague timing, nothing else. Scores but does not match.
	res := Score(hockeyEvent(), Program{
		Title: "Chicago Blackhawks Preview",
		Start: faceoff.Add(-45 * time.Minute),
	})

	if res.IsMatch {
		t.Fatalf("Expected no match, got score %d", res.Score)
	}
	if res.Score == 0 {
		t.Error("Expected partial score for one matched team")
	}
	if len(res.Rejections) != 0 {
		t.Errorf("Expected no rejections for a weak candidate, got %v", res.Rejections)
	}
}

func TestScoreFightCardByTitleTerms(t *testing.T) {
	ev := Event{
		Title:  "UFC 312: Jones vs Miocic",
		Sport:  "mma",
		League: "UFC",
		Date:   faceoff,
	}
	res := Score(ev, Program{
		Title:    "UFC 312",
		Subtitle: "Jones vs. Miocic",
		Category: "Sports",
		Start:    faceoff.Add(10 * time.Minute),
		IsSports: true,
	})

	if !res.IsMatch {
		t.Fatalf("Expected match, got rejections %v", res.Rejections)
	}
	// 4 title terms + mma keyword + start within 15m + sports flag.
	want := 120 + 20 + 20 + 10
	if res.Score != want {
		t.Errorf("Score = %d, want %d (reasons %v)", res.Score, want, res.Reasons)
	}
}

func TestScoreStartDriftTiers(t *testing.T) {
	tests := []struct {
		name  string
		drift time.Duration
		bonus int
	}{
		{"exact", 0, 30},
		{"within 15m", 12 * time.Minute, 20},
		{"within 30m", 25 * time.Minute, 10},
		{"within the hour", 50 * time.Minute, 0},
	}

	base := Score(hockeyEvent(), Program{
		Title:    "St. Louis Blues vs. Chicago Blackhawks",
		Start:    faceoff.Add(50 * time.Minute),
		IsSports: true,
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Score(hockeyEvent(), Program{
				Title:    "St. Louis Blues vs. Chicago Blackhawks",
				Start:    faceoff.Add(tt.drift),
				IsSports: true,
			})
			if got := res.Score - base.Score; got != tt.bonus {
				t.Errorf("Drift bonus = %d, want %d", got, tt.bonus)
			}
		})
	}
}

func TestFamilyFor(t *testing.T) {
	tests := []struct {
		league string
		sport  string
		want   string
	}{
		{"NHL", "hockey", "hockey"},
		{"Premier League", "", "soccer"},
		{"UFC", "mma", "mma"},
		{"", "Formula 1", "motorsport"},
		{"Obscure Regional Cup", "korfball", ""},
	}

	for _, tt := range tests {
		if got := FamilyFor(tt.league, tt.sport); got != tt.want {
			t.Errorf("FamilyFor(%q, %q) = %q, want %q", tt.league, tt.sport, got, tt.want)
		}
	}
}

package matcher

import (
	"testing"
	"time"

	"github.com/sideline/sideline/internal/parser"
)

func ufc299() Event {
	return Event{
		Title:       "UFC 299",
		League:      "UFC",
		Sport:       "mma",
		EventNumber: 299,
		Date:        time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC),
		KnownParts:  []string{"Early Prelims", "Prelims", "Main Card"},
	}
}

func celticsLakers() Event {
	return Event{
		Title:    "Boston Celtics vs Los Angeles Lakers",
		League:   "NBA",
		Sport:    "basketball",
		HomeTeam: "Boston Celtics",
		AwayTeam: "Los Angeles Lakers",
		Date:     time.Date(2024, 3, 9, 19, 30, 0, 0, time.UTC),
	}
}

func validate(t *testing.T, title string, event Event, part string) Result {
	t.Helper()
	return Validate(title, parser.Parse(title), event, part)
}

func TestValidateNumberedEvent(t *testing.T) {
	res := validate(t, "UFC.299.Main.Card.1080p.WEB-DL.H264-GRP", ufc299(), "Main Card")

	if !res.IsMatch {
		t.Fatalf("expected match, got rejections %v", res.Rejections)
	}
	if res.HardReject {
		t.Error("unexpected hard reject")
	}
	if res.Confidence < 90 {
		t.Errorf("confidence = %d, want >= 90", res.Confidence)
	}
}

func TestValidateConflictingEventNumber(t *testing.T) {
	event := ufc299()
	event.EventNumber = 300
	event.Title = "UFC 300"

	res := validate(t, "UFC.299.Main.Card.1080p.WEB-DL.H264-GRP", event, "")

	if !res.HardReject {
		t.Fatal("expected hard reject for conflicting event number")
	}
	if res.IsMatch {
		t.Error("hard-rejected release must not match")
	}
}

func TestValidateMissingEventNumber(t *testing.T) {
	res := validate(t, "UFC.Fight.Pass.Special.1080p.WEB-DL", ufc299(), "")

	if res.HardReject {
		t.Error("absent number should penalize, not hard reject")
	}
	if res.IsMatch {
		t.Errorf("confidence = %d, expected below threshold", res.Confidence)
	}
}

func TestValidatePartRequestedButMissing(t *testing.T) {
	res := validate(t, "UFC.299.1080p.WEB-DL.H264-GRP", ufc299(), "Main Card")

	if !res.HardReject {
		t.Fatal("expected hard reject when part is requested but undetectable")
	}
	if res.IsMatch {
		t.Error("hard-rejected release must not match")
	}
}

func TestValidateWrongPart(t *testing.T) {
	res := validate(t, "UFC.299.Prelims.1080p.WEB-DL.H264-GRP", ufc299(), "Main Card")

	if !res.HardReject {
		t.Fatal("expected hard reject for wrong part")
	}
	for _, r := range res.Rejections {
		t.Logf("rejection: %s", r)
	}
}

func TestValidatePartLongestWins(t *testing.T) {
	res := validate(t, "UFC.299.Early.Prelims.1080p.WEB-DL.H264-GRP", ufc299(), "Prelims")
	if !res.HardReject {
		t.Fatal("Early Prelims release must not satisfy a Prelims request")
	}

	res = validate(t, "UFC.299.Early.Prelims.1080p.WEB-DL.H264-GRP", ufc299(), "Early Prelims")
	if res.HardReject {
		t.Fatal("Early Prelims release should satisfy an Early Prelims request")
	}
}

func TestValidateTeamSport(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		wantMatch bool
	}{
		{
			name:      "both teams by nickname",
			title:     "NBA.2024.03.09.Celtics.vs.Lakers.720p.HDTV.x264-GRP",
			wantMatch: true,
		},
		{
			name:      "full team names",
			title:     "NBA.2024.03.09.Boston.Celtics.vs.Los.Angeles.Lakers.1080p.WEB.h264",
			wantMatch: true,
		},
		{
			name:      "neither team",
			title:     "NBA.2024.03.09.Bucks.vs.Heat.720p.HDTV.x264",
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate(t, tt.title, celticsLakers(), "")
			if res.IsMatch != tt.wantMatch {
				t.Errorf("IsMatch = %v (confidence %d), want %v", res.IsMatch, res.Confidence, tt.wantMatch)
			}
		})
	}
}

func TestValidateDateProximity(t *testing.T) {
	event := celticsLakers()

	near := validate(t, "NBA.2024.03.10.Celtics.vs.Lakers.720p.HDTV.x264", event, "")
	far := validate(t, "NBA.2024.01.15.Celtics.vs.Lakers.720p.HDTV.x264", event, "")

	if near.Confidence <= far.Confidence {
		t.Errorf("nearby date should outrank distant date: %d <= %d", near.Confidence, far.Confidence)
	}
	if !near.IsMatch {
		t.Error("same-week release should match")
	}
}

func TestValidateYearOnlyDate(t *testing.T) {
	event := ufc299()

	sameYear := validate(t, "UFC.299.2024.1080p.WEB-DL", event, "")
	wrongYear := validate(t, "UFC.299.2023.1080p.WEB-DL", event, "")

	if sameYear.Confidence <= wrongYear.Confidence {
		t.Errorf("matching year should outrank wrong year: %d <= %d", sameYear.Confidence, wrongYear.Confidence)
	}
}

func TestValidateConfidenceBounds(t *testing.T) {
	res := validate(t, "UFC.299.Main.Card.2024.03.09.1080p.WEB-DL.H264-GRP", ufc299(), "Main Card")
	if res.Confidence > 100 {
		t.Errorf("confidence = %d, must be clamped to 100", res.Confidence)
	}

	event := ufc299()
	event.EventNumber = 300
	res = validate(t, "UFC.299.Prelims.1080p.CAM", event, "Main Card")
	if res.Confidence < 0 {
		t.Errorf("confidence = %d, must be clamped to 0", res.Confidence)
	}
}

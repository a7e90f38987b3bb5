package event

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sideline/sideline/internal/history"
	"github.com/sideline/sideline/internal/store"
	"github.com/sideline/sideline/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *testutil.TestDB) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)
	hist := history.NewService(tdb.Conn, testutil.NopLogger())
	return NewService(tdb.Conn, nil, hist, testutil.NopLogger()), tdb
}

func TestCreateEvent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ev, err := svc.Create(ctx, CreateEventInput{
		Title:       "UFC 312: Jones vs Aspinall",
		Sport:       "mma",
		League:      "UFC",
		EventNumber: 312,
		Venue:       "T-Mobile Arena",
		EventDate:   "2026-04-11T22:00:00Z",
		Monitored:   true,
		Parts:       []string{"Early Prelims", "Prelims", "Main Card"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ev.ID == 0 {
		t.Fatal("Create() returned zero ID")
	}
	if ev.EventNumber != 312 {
		t.Errorf("EventNumber = %d, want 312", ev.EventNumber)
	}
	if len(ev.Parts) != 3 {
		t.Fatalf("Parts length = %d, want 3", len(ev.Parts))
	}
	if ev.Parts[2].Name != "Main Card" || ev.Parts[2].Position != 2 {
		t.Errorf("Parts[2] = %+v", ev.Parts[2])
	}
	if !ev.Parts[0].Monitored {
		t.Error("parts should default to monitored")
	}
	if ev.Status != StatusMissing {
		t.Errorf("Status = %q, want %q", ev.Status, StatusMissing)
	}
	if ev.HasFile {
		t.Error("HasFile = true for new event")
	}
}

func TestCreateEventValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateEventInput
	}{
		{"missing title", CreateEventInput{Sport: "mma", EventDate: "2026-04-11"}},
		{"missing sport", CreateEventInput{Title: "UFC 312", EventDate: "2026-04-11"}},
		{"bad date", CreateEventInput{Title: "UFC 312", Sport: "mma", EventDate: "next saturday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.input); !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("Create() error = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestCreateEventDuplicateExternalID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	input := CreateEventInput{
		Title:      "NBA Finals Game 1",
		Sport:      "basketball",
		EventDate:  "2026-06-04",
		ExternalID: "thesportsdb:602188",
	}
	if _, err := svc.Create(ctx, input); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Create(ctx, input); !errors.Is(err, ErrDuplicateExternal) {
		t.Errorf("Create() duplicate error = %v, want ErrDuplicateExternal", err)
	}
}

func TestUpdateEventPartial(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ev, err := svc.Create(ctx, CreateEventInput{
		Title:     "The Masters Final Round",
		Sport:     "golf",
		League:    "PGA",
		EventDate: "2026-04-12",
		Monitored: true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ev.SortTitle != "Masters Final Round" {
		t.Errorf("SortTitle = %q, article should be stripped", ev.SortTitle)
	}

	venue := "Augusta National"
	monitored := false
	updated, err := svc.Update(ctx, ev.ID, UpdateEventInput{
		Venue:     &venue,
		Monitored: &monitored,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Venue != "Augusta National" {
		t.Errorf("Venue = %q", updated.Venue)
	}
	if updated.Monitored {
		t.Error("Monitored = true, want false")
	}
	// Untouched fields survive.
	if updated.Title != "The Masters Final Round" {
		t.Errorf("Title changed to %q", updated.Title)
	}
	if updated.League != "PGA" {
		t.Errorf("League changed to %q", updated.League)
	}

	if _, err := svc.Update(ctx, 9999, UpdateEventInput{Venue: &venue}); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("Update() missing id error = %v, want ErrEventNotFound", err)
	}
}

func TestSetMonitored(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ev, err := svc.Create(ctx, CreateEventInput{
		Title: "F1 Monaco Grand Prix", Sport: "motorsport", EventDate: "2026-05-24", Monitored: false,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.SetMonitored(ctx, ev.ID, true); err != nil {
		t.Fatalf("SetMonitored() error = %v", err)
	}
	got, _ := svc.Get(ctx, ev.ID)
	if !got.Monitored {
		t.Error("Monitored = false after SetMonitored(true)")
	}

	if err := svc.SetMonitored(ctx, 9999, true); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("SetMonitored() missing id error = %v, want ErrEventNotFound", err)
	}
}

func TestListFilters(t *testing.T) {
	svc, tdb := newTestService(t)
	ctx := context.Background()

	monitoredEv, err := svc.Create(ctx, CreateEventInput{
		Title: "NFL Week 1", Sport: "football", EventDate: "2026-09-13", Monitored: true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Create(ctx, CreateEventInput{
		Title: "NFL Week 2", Sport: "football", EventDate: "2026-09-20", Monitored: false,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	all, err := svc.List(ctx, ListEventsOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List() returned %d events, want 2", len(all))
	}

	monitored := true
	got, err := svc.List(ctx, ListEventsOptions{Monitored: &monitored})
	if err != nil {
		t.Fatalf("List(monitored) error = %v", err)
	}
	if len(got) != 1 || got[0].ID != monitoredEv.ID {
		t.Fatalf("List(monitored) = %d events", len(got))
	}

	// Attach a file to the monitored event; Missing filter should hide it.
	if _, err := tdb.Queries.CreateEventFile(ctx, store.CreateEventFileParams{
		EventID: monitoredEv.ID,
		Path:    "/library/NFL/week1.mkv",
		Size:    1234,
		Quality: "WEB-DL-1080p",
		Source:  "download",
	}); err != nil {
		t.Fatalf("CreateEventFile() error = %v", err)
	}

	missing, err := svc.List(ctx, ListEventsOptions{Missing: true})
	if err != nil {
		t.Fatalf("List(missing) error = %v", err)
	}
	for _, ev := range missing {
		if ev.ID == monitoredEv.ID {
			t.Error("Missing filter returned an event that has a file")
		}
	}
}

func TestEventStatus(t *testing.T) {
	svc, tdb := newTestService(t)
	ctx := context.Background()

	ev, err := svc.Create(ctx, CreateEventInput{
		Title: "Premier League: Arsenal vs Spurs", Sport: "soccer", EventDate: "2026-03-07", Monitored: true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := tdb.Queries.CreateEventFile(ctx, store.CreateEventFileParams{
		EventID: ev.ID,
		Path:    "/library/EPL/arsenal-spurs.mkv",
		Size:    9000,
		Quality: "HDTV-1080p",
		Source:  "IPTV",
	}); err != nil {
		t.Fatalf("CreateEventFile() error = %v", err)
	}

	got, err := svc.Get(ctx, ev.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusRecorded {
		t.Errorf("Status = %q, want %q for IPTV-only file", got.Status, StatusRecorded)
	}
	if !got.HasFile {
		t.Error("HasFile = false with file attached")
	}
	if got.SizeOnDisk != 9000 {
		t.Errorf("SizeOnDisk = %d, want 9000", got.SizeOnDisk)
	}

	if _, err := tdb.Queries.CreateEventFile(ctx, store.CreateEventFileParams{
		EventID: ev.ID,
		Path:    "/library/EPL/arsenal-spurs-web.mkv",
		Size:    15000,
		Quality: "WEB-DL-1080p",
		Source:  "download",
	}); err != nil {
		t.Fatalf("CreateEventFile() error = %v", err)
	}
	got, _ = svc.Get(ctx, ev.ID)
	if got.Status != StatusDownloaded {
		t.Errorf("Status = %q, want %q once a downloaded file exists", got.Status, StatusDownloaded)
	}
}

func TestParts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ev, err := svc.Create(ctx, CreateEventInput{
		Title: "UFC Fight Night", Sport: "mma", EventDate: "2026-02-21", Monitored: true,
		Parts: []string{"Prelims"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	part, err := svc.AddPart(ctx, ev.ID, "Main Card")
	if err != nil {
		t.Fatalf("AddPart() error = %v", err)
	}
	if part.Position != 1 {
		t.Errorf("Position = %d, want 1", part.Position)
	}

	if _, err := svc.AddPart(ctx, ev.ID, ""); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("AddPart() empty name error = %v, want ErrInvalidEvent", err)
	}
	if _, err := svc.AddPart(ctx, 9999, "Main Card"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("AddPart() missing event error = %v, want ErrEventNotFound", err)
	}

	if err := svc.SetPartMonitored(ctx, part.ID, false); err != nil {
		t.Fatalf("SetPartMonitored() error = %v", err)
	}
	got, _ := svc.Get(ctx, ev.ID)
	for _, p := range got.Parts {
		if p.ID == part.ID && p.Monitored {
			t.Error("part still monitored after SetPartMonitored(false)")
		}
	}

	if err := svc.RemovePart(ctx, part.ID); err != nil {
		t.Fatalf("RemovePart() error = %v", err)
	}
	if err := svc.RemovePart(ctx, part.ID); !errors.Is(err, ErrPartNotFound) {
		t.Errorf("RemovePart() missing id error = %v, want ErrPartNotFound", err)
	}
}

func TestDeleteEventWithFiles(t *testing.T) {
	svc, tdb := newTestService(t)
	ctx := context.Background()
	dir := t.TempDir()

	ev, err := svc.Create(ctx, CreateEventInput{
		Title: "Wimbledon Final", Sport: "tennis", EventDate: "2026-07-12", Monitored: true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	mediaPath := filepath.Join(dir, "final.mkv")
	if err := os.WriteFile(mediaPath, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := tdb.Queries.CreateEventFile(ctx, store.CreateEventFileParams{
		EventID: ev.ID, Path: mediaPath, Size: 5, Quality: "HDTV-1080p", Source: "download",
	}); err != nil {
		t.Fatalf("CreateEventFile() error = %v", err)
	}

	if err := svc.Delete(ctx, ev.ID, true); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(mediaPath); !os.IsNotExist(err) {
		t.Error("file on disk survived Delete(deleteFiles=true)")
	}
	if _, err := svc.Get(ctx, ev.ID); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrEventNotFound", err)
	}

	if err := svc.Delete(ctx, 9999, false); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("Delete() missing id error = %v, want ErrEventNotFound", err)
	}
}

func TestDeleteFile(t *testing.T) {
	svc, tdb := newTestService(t)
	ctx := context.Background()
	dir := t.TempDir()

	ev, err := svc.Create(ctx, CreateEventInput{
		Title: "World Series Game 7", Sport: "baseball", EventDate: "2026-11-01", Monitored: true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	keepPath := filepath.Join(dir, "keep.mkv")
	if err := os.WriteFile(keepPath, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	file, err := tdb.Queries.CreateEventFile(ctx, store.CreateEventFileParams{
		EventID: ev.ID, Path: keepPath, Size: 5, Quality: "WEB-DL-720p", Source: "download",
	})
	if err != nil {
		t.Fatalf("CreateEventFile() error = %v", err)
	}

	// Row-only delete leaves the file on disk.
	if err := svc.DeleteFile(ctx, ev.ID, file.ID, false); err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}
	if _, err := os.Stat(keepPath); err != nil {
		t.Errorf("file should survive row-only delete: %v", err)
	}

	files, _ := svc.ListFiles(ctx, ev.ID)
	if len(files) != 0 {
		t.Errorf("ListFiles() returned %d files after delete", len(files))
	}

	if err := svc.DeleteFile(ctx, ev.ID, file.ID, false); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("DeleteFile() missing id error = %v, want ErrFileNotFound", err)
	}
}

package history

import (
	"context"
	"testing"

	"github.com/sideline/sideline/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *testutil.TestDB) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)
	return NewService(tdb.Conn, testutil.NopLogger()), tdb
}

func TestRecordAndList(t *testing.T) {
	svc, tdb := newTestService(t)
	ctx := context.Background()
	event := testutil.SeedEvent(t, tdb, "UFC 300")

	svc.RecordGrab(ctx, event.ID, "UFC.300.1080p.WEB.h264-GRP", GrabData{
		Indexer:        "sportznab",
		Protocol:       "torrent",
		DownloadClient: "qbit",
		DownloadID:     "abc123",
		Quality:        "WEBDL-1080p",
	})
	svc.RecordImport(ctx, event.ID, "UFC.300.1080p.WEB.h264-GRP", ImportData{
		SourcePath:      "/downloads/UFC.300.1080p.WEB.h264-GRP.mkv",
		DestinationPath: "/library/UFC/UFC 300/UFC - UFC 300 (2026-03-14).mkv",
	})

	result, err := svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("List() returned %d items, want 2", len(result.Items))
	}
	if result.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", result.TotalCount)
	}

	// Newest first: the import landed after the grab.
	first := result.Items[0]
	if first.EventType != EventTypeImported {
		t.Errorf("first entry type = %q, want %q", first.EventType, EventTypeImported)
	}
	if first.EventID != event.ID {
		t.Errorf("EventID = %d, want %d", first.EventID, event.ID)
	}
	if first.EventTitle != "UFC 300" {
		t.Errorf("EventTitle = %q, want UFC 300", first.EventTitle)
	}
	if first.Data["destinationPath"] != "/library/UFC/UFC 300/UFC - UFC 300 (2026-03-14).mkv" {
		t.Errorf("Data destinationPath = %v", first.Data["destinationPath"])
	}

	grab := result.Items[1]
	if grab.EventType != EventTypeGrabbed {
		t.Errorf("second entry type = %q, want %q", grab.EventType, EventTypeGrabbed)
	}
	if grab.Data["indexer"] != "sportznab" {
		t.Errorf("Data indexer = %v, want sportznab", grab.Data["indexer"])
	}
}

func TestListFiltersByType(t *testing.T) {
	svc, tdb := newTestService(t)
	ctx := context.Background()
	event := testutil.SeedEvent(t, tdb, "UFC 301")

	svc.RecordGrab(ctx, event.ID, "release-a", GrabData{})
	svc.RecordGrab(ctx, event.ID, "release-b", GrabData{})
	svc.RecordDownloadFailed(ctx, event.ID, "release-a", DownloadFailedData{Reason: "stalled"})

	result, err := svc.List(ctx, ListOptions{EventType: string(EventTypeDownloadFailed)})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("filtered List() returned %d items, want 1", len(result.Items))
	}
	if result.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", result.TotalCount)
	}
	if result.Items[0].SourceTitle != "release-a" {
		t.Errorf("SourceTitle = %q, want release-a", result.Items[0].SourceTitle)
	}
}

func TestListPagination(t *testing.T) {
	svc, tdb := newTestService(t)
	ctx := context.Background()
	event := testutil.SeedEvent(t, tdb, "UFC 302")

	for i := 0; i < 5; i++ {
		svc.RecordGrab(ctx, event.ID, "release", GrabData{})
	}

	result, err := svc.List(ctx, ListOptions{Page: 3, PageSize: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(result.Items) != 1 {
		t.Errorf("page 3 returned %d items, want 1", len(result.Items))
	}
	if result.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", result.TotalPages)
	}
	if result.TotalCount != 5 {
		t.Errorf("TotalCount = %d, want 5", result.TotalCount)
	}
}

func TestListForEvent(t *testing.T) {
	svc, tdb := newTestService(t)
	ctx := context.Background()
	ufc := testutil.SeedEvent(t, tdb, "UFC 303")
	f1 := testutil.SeedEvent(t, tdb, "Monaco Grand Prix")

	svc.RecordGrab(ctx, ufc.ID, "ufc-release", GrabData{})
	svc.RecordGrab(ctx, f1.ID, "f1-release", GrabData{})

	entries, err := svc.ListForEvent(ctx, ufc.ID)
	if err != nil {
		t.Fatalf("ListForEvent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ListForEvent() returned %d entries, want 1", len(entries))
	}
	if entries[0].SourceTitle != "ufc-release" {
		t.Errorf("SourceTitle = %q, want ufc-release", entries[0].SourceTitle)
	}
}

func TestClear(t *testing.T) {
	svc, tdb := newTestService(t)
	ctx := context.Background()
	event := testutil.SeedEvent(t, tdb, "UFC 304")

	svc.RecordGrab(ctx, event.ID, "release", GrabData{})
	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	result, err := svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.TotalCount != 0 {
		t.Errorf("TotalCount after clear = %d, want 0", result.TotalCount)
	}
}

func TestRetentionSettings(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	settings, err := svc.GetRetentionSettings(ctx)
	if err != nil {
		t.Fatalf("GetRetentionSettings() error = %v", err)
	}
	if !settings.Enabled || settings.RetentionDays != 365 {
		t.Errorf("default settings = %+v, want enabled with 365 days", settings)
	}

	if err := svc.SaveRetentionSettings(ctx, RetentionSettings{Enabled: false, RetentionDays: 30}); err != nil {
		t.Fatalf("SaveRetentionSettings() error = %v", err)
	}
	settings, err = svc.GetRetentionSettings(ctx)
	if err != nil {
		t.Fatalf("GetRetentionSettings() after save error = %v", err)
	}
	if settings.Enabled || settings.RetentionDays != 30 {
		t.Errorf("saved settings = %+v, want disabled with 30 days", settings)
	}
}

func TestCleanupOldEntries(t *testing.T) {
	svc, tdb := newTestService(t)
	ctx := context.Background()
	event := testutil.SeedEvent(t, tdb, "UFC 305")

	svc.RecordGrab(ctx, event.ID, "old-release", GrabData{})
	svc.RecordGrab(ctx, event.ID, "fresh-release", GrabData{})

	// Age the first entry past the retention window.
	_, err := tdb.Conn.Exec(
		`UPDATE history SET created_at = datetime('now', '-400 days') WHERE source_title = 'old-release'`)
	if err != nil {
		t.Fatalf("failed to backdate entry: %v", err)
	}

	if err := svc.CleanupOldEntries(ctx); err != nil {
		t.Fatalf("CleanupOldEntries() error = %v", err)
	}

	result, err := svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.TotalCount != 1 {
		t.Fatalf("TotalCount after cleanup = %d, want 1", result.TotalCount)
	}
	if result.Items[0].SourceTitle != "fresh-release" {
		t.Errorf("surviving entry = %q, want fresh-release", result.Items[0].SourceTitle)
	}

	// A disabled sweep deletes nothing.
	if err := svc.SaveRetentionSettings(ctx, RetentionSettings{Enabled: false, RetentionDays: 1}); err != nil {
		t.Fatalf("SaveRetentionSettings() error = %v", err)
	}
	if err := svc.CleanupOldEntries(ctx); err != nil {
		t.Fatalf("CleanupOldEntries() error = %v", err)
	}
	result, err = svc.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.TotalCount != 1 {
		t.Errorf("TotalCount after disabled cleanup = %d, want 1", result.TotalCount)
	}
}

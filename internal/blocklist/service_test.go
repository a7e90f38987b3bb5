package blocklist

import (
	"context"
	"testing"

	"github.com/sideline/sideline/internal/history"
	"github.com/sideline/sideline/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *testutil.TestDB) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)
	historySvc := history.NewService(tdb.Conn, testutil.NopLogger())
	return NewService(tdb.Conn, historySvc, testutil.NopLogger()), tdb
}

func TestAddIsIdempotentByHash(t *testing.T) {
	svc, tdb := newTestService(t)
	ctx := context.Background()
	event := testutil.SeedEvent(t, tdb, "UFC 300")

	input := BlockInput{
		EventID:     event.ID,
		Title:       "UFC.300.1080p.WEB.h264-GRP",
		InfoHash:    "c12fe1c06bba254a9dc9f519b335aa7c1367a88a",
		IndexerName: "sportznab",
		Protocol:    "torrent",
		Reason:      "Download failed",
	}

	created, err := svc.Add(ctx, input)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !created {
		t.Fatal("first Add() created = false, want true")
	}

	// Same hash under a different title is still the same release.
	input.Title = "ufc 300 1080p web h264 grp"
	created, err = svc.Add(ctx, input)
	if err != nil {
		t.Fatalf("second Add() error = %v", err)
	}
	if created {
		t.Error("second Add() created = true, want false")
	}

	entries, err := svc.ListForEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("ListForEvent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("ListForEvent() returned %d entries, want 1", len(entries))
	}
}

func TestAddIsIdempotentByTitleWithoutHash(t *testing.T) {
	svc, tdb := newTestService(t)
	ctx := context.Background()
	event := testutil.SeedEvent(t, tdb, "UFC 301")

	input := BlockInput{
		EventID:     event.ID,
		Title:       "UFC.301.720p.HDTV.x264-GRP",
		IndexerName: "nzbplanet",
		Protocol:    "usenet",
		Reason:      "Download failed",
	}

	if created, err := svc.Add(ctx, input); err != nil || !created {
		t.Fatalf("first Add() = (%v, %v), want (true, nil)", created, err)
	}
	if created, err := svc.Add(ctx, input); err != nil || created {
		t.Fatalf("second Add() = (%v, %v), want (false, nil)", created, err)
	}

	// The same title from a different indexer is a distinct entry.
	input.IndexerName = "othernzb"
	if created, err := svc.Add(ctx, input); err != nil || !created {
		t.Fatalf("Add() from other indexer = (%v, %v), want (true, nil)", created, err)
	}
}

func TestIsBlocked(t *testing.T) {
	svc, tdb := newTestService(t)
	ctx := context.Background()
	event := testutil.SeedEvent(t, tdb, "UFC 302")

	_, err := svc.Add(ctx, BlockInput{
		EventID:     event.ID,
		Title:       "UFC.302.1080p.WEB.h264-GRP",
		InfoHash:    "aaaa1111bbbb2222cccc3333dddd4444eeee5555",
		IndexerName: "sportznab",
		Protocol:    "torrent",
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	blocked, err := svc.IsBlocked(ctx, event.ID, "aaaa1111bbbb2222cccc3333dddd4444eeee5555", "", "")
	if err != nil {
		t.Fatalf("IsBlocked() error = %v", err)
	}
	if !blocked {
		t.Error("IsBlocked() by hash = false, want true")
	}

	// Same hash reported by a different indexer under a new name.
	blocked, err = svc.IsBlocked(ctx, event.ID, "aaaa1111bbbb2222cccc3333dddd4444eeee5555", "other", "renamed")
	if err != nil {
		t.Fatalf("IsBlocked() error = %v", err)
	}
	if !blocked {
		t.Error("IsBlocked() by hash with other metadata = false, want true")
	}

	blocked, err = svc.IsBlocked(ctx, event.ID, "", "sportznab", "UFC.302.1080p.WEB.h264-GRP")
	if err != nil {
		t.Fatalf("IsBlocked() error = %v", err)
	}
	if !blocked {
		t.Error("IsBlocked() by title = false, want true")
	}

	blocked, err = svc.IsBlocked(ctx, event.ID, "ffff0000ffff0000ffff0000ffff0000ffff0000", "sportznab", "unrelated")
	if err != nil {
		t.Fatalf("IsBlocked() error = %v", err)
	}
	if blocked {
		t.Error("IsBlocked() for unknown release = true, want false")
	}

	// Blocks are scoped to the event.
	other := testutil.SeedEvent(t, tdb, "UFC 303")
	blocked, err = svc.IsBlocked(ctx, other.ID, "aaaa1111bbbb2222cccc3333dddd4444eeee5555", "", "")
	if err != nil {
		t.Fatalf("IsBlocked() error = %v", err)
	}
	if blocked {
		t.Error("IsBlocked() on other event = true, want false")
	}
}

func TestAddRecordsHistory(t *testing.T) {
	svc, tdb := newTestService(t)
	ctx := context.Background()
	event := testutil.SeedEvent(t, tdb, "UFC 304")

	_, err := svc.Add(ctx, BlockInput{
		EventID:  event.ID,
		Title:    "UFC.304.1080p.WEB.h264-GRP",
		InfoHash: "1234123412341234123412341234123412341234",
		Reason:   "Download failed",
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	historySvc := history.NewService(tdb.Conn, testutil.NopLogger())
	entries, err := historySvc.ListForEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("ListForEvent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history has %d entries, want 1", len(entries))
	}
	if entries[0].EventType != history.EventTypeBlocklisted {
		t.Errorf("history type = %q, want %q", entries[0].EventType, history.EventTypeBlocklisted)
	}
}

func TestDeleteAndClear(t *testing.T) {
	svc, tdb := newTestService(t)
	ctx := context.Background()
	event := testutil.SeedEvent(t, tdb, "UFC 305")

	_, err := svc.Add(ctx, BlockInput{EventID: event.ID, Title: "release-a", InfoHash: "a000000000000000000000000000000000000000"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	_, err = svc.Add(ctx, BlockInput{EventID: event.ID, Title: "release-b", InfoHash: "b000000000000000000000000000000000000000"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	entries, err := svc.ListForEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("ListForEvent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListForEvent() returned %d entries, want 2", len(entries))
	}

	if err := svc.Delete(ctx, entries[0].ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	entries, err = svc.ListForEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("ListForEvent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("after delete, %d entries remain, want 1", len(entries))
	}

	if err := svc.ClearForEvent(ctx, event.ID); err != nil {
		t.Fatalf("ClearForEvent() error = %v", err)
	}
	entries, err = svc.ListForEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("ListForEvent() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("after clear, %d entries remain, want 0", len(entries))
	}
}

package dvr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sideline/sideline/internal/store"
	"github.com/sideline/sideline/internal/testutil"
)

func seedRecording(t *testing.T, tdb *testutil.TestDB, eventID, channelID int64, status string, start, end time.Time) store.Recording {
	t.Helper()
	rec, err := tdb.Queries.CreateRecording(context.Background(), store.CreateRecordingParams{
		EventID:        eventID,
		ChannelID:      channelID,
		Title:          "Blues vs Blackhawks",
		JobID:          "job-" + status,
		ScheduledStart: start,
		ScheduledEnd:   end,
		Status:         status,
	})
	if err != nil {
		t.Fatalf("Failed to seed recording: %v", err)
	}
	return rec
}

func TestCancelRecording(t *testing.T) {
	service, tdb := newTestService(t)
	ctx := context.Background()

	ev := testutil.SeedEvent(t, tdb, "Blues vs Blackhawks")
	ch := seedChannel(t, tdb, "ESPN", "", 50)
	start := time.Now().Add(time.Hour)
	rec := seedRecording(t, tdb, ev.ID, ch.ID, StatusScheduled, start, start.Add(3*time.Hour))

	view, err := service.CancelRecording(ctx, rec.ID)
	if err != nil {
		t.Fatalf("CancelRecording failed: %v", err)
	}
	if view.Status != StatusCancelled {
		t.Errorf("Expected status %q, got %q", StatusCancelled, view.Status)
	}

	// Already cancelled.
	if _, err := service.CancelRecording(ctx, rec.ID); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("Expected ErrNotCancellable, got %v", err)
	}
	if _, err := service.CancelRecording(ctx, 9999); !errors.Is(err, ErrRecordingNotFound) {
		t.Errorf("Expected ErrRecordingNotFound, got %v", err)
	}
}

func TestRetryRecordingRearms(t *testing.T) {
	service, tdb := newTestService(t)
	ctx := context.Background()

	ev := testutil.SeedEvent(t, tdb, "Blues vs Blackhawks")
	ch := seedChannel(t, tdb, "ESPN", "", 50)

	// Failed but the window is still open: rearm.
	open := seedRecording(t, tdb, ev.ID, ch.ID, StatusScheduled, time.Now().Add(-30*time.Minute), time.Now().Add(2*time.Hour))
	if err := tdb.Queries.UpdateRecordingStatus(ctx, open.ID, StatusFailed, "capture failed: stream reset"); err != nil {
		t.Fatalf("Failed to mark recording failed: %v", err)
	}
	view, err := service.RetryRecording(ctx, open.ID)
	if err != nil {
		t.Fatalf("RetryRecording failed: %v", err)
	}
	if view.Status != StatusScheduled {
		t.Errorf("Expected rearmed recording scheduled, got %q", view.Status)
	}
	if view.ErrorMessage != "" {
		t.Errorf("Expected error message cleared, got %q", view.ErrorMessage)
	}

	// Failed with the window gone and no capture on disk: nothing to retry.
	closed := seedRecording(t, tdb, ev.ID, ch.ID, StatusScheduled, time.Now().Add(-4*time.Hour), time.Now().Add(-time.Hour))
	if err := tdb.Queries.UpdateRecordingStatus(ctx, closed.ID, StatusFailed, "recording window passed"); err != nil {
		t.Fatalf("Failed to mark recording failed: %v", err)
	}
	if _, err := service.RetryRecording(ctx, closed.ID); !errors.Is(err, ErrNotRetryable) {
		t.Errorf("Expected ErrNotRetryable, got %v", err)
	}

	// Only failed recordings are retryable.
	if _, err := service.RetryRecording(ctx, open.ID); !errors.Is(err, ErrNotRetryable) {
		t.Errorf("Expected ErrNotRetryable for scheduled recording, got %v", err)
	}
	if _, err := service.RetryRecording(ctx, 9999); !errors.Is(err, ErrRecordingNotFound) {
		t.Errorf("Expected ErrRecordingNotFound, got %v", err)
	}
}

func TestDeleteRecordingRemovesCapture(t *testing.T) {
	service, tdb := newTestService(t)
	ctx := context.Background()

	ev := testutil.SeedEvent(t, tdb, "Blues vs Blackhawks")
	ch := seedChannel(t, tdb, "ESPN", "", 50)

	capture := filepath.Join(t.TempDir(), "capture.ts")
	if err := os.WriteFile(capture, []byte("ts data"), 0o644); err != nil {
		t.Fatalf("Failed to write capture file: %v", err)
	}
	rec := seedRecording(t, tdb, ev.ID, ch.ID, StatusScheduled, time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
	if err := tdb.Queries.UpdateRecordingStarted(ctx, rec.ID, time.Now().Add(-2*time.Hour), capture); err != nil {
		t.Fatalf("Failed to attach output path: %v", err)
	}
	if err := tdb.Queries.UpdateRecordingStatus(ctx, rec.ID, StatusFailed, "stalled"); err != nil {
		t.Fatalf("Failed to mark recording failed: %v", err)
	}

	if err := service.DeleteRecording(ctx, rec.ID); err != nil {
		t.Fatalf("DeleteRecording failed: %v", err)
	}
	if _, err := os.Stat(capture); !os.IsNotExist(err) {
		t.Error("Expected capture file removed with the recording")
	}
	if _, err := service.GetRecordingView(ctx, rec.ID); !errors.Is(err, ErrRecordingNotFound) {
		t.Errorf("Expected ErrRecordingNotFound after delete, got %v", err)
	}
}

func TestDeleteRecordingWhileRunning(t *testing.T) {
	service, tdb := newTestService(t)
	ctx := context.Background()

	ev := testutil.SeedEvent(t, tdb, "Blues vs Blackhawks")
	ch := seedChannel(t, tdb, "ESPN", "", 50)
	rec := seedRecording(t, tdb, ev.ID, ch.ID, StatusRecording, time.Now().Add(-time.Hour), time.Now().Add(2*time.Hour))

	if err := service.DeleteRecording(ctx, rec.ID); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("Expected ErrNotCancellable for running recording, got %v", err)
	}
}

func TestListRecordingsResolvesChannelNames(t *testing.T) {
	service, tdb := newTestService(t)
	ctx := context.Background()

	ev := testutil.SeedEvent(t, tdb, "Blues vs Blackhawks")
	ch := seedChannel(t, tdb, "Sky Sports Main Event", "", 50)
	start := time.Now().Add(time.Hour)
	rec := seedRecording(t, tdb, ev.ID, ch.ID, StatusScheduled, start, start.Add(3*time.Hour))

	views, err := service.ListRecordings(ctx)
	if err != nil {
		t.Fatalf("ListRecordings failed: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("Expected 1 recording, got %d", len(views))
	}
	if views[0].ID != rec.ID {
		t.Errorf("Expected recording %d, got %d", rec.ID, views[0].ID)
	}
	if views[0].ChannelName != "Sky Sports Main Event" {
		t.Errorf("Expected channel name resolved, got %q", views[0].ChannelName)
	}
	if views[0].EventID != ev.ID {
		t.Errorf("Expected event %d, got %d", ev.ID, views[0].EventID)
	}
}

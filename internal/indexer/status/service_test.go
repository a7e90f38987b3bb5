package status

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/sideline/sideline/internal/indexer/types"
	"github.com/sideline/sideline/internal/store"
	"github.com/sideline/sideline/internal/testutil"
)

func TestBackoffLadder(t *testing.T) {
	tests := []struct {
		failures int64
		want     time.Duration
	}{
		{1, 5 * time.Minute},
		{2, 10 * time.Minute},
		{3, 20 * time.Minute},
		{4, 40 * time.Minute},
		{5, time.Hour},
		{6, 2 * time.Hour},
		{10, 24 * time.Hour},
		{25, 24 * time.Hour},
	}

	for _, tt := range tests {
		if got := backoffFor(tt.failures); got != tt.want {
			t.Errorf("backoffFor(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

// within asserts ts lands inside [target-slack, target+slack].
func within(t *testing.T, name string, ts, target time.Time, slack time.Duration) {
	t.Helper()
	if ts.Before(target.Add(-slack)) || ts.After(target.Add(slack)) {
		t.Errorf("%s = %v, want within %v of %v", name, ts, slack, target)
	}
}

func TestOnFailureEscalates(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	svc := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()
	ix := testutil.SeedIndexer(t, tdb, "alpha")

	if err := svc.OnFailure(ctx, ix.ID, errors.New("connection refused")); err != nil {
		t.Fatalf("OnFailure() error = %v", err)
	}

	st, err := svc.Get(ctx, ix.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if st.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", st.ConsecutiveFailures)
	}
	if !st.DisabledUntil.Valid {
		t.Fatal("DisabledUntil not set after failure")
	}
	within(t, "DisabledUntil", st.DisabledUntil.Time, time.Now().UTC().Add(5*time.Minute), time.Minute)
	if st.LastFailureReason != "connection refused" {
		t.Errorf("LastFailureReason = %q", st.LastFailureReason)
	}

	if err := svc.OnFailure(ctx, ix.ID, errors.New("connection refused")); err != nil {
		t.Fatalf("OnFailure() error = %v", err)
	}
	st, err = svc.Get(ctx, ix.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if st.ConsecutiveFailures != 2 {
		t.Errorf("ConsecutiveFailures = %d, want 2", st.ConsecutiveFailures)
	}
	within(t, "DisabledUntil", st.DisabledUntil.Time, time.Now().UTC().Add(10*time.Minute), time.Minute)

	avail, err := svc.Check(ctx, ix)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if avail.OK {
		t.Error("Check() OK = true, want backoff to block queries")
	}
}

func TestOnSuccessClearsFailureState(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	svc := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()
	ix := testutil.SeedIndexer(t, tdb, "alpha")

	for i := 0; i < 3; i++ {
		if err := svc.OnFailure(ctx, ix.ID, errors.New("timeout")); err != nil {
			t.Fatalf("OnFailure() error = %v", err)
		}
	}
	if err := svc.OnSuccess(ctx, ix.ID); err != nil {
		t.Fatalf("OnSuccess() error = %v", err)
	}

	st, err := svc.Get(ctx, ix.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if st.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", st.ConsecutiveFailures)
	}
	if st.DisabledUntil.Valid {
		t.Error("DisabledUntil still set after success")
	}
	if !st.LastSuccessAt.Valid {
		t.Error("LastSuccessAt not set")
	}
	if st.QueriesThisHour != 1 {
		t.Errorf("QueriesThisHour = %d, want 1", st.QueriesThisHour)
	}

	avail, err := svc.Check(ctx, ix)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !avail.OK {
		t.Errorf("Check() OK = false (%s), want available", avail.Reason)
	}
}

func TestRateLimitCooldown(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	svc := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()
	ix := testutil.SeedIndexer(t, tdb, "alpha")

	// No Retry-After defaults to five minutes.
	if err := svc.OnRateLimited(ctx, ix.ID, 0); err != nil {
		t.Fatalf("OnRateLimited() error = %v", err)
	}
	st, err := svc.Get(ctx, ix.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !st.RateLimitedUntil.Valid {
		t.Fatal("RateLimitedUntil not set")
	}
	within(t, "RateLimitedUntil", st.RateLimitedUntil.Time, time.Now().UTC().Add(5*time.Minute), time.Minute)
	if st.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, a 429 must not count as a failure", st.ConsecutiveFailures)
	}

	// Server-requested cooldowns are capped at an hour.
	if err := svc.OnRateLimited(ctx, ix.ID, 4*time.Hour); err != nil {
		t.Fatalf("OnRateLimited() error = %v", err)
	}
	st, err = svc.Get(ctx, ix.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	within(t, "RateLimitedUntil", st.RateLimitedUntil.Time, time.Now().UTC().Add(time.Hour), time.Minute)

	avail, err := svc.Check(ctx, ix)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if avail.OK {
		t.Error("Check() OK = true, want cooldown to block queries")
	}
}

func TestObserveClassifiesErrors(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	svc := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()
	ix := testutil.SeedIndexer(t, tdb, "alpha")

	rateLimited := &types.RateLimitedError{IndexerName: ix.Name, RetryAfter: 5 * time.Minute}
	if err := svc.Observe(ctx, ix.ID, rateLimited); err != nil {
		t.Fatalf("Observe(rate limited) error = %v", err)
	}
	st, err := svc.Get(ctx, ix.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if st.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d after 429, want 0", st.ConsecutiveFailures)
	}
	if !st.RateLimitedUntil.Valid {
		t.Error("RateLimitedUntil not set after 429")
	}

	// A 429 buried in a message string is just a failure; only the typed
	// error earns the cooldown.
	flattened := errors.New("search failed: " + rateLimited.Error())
	if err := svc.Observe(ctx, ix.ID, flattened); err != nil {
		t.Fatalf("Observe(plain error) error = %v", err)
	}
	st, err = svc.Get(ctx, ix.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if st.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d after plain error, want 1", st.ConsecutiveFailures)
	}

	if err := svc.Observe(ctx, ix.ID, nil); err != nil {
		t.Fatalf("Observe(nil) error = %v", err)
	}
	st, err = svc.Get(ctx, ix.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if st.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d after success, want 0", st.ConsecutiveFailures)
	}
}

func TestHourlyQueryBudget(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	svc := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()
	ix := testutil.SeedIndexer(t, tdb, "alpha")
	ix.QueryLimit = 2

	for i := 0; i < 2; i++ {
		if err := svc.OnSuccess(ctx, ix.ID); err != nil {
			t.Fatalf("OnSuccess() error = %v", err)
		}
	}

	avail, err := svc.Check(ctx, ix)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if avail.OK {
		t.Error("Check() OK = true, want hourly budget to block queries")
	}
	if avail.QueriesThisHour != 2 {
		t.Errorf("QueriesThisHour = %d, want 2", avail.QueriesThisHour)
	}
}

func TestHourlyRollover(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	svc := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()
	ix := testutil.SeedIndexer(t, tdb, "alpha")

	// A stale window from the previous hour.
	stale := time.Now().UTC().Add(-time.Minute)
	err := tdb.Queries.UpsertIndexerStatus(ctx, store.UpsertIndexerStatusParams{
		IndexerID:       ix.ID,
		QueriesThisHour: 50,
		GrabsThisHour:   9,
		HourResetAt:     sql.NullTime{Time: stale, Valid: true},
	})
	if err != nil {
		t.Fatalf("UpsertIndexerStatus() error = %v", err)
	}

	ix.QueryLimit = 10
	avail, err := svc.Check(ctx, ix)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !avail.OK {
		t.Errorf("Check() OK = false (%s), lapsed window must not block", avail.Reason)
	}
	if avail.QueriesThisHour != 0 {
		t.Errorf("QueriesThisHour = %d, want 0 after lapsed window", avail.QueriesThisHour)
	}

	// The next success rolls the window and counts itself.
	if err := svc.OnSuccess(ctx, ix.ID); err != nil {
		t.Fatalf("OnSuccess() error = %v", err)
	}
	st, err := svc.Get(ctx, ix.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if st.QueriesThisHour != 1 {
		t.Errorf("QueriesThisHour = %d, want 1", st.QueriesThisHour)
	}
	if st.GrabsThisHour != 0 {
		t.Errorf("GrabsThisHour = %d, want 0 after rollover", st.GrabsThisHour)
	}
	if !st.HourResetAt.Valid {
		t.Fatal("HourResetAt not set")
	}
	within(t, "HourResetAt", st.HourResetAt.Time, time.Now().UTC().Add(time.Hour), time.Minute)
}

func TestOnGrabCountsSeparately(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	svc := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()
	ix := testutil.SeedIndexer(t, tdb, "alpha")

	for i := 0; i < 2; i++ {
		if err := svc.OnGrab(ctx, ix.ID); err != nil {
			t.Fatalf("OnGrab() error = %v", err)
		}
	}

	st, err := svc.Get(ctx, ix.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if st.GrabsThisHour != 2 {
		t.Errorf("GrabsThisHour = %d, want 2", st.GrabsThisHour)
	}
	if st.QueriesThisHour != 0 {
		t.Errorf("QueriesThisHour = %d, grabs must not consume query budget", st.QueriesThisHour)
	}
}

func TestResetClearsEverything(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()

	svc := NewService(tdb.Conn, tdb.Logger)
	ctx := context.Background()
	ix := testutil.SeedIndexer(t, tdb, "alpha")

	if err := svc.OnFailure(ctx, ix.ID, errors.New("boom")); err != nil {
		t.Fatalf("OnFailure() error = %v", err)
	}
	if err := svc.OnRateLimited(ctx, ix.ID, 10*time.Minute); err != nil {
		t.Fatalf("OnRateLimited() error = %v", err)
	}

	if err := svc.Reset(ctx, ix.ID); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	st, err := svc.Get(ctx, ix.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if st.ConsecutiveFailures != 0 || st.DisabledUntil.Valid || st.RateLimitedUntil.Valid {
		t.Errorf("status not fully cleared: %+v", st)
	}

	avail, err := svc.Check(ctx, ix)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !avail.OK {
		t.Errorf("Check() OK = false (%s) after reset", avail.Reason)
	}
}

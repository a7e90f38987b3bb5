package rsssync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sideline/sideline/internal/crypto"
	"github.com/sideline/sideline/internal/indexer"
	"github.com/sideline/sideline/internal/indexer/newznab"
	"github.com/sideline/sideline/internal/indexer/status"
	"github.com/sideline/sideline/internal/releasecache"
	"github.com/sideline/sideline/internal/testutil"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <title>Resistance</title>
    <item>
      <title>NHL.2026.03.09.Bruins.vs.Rangers.720p.HDTV.x264-GRP</title>
      <guid>https://feeds.example/details/101</guid>
      <enclosure url="https://feeds.example/download/101.torrent" length="2147483648" type="application/x-bittorrent"/>
      <torznab:attr name="category" value="5060"/>
      <torznab:attr name="size" value="2147483648"/>
      <torznab:attr name="seeders" value="12"/>
    </item>
    <item>
      <title>UFC.315.1080p.WEB-DL.H264-GRP</title>
      <guid>https://feeds.example/details/102</guid>
      <enclosure url="https://feeds.example/download/102.torrent" length="4294967296" type="application/x-bittorrent"/>
      <torznab:attr name="category" value="5060"/>
      <torznab:attr name="size" value="4294967296"/>
      <torznab:attr name="seeders" value="40"/>
    </item>
  </channel>
</rss>`

type fixture struct {
	tdb      *testutil.TestDB
	service  *Service
	indexers *indexer.Service
	cache    *releasecache.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)

	salt, err := crypto.GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	secrets := crypto.NewSecretStore("test-instance-secret", salt)
	log := testutil.NopLogger()

	nc := newznab.NewClient(log)
	health := status.NewService(tdb.Conn, log)
	indexers := indexer.NewService(tdb.Conn, secrets, nc, health, log)
	cache := releasecache.NewService(tdb.Conn, log, 7)
	service := NewService(indexers, nc, health, cache, nil, 0, log)

	return &fixture{tdb: tdb, service: service, indexers: indexers, cache: cache}
}

// feedServer counts fetches and serves either the canned feed or an error.
func feedServer(t *testing.T, statusCode int) (*httptest.Server, *int) {
	t.Helper()
	hits := new(int)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		if statusCode != http.StatusOK {
			http.Error(w, "indexer exploded", statusCode)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFeed))
	}))
	t.Cleanup(server.Close)
	return server, hits
}

func createIndexer(t *testing.T, f *fixture, input indexer.CreateIndexerInput) {
	t.Helper()
	if input.Implementation == "" {
		input.Implementation = "torznab"
	}
	if _, err := f.indexers.Create(context.Background(), input); err != nil {
		t.Fatalf("Failed to create indexer %q: %v", input.Name, err)
	}
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func TestSyncCachesFeedReleases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if st := f.service.Status(); st.Running || !st.LastRun.IsZero() {
		t.Fatalf("fresh Status() = %+v, want zero", st)
	}

	rssServer, rssHits := feedServer(t, http.StatusOK)
	quietServer, quietHits := feedServer(t, http.StatusOK)
	createIndexer(t, f, indexer.CreateIndexerInput{Name: "resistance", BaseURL: rssServer.URL})
	createIndexer(t, f, indexer.CreateIndexerInput{
		Name:       "search-only",
		BaseURL:    quietServer.URL,
		RSSEnabled: boolPtr(false),
	})

	if err := f.service.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	st := f.service.Status()
	if st.Running {
		t.Error("Status().Running = true after Sync returned")
	}
	if st.LastRun.IsZero() {
		t.Error("LastRun not stamped")
	}
	if st.IndexersOK != 1 || st.IndexersSkip != 0 || st.IndexersErr != 0 {
		t.Errorf("indexer counts = ok %d skip %d err %d, want 1/0/0",
			st.IndexersOK, st.IndexersSkip, st.IndexersErr)
	}
	if st.Fetched != 2 || st.Cached != 2 {
		t.Errorf("Fetched/Cached = %d/%d, want 2/2", st.Fetched, st.Cached)
	}
	if st.Error != "" {
		t.Errorf("Error = %q, want empty", st.Error)
	}
	if *rssHits != 1 {
		t.Errorf("rss indexer fetches = %d, want 1", *rssHits)
	}
	if *quietHits != 0 {
		t.Errorf("rss-disabled indexer fetches = %d, want 0", *quietHits)
	}
	if n, err := f.cache.Count(ctx); err != nil || n != 2 {
		t.Errorf("cached releases = %d (err %v), want 2", n, err)
	}

	// Re-syncing the same feed upserts by GUID instead of duplicating.
	if err := f.service.Sync(ctx); err != nil {
		t.Fatalf("Sync() second pass error = %v", err)
	}
	if n, _ := f.cache.Count(ctx); n != 2 {
		t.Errorf("cached releases after resync = %d, want still 2", n)
	}
	if *rssHits != 2 {
		t.Errorf("rss indexer fetches = %d, want 2", *rssHits)
	}
}

func TestSyncHonorsQueryBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	server, hits := feedServer(t, http.StatusOK)
	createIndexer(t, f, indexer.CreateIndexerInput{
		Name:       "metered",
		BaseURL:    server.URL,
		QueryLimit: intPtr(1),
	})

	if err := f.service.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if st := f.service.Status(); st.IndexersOK != 1 {
		t.Fatalf("first pass IndexersOK = %d, want 1", st.IndexersOK)
	}

	if err := f.service.Sync(ctx); err != nil {
		t.Fatalf("Sync() second pass error = %v", err)
	}
	st := f.service.Status()
	if st.IndexersSkip != 1 || st.IndexersOK != 0 {
		t.Errorf("second pass counts = ok %d skip %d, want 0/1", st.IndexersOK, st.IndexersSkip)
	}
	if st.Fetched != 0 {
		t.Errorf("second pass Fetched = %d, want 0", st.Fetched)
	}
	if *hits != 1 {
		t.Errorf("indexer fetches = %d, want 1 with the budget spent", *hits)
	}
}

func TestSyncBacksOffFailingIndexer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	server, hits := feedServer(t, http.StatusInternalServerError)
	createIndexer(t, f, indexer.CreateIndexerInput{Name: "flaky", BaseURL: server.URL})

	if err := f.service.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	st := f.service.Status()
	if st.IndexersErr != 1 {
		t.Errorf("IndexersErr = %d, want 1", st.IndexersErr)
	}
	if st.Error != "" {
		t.Errorf("Error = %q, per-indexer failures must not fail the pass", st.Error)
	}
	if n, _ := f.cache.Count(ctx); n != 0 {
		t.Errorf("cached releases = %d, want 0", n)
	}

	// The failure puts the indexer on backoff, so the next pass skips it
	// without touching the network.
	if err := f.service.Sync(ctx); err != nil {
		t.Fatalf("Sync() second pass error = %v", err)
	}
	if st := f.service.Status(); st.IndexersSkip != 1 || st.IndexersErr != 0 {
		t.Errorf("second pass counts = skip %d err %d, want 1/0", st.IndexersSkip, st.IndexersErr)
	}
	if *hits != 1 {
		t.Errorf("indexer fetches = %d, want 1", *hits)
	}
}

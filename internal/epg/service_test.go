package epg

import (
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sideline/sideline/internal/store"
	"github.com/sideline/sideline/internal/testutil"
)

func xmltvTime(t time.Time) string {
	return t.UTC().Format("20060102150405") + " +0000"
}

// testGuide builds a small guide with future programme windows so the
// retention filter keeps them.
func testGuide(now time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<tv>
  <channel id="espn2.us">
    <display-name>ESPN 2 HD</display-name>
  </channel>
  <channel id="skysports.uk">
    <display-name>Sky Sports Main Event</display-name>
  </channel>
  <programme start="%s" stop="%s" channel="espn2.us">
    <title>UFC 312: Main Card</title>
    <desc>Live from Las Vegas.</desc>
    <category>Sports</category>
    <category>MMA</category>
  </programme>
  <programme start="%s" stop="%s" channel="skysports.uk">
    <title>Evening News</title>
    <category>News</category>
  </programme>
  <programme start="garbage" stop="%s" channel="espn2.us">
    <title>Bad Timestamp</title>
  </programme>
  <programme start="%s" stop="%s" channel="espn2.us">
    <title>Ancient Replay</title>
    <category>Sports</category>
  </programme>
</tv>`,
		xmltvTime(now.Add(1*time.Hour)), xmltvTime(now.Add(4*time.Hour)),
		xmltvTime(now.Add(2*time.Hour)), xmltvTime(now.Add(3*time.Hour)),
		xmltvTime(now.Add(3*time.Hour)),
		xmltvTime(now.Add(-72*time.Hour)), xmltvTime(now.Add(-48*time.Hour)))
}

func TestRefreshIngestsGuide(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)
	ctx := context.Background()

	// One channel to link by display name, one already linked.
	unlinked, err := tdb.Queries.CreateChannel(ctx, store.CreateChannelParams{
		Name:      "ESPN 2",
		StreamURL: "http://iptv.example/espn2",
		Enabled:   1,
	})
	require.NoError(t, err)
	if _, err := tdb.Queries.CreateChannel(ctx, store.CreateChannelParams{
		Name:      "Sky Sports Main Event",
		TvgID:     "already.linked",
		StreamURL: "http://iptv.example/sky",
		Enabled:   1,
	}); err != nil {
		t.Fatalf("Failed to create channel: %v", err)
	}

	now := time.Now().UTC()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testGuide(now))
	}))
	defer server.Close()

	service := NewService(tdb.Conn, server.URL+"/guide.xml", testutil.NopLogger())
	result, err := service.Refresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Channels)
	assert.Equal(t, 2, result.Programs) // bad timestamp and stale replay dropped
	assert.Equal(t, 1, result.Sports)
	assert.Equal(t, 1, result.Linked)
	assert.Empty(t, result.Error)

	count, err := tdb.Queries.CountEPGPrograms(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	ch, err := tdb.Queries.GetChannel(ctx, unlinked.ID)
	require.NoError(t, err)
	assert.Equal(t, "espn2.us", ch.TvgID)

	status, err := service.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), status["programCount"])
	last, ok := status["lastRefresh"].(RefreshResult)
	require.True(t, ok)
	assert.Equal(t, 2, last.Programs)
}

func TestRefreshIdempotent(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)
	ctx := context.Background()

	now := time.Now().UTC()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testGuide(now))
	}))
	defer server.Close()

	service := NewService(tdb.Conn, server.URL+"/guide.xml", testutil.NopLogger())
	_, err := service.Refresh(ctx)
	require.NoError(t, err)
	_, err = service.Refresh(ctx)
	require.NoError(t, err)

	count, err := tdb.Queries.CountEPGPrograms(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "re-ingesting the same guide must not duplicate rows")
}

func TestRefreshGzippedGuide(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)

	now := time.Now().UTC()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gz := gzip.NewWriter(w)
		fmt.Fprint(gz, testGuide(now))
		gz.Close()
	}))
	defer server.Close()

	service := NewService(tdb.Conn, server.URL+"/guide.xml.gz", testutil.NopLogger())
	result, err := service.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Programs)
}

func TestRefreshNoURL(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)

	service := NewService(tdb.Conn, "", testutil.NopLogger())
	_, err := service.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNoGuideURL)
}

func TestRefreshServerError(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	service := NewService(tdb.Conn, server.URL+"/guide.xml", testutil.NopLogger())
	_, err := service.Refresh(ctx)
	require.Error(t, err)

	// The failure is visible in status for the UI.
	status, err := service.Status(ctx)
	require.NoError(t, err)
	last, ok := status["lastRefresh"].(RefreshResult)
	require.True(t, ok)
	assert.NotEmpty(t, last.Error)
}

func seedProgram(t *testing.T, tdb *testutil.TestDB, tvgID, title, category string, sports bool, start time.Time) {
	t.Helper()
	isSports := int64(0)
	if sports {
		isSports = 1
	}
	err := tdb.Queries.UpsertEPGProgram(context.Background(), store.UpsertEPGProgramParams{
		ChannelTvgID: tvgID,
		Title:        title,
		Category:     category,
		IsSports:     isSports,
		StartTime:    start,
		EndTime:      start.Add(2 * time.Hour),
	})
	require.NoError(t, err)
}

func TestSuggestLeagueChannels(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)
	ctx := context.Background()
	service := NewService(tdb.Conn, "", testutil.NopLogger())

	mkChannel := func(name, tvgID string, enabled int64) store.Channel {
		ch, err := tdb.Queries.CreateChannel(ctx, store.CreateChannelParams{
			Name:      name,
			TvgID:     tvgID,
			StreamURL: "http://iptv.example/" + tvgID + name,
			Enabled:   enabled,
		})
		require.NoError(t, err)
		return ch
	}
	tnt := mkChannel("TNT Sports 1", "tnt1.uk", 1)
	espn := mkChannel("ESPN", "espn.us", 1)
	mkChannel("Disabled Channel", "off.air", 0)
	mkChannel("Unlinked Channel", "", 1)

	soon := time.Now().UTC().Add(6 * time.Hour)
	seedProgram(t, tdb, "tnt1.uk", "UEFA Champions League: Semi Final", "Sports", true, soon)
	seedProgram(t, tdb, "tnt1.uk", "Champions League Classics", "Sports", true, soon.Add(3*time.Hour))
	seedProgram(t, tdb, "tnt1.uk", "Champions League Preview Show", "Talk", false, soon.Add(6*time.Hour))
	seedProgram(t, tdb, "espn.us", "Champions League Highlights", "Sports", true, soon)
	seedProgram(t, tdb, "espn.us", "NBA Tonight", "Sports", true, soon.Add(3*time.Hour))
	seedProgram(t, tdb, "off.air", "Champions League Rewind", "Sports", true, soon)

	suggestions, err := service.SuggestLeagueChannels(ctx, "Champions League")
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	assert.Equal(t, tnt.ID, suggestions[0].ChannelID)
	assert.Equal(t, 2, suggestions[0].Matches)
	assert.Len(t, suggestions[0].Samples, 2)
	assert.Equal(t, espn.ID, suggestions[1].ChannelID)
	assert.Equal(t, 1, suggestions[1].Matches)
}

func TestSuggestWordBoundaries(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)
	ctx := context.Background()
	service := NewService(tdb.Conn, "", testutil.NopLogger())

	_, err := tdb.Queries.CreateChannel(ctx, store.CreateChannelParams{
		Name:      "Some Channel",
		TvgID:     "some.tv",
		StreamURL: "http://iptv.example/some",
		Enabled:   1,
	})
	require.NoError(t, err)

	soon := time.Now().UTC().Add(2 * time.Hour)
	// Substring of a longer word, must not match "NHL".
	seedProgram(t, tdb, "some.tv", "ANHLER Fishing Masters", "Sports", true, soon)
	// Punctuation-separated mention, must match.
	seedProgram(t, tdb, "some.tv", "Hockey Night: NHL, Round 2", "Sports", true, soon.Add(3*time.Hour))

	suggestions, err := service.SuggestLeagueChannels(ctx, "NHL")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, 1, suggestions[0].Matches)
	assert.Equal(t, []string{"Hockey Night: NHL, Round 2"}, suggestions[0].Samples)
}

func TestSuggestEmptyLeague(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)

	service := NewService(tdb.Conn, "", testutil.NopLogger())
	suggestions, err := service.SuggestLeagueChannels(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

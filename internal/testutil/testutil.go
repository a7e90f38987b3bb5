// Package testutil provides testing utilities for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sideline/sideline/internal/database"
	"github.com/sideline/sideline/internal/store"
)

// TestDB wraps a migrated test database in a temp directory.
type TestDB struct {
	DB      *database.DB
	Conn    *sql.DB
	Queries *store.Queries
	Path    string
	Logger  zerolog.Logger
}

// NewTestDB creates a new test database in a temp directory, runs all
// migrations, and returns a ready-to-use handle. The caller should defer
// Close() to clean up.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "sideline_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)

	db, err := database.New(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to open database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return &TestDB{
		DB:      db,
		Conn:    db.Conn(),
		Queries: store.New(db.Conn()),
		Path:    tmpDir,
		Logger:  logger,
	}
}

// Close closes the database and removes the temp directory.
func (tdb *TestDB) Close() {
	if tdb.DB != nil {
		tdb.DB.Close()
	}
	if tdb.Path != "" {
		os.RemoveAll(tdb.Path)
	}
}

// SeedIndexer inserts a minimal enabled torznab indexer for tests that need
// to satisfy foreign keys on indexer_id.
func SeedIndexer(t *testing.T, tdb *TestDB, name string) store.Indexer {
	t.Helper()
	ix, err := tdb.Queries.CreateIndexer(context.Background(), store.CreateIndexerParams{
		Name:           name,
		Implementation: "torznab",
		BaseURL:        "https://indexer.example",
		APIPath:        "/api",
		Categories:     "[5060,5070]",
		Protocol:       "torrent",
		Enabled:        1,
		RSSEnabled:     1,
		Priority:       25,
	})
	if err != nil {
		t.Fatalf("Failed to seed indexer: %v", err)
	}
	return ix
}

// SeedEvent inserts a monitored event for tests that need to satisfy
// foreign keys on event_id.
func SeedEvent(t *testing.T, tdb *TestDB, title string) store.Event {
	t.Helper()
	ev, err := tdb.Queries.CreateEvent(context.Background(), store.CreateEventParams{
		Title:     title,
		SortTitle: title,
		Sport:     "mma",
		League:    "UFC",
		EventDate: time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC),
		Monitored: 1,
	})
	if err != nil {
		t.Fatalf("Failed to seed event: %v", err)
	}
	return ev
}

// NewTestLogger creates a test logger that outputs to t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// NopLogger returns a no-op logger for tests that don't need output.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}

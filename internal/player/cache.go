package player

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

// Cache stores track metadata in SQLite so repeated plays of a track skip
// the Web API lookup.
type Cache struct {
	db    *sql.DB
	clock clockwork.Clock
}

// CachedTrack represents a track row in the cache
type CachedTrack struct {
	URI        string
	Name       string
	DurationMS int64
	FetchedAt  time.Time
}

// NewCache opens (or creates) the cache database at dbPath.
// Use ":memory:" for a throwaway cache.
func NewCache(dbPath string) (*Cache, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS tracks (
			uri TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL,
			fetched_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_fetched_at ON tracks(fetched_at);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Cache{db: db, clock: clockwork.NewRealClock()}, nil
}

// Close closes the database connection
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get looks up a track by URI. The bool is false on a miss.
func (c *Cache) Get(ctx context.Context, uri string) (CachedTrack, bool, error) {
	query := `
		SELECT uri, name, duration_ms, fetched_at
		FROM tracks
		WHERE uri = ?
	`

	var t CachedTrack
	var fetchedUnix int64

	err := c.db.QueryRowContext(ctx, query, uri).Scan(&t.URI, &t.Name, &t.DurationMS, &fetchedUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return CachedTrack{}, false, nil
	}
	if err != nil {
		return CachedTrack{}, false, fmt.Errorf("failed to query track: %w", err)
	}

	t.FetchedAt = time.Unix(fetchedUnix, 0)
	return t, true, nil
}

// Put inserts or replaces a track. FetchedAt is set to now.
func (c *Cache) Put(ctx context.Context, uri, name string, durationMS int64) error {
	query := `
		INSERT INTO tracks (uri, name, duration_ms, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			name = excluded.name,
			duration_ms = excluded.duration_ms,
			fetched_at = excluded.fetched_at
	`

	if _, err := c.db.ExecContext(ctx, query, uri, name, durationMS, c.clock.Now().Unix()); err != nil {
		return fmt.Errorf("failed to store track: %w", err)
	}

	return nil
}

// Cleanup removes tracks fetched longer ago than maxAge
func (c *Cache) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := c.clock.Now().Add(-maxAge).Unix()

	result, err := c.db.ExecContext(ctx, "DELETE FROM tracks WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old tracks: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// Count returns the number of cached tracks
func (c *Cache) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tracks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return count, nil
}

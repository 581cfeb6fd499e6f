package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists cache records in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path and ensures the
// schema exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;

		CREATE TABLE IF NOT EXISTS cache_entries (
			kind       TEXT NOT NULL,
			key        TEXT NOT NULL,
			version    INTEGER NOT NULL,
			cached_at  INTEGER NOT NULL,
			payload    BLOB NOT NULL,
			PRIMARY KEY (kind, key)
		);
		CREATE INDEX IF NOT EXISTS idx_cache_entries_cached_at ON cache_entries(cached_at);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, key, version, cached_at, payload FROM cache_entries`)
	if err != nil {
		return nil, fmt.Errorf("querying cache entries: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec      Record
			kind     string
			cachedAt int64
		)
		if err := rows.Scan(&kind, &rec.Key, &rec.Version, &cachedAt, &rec.Payload); err != nil {
			return nil, fmt.Errorf("scanning cache entry: %w", err)
		}
		rec.Kind = Kind(kind)
		rec.CachedAt = time.Unix(0, cachedAt).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading cache entries: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (kind, key, version, cached_at, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kind, key) DO UPDATE SET
			version = excluded.version,
			cached_at = excluded.cached_at,
			payload = excluded.payload
	`, string(rec.Kind), rec.Key, rec.Version, rec.CachedAt.UnixNano(), rec.Payload)
	if err != nil {
		return fmt.Errorf("upserting %s entry %s: %w", rec.Kind, rec.Key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, kind Kind, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE kind = ? AND key = ?`, string(kind), key)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

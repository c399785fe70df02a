// Package sqlite persists key-value payloads to a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"duesdesk/pkg/domain"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.KVStore = (*Store)(nil)

const defaultPath = "duesdesk.db"

// Store keeps one row per key in the state table.
type Store struct {
	db *sqlx.DB
}

// NewStore opens (or creates) the database at path and ensures the state table exists.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Store{db: db}, nil
}

// Get loads the payload stored for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, `SELECT payload FROM state WHERE bucket = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s: %w", key, err)
	}
	return payload, true, nil
}

// Set upserts the payload for key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Keys lists stored buckets in ascending order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, `SELECT bucket FROM state ORDER BY bucket`); err != nil {
		return nil, fmt.Errorf("select buckets: %w", err)
	}
	return keys, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stefanpenner/horizon/pkg/store"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// FileName is the cache database inside the data dir.
const FileName = "cache.db"

// SQLite persists each category as a JSON blob in a single table.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the cache database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps writes serialized without busy retries.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache (
		category TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

func (s *SQLite) Get(ctx context.Context, c store.Category) ([]store.Goal, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM cache WHERE category = ?`, string(c)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s: %w", c, err)
	}
	var goals []store.Goal
	if err := json.Unmarshal(payload, &goals); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", c, err)
	}
	if goals == nil {
		goals = []store.Goal{}
	}
	return goals, true, nil
}

func (s *SQLite) Put(ctx context.Context, c store.Category, goals []store.Goal) error {
	if goals == nil {
		goals = []store.Goal{}
	}
	data, err := json.Marshal(goals)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO cache(category, payload, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(category) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(c), data, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("upsert %s: %w", c, err)
	}
	return nil
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) Close() error { return s.db.Close() }

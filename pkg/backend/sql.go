package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/stefanpenner/horizon/pkg/store"
)

// Dialect holds the statements that differ between SQL engines.
type Dialect struct {
	Name    string
	create  string
	selectQ string
	upsert  string
	reset   string
}

var (
	SQLiteDialect = Dialect{
		Name: "sqlite",
		create: `CREATE TABLE IF NOT EXISTS goal_lists (
			category TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		selectQ: `SELECT payload FROM goal_lists WHERE category = ?`,
		upsert: `INSERT INTO goal_lists(category, payload, updated_at) VALUES(?, ?, ?)
			ON CONFLICT(category) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		reset: `DELETE FROM goal_lists`,
	}
	PostgresDialect = Dialect{
		Name: "postgres",
		create: `CREATE TABLE IF NOT EXISTS goal_lists (
			category TEXT PRIMARY KEY,
			payload JSONB NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		selectQ: `SELECT payload FROM goal_lists WHERE category = $1`,
		upsert: `INSERT INTO goal_lists(category, payload, updated_at) VALUES($1, $2, $3)
			ON CONFLICT(category) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		reset: `DELETE FROM goal_lists`,
	}
)

// SQL stores each category as one JSON row.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewSQL wraps an open database. The table is created if missing.
func NewSQL(ctx context.Context, db *sql.DB, d Dialect) (*SQL, error) {
	if _, err := db.ExecContext(ctx, d.create); err != nil {
		return nil, fmt.Errorf("create goal_lists table: %w", err)
	}
	return &SQL{db: db, dialect: d, now: time.Now}, nil
}

// OpenSQLite opens a SQLite file, creating parent directories.
func OpenSQLite(path string) (*SQL, error) {
	if path == "" {
		path = "horizon.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewSQL(context.Background(), db, SQLiteDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects through the pgx database/sql driver.
func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	if dsn == "" {
		return nil, errors.New("postgres backend needs a dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := NewSQL(ctx, db, PostgresDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) List(ctx context.Context, c store.Category) ([]store.Goal, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.dialect.selectQ, string(c)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return []store.Goal{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", c, err)
	}
	goals := []store.Goal{}
	if err := json.Unmarshal(payload, &goals); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c, err)
	}
	return goals, nil
}

func (s *SQL) Replace(ctx context.Context, c store.Category, goals []store.Goal) error {
	if goals == nil {
		goals = []store.Goal{}
	}
	data, err := json.Marshal(goals)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, string(c), data, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("upsert %s: %w", c, err)
	}
	return nil
}

func (s *SQL) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.reset); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

func (s *SQL) Close() error { return s.db.Close() }

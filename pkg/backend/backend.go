// Package backend is the server-side storage behind horizond: one goal list
// per category, replaced wholesale on every save.
package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/stefanpenner/horizon/pkg/store"
)

// Backend stores category lists. List returns an empty, non-nil slice for a
// category that was never written.
type Backend interface {
	List(ctx context.Context, c store.Category) ([]store.Goal, error)
	Replace(ctx context.Context, c store.Category, goals []store.Goal) error
	Reset(ctx context.Context) error
	Close() error
}

// Kinds accepted by Open.
const (
	KindMemory   = "memory"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindRedis    = "redis"
)

// Open builds the backend named by kind. dsn is a file path for sqlite, a
// connection string for postgres and an address or redis:// URL for redis.
func Open(ctx context.Context, kind, dsn string) (Backend, error) {
	switch strings.ToLower(kind) {
	case "", KindMemory:
		return NewMemory(), nil
	case KindSQLite:
		return OpenSQLite(dsn)
	case KindPostgres:
		return OpenPostgres(ctx, dsn)
	case KindRedis:
		return OpenRedis(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}

// Memory keeps everything in process.
type Memory struct {
	mu    sync.RWMutex
	lists map[store.Category][]store.Goal
}

func NewMemory() *Memory {
	return &Memory{lists: make(map[store.Category][]store.Goal)}
}

func (m *Memory) List(_ context.Context, c store.Category) ([]store.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return store.CloneGoals(m.lists[c]), nil
}

func (m *Memory) Replace(_ context.Context, c store.Category, goals []store.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[c] = store.CloneGoals(goals)
	return nil
}

func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists = make(map[store.Category][]store.Goal)
	return nil
}

func (m *Memory) Close() error { return nil }

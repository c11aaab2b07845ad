// Package cache keeps the client-side copy of each category's list so goals
// survive an unreachable remote.
package cache

import (
	"context"
	"sync"

	"github.com/stefanpenner/horizon/pkg/store"
)

// Cache stores one goal list per category. Get reports ok=false when nothing
// has been cached for the category yet.
type Cache interface {
	Get(ctx context.Context, c store.Category) (goals []store.Goal, ok bool, err error)
	Put(ctx context.Context, c store.Category, goals []store.Goal) error
	Close() error
}

// Memory is a process-local Cache.
type Memory struct {
	mu    sync.Mutex
	lists map[store.Category][]store.Goal
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{lists: make(map[store.Category][]store.Goal)}
}

func (m *Memory) Get(_ context.Context, c store.Category) ([]store.Goal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	goals, ok := m.lists[c]
	if !ok {
		return nil, false, nil
	}
	return store.CloneGoals(goals), true, nil
}

func (m *Memory) Put(_ context.Context, c store.Category, goals []store.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[c] = store.CloneGoals(goals)
	return nil
}

func (m *Memory) Close() error { return nil }

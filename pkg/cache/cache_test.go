package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefanpenner/horizon/pkg/store"
)

func caches(t *testing.T) map[string]Cache {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", FileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Cache{"memory": NewMemory(), "sqlite": sq}
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	due, err := store.ParseDate("2026-01-02")
	require.NoError(t, err)

	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := c.Get(ctx, store.CategoryDaily)
			require.NoError(t, err)
			assert.False(t, ok)

			goals := []store.Goal{
				{ID: "a", Text: "Run", Category: store.CategoryDaily, Order: 0, DueDate: &due},
				{ID: "b", Text: "Read", Category: store.CategoryDaily, Order: 1, Completed: true, Color: "red"},
			}
			require.NoError(t, c.Put(ctx, store.CategoryDaily, goals))

			got, ok, err := c.Get(ctx, store.CategoryDaily)
			require.NoError(t, err)
			require.True(t, ok)
			require.Len(t, got, 2)
			assert.Equal(t, "Run", got[0].Text)
			assert.Equal(t, "2026-01-02", got[0].DueDate.String())
			assert.True(t, got[1].Completed)
			assert.Equal(t, "red", got[1].Color)

			_, ok, err = c.Get(ctx, store.CategoryWeekly)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCacheEmptyListIsCached(t *testing.T) {
	ctx := context.Background()
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Put(ctx, store.CategoryYearly, nil))
			got, ok, err := c.Get(ctx, store.CategoryYearly)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestCachePutOverwrites(t *testing.T) {
	ctx := context.Background()
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Put(ctx, store.CategoryMonthly, []store.Goal{{ID: "a", Text: "Old"}}))
			require.NoError(t, c.Put(ctx, store.CategoryMonthly, []store.Goal{{ID: "b", Text: "New"}}))
			got, _, err := c.Get(ctx, store.CategoryMonthly)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "New", got[0].Text)
		})
	}
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), FileName)

	c, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, store.CategoryWeekly, []store.Goal{{ID: "a", Text: "Plan"}}))
	require.NoError(t, c.Close())

	c, err = OpenSQLite(path)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, path, c.Path())
	got, ok, err := c.Get(ctx, store.CategoryWeekly)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Plan", got[0].Text)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	goals := []store.Goal{{ID: "a", Text: "Run"}}
	require.NoError(t, m.Put(ctx, store.CategoryDaily, goals))
	goals[0].Text = "changed"

	got, _, err := m.Get(ctx, store.CategoryDaily)
	require.NoError(t, err)
	assert.Equal(t, "Run", got[0].Text)
}

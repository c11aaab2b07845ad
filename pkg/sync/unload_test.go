package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefanpenner/horizon/pkg/store"
)

func TestUnloadGuardFollowsDirtyFlag(t *testing.T) {
	remote := newFakeRemote()
	e, s, _, _ := setupEngine(t, remote, time.Hour)
	g := NewUnloadGuard(e)

	assert.False(t, g.Blocked())
	assert.True(t, g.Leave(nil))

	_, err := s.Add(store.CategoryWeekly, "Plan")
	require.NoError(t, err)
	assert.True(t, g.Blocked())
	assert.Equal(t, []store.Category{store.CategoryWeekly}, g.DirtyCategories())

	var prompt string
	left := g.Leave(func(msg string) bool {
		prompt = msg
		return false
	})
	assert.False(t, left)
	assert.Contains(t, prompt, "weekly")
	assert.True(t, g.Leave(func(string) bool { return true }))

	require.NoError(t, e.Flush(context.Background()))
	assert.False(t, g.Blocked())
}

func TestUnloadGuardStaysBlockedAfterFailedSave(t *testing.T) {
	remote := newFakeRemote()
	remote.setSaveErr(errors.New("down"))
	e, s, _, _ := setupEngine(t, remote, time.Hour)
	g := NewUnloadGuard(e)

	_, err := s.Add(store.CategoryDaily, "Run")
	require.NoError(t, err)
	assert.Error(t, e.Flush(context.Background()))
	assert.True(t, g.Blocked())
	assert.Equal(t, "Unsynced changes in daily. Leave anyway?", g.Message())
}

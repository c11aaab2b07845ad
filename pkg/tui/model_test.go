package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefanpenner/horizon/pkg/cache"
	"github.com/stefanpenner/horizon/pkg/store"
	hsync "github.com/stefanpenner/horizon/pkg/sync"
)

// Screen rows for the seeded lists at 100x40:
//
//	y=2 Daily header   y=3 A  y=4 B  y=5 C  y=6 blank
//	y=7 Weekly header  y=8 X  y=9 Y  y=10 blank ...
const (
	rowA       = 3
	rowC       = 5
	rowWeekly  = 7
	rowX       = 8
	panelRight = 60
)

// setupModel loads daily A B C and weekly X Y from a local remote, so every
// category starts in sync. Ids equal texts.
func setupModel(t *testing.T) (Model, *store.Store, *hsync.Engine) {
	t.Helper()
	ctx := context.Background()

	remote := cache.NewMemory()
	seed := map[store.Category][]string{
		store.CategoryDaily:  {"A", "B", "C"},
		store.CategoryWeekly: {"X", "Y"},
	}
	for c, texts := range seed {
		goals := make([]store.Goal, len(texts))
		for i, txt := range texts {
			goals[i] = store.Goal{ID: txt, Text: txt, Category: c, Order: i}
		}
		require.NoError(t, remote.Put(ctx, c, goals))
	}

	e := hsync.New(hsync.Options{Remote: hsync.Local{Cache: remote}, Debounce: time.Hour})
	t.Cleanup(func() { _ = e.Close() })
	s := store.New(store.WithListener(e), store.WithLoader(e))
	require.NoError(t, s.LoadAll(ctx))

	m := NewModel(s, e, t.TempDir())
	m = send(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m = send(t, m, LoadedMsg{})
	return m, s, e
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func send(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		m, _ = update(t, m, msg)
	}
	return m
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyRight = tea.KeyMsg{Type: tea.KeyRight}
	keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

func mouse(action tea.MouseAction, x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: action, Button: tea.MouseButtonLeft}
}

func texts(goals []store.Goal) []string {
	out := make([]string, len(goals))
	for i, g := range goals {
		out[i] = g.Text
	}
	return out
}

func selectedID(t *testing.T, m Model) string {
	t.Helper()
	r, ok := m.selected()
	require.True(t, ok)
	return r.Goal.ID
}

func TestCursorSkipsHeadersAndSpacers(t *testing.T) {
	m, _, _ := setupModel(t)
	assert.Equal(t, "A", selectedID(t, m))

	m = send(t, m, keyDown, keyDown, keyDown)
	assert.Equal(t, "X", selectedID(t, m))

	m = send(t, m, tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyTab})
	r, ok := m.selected()
	require.True(t, ok)
	assert.Equal(t, RowPlaceholder, r.Kind)
	assert.Equal(t, store.CategoryYearly, r.Category)
}

func TestEditingBlockedWhileLoading(t *testing.T) {
	m, s, e := setupModel(t)
	m.loading = true

	m = send(t, m, keySpace)
	assert.False(t, s.List(store.CategoryDaily)[0].Completed)
	assert.Empty(t, e.Dirty())
}

func TestAddGoal(t *testing.T) {
	m, s, e := setupModel(t)

	m = send(t, m, runes("a"))
	require.Equal(t, inputAdd, m.input)
	m = send(t, m, runes("Stretch"), keyEnter)

	assert.Equal(t, inputNone, m.input)
	assert.Equal(t, []string{"A", "B", "C", "Stretch"}, texts(s.List(store.CategoryDaily)))
	r, ok := m.selected()
	require.True(t, ok)
	assert.Equal(t, "Stretch", r.Goal.Text)
	assert.Equal(t, []store.Category{store.CategoryDaily}, e.Dirty())
	assert.True(t, m.status[store.CategoryDaily].Dirty)
}

func TestAddDuplicateKeepsInputOpen(t *testing.T) {
	m, s, _ := setupModel(t)

	m = send(t, m, runes("a"), runes(" y "), keyEnter)

	assert.Equal(t, inputAdd, m.input)
	assert.Contains(t, m.statusMsg, "already exists in weekly")
	assert.Len(t, s.List(store.CategoryDaily), 3)

	m = send(t, m, keyEsc)
	assert.Equal(t, inputNone, m.input)
}

func TestToggleEditAndDelete(t *testing.T) {
	m, s, _ := setupModel(t)

	m = send(t, m, keySpace)
	assert.True(t, s.List(store.CategoryDaily)[0].Completed)

	m = send(t, m, runes("e"))
	require.Equal(t, inputEdit, m.input)
	assert.Equal(t, "A", m.textInput.Value())
	m = send(t, m, runes("lpha"), keyEnter)
	assert.Equal(t, "Alpha", s.List(store.CategoryDaily)[0].Text)

	m = send(t, m, runes("d"))
	require.True(t, m.showDeleteConfirm)
	m = send(t, m, runes("n"))
	assert.Len(t, s.List(store.CategoryDaily), 3)

	m = send(t, m, runes("d"), runes("y"))
	assert.False(t, m.showDeleteConfirm)
	assert.Equal(t, []string{"B", "C"}, texts(s.List(store.CategoryDaily)))
	assert.Equal(t, "B", selectedID(t, m))
}

func TestDueDateAndColor(t *testing.T) {
	m, s, _ := setupModel(t)

	m = send(t, m, runes("D"), runes("soon"), keyEnter)
	assert.Equal(t, inputDue, m.input, "invalid date keeps the input open")
	assert.Nil(t, s.List(store.CategoryDaily)[0].DueDate)

	m.textInput.SetValue("2026-03-01")
	m = send(t, m, keyEnter)
	due := s.List(store.CategoryDaily)[0].DueDate
	require.NotNil(t, due)
	assert.Equal(t, "2026-03-01", due.String())

	m = send(t, m, runes("D"))
	m.textInput.SetValue("")
	m = send(t, m, keyEnter)
	assert.Nil(t, s.List(store.CategoryDaily)[0].DueDate)

	m = send(t, m, runes("c"))
	assert.Equal(t, GoalColors[1], s.List(store.CategoryDaily)[0].Color)
}

func TestClearCompleted(t *testing.T) {
	m, s, _ := setupModel(t)

	m = send(t, m, keySpace, keyDown, keyDown, keySpace, runes("X"))
	assert.Equal(t, []string{"B"}, texts(s.List(store.CategoryDaily)))
	assert.Contains(t, m.statusMsg, "Cleared 2")
}

func TestKeyboardMoveWithinCategory(t *testing.T) {
	m, s, _ := setupModel(t)

	m = send(t, m, runes("m"))
	require.True(t, m.drag.Active())
	m = send(t, m, keyDown, keyDown, keyDown, keyEnter)

	assert.False(t, m.drag.Active())
	assert.Equal(t, []string{"B", "C", "A"}, texts(s.List(store.CategoryDaily)))
	assert.Equal(t, "A", selectedID(t, m))
}

func TestKeyboardMoveAcrossCategories(t *testing.T) {
	m, s, _ := setupModel(t)

	m = send(t, m, runes("m"), keyRight, keyEnter)

	assert.Equal(t, []string{"B", "C"}, texts(s.List(store.CategoryDaily)))
	assert.Equal(t, []string{"A", "X", "Y"}, texts(s.List(store.CategoryWeekly)))
}

func TestKeyboardMoveEscCancels(t *testing.T) {
	m, s, e := setupModel(t)

	m = send(t, m, runes("m"), keyDown, keyEsc)

	assert.False(t, m.drag.Active())
	assert.Equal(t, []string{"A", "B", "C"}, texts(s.List(store.CategoryDaily)))
	assert.Empty(t, e.Dirty())
}

func TestMouseDragReorders(t *testing.T) {
	m, s, _ := setupModel(t)

	m = send(t, m,
		mouse(tea.MouseActionPress, 5, rowA),
		mouse(tea.MouseActionMotion, 5, rowA+1),
		mouse(tea.MouseActionMotion, 5, rowC),
	)
	ind := m.drag.Indicator()
	require.True(t, ind.Active)
	assert.Equal(t, store.CategoryDaily, ind.Category)
	assert.Equal(t, 2, ind.Index)

	m = send(t, m, mouse(tea.MouseActionRelease, 5, rowC))
	assert.False(t, m.drag.Active())
	assert.Equal(t, []string{"B", "C", "A"}, texts(s.List(store.CategoryDaily)))
	assert.Equal(t, "A", selectedID(t, m))
}

func TestMouseDragToOtherCategory(t *testing.T) {
	m, s, _ := setupModel(t)

	m = send(t, m,
		mouse(tea.MouseActionPress, 5, rowA),
		mouse(tea.MouseActionMotion, 5, rowX),
		mouse(tea.MouseActionRelease, 5, rowX),
	)

	assert.Equal(t, []string{"B", "C"}, texts(s.List(store.CategoryDaily)))
	assert.Equal(t, []string{"A", "X", "Y"}, texts(s.List(store.CategoryWeekly)))
}

func TestMouseDragOntoHeaderInsertsFirst(t *testing.T) {
	m, s, _ := setupModel(t)

	m = send(t, m,
		mouse(tea.MouseActionPress, 5, rowC),
		mouse(tea.MouseActionMotion, 5, rowWeekly),
		mouse(tea.MouseActionRelease, 5, rowWeekly),
	)

	assert.Equal(t, []string{"C", "X", "Y"}, texts(s.List(store.CategoryWeekly)))
}

func TestBlurCancelsDrag(t *testing.T) {
	m, s, e := setupModel(t)

	m = send(t, m,
		mouse(tea.MouseActionPress, 5, rowA),
		mouse(tea.MouseActionMotion, 5, rowA+1),
		mouse(tea.MouseActionMotion, 5, rowC),
	)
	require.True(t, m.drag.Active())

	m = send(t, m, tea.BlurMsg{})
	assert.False(t, m.drag.Active())
	assert.Equal(t, "Move cancelled", m.statusMsg)

	m = send(t, m, tea.FocusMsg{}, mouse(tea.MouseActionRelease, 5, rowC))
	assert.False(t, m.drag.Active())
	assert.Equal(t, []string{"A", "B", "C"}, texts(s.List(store.CategoryDaily)))
	assert.Empty(t, e.Dirty())
}

func TestBlurCancelsKeyboardMove(t *testing.T) {
	m, s, _ := setupModel(t)

	m = send(t, m, runes("m"), keyDown)
	require.True(t, m.drag.Active())
	m = send(t, m, tea.BlurMsg{})
	assert.False(t, m.drag.Active())
	assert.Equal(t, []string{"A", "B", "C"}, texts(s.List(store.CategoryDaily)))
}

func TestMouseDragOutsideCancels(t *testing.T) {
	m, s, e := setupModel(t)

	m = send(t, m,
		mouse(tea.MouseActionPress, 5, rowA),
		mouse(tea.MouseActionMotion, 5, rowX),
		mouse(tea.MouseActionMotion, panelRight, rowX),
	)
	assert.True(t, m.drag.Indicator().Outside)

	m = send(t, m, mouse(tea.MouseActionRelease, panelRight, rowX))
	assert.False(t, m.drag.Active())
	assert.Equal(t, []string{"A", "B", "C"}, texts(s.List(store.CategoryDaily)))
	assert.Empty(t, e.Dirty())
	assert.Equal(t, "Move cancelled", m.statusMsg)
}

func TestClickSelectsWithoutMoving(t *testing.T) {
	m, s, e := setupModel(t)

	m = send(t, m,
		mouse(tea.MouseActionPress, 5, rowX),
		mouse(tea.MouseActionRelease, 5, rowX),
	)

	assert.Equal(t, "X", selectedID(t, m))
	assert.Equal(t, []string{"X", "Y"}, texts(s.List(store.CategoryWeekly)))
	assert.Empty(t, e.Dirty())
}

func TestQuitWhenClean(t *testing.T) {
	m, _, _ := setupModel(t)

	_, cmd := update(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestQuitAsksWhileUnsynced(t *testing.T) {
	m, _, _ := setupModel(t)
	m = send(t, m, keySpace)
	require.True(t, m.guard.Blocked())

	m, cmd := update(t, m, runes("q"))
	assert.Nil(t, cmd)
	require.True(t, m.showQuitConfirm)
	assert.Contains(t, m.View(), "Unsynced changes in daily")

	m = send(t, m, runes("n"))
	assert.False(t, m.showQuitConfirm)

	m = send(t, m, runes("q"))
	_, cmd = update(t, m, runes("y"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestSyncThenQuit(t *testing.T) {
	m, _, e := setupModel(t)
	m = send(t, m, keySpace, runes("q"))

	m, cmd := update(t, m, runes("s"))
	require.NotNil(t, cmd)
	done := cmd()
	require.IsType(t, SyncDoneMsg{}, done)
	assert.NoError(t, done.(SyncDoneMsg).Err)
	assert.Empty(t, e.Dirty())

	_, cmd = update(t, m, done)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestFileChangeIgnoredWhileUnsynced(t *testing.T) {
	m, _, _ := setupModel(t)

	m, cmd := update(t, m, FileChangedMsg{})
	assert.NotNil(t, cmd, "clean state reloads")
	assert.True(t, m.loading)
	m = send(t, m, LoadedMsg{})

	m = send(t, m, keySpace)
	_, cmd = update(t, m, FileChangedMsg{})
	assert.Nil(t, cmd)
}

func TestSearchFilter(t *testing.T) {
	m, _, _ := setupModel(t)

	m = send(t, m, runes("/"), runes("y"), keyEnter)
	assert.False(t, m.isSearching)
	assert.Equal(t, "y", m.searchQuery)
	assert.Equal(t, "Y", selectedID(t, m))

	m = send(t, m, runes("m"))
	assert.False(t, m.drag.Active(), "moving is disabled while filtered")

	m = send(t, m, keyEsc)
	assert.Empty(t, m.searchQuery)
	assert.Equal(t, "Y", selectedID(t, m))
}

func TestViewShowsCategoriesAndDetails(t *testing.T) {
	m, _, _ := setupModel(t)
	m = send(t, m, keySpace)

	out := m.View()
	assert.Contains(t, out, "Horizon")
	assert.Contains(t, out, "Daily")
	assert.Contains(t, out, "Yearly")
	assert.Contains(t, out, "1/5 goals complete")
	assert.Contains(t, out, "unsynced")
}

func TestDueLabel(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.Local)
	day := func(s string) store.Date {
		d, err := store.ParseDate(s)
		require.NoError(t, err)
		return d
	}

	assert.Equal(t, "due today", dueLabel(day("2026-05-10"), now))
	assert.Equal(t, "due tomorrow", dueLabel(day("2026-05-11"), now))
	assert.Equal(t, "due in 5 days", dueLabel(day("2026-05-15"), now))
	assert.Equal(t, "1 day overdue", dueLabel(day("2026-05-09"), now))
	assert.Equal(t, "30 days overdue", dueLabel(day("2026-04-10"), now))
}

func TestScrollWindow(t *testing.T) {
	start, end := scrollWindow(5, 4, 10)
	assert.Equal(t, 0, start)
	assert.Equal(t, 5, end)

	start, end = scrollWindow(30, 15, 10)
	assert.Equal(t, 10, start)
	assert.Equal(t, 20, end)

	start, end = scrollWindow(30, 29, 10)
	assert.Equal(t, 20, start)
	assert.Equal(t, 30, end)
}

func TestWatcherNotifiesOnCacheWrites(t *testing.T) {
	dir := t.TempDir()
	fired := make(chan struct{}, 4)
	stop, err := watch(dir, func() { fired <- struct{}{} })
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, cache.FileName), []byte("x"), 0o644))

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("no notification for cache write")
	}
}

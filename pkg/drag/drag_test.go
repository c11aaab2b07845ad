package drag

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefanpenner/horizon/pkg/store"
)

type countingMover struct {
	*store.Store
	reorders int
	moves    int
}

func (m *countingMover) Reorder(c store.Category, from, to int) ([]store.Goal, error) {
	m.reorders++
	return m.Store.Reorder(c, from, to)
}

func (m *countingMover) Move(id string, target store.Category, index int) ([]store.Goal, []store.Goal, error) {
	m.moves++
	return m.Store.Move(id, target, index)
}

// setup seeds daily with A B C and weekly with X Y; ids are the texts.
func setup(t *testing.T) (*Controller, *countingMover) {
	t.Helper()
	var next string
	s := store.New(store.WithIDFunc(func() string { return next }))
	seed := map[store.Category][]string{
		store.CategoryDaily:  {"A", "B", "C"},
		store.CategoryWeekly: {"X", "Y"},
	}
	for _, c := range store.Categories {
		for _, txt := range seed[c] {
			next = txt
			_, err := s.Add(c, txt)
			require.NoError(t, err)
		}
	}
	m := &countingMover{Store: s}
	return NewController(m), m
}

// rows lays out n one-unit rows starting at 10.
func rows(n int) []Box {
	out := make([]Box, n)
	for i := range out {
		out[i] = Box{Top: float64(10 + i), Height: 1}
	}
	return out
}

func texts(goals []store.Goal) []string {
	out := make([]string, len(goals))
	for i, g := range goals {
		out[i] = g.Text
	}
	return out
}

func TestPointerDragBelowMidpointInsertsAfter(t *testing.T) {
	c, m := setup(t)
	require.NoError(t, c.BeginPointer("A"))

	// Lower half of C.
	require.NoError(t, c.Hover(store.CategoryDaily, 12.8, rows(3)))
	assert.Equal(t, Indicator{Active: true, Category: store.CategoryDaily, Index: 2}, c.Indicator())

	out, err := c.Drop()
	require.NoError(t, err)
	assert.Equal(t, Outcome{From: store.CategoryDaily, To: store.CategoryDaily, Index: 2}, out)
	assert.Equal(t, []string{"B", "C", "A"}, texts(m.List(store.CategoryDaily)))
	assert.Equal(t, 1, m.reorders)
	assert.Equal(t, 0, m.moves)
	assert.False(t, c.Active())
}

func TestPointerDragAboveMidpointInsertsBefore(t *testing.T) {
	c, m := setup(t)
	require.NoError(t, c.BeginPointer("C"))

	// Upper half of A.
	require.NoError(t, c.Hover(store.CategoryDaily, 10.2, rows(3)))
	_, err := c.Drop()
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, texts(m.List(store.CategoryDaily)))
}

func TestPointerDragToOtherCategory(t *testing.T) {
	c, m := setup(t)
	require.NoError(t, c.BeginPointer("B"))

	// Upper half of Y.
	require.NoError(t, c.Hover(store.CategoryWeekly, 11.1, rows(2)))
	out, err := c.Drop()
	require.NoError(t, err)
	assert.Equal(t, store.CategoryWeekly, out.To)
	assert.Equal(t, []string{"A", "C"}, texts(m.List(store.CategoryDaily)))
	assert.Equal(t, []string{"X", "B", "Y"}, texts(m.List(store.CategoryWeekly)))
	assert.Equal(t, 1, m.moves)
}

func TestPointerOverNoRowAppends(t *testing.T) {
	c, m := setup(t)
	require.NoError(t, c.BeginPointer("A"))

	require.NoError(t, c.Hover(store.CategoryWeekly, 40, rows(2)))
	assert.Equal(t, 2, c.Indicator().Index)
	_, err := c.Drop()
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y", "A"}, texts(m.List(store.CategoryWeekly)))

	// Empty list.
	require.NoError(t, c.BeginPointer("B"))
	require.NoError(t, c.Hover(store.CategoryYearly, 3, nil))
	_, err = c.Drop()
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, texts(m.List(store.CategoryYearly)))
}

func TestDropOutsideCancels(t *testing.T) {
	c, m := setup(t)
	before := m.All()

	require.NoError(t, c.BeginPointer("A"))
	require.NoError(t, c.Hover(store.CategoryWeekly, 10, rows(2)))
	require.NoError(t, c.Leave())
	assert.True(t, c.Indicator().Outside)

	out, err := c.Drop()
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.Equal(t, before, m.All())
	assert.Zero(t, m.reorders+m.moves)
	assert.False(t, c.Active())
}

func TestCancel(t *testing.T) {
	c, m := setup(t)
	assert.False(t, c.Cancel())

	require.NoError(t, c.BeginKeyboard("B"))
	require.NoError(t, c.Step(1))
	assert.True(t, c.Cancel())
	assert.False(t, c.Active())
	assert.Equal(t, Indicator{}, c.Indicator())
	assert.Equal(t, []string{"A", "B", "C"}, texts(m.List(store.CategoryDaily)))
	assert.Zero(t, m.reorders+m.moves)
}

func TestKeyboardStepMatchesPointer(t *testing.T) {
	c, m := setup(t)
	require.NoError(t, c.BeginKeyboard("A"))
	require.NoError(t, c.Step(1))
	require.NoError(t, c.Step(1))
	require.NoError(t, c.Step(1)) // clamped at the end of its own list
	assert.Equal(t, 2, c.Indicator().Index)

	_, err := c.Drop()
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, texts(m.List(store.CategoryDaily)))

	require.NoError(t, c.BeginKeyboard("B"))
	require.NoError(t, c.Step(-5))
	assert.Equal(t, 0, c.Indicator().Index)
	_, err = c.Drop()
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, texts(m.List(store.CategoryDaily)))
}

func TestKeyboardShiftCategory(t *testing.T) {
	c, m := setup(t)
	require.NoError(t, c.BeginKeyboard("C"))
	require.NoError(t, c.Shift(1))
	sess, ok := c.Session()
	require.True(t, ok)
	assert.Equal(t, store.CategoryWeekly, sess.Target)
	// Index 2 is the end of weekly, which is a valid spot in another list.
	assert.Equal(t, 2, sess.Index)
	assert.Equal(t, Keyboard, sess.Input)

	require.NoError(t, c.Shift(-5))
	assert.Equal(t, store.CategoryDaily, c.Indicator().Category)
	require.NoError(t, c.Shift(10))
	assert.Equal(t, store.CategoryYearly, c.Indicator().Category)
	assert.Equal(t, 0, c.Indicator().Index)

	_, err := c.Drop()
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, texts(m.List(store.CategoryYearly)))
}

func TestBeginErrors(t *testing.T) {
	c, _ := setup(t)
	assert.ErrorIs(t, c.BeginPointer("nope"), store.ErrNotFound)

	require.NoError(t, c.BeginPointer("A"))
	assert.ErrorIs(t, c.BeginKeyboard("B"), ErrSessionActive)
	assert.ErrorIs(t, c.Hover(store.Category("hourly"), 0, nil), store.ErrValidation)
}

func TestNoSessionErrors(t *testing.T) {
	c, _ := setup(t)
	assert.ErrorIs(t, c.Hover(store.CategoryDaily, 0, nil), ErrNoSession)
	assert.ErrorIs(t, c.Step(1), ErrNoSession)
	assert.ErrorIs(t, c.Shift(1), ErrNoSession)
	assert.ErrorIs(t, c.Leave(), ErrNoSession)
	_, err := c.Drop()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestDropUsesCurrentPosition(t *testing.T) {
	c, m := setup(t)
	require.NoError(t, c.BeginPointer("C"))
	require.NoError(t, c.Hover(store.CategoryDaily, 10.1, rows(3)))

	// A is removed while C is being dragged, so C is now at index 1.
	_, err := m.Store.Remove("A")
	require.NoError(t, err)
	_, err = c.Drop()
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B"}, texts(m.List(store.CategoryDaily)))
}

func TestInputString(t *testing.T) {
	assert.Equal(t, "pointer", fmt.Sprint(Pointer))
	assert.Equal(t, "keyboard", Keyboard.String())
}

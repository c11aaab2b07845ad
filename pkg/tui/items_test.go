package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefanpenner/horizon/pkg/store"
)

func sampleLists() map[store.Category][]store.Goal {
	return map[store.Category][]store.Goal{
		store.CategoryDaily: {
			{ID: "a", Text: "Read", Category: store.CategoryDaily, Order: 0},
			{ID: "b", Text: "Run", Category: store.CategoryDaily, Order: 1},
		},
		store.CategoryYearly: {
			{ID: "y", Text: "Learn to read music", Category: store.CategoryYearly, Order: 0},
		},
	}
}

func kinds(rows []Row) []RowKind {
	out := make([]RowKind, len(rows))
	for i, r := range rows {
		out[i] = r.Kind
	}
	return out
}

func TestBuildRows(t *testing.T) {
	rows := BuildRows(sampleLists(), "")

	assert.Equal(t, []RowKind{
		RowHeader, RowGoal, RowGoal,
		RowBlank, RowHeader, RowPlaceholder,
		RowBlank, RowHeader, RowPlaceholder,
		RowBlank, RowHeader, RowGoal,
	}, kinds(rows))

	assert.Equal(t, store.CategoryDaily, rows[0].Category)
	assert.Equal(t, 1, rows[2].Index)
	assert.Equal(t, "Run", rows[2].Goal.Text)
	assert.Equal(t, store.CategoryDaily, rows[3].Category, "spacer belongs to the list above")
	assert.Equal(t, -1, rows[5].Index)
	assert.Equal(t, 0, rows[11].Index)
}

func TestBuildRowsFiltersByQuery(t *testing.T) {
	rows := BuildRows(sampleLists(), "READ")

	var matched []string
	for _, r := range rows {
		if r.Kind == RowGoal {
			matched = append(matched, r.Goal.ID)
		}
	}
	assert.Equal(t, []string{"a", "y"}, matched)

	// Filtered rows keep their real list index.
	i := findGoalRow(rows, "y")
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, 0, rows[i].Index)

	// Every category still shows a header.
	headers := 0
	for _, r := range rows {
		if r.Kind == RowHeader {
			headers++
		}
	}
	assert.Equal(t, len(store.Categories), headers)
}

func TestRowLookups(t *testing.T) {
	rows := BuildRows(sampleLists(), "")

	assert.Equal(t, 2, findGoalRow(rows, "b"))
	assert.Equal(t, -1, findGoalRow(rows, "missing"))
	assert.Equal(t, 1, firstRowOf(rows, store.CategoryDaily))
	assert.Equal(t, 5, firstRowOf(rows, store.CategoryWeekly))
	assert.True(t, rows[5].Selectable())
	assert.False(t, rows[4].Selectable())

	assert.True(t, lastRowOf(rows, 2))
	assert.False(t, lastRowOf(rows, 1))
	assert.False(t, lastRowOf(rows, 3))
	assert.True(t, lastRowOf(rows, 11))
}

package tui

import (
	"strings"

	"github.com/stefanpenner/horizon/pkg/store"
)

// RowKind distinguishes the lines of the goal panel.
type RowKind int

const (
	RowHeader RowKind = iota
	RowGoal
	RowPlaceholder
	RowBlank
)

// Row is one line of the flattened goal panel.
type Row struct {
	Kind     RowKind
	Category store.Category
	// Index is the goal's position in its category list. It is -1 for rows
	// that are not goals.
	Index int
	Goal  store.Goal
}

// Selectable reports whether the cursor may rest on r.
func (r Row) Selectable() bool {
	return r.Kind == RowGoal || r.Kind == RowPlaceholder
}

// BuildRows flattens the category lists into panel rows. Each category gets a
// header row followed by its goals, or a placeholder when it is empty. When
// query is non-empty only goals whose text contains it are kept; categories
// stay visible so the layout does not jump while typing.
func BuildRows(lists map[store.Category][]store.Goal, query string) []Row {
	q := strings.ToLower(strings.TrimSpace(query))
	var rows []Row
	for i, c := range store.Categories {
		if i > 0 {
			// The spacer belongs to the list above it.
			rows = append(rows, Row{Kind: RowBlank, Category: store.Categories[i-1], Index: -1})
		}
		rows = append(rows, Row{Kind: RowHeader, Category: c, Index: -1})
		shown := 0
		for idx, g := range lists[c] {
			if q != "" && !strings.Contains(strings.ToLower(g.Text), q) {
				continue
			}
			rows = append(rows, Row{Kind: RowGoal, Category: c, Index: idx, Goal: g})
			shown++
		}
		if shown == 0 {
			rows = append(rows, Row{Kind: RowPlaceholder, Category: c, Index: -1})
		}
	}
	return rows
}

// findGoalRow returns the row index showing the goal with id, or -1.
func findGoalRow(rows []Row, id string) int {
	for i, r := range rows {
		if r.Kind == RowGoal && r.Goal.ID == id {
			return i
		}
	}
	return -1
}

// firstRowOf returns the first selectable row of category c, or -1.
func firstRowOf(rows []Row, c store.Category) int {
	for i, r := range rows {
		if r.Category == c && r.Selectable() {
			return i
		}
	}
	return -1
}

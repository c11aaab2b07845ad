package store

import "sort"

// renumber rewrites Order so the list reads 0..n-1 in slice order.
func renumber(goals []Goal) {
	for i := range goals {
		goals[i].Order = i
	}
}

// removeAt returns a new slice without the element at i.
func removeAt(goals []Goal, i int) []Goal {
	out := make([]Goal, 0, len(goals)-1)
	out = append(out, goals[:i]...)
	return append(out, goals[i+1:]...)
}

// insertAt returns a new slice with g placed at i (0 <= i <= len(goals)).
func insertAt(goals []Goal, i int, g Goal) []Goal {
	out := make([]Goal, 0, len(goals)+1)
	out = append(out, goals[:i]...)
	out = append(out, g)
	return append(out, goals[i:]...)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IsContiguous reports whether the Order fields of goals are exactly 0..n-1
// in slice order.
func IsContiguous(goals []Goal) bool {
	for i, g := range goals {
		if g.Order != i {
			return false
		}
	}
	return true
}

// sortByOrder orders a freshly loaded list by its stored Order, keeping the
// incoming sequence for ties.
func sortByOrder(goals []Goal) {
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].Order < goals[j].Order
	})
}

// EqualGoals reports whether two lists hold the same goals in the same order.
func EqualGoals(a, b []Goal) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.ID != y.ID || x.Text != y.Text || x.Completed != y.Completed ||
			x.Category != y.Category || x.Order != y.Order || x.Color != y.Color {
			return false
		}
		if (x.DueDate == nil) != (y.DueDate == nil) {
			return false
		}
		if x.DueDate != nil && !x.DueDate.Equal(y.DueDate.Time) {
			return false
		}
	}
	return true
}

package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Category is one of the four fixed time horizons a goal can live in.
type Category string

const (
	CategoryDaily   Category = "daily"
	CategoryWeekly  Category = "weekly"
	CategoryMonthly Category = "monthly"
	CategoryYearly  Category = "yearly"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryDaily, CategoryWeekly, CategoryMonthly, CategoryYearly}

// ParseCategory resolves a category name, ignoring case and surrounding space.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", s)}
	}
	return c, nil
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Index returns the position of c in Categories, or -1.
func (c Category) Index() int {
	for i, k := range Categories {
		if c == k {
			return i
		}
	}
	return -1
}

// Title returns the display name, e.g. "Daily".
func (c Category) Title() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// DateLayout is the wire format of due dates.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time of day.
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ValidationError{Field: "dueDate", Reason: fmt.Sprintf("invalid date %q (want YYYY-MM-DD)", s)}
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Goal is a single entry in one category's list.
type Goal struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Completed bool     `json:"completed"`
	Category  Category `json:"category"`
	Order     int      `json:"order"`
	Color     string   `json:"color,omitempty"`
	DueDate   *Date    `json:"dueDate,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler. An empty dueDate string means
// the goal has no due date.
func (g *Goal) UnmarshalJSON(b []byte) error {
	type plain Goal
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if p.DueDate != nil && p.DueDate.IsZero() {
		p.DueDate = nil
	}
	*g = Goal(p)
	return nil
}

// Clone returns a deep copy of g.
func (g Goal) Clone() Goal {
	if g.DueDate != nil {
		d := *g.DueDate
		g.DueDate = &d
	}
	return g
}

// CloneGoals deep-copies a goal slice. A nil input yields an empty, non-nil slice.
func CloneGoals(goals []Goal) []Goal {
	out := make([]Goal, len(goals))
	for i, g := range goals {
		out[i] = g.Clone()
	}
	return out
}

// Progress is the completion count of one category.
type Progress struct {
	Category  Category `json:"category"`
	Completed int      `json:"completed"`
	Total     int      `json:"total"`
}

// Percent returns the completed share in the range 0-100.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Completed * 100 / p.Total
}

// Package drag turns pointer and keyboard gestures into a single reorder or
// move on the goal store.
package drag

import (
	"errors"

	"github.com/stefanpenner/horizon/pkg/store"
)

var (
	ErrSessionActive = errors.New("drag already in progress")
	ErrNoSession     = errors.New("no drag in progress")
)

// Mover is the slice of the goal store a drag needs.
type Mover interface {
	Locate(id string) (store.Category, int, bool)
	List(c store.Category) []store.Goal
	Reorder(c store.Category, from, to int) ([]store.Goal, error)
	Move(id string, target store.Category, index int) (from, to []store.Goal, err error)
}

// Input says how a session was started.
type Input int

const (
	Pointer Input = iota
	Keyboard
)

func (i Input) String() string {
	if i == Keyboard {
		return "keyboard"
	}
	return "pointer"
}

// Box is the vertical extent of one rendered goal, in the same units as the
// pointer position.
type Box struct {
	Top    float64
	Height float64
}

func (b Box) contains(y float64) bool { return y >= b.Top && y < b.Top+b.Height }

func (b Box) mid() float64 { return b.Top + b.Height/2 }

// Session is one drag in progress. Index is where the goal would land,
// counted in the target list after the goal has been taken out of its
// source list.
type Session struct {
	GoalID         string
	Input          Input
	SourceCategory store.Category
	SourceIndex    int
	Target         store.Category
	Index          int
	// Outside is set while the pointer is over no list; dropping then cancels.
	Outside bool
}

// Indicator is what the view highlights while dragging.
type Indicator struct {
	Active   bool
	Category store.Category
	Index    int
	Outside  bool
}

// Outcome describes a finished drag.
type Outcome struct {
	Cancelled bool
	From      store.Category
	To        store.Category
	Index     int
}

// Controller is idle until Begin and dragging until Drop or Cancel.
type Controller struct {
	m       Mover
	session *Session
}

// NewController returns an idle controller over m.
func NewController(m Mover) *Controller {
	return &Controller{m: m}
}

// Begin starts dragging the goal with the given id.
func (c *Controller) Begin(id string, in Input) error {
	if c.session != nil {
		return ErrSessionActive
	}
	cat, idx, ok := c.m.Locate(id)
	if !ok {
		return &store.NotFoundError{Kind: "goal", ID: id}
	}
	c.session = &Session{
		GoalID:         id,
		Input:          in,
		SourceCategory: cat,
		SourceIndex:    idx,
		Target:         cat,
		Index:          idx,
	}
	return nil
}

// BeginPointer starts a pointer drag.
func (c *Controller) BeginPointer(id string) error { return c.Begin(id, Pointer) }

// BeginKeyboard starts a keyboard move.
func (c *Controller) BeginKeyboard(id string) error { return c.Begin(id, Keyboard) }

// Active reports whether a drag is in progress.
func (c *Controller) Active() bool { return c.session != nil }

// Session returns a copy of the current session.
func (c *Controller) Session() (Session, bool) {
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Hover places the insertion point from a pointer at y over the list of cat,
// whose rendered rows are boxes (in list order). Below a row's midpoint the
// goal goes after that row, otherwise before it. A pointer over no row puts
// it at the end of the list.
func (c *Controller) Hover(cat store.Category, y float64, boxes []Box) error {
	s := c.session
	if s == nil {
		return ErrNoSession
	}
	if !cat.Valid() {
		return &store.ValidationError{Field: "category", Reason: "unknown category " + string(cat)}
	}
	idx := len(boxes)
	for i, b := range boxes {
		if !b.contains(y) {
			continue
		}
		if y > b.mid() {
			idx = i + 1
		} else {
			idx = i
		}
		break
	}
	if cat == s.SourceCategory && idx > s.SourceIndex {
		idx--
	}
	s.Target = cat
	s.Index = c.clampFor(cat, idx)
	s.Outside = false
	return nil
}

// Leave records that the pointer is outside every list.
func (c *Controller) Leave() error {
	if c.session == nil {
		return ErrNoSession
	}
	c.session.Outside = true
	return nil
}

// Step moves the insertion point by delta within the target list.
func (c *Controller) Step(delta int) error {
	s := c.session
	if s == nil {
		return ErrNoSession
	}
	s.Index = c.clampFor(s.Target, s.Index+delta)
	s.Outside = false
	return nil
}

// Shift moves the insertion point to the category delta steps away, keeping
// the index where the new list allows.
func (c *Controller) Shift(delta int) error {
	s := c.session
	if s == nil {
		return ErrNoSession
	}
	i := s.Target.Index() + delta
	if i < 0 {
		i = 0
	}
	if i >= len(store.Categories) {
		i = len(store.Categories) - 1
	}
	s.Target = store.Categories[i]
	s.Index = c.clampFor(s.Target, s.Index)
	s.Outside = false
	return nil
}

// clampFor bounds idx to the valid landing spots in cat: 0..n-1 for the
// goal's own list and 0..n for any other.
func (c *Controller) clampFor(cat store.Category, idx int) int {
	hi := len(c.m.List(cat))
	if cat == c.session.SourceCategory {
		hi--
	}
	if idx > hi {
		idx = hi
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// Indicator reports the current insertion point for rendering.
func (c *Controller) Indicator() Indicator {
	s := c.session
	if s == nil {
		return Indicator{}
	}
	return Indicator{Active: true, Category: s.Target, Index: s.Index, Outside: s.Outside}
}

// Drop ends the session. Over a list it issues exactly one Reorder or Move;
// outside every list it cancels. The session is discarded either way.
func (c *Controller) Drop() (Outcome, error) {
	s := c.session
	if s == nil {
		return Outcome{}, ErrNoSession
	}
	c.session = nil
	if s.Outside {
		return Outcome{Cancelled: true, From: s.SourceCategory}, nil
	}
	// The goal may have shifted since Begin; use where it is now.
	cat, idx, ok := c.m.Locate(s.GoalID)
	if !ok {
		return Outcome{}, &store.NotFoundError{Kind: "goal", ID: s.GoalID}
	}
	if cat == s.Target {
		to := s.Index
		if n := len(c.m.List(cat)); to > n-1 {
			to = n - 1
		}
		if _, err := c.m.Reorder(cat, idx, to); err != nil {
			return Outcome{}, err
		}
		return Outcome{From: cat, To: cat, Index: to}, nil
	}
	if _, _, err := c.m.Move(s.GoalID, s.Target, s.Index); err != nil {
		return Outcome{}, err
	}
	return Outcome{From: cat, To: s.Target, Index: s.Index}, nil
}

// Cancel discards the session without touching the store.
func (c *Controller) Cancel() bool {
	had := c.session != nil
	c.session = nil
	return had
}

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Listener is told about every change to a category's list. It is called with
// the store lock held, in mutation order, and must not call back into the Store.
type Listener interface {
	GoalsChanged(c Category, goals []Goal)
}

// Loader supplies a category's persisted list. A loader that could only reach
// a fallback copy returns that copy together with a *PersistenceError.
type Loader interface {
	LoadCategory(ctx context.Context, c Category) ([]Goal, error)
}

// Store is the authoritative in-memory collection of goals, one ordered list
// per category. All reads return copies.
type Store struct {
	mu       sync.Mutex
	lists    map[Category][]Goal
	loader   Loader
	listener Listener
	newID    func() string
	log      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLoader sets where Load reads persisted lists from.
func WithLoader(l Loader) Option { return func(s *Store) { s.loader = l } }

// WithListener registers the change listener (normally the sync engine).
func WithListener(l Listener) Option { return func(s *Store) { s.listener = l } }

// WithLogger sets the logger used for hydration warnings.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

// WithIDFunc overrides goal id generation.
func WithIDFunc(f func() string) Option { return func(s *Store) { s.newID = f } }

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		lists: make(map[Category][]Goal, len(Categories)),
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "store")
	return s
}

// Load hydrates one category from the loader. The loaded list replaces the
// in-memory one wholesale. If the loader returns a fallback copy along with an
// error, the copy is still used and the error is returned for display.
func (s *Store) Load(ctx context.Context, c Category) ([]Goal, error) {
	if !c.Valid() {
		return nil, &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", c)}
	}
	var (
		loaded  []Goal
		loadErr error
	)
	if s.loader != nil {
		loaded, loadErr = s.loader.LoadCategory(ctx, c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	others := make(map[Category][]Goal, len(Categories))
	for _, k := range Categories {
		if k != c {
			others[k] = s.lists[k]
		}
	}
	s.hydrateLocked(c, loaded, others)
	return CloneGoals(s.lists[c]), loadErr
}

// LoadAll loads every category, continuing past failures. All four lists are
// fetched before any is installed, and duplicates are resolved among the
// incoming lists only (earlier category wins), so a goal another process moved
// between categories is not mistaken for a copy of its stale in-memory self.
// The returned error joins the individual failures.
func (s *Store) LoadAll(ctx context.Context) error {
	var errs []error
	loaded := make(map[Category][]Goal, len(Categories))
	for _, c := range Categories {
		if s.loader == nil {
			break
		}
		goals, err := s.loader.LoadCategory(ctx, c)
		if err != nil {
			errs = append(errs, err)
		}
		loaded[c] = goals
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[Category][]Goal, len(Categories))
	for _, c := range Categories {
		s.hydrateLocked(c, loaded[c], seen)
		seen[c] = s.lists[c]
	}
	return errors.Join(errs...)
}

// hydrateLocked installs a loaded list after normalizing it: stored order is
// respected, order is renumbered, missing ids are filled in and texts that
// duplicate an earlier goal or a goal in others are dropped. When
// normalization changed anything the listener is told so the corrected list
// gets persisted. others is modified.
func (s *Store) hydrateLocked(c Category, loaded []Goal, others map[Category][]Goal) {
	incoming := CloneGoals(loaded)
	sortByOrder(incoming)

	list := make([]Goal, 0, len(incoming))
	for _, g := range incoming {
		g.Text = strings.TrimSpace(g.Text)
		if g.Text == "" {
			s.log.Warn("dropping goal with empty text", "category", c, "id", g.ID)
			continue
		}
		others[c] = list
		if dup, ok := FindDuplicate(g.Text, others, ""); ok {
			s.log.Warn("dropping duplicate goal", "category", c, "text", g.Text, "existing", dup)
			continue
		}
		if g.ID == "" {
			g.ID = s.newID()
		}
		g.Category = c
		list = append(list, g)
	}
	renumber(list)
	s.lists[c] = list

	if !EqualGoals(list, loaded) && len(loaded) > 0 {
		s.changedLocked(c)
	}
}

// Add appends a new, incomplete goal to the end of category c.
func (s *Store) Add(c Category, text string) ([]Goal, error) {
	if !c.Valid() {
		return nil, &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", c)}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Field: "text", Reason: "goal text is empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if dup, ok := FindDuplicate(text, s.lists, ""); ok {
		return nil, &DuplicateGoalError{Text: text, Category: dup}
	}
	list := s.lists[c]
	g := Goal{
		ID:       s.newID(),
		Text:     text,
		Category: c,
		Order:    len(list),
	}
	s.lists[c] = append(CloneGoals(list), g)
	return s.changedLocked(c), nil
}

// Remove deletes a goal and closes the gap in its category's order.
func (s *Store) Remove(id string) ([]Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, i, ok := s.locateLocked(id)
	if !ok {
		return nil, &NotFoundError{Kind: "goal", ID: id}
	}
	list := removeAt(s.lists[c], i)
	renumber(list)
	s.lists[c] = list
	return s.changedLocked(c), nil
}

// ToggleCompleted flips a goal's completed flag.
func (s *Store) ToggleCompleted(id string) ([]Goal, error) {
	return s.update(id, func(g *Goal) error {
		g.Completed = !g.Completed
		return nil
	})
}

// EditText replaces a goal's text in place. The goal's own text never counts
// as a duplicate, so changing only the case is allowed.
func (s *Store) EditText(id, text string) ([]Goal, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Field: "text", Reason: "goal text is empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if dup, ok := FindDuplicate(text, s.lists, id); ok {
		if _, _, exists := s.locateLocked(id); exists {
			return nil, &DuplicateGoalError{Text: text, Category: dup}
		}
	}
	return s.updateLocked(id, func(g *Goal) error {
		g.Text = text
		return nil
	})
}

// SetColor tags a goal with a color; an empty color clears it.
func (s *Store) SetColor(id, color string) ([]Goal, error) {
	color = strings.TrimSpace(color)
	return s.update(id, func(g *Goal) error {
		g.Color = color
		return nil
	})
}

// SetDueDate sets or, with nil, clears a goal's due date.
func (s *Store) SetDueDate(id string, due *Date) ([]Goal, error) {
	return s.update(id, func(g *Goal) error {
		if due == nil {
			g.DueDate = nil
			return nil
		}
		d := *due
		g.DueDate = &d
		return nil
	})
}

func (s *Store) update(id string, fn func(*Goal) error) ([]Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(id, fn)
}

func (s *Store) updateLocked(id string, fn func(*Goal) error) ([]Goal, error) {
	c, i, ok := s.locateLocked(id)
	if !ok {
		return nil, &NotFoundError{Kind: "goal", ID: id}
	}
	list := CloneGoals(s.lists[c])
	if err := fn(&list[i]); err != nil {
		return nil, err
	}
	s.lists[c] = list
	return s.changedLocked(c), nil
}

// Reorder moves the goal at from to position to within category c and
// renumbers the whole list. Both indices must address existing goals.
func (s *Store) Reorder(c Category, from, to int) ([]Goal, error) {
	if !c.Valid() {
		return nil, &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", c)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reorderLocked(c, from, to)
}

func (s *Store) reorderLocked(c Category, from, to int) ([]Goal, error) {
	list := s.lists[c]
	n := len(list)
	if from < 0 || from >= n {
		return nil, &NotFoundError{Kind: "index", ID: fmt.Sprintf("%s[%d]", c, from)}
	}
	if to < 0 || to >= n {
		return nil, &NotFoundError{Kind: "index", ID: fmt.Sprintf("%s[%d]", c, to)}
	}
	g := list[from]
	next := insertAt(removeAt(list, from), to, g)
	renumber(next)
	s.lists[c] = next
	return s.changedLocked(c), nil
}

// Move relocates a goal to position index of target, renumbering both lists.
// The index is clamped to the target list's bounds. Moving within the same
// category is a reorder. Both lists are replaced together or not at all.
func (s *Store) Move(id string, target Category, index int) (from, to []Goal, err error) {
	if !target.Valid() {
		return nil, nil, &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", target)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src, i, ok := s.locateLocked(id)
	if !ok {
		return nil, nil, &NotFoundError{Kind: "goal", ID: id}
	}
	if src == target {
		list, err := s.reorderLocked(src, i, clamp(index, 0, len(s.lists[src])-1))
		if err != nil {
			return nil, nil, err
		}
		return list, CloneGoals(list), nil
	}

	g := s.lists[src][i].Clone()
	g.Category = target
	srcList := removeAt(s.lists[src], i)
	dstList := insertAt(CloneGoals(s.lists[target]), clamp(index, 0, len(s.lists[target])), g)
	renumber(srcList)
	renumber(dstList)

	s.lists[src] = srcList
	s.lists[target] = dstList
	return s.changedLocked(src), s.changedLocked(target), nil
}

// Reset empties the given categories, or every category when none is given,
// and returns the emptied lists keyed by category.
func (s *Store) Reset(cats ...Category) (map[Category][]Goal, error) {
	if len(cats) == 0 {
		cats = Categories
	}
	for _, c := range cats {
		if !c.Valid() {
			return nil, &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", c)}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Category][]Goal, len(cats))
	for _, c := range cats {
		s.lists[c] = []Goal{}
		out[c] = s.changedLocked(c)
	}
	return out, nil
}

// ClearCompleted removes every completed goal from category c.
func (s *Store) ClearCompleted(c Category) ([]Goal, error) {
	if !c.Valid() {
		return nil, &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", c)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]Goal, 0, len(s.lists[c]))
	for _, g := range s.lists[c] {
		if !g.Completed {
			kept = append(kept, g.Clone())
		}
	}
	renumber(kept)
	s.lists[c] = kept
	return s.changedLocked(c), nil
}

// List returns a copy of category c's goals in order.
func (s *Store) List(c Category) []Goal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CloneGoals(s.lists[c])
}

// All returns a copy of every category's list.
func (s *Store) All() map[Category][]Goal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Category][]Goal, len(Categories))
	for _, c := range Categories {
		out[c] = CloneGoals(s.lists[c])
	}
	return out
}

// Find returns the goal with the given id.
func (s *Store) Find(id string) (Goal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, i, ok := s.locateLocked(id)
	if !ok {
		return Goal{}, false
	}
	return s.lists[c][i].Clone(), true
}

// Locate returns the category and index of a goal.
func (s *Store) Locate(id string) (Category, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locateLocked(id)
}

// FindByPrefix resolves a goal from a unique id prefix, as typed on the
// command line.
func (s *Store) FindByPrefix(prefix string) (Goal, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return Goal{}, &ValidationError{Field: "id", Reason: "empty goal id"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []Goal
	for _, c := range Categories {
		for _, g := range s.lists[c] {
			if g.ID == prefix {
				return g.Clone(), nil
			}
			if strings.HasPrefix(g.ID, prefix) {
				matches = append(matches, g)
			}
		}
	}
	switch len(matches) {
	case 0:
		return Goal{}, &NotFoundError{Kind: "goal", ID: prefix}
	case 1:
		return matches[0].Clone(), nil
	default:
		return Goal{}, &ValidationError{Field: "id", Reason: fmt.Sprintf("prefix %q matches %d goals", prefix, len(matches))}
	}
}

// Stats returns completion counts per category in display order.
func (s *Store) Stats() []Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Progress, 0, len(Categories))
	for _, c := range Categories {
		p := Progress{Category: c, Total: len(s.lists[c])}
		for _, g := range s.lists[c] {
			if g.Completed {
				p.Completed++
			}
		}
		out = append(out, p)
	}
	return out
}

func (s *Store) locateLocked(id string) (Category, int, bool) {
	for _, c := range Categories {
		for i, g := range s.lists[c] {
			if g.ID == id {
				return c, i, true
			}
		}
	}
	return "", 0, false
}

// changedLocked notifies the listener and returns a snapshot of c.
func (s *Store) changedLocked(c Category) []Goal {
	if s.listener != nil {
		s.listener.GoalsChanged(c, CloneGoals(s.lists[c]))
	}
	return CloneGoals(s.lists[c])
}

package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/stefanpenner/horizon/pkg/drag"
	"github.com/stefanpenner/horizon/pkg/store"
	hsync "github.com/stefanpenner/horizon/pkg/sync"
)

// syncTimeout bounds a manual sync or reload.
const syncTimeout = 30 * time.Second

// FileChangedMsg is sent when the file watcher detects changes.
type FileChangedMsg struct{}

// SyncDoneMsg is sent when a manual flush completes.
type SyncDoneMsg struct {
	Err error
}

// LoadedMsg is sent when loading from the remote completes.
type LoadedMsg struct {
	Err error
}

// syncStatusMsg is sent whenever the engine publishes a status change.
type syncStatusMsg struct{}

type inputKind int

const (
	inputNone inputKind = iota
	inputAdd
	inputEdit
	inputDue
)

type pressState struct {
	active bool
	row    int
}

// Model is the Bubble Tea model for the goals TUI.
type Model struct {
	store   *store.Store
	engine  *hsync.Engine
	guard   *hsync.UnloadGuard
	drag    *drag.Controller
	keys    KeyMap
	log     *slog.Logger
	dataDir string
	width   int
	height  int

	rows    []Row
	cursor  int
	stats   []store.Progress
	status  map[store.Category]hsync.Status
	syncCh  chan struct{}
	loading bool

	// Modal state
	showHelpModal     bool
	showDeleteConfirm bool
	deleteID          string
	deleteText        string
	showQuitConfirm   bool
	quitAfterSync     bool

	// Input mode (add, edit text, due date)
	input         inputKind
	textInput     textinput.Model
	inputCategory store.Category
	inputGoalID   string

	// Search state
	isSearching bool
	searchQuery string

	press pressState

	// Status message
	statusMsg     string
	statusTimeout time.Time

	// Cached glamour renderer (expensive to create)
	glamourRenderer *glamour.TermRenderer
	glamourWidth    int
}

// NewModel creates a TUI model over s, whose changes are synced by e. The
// engine must be the store's listener and loader.
func NewModel(s *store.Store, e *hsync.Engine, dataDir string) Model {
	ti := textinput.New()
	ti.CharLimit = 200

	m := Model{
		store:     s,
		engine:    e,
		guard:     hsync.NewUnloadGuard(e),
		drag:      drag.NewController(s),
		keys:      DefaultKeyMap(),
		log:       slog.Default().With("component", "tui"),
		dataDir:   dataDir,
		status:    make(map[store.Category]hsync.Status, len(store.Categories)),
		syncCh:    make(chan struct{}, 1),
		textInput: ti,
		loading:   true,
	}
	ch := m.syncCh
	e.Subscribe(func(hsync.Status) {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.WindowSize(), m.doLoad(false), waitForSync(m.syncCh))
}

// Guard returns the unload guard tracking unsynced categories.
func (m Model) Guard() *hsync.UnloadGuard { return m.guard }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Pre-create glamour renderer at the right width
		m.getGlamourRenderer(m.layout().rightWidth - 2)
		return m, tea.ClearScreen

	case FileChangedMsg:
		// Local edits win until they are synced.
		if m.loading || m.guard.Blocked() || m.drag.Active() {
			return m, nil
		}
		m.loading = true
		return m, m.doLoad(false)

	case LoadedMsg:
		m.loading = false
		m.refresh()
		if msg.Err != nil {
			m.log.Warn("load failed", "error", msg.Err)
			m.showError(msg.Err)
		}
		return m, nil

	case SyncDoneMsg:
		m.refresh()
		if m.quitAfterSync {
			m.quitAfterSync = false
			if msg.Err == nil {
				return m, tea.Quit
			}
			m.showQuitConfirm = true
		}
		if msg.Err != nil {
			m.log.Warn("sync failed", "error", msg.Err)
			m.setStatus("Sync failed: " + store.Describe(msg.Err).Message)
		} else {
			m.setStatus("Synced")
		}
		return m, nil

	case syncStatusMsg:
		m.refreshStatus()
		return m, waitForSync(m.syncCh)

	case tea.BlurMsg:
		m.press = pressState{}
		if m.drag.Cancel() {
			m.setStatus("Move cancelled")
		}
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	// Update text input if in input mode
	if m.input != inputNone {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelpModal {
		if msg.Type == tea.KeyEsc || key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Quit) {
			m.showHelpModal = false
		}
		return m, nil
	}

	if m.showDeleteConfirm {
		switch msg.String() {
		case "y", "Y":
			m.showDeleteConfirm = false
			if _, err := m.store.Remove(m.deleteID); err != nil {
				m.showError(err)
			} else {
				m.setStatus("Deleted: " + m.deleteText)
			}
			m.refresh()
		case "n", "N", "esc":
			m.showDeleteConfirm = false
		}
		return m, nil
	}

	if m.showQuitConfirm {
		switch msg.String() {
		case "y", "Y":
			return m, tea.Quit
		case "s", "S":
			m.showQuitConfirm = false
			m.quitAfterSync = true
			m.setStatus("Syncing before quit...")
			return m, m.doSync()
		case "n", "N", "esc":
			m.showQuitConfirm = false
		}
		return m, nil
	}

	if m.input != inputNone {
		return m.handleInput(msg)
	}

	if m.isSearching {
		return m.handleSearchInput(msg)
	}

	if s, ok := m.drag.Session(); ok {
		if s.Input == drag.Keyboard {
			return m.handleMoveMode(msg)
		}
		if msg.Type == tea.KeyEsc {
			m.drag.Cancel()
			m.press = pressState{}
			m.setStatus("Drag cancelled")
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.guard.Leave(nil) {
			return m, tea.Quit
		}
		m.showQuitConfirm = true
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelpModal = true
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
		return m, nil

	case key.Matches(msg, m.keys.NextCategory), key.Matches(msg, m.keys.Right):
		m.jumpCategory(1)
		return m, nil

	case key.Matches(msg, m.keys.PrevCategory), key.Matches(msg, m.keys.Left):
		m.jumpCategory(-1)
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.isSearching = true
		return m, nil

	case msg.Type == tea.KeyEsc:
		if m.searchQuery != "" {
			m.searchQuery = ""
			m.refresh()
		}
		return m, nil

	case key.Matches(msg, m.keys.Sync):
		m.setStatus("Syncing...")
		return m, m.doSync()

	case key.Matches(msg, m.keys.Reload):
		if m.loading {
			return m, nil
		}
		m.loading = true
		m.setStatus("Reloading...")
		return m, m.doLoad(true)
	}

	if m.loading {
		m.setStatus("Still loading, try again in a moment")
		return m, nil
	}
	return m.handleEditKey(msg)
}

// handleEditKey handles the keys that change goals.
func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	row, ok := m.selected()
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Add):
		m.startInput(inputAdd, row.Category, "", "")
		m.textInput.Placeholder = "new " + string(row.Category) + " goal"
		return m, textinput.Blink

	case key.Matches(msg, m.keys.ClearCompleted):
		before := len(m.store.List(row.Category))
		list, err := m.store.ClearCompleted(row.Category)
		if err != nil {
			m.showError(err)
		} else {
			m.setStatus(fmt.Sprintf("Cleared %d completed %s goals", before-len(list), row.Category))
		}
		m.refresh()
		return m, nil
	}

	if row.Kind != RowGoal {
		return m, nil
	}
	g := row.Goal

	switch {
	case key.Matches(msg, m.keys.Space), key.Matches(msg, m.keys.Enter):
		if _, err := m.store.ToggleCompleted(g.ID); err != nil {
			m.showError(err)
		}
		m.refresh()

	case key.Matches(msg, m.keys.Edit):
		m.startInput(inputEdit, row.Category, g.ID, g.Text)
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Due):
		due := ""
		if g.DueDate != nil {
			due = g.DueDate.String()
		}
		m.startInput(inputDue, row.Category, g.ID, due)
		m.textInput.Placeholder = "YYYY-MM-DD, empty clears"
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Delete):
		m.showDeleteConfirm = true
		m.deleteID = g.ID
		m.deleteText = g.Text

	case key.Matches(msg, m.keys.Color):
		if _, err := m.store.SetColor(g.ID, nextColor(g.Color)); err != nil {
			m.showError(err)
		}
		m.refresh()

	case key.Matches(msg, m.keys.Move):
		if m.searchQuery != "" {
			m.setStatus("Clear the search filter to move goals")
			return m, nil
		}
		if err := m.drag.BeginKeyboard(g.ID); err != nil {
			m.showError(err)
		}
	}
	return m, nil
}

// handleMoveMode handles keys while a goal is being moved with the keyboard.
func (m Model) handleMoveMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var err error
	switch {
	case key.Matches(msg, m.keys.Up):
		err = m.drag.Step(-1)
	case key.Matches(msg, m.keys.Down):
		err = m.drag.Step(1)
	case key.Matches(msg, m.keys.Left), key.Matches(msg, m.keys.PrevCategory):
		err = m.drag.Shift(-1)
	case key.Matches(msg, m.keys.Right), key.Matches(msg, m.keys.NextCategory):
		err = m.drag.Shift(1)
	case key.Matches(msg, m.keys.Enter), key.Matches(msg, m.keys.Move):
		return m.drop()
	case msg.Type == tea.KeyEsc:
		m.drag.Cancel()
		m.setStatus("Move cancelled")
	}
	if err != nil {
		m.showError(err)
	}
	return m, nil
}

// drop ends the current drag session and applies it to the store.
func (m Model) drop() (tea.Model, tea.Cmd) {
	s, _ := m.drag.Session()
	out, err := m.drag.Drop()
	switch {
	case err != nil:
		m.showError(err)
		m.refresh()
	case out.Cancelled:
		m.setStatus("Move cancelled")
	default:
		m.refresh()
		m.focus(s.GoalID)
		m.setStatus(fmt.Sprintf("Moved to %s #%d", out.To, out.Index+1))
	}
	return m, nil
}

// handleInput handles key messages while the inline text input is open.
func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.stopInput()
		return m, nil

	case tea.KeyEnter:
		value := m.textInput.Value()
		var (
			list []store.Goal
			err  error
		)
		switch m.input {
		case inputAdd:
			list, err = m.store.Add(m.inputCategory, value)
		case inputEdit:
			_, err = m.store.EditText(m.inputGoalID, value)
		case inputDue:
			_, err = m.setDue(m.inputGoalID, value)
		}
		if err != nil {
			// Keep the input open so the text can be fixed.
			m.showError(err)
			return m, nil
		}
		kind, id := m.input, m.inputGoalID
		m.stopInput()
		m.refresh()
		switch kind {
		case inputAdd:
			m.focus(list[len(list)-1].ID)
			m.setStatus("Added: " + strings.TrimSpace(value))
		default:
			m.focus(id)
		}
		return m, nil

	default:
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}
}

func (m *Model) setDue(id, value string) ([]store.Goal, error) {
	if strings.TrimSpace(value) == "" {
		return m.store.SetDueDate(id, nil)
	}
	d, err := store.ParseDate(value)
	if err != nil {
		return nil, err
	}
	return m.store.SetDueDate(id, &d)
}

func (m *Model) startInput(kind inputKind, c store.Category, id, value string) {
	m.input = kind
	m.inputCategory = c
	m.inputGoalID = id
	m.textInput.Placeholder = ""
	m.textInput.SetValue(value)
	m.textInput.CursorEnd()
	m.textInput.Focus()
}

func (m *Model) stopInput() {
	m.input = inputNone
	m.inputGoalID = ""
	m.textInput.Blur()
	m.textInput.SetValue("")
}

// handleSearchInput handles key messages while typing in the search bar.
func (m Model) handleSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		// Exit search and clear filter
		m.isSearching = false
		m.searchQuery = ""
		m.refresh()
		return m, nil

	case tea.KeyEnter, tea.KeyDown, tea.KeyTab:
		// Exit search input but keep filter active
		m.isSearching = false
		return m, nil

	case tea.KeyBackspace:
		if len(m.searchQuery) > 0 {
			_, size := utf8.DecodeLastRuneInString(m.searchQuery)
			m.searchQuery = m.searchQuery[:len(m.searchQuery)-size]
		}
		m.refresh()
		m.focusFirstMatch()
		return m, nil

	default:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			m.searchQuery += string(msg.Runes)
			m.refresh()
			m.focusFirstMatch()
		}
		return m, nil
	}
}

// focusFirstMatch moves the cursor to the first matching goal unless it
// already rests on one.
func (m *Model) focusFirstMatch() {
	if r, ok := m.selected(); ok && r.Kind == RowGoal {
		return
	}
	for i, r := range m.rows {
		if r.Kind == RowGoal {
			m.cursor = i
			return
		}
	}
}

// handleMouse turns left-button press, motion and release into a pointer
// drag. A press without motion just selects the row.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.modalOpen() || m.input != inputNone || m.isSearching {
		return m, nil
	}
	if s, ok := m.drag.Session(); ok && s.Input == drag.Keyboard {
		return m, nil
	}
	lay := m.layout()

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.moveCursor(-1)
		case tea.MouseButtonWheelDown:
			m.moveCursor(1)
		case tea.MouseButtonLeft:
			i, ok := m.rowAt(lay, msg.X, msg.Y)
			m.press = pressState{active: ok, row: i}
			if ok && m.rows[i].Selectable() {
				m.cursor = i
			}
		}

	case tea.MouseActionMotion:
		if !m.press.active {
			return m, nil
		}
		if !m.drag.Active() {
			r := m.rows[m.press.row]
			if r.Kind != RowGoal || m.searchQuery != "" || m.loading {
				return m, nil
			}
			if err := m.drag.BeginPointer(r.Goal.ID); err != nil {
				m.press = pressState{}
				m.showError(err)
				return m, nil
			}
		}
		m.hover(lay, msg.X, msg.Y)

	case tea.MouseActionRelease:
		m.press = pressState{}
		if m.drag.Active() {
			return m.drop()
		}
	}
	return m, nil
}

// hover feeds the pointer position to the drag controller. Terminal rows
// have no halves, so the pointer is biased toward the direction of travel:
// below the dragged row it counts as the lower half of the hovered row.
func (m *Model) hover(lay layout, x, y int) {
	i, ok := m.rowAt(lay, x, y)
	if !ok {
		_ = m.drag.Leave()
		return
	}
	s, _ := m.drag.Session()
	r := m.rows[i]
	src := findGoalRow(m.rows, s.GoalID)

	var boxes []drag.Box
	for j, row := range m.rows {
		if row.Kind == RowGoal && row.Category == r.Category {
			boxes = append(boxes, drag.Box{Top: float64(m.screenY(lay, j)), Height: 1})
		}
	}

	py := float64(y) + 0.25
	switch {
	case r.Kind == RowHeader && len(boxes) > 0:
		py = boxes[0].Top + 0.25
	case r.Category == s.SourceCategory && i > src:
		py = float64(y) + 0.75
	}
	if err := m.drag.Hover(r.Category, py, boxes); err != nil {
		m.showError(err)
	}
}

// rowAt maps a screen cell to a row of the goal panel.
func (m Model) rowAt(lay layout, x, y int) (int, bool) {
	if x < 0 || x >= lay.leftWidth {
		return 0, false
	}
	dy := y - lay.contentTop
	if dy < 0 || dy >= lay.listHeight {
		return 0, false
	}
	start, end := scrollWindow(len(m.rows), m.cursor, lay.listHeight)
	i := start + dy
	if i >= end {
		return 0, false
	}
	return i, true
}

// screenY is the terminal line of row i, which may be off screen.
func (m Model) screenY(lay layout, i int) int {
	start, _ := scrollWindow(len(m.rows), m.cursor, lay.listHeight)
	return lay.contentTop + i - start
}

func (m Model) modalOpen() bool {
	return m.showHelpModal || m.showDeleteConfirm || m.showQuitConfirm
}

func (m Model) selected() (Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return Row{}, false
	}
	r := m.rows[m.cursor]
	return r, r.Selectable()
}

func (m *Model) moveCursor(delta int) {
	for i := m.cursor + delta; i >= 0 && i < len(m.rows); i += delta {
		if m.rows[i].Selectable() {
			m.cursor = i
			return
		}
	}
}

func (m *Model) jumpCategory(delta int) {
	cur := store.CategoryDaily
	if r, ok := m.selected(); ok {
		cur = r.Category
	}
	n := len(store.Categories)
	next := store.Categories[((cur.Index()+delta)%n+n)%n]
	if i := firstRowOf(m.rows, next); i >= 0 {
		m.cursor = i
	}
}

// refresh rebuilds the rows from the store, keeping the selection on the same
// goal or at least in the same category.
func (m *Model) refresh() {
	var (
		id  string
		cat = store.CategoryDaily
	)
	if r, ok := m.selected(); ok {
		cat = r.Category
		if r.Kind == RowGoal {
			id = r.Goal.ID
		}
	}
	m.rows = BuildRows(m.store.All(), m.searchQuery)
	m.stats = m.store.Stats()
	m.refreshStatus()

	if id != "" && m.focus(id) {
		return
	}
	if r, ok := m.selected(); ok && r.Category == cat {
		return
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if _, ok := m.selected(); ok {
		return
	}
	if i := firstRowOf(m.rows, cat); i >= 0 {
		m.cursor = i
	}
}

func (m *Model) refreshStatus() {
	for _, c := range store.Categories {
		m.status[c] = m.engine.State(c)
	}
}

// focus moves the cursor to the goal with id.
func (m *Model) focus(id string) bool {
	if i := findGoalRow(m.rows, id); i >= 0 {
		m.cursor = i
		return true
	}
	return false
}

// getGlamourRenderer returns a cached glamour renderer, creating one if needed
// or if the width changed.
func (m *Model) getGlamourRenderer(width int) *glamour.TermRenderer {
	if m.glamourRenderer != nil && m.glamourWidth == width {
		return m.glamourRenderer
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	m.glamourRenderer = r
	m.glamourWidth = width
	return r
}

func (m *Model) setStatus(msg string) {
	m.statusMsg = msg
	m.statusTimeout = time.Now().Add(3 * time.Second)
}

func (m *Model) showError(err error) {
	m.setStatus(store.Describe(err).Message)
}

func nextColor(current string) string {
	for i, c := range GoalColors {
		if strings.EqualFold(c, current) {
			return GoalColors[(i+1)%len(GoalColors)]
		}
	}
	return GoalColors[0]
}

func (m Model) doSync() tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		return SyncDoneMsg{Err: e.Flush(ctx)}
	}
}

// doLoad reloads every category from the remote. With flush set, pending
// changes are pushed first and a failed push skips the load.
func (m Model) doLoad(flush bool) tea.Cmd {
	s, e := m.store, m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		if flush {
			if err := e.Flush(ctx); err != nil {
				return LoadedMsg{Err: err}
			}
		}
		return LoadedMsg{Err: s.LoadAll(ctx)}
	}
}

func waitForSync(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return syncStatusMsg{}
	}
}

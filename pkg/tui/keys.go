package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the TUI.
type KeyMap struct {
	Up             key.Binding
	Down           key.Binding
	Left           key.Binding
	Right          key.Binding
	Enter          key.Binding
	Space          key.Binding
	NextCategory   key.Binding
	PrevCategory   key.Binding
	Add            key.Binding
	Edit           key.Binding
	Delete         key.Binding
	Color          key.Binding
	Due            key.Binding
	ClearCompleted key.Binding
	Reload         key.Binding
	Sync           key.Binding
	Help           key.Binding
	Move           key.Binding
	Search         key.Binding
	Quit           key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "previous category"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next category"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm"),
		),
		Space: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle done"),
		),
		NextCategory: key.NewBinding(
			key.WithKeys("tab", "]"),
			key.WithHelp("tab", "next category"),
		),
		PrevCategory: key.NewBinding(
			key.WithKeys("shift+tab", "["),
			key.WithHelp("shift+tab", "prev category"),
		),
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add goal"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit text"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Color: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cycle color"),
		),
		Due: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "set due date"),
		),
		ClearCompleted: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "clear completed"),
		),
		Reload: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reload"),
		),
		Sync: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sync now"),
		),
		Move: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "move mode"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the footer help text.
func (k KeyMap) ShortHelp() string {
	return "↑↓ nav  tab category  a add  e edit  space toggle  d delete  m move  / search  s sync  ? help"
}

// FullHelp returns all key bindings for the help modal.
func (k KeyMap) FullHelp() [][]string {
	return [][]string{
		{"↑/k", "Move up"},
		{"↓/j", "Move down"},
		{"tab / ]", "Next category"},
		{"shift+tab / [", "Previous category"},
		{"space", "Toggle complete/incomplete"},
		{"a", "Add goal to the focused category"},
		{"e", "Edit goal text"},
		{"d", "Delete goal (with confirmation)"},
		{"c", "Cycle goal color"},
		{"D", "Set or clear due date"},
		{"X", "Clear completed goals in category"},
		{"m", "Move mode (↑↓ position, ←→ category)"},
		{"mouse", "Drag a goal to reorder or move it"},
		{"/", "Search goals"},
		{"R", "Reload from remote"},
		{"s", "Sync pending changes now"},
		{"?", "Toggle help"},
		{"q", "Quit"},
	}
}

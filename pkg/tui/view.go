package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/stefanpenner/horizon/pkg/drag"
	"github.com/stefanpenner/horizon/pkg/store"
	hsync "github.com/stefanpenner/horizon/pkg/sync"
)

const minWidth = 40
const minHeight = 10

// layout is the screen geometry shared by rendering and mouse hit-testing.
type layout struct {
	width, height         int
	leftWidth, rightWidth int
	contentTop            int
	contentHeight         int
	// listHeight is the number of goal rows visible in the left panel.
	listHeight int
}

func (m Model) layout() layout {
	w, h := m.width, m.height
	if w < minWidth {
		w = minWidth
	}
	if h < minHeight {
		h = minHeight
	}
	l := layout{width: w, height: h, contentTop: 2}
	if m.isSearching || m.searchQuery != "" {
		l.contentTop++
	}
	l.contentHeight = h - l.contentTop - 2
	l.leftWidth = w * 2 / 5
	if l.leftWidth < 30 {
		l.leftWidth = 30
	}
	l.rightWidth = w - l.leftWidth - 1
	if l.rightWidth < 20 {
		l.rightWidth = 20
	}
	// Last line of the left panel holds the data directory.
	l.listHeight = l.contentHeight - 1
	if l.listHeight < 1 {
		l.listHeight = 1
	}
	return l
}

// scrollWindow returns the visible row range keeping cursor centered where
// possible.
func scrollWindow(n, cursor, height int) (start, end int) {
	if n <= height {
		return 0, n
	}
	start = cursor - height/2
	if start < 0 {
		start = 0
	}
	end = start + height
	if end > n {
		end = n
		start = end - height
	}
	return start, end
}

// View implements tea.Model.
func (m Model) View() string {
	lay := m.layout()
	w, h := lay.width, lay.height

	if m.showHelpModal {
		return placeOverlay(m.renderHelpModal(), w, h)
	}
	if m.showDeleteConfirm {
		return placeOverlay(m.renderDeleteModal(), w, h)
	}
	if m.showQuitConfirm {
		return placeOverlay(m.renderQuitModal(), w, h)
	}

	var b strings.Builder

	b.WriteString(m.renderHeader(w))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", w))
	b.WriteString("\n")

	if m.isSearching || m.searchQuery != "" {
		b.WriteString(m.renderSearchBar(w))
		b.WriteString("\n")
	}

	leftPanel := m.renderGoalPanel(lay)
	rightPanel := m.renderDetailPanel(lay.rightWidth, lay.contentHeight)

	sepColor := ColorGrayDim
	if m.drag.Active() {
		sepColor = ColorOrange
	}
	sep := lipgloss.NewStyle().Foreground(sepColor).Render("│")
	for i := 0; i < lay.contentHeight; i++ {
		b.WriteString(getLine(leftPanel, i, lay.leftWidth))
		b.WriteString(sep)
		b.WriteString(getLine(rightPanel, i, lay.rightWidth))
		b.WriteString("\n")
	}

	b.WriteString(strings.Repeat("─", w))
	b.WriteString("\n")
	b.WriteString(m.renderFooter(w))

	return b.String()
}

func (m Model) renderHeader(width int) string {
	title := HeaderStyle.Render("Horizon")

	done, total := 0, 0
	for _, p := range m.stats {
		done += p.Completed
		total += p.Total
	}
	stats := HeaderCountStyle.Render(fmt.Sprintf("%d/%d goals complete", done, total))
	if m.guard.Blocked() {
		stats = DirtyStyle.Render(IconDirty+" unsynced  ") + stats
	}

	// Status message
	status := ""
	if m.statusMsg != "" && time.Now().Before(m.statusTimeout) {
		status = "  " + lipgloss.NewStyle().Foreground(ColorCyan).Render(m.statusMsg) + "  "
	} else if m.loading {
		status = "  " + FooterStyle.Render("loading...") + "  "
	}

	gap := width - lipgloss.Width(title) - lipgloss.Width(stats) - lipgloss.Width(status)
	if gap < 1 {
		gap = 1
	}

	return title + status + strings.Repeat(" ", gap) + stats
}

func (m Model) renderSearchBar(width int) string {
	prefix := SearchBarStyle.Render(" / ")
	query := SearchBarStyle.Render(m.searchQuery)
	cursor := ""
	if m.isSearching {
		cursor = SearchBarStyle.Render("█")
	}

	countStr := ""
	if m.searchQuery != "" {
		matches := 0
		for _, r := range m.rows {
			if r.Kind == RowGoal {
				matches++
			}
		}
		countStr = SearchCountStyle.Render(fmt.Sprintf(" %d matches", matches))
	}

	left := prefix + query + cursor
	padWidth := width - lipgloss.Width(left) - lipgloss.Width(countStr)
	if padWidth < 1 {
		padWidth = 1
	}

	return left + strings.Repeat(" ", padWidth) + countStr
}

// dropMarker says where the drop indicator goes: before the goal row at
// index before, or at the end of the category when atEnd is set.
type dropMarker struct {
	on       bool
	category store.Category
	before   int
	atEnd    bool
	dragged  string
	outside  bool
}

// dropMarkerFor translates the insertion index into a row of the rendered
// list. The index counts positions with the dragged goal taken out.
func (m Model) dropMarkerFor() dropMarker {
	ind := m.drag.Indicator()
	s, ok := m.drag.Session()
	if !ind.Active || !ok {
		return dropMarker{}
	}
	dm := dropMarker{on: true, category: ind.Category, before: -1, dragged: s.GoalID, outside: ind.Outside}
	k := 0
	for _, r := range m.rows {
		if r.Kind != RowGoal || r.Category != ind.Category || r.Goal.ID == s.GoalID {
			continue
		}
		if k == ind.Index {
			dm.before = r.Index
			return dm
		}
		k++
	}
	dm.atEnd = true
	return dm
}

func (m Model) renderGoalPanel(lay layout) string {
	width := lay.leftWidth
	var lines []string
	dm := m.dropMarkerFor()

	start, end := scrollWindow(len(m.rows), m.cursor, lay.listHeight)
	for i := start; i < end; i++ {
		r := m.rows[i]
		selected := i == m.cursor

		switch r.Kind {
		case RowBlank:
			lines = append(lines, "")
		case RowHeader:
			lines = append(lines, m.renderCategoryHeader(r.Category, width, dm))
		case RowPlaceholder:
			text := "(no goals, press a to add)"
			if m.searchQuery != "" {
				text = "(no matches)"
			}
			line := GoalIndent + FooterStyle.Render(text)
			if dm.on && !dm.outside && dm.category == r.Category {
				line = DropIndicatorStyle.Render(IconDrop+" drop here")
			}
			if selected {
				line = SelectedStyle.Render(padRight(line, width))
			}
			lines = append(lines, line)
		case RowGoal:
			if m.input != inputNone && m.input != inputAdd && r.Goal.ID == m.inputGoalID {
				prompt := "✎ "
				if m.input == inputDue {
					prompt = "due> "
				}
				lines = append(lines, GoalIndent+InputPromptStyle.Render(prompt)+m.textInput.View())
				continue
			}
			lines = append(lines, m.renderGoalRow(r, selected, width, dm))
		}

		if m.input == inputAdd && r.Category == m.inputCategory && lastRowOf(m.rows, i) {
			lines = append(lines, GoalIndent+InputPromptStyle.Render("> ")+m.textInput.View())
		}
	}

	if len(lines) > lay.listHeight {
		lines = lines[:lay.listHeight]
	}
	for len(lines) < lay.listHeight {
		lines = append(lines, "")
	}

	pathLine := lipgloss.NewStyle().Foreground(ColorGrayDim).Render(fileHyperlink(m.dataDir))
	lines = append(lines, pathLine)

	return strings.Join(lines, "\n")
}

// lastRowOf reports whether row i is the last non-blank row of its category.
func lastRowOf(rows []Row, i int) bool {
	if rows[i].Kind == RowBlank {
		return false
	}
	return i+1 >= len(rows) || rows[i+1].Category != rows[i].Category || rows[i+1].Kind == RowBlank
}

func (m Model) renderCategoryHeader(c store.Category, width int, dm dropMarker) string {
	style := CategoryStyles[c.Index()]

	var p store.Progress
	for _, s := range m.stats {
		if s.Category == c {
			p = s
		}
	}
	label := style.Render("── "+c.Title()+" ") + HeaderCountStyle.Render(fmt.Sprintf("%d/%d ", p.Completed, p.Total))
	label += syncBadge(m.status[c])
	if dm.on && !dm.outside && dm.category == c && dm.atEnd && p.Total > 0 {
		label += DropIndicatorStyle.Render(IconDrop + " end ")
	}

	remaining := width - lipgloss.Width(label)
	if remaining > 0 {
		label += lipgloss.NewStyle().Foreground(ColorGrayDim).Render(strings.Repeat("─", remaining))
	}
	return label
}

func syncBadge(st hsync.Status) string {
	switch {
	case st.Saving:
		return DirtyStyle.Render("… ")
	case st.PendingRetry:
		return ErrorStyle.Render(IconDirty + "! ")
	case st.Dirty:
		return DirtyStyle.Render(IconDirty + " ")
	default:
		return ""
	}
}

func (m Model) renderGoalRow(r Row, selected bool, width int, dm dropMarker) string {
	g := r.Goal

	prefix := GoalIndent
	isDropPoint := dm.on && !dm.outside && dm.category == r.Category && dm.before == r.Index
	isDragged := dm.on && dm.dragged == g.ID
	if isDropPoint {
		prefix = DropIndicatorStyle.Render(IconDrop + " ")
	} else if isDragged {
		prefix = IconMove + " "
	}

	var statusIcon string
	if g.Completed {
		statusIcon = CompleteStyle.Render(IconComplete)
	} else {
		statusIcon = IncompleteStyle.Render(IconIncomplete)
	}

	swatch := ""
	if g.Color != "" {
		swatch = lipgloss.NewStyle().Foreground(lipgloss.Color(g.Color)).Render(IconColor) + " "
	}

	// Search match highlighting
	name := g.Text
	if m.searchQuery != "" {
		if selected {
			name = highlightMatch(name, m.searchQuery, SearchCharSelectedStyle, SelectedStyle)
		} else {
			name = highlightMatch(name, m.searchQuery, SearchCharStyle, SearchRowStyle)
		}
	}

	due := ""
	if g.DueDate != nil {
		due = " " + DueStyle.Render(dueLabel(*g.DueDate, time.Now()))
	}

	line := padRight(prefix+statusIcon+" "+swatch+name+due, width)

	switch {
	case isDragged:
		line = MoveStyle.Render(line)
	case selected:
		line = SelectedStyle.Render(line)
	}
	return line
}

func (m Model) renderDetailPanel(width, height int) string {
	row, ok := m.selected()
	if !ok {
		return FooterStyle.Render(" Select a goal to view details")
	}

	var md string
	if row.Kind == RowGoal {
		md = m.goalMarkdown(row)
	} else {
		md = m.categoryMarkdown(row.Category)
	}

	// Render with glamour (cached renderer)
	rendered := md
	if m.glamourRenderer != nil {
		if out, err := m.glamourRenderer.Render(md); err == nil {
			rendered = out
		}
	}

	rendered = strings.TrimRight(rendered, "\n ")
	lines := strings.Split(rendered, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

// goalMarkdown builds the detail view of one goal.
func (m Model) goalMarkdown(r Row) string {
	g := r.Goal
	var md strings.Builder

	md.WriteString("# " + g.Text + "\n\n")

	state := "open"
	if g.Completed {
		state = "done"
	}
	meta := []string{
		"**Category:** " + g.Category.Title(),
		"**Status:** " + state,
		fmt.Sprintf("**Position:** %d of %d", r.Index+1, len(m.store.List(g.Category))),
	}
	md.WriteString(strings.Join(meta, " | ") + "\n\n")

	if g.DueDate != nil {
		md.WriteString("- **Due:** " + g.DueDate.String() + " (" + dueLabel(*g.DueDate, time.Now()) + ")\n")
	}
	if g.Color != "" {
		md.WriteString("- **Color:** `" + g.Color + "`\n")
	}
	md.WriteString("- **Sync:** " + syncText(m.status[g.Category]) + "\n")
	md.WriteString("- **ID:** `" + g.ID + "`\n")

	return md.String()
}

// categoryMarkdown summarizes a category when no goal is selected.
func (m Model) categoryMarkdown(c store.Category) string {
	var md strings.Builder
	md.WriteString("# " + c.Title() + " goals\n\n")
	for _, p := range m.stats {
		if p.Category != c {
			continue
		}
		if p.Total == 0 {
			md.WriteString("Nothing here yet. Press **a** to add a goal.\n\n")
		} else {
			md.WriteString(fmt.Sprintf("%d of %d complete (%d%%)\n\n", p.Completed, p.Total, p.Percent()))
		}
	}
	md.WriteString("- **Sync:** " + syncText(m.status[c]) + "\n")
	return md.String()
}

func syncText(st hsync.Status) string {
	switch {
	case st.Saving:
		return "saving"
	case st.PendingRetry && st.Err != nil:
		return "failed, will retry (" + st.Err.Error() + ")"
	case st.Dirty:
		return "pending"
	default:
		return "synced"
	}
}

// dueLabel describes a due date relative to now.
func dueLabel(d store.Date, now time.Time) string {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	due := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	days := int(due.Sub(today).Hours() / 24)
	switch {
	case days == 0:
		return "due today"
	case days == 1:
		return "due tomorrow"
	case days > 1:
		return fmt.Sprintf("due in %d days", days)
	case days == -1:
		return "1 day overdue"
	default:
		return fmt.Sprintf("%d days overdue", -days)
	}
}

func (m Model) renderFooter(width int) string {
	help := m.keys.ShortHelp()
	s, dragging := m.drag.Session()
	switch {
	case m.input != inputNone:
		help = "enter confirm  esc cancel"
	case m.isSearching:
		help = "type to search  enter/↓ keep filter  esc clear"
	case dragging && s.Input == drag.Keyboard:
		help = "↑↓ position  ←→ category  enter drop  esc cancel"
	case dragging && m.drag.Indicator().Outside:
		help = "release to cancel"
	case dragging:
		help = "release to drop  esc cancel"
	case m.searchQuery != "":
		help = "esc clear filter  ↑↓ nav  space toggle"
	}
	return FooterStyle.Render(help)
}

func (m Model) renderHelpModal() string {
	var b strings.Builder

	b.WriteString(ModalTitleStyle.Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")

	keyStyle := lipgloss.NewStyle().Foreground(ColorBlue).Width(16)
	descStyle := lipgloss.NewStyle().Foreground(ColorWhite)

	for _, binding := range m.keys.FullHelp() {
		b.WriteString(keyStyle.Render(binding[0]))
		b.WriteString(descStyle.Render(binding[1]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(FooterStyle.Render("Press Esc or ? to close"))

	return ModalStyle.Render(b.String())
}

func (m Model) renderDeleteModal() string {
	var b strings.Builder

	b.WriteString(ModalTitleStyle.Render("Delete Goal"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Delete '%s'?\n\n", m.deleteText))
	b.WriteString(lipgloss.NewStyle().Foreground(ColorGreen).Render("[y]") + " Yes  ")
	b.WriteString(lipgloss.NewStyle().Foreground(ColorRed).Render("[n]") + " No")

	return ModalStyle.Render(b.String())
}

func (m Model) renderQuitModal() string {
	var b strings.Builder

	b.WriteString(ModalTitleStyle.Render("Quit"))
	b.WriteString("\n\n")
	b.WriteString(m.guard.Message())
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Foreground(ColorRed).Render("[y]") + " Leave  ")
	b.WriteString(lipgloss.NewStyle().Foreground(ColorGreen).Render("[s]") + " Sync & quit  ")
	b.WriteString(lipgloss.NewStyle().Foreground(ColorBlue).Render("[n]") + " Stay")

	return ModalStyle.Render(b.String())
}

// highlightMatch splits name into before/match/after and styles the match portion
// with charStyle, and the rest with rowStyle. The match is case-insensitive.
func highlightMatch(name, query string, charStyle, rowStyle lipgloss.Style) string {
	lower := strings.ToLower(name)
	idx := strings.Index(lower, strings.ToLower(query))
	if idx < 0 {
		return rowStyle.Render(name)
	}
	before := name[:idx]
	match := name[idx : idx+len(query)]
	after := name[idx+len(query):]

	var result string
	if before != "" {
		result += rowStyle.Render(before)
	}
	result += charStyle.Render(match)
	if after != "" {
		result += rowStyle.Render(after)
	}
	return result
}

// fileHyperlink wraps a file path in an OSC 8 terminal hyperlink so it's clickable.
func fileHyperlink(path string) string {
	url := "file://" + path
	return fmt.Sprintf("\x1b]8;;%s\x1b\\%s\x1b]8;;\x1b\\", url, path)
}

// Helper functions

func padRight(line string, width int) string {
	if w := lipgloss.Width(line); w < width {
		return line + strings.Repeat(" ", width-w)
	}
	return line
}

func getLine(block string, idx int, width int) string {
	lines := strings.Split(block, "\n")
	if idx < len(lines) {
		return padRight(lines[idx], width)
	}
	return strings.Repeat(" ", width)
}

func placeOverlay(modal string, width, height int) string {
	modalLines := strings.Split(modal, "\n")

	topPadding := (height - len(modalLines)) / 2
	if topPadding < 0 {
		topPadding = 0
	}

	leftPadding := (width - lipgloss.Width(modalLines[0])) / 2
	if leftPadding < 0 {
		leftPadding = 0
	}

	var result strings.Builder
	for i := 0; i < topPadding; i++ {
		result.WriteString("\n")
	}

	for _, line := range modalLines {
		result.WriteString(strings.Repeat(" ", leftPadding))
		result.WriteString(line)
		result.WriteString("\n")
	}

	return result.String()
}

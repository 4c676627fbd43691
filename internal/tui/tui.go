// Package tui provides a Bubble Tea host for one editing session.
package tui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kpauljoseph/pagedesk/internal/session"
	"github.com/kpauljoseph/pagedesk/pkg/models"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	pageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)

	cursorPageStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	targetPageStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("205")).
			Padding(0, 1)

	selectedMark = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("*")

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)
)

// Session is the part of *session.Session the terminal host drives.
type Session interface {
	State() (session.Snapshot, error)
	Subscribe() (<-chan struct{}, func())

	DragStart(page int) error
	DragOver(page int) error
	Drop(page int) (bool, error)
	DragCancel() error

	OnRotateRequested(page, delta int) error
	ToggleSelection(page int) (bool, error)
	Save() (bool, error)
	ExportRotations() error
	DeleteSelected() error

	OnExtractRequested() (bool, error)
	OnEditStart() error
	UpdateDraft(text string) error
	OnEditCancel() error
	OnEditCommit(newText string) error
	ClearContent() error
}

type mode int

const (
	modePages mode = iota
	modeMove
	modeEdit
)

type changedMsg struct{}

// Model is the root Bubble Tea model.
type Model struct {
	session Session
	changes <-chan struct{}

	snap   session.Snapshot
	mode   mode
	cursor int
	target int
	status string

	editor   textarea.Model
	viewport viewport.Model
	width    int
	height   int
	ready    bool
}

func New(sess Session) Model {
	editor := textarea.New()
	editor.ShowLineNumbers = false
	editor.CharLimit = 0

	changes, _ := sess.Subscribe()
	m := Model{
		session: sess,
		changes: changes,
		editor:  editor,
	}
	m.refresh()
	return m
}

// Run starts the UI on the terminal and blocks until the user quits.
func Run(sess Session) error {
	_, err := tea.NewProgram(New(sess), tea.WithAltScreen()).Run()
	return err
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd {
	return m.waitForChange()
}

func (m Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case changedMsg:
		m.refresh()
		if m.snap.ContentState == models.ContentEditing && m.mode != modeEdit {
			m.enterEdit()
		}
		return m, m.waitForChange()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeEdit:
			return m.updateEdit(msg)
		case modeMove:
			m.updateMove(msg)
			return m, nil
		}
		return m.updatePages(msg)
	}
	return m, nil
}

func (m Model) updatePages(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := m.currentPage()
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "left", "h":
		if m.cursor > 0 {
			m.cursor--
		}
	case "right", "l":
		if m.cursor < len(m.snap.Pages)-1 {
			m.cursor++
		}
	case "m":
		if page > 0 && m.check(m.session.DragStart(page)) {
			m.mode = modeMove
			m.target = m.cursor
		}
	case "r":
		m.check(m.session.OnRotateRequested(page, 90))
	case "R":
		m.check(m.session.OnRotateRequested(page, -90))
	case " ":
		_, err := m.session.ToggleSelection(page)
		m.check(err)
	case "d":
		if m.check(m.session.DeleteSelected()) {
			m.status = "Deleting selected pages…"
		}
	case "e":
		if m.check(m.session.ExportRotations()) {
			m.status = "Saving rotation…"
		}
	case "s":
		started, err := m.session.Save()
		if m.check(err) && !started {
			m.status = "No unsaved changes"
		}
	case "x":
		started, err := m.session.OnExtractRequested()
		if m.check(err) && !started {
			m.status = "Content is busy"
		}
	case "i":
		if m.check(m.session.OnEditStart()) {
			m.refresh()
			m.enterEdit()
			return m, textarea.Blink
		}
	case "c":
		m.check(m.session.ClearContent())
	case "up", "k", "down", "j", "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	m.refresh()
	return m, nil
}

func (m *Model) updateMove(msg tea.KeyMsg) {
	switch msg.String() {
	case "left", "h":
		if m.target > 0 {
			m.target--
			m.check(m.session.DragOver(m.pageAt(m.target)))
		}
	case "right", "l":
		if m.target < len(m.snap.Pages)-1 {
			m.target++
			m.check(m.session.DragOver(m.pageAt(m.target)))
		}
	case "enter", " ":
		moved, err := m.session.Drop(m.pageAt(m.target))
		if m.check(err) && moved {
			m.cursor = m.target
		}
		m.mode = modePages
	case "esc", "q":
		m.check(m.session.DragCancel())
		m.mode = modePages
	}
	m.refresh()
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.check(m.session.OnEditCancel())
		m.leaveEdit()
		m.refresh()
		return m, nil
	case "ctrl+s":
		text := m.editor.Value()
		if err := m.session.OnEditCommit(text); err != nil {
			m.check(err)
			return m, nil
		}
		m.status = "Saving content…"
		m.leaveEdit()
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	m.check(m.session.UpdateDraft(m.editor.Value()))
	return m, cmd
}

// ── State helpers ───────────────

func (m *Model) refresh() {
	snap, err := m.session.State()
	if err != nil {
		m.status = err.Error()
		return
	}
	m.snap = snap
	if m.cursor >= len(snap.Pages) {
		m.cursor = max(len(snap.Pages)-1, 0)
	}
	if m.target >= len(snap.Pages) {
		m.target = max(len(snap.Pages)-1, 0)
	}
	if m.ready {
		m.viewport.SetContent(m.renderContent())
	}
}

// check records err in the status line and reports whether the call
// succeeded.
func (m *Model) check(err error) bool {
	if err == nil {
		m.status = ""
		return true
	}
	switch {
	case errors.Is(err, models.ErrStaleReference):
		m.status = "Content is stale: press esc, then x to extract again"
	case errors.Is(err, session.ErrNothingToSave):
		m.status = "No rotations to save"
	default:
		m.status = err.Error()
	}
	return false
}

func (m *Model) enterEdit() {
	text := m.snap.Content.ExtractedText
	if m.snap.Content.EditedText != nil {
		text = *m.snap.Content.EditedText
	}
	m.editor.SetValue(text)
	m.editor.Focus()
	m.mode = modeEdit
}

func (m *Model) leaveEdit() {
	m.editor.Blur()
	m.mode = modePages
}

func (m Model) currentPage() int {
	return m.pageAt(m.cursor)
}

func (m Model) pageAt(i int) int {
	if i < 0 || i >= len(m.snap.Pages) {
		return 0
	}
	return m.snap.Pages[i].Number
}

// ── Layout & rendering ───────────────

func (m *Model) layout() {
	// title(1) + pages(1) + header(1) + notifications(3) + status(1)
	h := m.height - 7
	if h < 3 {
		h = 3
	}
	m.viewport = viewport.New(m.width, h)
	m.viewport.SetContent(m.renderContent())
	m.editor.SetWidth(m.width)
	m.editor.SetHeight(h)
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	saveState := m.snap.SaveState.String()
	if m.snap.Dirty {
		saveState += " (unsaved)"
	}
	title := titleStyle.Width(m.width).Render(
		fmt.Sprintf("  pagedesk  %s  ·  %s", filepath.Base(m.snap.CurrentPath), saveState))

	var body string
	if m.mode == modeEdit {
		body = m.editor.View()
	} else {
		body = m.viewport.View()
	}

	header := sectionHeader.Render(fmt.Sprintf("Content (%s)", m.snap.ContentState))
	if m.snap.ContentStale {
		header += " " + errorStyle.Render("stale")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.renderPages(),
		header,
		body,
		m.renderNotifications(),
		statusBarStyle.Width(m.width).Render(m.hint()),
	)
}

func (m Model) renderPages() string {
	parts := make([]string, 0, len(m.snap.Pages))
	selected := map[int]bool{}
	for _, n := range m.snap.Selection {
		selected[n] = true
	}
	for i, p := range m.snap.Pages {
		label := fmt.Sprintf("%d", p.Number)
		if p.Rotation != 0 {
			label += fmt.Sprintf("↻%d", p.Rotation)
		}
		if selected[p.Number] {
			label += selectedMark
		}
		style := pageStyle
		switch {
		case m.mode == modeMove && i == m.target:
			style = targetPageStyle
		case i == m.cursor:
			style = cursorPageStyle
		}
		parts = append(parts, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderContent() string {
	switch m.snap.ContentState {
	case models.ContentEmpty:
		return dimStyle.Render("No content extracted. Press x to extract.")
	case models.ContentExtracting:
		return dimStyle.Render("Extracting text…")
	case models.ContentCommitting:
		return dimStyle.Render("Writing changes…")
	}
	return m.snap.Content.ExtractedText
}

func (m Model) renderNotifications() string {
	var lines []string
	notes := m.snap.Notifications
	if len(notes) > 3 {
		notes = notes[len(notes)-3:]
	}
	for _, n := range notes {
		switch n.Kind {
		case models.NotifySuccess:
			lines = append(lines, successStyle.Render("✓ "+n.Message))
		case models.NotifyError:
			lines = append(lines, errorStyle.Render("✗ "+n.Message))
		default:
			lines = append(lines, infoStyle.Render("• "+n.Message))
		}
	}
	for len(lines) < 3 {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m Model) hint() string {
	var hint string
	switch m.mode {
	case modeMove:
		hint = "←/→ choose target  enter drop  esc cancel"
	case modeEdit:
		hint = "ctrl+s save  esc discard"
	default:
		hint = "←/→ page  m move  r/R rotate  space select  d delete  e save rotation  s save  x extract  i edit  c clear  q quit"
	}
	if m.status != "" {
		hint = m.status + "  │  " + hint
	}
	return hint
}

// Package ui is the terminal editor: a page list, the block tree of the
// selected page, a JSON editor for one node and the bulk save results.
package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/agentic-research/blocktree/internal/editor"
	"github.com/agentic-research/blocktree/internal/session"
	"github.com/agentic-research/blocktree/internal/tree"
	"github.com/agentic-research/blocktree/internal/writeback"
)

type focus int

const (
	focusPages focus = iota
	focusTree
	focusEdit
	focusSearch
	focusFilter
	focusTitle
	focusResults
)

// row is one visible node of the tree pane.
type row struct {
	node  *tree.Node
	depth int
}

type (
	forestChangedMsg struct{ pageID string }
	stateChangedMsg  struct {
		pageID string
		state  session.State
		err    error
	}
	saveStatusMsg struct {
		index int
		rec   writeback.Record
	}
	savedMsg struct {
		pageID string
		err    error
	}
	saveAllDoneMsg struct{ records []writeback.Record }
	renamedMsg     struct {
		pageID string
		err    error
	}
	loadedMsg struct{ err error }
	configMsg struct {
		title string
		err   error
	}
)

// Model is the bubbletea model of the editor.
type Model struct {
	ctx   context.Context
	svc   *editor.Service
	theme Theme
	title string

	focus      focus
	pages      []*session.Session
	pageCursor int
	rows       []row
	rowCursor  int

	search textinput.Model
	input  textinput.Model
	editor textarea.Model

	inspector bool
	md        *glamour.TermRenderer
	records   []writeback.Record

	status    string
	statusErr bool
	width     int
	height    int

	copy func(string) error
}

// New returns a model over an already loaded service.
func New(ctx context.Context, svc *editor.Service, title string) Model {
	search := textinput.New()
	search.Prompt = "/"
	search.Placeholder = "search pages"

	input := textinput.New()
	input.CharLimit = 200

	ed := textarea.New()
	ed.ShowLineNumbers = true
	ed.CharLimit = 0

	md, _ := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(60))

	m := Model{
		ctx:    ctx,
		svc:    svc,
		theme:  DefaultTheme(lipgloss.DefaultRenderer()),
		title:  title,
		search: search,
		input:  input,
		editor: ed,
		md:     md,
		width:  100,
		height: 30,
		copy:   clipboard.WriteAll,
	}
	m.refreshPages()
	return m
}

func (m Model) Init() tea.Cmd { return nil }

// current returns the session under the page cursor.
func (m Model) current() *session.Session {
	if m.pageCursor < 0 || m.pageCursor >= len(m.pages) {
		return nil
	}
	return m.pages[m.pageCursor]
}

func (m *Model) refreshPages() {
	var keep string
	if s := m.current(); s != nil {
		keep = s.PageID()
	}
	m.pages = editor.Search(m.svc.Pages(false), m.search.Value())
	m.pageCursor = 0
	for i, s := range m.pages {
		if s.PageID() == keep {
			m.pageCursor = i
		}
	}
	m.refreshRows()
}

func (m *Model) refreshRows() {
	m.rows = nil
	sess := m.current()
	if sess == nil {
		m.rowCursor = 0
		return
	}
	tree.Walk(sess.View(), func(n *tree.Node, depth int) bool {
		m.rows = append(m.rows, row{node: n, depth: depth})
		return true
	})
	if sel := sess.SelectedID(); sel != "" {
		for i, r := range m.rows {
			if r.node.ID() == sel {
				m.rowCursor = i
				return
			}
		}
	}
	m.rowCursor = clamp(m.rowCursor, len(m.rows))
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (m Model) selectedNode() (*tree.Node, bool) {
	if m.rowCursor < 0 || m.rowCursor >= len(m.rows) {
		return nil, false
	}
	return m.rows[m.rowCursor].node, true
}

func (m *Model) setStatus(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusErr = true
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.editor.SetWidth(max(20, msg.Width/2))
		m.editor.SetHeight(max(5, msg.Height-8))
		return m, nil

	case forestChangedMsg:
		if s := m.current(); s != nil && s.PageID() == msg.pageID {
			m.refreshRows()
		}
		return m, nil

	case stateChangedMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("%s: %w", msg.pageID, msg.err))
		}
		return m, nil

	case saveStatusMsg:
		if msg.index < len(m.records) {
			m.records[msg.index] = msg.rec
		} else if msg.index == len(m.records) {
			m.records = append(m.records, msg.rec)
		}
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("save %s: %w", msg.pageID, msg.err))
		} else {
			m.setStatus("saved %s", msg.pageID)
		}
		m.refreshRows()
		return m, nil

	case saveAllDoneMsg:
		m.records = msg.records
		m.focus = focusResults
		ok, failed, pending := writeback.Summarize(msg.records)
		m.setStatus("saved %d, failed %d, pending %d", ok, failed, pending)
		m.refreshRows()
		return m, nil

	case renamedMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("rename %s: %w", msg.pageID, msg.err))
		} else {
			m.setStatus("renamed %s", msg.pageID)
		}
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.setStatus("reloaded")
		}
		m.refreshPages()
		return m, nil

	case configMsg:
		if msg.err != nil {
			m.setError(fmt.Errorf("config: %w", msg.err))
			return m, nil
		}
		m.title = msg.title
		m.setStatus("config reloaded")
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.focus {
	case focusEdit:
		return m.updateEdit(msg)
	case focusSearch, focusFilter, focusTitle:
		return m.updateInput(msg)
	case focusResults:
		switch msg.String() {
		case "esc", "enter", "q":
			m.focus = focusPages
		}
		return m, nil
	case focusTree:
		return m.updateTree(msg)
	default:
		return m.updatePages(msg)
	}
}

func (m Model) updatePages(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "j", "down":
		if m.pageCursor < len(m.pages)-1 {
			m.pageCursor++
			m.rowCursor = 0
			m.refreshRows()
		}
	case "k", "up":
		if m.pageCursor > 0 {
			m.pageCursor--
			m.rowCursor = 0
			m.refreshRows()
		}
	case "enter", "l", "right":
		if m.current() != nil {
			m.focus = focusTree
			m.selectRow()
		}
	case "/":
		m.focus = focusSearch
		m.search.Focus()
		return m, textinput.Blink
	case "f":
		return m.openInput(focusFilter, m.svc.Workspace().NodeFilter())
	case "t":
		if s := m.current(); s != nil {
			return m.openInput(focusTitle, s.Title())
		}
	case "s":
		return m, m.saveCmd()
	case "S":
		m.records = nil
		return m, m.saveAllCmd()
	case "r":
		return m, m.reloadCmd()
	}
	return m, nil
}

func (m Model) updateTree(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sess := m.current()
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "h", "left":
		m.focus = focusPages
	case "j", "down":
		if m.rowCursor < len(m.rows)-1 {
			m.rowCursor++
			m.selectRow()
		}
	case "k", "up":
		if m.rowCursor > 0 {
			m.rowCursor--
			m.selectRow()
		}
	case "enter", "e":
		n, ok := m.selectedNode()
		if !ok {
			return m, nil
		}
		if n.ID() == "" {
			m.setError(errors.New("node has no id and cannot be edited"))
			return m, nil
		}
		m.editor.SetValue(n.Pretty())
		m.editor.Focus()
		m.focus = focusEdit
		return m, textarea.Blink
	case "d":
		n, ok := m.selectedNode()
		if !ok || n.ID() == "" {
			return m, nil
		}
		if err := m.svc.DeleteNode(m.ctx, sess.PageID(), n.ID()); err != nil {
			m.setError(err)
			return m, nil
		}
		m.setStatus("deleted %s", n.ID())
		m.refreshRows()
	case "u":
		if err := m.svc.Discard(m.ctx, sess.PageID()); err != nil {
			m.setError(err)
			return m, nil
		}
		m.setStatus("discarded edits to %s", sess.PageID())
		m.refreshRows()
	case "y":
		n, ok := m.selectedNode()
		if !ok {
			return m, nil
		}
		if err := m.copy(n.Pretty()); err != nil {
			m.setError(fmt.Errorf("copy: %w", err))
		} else {
			m.setStatus("copied node JSON")
		}
	case "i":
		m.inspector = !m.inspector
	case "f":
		return m.openInput(focusFilter, m.svc.Workspace().NodeFilter())
	case "s":
		return m, m.saveCmd()
	case "S":
		m.records = nil
		return m, m.saveAllCmd()
	}
	return m, nil
}

func (m *Model) selectRow() {
	sess := m.current()
	if n, ok := m.selectedNode(); ok && sess != nil {
		sess.Select(n.ID())
	}
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editor.Blur()
		m.focus = focusTree
		return m, nil
	case "ctrl+s":
		sess := m.current()
		n, ok := m.selectedNode()
		if sess == nil || !ok {
			m.focus = focusTree
			return m, nil
		}
		if err := m.svc.EditNode(m.ctx, sess.PageID(), n.ID(), []byte(m.editor.Value())); err != nil {
			m.setError(err)
			return m, nil
		}
		m.editor.Blur()
		m.focus = focusTree
		m.setStatus("updated %s", n.ID())
		m.refreshRows()
		return m, nil
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) openInput(f focus, value string) (tea.Model, tea.Cmd) {
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
	m.focus = f
	return m, textinput.Blink
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	back := focusPages
	if m.focus == focusFilter && m.current() != nil {
		back = focusTree
	}
	switch msg.String() {
	case "esc":
		if m.focus == focusSearch {
			m.search.SetValue("")
			m.search.Blur()
			m.refreshPages()
		}
		m.input.Blur()
		m.focus = back
		return m, nil
	case "enter":
		var cmd tea.Cmd
		switch m.focus {
		case focusSearch:
			m.search.Blur()
		case focusFilter:
			if err := m.svc.SetNodeFilter(m.ctx, m.input.Value()); err != nil {
				m.setError(err)
			}
			m.refreshRows()
		case focusTitle:
			cmd = m.renameCmd(m.input.Value())
		}
		m.input.Blur()
		m.focus = back
		return m, cmd
	}

	var cmd tea.Cmd
	if m.focus == focusSearch {
		m.search, cmd = m.search.Update(msg)
		m.refreshPages()
		return m, cmd
	}
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) saveCmd() tea.Cmd {
	sess := m.current()
	if sess == nil {
		return nil
	}
	ctx, svc, id := m.ctx, m.svc, sess.PageID()
	return func() tea.Msg {
		_, err := svc.Save(ctx, id)
		return savedMsg{pageID: id, err: err}
	}
}

func (m Model) saveAllCmd() tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		return saveAllDoneMsg{records: svc.SaveAll(ctx, false)}
	}
}

func (m Model) renameCmd(title string) tea.Cmd {
	sess := m.current()
	if sess == nil {
		return nil
	}
	ctx, svc, id := m.ctx, m.svc, sess.PageID()
	return func() tea.Msg {
		return renamedMsg{pageID: id, err: svc.Rename(ctx, id, title)}
	}
}

func (m Model) reloadCmd() tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		return loadedMsg{err: svc.Load(ctx)}
	}
}

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/agentic-research/blocktree/internal/preview"
	"github.com/agentic-research/blocktree/internal/writeback"
)

const indent = "  "

// View renders the screen.
func (m Model) View() string {
	header := m.theme.Header.Render(m.title)
	if term := m.svc.Workspace().NodeFilter(); term != "" {
		header += m.theme.Dim.Render(fmt.Sprintf("  hiding %q", term))
	}

	var body string
	switch m.focus {
	case focusResults:
		body = m.theme.Pane.Render(m.resultsView())
	default:
		left := m.theme.Pane.Width(m.width/3 - 2).Render(m.pagesView())
		right := m.theme.Pane.Width(m.width - m.width/3 - 4).Render(m.rightView())
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.footer())
}

func (m Model) pagesView() string {
	var b strings.Builder
	if m.focus == focusSearch || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	if len(m.pages) == 0 {
		b.WriteString(m.theme.Dim.Render("no pages"))
		return b.String()
	}
	width := max(10, m.width/3-6)
	for i, s := range m.pages {
		st := s.State().String()
		line := preview.Truncate(s.Title(), width-8, "…")
		mark := m.theme.StateStyle(st).Render(fmt.Sprintf("%-6s", st))
		if i == m.pageCursor {
			if m.focus == focusPages {
				line = m.theme.Selected.Render(line)
			} else {
				line = m.theme.Header.Render(line)
			}
		}
		b.WriteString(mark + " " + line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) rightView() string {
	sess := m.current()
	if sess == nil {
		return ""
	}
	switch m.focus {
	case focusEdit:
		return m.theme.Header.Render("Edit node") + "\n" + m.editor.View()
	case focusFilter:
		return "Hide component: " + m.input.View()
	case focusTitle:
		return "Title: " + m.input.View()
	}

	var b strings.Builder
	b.WriteString(m.theme.Dim.Render(sess.URL()))
	b.WriteString("\n")
	if len(m.rows) == 0 {
		b.WriteString(m.theme.Dim.Render("empty page"))
	}
	width := max(10, m.width-m.width/3-10)
	for i, r := range m.rows {
		pad := strings.Repeat(indent, r.depth)
		label := preview.Label(r.node, width-len(pad))
		if i == m.rowCursor && m.focus == focusTree {
			label = m.theme.Selected.Render(label)
		}
		b.WriteString(pad + label + "\n")
	}
	if m.inspector && m.focus == focusTree {
		if n, ok := m.selectedNode(); ok {
			b.WriteString("\n")
			b.WriteString(m.renderJSON(n.Pretty()))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderJSON(src string) string {
	if m.md == nil {
		return src
	}
	out, err := m.md.Render("```json\n" + src + "\n```")
	if err != nil {
		return src
	}
	return out
}

func (m Model) resultsView() string {
	var b strings.Builder
	b.WriteString(m.theme.Header.Render("Save all"))
	b.WriteString("\n")
	for _, r := range m.records {
		st := m.theme.StateStyle(string(r.Status)).Render(fmt.Sprintf("%-8s", r.Status))
		line := st + " " + r.Title
		if r.Status == writeback.StatusError {
			line += m.theme.Dim.Render("  " + r.Error)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) footer() string {
	if m.status != "" {
		if m.statusErr {
			return m.theme.StateStyle("error").Render(m.status)
		}
		return m.theme.Status.Render(m.status)
	}
	var keys string
	switch m.focus {
	case focusTree:
		keys = "j/k move  e edit  d delete  y copy  i inspect  f filter  s save  S save all  u discard  esc back"
	case focusEdit:
		keys = "ctrl+s apply  esc cancel"
	case focusResults:
		keys = "esc close"
	default:
		keys = "j/k move  enter open  / search  t title  f filter  s save  S save all  r reload  q quit"
	}
	return m.theme.Status.Render(keys)
}

package ui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/blocktree/api"
	"github.com/agentic-research/blocktree/internal/editor"
	"github.com/agentic-research/blocktree/internal/session"
	"github.com/agentic-research/blocktree/internal/tree"
	"github.com/agentic-research/blocktree/internal/writeback"
)

type fakeBackend struct {
	pages []api.Page
	saved map[string]tree.Forest
	fail  map[string]error
}

func (b *fakeBackend) ListPages(context.Context) ([]api.Page, error) { return b.pages, nil }

func (b *fakeBackend) UpdatePageTitle(_ context.Context, id, _ string) (json.RawMessage, error) {
	if err := b.fail[id]; err != nil {
		return nil, err
	}
	return json.RawMessage(`{}`), nil
}

func (b *fakeBackend) SaveBlocks(_ context.Context, p api.Page, f tree.Forest) (json.RawMessage, error) {
	if err := b.fail[p.ID]; err != nil {
		return nil, err
	}
	b.saved[p.ID] = f
	return json.RawMessage(`{}`), nil
}

func newModel(t *testing.T) (Model, *fakeBackend) {
	t.Helper()
	f, err := tree.ParseForest([]byte(`[{"id":"1","children":[{"id":"2","component":{"name":"Ad"}},{"id":"3","component":{"name":"Text","options":{"text":"<p>Hello</p>"}}}]}]`))
	require.NoError(t, err)
	b := &fakeBackend{
		pages: []api.Page{
			{ID: "home", Data: api.PageData{Title: "Home", URL: "/", Blocks: f}},
			{ID: "pricing", Data: api.PageData{Title: "Pricing", URL: "/pricing", Blocks: f}},
		},
		saved: map[string]tree.Forest{},
		fail:  map[string]error{},
	}
	svc := editor.New(b)
	require.NoError(t, svc.Load(context.Background()))
	m := New(context.Background(), svc, "Builder Admin")
	m.copy = func(string) error { return nil }
	return m, b
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(Model)
	}
	return m, cmd
}

func TestNavigateAndDelete(t *testing.T) {
	m, _ := newModel(t)
	require.Len(t, m.pages, 2)
	assert.Len(t, m.rows, 3)

	m, _ = press(t, m, "enter", "j")
	assert.Equal(t, focusTree, m.focus)
	n, ok := m.selectedNode()
	require.True(t, ok)
	assert.Equal(t, "2", n.ID())
	assert.Equal(t, "2", m.current().SelectedID())

	m, _ = press(t, m, "d")
	assert.Len(t, m.rows, 2)
	assert.Equal(t, session.Dirty, m.current().State())
	assert.Equal(t, "", m.current().SelectedID(), "deleting the selected node clears the selection")
	assert.Contains(t, m.View(), "dirty")
}

func TestEditNode(t *testing.T) {
	m, _ := newModel(t)
	m, _ = press(t, m, "enter", "j", "j", "e")
	require.Equal(t, focusEdit, m.focus)
	assert.Contains(t, m.editor.Value(), `"id": "3"`)

	m.editor.SetValue(`{"id":"3","component":{"name":"Image"}}`)
	m, _ = press(t, m, "ctrl+s")
	assert.Equal(t, focusTree, m.focus)
	n, ok := m.current().Find("3")
	require.True(t, ok)
	assert.Equal(t, "Image", tree.ComponentName(n))

	m, _ = press(t, m, "e")
	m.editor.SetValue(`{"id":"other"}`)
	m, _ = press(t, m, "ctrl+s")
	assert.Equal(t, focusEdit, m.focus, "rejected edit keeps the editor open")
	assert.True(t, m.statusErr)
}

func TestSaveCmd(t *testing.T) {
	m, b := newModel(t)
	m, _ = press(t, m, "enter", "j", "d")
	_, cmd := press(t, m, "s")
	require.NotNil(t, cmd)

	next, _ := m.Update(cmd())
	m = next.(Model)
	assert.Equal(t, "saved home", m.status)
	assert.Equal(t, session.Clean, m.current().State())
	_, ok := tree.Find(b.saved["home"], "2")
	assert.False(t, ok)
}

func TestSaveAllShowsResults(t *testing.T) {
	m, b := newModel(t)
	b.fail["pricing"] = errors.New("Access denied. You do not have permission to perform this action.")

	_, cmd := press(t, m, "S")
	require.NotNil(t, cmd)
	msg := cmd()
	next, _ := m.Update(msg)
	m = next.(Model)

	assert.Equal(t, focusResults, m.focus)
	require.Len(t, m.records, 2)
	assert.Equal(t, writeback.StatusSuccess, m.records[0].Status)
	assert.Equal(t, writeback.StatusError, m.records[1].Status)
	view := m.View()
	assert.Contains(t, view, "Access denied")
	assert.Equal(t, "saved 1, failed 1, pending 0", m.status)
}

func TestNodeFilter(t *testing.T) {
	m, _ := newModel(t)
	m, _ = press(t, m, "f")
	require.Equal(t, focusFilter, m.focus)
	m, _ = press(t, m, "A", "d", "enter")
	assert.Equal(t, "Ad", m.svc.Workspace().NodeFilter())
	assert.Len(t, m.rows, 2)
	assert.True(t, strings.Contains(m.View(), `hiding "Ad"`))
}

func TestSearchPages(t *testing.T) {
	m, _ := newModel(t)
	m, _ = press(t, m, "/", "p", "r", "i")
	assert.Len(t, m.pages, 1)
	assert.Equal(t, "pricing", m.current().PageID())
	m, _ = press(t, m, "esc")
	assert.Len(t, m.pages, 2)
}

func TestTextPreviewInTree(t *testing.T) {
	m, _ := newModel(t)
	assert.Contains(t, m.View(), "Text: Hello")
}

func TestRelayListenerWithoutProgram(t *testing.T) {
	l := NewRelay().Listener()
	require.NotNil(t, l.ForestChanged)
	require.NotNil(t, l.SelectionChanged)
	require.NotNil(t, l.StateChanged)
	assert.NotPanics(t, func() {
		l.ForestChanged("p1", nil)
		l.SelectionChanged("p1", "2")
		l.StateChanged("p1", session.Dirty, nil)
	})
}

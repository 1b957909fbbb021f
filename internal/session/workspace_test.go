package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/blocktree/api"
)

func pageIDs(ss []*Session) []string {
	ids := make([]string, len(ss))
	for i, s := range ss {
		ids[i] = s.PageID()
	}
	return ids
}

func TestWorkspace_LoadKeepsOrderAndDropsDuplicates(t *testing.T) {
	w := NewWorkspace()
	w.Load([]api.Page{
		testPage(t, "b", "/b", `[]`),
		testPage(t, "a", "/a", `[]`),
		testPage(t, "b", "/b2", `[]`),
	})
	assert.Equal(t, []string{"b", "a"}, pageIDs(w.Sessions()))
}

func TestWorkspace_URLFilter(t *testing.T) {
	w := NewWorkspace()
	w.Load([]api.Page{
		testPage(t, "home", "/", `[]`),
		testPage(t, "pricing", "/pricing", `[]`),
		testPage(t, "blog", "/blog", `[]`),
	})
	assert.Len(t, w.Visible(), 3, "empty allow-list shows everything")

	w.SetURLFilter([]string{"/pricing", "https://example.com/blog"})
	assert.Equal(t, []string{"pricing", "blog"}, pageIDs(w.Visible()))
	assert.Len(t, w.Sessions(), 3, "filtering never drops sessions")

	w.SetURLFilter(nil)
	assert.Len(t, w.Visible(), 3)
}

func TestWorkspace_ReloadPreservesEditsUnlessUpstreamChanged(t *testing.T) {
	w := NewWorkspace()
	a := testPage(t, "a", "/a", blocks)
	b := testPage(t, "b", "/b", blocks)
	w.Load([]api.Page{a, b})

	sa, _ := w.Session("a")
	sb, _ := w.Session("b")
	sa.DeleteNode("2")
	sb.DeleteNode("2")
	assert.Equal(t, []string{"a", "b"}, pageIDs(w.Modified()))

	b.LastUpdated = 42
	w.Load([]api.Page{a, b})

	again, ok := w.Session("a")
	require.True(t, ok)
	assert.Same(t, sa, again)
	assert.Equal(t, Dirty, sa.State(), "same upstream keeps local edits")
	assert.Equal(t, Clean, sb.State(), "new upstream resets the session")

	w.Load([]api.Page{b})
	_, ok = w.Session("a")
	assert.False(t, ok, "pages that leave the list are dropped")
}

func TestWorkspace_NodeFilterReachesNewSessions(t *testing.T) {
	w := NewWorkspace()
	w.Load([]api.Page{testPage(t, "a", "/a", blocks)})
	w.SetNodeFilter("Ad")
	w.Load([]api.Page{testPage(t, "a", "/a", blocks), testPage(t, "c", "/c", blocks)})

	for _, s := range w.Sessions() {
		assert.Equal(t, "Ad", s.FilterTerm())
		_, ok := s.Find("3")
		assert.True(t, ok, "filter never edits the forest")
	}
	assert.Equal(t, "Ad", w.NodeFilter())
}

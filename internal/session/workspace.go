package session

import (
	"sync"

	"github.com/agentic-research/blocktree/api"
	"github.com/agentic-research/blocktree/internal/filter"
	"github.com/agentic-research/blocktree/internal/tree"
)

// Workspace holds one session per loaded page, in list order, along with
// the page-level URL allow-list and the node filter shared by all pages.
type Workspace struct {
	mu       sync.RWMutex
	order    []string
	sessions map[string]*Session
	allow    []string
	term     string
	opts     []Option
}

// NewWorkspace returns an empty workspace. opts are applied to every
// session it creates.
func NewWorkspace(opts ...Option) *Workspace {
	return &Workspace{sessions: make(map[string]*Session), opts: opts}
}

// Load installs a fresh page list. Sessions for pages still present are
// kept, and reset only when their upstream data changed; sessions for
// pages that left the list are dropped.
func (w *Workspace) Load(pages []api.Page) {
	w.mu.Lock()
	defer w.mu.Unlock()

	next := make(map[string]*Session, len(pages))
	order := make([]string, 0, len(pages))
	for _, p := range pages {
		if _, dup := next[p.ID]; dup {
			continue
		}
		s, ok := w.sessions[p.ID]
		switch {
		case !ok:
			s = New(p, w.opts...)
		case upstreamChanged(s, p):
			s.Reset(p)
		}
		s.SetFilterTerm(w.term)
		next[p.ID] = s
		order = append(order, p.ID)
	}
	w.sessions = next
	w.order = order
}

func upstreamChanged(s *Session, p api.Page) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page.LastUpdated != p.LastUpdated {
		return true
	}
	return !tree.Equal(s.page.Data.Blocks, p.Data.Blocks)
}

// Session returns the session for a page id.
func (w *Workspace) Session(pageID string) (*Session, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.sessions[pageID]
	return s, ok
}

// Sessions returns every session in list order, ignoring the URL filter.
func (w *Workspace) Sessions() []*Session {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Session, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.sessions[id])
	}
	return out
}

// Visible returns the sessions whose page URL passes the allow-list.
func (w *Workspace) Visible() []*Session {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Session, 0, len(w.order))
	for _, id := range w.order {
		s := w.sessions[id]
		if filter.URLAllowed(s.URL(), w.allow) {
			out = append(out, s)
		}
	}
	return out
}

// Modified returns visible sessions with unsaved edits.
func (w *Workspace) Modified() []*Session {
	var out []*Session
	for _, s := range w.Visible() {
		if st := s.State(); st == Dirty || s.IsModified() {
			out = append(out, s)
		}
	}
	return out
}

// URLFilter returns the active allow-list.
func (w *Workspace) URLFilter() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.allow...)
}

// SetURLFilter replaces the allow-list. An empty list shows every page.
func (w *Workspace) SetURLFilter(allow []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.allow = append([]string(nil), allow...)
}

// NodeFilter returns the component term excluded from every page's view.
func (w *Workspace) NodeFilter() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.term
}

// SetNodeFilter applies a component-exclusion term to all sessions.
func (w *Workspace) SetNodeFilter(term string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.term = term
	for _, s := range w.sessions {
		s.SetFilterTerm(term)
	}
}

// Package session tracks local edits to one page's block forest against the
// last snapshot loaded from the content store.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/agentic-research/blocktree/api"
	"github.com/agentic-research/blocktree/internal/filter"
	"github.com/agentic-research/blocktree/internal/tree"
)

// State is the persistence state of a session.
type State int

const (
	// Clean means the forest matches the baseline.
	Clean State = iota
	// Dirty means local edits have not been persisted.
	Dirty
	// Saving means a save is in flight.
	Saving
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	default:
		return "unknown"
	}
}

// Saver persists a forest for a page and returns the store's response.
type Saver interface {
	SaveBlocks(ctx context.Context, page api.Page, forest tree.Forest) (json.RawMessage, error)
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, page api.Page, forest tree.Forest) (json.RawMessage, error)

func (f SaverFunc) SaveBlocks(ctx context.Context, page api.Page, forest tree.Forest) (json.RawMessage, error) {
	return f(ctx, page, forest)
}

// Listener receives change notifications. Nil fields are skipped. Callbacks
// run after the session lock is released and may call back into it.
type Listener struct {
	ForestChanged    func(pageID string, forest tree.Forest)
	SelectionChanged func(pageID, nodeID string)
	StateChanged     func(pageID string, state State, err error)
}

// Option configures a Session.
type Option func(*Session)

// WithSaver sets the Saver used by Save.
func WithSaver(s Saver) Option { return func(ss *Session) { ss.saver = s } }

// WithListener registers change callbacks.
func WithListener(l Listener) Option { return func(ss *Session) { ss.listener = l } }

// WithLogger sets the logger. A nil logger falls back to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(ss *Session) {
		if l != nil {
			ss.log = l
		}
	}
}

// Session is the edit state of one page. All methods are safe for
// concurrent use; each runs to completion before another observes state.
type Session struct {
	mu sync.Mutex

	page     api.Page
	baseline tree.Forest
	forest   tree.Forest
	term     string
	selected string
	state    State
	gen      uint64 // bumped on every forest mutation
	lastErr  error
	response json.RawMessage

	saver    Saver
	listener Listener
	log      *slog.Logger

	pending []func()
}

// New starts a Clean session whose baseline is the page's blocks.
func New(page api.Page, opts ...Option) *Session {
	s := &Session{
		page:     page,
		baseline: page.Data.Blocks,
		forest:   page.Data.Blocks,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("page", page.ID)
	return s
}

// run executes fn under the lock and then fires any queued events.
func (s *Session) run(fn func()) {
	s.mu.Lock()
	fn()
	events := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, ev := range events {
		ev()
	}
}

func (s *Session) emitForest() {
	if cb := s.listener.ForestChanged; cb != nil {
		id, f := s.page.ID, s.forest
		s.pending = append(s.pending, func() { cb(id, f) })
	}
}

func (s *Session) emitSelection() {
	if cb := s.listener.SelectionChanged; cb != nil {
		id, sel := s.page.ID, s.selected
		s.pending = append(s.pending, func() { cb(id, sel) })
	}
}

func (s *Session) setState(st State, err error) {
	if st == s.state && err == nil {
		return
	}
	s.state = st
	if cb := s.listener.StateChanged; cb != nil {
		id := s.page.ID
		s.pending = append(s.pending, func() { cb(id, st, err) })
	}
}

// setForest installs f as the working forest and marks the session Dirty
// unless a save is in flight. Returns false when f is the current forest.
func (s *Session) setForest(f tree.Forest) bool {
	if sameForest(f, s.forest) {
		return false
	}
	s.forest = f
	s.gen++
	s.emitForest()
	if s.state != Saving {
		s.setState(Dirty, nil)
	}
	return true
}

// sameForest reports whether a and b are the same backing slice. The tree
// mutators return their input unchanged when nothing matched.
func sameForest(a, b tree.Forest) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}

func (s *Session) PageID() string { return s.page.ID }

// Title returns the page title as last loaded or renamed.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.Data.Title
}

// URL returns the page's site path.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.Data.URL
}

// Page returns the page metadata with the working forest as its blocks.
func (s *Session) Page() api.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.page
	p.Data.Blocks = s.forest
	return p
}

// Forest returns the full, unfiltered working forest.
func (s *Session) Forest() tree.Forest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forest
}

// Baseline returns the last forest known to match the content store.
func (s *Session) Baseline() tree.Forest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error of the last failed save, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastResponse returns the payload of the last successful save.
func (s *Session) LastResponse() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.response
}

// FilterTerm returns the active component-exclusion term.
func (s *Session) FilterTerm() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term
}

// SetFilterTerm changes the component-exclusion term. The working forest is
// untouched.
func (s *Session) SetFilterTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.term = term
}

// View returns the working forest with the active filter applied.
func (s *Session) View() tree.Forest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filter.ExcludeComponent(s.forest, s.term)
}

// Select sets the selected node id. An empty id clears the selection.
func (s *Session) Select(id string) {
	s.run(func() {
		if s.selected == id {
			return
		}
		s.selected = id
		s.emitSelection()
	})
}

// SelectedID returns the selected id, which may be stale.
func (s *Session) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Selected resolves the selection against the working forest.
func (s *Session) Selected() (*tree.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tree.Find(s.forest, s.selected)
}

// Find looks up a node in the working forest.
func (s *Session) Find(id string) (*tree.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tree.Find(s.forest, id)
}

// Save persists the forest the editor currently sees: the filtered view when
// a filter term is active, otherwise the full forest, in both cases with
// empty nodes stripped. A second Save while one is in flight fails with
// ErrSaveInProgress. Edits made during the save are kept and leave the
// session Dirty.
func (s *Session) Save(ctx context.Context) (json.RawMessage, error) {
	var (
		sent tree.Forest
		page api.Page
		gen  uint64
		err  error
	)
	s.run(func() {
		switch {
		case s.saver == nil:
			err = ErrNoSaver
			return
		case s.state == Saving:
			err = ErrSaveInProgress
			return
		}
		sent = tree.StripEmpty(filter.ExcludeComponent(s.forest, s.term))
		page = s.page
		gen = s.gen
		s.setState(Saving, nil)
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("saving page", "nodes", tree.Count(sent), "filter", s.FilterTerm())
	resp, err := s.saver.SaveBlocks(ctx, page, sent)

	s.run(func() {
		if err != nil {
			s.lastErr = err
			s.setState(Dirty, err)
			return
		}
		s.lastErr = nil
		s.response = resp
		s.baseline = sent
		s.page.Data.Blocks = sent
		s.commit(resp)
		if s.gen != gen {
			s.setState(Dirty, nil)
			return
		}
		if !sameForest(s.forest, sent) {
			s.forest = sent
			s.emitForest()
		}
		s.setState(Clean, nil)
	})
	if err != nil {
		s.log.Warn("save failed", "error", err)
		return nil, err
	}
	s.log.Info("page saved")
	return resp, nil
}

// Rename records a new title after the store accepted it. resp is the
// store's reply to the write.
func (s *Session) Rename(title string, resp json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page.Data.Title = title
	s.commit(resp)
}

// commit moves the page's lastUpdated to the one the store reported for a
// write, so drafts taken afterwards are based on the committed revision.
// Caller holds s.mu.
func (s *Session) commit(resp json.RawMessage) {
	if len(resp) == 0 {
		return
	}
	var meta struct {
		LastUpdated *int64 `json:"lastUpdated"`
	}
	if err := json.Unmarshal(resp, &meta); err != nil || meta.LastUpdated == nil {
		return
	}
	s.page.LastUpdated = *meta.LastUpdated
}

// Discard drops local edits and returns to the baseline.
func (s *Session) Discard() {
	s.run(func() {
		if s.state == Saving {
			return
		}
		if !sameForest(s.forest, s.baseline) {
			s.forest = s.baseline
			s.gen++
			s.emitForest()
		}
		s.lastErr = nil
		s.setState(Clean, nil)
	})
}

// Reset replaces the baseline and working forest with fresh upstream data.
// Pending edits are dropped. A save in flight keeps the Saving state and
// will be treated as superseded.
func (s *Session) Reset(page api.Page) {
	s.run(func() {
		s.page = page
		s.baseline = page.Data.Blocks
		s.forest = page.Data.Blocks
		s.gen++
		s.emitForest()
		if s.state != Saving {
			s.lastErr = nil
			s.setState(Clean, nil)
		}
	})
}

// Restore installs a previously stored draft as the working forest. The
// session is Dirty unless the draft equals the baseline.
func (s *Session) Restore(draft tree.Forest) {
	s.run(func() {
		if s.state == Saving {
			return
		}
		if tree.Equal(draft, s.baseline) {
			return
		}
		s.setForest(draft)
	})
}

// IsModified reports whether the working forest differs from the baseline.
func (s *Session) IsModified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sameForest(s.forest, s.baseline) {
		return false
	}
	return !tree.Equal(s.forest, s.baseline)
}

// Package editor ties the content client, the preference store and the
// per-page edit sessions together. The CLI, the terminal UI and the MCP
// server all drive pages through a Service.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/agentic-research/blocktree/api"
	"github.com/agentic-research/blocktree/internal/graph"
	"github.com/agentic-research/blocktree/internal/prefs"
	"github.com/agentic-research/blocktree/internal/query"
	"github.com/agentic-research/blocktree/internal/session"
	"github.com/agentic-research/blocktree/internal/tree"
	"github.com/agentic-research/blocktree/internal/writeback"
)

// ErrUnknownPage is returned for page ids that are not loaded.
var ErrUnknownPage = errors.New("unknown page")

// Backend is the subset of the content API the service needs.
// *content.Client implements it.
type Backend interface {
	session.Saver
	ListPages(ctx context.Context) ([]api.Page, error)
	UpdatePageTitle(ctx context.Context, pageID, title string) (json.RawMessage, error)
}

// Service owns the workspace of loaded pages.
type Service struct {
	backend  Backend
	store    *prefs.Store
	ws       *session.Workspace
	log      *slog.Logger
	listener session.Listener
	onStatus func(int, writeback.Record)
}

// Option configures a Service.
type Option func(*Service)

// WithStore enables persisted filters and drafts.
func WithStore(st *prefs.Store) Option { return func(s *Service) { s.store = st } }

// WithLogger sets the logger. A nil logger falls back to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithListener forwards session events, e.g. to a UI.
func WithListener(l session.Listener) Option { return func(s *Service) { s.listener = l } }

// WithSaveStatus receives bulk save progress.
func WithSaveStatus(fn func(index int, rec writeback.Record)) Option {
	return func(s *Service) { s.onStatus = fn }
}

// New returns a Service backed by b.
func New(b Backend, opts ...Option) *Service {
	s := &Service{backend: b, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	sessOpts := []session.Option{
		session.WithSaver(b),
		session.WithLogger(s.log),
		session.WithListener(s.listener),
	}
	s.ws = session.NewWorkspace(sessOpts...)
	return s
}

// Workspace exposes the underlying sessions.
func (s *Service) Workspace() *session.Workspace { return s.ws }

// Load fetches pages, applies stored filters and restores drafts whose
// upstream has not moved on. Drafts over a newer upstream are discarded.
func (s *Service) Load(ctx context.Context) error {
	pages, err := s.backend.ListPages(ctx)
	if err != nil {
		return fmt.Errorf("list pages: %w", err)
	}
	if s.store != nil {
		urls, err := s.store.URLFilters(ctx)
		if err != nil {
			return err
		}
		term, err := s.store.NodeFilter(ctx)
		if err != nil {
			return err
		}
		s.ws.SetURLFilter(urls)
		s.ws.SetNodeFilter(term)
	}
	s.ws.Load(pages)
	s.log.Info("pages loaded", "count", len(pages))
	return s.restoreDrafts(ctx)
}

func (s *Service) restoreDrafts(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	drafts, err := s.store.Drafts(ctx)
	if err != nil {
		return err
	}
	for _, d := range drafts {
		sess, ok := s.ws.Session(d.PageID)
		if !ok {
			continue
		}
		if sess.Page().LastUpdated != d.BaseUpdated {
			s.log.Warn("dropping stale draft", "page_id", d.PageID,
				"draft_base", d.BaseUpdated, "upstream", sess.Page().LastUpdated)
			if err := s.store.DeleteDraft(ctx, d.PageID); err != nil {
				return err
			}
			continue
		}
		sess.Restore(d.Forest)
	}
	return nil
}

// Pages returns the sessions shown in the page list: those passing the URL
// allow-list, or every session when all is set.
func (s *Service) Pages(all bool) []*session.Session {
	if all {
		return s.ws.Sessions()
	}
	return s.ws.Visible()
}

// Session returns the session for pageID.
func (s *Service) Session(pageID string) (*session.Session, error) {
	sess, ok := s.ws.Session(pageID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPage, pageID)
	}
	return sess, nil
}

// EditNode replaces node nodeID with the JSON object raw.
func (s *Service) EditNode(ctx context.Context, pageID, nodeID string, raw []byte) error {
	sess, err := s.Session(pageID)
	if err != nil {
		return err
	}
	if err := sess.EditJSON(nodeID, raw); err != nil {
		return err
	}
	return s.persist(ctx, sess)
}

// DeleteNode removes every node with nodeID. Unknown ids are a no-op.
func (s *Service) DeleteNode(ctx context.Context, pageID, nodeID string) error {
	sess, err := s.Session(pageID)
	if err != nil {
		return err
	}
	sess.DeleteNode(nodeID)
	return s.persist(ctx, sess)
}

// DeletePath removes the nodes a JSONPath expression selects and returns
// their ids.
func (s *Service) DeletePath(ctx context.Context, pageID, expr string) ([]string, error) {
	sess, err := s.Session(pageID)
	if err != nil {
		return nil, err
	}
	ids, err := query.IDs(sess.Forest(), expr)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sess.DeleteNodes(ids)
	return ids, s.persist(ctx, sess)
}

// Save persists one page. The draft is removed on success and kept on
// failure.
func (s *Service) Save(ctx context.Context, pageID string) (json.RawMessage, error) {
	sess, err := s.Session(pageID)
	if err != nil {
		return nil, err
	}
	resp, err := sess.Save(ctx)
	if err != nil {
		return nil, err
	}
	return resp, s.persist(ctx, sess)
}

// SaveAll saves the listed pages one after another, or every loaded page
// when all is set. Failures are reported per record.
func (s *Service) SaveAll(ctx context.Context, all bool) []writeback.Record {
	sessions := s.Pages(all)
	targets := make([]writeback.Target, len(sessions))
	for i, sess := range sessions {
		targets[i] = sess
	}
	opts := []writeback.Option{writeback.WithLogger(s.log)}
	if s.onStatus != nil {
		opts = append(opts, writeback.OnStatus(s.onStatus))
	}
	records := writeback.NewOrchestrator(opts...).Run(ctx, targets)
	for i, rec := range records {
		if rec.Status != writeback.StatusSuccess {
			continue
		}
		if err := s.persist(context.WithoutCancel(ctx), sessions[i]); err != nil {
			s.log.Warn("draft cleanup failed", "page_id", rec.PageID, "error", err)
		}
	}
	return records
}

// Rename changes a page title upstream. An unchanged title is not sent; on
// failure the old title is kept.
func (s *Service) Rename(ctx context.Context, pageID, title string) error {
	sess, err := s.Session(pageID)
	if err != nil {
		return err
	}
	if title == sess.Title() {
		return nil
	}
	resp, err := s.backend.UpdatePageTitle(ctx, pageID, title)
	if err != nil {
		return err
	}
	sess.Rename(title, resp)
	s.log.Info("page renamed", "page_id", pageID)
	return nil
}

// SetURLFilters replaces and stores the URL allow-list.
func (s *Service) SetURLFilters(ctx context.Context, urls []string) error {
	s.ws.SetURLFilter(urls)
	if s.store == nil {
		return nil
	}
	return s.store.SetURLFilters(ctx, urls)
}

// SetNodeFilter replaces and stores the component-name filter.
func (s *Service) SetNodeFilter(ctx context.Context, term string) error {
	s.ws.SetNodeFilter(term)
	if s.store == nil {
		return nil
	}
	return s.store.SetNodeFilter(ctx, term)
}

// Discard drops local edits to a page, including its stored draft.
func (s *Service) Discard(ctx context.Context, pageID string) error {
	sess, err := s.Session(pageID)
	if err != nil {
		return err
	}
	sess.Discard()
	return s.persist(ctx, sess)
}

// Apply installs an externally edited forest, such as an imported file, as
// the page's working forest.
func (s *Service) Apply(ctx context.Context, pageID string, f tree.Forest) error {
	sess, err := s.Session(pageID)
	if err != nil {
		return err
	}
	if sess.State() == session.Saving {
		return session.ErrSaveInProgress
	}
	sess.Restore(f)
	return s.persist(ctx, sess)
}

// Components builds a component inventory over the loaded working forests.
func (s *Service) Components() *graph.Index {
	sessions := s.ws.Sessions()
	pages := make([]api.Page, len(sessions))
	for i, sess := range sessions {
		pages[i] = sess.Page()
	}
	return graph.Build(pages)
}

// Drafted lists page ids with a stored draft.
func (s *Service) Drafted(ctx context.Context) ([]string, error) {
	if s.store == nil {
		return nil, nil
	}
	drafts, err := s.store.Drafts(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(drafts))
	for i, d := range drafts {
		ids[i] = d.PageID
	}
	sort.Strings(ids)
	return ids, nil
}

// persist writes the session's forest as a draft while it has local
// changes and removes the draft otherwise.
func (s *Service) persist(ctx context.Context, sess *session.Session) error {
	if s.store == nil {
		return nil
	}
	if !sess.IsModified() {
		return s.store.DeleteDraft(ctx, sess.PageID())
	}
	return s.store.SaveDraft(ctx, prefs.Draft{
		PageID:      sess.PageID(),
		Forest:      sess.Forest(),
		BaseUpdated: sess.Page().LastUpdated,
	})
}

// Diff reports ids present only in the baseline (removed) and only in the
// working forest (added), plus ids whose node content changed.
func Diff(sess *session.Session) (removed, added, changed []string) {
	base := index(sess.Baseline())
	work := index(sess.Forest())
	for _, id := range tree.IDs(sess.Baseline()) {
		w, ok := work[id]
		if !ok {
			removed = append(removed, id)
			continue
		}
		if !tree.Equal(tree.Forest{base[id]}, tree.Forest{w}) {
			changed = append(changed, id)
		}
	}
	for _, id := range tree.IDs(sess.Forest()) {
		if _, ok := base[id]; !ok {
			added = append(added, id)
		}
	}
	return removed, added, changed
}

func index(f tree.Forest) map[string]*tree.Node {
	m := make(map[string]*tree.Node)
	tree.Walk(f, func(n *tree.Node, _ int) bool {
		if id := n.ID(); id != "" {
			if _, dup := m[id]; !dup {
				m[id] = n
			}
		}
		return true
	})
	return m
}

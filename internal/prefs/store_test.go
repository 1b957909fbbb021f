package prefs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/blocktree/internal/config"
	"github.com/agentic-research/blocktree/internal/tree"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDefaultsWhenAbsent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	urls, err := s.URLFilters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, urls)

	term, err := s.NodeFilter(ctx)
	require.NoError(t, err)
	assert.Empty(t, term)

	rec, err := s.Config(ctx)
	require.NoError(t, err)
	assert.True(t, rec.IsZero())
}

func TestRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetURLFilters(ctx, []string{"/pricing", "/blog"}))
	require.NoError(t, s.SetNodeFilter(ctx, "Ad"))
	require.NoError(t, s.SetConfig(ctx, config.Record{APIKey: "k", Title: "Mine"}))

	urls, err := s.URLFilters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/pricing", "/blog"}, urls)

	term, err := s.NodeFilter(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ad", term)

	rec, err := s.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, config.Record{APIKey: "k", Title: "Mine"}, rec)

	// Overwrite, and clear with nil.
	require.NoError(t, s.SetURLFilters(ctx, nil))
	urls, err = s.URLFilters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{}, urls)
}

func TestCorruptValueIsAnError(t *testing.T) {
	s := newStore(t)
	_, err := s.db.Exec(`INSERT INTO prefs (key, value, updated) VALUES ('url_filters', 'not json', 0)`)
	require.NoError(t, err)
	_, err = s.URLFilters(context.Background())
	assert.ErrorContains(t, err, "decode url_filters")
}

func TestDrafts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, ok, err := s.Draft(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	f, err := tree.ParseForest([]byte(`[{"id":"a","blocks":[{"id":"b"}]}]`))
	require.NoError(t, err)
	require.NoError(t, s.SaveDraft(ctx, Draft{PageID: "p2", Forest: f, BaseUpdated: 10}))
	require.NoError(t, s.SaveDraft(ctx, Draft{PageID: "p1", Forest: tree.Forest{}, BaseUpdated: 5}))

	d, ok, err := s.Draft(ctx, "p2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, tree.Equal(f, d.Forest))
	assert.Equal(t, int64(10), d.BaseUpdated)
	assert.False(t, d.SavedAt.IsZero())

	all, err := s.Drafts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "p1", all[0].PageID)

	require.NoError(t, s.DeleteDraft(ctx, "p2"))
	require.NoError(t, s.DeleteDraft(ctx, "p2"))
	_, ok, err = s.Draft(ctx, "p2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetNodeFilter(context.Background(), "Columns"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	term, err := s.NodeFilter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Columns", term)
}

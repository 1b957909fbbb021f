package content

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/blocktree/api"
	"github.com/agentic-research/blocktree/internal/cmsmock"
	"github.com/agentic-research/blocktree/internal/config"
	"github.com/agentic-research/blocktree/internal/tree"
)

func mustForest(t *testing.T, src string) tree.Forest {
	t.Helper()
	f, err := tree.ParseForest([]byte(src))
	require.NoError(t, err)
	return f
}

func setup(t *testing.T, pages ...api.Page) (*Client, *cmsmock.Server) {
	t.Helper()
	mock := cmsmock.New("pub", "secret", pages)
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)
	cfg := config.Default()
	cfg.BaseURL = srv.URL
	cfg.WriteURL = srv.URL
	cfg.APIKey = "pub"
	cfg.PrivateKey = "secret"
	return NewClient(cfg), mock
}

func TestListPages(t *testing.T) {
	c, _ := setup(t,
		api.Page{ID: "p1", Name: "Home", Published: "published",
			Data: api.PageData{Title: "Home", URL: "/", Blocks: mustForest(t, `[{"id":"x","children":[]}]`)}},
		api.Page{ID: "p2", Data: api.PageData{Title: "Draft", URL: "/draft"}},
	)
	pages, err := c.ListPages(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "Home", pages[0].Data.Title)
	assert.True(t, pages[0].IsPublished())
	x, ok := tree.Find(pages[0].Data.Blocks, "x")
	require.True(t, ok)
	assert.True(t, x.HasSlot(tree.SlotChildren))
}

func TestListPages_QueryParameters(t *testing.T) {
	var got http.Header
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header
		query = r.URL.Query()
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.BaseURL = srv.URL + "/"
	cfg.APIKey = "pub"
	pages, err := NewClient(cfg).ListPages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pages)
	assert.Equal(t, []string{"pub"}, query["apiKey"])
	assert.Equal(t, []string{"120"}, query["limit"])
	assert.Equal(t, []string{"true"}, query["cachebust"])
	assert.Equal(t, []string{"page"}, query["model"])
	assert.Contains(t, query["fields"][0], "data.blocks")
	assert.Empty(t, got.Get("Authorization"), "reads never send the private key")
}

func TestListPages_InvalidFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()
	cfg := config.Default()
	cfg.BaseURL = srv.URL
	_, err := NewClient(cfg).ListPages(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid API response format", apiErr.Message)
}

func TestListPages_CollapsesConcurrentCalls(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"results":[{"id":"a","data":{"blocks":[]}}]}`))
	}))
	defer srv.Close()
	cfg := config.Default()
	cfg.BaseURL = srv.URL
	c := NewClient(cfg)

	var wg sync.WaitGroup
	started := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			pages, err := c.ListPages(context.Background())
			assert.NoError(t, err)
			assert.Len(t, pages, 1)
		}()
	}
	for i := 0; i < 4; i++ {
		<-started
	}
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, hits.Load(), int32(4))
	assert.GreaterOrEqual(t, hits.Load(), int32(1))
}

func TestUpdatePageBlocks_PassesAuxiliaryFields(t *testing.T) {
	c, mock := setup(t, api.Page{ID: "p1", Data: api.PageData{Title: "Old", URL: "/x", JSCode: "run()"}})
	page, _ := mock.Page("p1")

	resp, err := c.SaveBlocks(context.Background(), page, mustForest(t, `[{"id":"n","component":{"name":"Text"}}]`))
	require.NoError(t, err)
	assert.Contains(t, string(resp), `"id":"p1"`)

	stored, _ := mock.Page("p1")
	assert.Equal(t, "run()", stored.Data.JSCode)
	assert.Equal(t, "/x", stored.Data.URL)
	assert.JSONEq(t, `[]`, string(stored.Data.Inputs), "missing fields default to empty values")
	assert.JSONEq(t, `{}`, string(stored.Data.State))
	_, ok := tree.Find(stored.Data.Blocks, "n")
	assert.True(t, ok)
}

func TestUpdatePageTitle(t *testing.T) {
	c, mock := setup(t, api.Page{ID: "p1", Data: api.PageData{Title: "Old"}})
	_, err := c.UpdatePageTitle(context.Background(), "p1", "New")
	require.NoError(t, err)
	p, _ := mock.Page("p1")
	assert.Equal(t, "New", p.Data.Title)
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		kind    ErrorKind
		want    string
		is      error
	}{
		{"auth", http.StatusUnauthorized, "bad key", KindAuth, msgAuth, ErrAuth},
		{"permission", http.StatusForbidden, "nope", KindPermission, msgPermission, ErrPermission},
		{"server message", http.StatusBadRequest, "blocks must be an array", KindRequest, "blocks must be an array", nil},
		{"generic", http.StatusInternalServerError, "", KindRequest, msgGeneric, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mock := setup(t, api.Page{ID: "p1"})
			mock.Fail("p1", tt.status, tt.message)

			_, err := c.UpdatePageBlocks(context.Background(), "p1", nil, api.PageData{})
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Error())
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			} else {
				assert.False(t, errors.Is(err, ErrAuth) || errors.Is(err, ErrPermission))
			}
		})
	}
}

func TestWrongPrivateKeyIsAuthFailure(t *testing.T) {
	c, _ := setup(t, api.Page{ID: "p1"})
	c.privateKey = "wrong"
	_, err := c.UpdatePageTitle(context.Background(), "p1", "x")
	assert.ErrorIs(t, err, ErrAuth)
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	cfg := config.Default()
	cfg.BaseURL = srv.URL
	_, err := NewClient(cfg).ListPages(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, msgGeneric, apiErr.Message)
	assert.NotNil(t, errors.Unwrap(err))
}

package cmsmock

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/blocktree/api"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	return New("pub", "secret", []api.Page{
		{ID: "a", Data: api.PageData{Title: "A", URL: "/a"}},
		{ID: "b", Data: api.PageData{Title: "B", URL: "/b"}},
	}, WithClock(func() time.Time { return time.UnixMilli(1234) }))
}

func TestList_RequiresAPIKey(t *testing.T) {
	s := newServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/page?apiKey=wrong", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/page?apiKey=pub&limit=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"a"`)
	assert.NotContains(t, rec.Body.String(), `"id":"b"`)
}

func TestWrite_AuthAndFailures(t *testing.T) {
	s := newServer(t)
	put := func(id, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/page/"+id, strings.NewReader(`{"data":{"title":"New"}}`))
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, put("a", "").Code)
	assert.Equal(t, http.StatusUnauthorized, put("a", "pub").Code)
	assert.Equal(t, http.StatusNotFound, put("zzz", "secret").Code)

	s.Fail("b", http.StatusForbidden, "nope")
	rec := put("b", "secret")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"message":"nope"}`, rec.Body.String())
	s.Recover("b")

	require.Equal(t, http.StatusOK, put("b", "secret").Code)
	p, _ := s.Page("b")
	assert.Equal(t, "New", p.Data.Title)
	assert.Equal(t, int64(1234), p.LastUpdated)

	writes := s.Writes()
	require.Len(t, writes, 3, "auth failures never reach the handler")
	assert.Equal(t, Write{Method: http.MethodPatch, PageID: "b", Status: http.StatusForbidden}, writes[1])
}

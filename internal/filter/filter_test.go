package filter

import (
	"encoding/json"
	"testing"

	"github.com/agentic-research/blocktree/api"
	"github.com/agentic-research/blocktree/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func forest(t *testing.T, src string) tree.Forest {
	t.Helper()
	f, err := tree.ParseForest([]byte(src))
	require.NoError(t, err)
	return f
}

func asJSON(t *testing.T, f tree.Forest) string {
	t.Helper()
	b, err := json.Marshal(f)
	require.NoError(t, err)
	return string(b)
}

func TestExcludeComponent_ScenarioC(t *testing.T) {
	f := forest(t, `[{"id":"1","component":{"name":"Ad"}},{"id":"2","component":{"name":"Text"}}]`)
	got := ExcludeComponent(f, "Ad")
	assert.JSONEq(t, `[{"id":"2","component":{"name":"Text"}}]`, asJSON(t, got))
}

func TestExcludeComponent_DropsEmptiedContainers(t *testing.T) {
	f := forest(t, `[
		{"id":"wrap","children":[{"id":"ad1","component":{"name":"Ad"}}]},
		{"id":"mixed","blocks":[{"id":"ad2","component":{"name":"Ad"}},{"id":"t","component":{"name":"Text"}}]},
		{"id":"leaf"},
		{"id":"hollow","children":[]},
		{"id":"deep","children":[{"id":"inner","children":[{"id":"ad3","component":{"name":"Ad"}}]}]}
	]`)
	got := ExcludeComponent(f, "Ad")
	assert.JSONEq(t, `[
		{"id":"mixed","blocks":[{"id":"t","component":{"name":"Text"}}]},
		{"id":"leaf"},
		{"id":"hollow","children":[]}
	]`, asJSON(t, got))
}

func TestExcludeComponent_EmptyTermIsIdentity(t *testing.T) {
	f := forest(t, `[{"id":"1","component":{"name":"Ad"}}]`)
	assert.Equal(t, f, ExcludeComponent(f, ""))
}

func TestExcludeComponent_DoesNotModifyInput(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		names := []string{"Ad", "Text", "Image"}
		var gen func(depth int) tree.Forest
		gen = func(depth int) tree.Forest {
			n := rapid.IntRange(0, 3).Draw(rt, "n")
			f := make(tree.Forest, 0, n)
			for i := 0; i < n; i++ {
				node := tree.NewNode(map[string]any{
					"component": map[string]any{"name": rapid.SampledFrom(names).Draw(rt, "name")},
				})
				if depth < 3 && rapid.Bool().Draw(rt, "kids") {
					slot := tree.Slots[rapid.IntRange(0, 1).Draw(rt, "slot")]
					node = node.WithChildren(slot, gen(depth+1))
				}
				f = append(f, node)
			}
			return f
		}
		f := gen(0)
		before, err := json.Marshal(f)
		if err != nil {
			rt.Fatal(err)
		}
		_ = ExcludeComponent(f, rapid.SampledFrom(names).Draw(rt, "term"))
		after, err := json.Marshal(f)
		if err != nil {
			rt.Fatal(err)
		}
		if string(before) != string(after) {
			rt.Fatalf("input changed:\n%s\n%s", before, after)
		}
	})
}

func TestURLAllowed(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		allow []string
		want  bool
	}{
		{"empty list shows all", "/about", nil, true},
		{"exact", "/about", []string{"/about"}, true},
		{"contained in absolute entry", "/about", []string{"https://example.com/about"}, true},
		{"root of absolute entry", "/", []string{"https://example.com"}, true},
		{"root is not a prefix match", "/", []string{"/about"}, false},
		{"not listed", "/blog", []string{"/about"}, false},
		{"empty url with list", "", []string{"/about"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, URLAllowed(tt.url, tt.allow))
		})
	}
}

func TestPages(t *testing.T) {
	pages := []api.Page{
		{ID: "a", Data: api.PageData{URL: "/"}},
		{ID: "b", Data: api.PageData{URL: "/pricing"}},
		{ID: "c", Data: api.PageData{URL: "/blog"}},
	}
	got := Pages(pages, []string{"/pricing", "/blog"})
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	assert.Len(t, Pages(pages, nil), 3)
}

func TestParseURLList(t *testing.T) {
	assert.Equal(t, []string{"/a", "/b"}, ParseURLList("  /a \n\n/b\n   "))
	assert.Nil(t, ParseURLList(""))
}

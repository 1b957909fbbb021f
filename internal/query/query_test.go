package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/blocktree/internal/tree"
)

const page = `[
  {"id":"hero","component":{"name":"Columns","options":{"gap":16}},
   "children":[
     {"id":"t1","component":{"name":"Text","options":{"text":"<b>Hi</b>"}}},
     {"id":"ad1","component":{"name":"Ad","options":{"slot":3}}}
   ]},
  {"id":"footer","tagName":"footer","blocks":[{"id":"ad2","component":{"name":"Ad","options":{"slot":9}}}]}
]`

func forest(t *testing.T) tree.Forest {
	t.Helper()
	f, err := tree.ParseForest([]byte(page))
	require.NoError(t, err)
	return f
}

func TestSelect(t *testing.T) {
	f := forest(t)

	t.Run("top-level nodes", func(t *testing.T) {
		matches, err := Select(f, "$[*]")
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "hero", matches[0].ID)
		assert.Equal(t, "footer", matches[1].ID)
	})

	t.Run("primitive", func(t *testing.T) {
		matches, err := Select(f, "$[0].component.options.gap")
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, map[string]any{"value": int64(16)}, matches[0].Values())
		assert.Empty(t, matches[0].ID)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := Select(f, "$[")
		assert.Error(t, err)
	})
}

func TestIDs_DescendantFilterAcrossBothSlots(t *testing.T) {
	f := forest(t)
	ids, err := IDs(f, `$..[?(@.component.name == 'Ad')]`)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ad1", "ad2"}, ids)

	ids, err = IDs(f, `$..[?(@.component.options.slot > 5)]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"ad2"}, ids)
}

func TestSelect_DoesNotModifyForest(t *testing.T) {
	f := forest(t)
	before, err := f.MarshalJSON()
	require.NoError(t, err)
	matches, err := Select(f, "$..options")
	require.NoError(t, err)
	for _, m := range matches {
		m.Values()["gap"] = "mutated"
	}
	after, err := f.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&buf, "info", "json")
	require.NoError(t, err)
	l.Debug("hidden")
	l.Info("shown", "page_id", "p1")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"page_id":"p1"`)

	_, err = newLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = newLogger(&buf, "debug", "xml")
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	want := []string{
		"pages list", "tree", "node show", "node path", "node edit", "node delete", "query",
		"save", "save-all", "title", "filter urls", "filter node",
		"config show", "config set", "config edit", "diff", "discard",
		"components", "export", "import", "lint", "tui", "mcp", "mock-server",
	}
	for _, path := range want {
		c, _, err := rootCmd.Find(strings.Fields(path))
		require.NoError(t, err, path)
		assert.Equal(t, path, c.CommandPath()[len("blocktree "):])
	}
}

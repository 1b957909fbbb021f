package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BLOCKTREE_API_KEY", "BLOCKTREE_PRIVATE_KEY", "BLOCKTREE_BASE_URL",
		"BLOCKTREE_WRITE_URL", "BLOCKTREE_TITLE", "BLOCKTREE_DB", "BLOCKTREE_PAGE_LIMIT",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.hcl"), Record{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultPageLimit, cfg.PageLimit)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Error(t, cfg.Validate(), "no API key yet")
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
base_url    = "https://file.example/api"
api_key     = "file-key"
title       = "From File"
page_limit  = 50
timeout     = "5s"
`)
	cfg, err := Load(path, Record{APIKey: "stored-key"})
	require.NoError(t, err)
	assert.Equal(t, "https://file.example/api", cfg.BaseURL)
	assert.Equal(t, "stored-key", cfg.APIKey, "record beats file")
	assert.Equal(t, "From File", cfg.Title)
	assert.Equal(t, 50, cfg.PageLimit)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	t.Setenv("BLOCKTREE_API_KEY", "env-key")
	t.Setenv("BLOCKTREE_PAGE_LIMIT", "7")
	cfg, err = Load(path, Record{APIKey: "stored-key"})
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey, "environment beats everything")
	assert.Equal(t, 7, cfg.PageLimit)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeFile(t, `base_url = `), Record{})
	assert.Error(t, err)

	_, err = Load(writeFile(t, `timeout = "soon"`), Record{})
	assert.ErrorContains(t, err, "timeout")

	t.Setenv("BLOCKTREE_PAGE_LIMIT", "-1")
	_, err = Load(filepath.Join(t.TempDir(), "none.hcl"), Record{})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
	assert.Contains(t, err.Error(), "base URL")
}

func TestRedacted(t *testing.T) {
	cfg := Config{APIKey: "abcdefgh", PrivateKey: "xy"}
	r := cfg.Redacted()
	assert.Equal(t, "abcd****", r.APIKey)
	assert.Equal(t, "****", r.PrivateKey)
	assert.Equal(t, "abcdefgh", cfg.APIKey)
}

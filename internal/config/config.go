// Package config resolves blocktree's settings from built-in defaults, an
// HCL file, the record kept in the preference store, and the environment,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

const (
	DefaultBaseURL   = "https://cdn.builder.io/api/v3/content"
	DefaultWriteURL  = "https://builder.io/api/v1/write"
	DefaultTitle     = "Builder Admin"
	DefaultPageLimit = 120
	DefaultTimeout   = 30 * time.Second
)

// Config is the resolved configuration threaded into the content client and
// the editor service.
type Config struct {
	BaseURL    string
	WriteURL   string
	APIKey     string
	PrivateKey string
	Title      string
	DBPath     string
	PageLimit  int
	Timeout    time.Duration
}

// Record is the configuration record persisted in the preference store.
// Empty fields leave lower layers untouched.
type Record struct {
	BaseURL    string `json:"base_url,omitempty"`
	WriteURL   string `json:"write_url,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	PrivateKey string `json:"private_key,omitempty"`
	Title      string `json:"title,omitempty"`
}

// IsZero reports whether no field is set.
func (r Record) IsZero() bool { return r == Record{} }

// fileConfig is the HCL file schema.
type fileConfig struct {
	BaseURL    string `hcl:"base_url,optional"`
	WriteURL   string `hcl:"write_url,optional"`
	APIKey     string `hcl:"api_key,optional"`
	PrivateKey string `hcl:"private_key,optional"`
	Title      string `hcl:"title,optional"`
	DBPath     string `hcl:"db_path,optional"`
	PageLimit  int    `hcl:"page_limit,optional"`
	Timeout    string `hcl:"timeout,optional"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		WriteURL:  DefaultWriteURL,
		Title:     DefaultTitle,
		DBPath:    defaultDBPath(),
		PageLimit: DefaultPageLimit,
		Timeout:   DefaultTimeout,
	}
}

// Dir returns the blocktree configuration directory.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".blocktree"
	}
	return filepath.Join(base, "blocktree")
}

// DefaultPath is the HCL file read when no path is given.
func DefaultPath() string { return filepath.Join(Dir(), "config.hcl") }

func defaultDBPath() string { return filepath.Join(Dir(), "blocktree.db") }

// Load resolves the configuration. A missing file is not an error; path ""
// means DefaultPath. The environment is applied last.
func Load(path string, stored Record) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if err := cfg.applyFile(path); err != nil {
		return cfg, err
	}
	cfg.ApplyRecord(stored)
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	var fc fileConfig
	if err := hclsimple.DecodeFile(path, nil, &fc); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	set(&c.BaseURL, fc.BaseURL)
	set(&c.WriteURL, fc.WriteURL)
	set(&c.APIKey, fc.APIKey)
	set(&c.PrivateKey, fc.PrivateKey)
	set(&c.Title, fc.Title)
	set(&c.DBPath, fc.DBPath)
	if fc.PageLimit > 0 {
		c.PageLimit = fc.PageLimit
	}
	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("config %s: timeout: %w", path, err)
		}
		c.Timeout = d
	}
	return nil
}

// ApplyRecord overlays the non-empty fields of r.
func (c *Config) ApplyRecord(r Record) {
	set(&c.BaseURL, r.BaseURL)
	set(&c.WriteURL, r.WriteURL)
	set(&c.APIKey, r.APIKey)
	set(&c.PrivateKey, r.PrivateKey)
	set(&c.Title, r.Title)
}

func (c *Config) applyEnv() error {
	set(&c.APIKey, os.Getenv("BLOCKTREE_API_KEY"))
	set(&c.PrivateKey, os.Getenv("BLOCKTREE_PRIVATE_KEY"))
	set(&c.BaseURL, os.Getenv("BLOCKTREE_BASE_URL"))
	set(&c.WriteURL, os.Getenv("BLOCKTREE_WRITE_URL"))
	set(&c.Title, os.Getenv("BLOCKTREE_TITLE"))
	set(&c.DBPath, os.Getenv("BLOCKTREE_DB"))
	if v := os.Getenv("BLOCKTREE_PAGE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("BLOCKTREE_PAGE_LIMIT: invalid value %q", v)
		}
		c.PageLimit = n
	}
	return nil
}

func set(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Record returns the fields that belong in the stored configuration record.
func (c Config) Record() Record {
	return Record{
		BaseURL:    c.BaseURL,
		WriteURL:   c.WriteURL,
		APIKey:     c.APIKey,
		PrivateKey: c.PrivateKey,
		Title:      c.Title,
	}
}

// Validate checks that the content API can be reached.
func (c Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("API key is required"))
	}
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	}
	return errors.Join(errs...)
}

// CanWrite reports whether saves can be authorized.
func (c Config) CanWrite() bool { return c.PrivateKey != "" && c.WriteURL != "" }

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	c.APIKey = redact(c.APIKey)
	c.PrivateKey = redact(c.PrivateKey)
	return c
}

func redact(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return s[:4] + "****"
}

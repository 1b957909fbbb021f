// Package prefs persists editor preferences and pending drafts in SQLite.
// Absent preferences read back as their defaults.
package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/blocktree/internal/config"
)

// ErrNotFound is returned internally for a missing key.
var ErrNotFound = errors.New("preference not found")

const (
	keyURLFilters = "url_filters"
	keyNodeFilter = "node_filter"
	keyConfig     = "config"
)

const schema = `
CREATE TABLE IF NOT EXISTS prefs (
	key TEXT PRIMARY KEY,
	value JSON NOT NULL,
	updated INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS drafts (
	page_id TEXT PRIMARY KEY,
	forest JSON NOT NULL,
	base_updated INTEGER NOT NULL,
	saved_at INTEGER NOT NULL
);
`

// Store is a preference store backed by one SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path, creating its directory.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return initStore(db)
}

// OpenMemory returns a store that lives for the life of the process.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return initStore(db)
}

func initStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) get(ctx context.Context, key string, dst any) error {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM prefs WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prefs (key, value, updated) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated = excluded.updated`,
		key, string(raw), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// getOr reads key into dst, leaving dst untouched when the key is absent.
func (s *Store) getOr(ctx context.Context, key string, dst any) error {
	if err := s.get(ctx, key, dst); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// URLFilters returns the page URL allow-list. Empty means all pages.
func (s *Store) URLFilters(ctx context.Context) ([]string, error) {
	urls := []string{}
	if err := s.getOr(ctx, keyURLFilters, &urls); err != nil {
		return []string{}, err
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}

// SetURLFilters stores the allow-list.
func (s *Store) SetURLFilters(ctx context.Context, urls []string) error {
	if urls == nil {
		urls = []string{}
	}
	return s.set(ctx, keyURLFilters, urls)
}

// NodeFilter returns the component-exclusion term, "" by default.
func (s *Store) NodeFilter(ctx context.Context) (string, error) {
	var term string
	if err := s.getOr(ctx, keyNodeFilter, &term); err != nil {
		return "", err
	}
	return term, nil
}

// SetNodeFilter stores the component-exclusion term.
func (s *Store) SetNodeFilter(ctx context.Context, term string) error {
	return s.set(ctx, keyNodeFilter, term)
}

// Config returns the stored configuration record, zero by default.
func (s *Store) Config(ctx context.Context) (config.Record, error) {
	var rec config.Record
	if err := s.getOr(ctx, keyConfig, &rec); err != nil {
		return config.Record{}, err
	}
	return rec, nil
}

// SetConfig stores the configuration record.
func (s *Store) SetConfig(ctx context.Context, rec config.Record) error {
	return s.set(ctx, keyConfig, rec)
}

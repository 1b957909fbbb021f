package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agentic-research/blocktree/internal/tree"
)

// Draft is an unsaved working forest kept between runs.
type Draft struct {
	PageID string
	Forest tree.Forest
	// BaseUpdated is the page's lastUpdated when the draft was taken, so a
	// draft over stale upstream data can be detected.
	BaseUpdated int64
	SavedAt     time.Time
}

// SaveDraft stores or replaces the draft for a page.
func (s *Store) SaveDraft(ctx context.Context, d Draft) error {
	raw, err := d.Forest.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", d.PageID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO drafts (page_id, forest, base_updated, saved_at)
		VALUES (?, ?, ?, ?)`,
		d.PageID, string(raw), d.BaseUpdated, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write draft %s: %w", d.PageID, err)
	}
	return nil
}

// Draft returns the draft for a page, if any.
func (s *Store) Draft(ctx context.Context, pageID string) (Draft, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT page_id, forest, base_updated, saved_at FROM drafts WHERE page_id = ?`, pageID)
	d, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, false, nil
	}
	if err != nil {
		return Draft{}, false, err
	}
	return d, true, nil
}

// Drafts returns every stored draft ordered by page id.
func (s *Store) Drafts(ctx context.Context) ([]Draft, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT page_id, forest, base_updated, saved_at FROM drafts ORDER BY page_id`)
	if err != nil {
		return nil, fmt.Errorf("query drafts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDraft removes a page's draft. Deleting a missing draft is a no-op.
func (s *Store) DeleteDraft(ctx context.Context, pageID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("delete draft %s: %w", pageID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDraft(sc scanner) (Draft, error) {
	var (
		d       Draft
		raw     string
		savedAt int64
	)
	if err := sc.Scan(&d.PageID, &raw, &d.BaseUpdated, &savedAt); err != nil {
		return Draft{}, err
	}
	f, err := tree.ParseForest([]byte(raw))
	if err != nil {
		return Draft{}, fmt.Errorf("decode draft %s: %w", d.PageID, err)
	}
	d.Forest = f
	d.SavedAt = time.UnixMilli(savedAt)
	return d, nil
}

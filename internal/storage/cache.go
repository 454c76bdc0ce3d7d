package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vcshist/internal/history"
)

// CachedHistory is a stored file history with its bookkeeping columns
type CachedHistory struct {
	RepoRoot       string
	File           string
	Kind           string
	LatestRevision string
	History        *history.History
	UpdatedAt      time.Time
}

// Cache stores histories and tag lists between index runs
type Cache struct {
	db       *DB
	compress bool
}

// NewCache creates a new cache instance
func NewCache(db *DB, compress bool) *Cache {
	return &Cache{db: db, compress: compress}
}

// GetHistory returns the cached history of file
func (c *Cache) GetHistory(ctx context.Context, repoRoot, file string) (*CachedHistory, bool, error) {
	var (
		kind, latest, updatedAt string
		compressed              bool
		payload                 []byte
	)
	err := c.db.QueryRow(ctx, `
		SELECT kind, latest_revision, compressed, payload, updated_at
		FROM history_cache
		WHERE repo_root = ? AND file = ?
	`, repoRoot, file).Scan(&kind, &latest, &compressed, &payload, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("history cache lookup failed: %w", err)
	}

	h := history.New()
	if err := decodePayload(payload, compressed, h); err != nil {
		return nil, false, err
	}
	ts, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("invalid updated_at format: %w", err)
	}

	return &CachedHistory{
		RepoRoot:       repoRoot,
		File:           file,
		Kind:           kind,
		LatestRevision: latest,
		History:        h,
		UpdatedAt:      ts,
	}, true, nil
}

// PutHistory replaces the cached history of file
func (c *Cache) PutHistory(ctx context.Context, repoRoot, kind, file string, h *history.History) error {
	payload, err := encodePayload(h, c.compress)
	if err != nil {
		return err
	}

	latest := ""
	if e, ok := h.Latest(); ok {
		latest = e.Revision
	}

	_, err = c.db.Exec(ctx, `
		INSERT OR REPLACE INTO history_cache
			(repo_root, file, kind, latest_revision, entry_count, compressed, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, repoRoot, file, kind, latest, h.Len(), c.compress, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store history: %w", err)
	}
	return nil
}

// DeleteHistory drops the cached history of file
func (c *Cache) DeleteHistory(ctx context.Context, repoRoot, file string) error {
	_, err := c.db.Exec(ctx, "DELETE FROM history_cache WHERE repo_root = ? AND file = ?", repoRoot, file)
	return err
}

// CachedFiles lists the files with cached history under repoRoot
func (c *Cache) CachedFiles(ctx context.Context, repoRoot string) ([]string, error) {
	rows, err := c.db.Query(ctx, "SELECT file FROM history_cache WHERE repo_root = ? ORDER BY file", repoRoot)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []string{}
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// GetTags returns the cached tag list of a repository
func (c *Cache) GetTags(ctx context.Context, repoRoot string) (*history.TagList, bool, error) {
	var (
		compressed bool
		payload    []byte
	)
	err := c.db.QueryRow(ctx, `
		SELECT compressed, payload FROM tag_cache WHERE repo_root = ?
	`, repoRoot).Scan(&compressed, &payload)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("tag cache lookup failed: %w", err)
	}

	var entries []history.TagEntry
	if err := decodePayload(payload, compressed, &entries); err != nil {
		return nil, false, err
	}
	return history.NewTagList(entries), true, nil
}

// PutTags replaces the cached tag list of a repository
func (c *Cache) PutTags(ctx context.Context, repoRoot, kind string, tags *history.TagList) error {
	entries := tags.Entries()
	payload, err := encodePayload(entries, c.compress)
	if err != nil {
		return err
	}

	_, err = c.db.Exec(ctx, `
		INSERT OR REPLACE INTO tag_cache (repo_root, kind, tag_count, compressed, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, repoRoot, kind, len(entries), c.compress, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to store tags: %w", err)
	}
	return nil
}

// Stats summarises the cache contents
type Stats struct {
	Repositories int `json:"repositories"`
	Files        int `json:"files"`
	Entries      int `json:"entries"`
	TagLists     int `json:"tagLists"`
}

// Stats counts cached rows
func (c *Cache) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{}
	err := c.db.QueryRow(ctx, `
		SELECT COUNT(DISTINCT repo_root), COUNT(*), COALESCE(SUM(entry_count), 0) FROM history_cache
	`).Scan(&s.Repositories, &s.Files, &s.Entries)
	if err != nil {
		return nil, err
	}
	if err := c.db.QueryRow(ctx, "SELECT COUNT(*) FROM tag_cache").Scan(&s.TagLists); err != nil {
		return nil, err
	}
	return s, nil
}

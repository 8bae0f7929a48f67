// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS documents (
    path         TEXT PRIMARY KEY,
    mod_time     INTEGER NOT NULL,
    size         INTEGER NOT NULL,
    text         TEXT NOT NULL,
    extracted_at INTEGER NOT NULL
);
`

// Store persists extracted document text in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the text store at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the stored text for path if its size and mtime still match.
func (s *Store) Get(path string, modTime time.Time, size int64) (string, bool, error) {
	var text string
	err := s.db.QueryRow(
		`SELECT text FROM documents WHERE path = ? AND mod_time = ? AND size = ?`,
		path, modTime.UnixNano(), size,
	).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// Put stores text for path, replacing any older version.
func (s *Store) Put(path string, modTime time.Time, size int64, text string) error {
	_, err := s.db.Exec(
		`INSERT INTO documents (path, mod_time, size, text, extracted_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET mod_time = excluded.mod_time, size = excluded.size,
		 text = excluded.text, extracted_at = excluded.extracted_at`,
		path, modTime.UnixNano(), size, text, time.Now().Unix(),
	)
	return err
}

// Delete removes path from the store.
func (s *Store) Delete(path string) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE path = ?`, path)
	return err
}

// Count returns the number of stored documents.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// CACHED EXTRACTOR
// =============================================================================

type memoEntry struct {
	modTime time.Time
	size    int64
	text    string
}

// CachedExtractor memoizes an Extractor. Lookups hit an in-memory TTL
// cache first, then the optional SQLite store. Failed extractions are not
// cached so they are retried on the next scan.
type CachedExtractor struct {
	next   Extractor
	store  *Store
	memo   *gocache.Cache
	logger zerolog.Logger
}

// NewCachedExtractor wraps next. store may be nil for memory-only caching.
func NewCachedExtractor(next Extractor, store *Store, ttl time.Duration, logger zerolog.Logger) *CachedExtractor {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &CachedExtractor{
		next:   next,
		store:  store,
		memo:   gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// ExtractText returns cached text when the file is unchanged.
func (c *CachedExtractor) ExtractText(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	mod, size := info.ModTime(), info.Size()

	if v, ok := c.memo.Get(path); ok {
		e := v.(memoEntry)
		if e.size == size && e.modTime.Equal(mod) {
			return e.text, nil
		}
	}

	if c.store != nil {
		text, ok, err := c.store.Get(path, mod, size)
		if err != nil {
			c.logger.Warn().Err(err).Str("path", path).Msg("extraction cache read failed")
		} else if ok {
			c.memo.SetDefault(path, memoEntry{modTime: mod, size: size, text: text})
			return text, nil
		}
	}

	text, err := c.next.ExtractText(path)
	if err != nil {
		return "", err
	}

	c.memo.SetDefault(path, memoEntry{modTime: mod, size: size, text: text})
	if c.store != nil {
		if err := c.store.Put(path, mod, size, text); err != nil {
			c.logger.Warn().Err(err).Str("path", path).Msg("extraction cache write failed")
		}
	}
	return text, nil
}

// Invalidate drops path from both cache layers.
func (c *CachedExtractor) Invalidate(path string) {
	c.memo.Delete(path)
	if c.store != nil {
		if err := c.store.Delete(path); err != nil {
			c.logger.Warn().Err(err).Str("path", path).Msg("extraction cache delete failed")
		}
	}
}

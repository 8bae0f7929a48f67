// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/morganforge/theseus/internal/model"
)

// IDPrefix starts every session file name.
const IDPrefix = "chat_"

// idLayout formats the timestamp part of a session ID.
const idLayout = "20060102_150405"

// ErrSessionNotFound is returned when a session file doesn't exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidID is returned for IDs that could escape the session directory.
var ErrInvalidID = errors.New("invalid session id")

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// =============================================================================
// SESSION METADATA
// =============================================================================

// Meta describes a stored session for listing.
type Meta struct {
	ID        string
	Title     string
	Model     string
	UpdatedAt time.Time
	TurnCount int
}

// =============================================================================
// SESSION STORE
// =============================================================================

// SessionStore reads and writes conversations under Dir.
type SessionStore struct {
	Dir string

	now func() time.Time
}

// NewSessionStore creates the directory if needed and returns a store.
func NewSessionStore(dir string) (*SessionStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &SessionStore{Dir: dir, now: time.Now}, nil
}

// NewID returns an unused ID derived from the current time. Collisions
// within the same second get a numeric suffix.
func (s *SessionStore) NewID() string {
	base := IDPrefix + s.now().Format(idLayout)
	id := base
	for n := 2; s.exists(id); n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	return id
}

// Save writes h to <Dir>/<h.ID>.json, assigning an ID if it has none.
func (s *SessionStore) Save(h *model.History) error {
	if h.ID == "" {
		h.ID = s.NewID()
	}
	if !validID.MatchString(h.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, h.ID)
	}

	h.UpdatedAt = s.now()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = h.UpdatedAt
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := writeAtomic(s.path(h.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to save session %s: %w", h.ID, err)
	}
	return nil
}

// Load reads the session with the given ID.
func (s *SessionStore) Load(id string) (*model.History, error) {
	if !validID.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var h model.History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", id, err)
	}
	if h.ID == "" {
		h.ID = id
	}
	return &h, nil
}

// LoadByIndex loads the session at index in List order (0 = newest).
func (s *SessionStore) LoadByIndex(index int) (*model.History, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(metas) {
		return nil, ErrSessionNotFound
	}
	return s.Load(metas[index].ID)
}

// Latest loads the newest session, or ErrSessionNotFound when there is none.
func (s *SessionStore) Latest() (*model.History, error) {
	return s.LoadByIndex(0)
}

// List returns every readable session, newest first. Corrupt files are
// skipped.
func (s *SessionStore) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var metas []Meta
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, IDPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		h, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		metas = append(metas, Meta{
			ID:        h.ID,
			Title:     h.Title(),
			Model:     h.Model,
			UpdatedAt: h.UpdatedAt,
			TurnCount: h.Len(),
		})
	}

	// IDs embed the creation time, so reverse lexical order is newest first.
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].ID > metas[j].ID
	})
	return metas, nil
}

// Search returns sessions whose title contains query, case-insensitively.
func (s *SessionStore) Search(query string) ([]Meta, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return all, nil
	}

	var out []Meta
	for _, m := range all {
		if strings.Contains(strings.ToLower(m.Title), query) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Delete removes a session file.
func (s *SessionStore) Delete(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

func (s *SessionStore) path(id string) string {
	return filepath.Join(s.Dir, id+".json")
}

func (s *SessionStore) exists(id string) bool {
	_, err := os.Stat(s.path(id))
	return err == nil
}

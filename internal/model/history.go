// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// TitleLength is the number of runes of the first user turn kept in a title.
const TitleLength = 25

// DefaultTitle names a history with no user turns.
const DefaultTitle = "New Chat"

// History is the ordered log of turns for one conversation.
// It is not safe for concurrent use; the session owns it.
type History struct {
	ID        string    `json:"id"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     []*Turn   `json:"turns"`
}

// NewHistory creates an empty history.
func NewHistory(id string) *History {
	now := time.Now()
	return &History{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Turns:     make([]*Turn, 0, 16),
	}
}

// AppendUser adds a user turn.
func (h *History) AppendUser(content string, hasImage bool) *Turn {
	t := NewTurn(RoleUser, content)
	t.HasImage = hasImage
	h.add(t)
	return t
}

// AppendAssistantContent applies one chunk of assistant content. If the
// last turn is already an assistant turn the chunk is appended to it,
// otherwise a new assistant turn is created. Consecutive chunks for one
// reply therefore always collapse into a single turn.
func (h *History) AppendAssistantContent(content string) *Turn {
	if last := h.Last(); last != nil && last.Role == RoleAssistant {
		last.Append(content)
		h.UpdatedAt = time.Now()
		return last
	}
	t := NewTurn(RoleAssistant, content)
	h.add(t)
	return t
}

func (h *History) add(t *Turn) {
	h.Turns = append(h.Turns, t)
	h.UpdatedAt = time.Now()
}

// Last returns the final turn, or nil when empty.
func (h *History) Last() *Turn {
	if len(h.Turns) == 0 {
		return nil
	}
	return h.Turns[len(h.Turns)-1]
}

// LastUser returns the most recent user turn, or nil.
func (h *History) LastUser() *Turn {
	for i := len(h.Turns) - 1; i >= 0; i-- {
		if h.Turns[i].Role == RoleUser {
			return h.Turns[i]
		}
	}
	return nil
}

// Len returns the number of turns.
func (h *History) Len() int {
	return len(h.Turns)
}

// IsEmpty reports whether the history has no turns.
func (h *History) IsEmpty() bool {
	return len(h.Turns) == 0
}

// Window returns up to n turns preceding the last turn, oldest first.
// The last turn is excluded because callers send it separately.
func (h *History) Window(n int) []*Turn {
	if n <= 0 || len(h.Turns) < 2 {
		return nil
	}
	end := len(h.Turns) - 1
	start := end - n
	if start < 0 {
		start = 0
	}
	out := make([]*Turn, end-start)
	copy(out, h.Turns[start:end])
	return out
}

// Title is the first user turn cut to TitleLength runes followed by "...".
func (h *History) Title() string {
	for _, t := range h.Turns {
		if t.Role == RoleUser {
			r := []rune(t.Content)
			if len(r) > TitleLength {
				r = r[:TitleLength]
			}
			return string(r) + "..."
		}
	}
	return DefaultTitle
}

// Clone returns a copy whose turns can be read without racing the owner.
func (h *History) Clone() *History {
	c := *h
	c.Turns = make([]*Turn, len(h.Turns))
	for i, t := range h.Turns {
		tc := *t
		c.Turns[i] = &tc
	}
	return &c
}

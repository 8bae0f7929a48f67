// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents the sender of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Theseus"
	default:
		return string(r)
	}
}

// Turn is one entry in a conversation.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	HasImage  bool      `json:"has_image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a turn with a fresh ID.
func NewTurn(role Role, content string) *Turn {
	return &Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Append adds streamed text to the turn.
func (t *Turn) Append(text string) {
	t.Content += text
}

// Preview returns the content collapsed to one line and cut to maxLen runes.
func (t *Turn) Preview(maxLen int) string {
	s := strings.Join(strings.Fields(t.Content), " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

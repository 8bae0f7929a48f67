// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
)

// =============================================================================
// AGGREGATION TESTS
// =============================================================================

func TestHistory_AppendAssistantContent_Streaming(t *testing.T) {
	h := NewHistory("chat_test")
	h.AppendUser("explain op-amp bandwidth", false)

	chunks := []string{"Gain", "-bandwidth ", "product ", "is constant."}
	for _, c := range chunks {
		h.AppendAssistantContent(c)
	}

	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
	last := h.Last()
	if last.Role != RoleAssistant {
		t.Errorf("last role = %q, want assistant", last.Role)
	}
	if want := strings.Join(chunks, ""); last.Content != want {
		t.Errorf("last content = %q, want %q", last.Content, want)
	}
}

func TestHistory_AppendAssistantContent_NewTurnAfterUser(t *testing.T) {
	h := NewHistory("chat_test")
	h.AppendUser("first", false)
	h.AppendAssistantContent("one")
	h.AppendUser("second", true)
	h.AppendAssistantContent("two")

	roles := []Role{RoleUser, RoleAssistant, RoleUser, RoleAssistant}
	if h.Len() != len(roles) {
		t.Fatalf("Len() = %d, want %d", h.Len(), len(roles))
	}
	for i, r := range roles {
		if h.Turns[i].Role != r {
			t.Errorf("turn %d role = %q, want %q", i, h.Turns[i].Role, r)
		}
	}
	if !h.Turns[2].HasImage {
		t.Error("second user turn lost its image flag")
	}
	if h.Turns[3].Content != "two" {
		t.Errorf("turn 3 content = %q, want 'two'", h.Turns[3].Content)
	}
}

func TestHistory_AppendAssistantContent_EmptyHistory(t *testing.T) {
	h := NewHistory("chat_test")
	h.AppendAssistantContent("orphan")

	if h.Len() != 1 || h.Last().Role != RoleAssistant {
		t.Fatalf("expected a single assistant turn, got %d turns", h.Len())
	}
}

// =============================================================================
// LOOKUP TESTS
// =============================================================================

func TestHistory_LastUser(t *testing.T) {
	h := NewHistory("chat_test")
	if h.LastUser() != nil {
		t.Error("LastUser() on empty history should be nil")
	}

	h.AppendUser("q1", false)
	h.AppendAssistantContent("a1")
	h.AppendUser("q2", false)
	h.AppendAssistantContent("a2")

	if got := h.LastUser(); got == nil || got.Content != "q2" {
		t.Errorf("LastUser() = %v, want q2", got)
	}
}

func TestHistory_Window(t *testing.T) {
	h := NewHistory("chat_test")
	for _, s := range []string{"u1", "a1", "u2", "a2", "u3"} {
		if s[0] == 'u' {
			h.AppendUser(s, false)
		} else {
			h.AppendAssistantContent(s)
		}
	}

	tests := []struct {
		n    int
		want []string
	}{
		{0, nil},
		{2, []string{"u2", "a2"}},
		{10, []string{"u1", "a1", "u2", "a2"}},
	}

	for _, tt := range tests {
		got := h.Window(tt.n)
		if len(got) != len(tt.want) {
			t.Errorf("Window(%d) len = %d, want %d", tt.n, len(got), len(tt.want))
			continue
		}
		for i := range got {
			if got[i].Content != tt.want[i] {
				t.Errorf("Window(%d)[%d] = %q, want %q", tt.n, i, got[i].Content, tt.want[i])
			}
		}
	}
}

func TestHistory_Title(t *testing.T) {
	tests := []struct {
		name  string
		first string
		want  string
	}{
		{"short", "hello", "hello..."},
		{"exact", "abcdefghijklmnopqrstuvwxy", "abcdefghijklmnopqrstuvwxy..."},
		{"long", "explain op-amp bandwidth in detail please", "explain op-amp bandwidth ..."},
		{"multibyte", "ñññññññññññññññññññññññññññ", "ñññññññññññññññññññññññññ..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistory("chat_test")
			h.AppendAssistantContent("greeting")
			h.AppendUser(tt.first, false)
			if got := h.Title(); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := NewHistory("x").Title(); got != DefaultTitle {
		t.Errorf("empty Title() = %q, want %q", got, DefaultTitle)
	}
}

func TestHistory_Clone(t *testing.T) {
	h := NewHistory("chat_test")
	h.AppendUser("q", false)

	c := h.Clone()
	h.Turns[0].Content = "mutated"
	h.AppendAssistantContent("a")

	if c.Len() != 1 || c.Turns[0].Content != "q" {
		t.Errorf("clone shares state with original: %+v", c.Turns[0])
	}
}

func TestTurn_Preview(t *testing.T) {
	turn := NewTurn(RoleUser, "line one\n\nline   two")
	if got := turn.Preview(100); got != "line one line two" {
		t.Errorf("Preview(100) = %q", got)
	}
	if got := turn.Preview(8); got != "line ..." {
		t.Errorf("Preview(8) = %q", got)
	}
	if turn.ID == "" {
		t.Error("NewTurn() did not assign an ID")
	}
}

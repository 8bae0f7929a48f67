// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"strings"
	"unicode/utf8"
)

// Default context window around a match, in bytes.
const (
	DefaultBefore = 200
	DefaultAfter  = 500
)

// Window is the amount of text kept around the first match. Before is
// counted back from the match start, After forward from the match start.
type Window struct {
	Before int
	After  int
}

// DefaultWindow returns the 200/500 window.
func DefaultWindow() Window {
	return Window{Before: DefaultBefore, After: DefaultAfter}
}

// Snippet returns text[max(0,i-Before):min(len,i+After)] where i is the
// byte offset of the first case-insensitive match of keyword. Bounds that
// land inside a multi-byte rune are moved inward to the nearest rune
// start. ok is false when keyword does not occur.
func (w Window) Snippet(text, keyword string) (snippet string, ok bool) {
	i := IndexFold(text, keyword)
	if i < 0 {
		return "", false
	}

	start := i - w.Before
	if start < 0 {
		start = 0
	}
	end := i + w.After
	if end > len(text) {
		end = len(text)
	}

	for start < end && !utf8.RuneStart(text[start]) {
		start++
	}
	for end < len(text) && end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	return text[start:end], true
}

// IndexFold returns the byte offset in s of the first case-insensitive
// occurrence of substr, or -1. The offset always refers to s itself, so
// it is safe to slice s with it even when case folding changes the byte
// length of a rune.
func IndexFold(s, substr string) int {
	if substr == "" {
		return 0
	}
	if isASCII(s) && isASCII(substr) {
		return strings.Index(strings.ToLower(s), strings.ToLower(substr))
	}
	for i := 0; i < len(s); {
		if hasPrefixFold(s[i:], substr) {
			return i
		}
		_, w := utf8.DecodeRuneInString(s[i:])
		i += w
	}
	return -1
}

func hasPrefixFold(s, prefix string) bool {
	for prefix != "" {
		if s == "" {
			return false
		}
		r1, w1 := utf8.DecodeRuneInString(s)
		r2, w2 := utf8.DecodeRuneInString(prefix)
		if r1 != r2 && !strings.EqualFold(string(r1), string(r2)) {
			return false
		}
		s, prefix = s[w1:], prefix[w2:]
	}
	return true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Result is the outcome of one scan.
type Result struct {
	// Evidence is the concatenation of "\n[SOURCE: <name>]\n<snippet>\n"
	// blocks in corpus order. Empty when nothing matched.
	Evidence string

	Scanned int      // documents enumerated
	Failed  int      // documents whose extraction failed
	Sources []string // file names that matched
}

// Empty reports whether the scan found no evidence.
func (r Result) Empty() bool {
	return r.Evidence == ""
}

// Scanner searches a corpus for a keyword.
type Scanner struct {
	extractor Extractor
	ext       string
	window    Window
	logger    zerolog.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithExtension sets the document extension (default ".pdf").
func WithExtension(ext string) ScannerOption {
	return func(s *Scanner) { s.ext = ext }
}

// WithWindow sets the snippet window.
func WithWindow(w Window) ScannerOption {
	return func(s *Scanner) { s.window = w }
}

// WithLogger sets the logger used for per-document failures.
func WithLogger(l zerolog.Logger) ScannerOption {
	return func(s *Scanner) { s.logger = l }
}

// NewScanner creates a scanner that extracts text with ex.
func NewScanner(ex Extractor, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		extractor: ex,
		ext:       DefaultExtension,
		window:    DefaultWindow(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extension returns the document extension this scanner searches.
func (s *Scanner) Extension() string {
	return s.ext
}

// Search scans every document under dir. Enumeration and per-document
// errors are logged and skipped; the only error returned is ctx's.
func (s *Scanner) Search(ctx context.Context, dir, keyword string) (Result, error) {
	var res Result

	paths, err := Enumerate(dir, s.ext)
	if err != nil {
		s.logger.Warn().Err(err).Str("dir", dir).Msg("corpus enumeration failed")
		return res, nil
	}
	res.Scanned = len(paths)

	var evidence strings.Builder
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		text, err := s.extractor.ExtractText(path)
		if err != nil {
			res.Failed++
			s.logger.Debug().Err(err).Str("path", path).Msg("skipping document")
			continue
		}

		snippet, ok := s.window.Snippet(text, keyword)
		if !ok {
			continue
		}

		name := filepath.Base(path)
		res.Sources = append(res.Sources, name)
		evidence.WriteString("\n[SOURCE: ")
		evidence.WriteString(name)
		evidence.WriteString("]\n")
		evidence.WriteString(snippet)
		evidence.WriteString("\n")
	}

	res.Evidence = evidence.String()
	return res, nil
}

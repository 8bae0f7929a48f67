// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package research

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"
)

// Extractor turns one document into plain text.
type Extractor interface {
	ExtractText(path string) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(path string) (string, error)

// ExtractText calls f(path).
func (f ExtractorFunc) ExtractText(path string) (string, error) {
	return f(path)
}

// PDFExtractor extracts the text layer of PDF files.
type PDFExtractor struct{}

// ExtractText returns the NFC-normalized plain text of the PDF at path.
// The parser panics on some malformed files; that is reported as an error.
func (PDFExtractor) ExtractText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf %s: malformed document: %v", filepath.Base(path), r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return norm.NFC.String(buf.String()), nil
}

// TextExtractor reads plain-text documents such as .txt and .md files.
type TextExtractor struct{}

// ExtractText returns the file contents, NFC-normalized.
func (TextExtractor) ExtractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return norm.NFC.String(string(data)), nil
}

// ExtractorFor picks an extractor for a corpus extension.
func ExtractorFor(ext string) Extractor {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "txt", "md", "markdown", "text":
		return TextExtractor{}
	default:
		return PDFExtractor{}
	}
}

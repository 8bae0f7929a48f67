// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package research implements keyword retrieval over a local document corpus.
//
// A Scanner enumerates every document with the configured extension under
// a root directory, extracts its text, and for each document that
// contains the keyword (case-insensitively) keeps a window of text around
// the first match. The windows are concatenated, each tagged with the
// document's file name, into one evidence string.
//
// Extraction is pluggable through Extractor. PDFExtractor handles PDFs;
// CachedExtractor memoizes any extractor in memory and in a SQLite file
// keyed by path, size and modification time, and Watcher evicts entries
// as the corpus changes on disk.
package research

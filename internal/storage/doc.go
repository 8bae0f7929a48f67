// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversations as JSON files.
//
// Each conversation lives in <dir>/chat_<YYYYMMDD_HHMMSS>.json. Writes are
// atomic (temp file, fsync, rename) so a crash leaves either the old or the
// new file.
//
// # Usage
//
//	store, err := storage.NewSessionStore("sessions")
//	id := store.NewID()
//	err = store.Save(history)
//
//	metas, err := store.List() // newest first
//	h, err := store.Load(metas[0].ID)
package storage

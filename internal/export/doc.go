// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a conversation to a standalone file, either as
// Markdown for reading or as JSON in the same shape the session store
// uses.
package export

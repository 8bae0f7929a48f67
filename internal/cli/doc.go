// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the plain line-mode front-end of theseus, used when the
// terminal cannot host the full-screen view or when --plain is given.
//
// It drives the same orchestrator.Session and slash-command registry as
// the TUI. Input is read with liner, so history and line editing work
// in ordinary terminals. Ctrl+C during a request cancels it; Ctrl+C or
// Ctrl+D at the prompt exits.
package cli

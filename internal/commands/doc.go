// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash commands shared by the TUI and
// plain mode.
//
// Handlers act on an orchestrator.Session and return a Result for the
// front-end to display. They never touch the terminal.
//
// # Built-in Commands
//
//   - /new, /sessions, /load, /delete: conversation management
//   - /model, /models: model selection
//   - /rag, /dir, /image, /stream: request settings
//   - /cancel, /status, /help, /quit
//
// # Usage
//
//	reg := commands.NewRegistry()
//	ctx := &commands.Context{Session: sess, Config: cfg, Sessions: store}
//	if commands.IsCommand(input) {
//	    res := reg.Execute(ctx, input)
//	    show(res.Text, res.Err)
//	}
package commands

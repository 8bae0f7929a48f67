// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/theseus/internal/commands"
	"github.com/morganforge/theseus/internal/detect"
	"github.com/morganforge/theseus/internal/storage"
)

// =============================================================================
// MESSAGES
// =============================================================================

// tickMsg drives Poll at the configured interval. It bounds how long an
// event can sit in the channel when a wake-up is missed.
type tickMsg time.Time

// wakeMsg means the session's event channel signalled new events.
type wakeMsg struct{}

// vramMsg carries a VRAM reading for the sidebar.
type vramMsg detect.Usage

// sessionsMsg carries the stored session list for the sidebar.
type sessionsMsg struct {
	metas []storage.Meta
	err   error
}

// commandResultMsg carries the result of a slow command run off the
// update loop.
type commandResultMsg struct {
	input  string
	result commands.Result
}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForEvents blocks until ready fires.
func waitForEvents(ready <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ready
		return wakeMsg{}
	}
}

func readVRAM(probe VRAMReader) tea.Cmd {
	if probe == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return vramMsg(probe.Read(ctx))
	}
}

func listSessions(store commands.SessionStore) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		metas, err := store.List()
		return sessionsMsg{metas: metas, err: err}
	}
}

func runSlowCommand(reg *commands.Registry, ctx *commands.Context, input string, p commands.ParseResult) tea.Cmd {
	return func() tea.Msg {
		return commandResultMsg{input: input, result: reg.Run(ctx, p)}
	}
}

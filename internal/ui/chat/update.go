// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/theseus/internal/commands"
	"github.com/morganforge/theseus/internal/detect"
)

// busyNote is shown when input arrives while a request is in flight.
const busyNote = "Still working on the last question. Press Esc to cancel it."

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tickMsg:
		cmds = append(cmds, m.poll(), tickCmd(m.tick), readVRAM(m.probe))
		return m, tea.Batch(cmds...)

	case wakeMsg:
		cmds = append(cmds, m.poll(), waitForEvents(m.sess.Events().Ready()))
		return m, tea.Batch(cmds...)

	case vramMsg:
		m.vram = detect.Usage(msg)
		return m, nil

	case sessionsMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Msg("failed to list sessions")
			return m, nil
		}
		m.sessions = msg.metas
		return m, nil

	case commandResultMsg:
		return m.applyResult(msg.result)

	case spinner.TickMsg:
		if !m.sess.State().Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// poll applies queued session events and redraws on any change. Returning
// to Idle refreshes the session list, since the conversation was saved.
func (m *Model) poll() tea.Cmd {
	applied := m.sess.Poll()
	state := m.sess.State()
	prev := m.lastState
	m.lastState = state

	if applied == 0 && state == prev {
		return nil
	}
	m.refresh()

	switch {
	case prev.Busy() && !state.Busy():
		return listSessions(m.cmdCtx.Sessions)
	case !prev.Busy() && state.Busy():
		return m.spinner.Tick
	}
	return nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.sess.Cancel() {
			m.lastState = m.sess.State()
			m.addNote("Cancelled.", false)
		}
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		return m.runCommand("/new")

	case key.Matches(msg, m.keys.ToggleRAG):
		return m.runCommand("/rag")

	case key.Matches(msg, m.keys.Complete):
		m.complete()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input to the session or runs it as a slash command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}

	if commands.IsCommand(text) {
		m.input.Reset()
		return m.runCommand(text)
	}

	if !m.sess.Submit(text) {
		m.addNote(busyNote, false)
		return m, nil
	}
	m.input.Reset()
	m.lastState = m.sess.State()
	m.refresh()
	return m, m.spinner.Tick
}

// runCommand executes a slash command. Slow commands run as a tea.Cmd so
// network I/O never blocks the update loop.
func (m Model) runCommand(input string) (tea.Model, tea.Cmd) {
	p := m.reg.Parse(input)
	if p.Command != nil && p.Command.Slow {
		m.addNote(fmt.Sprintf("Running %s...", p.Command.Name), false)
		return m, runSlowCommand(m.reg, m.cmdCtx, input, p)
	}
	return m.applyResult(m.reg.Run(m.cmdCtx, p))
}

func (m Model) applyResult(res commands.Result) (tea.Model, tea.Cmd) {
	if res.Quit {
		m.quitting = true
		return m, tea.Quit
	}
	if res.Reloaded {
		m.notes = nil
		m.cache = make(map[string]rendered)
	}
	switch {
	case res.Err != nil:
		m.addNote(res.Err.Error(), true)
	case res.Text != "":
		m.addNote(res.Text, false)
	default:
		m.refresh()
	}
	return m, listSessions(m.cmdCtx.Sessions)
}

// complete finishes a partially typed command name, or cycles the
// configured models when the input is not a command.
func (m *Model) complete() {
	value := m.input.Value()

	if partial := commands.GetPartialCommand(value); partial != "" {
		matches := m.reg.Complete(partial)
		switch len(matches) {
		case 0:
			return
		case 1:
			m.input.SetValue(matches[0] + " ")
		default:
			m.input.SetValue(commonPrefix(matches))
			m.addNote(strings.Join(matches, "  "), false)
		}
		m.input.CursorEnd()
		return
	}
	if commands.IsCommand(value) {
		return
	}

	if m.cmdCtx.Config == nil || len(m.cmdCtx.Config.Models.Available) == 0 {
		return
	}
	models := m.cmdCtx.Config.Models.Available
	next := models[0]
	for i, name := range models {
		if name == m.sess.Model() {
			next = models[(i+1)%len(models)]
			break
		}
	}
	m.sess.SetModel(next)
	m.addNote("Model: "+next, false)
}

func (m *Model) addNote(text string, isErr bool) {
	m.notes = append(m.notes, note{after: m.sess.History().Len(), text: text, err: isErr})
	m.refresh()
}

func commonPrefix(words []string) string {
	if len(words) == 0 {
		return ""
	}
	prefix := words[0]
	for _, w := range words[1:] {
		for !strings.HasPrefix(w, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix
}

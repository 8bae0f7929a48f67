// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/morganforge/theseus/internal/model"
	"github.com/morganforge/theseus/internal/orchestrator"
	"github.com/morganforge/theseus/internal/ui/styles"
)

// View renders the chat interface.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.statusLine(),
		m.theme.Input.Width(m.mainWidth()-2).Render(m.input.View()),
		m.help.ShortHelpView(m.keys.ShortHelp()),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar(), main)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refresh re-renders the transcript into the viewport, following the
// bottom when the user has not scrolled away from it.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	follow := m.viewport.AtBottom() || m.sess.State().Busy()
	m.viewport.SetContent(m.transcript())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) transcript() string {
	h := m.sess.History()
	if h.IsEmpty() && len(m.notes) == 0 {
		return m.welcome()
	}

	var blocks []string
	ni := 0
	for i := 0; i <= len(h.Turns); i++ {
		for ni < len(m.notes) && m.notes[ni].after <= i {
			blocks = append(blocks, m.renderNote(m.notes[ni]))
			ni++
		}
		if i < len(h.Turns) {
			blocks = append(blocks, m.renderTurn(h.Turns[i]))
		}
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) welcome() string {
	t := m.theme
	lines := []string{
		t.Brand.Render("THESEUS"),
		"",
		t.Note.Render("Ask a question about your research papers."),
		t.Note.Render(fmt.Sprintf("With research on, %s is scanned for your words first.", m.sess.CorpusDir())),
		t.Note.Render("Type /help for commands."),
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderNote(n note) string {
	style := m.theme.Note
	if n.err {
		style = m.theme.ErrorNote
	}
	return style.Width(m.mainWidth() - 2).Render(n.text)
}

func (m *Model) renderTurn(t *model.Turn) string {
	th := m.theme
	if t.Role == model.RoleUser {
		label := th.UserLabel.Render(t.Role.DisplayName())
		if t.HasImage {
			label += " " + th.Label.Render("[image]")
		}
		return label + "\n" + th.UserText.Width(m.mainWidth()-2).Render(t.Content)
	}
	return th.AssistantLabel.Render(t.Role.DisplayName()) + "\n" + m.markdown(t)
}

// markdown renders an assistant turn through glamour, reusing the last
// rendering while the turn's content and the wrap width are unchanged.
func (m *Model) markdown(t *model.Turn) string {
	if m.md == nil {
		return m.theme.UserText.Render(t.Content)
	}
	if r, ok := m.cache[t.ID]; ok && r.size == len(t.Content) && r.width == m.width {
		return r.out
	}
	out, err := m.md.Render(t.Content)
	if err != nil {
		m.log.Debug().Err(err).Str("turn", t.ID).Msg("markdown render failed")
		out = t.Content
	}
	out = strings.Trim(out, "\n")
	m.cache[t.ID] = rendered{size: len(t.Content), width: m.width, out: out}
	return out
}

// =============================================================================
// STATUS LINE
// =============================================================================

func (m Model) statusLine() string {
	t := m.theme
	switch m.sess.State() {
	case orchestrator.StateScanning:
		text := m.sess.Status()
		if text == "" {
			text = "Scanning..."
		}
		return m.spinner.View() + " " + t.StatusScanning.Render(text)
	case orchestrator.StateGenerating:
		return m.spinner.View() + " " + t.StatusGenerating.Render(fmt.Sprintf("Generating with %s...", m.sess.Model()))
	default:
		line := "Ready"
		if img, ok := m.sess.Image(); ok {
			line += " · image " + filepath.Base(img.Path) + " attached"
		}
		return t.StatusIdle.Render(line)
	}
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) sidebar() string {
	t := m.theme
	inner := styles.SidebarWidth - 3

	var b strings.Builder
	b.WriteString(t.Brand.Render("THESEUS") + "\n")
	b.WriteString(t.Label.Render("local research assistant") + "\n")

	b.WriteString(t.SidebarHeading.Render("VRAM") + "\n")
	if m.vram.Available() {
		b.WriteString(t.Gauge(m.vram.Percent(), inner) + "\n")
		b.WriteString(t.Value.Render(fmt.Sprintf("%d / %d MiB", m.vram.UsedMB, m.vram.TotalMB)) + "\n")
	} else {
		b.WriteString(t.Gauge(0, inner) + "\n")
		b.WriteString(t.Off.Render("no GPU reading") + "\n")
	}

	b.WriteString(t.SidebarHeading.Render("Settings") + "\n")
	b.WriteString(m.setting("model", t.Value.Render(truncate(m.sess.Model(), inner-9))))
	b.WriteString(m.setting("research", m.toggle(m.sess.Retrieval())))
	b.WriteString(m.setting("stream", m.toggle(m.sess.Stream())))
	b.WriteString(m.setting("dir", t.Value.Render(truncateLeft(m.sess.CorpusDir(), inner-9))))

	b.WriteString(t.SidebarHeading.Render("Sessions") + "\n")
	if len(m.sessions) == 0 {
		b.WriteString(t.Off.Render("none saved") + "\n")
	}
	current := m.sess.History().ID
	for i, s := range m.sessions {
		if i >= m.sessionRows() {
			b.WriteString(t.Off.Render(fmt.Sprintf("+%d more (/sessions)", len(m.sessions)-i)) + "\n")
			break
		}
		line := fmt.Sprintf("%2d %s", i+1, truncate(s.Title, inner-3))
		if s.ID == current {
			b.WriteString(t.SessionActive.Render(line) + "\n")
		} else {
			b.WriteString(t.Session.Render(line) + "\n")
		}
	}

	return t.Sidebar.Height(m.height).Render(strings.TrimRight(b.String(), "\n"))
}

// sessionRows is how many stored sessions fit under the fixed sidebar
// sections.
func (m Model) sessionRows() int {
	const fixed = 16
	n := m.height - fixed
	if n < 1 {
		n = 1
	}
	return n
}

func (m Model) setting(label, value string) string {
	return m.theme.Label.Render(runewidth.FillRight(label, 9)) + value + "\n"
}

func (m Model) toggle(on bool) string {
	if on {
		return m.theme.On.Render("ON")
	}
	return m.theme.Off.Render("off")
}

// truncate shortens s to width display cells.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// truncateLeft keeps the end of s, which is the informative part of a path.
func truncateLeft(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for i := range r {
		tail := string(r[i:])
		if runewidth.StringWidth(tail)+1 <= width {
			return "…" + tail
		}
	}
	return "…"
}

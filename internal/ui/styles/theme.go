// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
	ModeNoTTY = "notty"
)

// SidebarWidth is the fixed width of the left column including its border.
const SidebarWidth = 32

// Theme holds every style the chat view uses.
type Theme struct {
	Mode    string
	IsDark  bool
	Profile termenv.Profile

	// Markdown is the glamour standard style name for assistant replies.
	Markdown string

	renderer *lipgloss.Renderer

	// Layout
	Sidebar        lipgloss.Style
	SidebarHeading lipgloss.Style
	Brand          lipgloss.Style
	Label          lipgloss.Style
	Value          lipgloss.Style
	On             lipgloss.Style
	Off            lipgloss.Style
	Session        lipgloss.Style
	SessionActive  lipgloss.Style

	// Transcript
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserText       lipgloss.Style
	Note           lipgloss.Style
	ErrorNote      lipgloss.Style

	// Status line and input
	StatusIdle       lipgloss.Style
	StatusScanning   lipgloss.Style
	StatusGenerating lipgloss.Style
	Input            lipgloss.Style
	Help             lipgloss.Style
}

// NewTheme builds a theme for mode. Unknown modes behave like auto.
func NewTheme(mode string) *Theme {
	mode = strings.ToLower(strings.TrimSpace(mode))

	r := lipgloss.NewRenderer(os.Stdout)
	t := &Theme{Mode: mode, renderer: r}

	switch mode {
	case ModeDark:
		t.IsDark = true
		t.Profile = r.ColorProfile()
	case ModeLight:
		t.IsDark = false
		t.Profile = r.ColorProfile()
	case ModeNoTTY:
		t.Profile = termenv.Ascii
	default:
		t.Mode = ModeAuto
		t.IsDark = termenv.HasDarkBackground()
		t.Profile = termenv.ColorProfile()
	}
	r.SetHasDarkBackground(t.IsDark)
	r.SetColorProfile(t.Profile)

	switch {
	case t.Profile == termenv.Ascii:
		t.Markdown = "notty"
	case t.IsDark:
		t.Markdown = "dark"
	default:
		t.Markdown = "light"
	}

	t.initStyles()
	return t
}

// Renderer returns the Lip Gloss renderer the theme's styles are bound to.
func (t *Theme) Renderer() *lipgloss.Renderer {
	return t.renderer
}

func (t *Theme) initStyles() {
	s := t.renderer.NewStyle

	t.Sidebar = s().
		Width(SidebarWidth-1).
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.SidebarHeading = s().Bold(true).Foreground(Purple).MarginTop(1)
	t.Brand = s().Bold(true).Foreground(Cyan)
	t.Label = s().Foreground(TextSecondary)
	t.Value = s().Foreground(TextPrimary)
	t.On = s().Bold(true).Foreground(Emerald)
	t.Off = s().Foreground(TextMuted)
	t.Session = s().Foreground(TextSecondary)
	t.SessionActive = s().Bold(true).Foreground(Purple)

	t.UserLabel = s().Bold(true).Foreground(Cyan)
	t.AssistantLabel = s().Bold(true).Foreground(Purple)
	t.UserText = s().Foreground(TextPrimary).PaddingLeft(2)
	t.Note = s().Italic(true).Foreground(TextSecondary).PaddingLeft(2)
	t.ErrorNote = s().Foreground(Rose).PaddingLeft(2)

	t.StatusIdle = s().Foreground(TextMuted)
	t.StatusScanning = s().Bold(true).Foreground(Amber)
	t.StatusGenerating = s().Bold(true).Foreground(Purple)
	t.Input = s().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(0, 1)
	t.Help = s().Foreground(TextMuted).Background(SurfaceDim)
}

// Gauge draws a width-cell bar filled to frac.
func (t *Theme) Gauge(frac float64, width int) string {
	if width <= 0 {
		return ""
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac*float64(width) + 0.5)
	bar := t.renderer.NewStyle().Foreground(GaugeColor(frac)).Render(strings.Repeat("█", filled))
	return bar + t.Off.Render(strings.Repeat("░", width-filled))
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles holds the palette and Lip Gloss styles of the theseus TUI.

All colors are lipgloss.AdaptiveColor values so light and dark terminals
both read well. NewTheme inspects the terminal through termenv once and
also decides which glamour style assistant replies are rendered with:

	theme := styles.NewTheme("auto")
	r, _ := glamour.NewTermRenderer(glamour.WithStandardStyle(theme.Markdown))

Modes are "auto", "dark", "light" and "notty". notty drops all color and
is what tests use.
*/
package styles

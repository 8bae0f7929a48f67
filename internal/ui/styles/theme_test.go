// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/muesli/termenv"
)

func TestNewTheme_Modes(t *testing.T) {
	tests := []struct {
		mode     string
		markdown string
	}{
		{ModeNoTTY, "notty"},
		{"NoTTY", "notty"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			th := NewTheme(tt.mode)
			if th.Markdown != tt.markdown {
				t.Errorf("Markdown = %q, want %q", th.Markdown, tt.markdown)
			}
			if th.Profile != termenv.Ascii {
				t.Errorf("Profile = %v, want Ascii", th.Profile)
			}
		})
	}
}

func TestNewTheme_UnknownModeIsAuto(t *testing.T) {
	if got := NewTheme("neon").Mode; got != ModeAuto {
		t.Errorf("Mode = %q, want %q", got, ModeAuto)
	}
}

func TestGauge(t *testing.T) {
	th := NewTheme(ModeNoTTY)

	tests := []struct {
		frac   float64
		filled int
	}{
		{0, 0},
		{0.5, 5},
		{1, 10},
		{1.7, 10},
		{-1, 0},
	}

	for _, tt := range tests {
		bar := th.Gauge(tt.frac, 10)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("Gauge(%v) filled %d cells, want %d", tt.frac, got, tt.filled)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 10 {
			t.Errorf("Gauge(%v) has %d cells, want 10", tt.frac, got)
		}
	}

	if th.Gauge(0.5, 0) != "" {
		t.Error("zero-width gauge should be empty")
	}
}

func TestGaugeColor(t *testing.T) {
	if GaugeColor(0.2) != Emerald || GaugeColor(0.75) != Amber || GaugeColor(0.95) != Rose {
		t.Error("GaugeColor thresholds changed")
	}
}

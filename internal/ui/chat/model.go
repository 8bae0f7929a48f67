// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the Bubble Tea front-end of theseus: a sidebar with the
// VRAM gauge, settings and stored sessions, a scrolling transcript, a
// status line and the input box.
//
// The view never talks to Ollama or the corpus itself. It submits input
// to an orchestrator.Session, polls it on every tick and every channel
// wake-up, and renders what the Session holds.
package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"

	"github.com/morganforge/theseus/internal/commands"
	"github.com/morganforge/theseus/internal/detect"
	"github.com/morganforge/theseus/internal/orchestrator"
	"github.com/morganforge/theseus/internal/storage"
	"github.com/morganforge/theseus/internal/ui/styles"
)

// DefaultTick is used when Options.Tick is zero.
const DefaultTick = time.Second

// VRAMReader reports GPU memory. *detect.VRAMProbe implements it.
type VRAMReader interface {
	Read(ctx context.Context) detect.Usage
}

// Options configures the chat view.
type Options struct {
	Session  *orchestrator.Session
	Registry *commands.Registry

	// Commands is the context slash commands run with. Its Session is
	// forced to Options.Session.
	Commands *commands.Context

	// Probe may be nil, which hides the gauge reading.
	Probe VRAMReader

	Theme  *styles.Theme
	Tick   time.Duration
	Logger zerolog.Logger
}

// note is a system line in the transcript, placed after the first
// `after` turns.
type note struct {
	after int
	text  string
	err   bool
}

type rendered struct {
	size  int
	width int
	out   string
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	sess   *orchestrator.Session
	reg    *commands.Registry
	cmdCtx *commands.Context
	probe  VRAMReader
	theme  *styles.Theme
	keys   KeyMap
	tick   time.Duration
	log    zerolog.Logger

	// UI Components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model

	// Markdown rendering of assistant turns, keyed by turn ID
	md    *glamour.TermRenderer
	cache map[string]rendered

	// Dimensions
	width  int
	height int
	ready  bool

	notes     []note
	vram      detect.Usage
	sessions  []storage.Meta
	lastState orchestrator.State
	quitting  bool
}

// New creates the chat model.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ModeAuto)
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	reg := opts.Registry
	if reg == nil {
		reg = commands.NewRegistry()
	}
	cmdCtx := opts.Commands
	if cmdCtx == nil {
		cmdCtx = &commands.Context{}
	}
	cmdCtx.Session = opts.Session
	cmdCtx.Registry = reg

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your papers, or /help"
	ti.CharLimit = 8192
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.StatusGenerating

	return Model{
		sess:     opts.Session,
		reg:      reg,
		cmdCtx:   cmdCtx,
		probe:    opts.Probe,
		theme:    theme,
		keys:     DefaultKeyMap(),
		tick:     tick,
		log:      opts.Logger.With().Str("component", "tui").Logger(),
		input:    ti,
		spinner:  sp,
		help:     help.New(),
		cache:    make(map[string]rendered),
		viewport: viewport.New(80, 20),
	}
}

// Init starts the tick, the wake-up wait, and the first sidebar loads.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		tickCmd(m.tick),
		waitForEvents(m.sess.Events().Ready()),
		readVRAM(m.probe),
		listSessions(m.cmdCtx.Sessions),
	)
}

// Run starts the full-screen program and blocks until it exits.
func Run(opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// =============================================================================
// LAYOUT
// =============================================================================

const (
	inputHeight  = 3
	statusHeight = 1
	helpHeight   = 1
)

func (m Model) mainWidth() int {
	w := m.width - styles.SidebarWidth
	if w < 20 {
		w = 20
	}
	return w
}

// resize recomputes component sizes and rebuilds the markdown renderer
// for the new wrap width.
func (m *Model) resize(width, height int) {
	widthChanged := width != m.width
	m.width, m.height = width, height

	vh := height - inputHeight - statusHeight - helpHeight
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = m.mainWidth()
	m.viewport.Height = vh
	m.input.Width = m.mainWidth() - 6
	m.help.Width = m.mainWidth()

	if widthChanged || m.md == nil {
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.theme.Markdown),
			glamour.WithWordWrap(m.mainWidth()-4),
		)
		if err != nil {
			m.log.Warn().Err(err).Msg("markdown renderer unavailable")
			md = nil
		}
		m.md = md
		m.cache = make(map[string]rendered)
	}
	m.ready = true
	m.refresh()
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"
	"github.com/rs/zerolog"

	"github.com/morganforge/theseus/internal/commands"
	"github.com/morganforge/theseus/internal/event"
	"github.com/morganforge/theseus/internal/orchestrator"
	"github.com/morganforge/theseus/internal/ui/styles"
)

// Prompt is shown before every input line.
const Prompt = "theseus> "

// DefaultTick bounds how long a queued event waits when a wake-up is
// missed.
const DefaultTick = 250 * time.Millisecond

// LineReader reads one line of input. *liner.State implements it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// Options configures the REPL.
type Options struct {
	Session  *orchestrator.Session
	Registry *commands.Registry

	// Commands is the context slash commands run with. Its Session is
	// forced to Options.Session.
	Commands *commands.Context

	// Input overrides the liner prompt. Open is not needed when it is set.
	Input LineReader

	Out io.Writer

	// Transcript, when set, receives every applied event in the tagged
	// string form, one per line.
	Transcript io.Writer

	// Markdown renders buffered replies through glamour.
	Markdown bool
	Width    int
	Theme    *styles.Theme

	Tick        time.Duration
	HistoryFile string
	Logger      zerolog.Logger
}

// =============================================================================
// REPL
// =============================================================================

// REPL reads questions and slash commands and prints the session's
// replies as they arrive.
type REPL struct {
	sess       *orchestrator.Session
	reg        *commands.Registry
	cmdCtx     *commands.Context
	in         LineReader
	line       *liner.State
	out        io.Writer
	transcript io.Writer
	md         *glamour.TermRenderer
	theme      *styles.Theme
	tick       time.Duration
	history    string
	log        zerolog.Logger

	// Per-request output state, touched only from the observer
	streaming bool
	streamed  bool
	reply     strings.Builder
}

// New creates a REPL and registers it as the session's observer.
func New(opts Options) *REPL {
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

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ModeNoTTY)
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultTick
	}

	r := &REPL{
		sess:       opts.Session,
		reg:        reg,
		cmdCtx:     cmdCtx,
		in:         opts.Input,
		out:        out,
		transcript: opts.Transcript,
		theme:      theme,
		tick:       tick,
		history:    opts.HistoryFile,
		log:        opts.Logger.With().Str("component", "repl").Logger(),
	}

	if opts.Markdown {
		width := opts.Width
		if width <= 0 {
			width = DefaultTerminalWidth
		}
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(theme.Markdown),
			glamour.WithWordWrap(width-4),
		)
		if err != nil {
			r.log.Warn().Err(err).Msg("markdown renderer unavailable")
		} else {
			r.md = md
		}
	}

	r.sess.Observe(r.observe)
	return r
}

// Open attaches a liner prompt to the terminal and loads the saved input
// history. Close must be called to restore the terminal.
func (r *REPL) Open() {
	r.line = liner.NewLiner()
	r.line.SetCtrlCAborts(true)
	r.line.SetCompleter(func(line string) []string {
		if partial := commands.GetPartialCommand(line); partial != "" {
			return r.reg.Complete(partial)
		}
		return nil
	})
	if r.history != "" {
		if f, err := os.Open(r.history); err == nil {
			if _, err := r.line.ReadHistory(f); err != nil {
				r.log.Debug().Err(err).Msg("failed to read input history")
			}
			f.Close()
		}
	}
	r.in = r.line
}

// Close saves the input history and restores the terminal.
func (r *REPL) Close() error {
	r.sess.Observe(nil)
	if r.line == nil {
		return nil
	}
	defer r.line.Close()

	if r.history == "" {
		return nil
	}
	f, err := os.OpenFile(r.history, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("save input history: %w", err)
	}
	defer f.Close()
	if _, err := r.line.WriteHistory(f); err != nil {
		return fmt.Errorf("save input history: %w", err)
	}
	return nil
}

// Run reads lines until /quit, Ctrl+D, Ctrl+C at the prompt, or ctx ends.
func (r *REPL) Run(ctx context.Context) error {
	if r.in == nil {
		return errors.New("repl: no input; call Open or set Options.Input")
	}
	r.welcome()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		input, err := r.in.Prompt(Prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.in.AppendHistory(input)

		if commands.IsCommand(input) {
			if quit := r.command(input); quit {
				return nil
			}
			continue
		}

		if err := r.ask(ctx, input); err != nil {
			return err
		}
	}
}

func (r *REPL) welcome() {
	t := r.theme
	fmt.Fprintln(r.out, t.Brand.Render("THESEUS")+" "+t.Label.Render("local research assistant"))
	research := "off"
	if r.sess.Retrieval() {
		research = "on, scanning " + r.sess.CorpusDir()
	}
	fmt.Fprintln(r.out, t.Note.Render(fmt.Sprintf("model %s, research %s", r.sess.Model(), research)))
	fmt.Fprintln(r.out, t.Note.Render("Type /help for commands, Ctrl+D to exit."))
	fmt.Fprintln(r.out)
}

// command runs a slash command and reports whether it asked to quit.
func (r *REPL) command(input string) bool {
	res := r.reg.Execute(r.cmdCtx, input)
	switch {
	case res.Err != nil:
		fmt.Fprintln(r.out, r.theme.ErrorNote.Render("Error: "+res.Err.Error()))
	case res.Text != "":
		fmt.Fprintln(r.out, res.Text)
	}
	return res.Quit
}

// ask submits a question and prints the reply until the session returns
// to Idle. An interrupt cancels the request and returns to the prompt.
func (r *REPL) ask(ctx context.Context, input string) error {
	r.streaming = r.sess.Stream()
	r.streamed = false
	r.reply.Reset()

	if !r.sess.Submit(input) {
		fmt.Fprintln(r.out, r.theme.Note.Render("Still working on the last question."))
		return nil
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	ready := r.sess.Events().Ready()
	for {
		r.sess.Poll()
		if !r.sess.State().Busy() {
			return nil
		}

		select {
		case <-ready:
		case <-ticker.C:
		case <-sigCtx.Done():
			r.sess.Cancel()
			r.endLine()
			fmt.Fprintln(r.out, r.theme.ErrorNote.Render("[Cancelled]"))
			return ctx.Err()
		}
	}
}

// =============================================================================
// EVENT OUTPUT
// =============================================================================

// observe prints one applied event. It runs inside Session.Poll and must
// not call back into the Session.
func (r *REPL) observe(e event.Event) {
	if r.transcript != nil {
		if _, err := fmt.Fprintln(r.transcript, e.String()); err != nil {
			r.log.Warn().Err(err).Msg("transcript write failed")
		}
	}

	t := r.theme
	switch e.Kind {
	case event.KindStatus:
		fmt.Fprintln(r.out, t.StatusScanning.Render(e.Payload))

	case event.KindResearchData:
		n := strings.Count(e.Payload, "[SOURCE:")
		fmt.Fprintln(r.out, t.Note.Render(fmt.Sprintf("Found %d %s.", n, plural(n, "passage", "passages"))))

	case event.KindResearchEmpty:
		fmt.Fprintln(r.out, t.Note.Render("No matching passages. Asking without research."))

	case event.KindContent:
		if r.streaming {
			if !r.streamed {
				fmt.Fprintln(r.out, t.AssistantLabel.Render("Theseus"))
				r.streamed = true
			}
			fmt.Fprint(r.out, e.Payload)
			return
		}
		r.reply.WriteString(e.Payload)

	case event.KindDone:
		if r.streaming {
			r.endLine()
			fmt.Fprintln(r.out)
			return
		}
		fmt.Fprintln(r.out, t.AssistantLabel.Render("Theseus"))
		fmt.Fprintln(r.out, r.render(r.reply.String()))
		fmt.Fprintln(r.out)
		r.reply.Reset()
	}
}

func (r *REPL) render(text string) string {
	if r.md == nil {
		return text
	}
	out, err := r.md.Render(text)
	if err != nil {
		r.log.Debug().Err(err).Msg("markdown render failed")
		return text
	}
	return strings.Trim(out, "\n")
}

// endLine terminates a partially streamed reply.
func (r *REPL) endLine() {
	if r.streamed {
		fmt.Fprintln(r.out)
		r.streamed = false
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/morganforge/theseus/internal/export"
	"github.com/morganforge/theseus/internal/model"
	"github.com/morganforge/theseus/internal/storage"
)

// ErrNoStore is returned by session commands when persistence is off.
var ErrNoStore = errors.New("session storage is disabled")

// KeyHelp is appended to /help output. Front-ends may replace it.
var KeyHelp = []string{
	"Enter      send message or run command",
	"Esc        cancel the request in progress",
	"Tab        complete command / cycle model",
	"Ctrl+R     toggle research mode",
	"Ctrl+N     new conversation",
	"Ctrl+C     quit",
}

// =============================================================================
// NAVIGATION
// =============================================================================

// HandleHelp lists commands by category, or describes one command.
func HandleHelp(ctx *Context, args []string) Result {
	reg := ctx.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	if len(args) > 0 {
		name := strings.ToLower(args[0])
		if !strings.HasPrefix(name, "/") {
			name = "/" + name
		}
		cmd := reg.Get(name)
		if cmd == nil {
			return Result{Err: fmt.Errorf("unknown command %s", name)}
		}
		var b strings.Builder
		usage := cmd.Usage
		if usage == "" {
			usage = cmd.Name
		}
		fmt.Fprintf(&b, "%s\n  %s", usage, cmd.Description)
		if len(cmd.Aliases) > 0 {
			fmt.Fprintf(&b, "\n  aliases: %s", strings.Join(cmd.Aliases, ", "))
		}
		for _, a := range cmd.Args {
			fmt.Fprintf(&b, "\n  %s: %s", a.Name, a.Description)
		}
		return Result{Text: b.String()}
	}

	byCat := make(map[string][]*Command)
	var order []string
	for _, cmd := range reg.All() {
		if _, ok := byCat[cmd.Category]; !ok {
			order = append(order, cmd.Category)
		}
		byCat[cmd.Category] = append(byCat[cmd.Category], cmd)
	}

	var b strings.Builder
	for i, cat := range order {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(cat + "\n")
		for _, cmd := range byCat[cat] {
			usage := cmd.Usage
			if usage == "" {
				usage = cmd.Name
			}
			fmt.Fprintf(&b, "  %-22s %s\n", usage, cmd.Description)
		}
	}
	if len(KeyHelp) > 0 {
		b.WriteString("\nKeys\n")
		for _, k := range KeyHelp {
			b.WriteString("  " + k + "\n")
		}
	}
	return Result{Text: strings.TrimRight(b.String(), "\n")}
}

// HandleQuit asks the front-end to exit.
func HandleQuit(ctx *Context, args []string) Result {
	return Result{Quit: true}
}

// HandleStatus summarises the session settings.
func HandleStatus(ctx *Context, args []string) Result {
	s := ctx.Session
	h := s.History()

	var b strings.Builder
	fmt.Fprintf(&b, "state:     %s\n", s.State())
	fmt.Fprintf(&b, "model:     %s\n", s.Model())
	fmt.Fprintf(&b, "research:  %s\n", onOffText(s.Retrieval()))
	fmt.Fprintf(&b, "directory: %s\n", s.CorpusDir())
	fmt.Fprintf(&b, "stream:    %s\n", onOffText(s.Stream()))
	if img, ok := s.Image(); ok {
		fmt.Fprintf(&b, "image:     %s\n", img.Path)
	}
	fmt.Fprintf(&b, "session:   %s (%s, %d turns)", h.ID, h.Title(), h.Len())
	return Result{Text: b.String()}
}

// =============================================================================
// CONVERSATION
// =============================================================================

// HandleNew starts a fresh conversation.
func HandleNew(ctx *Context, args []string) Result {
	if err := ctx.Session.NewChat(); err != nil {
		return Result{Err: err}
	}
	return Result{Text: "Started a new conversation.", Reloaded: true}
}

// HandleSessions lists stored conversations, numbered for /load. With an
// argument the list is filtered by title and shows IDs instead.
func HandleSessions(ctx *Context, args []string) Result {
	if ctx.Sessions == nil {
		return Result{Err: ErrNoStore}
	}

	query := strings.Join(args, " ")
	var (
		metas []storage.Meta
		err   error
	)
	if query == "" {
		metas, err = ctx.Sessions.List()
	} else {
		metas, err = ctx.Sessions.Search(query)
	}
	if err != nil {
		return Result{Err: fmt.Errorf("failed to list sessions: %w", err)}
	}
	if len(metas) == 0 {
		if query != "" {
			return Result{Text: fmt.Sprintf("No sessions match %q.", query)}
		}
		return Result{Text: "No saved sessions."}
	}

	current := ctx.Session.History().ID
	var b strings.Builder
	for i, m := range metas {
		mark := " "
		if m.ID == current {
			mark = "*"
		}
		label := strconv.Itoa(i + 1)
		if query != "" {
			label = m.ID
		}
		fmt.Fprintf(&b, "%s %3s  %-28s %s  %d turns\n", mark, label, m.Title, m.UpdatedAt.Format("2006-01-02 15:04"), m.TurnCount)
	}
	return Result{Text: strings.TrimRight(b.String(), "\n")}
}

// HandleLoad resumes a stored conversation by list number or ID.
func HandleLoad(ctx *Context, args []string) Result {
	if ctx.Sessions == nil {
		return Result{Err: ErrNoStore}
	}
	h, err := loadRef(ctx.Sessions, args[0])
	if err != nil {
		return Result{Err: err}
	}
	if err := ctx.Session.LoadHistory(h); err != nil {
		return Result{Err: err}
	}
	if h.Model != "" {
		ctx.Session.SetModel(h.Model)
	}
	return Result{Text: fmt.Sprintf("Loaded %s (%d turns).", h.Title(), h.Len()), Reloaded: true}
}

// HandleDelete removes a stored conversation. The open conversation is
// left in memory and will be saved again after its next reply.
func HandleDelete(ctx *Context, args []string) Result {
	if ctx.Sessions == nil {
		return Result{Err: ErrNoStore}
	}
	id := args[0]
	if n, err := strconv.Atoi(id); err == nil {
		metas, err := ctx.Sessions.List()
		if err != nil {
			return Result{Err: fmt.Errorf("failed to list sessions: %w", err)}
		}
		if n < 1 || n > len(metas) {
			return Result{Err: fmt.Errorf("no session %d (have %d)", n, len(metas))}
		}
		id = metas[n-1].ID
	}
	if err := ctx.Sessions.Delete(id); err != nil {
		return Result{Err: err}
	}
	return Result{Text: "Deleted " + id + "."}
}

// HandleCancel abandons the request in progress.
func HandleCancel(ctx *Context, args []string) Result {
	if !ctx.Session.Cancel() {
		return Result{Text: "Nothing to cancel."}
	}
	return Result{Text: "Cancelled."}
}

func loadRef(store SessionStore, ref string) (*model.History, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		return store.LoadByIndex(n - 1)
	}
	return store.Load(ref)
}

// =============================================================================
// MODEL
// =============================================================================

// HandleModel shows the configured models or switches to one by name or
// list number.
func HandleModel(ctx *Context, args []string) Result {
	s := ctx.Session
	var available []string
	if ctx.Config != nil {
		available = ctx.Config.Models.Available
	}

	if len(args) == 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "Current model: %s", s.Model())
		for i, m := range available {
			mark := " "
			if m == s.Model() {
				mark = "*"
			}
			fmt.Fprintf(&b, "\n%s %d  %s", mark, i+1, m)
		}
		return Result{Text: b.String()}
	}

	name := args[0]
	if n, err := strconv.Atoi(name); err == nil {
		if n < 1 || n > len(available) {
			return Result{Err: fmt.Errorf("no model %d (have %d)", n, len(available))}
		}
		name = available[n-1]
	}
	s.SetModel(name)

	if ctx.Config != nil && !ctx.Config.HasModel(name) {
		return Result{Text: fmt.Sprintf("Switched to %s (not in the configured list).", name)}
	}
	return Result{Text: "Switched to " + name + "."}
}

// HandleModels asks the server which models are installed.
func HandleModels(ctx *Context, args []string) Result {
	if ctx.Models == nil {
		return Result{Err: errors.New("no model server configured")}
	}
	c, cancel := ctx.deadline()
	defer cancel()

	models, err := ctx.Models.ListModels(c)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to list models: %w", err)}
	}
	if len(models) == 0 {
		return Result{Text: "No models installed."}
	}

	current := ctx.Session.Model()
	var b strings.Builder
	for _, m := range models {
		mark := " "
		if m.Name == current {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s %-32s %9s", mark, m.Name, m.FormatSize())
		if m.Details.ParameterSize != "" {
			fmt.Fprintf(&b, "  %s %s", m.Details.ParameterSize, m.Details.QuantizationLevel)
		}
		b.WriteString("\n")
	}
	return Result{Text: strings.TrimRight(b.String(), "\n")}
}

// HandleStream toggles or sets token streaming.
func HandleStream(ctx *Context, args []string) Result {
	on := !ctx.Session.Stream()
	if len(args) > 0 {
		on = strings.EqualFold(args[0], "on")
	}
	ctx.Session.SetStream(on)
	return Result{Text: "Streaming " + onOffText(on) + "."}
}

// =============================================================================
// RESEARCH
// =============================================================================

// HandleRAG toggles or sets research mode.
func HandleRAG(ctx *Context, args []string) Result {
	on := !ctx.Session.Retrieval()
	if len(args) > 0 {
		on = strings.EqualFold(args[0], "on")
	}
	if got := ctx.Session.SetRetrieval(on); got != on {
		return Result{Err: errors.New("research mode is unavailable: no corpus scanner")}
	}
	return Result{Text: "Research mode " + onOffText(on) + "."}
}

// HandleDir shows or sets the research directory.
func HandleDir(ctx *Context, args []string) Result {
	s := ctx.Session
	if len(args) == 0 {
		return Result{Text: "Research directory: " + s.CorpusDir()}
	}

	dir := expandHome(args[0])
	s.SetCorpusDir(dir)

	info, err := os.Stat(dir)
	switch {
	case err != nil:
		return Result{Text: fmt.Sprintf("Research directory set to %s (warning: %v).", dir, errors.Unwrap(err))}
	case !info.IsDir():
		return Result{Text: fmt.Sprintf("Research directory set to %s (warning: not a directory).", dir)}
	}
	return Result{Text: "Research directory set to " + dir + "."}
}

// HandleImage attaches an image to the next message; no argument clears it.
func HandleImage(ctx *Context, args []string) Result {
	s := ctx.Session
	if len(args) == 0 {
		if _, ok := s.Image(); !ok {
			return Result{Text: "No image attached."}
		}
		s.ClearImage()
		return Result{Text: "Image cleared."}
	}

	path := expandHome(args[0])
	if err := s.AttachImage(path); err != nil {
		return Result{Err: err}
	}
	return Result{Text: "Attached " + filepath.Base(path) + " to the next message."}
}

// HandleExport writes the conversation to a file.
func HandleExport(ctx *Context, args []string) Result {
	format := ""
	if len(args) > 0 {
		format = args[0]
	}
	opts := export.DefaultOptions()
	if len(args) > 1 {
		opts.OutputDir = expandHome(args[1])
	}

	ex, err := export.ForFormat(format, opts)
	if err != nil {
		return Result{Err: err}
	}
	path, err := export.ToFile(ctx.Session.History(), ex, opts)
	if errors.Is(err, export.ErrEmpty) {
		return Result{Text: "Nothing to export yet."}
	}
	if err != nil {
		return Result{Err: err}
	}
	return Result{Text: "Exported to " + path}
}

// =============================================================================
// HELPERS
// =============================================================================

func onOffText(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return filepath.Clean(p)
}

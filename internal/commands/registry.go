// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/morganforge/theseus/internal/export"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Result is what a handler hands back to the front-end.
type Result struct {
	// Text is shown to the user as a system note.
	Text string

	// Err is shown as an error note.
	Err error

	// Quit asks the front-end to exit.
	Quit bool

	// Reloaded is set when the conversation was replaced and the
	// transcript must be redrawn from scratch.
	Reloaded bool
}

// Handler executes a command.
type Handler func(ctx *Context, args []string) Result

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/load")
	Name string

	// Aliases are alternative names (e.g., "/ls")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/load <n|id>")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// Handler is the function that executes the command
	Handler Handler

	// Slow commands do network I/O. The TUI runs them off the update loop.
	Slow bool

	// Category for grouping in help display
	Category string
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string

	// Values for enum types
	Values []string
}

// ArgType indicates what kind of value an argument takes.
type ArgType int

const (
	ArgTypeString  ArgType = iota // Free-form string
	ArgTypeModel                  // Model name
	ArgTypeSession                // Session number or ID
	ArgTypeFile                   // File or directory path
	ArgTypeEnum                   // One of predefined values
)

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	return r.aliases[name]
}

// All returns every command sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Complete returns the command names starting with prefix, sorted.
func (r *Registry) Complete(prefix string) []string {
	prefix = strings.ToLower(prefix)
	var out []string
	for _, cmd := range r.All() {
		if strings.HasPrefix(cmd.Name, prefix) {
			out = append(out, cmd.Name)
		}
	}
	return out
}

// Execute parses input and runs the matching command.
func (r *Registry) Execute(ctx *Context, input string) Result {
	p := r.Parse(input)
	if !p.IsCommand || p.CommandName == "" {
		return Result{Err: fmt.Errorf("not a command: %q", input)}
	}
	return r.Run(ctx, p)
}

// Run executes an already parsed command.
func (r *Registry) Run(ctx *Context, p ParseResult) Result {
	if p.Command == nil {
		return Result{Err: fmt.Errorf("unknown command %s (try /help)", p.CommandName)}
	}
	if err := ValidateArgs(p.Command, p.Args); err != nil {
		return Result{Err: err}
	}
	if ctx.Registry == nil {
		ctx.Registry = r
	}
	return p.Command.Handler(ctx, p.Args)
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

var onOff = []string{"on", "off"}

func (r *Registry) registerBuiltins() {
	// Navigation
	r.Register(&Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "Show commands and keys",
		Usage:       "/help [command]",
		Args:        []ArgDef{{Name: "command", Type: ArgTypeString, Description: "Command to describe"}},
		Category:    "Navigation",
		Handler:     HandleHelp,
	})
	r.Register(&Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit"},
		Description: "Exit theseus",
		Category:    "Navigation",
		Handler:     HandleQuit,
	})
	r.Register(&Command{
		Name:        "/status",
		Description: "Show the current settings",
		Category:    "Navigation",
		Handler:     HandleStatus,
	})

	// Conversation
	r.Register(&Command{
		Name:        "/new",
		Aliases:     []string{"/n"},
		Description: "Start a new conversation",
		Category:    "Conversation",
		Handler:     HandleNew,
	})
	r.Register(&Command{
		Name:        "/sessions",
		Aliases:     []string{"/ls"},
		Description: "List saved conversations",
		Usage:       "/sessions [search]",
		Args:        []ArgDef{{Name: "search", Type: ArgTypeString, Description: "Filter by title"}},
		Category:    "Conversation",
		Handler:     HandleSessions,
	})
	r.Register(&Command{
		Name:        "/load",
		Description: "Resume a saved conversation",
		Usage:       "/load <n|id>",
		Args:        []ArgDef{{Name: "session", Required: true, Type: ArgTypeSession, Description: "number from /sessions or a session id"}},
		Category:    "Conversation",
		Handler:     HandleLoad,
	})
	r.Register(&Command{
		Name:        "/delete",
		Description: "Delete a saved conversation",
		Usage:       "/delete <n|id>",
		Args:        []ArgDef{{Name: "session", Required: true, Type: ArgTypeSession, Description: "number from /sessions or a session id"}},
		Category:    "Conversation",
		Handler:     HandleDelete,
	})
	r.Register(&Command{
		Name:        "/cancel",
		Aliases:     []string{"/stop"},
		Description: "Abandon the request in progress",
		Category:    "Conversation",
		Handler:     HandleCancel,
	})

	// Model
	r.Register(&Command{
		Name:        "/model",
		Aliases:     []string{"/m"},
		Description: "Show or switch the model",
		Usage:       "/model [name|n]",
		Args:        []ArgDef{{Name: "name", Type: ArgTypeModel, Description: "model name or number"}},
		Category:    "Model",
		Handler:     HandleModel,
	})
	r.Register(&Command{
		Name:        "/models",
		Description: "List models installed in Ollama",
		Category:    "Model",
		Slow:        true,
		Handler:     HandleModels,
	})

	// Research
	r.Register(&Command{
		Name:        "/rag",
		Aliases:     []string{"/reasoning"},
		Description: "Toggle the corpus scan before each request",
		Usage:       "/rag [on|off]",
		Args:        []ArgDef{{Name: "mode", Type: ArgTypeEnum, Values: onOff, Description: "on or off"}},
		Category:    "Research",
		Handler:     HandleRAG,
	})
	r.Register(&Command{
		Name:        "/dir",
		Description: "Show or set the research directory",
		Usage:       "/dir [path]",
		Args:        []ArgDef{{Name: "path", Type: ArgTypeFile, Description: "directory of PDFs"}},
		Category:    "Research",
		Handler:     HandleDir,
	})
	r.Register(&Command{
		Name:        "/image",
		Aliases:     []string{"/img"},
		Description: "Attach an image to the next message (no path clears it)",
		Usage:       "/image [path]",
		Args:        []ArgDef{{Name: "path", Type: ArgTypeFile, Description: "image file"}},
		Category:    "Research",
		Handler:     HandleImage,
	})
	r.Register(&Command{
		Name:        "/stream",
		Description: "Toggle token streaming",
		Usage:       "/stream [on|off]",
		Args:        []ArgDef{{Name: "mode", Type: ArgTypeEnum, Values: onOff, Description: "on or off"}},
		Category:    "Model",
		Handler:     HandleStream,
	})
	r.Register(&Command{
		Name:        "/export",
		Description: "Write the conversation to a Markdown or JSON file",
		Usage:       "/export [md|json] [dir]",
		Args: []ArgDef{
			{Name: "format", Type: ArgTypeEnum, Values: export.Formats, Description: "md (default) or json"},
			{Name: "dir", Type: ArgTypeFile, Description: "output directory (default: current)"},
		},
		Category: "Conversation",
		Handler:  HandleExport,
	})
}

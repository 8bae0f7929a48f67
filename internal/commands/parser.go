// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"strings"
	"unicode"
)

// =============================================================================
// PARSE RESULT
// =============================================================================

// ParseResult is one line of input split for dispatch.
type ParseResult struct {
	IsCommand bool

	// Command is nil when CommandName is not registered.
	Command     *Command
	CommandName string // lower-cased, with the slash

	Args    []string
	RawArgs string // everything after the name, trimmed
}

// Parse splits input into a command name and arguments and looks the
// command up in r.
func (r *Registry) Parse(input string) ParseResult {
	input = strings.TrimSpace(input)

	var result ParseResult
	if !strings.HasPrefix(input, "/") {
		return result
	}
	result.IsCommand = true

	parts := splitCommandLine(input)
	if len(parts) == 0 {
		return result
	}

	result.CommandName = strings.ToLower(parts[0])
	result.Args = parts[1:]
	result.RawArgs = strings.TrimSpace(input[len(ExtractCommandName(input)):])
	result.Command = r.Get(result.CommandName)
	return result
}

// =============================================================================
// ARGUMENT PARSING
// =============================================================================

// splitCommandLine splits a command line into tokens. Single or double
// quotes group words (for paths with spaces) and a backslash inside quotes
// escapes a quote or another backslash.
func splitCommandLine(input string) []string {
	var tokens []string
	var cur strings.Builder
	var quote rune
	inToken := false

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0 && r == '\\' && i+1 < len(runes) && strings.ContainsRune(`"'\\`, runes[i+1]):
			i++
			cur.WriteRune(runes[i])
		case quote != 0:
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if inToken {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// =============================================================================
// COMMAND NAME HELPERS
// =============================================================================

// IsCommand reports whether input is a slash command.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// commandToken returns the leading "/name" token of s and whether any
// whitespace follows it.
func commandToken(s string) (name string, terminated bool) {
	if !strings.HasPrefix(s, "/") {
		return "", false
	}
	if end := strings.IndexFunc(s, unicode.IsSpace); end >= 0 {
		return s[:end], true
	}
	return s, false
}

// ExtractCommandName returns the command name at the start of input, as
// in "/model qwen2.5" -> "/model", or "" for plain text.
func ExtractCommandName(input string) string {
	name, _ := commandToken(strings.TrimSpace(input))
	return name
}

// GetPartialCommand returns the command name while it is still being
// typed. Once a space follows the name it returns "".
func GetPartialCommand(input string) string {
	name, terminated := commandToken(input)
	if terminated {
		return ""
	}
	return name
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError reports a missing or out-of-range argument.
type ValidationError struct {
	Command  string
	Arg      string
	Message  string
	Got      string
	Expected string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Command, e.Message)
	if e.Arg != "" {
		fmt.Fprintf(&b, " <%s>", e.Arg)
	}
	if e.Got != "" {
		fmt.Fprintf(&b, " %q", e.Got)
	}
	if e.Expected != "" {
		fmt.Fprintf(&b, " (expected %s)", e.Expected)
	}
	return b.String()
}

// accepts reports whether v is allowed for an enum argument. Other
// argument types accept anything.
func (a ArgDef) accepts(v string) bool {
	if a.Type != ArgTypeEnum || len(a.Values) == 0 {
		return true
	}
	for _, allowed := range a.Values {
		if strings.EqualFold(v, allowed) {
			return true
		}
	}
	return false
}

// ValidateArgs checks args against cmd's argument definitions: required
// arguments must be present and enum arguments must hold a listed value.
func ValidateArgs(cmd *Command, args []string) error {
	if cmd == nil {
		return nil
	}
	for i, def := range cmd.Args {
		if i >= len(args) {
			if def.Required {
				return &ValidationError{Command: cmd.Name, Arg: def.Name, Message: "required argument missing", Expected: def.Description}
			}
			continue
		}
		if !def.accepts(args[i]) {
			return &ValidationError{Command: cmd.Name, Arg: def.Name, Message: "invalid value", Got: args[i], Expected: strings.Join(def.Values, ", ")}
		}
	}
	return nil
}

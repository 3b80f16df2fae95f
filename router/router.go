// Package router classifies one line of user input. A line is either empty,
// a /command whose result is shown to the user, or a prompt for the model.
// Document references of the form @id are expanded in both command
// arguments and prompts.
//
// Escapes: a line starting with "//" is sent to the model with one slash
// removed, and "@@" produces a literal "@". An escape is consumed by the pass
// that sees it: expanding "tag @@notes" gives "tag @notes", and expanding
// that result again resolves @notes. Text that must survive expansion
// verbatim, such as a file attached by an editor, goes through Escape.
package router

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/m4xw311/docchat/command"
	"github.com/m4xw311/docchat/document"
	"github.com/m4xw311/docchat/errors"
	"github.com/rs/zerolog/log"
)

type Kind int

const (
	Empty Kind = iota
	CommandResult
	OutboundPrompt
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case CommandResult:
		return "command_result"
	case OutboundPrompt:
		return "outbound_prompt"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Outcome is the result of routing one line. Command is set for
// CommandResult outcomes. Err is set when the command was unknown or its
// handler failed; Text then holds the diagnostic shown to the user.
type Outcome struct {
	Kind    Kind
	Text    string
	Command string
	Err     error
}

// Documents is the read side of the document store.
type Documents interface {
	Lookup(id string) (document.Document, bool)
}

// Commands resolves command names.
type Commands interface {
	Resolve(name string) (command.Command, bool)
}

type Router struct {
	docs     Documents
	commands Commands
}

func New(docs Documents, commands Commands) *Router {
	return &Router{docs: docs, commands: commands}
}

// Route classifies line and, for commands, runs the handler. It never
// returns an OutboundPrompt for a line starting with a single "/".
func (r *Router) Route(ctx context.Context, line string) Outcome {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return Outcome{Kind: Empty}
	case strings.HasPrefix(line, "//"):
		return Outcome{Kind: OutboundPrompt, Text: r.Expand(line[1:])}
	case strings.HasPrefix(line, "/"):
		name, args := splitCommand(line[1:])
		return r.dispatch(ctx, name, r.Expand(args))
	}
	return Outcome{Kind: OutboundPrompt, Text: r.Expand(line)}
}

func (r *Router) dispatch(ctx context.Context, name, args string) Outcome {
	cmd, ok := r.commands.Resolve(name)
	if !ok || cmd.Handler == nil {
		log.Debug().Str("command", name).Msg("unknown command")
		return Outcome{
			Kind:    CommandResult,
			Command: name,
			Text:    fmt.Sprintf("unknown command %q (type /help to list commands)", "/"+name),
			Err:     errors.Wrapf(command.ErrUnknownCommand, "/%s", name),
		}
	}

	log.Debug().Str("command", name).Int("args_len", len(args)).Msg("running command")
	text, err := cmd.Handler.Run(ctx, args)
	if err != nil {
		return Outcome{
			Kind:    CommandResult,
			Command: name,
			Text:    fmt.Sprintf("command /%s failed: %v", name, err),
			Err:     errors.Wrapf(err, "command /%s failed", name),
		}
	}
	return Outcome{Kind: CommandResult, Command: name, Text: text}
}

// splitCommand splits "name rest of line" at the first whitespace run.
func splitCommand(s string) (name, args string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

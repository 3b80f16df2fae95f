package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/m4xw311/docchat/command"
	"github.com/m4xw311/docchat/config"
	"github.com/m4xw311/docchat/document"
	"github.com/m4xw311/docchat/errors"
	"github.com/m4xw311/docchat/llm"
	"github.com/m4xw311/docchat/router"
	"github.com/m4xw311/docchat/session"
	"github.com/m4xw311/docchat/tools"
	"github.com/rs/zerolog/log"
)

// Apology is the assistant reply used when the model keeps asking for tools
// past the iteration limit.
const Apology = "I encountered an issue while processing your request. Please try rephrasing your question."

type Options struct {
	Documents *document.Store
	// Commands is cloned; the agent adds /clear and /tools to its copy.
	Commands     *command.Registry
	LLM          llm.Client
	Tools        []tools.Tool
	Session      *session.Session
	SystemPrompt string
	// MaxToolIterations bounds the model calls of one turn. Zero means
	// config.DefaultMaxToolIterations.
	MaxToolIterations int
}

type Agent struct {
	Session        *session.Session
	LLMClient      llm.Client
	AvailableTools []tools.Tool

	docs          *document.Store
	commands      *command.Registry
	router        *router.Router
	systemPrompt  string
	maxIterations int
}

// ProcessCallbacks lets a front-end observe one turn. Every field is
// optional.
type ProcessCallbacks struct {
	OnCommandResult    func(name, text string, err error)
	OnAssistantMessage func(message string)
	OnToolCall         func(toolCall session.ToolCall)
	OnToolResult       func(toolCall session.ToolCall, result string)
	// ShouldExecuteTool is asked before each tool call; nil means always.
	ShouldExecuteTool func(toolCall session.ToolCall) bool
	OnWarning         func(warning string)
}

func New(opts Options) (*Agent, error) {
	if opts.LLM == nil {
		return nil, errors.New("agent needs a model client")
	}
	if opts.Session == nil {
		return nil, errors.New("agent needs a session")
	}
	docs := opts.Documents
	if docs == nil {
		docs = document.NewStore()
	}
	var commands *command.Registry
	if opts.Commands != nil {
		commands = opts.Commands.Clone()
	} else {
		commands = command.NewRegistry()
		command.RegisterBuiltins(commands, docs)
	}
	maxIterations := opts.MaxToolIterations
	if maxIterations <= 0 {
		maxIterations = config.DefaultMaxToolIterations
	}

	a := &Agent{
		Session:        opts.Session,
		LLMClient:      opts.LLM,
		AvailableTools: opts.Tools,
		docs:           docs,
		commands:       commands,
		systemPrompt:   opts.SystemPrompt,
		maxIterations:  maxIterations,
	}
	a.registerCommands()
	a.router = router.New(docs, commands)
	return a, nil
}

func (a *Agent) registerCommands() {
	a.commands.Register(command.Command{
		Name:        "help",
		Description: "List available commands",
		Handler: command.HandlerFunc(func(ctx context.Context, args string) (string, error) {
			return command.Help(a.commands), nil
		}),
	})
	a.commands.Register(command.Command{
		Name:        "clear",
		Description: "Forget the conversation so far",
		Handler: command.HandlerFunc(func(ctx context.Context, args string) (string, error) {
			a.Session.Clear()
			if err := a.Session.Save(); err != nil {
				return "", err
			}
			return "Conversation cleared.", nil
		}),
	})
	a.commands.Register(command.Command{
		Name:        "tools",
		Description: "List the tools the model may call",
		Handler: command.HandlerFunc(func(ctx context.Context, args string) (string, error) {
			if len(a.AvailableTools) == 0 {
				return "No tools available.", nil
			}
			var b strings.Builder
			b.WriteString("Available tools:")
			for _, t := range a.AvailableTools {
				fmt.Fprintf(&b, "\n  %-24s %s", t.Name(), t.Description())
			}
			return b.String(), nil
		}),
	})
}

// Documents returns the store @references resolve against.
func (a *Agent) Documents() *document.Store { return a.docs }

// Commands returns the agent's command registry.
func (a *Agent) Commands() *command.Registry { return a.commands }

// ProcessUserInput routes one line. Commands are answered through
// OnCommandResult; prompts go to the model, which may call tools up to the
// iteration limit. A model failure is returned and leaves the history as it
// was before the turn.
func (a *Agent) ProcessUserInput(ctx context.Context, line string, cb ProcessCallbacks) error {
	out := a.router.Route(ctx, line)
	switch out.Kind {
	case router.Empty:
		return nil
	case router.CommandResult:
		if out.Err != nil {
			log.Debug().Err(out.Err).Str("command", out.Command).Msg("command failed")
		}
		if cb.OnCommandResult != nil {
			cb.OnCommandResult(out.Command, out.Text, out.Err)
		}
		return nil
	}

	mark := len(a.Session.Messages)
	a.Session.AddMessage(session.Message{Role: session.RoleUser, Content: out.Text})

	for i := 0; i < a.maxIterations; i++ {
		reply, err := a.LLMClient.Chat(ctx, a.messages(), a.AvailableTools)
		if err != nil {
			a.Session.Messages = a.Session.Messages[:mark]
			return errors.Wrapf(err, "LLM chat failed")
		}
		reply.Role = session.RoleAssistant
		a.Session.AddMessage(*reply)

		if reply.Content != "" && cb.OnAssistantMessage != nil {
			cb.OnAssistantMessage(reply.Content)
		}
		if len(reply.ToolCalls) == 0 {
			a.save(cb)
			return nil
		}

		for _, tc := range reply.ToolCalls {
			result := a.runTool(ctx, tc, cb)
			a.Session.AddMessage(session.Message{
				Role:      session.RoleTool,
				Content:   result,
				ToolCalls: []session.ToolCall{tc},
			})
		}
	}

	log.Debug().Int("iterations", a.maxIterations).Msg("tool call limit reached")
	if cb.OnWarning != nil {
		cb.OnWarning(fmt.Sprintf("stopped after %d iterations to prevent an infinite loop", a.maxIterations))
	}
	a.Session.AddMessage(session.Message{Role: session.RoleAssistant, Content: Apology})
	if cb.OnAssistantMessage != nil {
		cb.OnAssistantMessage(Apology)
	}
	a.save(cb)
	return nil
}

func (a *Agent) messages() []session.Message {
	if a.systemPrompt == "" {
		return a.Session.Messages
	}
	msgs := make([]session.Message, 0, len(a.Session.Messages)+1)
	msgs = append(msgs, session.Message{Role: session.RoleSystem, Content: a.systemPrompt})
	return append(msgs, a.Session.Messages...)
}

// runTool executes one call and returns the text handed back to the model.
// Failures are reported to the model, not to the caller.
func (a *Agent) runTool(ctx context.Context, tc session.ToolCall, cb ProcessCallbacks) string {
	if cb.OnToolCall != nil {
		cb.OnToolCall(tc)
	}

	var result string
	tool := a.findTool(tc.Name)
	switch {
	case tool == nil:
		result = fmt.Sprintf("Error: could not find tool '%s'", tc.Name)
	case cb.ShouldExecuteTool != nil && !cb.ShouldExecuteTool(tc):
		result = fmt.Sprintf("The user declined to run tool '%s'.", tc.Name)
	default:
		out, err := tool.Execute(ctx, tc.Args)
		if err != nil {
			log.Debug().Err(err).Str("tool", tc.Name).Msg("tool failed")
			result = fmt.Sprintf("Error: %v", err)
		} else {
			result = out
		}
	}

	if cb.OnToolResult != nil {
		cb.OnToolResult(tc, result)
	}
	return result
}

func (a *Agent) findTool(name string) tools.Tool {
	for _, t := range a.AvailableTools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

func (a *Agent) save(cb ProcessCallbacks) {
	if err := a.Session.Save(); err != nil {
		log.Warn().Err(err).Str("session", a.Session.Name).Msg("failed to save session")
		if cb.OnWarning != nil {
			cb.OnWarning(fmt.Sprintf("failed to save session: %v", err))
		}
	}
}

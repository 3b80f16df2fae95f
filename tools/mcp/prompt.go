package mcp

import (
	"context"
	"strings"

	"github.com/m4xw311/docchat/command"
	"github.com/m4xw311/docchat/errors"
	"github.com/m4xw311/docchat/session"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Runner sends messages to the model and returns the text of its reply.
type Runner func(ctx context.Context, messages []session.Message) (string, error)

// Commands turns every prompt of the server into a slash command.
func (c *Client) Commands(ctx context.Context, run Runner) ([]command.Command, error) {
	prompts, err := c.Prompts(ctx)
	if err != nil {
		return nil, err
	}
	cmds := make([]command.Command, 0, len(prompts))
	for _, p := range prompts {
		cmds = append(cmds, PromptCommand(c, p, run))
	}
	return cmds, nil
}

// PromptCommand wraps the prompt p as a command. The whitespace separated
// tokens of the invocation fill the prompt arguments in declaration order;
// the last argument takes all remaining tokens. The rendered prompt is sent
// to the model through run and the reply becomes the command result.
func PromptCommand(c *Client, p *mcpsdk.Prompt, run Runner) command.Command {
	cmd := command.Command{
		Name:        p.Name,
		Description: p.Description,
	}
	for _, a := range p.Arguments {
		cmd.Args = append(cmd.Args, a.Name)
	}

	cmd.Handler = command.HandlerFunc(func(ctx context.Context, line string) (string, error) {
		args, err := bindArguments(p, line)
		if err != nil {
			return "", errors.Wrapf(err, "usage: %s", cmd.Usage())
		}
		res, err := c.GetPrompt(ctx, p.Name, args)
		if err != nil {
			return "", err
		}
		msgs := PromptMessages(res)
		if len(msgs) == 0 {
			return "", errors.New("prompt '%s' rendered no messages", p.Name)
		}
		return run(ctx, msgs)
	})
	return cmd
}

func bindArguments(p *mcpsdk.Prompt, line string) (map[string]string, error) {
	tokens := strings.Fields(line)
	args := make(map[string]string, len(p.Arguments))
	for i, a := range p.Arguments {
		switch {
		case i >= len(tokens):
			if a.Required {
				return nil, errors.New("missing required argument '%s'", a.Name)
			}
		case i == len(p.Arguments)-1:
			args[a.Name] = strings.Join(tokens[i:], " ")
		default:
			args[a.Name] = tokens[i]
		}
	}
	return args, nil
}

// PromptMessages converts the text messages of a rendered prompt into
// session messages.
func PromptMessages(res *mcpsdk.GetPromptResult) []session.Message {
	var msgs []session.Message
	for _, m := range res.Messages {
		tc, ok := m.Content.(*mcpsdk.TextContent)
		if !ok {
			continue
		}
		role := session.RoleUser
		if m.Role == "assistant" {
			role = session.RoleAssistant
		}
		msgs = append(msgs, session.Message{Role: role, Content: tc.Text})
	}
	return msgs
}

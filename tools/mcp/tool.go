package mcp

import (
	"context"
	"strings"

	"github.com/m4xw311/docchat/errors"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool represents a tool available from an external MCP server.
// It satisfies the tools.Tool interface.
type Tool struct {
	name        string
	description string
	schema      map[string]interface{}
	client      *Client
}

// Name returns the tool's name as published by the server, without a server
// prefix.
func (t *Tool) Name() string { return t.name }

func (t *Tool) Description() string { return t.description }

func (t *Tool) InputSchema() map[string]interface{} { return t.schema }

// Server is the name of the MCP server providing the tool.
func (t *Tool) Server() string { return t.client.Name }

// Execute calls the tool on the MCP server and returns the text content of
// the result. A result flagged as an error is returned as an error.
func (t *Tool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	result, err := t.client.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.name,
		Arguments: args,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to call tool '%s'", t.name)
	}
	text := contentText(result.Content)
	if result.IsError {
		return "", errors.New("tool '%s' failed: %s", t.name, text)
	}
	return text, nil
}

func contentText(content []mcpsdk.Content) string {
	var b strings.Builder
	for _, c := range content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// Package mcp connects to Model Context Protocol servers and exposes what
// they offer: tools for the model, documents for @id references and prompts
// as slash commands.
package mcp

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"

	"github.com/m4xw311/docchat/document"
	"github.com/m4xw311/docchat/errors"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// ClientVersion is reported to servers during initialization.
var ClientVersion = "v0.1.0"

// Client manages the connection to a single MCP server.
type Client struct {
	Name    string
	cmd     *exec.Cmd
	session *mcpsdk.ClientSession
	tools   []*Tool
}

// NewClient starts the MCP server subprocess and initializes the client.
// It is responsible for discovering the tools provided by the server.
func NewClient(ctx context.Context, name, command string, args []string) (*Client, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	c, err := NewClientWithTransport(ctx, name, &mcpsdk.CommandTransport{Command: cmd})
	if err != nil {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		return nil, err
	}
	c.cmd = cmd
	return c, nil
}

// NewClientWithTransport connects over an already constructed transport.
func NewClientWithTransport(ctx context.Context, name string, transport mcpsdk.Transport) (*Client, error) {
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "docchat", Version: ClientVersion}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to MCP server '%s'", name)
	}
	c := &Client{Name: name, session: session}

	if c.capabilities().Tools != nil {
		if err := c.discoverTools(ctx); err != nil {
			session.Close()
			return nil, err
		}
	}

	log.Info().Str("server", name).Int("tools", len(c.tools)).Msg("initialized MCP client")
	return c, nil
}

func (c *Client) capabilities() *mcpsdk.ServerCapabilities {
	if res := c.session.InitializeResult(); res != nil && res.Capabilities != nil {
		return res.Capabilities
	}
	return &mcpsdk.ServerCapabilities{}
}

func (c *Client) discoverTools(ctx context.Context) error {
	params := &mcpsdk.ListToolsParams{}
	for {
		list, err := c.session.ListTools(ctx, params)
		if err != nil {
			return errors.Wrapf(err, "failed to list tools from MCP server '%s'", c.Name)
		}
		for _, t := range list.Tools {
			c.tools = append(c.tools, &Tool{
				name:        t.Name,
				description: t.Description,
				schema:      schemaMap(t.InputSchema),
				client:      c,
			})
		}
		if list.NextCursor == "" {
			return nil
		}
		params.Cursor = list.NextCursor
	}
}

// Tools returns the tools provided by this server.
func (c *Client) Tools() []*Tool {
	return c.tools
}

// Documents reads every document the server publishes under
// document.ListURI. A server without that resource has no documents.
func (c *Client) Documents(ctx context.Context) ([]document.Document, error) {
	if c.capabilities().Resources == nil {
		return nil, nil
	}
	found, err := c.hasResource(ctx, document.ListURI)
	if err != nil || !found {
		return nil, err
	}

	text, err := c.readText(ctx, document.ListURI)
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(text), &ids); err != nil {
		return nil, errors.Wrapf(err, "MCP server '%s' returned a malformed document list", c.Name)
	}

	docs := make([]document.Document, 0, len(ids))
	for _, id := range ids {
		content, err := c.readText(ctx, document.URI(id))
		if err != nil {
			return docs, err
		}
		docs = append(docs, document.Document{ID: id, Content: content})
	}
	return docs, nil
}

func (c *Client) hasResource(ctx context.Context, uri string) (bool, error) {
	params := &mcpsdk.ListResourcesParams{}
	for {
		list, err := c.session.ListResources(ctx, params)
		if err != nil {
			return false, errors.Wrapf(err, "failed to list resources from MCP server '%s'", c.Name)
		}
		for _, r := range list.Resources {
			if r.URI == uri {
				return true, nil
			}
		}
		if list.NextCursor == "" {
			return false, nil
		}
		params.Cursor = list.NextCursor
	}
}

func (c *Client) readText(ctx context.Context, uri string) (string, error) {
	res, err := c.session.ReadResource(ctx, &mcpsdk.ReadResourceParams{URI: uri})
	if err != nil {
		return "", errors.Wrapf(err, "failed to read resource '%s' from MCP server '%s'", uri, c.Name)
	}
	var text string
	for _, rc := range res.Contents {
		if rc.Text != "" {
			text += rc.Text
		} else {
			text += string(rc.Blob)
		}
	}
	return text, nil
}

// Prompts lists the prompts offered by the server.
func (c *Client) Prompts(ctx context.Context) ([]*mcpsdk.Prompt, error) {
	if c.capabilities().Prompts == nil {
		return nil, nil
	}
	var prompts []*mcpsdk.Prompt
	params := &mcpsdk.ListPromptsParams{}
	for {
		list, err := c.session.ListPrompts(ctx, params)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list prompts from MCP server '%s'", c.Name)
		}
		prompts = append(prompts, list.Prompts...)
		if list.NextCursor == "" {
			return prompts, nil
		}
		params.Cursor = list.NextCursor
	}
}

// GetPrompt renders a prompt with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcpsdk.GetPromptResult, error) {
	res, err := c.session.GetPrompt(ctx, &mcpsdk.GetPromptParams{Name: name, Arguments: args})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get prompt '%s' from MCP server '%s'", name, c.Name)
	}
	return res, nil
}

// Close ends the session. For a subprocess server this also stops the
// process.
func (c *Client) Close() error {
	log.Debug().Str("server", c.Name).Msg("closing MCP client")
	if c.session == nil {
		return nil
	}
	return c.session.Close()
}

// schemaMap converts a tool input schema of unknown concrete type into a
// plain JSON object.
func schemaMap(schema any) map[string]interface{} {
	if m, ok := schema.(map[string]interface{}); ok {
		return m
	}
	m := map[string]interface{}{"type": "object"}
	if schema == nil {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return m
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]interface{}{"type": "object"}
	}
	return m
}

package docserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/m4xw311/docchat/document"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, store *document.Store) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	_, err := New(store, "test").Connect(ctx, serverTransport)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestListTools(t *testing.T) {
	cs := connect(t, document.NewStoreFrom(document.Samples()))
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"list_documents", "read_doc_contents", "edit_document"}, names)
}

func TestReadAndEditDocument(t *testing.T) {
	store := document.NewStoreFrom(document.Samples())
	cs := connect(t, store)
	ctx := context.Background()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "read_doc_contents",
		Arguments: map[string]any{"doc_id": "report.pdf"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "The report details the state of a 20m condenser tower.", text(t, res))

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "edit_document",
		Arguments: map[string]any{"doc_id": "report.pdf", "old_str": "20m", "new_str": "25m"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	doc, _ := store.Lookup("report.pdf")
	assert.Equal(t, "The report details the state of a 25m condenser tower.", doc.Content)
}

func TestToolErrorsAreResults(t *testing.T) {
	cs := connect(t, document.NewStore())
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "read_doc_contents",
		Arguments: map[string]any{"doc_id": "missing.md"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "document not found")
}

func TestResources(t *testing.T) {
	store := document.NewStoreFrom(map[string]string{"plan.md": "the plan", "notes/a b.txt": "spaced"})
	cs := connect(t, store)
	ctx := context.Background()

	list, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: document.ListURI})
	require.NoError(t, err)
	require.Len(t, list.Contents, 1)
	assert.Equal(t, "application/json", list.Contents[0].MIMEType)
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(list.Contents[0].Text), &ids))
	assert.Equal(t, []string{"notes/a b.txt", "plan.md"}, ids)

	for _, id := range ids {
		res, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: document.URI(id)})
		require.NoError(t, err, id)
		require.Len(t, res.Contents, 1)
		want, _ := store.Lookup(id)
		assert.Equal(t, want.Content, res.Contents[0].Text)
		assert.Equal(t, "text/plain", res.Contents[0].MIMEType)
	}

	_, err = cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: document.URI("missing.md")})
	assert.Error(t, err)
}

func TestPrompts(t *testing.T) {
	cs := connect(t, document.NewStoreFrom(document.Samples()))
	ctx := context.Background()

	list, err := cs.ListPrompts(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, p := range list.Prompts {
		names = append(names, p.Name)
		require.Len(t, p.Arguments, 1)
		assert.Equal(t, "doc_id", p.Arguments[0].Name)
		assert.True(t, p.Arguments[0].Required)
	}
	assert.ElementsMatch(t, []string{"format", "summarize"}, names)

	res, err := cs.GetPrompt(ctx, &mcp.GetPromptParams{Name: "summarize", Arguments: map[string]string{"doc_id": "deposition.md"}})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, mcp.Role("user"), res.Messages[0].Role)
	body := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, body, "Angela Smith")

	res, err = cs.GetPrompt(ctx, &mcp.GetPromptParams{Name: "format", Arguments: map[string]string{"doc_id": "plan.md"}})
	require.NoError(t, err)
	body = res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, body, "plan.md")
	assert.Contains(t, body, "edit_document")

	_, err = cs.GetPrompt(ctx, &mcp.GetPromptParams{Name: "summarize", Arguments: map[string]string{"doc_id": "nope"}})
	assert.Error(t, err)
}

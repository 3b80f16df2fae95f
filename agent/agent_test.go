package agent

import (
	"context"
	"os"
	"testing"

	"github.com/m4xw311/docchat/command"
	"github.com/m4xw311/docchat/document"
	"github.com/m4xw311/docchat/errors"
	"github.com/m4xw311/docchat/llm"
	"github.com/m4xw311/docchat/session"
	"github.com/m4xw311/docchat/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	commands    []string
	commandErrs []error
	replies     []string
	calls       []string
	results     []string
	warnings    []string
}

func (r *recorder) callbacks() ProcessCallbacks {
	return ProcessCallbacks{
		OnCommandResult: func(name, text string, err error) {
			r.commands = append(r.commands, text)
			r.commandErrs = append(r.commandErrs, err)
		},
		OnAssistantMessage: func(message string) { r.replies = append(r.replies, message) },
		OnToolCall:         func(tc session.ToolCall) { r.calls = append(r.calls, tc.Name) },
		OnToolResult:       func(tc session.ToolCall, result string) { r.results = append(r.results, result) },
		OnWarning:          func(warning string) { r.warnings = append(r.warnings, warning) },
	}
}

func newTestAgent(t *testing.T, client llm.Client) *Agent {
	t.Helper()
	docs := document.NewStoreFrom(map[string]string{
		"plan.md":    "Ship in May.",
		"report.pdf": "The condenser tower is 20m.",
	})
	commands := command.NewRegistry()
	command.RegisterBuiltins(commands, docs)

	sess, err := session.New(t.TempDir(), "test")
	require.NoError(t, err)

	a, err := New(Options{
		Documents: docs,
		Commands:  commands,
		LLM:       client,
		Tools:     tools.DocumentTools(docs),
		Session:   sess,
	})
	require.NoError(t, err)
	return a
}

func readCall(id, doc string) session.ToolCall {
	return session.ToolCall{ToolCallID: id, Name: "read_doc_contents", Args: map[string]interface{}{"doc_id": doc}}
}

type failingClient struct{}

func (failingClient) Chat(ctx context.Context, messages []session.Message, availableTools []tools.Tool) (*session.Message, error) {
	return nil, errors.New("connection refused")
}

func TestNewRequiresClientAndSession(t *testing.T) {
	sess, err := session.New(t.TempDir(), "test")
	require.NoError(t, err)

	_, err = New(Options{Session: sess})
	assert.Error(t, err)
	_, err = New(Options{LLM: &llm.MockClient{}})
	assert.Error(t, err)

	a, err := New(Options{LLM: &llm.MockClient{}, Session: sess})
	require.NoError(t, err)
	_, ok := a.Commands().Resolve("docs")
	assert.True(t, ok)
}

func TestPromptExpandsReferences(t *testing.T) {
	m := &llm.MockClient{}
	a := newTestAgent(t, m)
	rec := &recorder{}

	require.NoError(t, a.ProcessUserInput(context.Background(), "  What is in @report.pdf?  ", rec.callbacks()))

	require.Len(t, m.Calls, 1)
	assert.Equal(t, "What is in The condenser tower is 20m.?", m.Calls[0][0].Content)
	assert.ElementsMatch(t, []string{"edit_document", "list_documents", "read_doc_contents"}, m.Tools)
	assert.Equal(t, []string{"I am a mock LLM. You said: 'What is in The condenser tower is 20m.?'."}, rec.replies)

	require.Len(t, a.Session.Messages, 2)
	_, err := os.Stat(a.Session.Path())
	assert.NoError(t, err, "session is saved after the turn")
}

func TestEmptyLineDoesNothing(t *testing.T) {
	m := &llm.MockClient{}
	a := newTestAgent(t, m)
	rec := &recorder{}

	require.NoError(t, a.ProcessUserInput(context.Background(), "   ", rec.callbacks()))
	assert.Empty(t, m.Calls)
	assert.Empty(t, rec.commands)
	assert.Empty(t, a.Session.Messages)
}

func TestCommandsNeverReachTheModel(t *testing.T) {
	m := &llm.MockClient{}
	a := newTestAgent(t, m)
	rec := &recorder{}
	ctx := context.Background()

	require.NoError(t, a.ProcessUserInput(ctx, "/docs", rec.callbacks()))
	require.NoError(t, a.ProcessUserInput(ctx, "/frobnicate now", rec.callbacks()))

	assert.Empty(t, m.Calls)
	assert.Empty(t, a.Session.Messages)
	require.Len(t, rec.commands, 2)
	assert.Equal(t, "@plan.md\n@report.pdf", rec.commands[0])
	assert.NoError(t, rec.commandErrs[0])
	assert.Contains(t, rec.commands[1], `unknown command "/frobnicate"`)
	assert.ErrorIs(t, rec.commandErrs[1], command.ErrUnknownCommand)
}

func TestAgentCommands(t *testing.T) {
	a := newTestAgent(t, &llm.MockClient{})
	rec := &recorder{}
	ctx := context.Background()

	require.NoError(t, a.ProcessUserInput(ctx, "hello", rec.callbacks()))
	require.NotEmpty(t, a.Session.Messages)

	require.NoError(t, a.ProcessUserInput(ctx, "/help", rec.callbacks()))
	require.NoError(t, a.ProcessUserInput(ctx, "/tools", rec.callbacks()))
	require.NoError(t, a.ProcessUserInput(ctx, "/clear", rec.callbacks()))

	require.Len(t, rec.commands, 3)
	assert.Contains(t, rec.commands[0], "/clear")
	assert.Contains(t, rec.commands[0], "/doc <id>")
	assert.Contains(t, rec.commands[1], "read_doc_contents")
	assert.Equal(t, "Conversation cleared.", rec.commands[2])
	assert.Empty(t, a.Session.Messages)
}

func TestAgentCommandsDoNotLeakIntoSharedRegistry(t *testing.T) {
	docs := document.NewStore()
	shared := command.NewRegistry()
	command.RegisterBuiltins(shared, docs)
	sess, err := session.New(t.TempDir(), "test")
	require.NoError(t, err)

	_, err = New(Options{Documents: docs, Commands: shared, LLM: &llm.MockClient{}, Session: sess})
	require.NoError(t, err)

	_, ok := shared.Resolve("clear")
	assert.False(t, ok)
}

func TestToolLoop(t *testing.T) {
	m := &llm.MockClient{Replies: []session.Message{
		{Content: "Let me look.", ToolCalls: []session.ToolCall{readCall("c1", "plan.md")}},
		{Content: "It ships in May."},
	}}
	a := newTestAgent(t, m)
	rec := &recorder{}

	require.NoError(t, a.ProcessUserInput(context.Background(), "When do we ship?", rec.callbacks()))

	assert.Len(t, m.Calls, 2)
	assert.Equal(t, []string{"Let me look.", "It ships in May."}, rec.replies)
	assert.Equal(t, []string{"read_doc_contents"}, rec.calls)
	assert.Equal(t, []string{"Ship in May."}, rec.results)

	msgs := a.Session.Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, session.RoleTool, msgs[2].Role)
	assert.Equal(t, "Ship in May.", msgs[2].Content)
	assert.Equal(t, "c1", msgs[2].ToolCalls[0].ToolCallID)
	// The second model call sees the tool result.
	assert.Len(t, m.Calls[1], 3)
}

func TestToolErrorsGoBackToTheModel(t *testing.T) {
	m := &llm.MockClient{Replies: []session.Message{
		{ToolCalls: []session.ToolCall{
			{ToolCallID: "c1", Name: "shell"},
			readCall("c2", "missing.md"),
		}},
		{Content: "Sorry."},
	}}
	a := newTestAgent(t, m)
	rec := &recorder{}

	require.NoError(t, a.ProcessUserInput(context.Background(), "go", rec.callbacks()))

	require.Len(t, rec.results, 2)
	assert.Equal(t, "Error: could not find tool 'shell'", rec.results[0])
	assert.Contains(t, rec.results[1], "Error:")
	assert.Contains(t, rec.results[1], "missing.md")
	assert.Equal(t, []string{"Sorry."}, rec.replies)
}

func TestToolIterationLimit(t *testing.T) {
	m := &llm.MockClient{Replies: []session.Message{
		{ToolCalls: []session.ToolCall{readCall("c1", "plan.md")}},
	}}
	a := newTestAgent(t, m)
	rec := &recorder{}

	require.NoError(t, a.ProcessUserInput(context.Background(), "loop forever", rec.callbacks()))

	assert.Len(t, m.Calls, 5)
	assert.Len(t, rec.results, 5)
	assert.Equal(t, []string{Apology}, rec.replies)
	require.Len(t, rec.warnings, 1)

	last := a.Session.Messages[len(a.Session.Messages)-1]
	assert.Equal(t, session.RoleAssistant, last.Role)
	assert.Equal(t, Apology, last.Content)
}

func TestDeclinedTool(t *testing.T) {
	m := &llm.MockClient{Replies: []session.Message{
		{ToolCalls: []session.ToolCall{readCall("c1", "plan.md")}},
		{Content: "OK."},
	}}
	a := newTestAgent(t, m)
	rec := &recorder{}
	cb := rec.callbacks()
	cb.ShouldExecuteTool = func(session.ToolCall) bool { return false }

	require.NoError(t, a.ProcessUserInput(context.Background(), "read it", cb))
	assert.Equal(t, []string{"The user declined to run tool 'read_doc_contents'."}, rec.results)
}

func TestModelFailureLeavesHistoryUntouched(t *testing.T) {
	a := newTestAgent(t, failingClient{})
	a.Session.AddMessage(session.Message{Role: session.RoleUser, Content: "earlier"})

	err := a.ProcessUserInput(context.Background(), "hello", ProcessCallbacks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Len(t, a.Session.Messages, 1)
}

func TestSystemPromptIsSentNotStored(t *testing.T) {
	m := &llm.MockClient{}
	sess, err := session.New(t.TempDir(), "test")
	require.NoError(t, err)
	a, err := New(Options{LLM: m, Session: sess, SystemPrompt: "Be brief."})
	require.NoError(t, err)

	require.NoError(t, a.ProcessUserInput(context.Background(), "hi", ProcessCallbacks{}))
	require.Len(t, m.Calls, 1)
	assert.Equal(t, session.RoleSystem, m.Calls[0][0].Role)
	assert.Equal(t, session.RoleUser, a.Session.Messages[0].Role)
}

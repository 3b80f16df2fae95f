package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m4xw311/docchat/agent"
	"github.com/m4xw311/docchat/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "docchat dev\n", out.String())
}

func TestRootRejectsBadVerbosity(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--tool-verbosity", "loud"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tool verbosity")
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

// chdirProject creates a project with a config and a docs directory and
// makes it the working directory.
func chdirProject(t *testing.T, config string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DOCCHAT_LLM", "")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".docchat"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".docchat", "config.yaml"), []byte(config), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs", "notes"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "plan.md"), []byte("Ship in May."), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "notes", "a.txt"), []byte("note"), 0644))
	t.Chdir(dir)
	return dir
}

func TestNewApp(t *testing.T) {
	chdirProject(t, `
llm: mock
documents:
  root: docs
  samples: true
tools: ["read_*", "list_documents"]
`)

	a, err := newApp(context.Background(), &flags{})
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.docs.Lookup("plan.md")
	assert.True(t, ok)
	_, ok = a.docs.Lookup("notes/a.txt")
	assert.True(t, ok)
	_, ok = a.docs.Lookup("report.pdf")
	assert.True(t, ok, "samples are loaded")

	var names []string
	for _, tool := range a.tools {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"list_documents", "read_doc_contents"}, names)

	_, ok = a.commands.Resolve("docs")
	assert.True(t, ok)
}

func TestNewAppUnknownServer(t *testing.T) {
	chdirProject(t, "llm: mock\n")

	_, err := newApp(context.Background(), &flags{servers: []string{"nope"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MCP server 'nope' is not configured")
}

func TestAppAgentTurn(t *testing.T) {
	dir := chdirProject(t, "llm: mock\ndocuments:\n  root: docs\n")

	a, err := newApp(context.Background(), &flags{})
	require.NoError(t, err)
	defer a.Close()

	f := &flags{session: "t1"}
	sess, err := openSession(filepath.Join(dir, "sessions"), f)
	require.NoError(t, err)
	chat, err := a.newAgent(sess)
	require.NoError(t, err)

	require.NoError(t, chat.ProcessUserInput(context.Background(), "read @plan.md", agent.ProcessCallbacks{}))
	loaded, err := session.Load(filepath.Join(dir, "sessions"), "t1")
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, "read Ship in May.", loaded.Messages[0].Content)

	resumed, err := openSession(filepath.Join(dir, "sessions"), &flags{resume: "t1"})
	require.NoError(t, err)
	assert.Len(t, resumed.Messages, 2)
}

func TestACPCommand(t *testing.T) {
	chdirProject(t, "llm: mock\ndocuments:\n  root: docs\n")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":1}}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"session/new","params":{"cwd":"/tmp","mcpServers":[]}}` + "\n"))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"acp"})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2, "stdout carries only JSON-RPC messages")
	var resp struct {
		ID     int `json:"id"`
		Result struct {
			SessionID string `json:"sessionId"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &resp))
	assert.Equal(t, 2, resp.ID)
	assert.NotEmpty(t, resp.Result.SessionID)
}

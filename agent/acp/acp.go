package acp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/m4xw311/docchat/agent"
	"github.com/m4xw311/docchat/document"
	"github.com/m4xw311/docchat/errors"
	"github.com/m4xw311/docchat/router"
	"github.com/m4xw311/docchat/session"
	"github.com/rs/zerolog/log"
)

const ProtocolVersion = 1

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Kinds of session/update notifications.
const (
	UpdateUserMessage  = "user_message_chunk"
	UpdateAgentMessage = "agent_message_chunk"
	UpdateToolCall     = "tool_call"
	UpdateToolResult   = "tool_result"
)

// Attached files longer than this are truncated.
const maxInlineSize = 50000

type Options struct {
	SessionsDir string
	// NewAgent builds the agent serving a new or loaded session.
	NewAgent func(sess *session.Session) (*agent.Agent, error)
}

// Run serves requests from in until it reaches EOF. Nothing but JSON-RPC
// messages is written to out.
func Run(ctx context.Context, in io.Reader, out io.Writer, opts Options) error {
	if opts.NewAgent == nil {
		return errors.New("acp server needs an agent constructor")
	}
	s := &server{
		opts:   opts,
		agents: make(map[string]*agent.Agent),
		out:    bufio.NewWriter(out),
	}

	r := bufio.NewReader(in)
	for {
		line, err := r.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			s.dispatch(ctx, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug().Msg("acp client closed input")
				return nil
			}
			return errors.Wrapf(err, "acp read error")
		}
	}
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type server struct {
	opts Options

	mu     sync.Mutex
	agents map[string]*agent.Agent

	writeMu sync.Mutex
	out     *bufio.Writer
}

func (s *server) dispatch(ctx context.Context, payload []byte) {
	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		log.Debug().Err(err).Msg("acp parse error")
		s.fail(nil, CodeParseError, "Parse error", nil)
		return
	}
	log.Debug().Str("method", req.Method).RawJSON("id", rawID(req.ID)).Msg("acp request")

	switch req.Method {
	case "initialize":
		s.handleInitialize(&req)
	case "session/new":
		s.handleSessionNew(&req)
	case "session/load":
		s.handleSessionLoad(&req)
	case "session/prompt":
		s.handleSessionPrompt(ctx, &req)
	default:
		// Notifications such as session/cancel get no reply.
		if len(req.ID) == 0 {
			return
		}
		s.fail(req.ID, CodeMethodNotFound, "Method not found", req.Method)
	}
}

func (s *server) write(msg map[string]interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("could not encode acp message")
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.out.Write(data)
	s.out.WriteByte('\n')
	if err := s.out.Flush(); err != nil {
		log.Debug().Err(err).Msg("acp write error")
	}
}

func (s *server) reply(id json.RawMessage, result interface{}) {
	s.write(map[string]interface{}{"jsonrpc": "2.0", "id": rawID(id), "result": result})
}

func (s *server) fail(id json.RawMessage, code int, msg string, data interface{}) {
	s.write(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      rawID(id),
		"error":   rpcError{Code: code, Message: msg, Data: data},
	})
}

func (s *server) notify(sessionID string, update map[string]interface{}) {
	s.write(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "session/update",
		"params":  map[string]interface{}{"sessionId": sessionID, "update": update},
	})
}

func rawID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

func (s *server) handleInitialize(req *request) {
	s.reply(req.ID, map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"agentCapabilities": map[string]interface{}{
			"loadSession": true,
			"promptCapabilities": map[string]bool{
				"audio":           false,
				"embeddedContext": true,
				"image":           false,
			},
		},
		"authMethods": []interface{}{},
	})
}

func (s *server) handleSessionNew(req *request) {
	id := uuid.NewString()
	sess, err := session.New(s.opts.SessionsDir, id)
	if err != nil {
		s.fail(req.ID, CodeInternalError, "Internal error", fmt.Sprintf("failed to create session: %v", err))
		return
	}
	if !s.start(req, sess) {
		return
	}
	s.reply(req.ID, map[string]interface{}{"sessionId": id})
}

func (s *server) handleSessionLoad(req *request) {
	var p struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil || p.SessionID == "" {
		s.fail(req.ID, CodeInvalidParams, "Invalid params", "sessionId is required")
		return
	}
	sess, err := session.Load(s.opts.SessionsDir, p.SessionID)
	if err != nil {
		s.fail(req.ID, CodeInvalidParams, "Invalid params", fmt.Sprintf("session not found: %v", err))
		return
	}
	if !s.start(req, sess) {
		return
	}

	for _, msg := range sess.Messages {
		switch msg.Role {
		case session.RoleUser:
			s.notify(p.SessionID, textUpdate(UpdateUserMessage, msg.Content))
		case session.RoleAssistant:
			if msg.Content != "" {
				s.notify(p.SessionID, textUpdate(UpdateAgentMessage, msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				s.notify(p.SessionID, toolCallUpdate(tc))
			}
		case session.RoleTool:
			if len(msg.ToolCalls) > 0 {
				s.notify(p.SessionID, toolResultUpdate(msg.ToolCalls[0], msg.Content))
			}
		}
	}
	s.reply(req.ID, nil)
}

// start builds the agent of sess and registers it under the session name.
func (s *server) start(req *request, sess *session.Session) bool {
	a, err := s.opts.NewAgent(sess)
	if err != nil {
		s.fail(req.ID, CodeInternalError, "Internal error", fmt.Sprintf("failed to create agent: %v", err))
		return false
	}
	s.mu.Lock()
	s.agents[sess.Name] = a
	s.mu.Unlock()
	log.Debug().Str("session", sess.Name).Msg("acp session started")
	return true
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// resource_link
	URI         string `json:"uri,omitempty"`
	Name        string `json:"name,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Size        *int64 `json:"size,omitempty"`

	// resource
	Resource *embeddedResource `json:"resource,omitempty"`
}

type embeddedResource struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

func (s *server) handleSessionPrompt(ctx context.Context, req *request) {
	var p struct {
		SessionID string         `json:"sessionId"`
		Prompt    []contentBlock `json:"prompt"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		s.fail(req.ID, CodeInvalidParams, "Invalid params", err.Error())
		return
	}

	s.mu.Lock()
	a, ok := s.agents[p.SessionID]
	s.mu.Unlock()
	if !ok {
		s.fail(req.ID, CodeInvalidParams, "Invalid params", "unknown sessionId")
		return
	}

	callbacks := agent.ProcessCallbacks{
		OnCommandResult: func(name, text string, err error) {
			s.notify(p.SessionID, textUpdate(UpdateAgentMessage, text))
		},
		OnAssistantMessage: func(message string) {
			s.notify(p.SessionID, textUpdate(UpdateAgentMessage, message))
		},
		OnToolCall: func(tc session.ToolCall) {
			s.notify(p.SessionID, toolCallUpdate(tc))
		},
		OnToolResult: func(tc session.ToolCall, result string) {
			s.notify(p.SessionID, toolResultUpdate(tc, result))
		},
		OnWarning: func(warning string) {
			log.Warn().Str("session", p.SessionID).Msg(warning)
		},
	}

	line := promptText(a.Documents(), p.Prompt)
	if err := a.ProcessUserInput(ctx, line, callbacks); err != nil {
		s.fail(req.ID, CodeInternalError, "Internal error", fmt.Sprintf("error processing user input: %v", err))
		return
	}
	s.reply(req.ID, map[string]interface{}{"stopReason": "end_turn"})
}

func textUpdate(kind, text string) map[string]interface{} {
	return map[string]interface{}{
		"sessionUpdate": kind,
		"content":       map[string]interface{}{"type": "text", "text": text},
	}
}

func toolCallUpdate(tc session.ToolCall) map[string]interface{} {
	return map[string]interface{}{
		"sessionUpdate": UpdateToolCall,
		"toolCall": map[string]interface{}{
			"id":   tc.ToolCallID,
			"name": tc.Name,
			"args": tc.Args,
		},
	}
}

func toolResultUpdate(tc session.ToolCall, result string) map[string]interface{} {
	return map[string]interface{}{
		"sessionUpdate": UpdateToolResult,
		"toolResult": map[string]interface{}{
			"toolCallId": tc.ToolCallID,
			"result":     result,
		},
	}
}

// promptText joins the blocks of a prompt into one input line. Text blocks
// are kept as typed, so @references and /commands in them work as in the
// terminal. Attached resources are inlined escaped.
func promptText(docs *document.Store, blocks []contentBlock) string {
	var parts []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if strings.TrimSpace(b.Text) != "" {
				parts = append(parts, b.Text)
			}
		case "resource_link":
			parts = append(parts, attachment(docs, b))
		case "resource":
			if b.Resource != nil {
				parts = append(parts, attachment(docs, contentBlock{
					URI:      b.Resource.URI,
					MimeType: b.Resource.MimeType,
					Text:     b.Resource.Text,
				}))
			}
		default:
			log.Debug().Str("type", b.Type).Msg("ignoring unsupported content block")
		}
	}
	return strings.Join(parts, "\n")
}

func attachment(docs *document.Store, b contentBlock) string {
	name := b.Name
	if name == "" {
		name = b.URI
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Resource: %s ===\n", name)
	if b.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", b.Title)
	}
	if b.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", b.Description)
	}
	fmt.Fprintf(&sb, "URI: %s\n", b.URI)
	if b.MimeType != "" {
		fmt.Fprintf(&sb, "Type: %s\n", b.MimeType)
	}
	if b.Size != nil {
		fmt.Fprintf(&sb, "Size: %d bytes\n", *b.Size)
	}

	content, ok, err := resourceContent(docs, b)
	switch {
	case err != nil:
		fmt.Fprintf(&sb, "\n[Error reading resource: %v]\n", err)
	case !ok:
		sb.WriteString("\n[External resource - content not available]\n")
	default:
		if len(content) > maxInlineSize {
			content = content[:maxInlineSize] + "\n\n[... truncated ...]"
		}
		fmt.Fprintf(&sb, "\n--- Contents ---\n%s\n--- End of Contents ---\n", content)
	}
	sb.WriteString("=== End Resource ===")
	return router.Escape(sb.String())
}

// resourceContent reports false for resources it cannot read.
func resourceContent(docs *document.Store, b contentBlock) (string, bool, error) {
	if b.Text != "" {
		return b.Text, true, nil
	}
	if id, ok := document.IDFromURI(b.URI); ok {
		doc, err := docs.Get(id)
		if err != nil {
			return "", false, err
		}
		return doc.Content, true, nil
	}
	if strings.HasPrefix(b.URI, "file://") {
		content, err := readFileURI(b.URI)
		return content, err == nil, err
	}
	return "", false, nil
}

func readFileURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", errors.Wrapf(err, "invalid URI")
	}
	data, err := os.ReadFile(u.Path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read file")
	}
	return string(data), nil
}

// Package websocket serves docchat over websocket connections. Each
// connection gets its own agent and session; every inbound text message is
// one input line and the turn is reported back as JSON frames.
package websocket

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/m4xw311/docchat/agent"
	"github.com/m4xw311/docchat/errors"
	"github.com/m4xw311/docchat/session"
	"github.com/rs/zerolog/log"
)

// Frame types sent to the client.
const (
	TypeSession    = "session"
	TypeAssistant  = "assistant"
	TypeCommand    = "command"
	TypeToolCall   = "tool_call"
	TypeToolResult = "tool_result"
	TypeWarning    = "warning"
	TypeError      = "error"
	TypeDone       = "done"
)

const Path = "/ws"

type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type ToolFrame struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name"`
	Args   map[string]interface{} `json:"args,omitempty"`
	Result string                 `json:"result,omitempty"`
}

// NewAgentFunc builds the agent for a new connection.
type NewAgentFunc func(sessionName string) (*agent.Agent, error)

type Server struct {
	newAgent NewAgentFunc
	upgrader websocket.Upgrader
	origins  []string
}

// NewServer accepts browser connections from the server's own origin and
// from allowedOrigins, given as scheme://host[:port]. Clients that send no
// Origin header are always accepted.
func NewServer(newAgent NewAgentFunc, allowedOrigins ...string) *Server {
	s := &Server{newAgent: newAgent}
	for _, o := range allowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			s.origins = append(s.origins, o)
		}
	}
	s.upgrader.CheckOrigin = s.checkOrigin
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.origins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	log.Warn().Str("origin", origin).Msg("rejected websocket connection from foreign origin")
	return false
}

// Handler routes Path to the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, s)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	log.Info().Str("addr", addr).Str("path", Path).Msg("websocket server listening")
	select {
	case err := <-errc:
		return errors.Wrapf(err, "websocket server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("upgrade error")
		return
	}
	defer conn.Close()

	name := uuid.NewString()
	logger := log.With().Str("session", name).Logger()

	a, err := s.newAgent(name)
	if err != nil {
		logger.Error().Err(err).Msg("could not create agent")
		_ = conn.WriteJSON(Frame{Type: TypeError, Data: err.Error()})
		return
	}
	if err := conn.WriteJSON(Frame{Type: TypeSession, Data: name}); err != nil {
		return
	}

	write := func(f Frame) {
		if err := conn.WriteJSON(f); err != nil {
			logger.Debug().Err(err).Str("type", f.Type).Msg("ws write error")
		}
	}
	callbacks := agent.ProcessCallbacks{
		OnCommandResult: func(name, text string, err error) {
			write(Frame{Type: TypeCommand, Data: text})
		},
		OnAssistantMessage: func(message string) {
			write(Frame{Type: TypeAssistant, Data: message})
		},
		OnToolCall: func(tc session.ToolCall) {
			write(Frame{Type: TypeToolCall, Data: ToolFrame{ID: tc.ToolCallID, Name: tc.Name, Args: tc.Args}})
		},
		OnToolResult: func(tc session.ToolCall, result string) {
			write(Frame{Type: TypeToolResult, Data: ToolFrame{ID: tc.ToolCallID, Name: tc.Name, Result: result}})
		},
		OnWarning: func(warning string) {
			write(Frame{Type: TypeWarning, Data: warning})
		},
	}

	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("ws read error")
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		if err := a.ProcessUserInput(r.Context(), string(msg), callbacks); err != nil {
			write(Frame{Type: TypeError, Data: err.Error()})
		}
		write(Frame{Type: TypeDone})
	}
}

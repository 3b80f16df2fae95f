// Package llm adapts chat-completion providers to a single Client
// interface. The provider is chosen once at startup.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/m4xw311/docchat/errors"
	"github.com/m4xw311/docchat/session"
	"github.com/m4xw311/docchat/tools"
)

// Client is the interface for interacting with a Large Language Model.
// The returned message has role assistant. It either carries text or asks
// for tool calls, or both.
type Client interface {
	Chat(ctx context.Context, messages []session.Message, availableTools []tools.Tool) (*session.Message, error)
}

// Complete sends messages without tools and returns the reply text.
func Complete(ctx context.Context, c Client, messages []session.Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("no messages to complete")
	}
	reply, err := c.Chat(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// MockClient answers without calling any provider. By default it echoes
// the last message. Replies, when set, are returned in order instead; the
// last one repeats once they run out.
type MockClient struct {
	Replies []session.Message
	// Calls records the messages of every Chat call.
	Calls [][]session.Message
	// Tools records the tool names offered on the last call.
	Tools []string
}

func (m *MockClient) Chat(ctx context.Context, messages []session.Message, availableTools []tools.Tool) (*session.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, errors.New("mock client received no messages")
	}
	m.Calls = append(m.Calls, append([]session.Message(nil), messages...))
	m.Tools = m.Tools[:0]
	for _, t := range availableTools {
		m.Tools = append(m.Tools, t.Name())
	}

	if len(m.Replies) > 0 {
		i := len(m.Calls) - 1
		if i >= len(m.Replies) {
			i = len(m.Replies) - 1
		}
		reply := m.Replies[i]
		reply.Role = session.RoleAssistant
		return &reply, nil
	}

	last := messages[len(messages)-1]
	return &session.Message{
		Role:    session.RoleAssistant,
		Content: fmt.Sprintf("I am a mock LLM. You said: '%s'.", strings.TrimSpace(last.Content)),
	}, nil
}

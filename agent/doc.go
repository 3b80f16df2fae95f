// Package agent provides the chat loop shared by the docchat front-ends.
//
// An Agent ties together the input router, the model client, the tools the
// model may call and the session that records the conversation. Front-ends
// differ only in how they present a turn, so they hand ProcessUserInput a set
// of callbacks:
//
//	a, err := agent.New(agent.Options{
//	    Documents: docs,
//	    Commands:  commands,
//	    LLM:       client,
//	    Tools:     activeTools,
//	    Session:   sess,
//	})
//	if err != nil {
//	    // handle error
//	}
//
//	err = a.ProcessUserInput(ctx, "summarize @report.pdf", agent.ProcessCallbacks{
//	    OnCommandResult: func(name, text string, err error) {
//	        // /command output, never sent to the model
//	    },
//	    OnAssistantMessage: func(message string) {
//	        // model reply
//	    },
//	    OnToolCall: func(tc session.ToolCall) {},
//	    OnToolResult: func(tc session.ToolCall, result string) {},
//	    OnWarning: func(warning string) {},
//	})
//
// # Turns
//
// A line starting with "/" runs a command and ends the turn. Any other
// non-empty line has its @id references expanded and is appended to the
// session as a user message. The model is then called until it answers
// without tool calls, at most MaxToolIterations times; when the limit is hit
// the turn ends with a fixed apology and a warning. The session is saved
// after every completed turn.
//
// # Subpackages
//
// agent/terminal: interactive REPL with line editing, history, completion
// of commands and document ids, and markdown rendering of replies.
//
// agent/websocket: serves one agent per websocket connection and reports
// each turn as JSON frames.
package agent

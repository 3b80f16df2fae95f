// Package acp serves docchat to editors over the Agent Client Protocol:
// newline-delimited JSON-RPC 2.0 on stdin and stdout.
//
// Supported methods:
//   - initialize: protocol version and agent capabilities
//   - session/new: starts a session backed by a fresh agent
//   - session/load: reopens a saved session and replays its history
//   - session/prompt: runs one input line through the agent
//
// While a prompt runs the server sends session/update notifications with
// agent_message_chunk, tool_call and tool_result updates. Command output is
// sent as an agent_message_chunk. Resources attached to a prompt are inlined
// into the line; docs:// links are read from the document store.
package acp

package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/m4xw311/docchat/errors"
	"github.com/m4xw311/docchat/session"
	"github.com/m4xw311/docchat/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTool is a tool with a fixed schema and result.
type stubTool struct {
	name        string
	description string
	schema      map[string]interface{}
}

func (s *stubTool) Name() string                        { return s.name }
func (s *stubTool) Description() string                 { return s.description }
func (s *stubTool) InputSchema() map[string]interface{} { return s.schema }
func (s *stubTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	return "stub result", nil
}

func readDocTool() *stubTool {
	return &stubTool{
		name:        "read_doc_contents",
		description: "Read a document",
		schema:      tools.ObjectSchema(map[string]string{"doc_id": "Document id"}, "doc_id"),
	}
}

type fakeInvoker struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeInvoker) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestConvertMessagesToAnthropicFormat(t *testing.T) {
	messages := []session.Message{
		{Role: session.RoleSystem, Content: "Be brief."},
		{Role: session.RoleUser, Content: "What is in report.pdf?"},
		{Role: session.RoleAssistant, ToolCalls: []session.ToolCall{
			{ToolCallID: "call_1", Name: "read_doc_contents", Args: map[string]interface{}{"doc_id": "report.pdf"}},
			{ToolCallID: "call_2", Name: "list_documents"},
		}},
		{Role: session.RoleTool, Content: "20m condenser", ToolCalls: []session.ToolCall{{ToolCallID: "call_1", Name: "read_doc_contents"}}},
		{Role: session.RoleTool, Content: "report.pdf", ToolCalls: []session.ToolCall{{ToolCallID: "call_2", Name: "list_documents"}}},
		{Role: session.RoleAssistant, Content: "A 20m condenser."},
	}

	result, system := convertMessagesToAnthropicFormat(messages)
	assert.Equal(t, "Be brief.", system)
	require.Len(t, result, 4)

	assert.Equal(t, "user", result[0]["role"])
	assert.Equal(t, "assistant", result[1]["role"])
	uses := result[1]["content"].([]map[string]interface{})
	require.Len(t, uses, 2)
	assert.Equal(t, "tool_use", uses[0]["type"])
	assert.Equal(t, map[string]interface{}{}, uses[1]["input"])

	// Both tool results share one user turn.
	assert.Equal(t, "user", result[2]["role"])
	results := result[2]["content"].([]map[string]interface{})
	require.Len(t, results, 2)
	assert.Equal(t, "call_1", results[0]["tool_use_id"])
	assert.Equal(t, "call_2", results[1]["tool_use_id"])

	assert.Equal(t, "assistant", result[3]["role"])
}

func TestConvertMessagesToAnthropicFormatSkipsMalformedTool(t *testing.T) {
	result, _ := convertMessagesToAnthropicFormat([]session.Message{
		{Role: session.RoleTool, Content: "orphan"},
	})
	assert.Empty(t, result)
}

func TestCreateAnthropicRequest(t *testing.T) {
	messages := []map[string]interface{}{
		{"role": "user", "content": []map[string]interface{}{{"type": "text", "text": "Hello!"}}},
	}

	body, err := createAnthropicRequest(messages, "", nil)
	require.NoError(t, err)
	var req map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "bedrock-2023-05-31", req["anthropic_version"])
	assert.EqualValues(t, 4096, req["max_tokens"])
	assert.NotContains(t, req, "system")
	assert.NotContains(t, req, "tools")

	body, err = createAnthropicRequest(messages, "Be brief.", []tools.Tool{readDocTool()})
	require.NoError(t, err)
	req = nil
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "Be brief.", req["system"])
	ts := req["tools"].([]interface{})
	require.Len(t, ts, 1)
	tool := ts[0].(map[string]interface{})
	assert.Equal(t, "read_doc_contents", tool["name"])
	schema := tool["input_schema"].(map[string]interface{})
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []interface{}{"doc_id"}, schema["required"])
}

func TestProcessBedrockResponse(t *testing.T) {
	msg, err := processBedrockResponse([]byte(`{"content":[
		{"type":"text","text":"Let me check."},
		{"type":"tool_use","id":"toolu_1","name":"read_doc_contents","input":{"doc_id":"plan.md"}},
		{"type":"tool_use","name":"list_documents","input":{}}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, session.RoleAssistant, msg.Role)
	assert.Equal(t, "Let me check.", msg.Content)
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, "toolu_1", msg.ToolCalls[0].ToolCallID)
	assert.Equal(t, "plan.md", msg.ToolCalls[0].Args["doc_id"])
	assert.Equal(t, "call_2_list_documents", msg.ToolCalls[1].ToolCallID)

	_, err = processBedrockResponse([]byte(`{"error":{"message":"throttled"}}`))
	assert.ErrorContains(t, err, "throttled")

	_, err = processBedrockResponse([]byte(`not json`))
	assert.Error(t, err)
}

func TestBedrockClientChat(t *testing.T) {
	inv := &fakeInvoker{body: `{"content":[{"type":"text","text":"Hi there"}]}`}
	c := &BedrockClient{client: inv, modelID: DefaultBedrockModel}

	msg, err := c.Chat(context.Background(), []session.Message{{Role: session.RoleUser, Content: "Hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", msg.Content)

	require.NotNil(t, inv.input)
	assert.Equal(t, DefaultBedrockModel, aws.ToString(inv.input.ModelId))
	assert.Equal(t, "application/json", aws.ToString(inv.input.ContentType))
	assert.Contains(t, string(inv.input.Body), `"Hi"`)
}

func TestBedrockClientChatError(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("access denied")}
	c := &BedrockClient{client: inv, modelID: DefaultBedrockModel}

	_, err := c.Chat(context.Background(), []session.Message{{Role: session.RoleUser, Content: "Hi"}}, nil)
	assert.ErrorContains(t, err, "access denied")
}

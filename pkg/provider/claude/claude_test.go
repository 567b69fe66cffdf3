package claude

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arborist-ai/turnloop/pkg/model"
	"github.com/arborist-ai/turnloop/pkg/types"
)

const sampleStream = "" +
	"event: message_start\n" +
	`data: {"message":{"usage":{"input_tokens":12}}}` + "\n\n" +
	"event: content_block_start\n" +
	`data: {"index":0,"content_block":{"type":"text","text":""}}` + "\n\n" +
	"event: content_block_delta\n" +
	`data: {"index":0,"delta":{"type":"text_delta","text":"hello "}}` + "\n\n" +
	"event: content_block_delta\n" +
	`data: {"index":0,"delta":{"type":"text_delta","text":"world"}}` + "\n\n" +
	"event: content_block_stop\n" +
	`data: {"index":0}` + "\n\n" +
	"event: content_block_start\n" +
	`data: {"index":1,"content_block":{"type":"tool_use","id":"call1","name":"echo"}}` + "\n\n" +
	"event: content_block_delta\n" +
	`data: {"index":1,"delta":{"type":"input_json_delta","partial_json":"{\"x\":"}}` + "\n\n" +
	"event: content_block_delta\n" +
	`data: {"index":1,"delta":{"type":"input_json_delta","partial_json":"1}"}}` + "\n\n" +
	"event: content_block_stop\n" +
	`data: {"index":1}` + "\n\n" +
	"event: message_delta\n" +
	`data: {"delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":34}}` + "\n\n"

func TestAdapter_Send_ParsesTextAndToolCallStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key header = %q, want %q", got, "test-key")
		}
		if r.URL.Path != "/v1/messages" {
			t.Errorf("request path = %q, want /v1/messages", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(sampleStream))
	}))
	defer srv.Close()

	a, err := New(Config{BaseURL: srv.URL, APIKey: "test-key", AnthropicVersion: "2023-06-01", Model: "claude-test", MaxTokens: 1024})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := a.Send(context.Background(), model.Request{
		System:   "be helpful",
		Messages: []types.Message{types.NewTextMessage(types.RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	var text string
	var calls []types.ToolCall
	for part, perr := range resp.Parts() {
		if perr != nil {
			t.Fatalf("unexpected stream error: %v", perr)
		}
		switch part.Kind {
		case model.StreamText:
			text += part.Text
		case model.StreamToolCall:
			calls = append(calls, part.ToolCall)
		}
	}

	if text != "hello world" {
		t.Fatalf("text = %q, want %q", text, "hello world")
	}
	if len(calls) != 1 || calls[0].ID != "call1" || calls[0].Name != "echo" {
		t.Fatalf("calls = %+v, want one echo call", calls)
	}
	if x, ok := calls[0].Input["x"]; !ok || x != float64(1) {
		t.Fatalf("calls[0].Input = %+v, want x=1", calls[0].Input)
	}

	if resp.Usage().InputTokens != 12 || resp.Usage().OutputTokens != 34 {
		t.Fatalf("Usage() = %+v, want {12 34}", resp.Usage())
	}
	if resp.FinishReason() != "tool_use" {
		t.Fatalf("FinishReason() = %q, want %q", resp.FinishReason(), "tool_use")
	}
}

func TestAdapter_Send_NonOKStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	a, err := New(Config{BaseURL: srv.URL, APIKey: "test-key", AnthropicVersion: "2023-06-01", Model: "claude-test", MaxTokens: 1024})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = a.Send(context.Background(), model.Request{Messages: []types.Message{types.NewTextMessage(types.RoleUser, "hi")}})
	if err == nil {
		t.Fatal("expected an error on a non-2xx response")
	}
}

func TestNew_RequiresAPIKeyOrEnv(t *testing.T) {
	_, err := New(Config{BaseURL: "https://example.com"})
	if err == nil {
		t.Fatal("expected an error when neither APIKey nor APIKeyFromEnv is set")
	}
}

func TestToWireMessage_RoleConversions(t *testing.T) {
	userMsg := types.NewTextMessage(types.RoleUser, "hello")
	wm, err := toWireMessage(userMsg)
	if err != nil {
		t.Fatalf("toWireMessage(user): %v", err)
	}
	if wm.Role != "user" || wm.Content != "hello" {
		t.Fatalf("user wire message = %+v, want role=user content=hello", wm)
	}

	assistantMsg := types.NewAssistantMessage("thinking", []types.ToolCall{{ID: "c1", Name: "tool", Input: map[string]any{"a": 1}}})
	wm, err = toWireMessage(assistantMsg)
	if err != nil {
		t.Fatalf("toWireMessage(assistant): %v", err)
	}
	blocks, ok := wm.Content.([]any)
	if !ok || len(blocks) != 2 {
		t.Fatalf("assistant wire message content = %+v, want 2 blocks", wm.Content)
	}

	toolMsg := types.NewToolResultMessage(types.ToolResult{CallID: "c1", Name: "tool", Output: "result"})
	wm, err = toWireMessage(toolMsg)
	if err != nil {
		t.Fatalf("toWireMessage(tool): %v", err)
	}
	if wm.Role != "user" {
		t.Fatalf("tool-result wire message role = %q, want user", wm.Role)
	}
	blocksT, ok := wm.Content.([]toolResultBlock)
	if !ok || len(blocksT) != 1 || blocksT[0].ToolUseID != "c1" || blocksT[0].Content != "result" {
		t.Fatalf("tool-result wire content = %+v, want one matching tool_result block", wm.Content)
	}
}

func TestToWireMessage_MalformedToolMessageErrors(t *testing.T) {
	_, err := toWireMessage(types.Message{Role: types.RoleTool})
	if err == nil {
		t.Fatal("expected an error converting a tool message with no tool result part")
	}
}

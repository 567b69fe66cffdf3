package claude

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/arborist-ai/turnloop/pkg/tool"
	"github.com/arborist-ai/turnloop/pkg/types"
)

type wireTool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

func wireTools(defs []tool.Definition) []wireTool {
	out := make([]wireTool, len(defs))
	for i, d := range defs {
		out[i] = wireTool{Name: d.Name, Description: d.Description, InputSchema: d.Parameters}
	}
	return out
}

type thinkingConfig struct {
	BudgetTokens int    `json:"budget_tokens"`
	Type         string `json:"type"`
}

type requestBody struct {
	Model     string         `json:"model"`
	Messages  []wireMessage  `json:"messages"`
	MaxTokens int            `json:"max_tokens"`
	Stream    bool           `json:"stream"`
	System    string         `json:"system,omitempty"`
	Thinking  *thinkingConfig `json:"thinking,omitempty"`
	Tools     []wireTool     `json:"tools,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type textBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolUseBlock struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

type toolResultBlock struct {
	Type      string `json:"type"`
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
}

// toWireMessage converts one conversation message into the shape the
// Messages API expects, fanning each Part out to its own content block.
func toWireMessage(m types.Message) (wireMessage, error) {
	switch m.Role {
	case types.RoleTool:
		// The Messages API models a tool result as a user turn carrying a
		// tool_result block.
		if len(m.Content) != 1 || m.Content[0].ToolResult == nil {
			return wireMessage{}, fmt.Errorf("tool message must carry exactly one tool result")
		}
		tr := m.Content[0].ToolResult
		return wireMessage{
			Role: "user",
			Content: []toolResultBlock{{
				Type:      "tool_result",
				ToolUseID: tr.CallID,
				Content:   tr.Output,
			}},
		}, nil
	case types.RoleAssistant:
		var blocks []any
		for _, p := range m.Content {
			switch p.Kind {
			case types.PartText:
				blocks = append(blocks, textBlock{Type: "text", Text: p.Text})
			case types.PartToolCall:
				blocks = append(blocks, toolUseBlock{
					Type: "tool_use", ID: p.ToolCall.ID, Name: p.ToolCall.Name, Input: p.ToolCall.Input,
				})
			}
		}
		return wireMessage{Role: "assistant", Content: blocks}, nil
	default: // RoleUser
		return wireMessage{Role: "user", Content: m.Text()}, nil
	}
}

func marshalRequest(body requestBody) ([]byte, error) {
	return json.Marshal(body)
}

package gemini

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"google.golang.org/genai"

	"github.com/arborist-ai/turnloop/pkg/tool"
	"github.com/arborist-ai/turnloop/pkg/types"
)

func toSchema(s *jsonschema.Schema) (*genai.Schema, error) {
	encoded, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	decoded := &genai.Schema{}
	if err := json.Unmarshal(encoded, decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func toFunctionDeclarations(defs []tool.Definition) ([]*genai.FunctionDeclaration, error) {
	var out []*genai.FunctionDeclaration
	for _, d := range defs {
		params, err := toSchema(d.Parameters)
		if err != nil {
			return nil, fmt.Errorf("encoding parameters for %s: %w", d.Name, err)
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Behavior:    genai.BehaviorBlocking,
			Parameters:  params,
		})
	}
	return out, nil
}

// toParts converts one message's content into the *genai.Part shape
// SendStream and Content.Parts both use.
func toParts(m types.Message) ([]*genai.Part, error) {
	var parts []*genai.Part
	switch m.Role {
	case types.RoleTool:
		for _, p := range m.Content {
			if p.ToolResult == nil {
				continue
			}
			resp := map[string]any{"output": p.ToolResult.Output}
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       p.ToolResult.CallID,
					Name:     p.ToolResult.Name,
					Response: resp,
				},
			})
		}
	case types.RoleAssistant:
		for _, p := range m.Content {
			switch p.Kind {
			case types.PartText:
				parts = append(parts, &genai.Part{Text: p.Text})
			case types.PartToolCall:
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   p.ToolCall.ID,
						Name: p.ToolCall.Name,
						Args: p.ToolCall.Input,
					},
				})
			}
		}
	default: // RoleUser
		if text := m.Text(); text != "" {
			parts = append(parts, &genai.Part{Text: text})
		}
	}
	return parts, nil
}

func roleFor(m types.Message) genai.Role {
	if m.Role == types.RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}

func toContent(m types.Message) (*genai.Content, error) {
	parts, err := toParts(m)
	if err != nil {
		return nil, err
	}
	return &genai.Content{Parts: parts, Role: string(roleFor(m))}, nil
}

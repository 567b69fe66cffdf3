// Package openai is a model.Adapter backed by the OpenAI Responses API.
// Rather than threading a previous_response_id through a long-lived
// conversation and shipping only the newest turn's items, this adapter
// is stateless: it is shared across sessions, so every Send re-encodes
// the full message history it is handed as the input item list.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"

	"github.com/arborist-ai/turnloop/pkg/logctx"
	"github.com/arborist-ai/turnloop/pkg/model"
	"github.com/arborist-ai/turnloop/pkg/types"
)

type Adapter struct {
	client responses.ResponseService
	model  string
}

func New(cfg Config) (*Adapter, error) {
	opts, err := cfg.requestOptions()
	if err != nil {
		return nil, err
	}
	return &Adapter{client: responses.NewResponseService(opts...), model: cfg.Model}, nil
}

// toInputItems flattens a message into the Responses API's input item
// shape. The Responses API represents a prior assistant tool call as a
// function_call item tied to a previous_response_id, which a stateless
// adapter has none of, so a tool call is replayed as a descriptive
// assistant text item instead; the tool result that answers it still
// uses the real function_call_output item.
func toInputItems(m types.Message) []responses.ResponseInputItemUnionParam {
	switch m.Role {
	case types.RoleTool:
		var items []responses.ResponseInputItemUnionParam
		for _, p := range m.Content {
			if p.ToolResult == nil {
				continue
			}
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(p.ToolResult.CallID, p.ToolResult.Output))
		}
		return items
	case types.RoleAssistant:
		var items []responses.ResponseInputItemUnionParam
		for _, p := range m.Content {
			switch p.Kind {
			case types.PartText:
				items = append(items, responses.ResponseInputItemParamOfInputMessage(
					responses.ResponseInputMessageContentListParam{
						responses.ResponseInputContentParamOfInputText(p.Text),
					}, "assistant"))
			case types.PartToolCall:
				items = append(items, responses.ResponseInputItemParamOfInputMessage(
					responses.ResponseInputMessageContentListParam{
						responses.ResponseInputContentParamOfInputText(
							fmt.Sprintf("[called tool %s with %v]", p.ToolCall.Name, p.ToolCall.Input)),
					}, "assistant"))
			}
		}
		return items
	default: // RoleUser
		return []responses.ResponseInputItemUnionParam{
			responses.ResponseInputItemParamOfInputMessage(
				responses.ResponseInputMessageContentListParam{
					responses.ResponseInputContentParamOfInputText(m.Text()),
				}, "user"),
		}
	}
}

func (a *Adapter) Send(ctx context.Context, req model.Request) (model.Response, error) {
	log := logctx.From(ctx, "model-openai")
	log.Debug("send", "model", a.model, "messages", len(req.Messages), "tools", len(req.Tools))

	var items []responses.ResponseInputItemUnionParam
	for _, m := range req.Messages {
		items = append(items, toInputItems(m)...)
	}

	var tools []responses.ToolUnionParam
	for _, d := range req.Tools {
		t, err := convertToolDef(d)
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		tools = append(tools, t)
	}

	resp, err := a.client.New(ctx, responses.ResponseNewParams{
		Instructions: param.NewOpt(req.System),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: items,
		},
		Model: a.model,
		Tools: tools,
	})
	if err != nil {
		log.Error("request failed", "error", err)
		return nil, err
	}
	log.Debug("response received", "outputs", len(resp.Output))

	var parts []model.StreamPart
	for _, out := range resp.Output {
		switch out.Type {
		case "message":
			msg := out.AsMessage()
			for _, content := range msg.Content {
				if content.Text != "" {
					parts = append(parts, model.StreamPart{Kind: model.StreamText, Text: content.Text})
				}
			}
		case "function_call":
			fc := out.AsFunctionCall()
			input := map[string]any{}
			if fc.Arguments != "" {
				if err := json.Unmarshal([]byte(fc.Arguments), &input); err != nil {
					return nil, fmt.Errorf("openai: decoding function call arguments: %w", err)
				}
			}
			parts = append(parts, model.StreamPart{Kind: model.StreamToolCall, ToolCall: types.ToolCall{
				ID: fc.CallID, Name: fc.Name, Input: input,
			}})
		}
	}

	return &immediateResponse{parts: parts}, nil
}

type immediateResponse struct {
	parts []model.StreamPart
}

func (r *immediateResponse) Usage() types.Usage   { return types.Usage{} }
func (r *immediateResponse) FinishReason() string { return "" }

func (r *immediateResponse) Parts() iter.Seq2[model.StreamPart, error] {
	return func(yield func(model.StreamPart, error) bool) {
		for _, p := range r.parts {
			if !yield(p, nil) {
				return
			}
		}
	}
}

// Package gemini is a model.Adapter backed by Google's genai SDK. Unlike
// a long-lived *genai.Chat tied to one conversation, this adapter is
// shared across sessions, so each Send rebuilds a chat seeded with every
// message but the last as history and streams only the last message's
// parts, using genai.Chats.Create's own history parameter rather than
// inventing one.
package gemini

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/genai"

	"github.com/arborist-ai/turnloop/pkg/logctx"
	"github.com/arborist-ai/turnloop/pkg/model"
	"github.com/arborist-ai/turnloop/pkg/types"
)

type Adapter struct {
	client *genai.Client
	model  string
	cfg    Config
}

func New(ctx context.Context, cfg Config) (*Adapter, error) {
	client, err := genai.NewClient(ctx, cfg.clientConfig())
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client, model: cfg.Model, cfg: cfg}, nil
}

func (a *Adapter) Send(ctx context.Context, req model.Request) (model.Response, error) {
	log := logctx.From(ctx, "model-gemini")
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("gemini: no messages to send")
	}
	log.Debug("send", "model", a.model, "messages", len(req.Messages), "tools", len(req.Tools))

	funcs, err := toFunctionDeclarations(req.Tools)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	var history []*genai.Content
	for _, m := range req.Messages[:len(req.Messages)-1] {
		c, err := toContent(m)
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		history = append(history, c)
	}

	last := req.Messages[len(req.Messages)-1]
	lastParts, err := toParts(last)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	chat, err := a.client.Chats.Create(ctx, a.model, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Tools:             []*genai.Tool{{FunctionDeclarations: funcs}},
		ThinkingConfig:    &genai.ThinkingConfig{IncludeThoughts: !a.cfg.ExcludeThoughts},
	}, history)
	if err != nil {
		log.Error("chat create failed", "error", err)
		return nil, err
	}

	return &response{stream: chat.SendStream(ctx, lastParts...)}, nil
}

type response struct {
	stream iter.Seq2[*genai.GenerateContentResponse, error]
	usage  types.Usage
}

func (r *response) Usage() types.Usage   { return r.usage }
func (r *response) FinishReason() string { return "" }

func (r *response) Parts() iter.Seq2[model.StreamPart, error] {
	return func(yield func(model.StreamPart, error) bool) {
		for result, err := range r.stream {
			if err != nil {
				if !yield(model.StreamPart{}, err) {
					return
				}
				continue
			}
			if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
				continue
			}
			for _, part := range result.Candidates[0].Content.Parts {
				switch {
				case part.FunctionCall != nil:
					sp := model.StreamPart{Kind: model.StreamToolCall, ToolCall: types.ToolCall{
						ID: part.FunctionCall.ID, Name: part.FunctionCall.Name, Input: part.FunctionCall.Args,
					}}
					if !yield(sp, nil) {
						return
					}
				case part.Text != "":
					if !yield(model.StreamPart{Kind: model.StreamText, Text: part.Text}, nil) {
						return
					}
				}
			}
		}
	}
}

package claude

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/arborist-ai/turnloop/pkg/model"
	"github.com/arborist-ai/turnloop/pkg/types"
)

type sseEventType string

const (
	sseError             sseEventType = "error"
	sseMessageStart      sseEventType = "message_start"
	sseMessageDelta      sseEventType = "message_delta"
	sseContentBlockStart sseEventType = "content_block_start"
	sseContentBlockDelta sseEventType = "content_block_delta"
	sseContentBlockStop  sseEventType = "content_block_stop"
)

type blockType string

const (
	blockText    blockType = "text"
	blockToolUse blockType = "tool_use"
)

type contentBlockStartPayload struct {
	Index        int `json:"index"`
	ContentBlock struct {
		Type blockType      `json:"type"`
		Text string         `json:"text"`
		ID   string         `json:"id"`
		Name string         `json:"name"`
	} `json:"content_block"`
}

type contentBlockDeltaPayload struct {
	Index int `json:"index"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta"`
}

type messageStartPayload struct {
	Message struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

type messageDeltaPayload struct {
	Delta struct {
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// response streams one Messages API SSE body into model.StreamPart
// values. A tool call's input arrives as a run of input_json_delta
// fragments, so toolJSON accumulates them until content_block_stop
// closes the block and the full JSON object can be parsed.
type response struct {
	body    io.ReadCloser
	scanner *sseScanner

	usage        types.Usage
	finishReason string

	currentBlock *contentBlockStartPayload
	toolJSON     string
}

func newResponse(body io.ReadCloser) *response {
	return &response{body: body, scanner: newSSEScanner(body)}
}

func (r *response) Usage() types.Usage  { return r.usage }
func (r *response) FinishReason() string { return r.finishReason }

func (r *response) Parts() iter.Seq2[model.StreamPart, error] {
	return func(yield func(model.StreamPart, error) bool) {
		defer r.body.Close()
		for {
			ev, err := r.scanner.next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if !yield(model.StreamPart{}, err) {
					return
				}
				continue
			}
			switch sseEventType(ev.name) {
			case sseError:
				if !yield(model.StreamPart{}, errors.New(ev.data)) {
					return
				}
			case sseMessageStart:
				var p messageStartPayload
				if err := json.Unmarshal([]byte(ev.data), &p); err != nil {
					if !yield(model.StreamPart{}, err) {
						return
					}
					continue
				}
				r.usage.InputTokens = p.Message.Usage.InputTokens
			case sseMessageDelta:
				var p messageDeltaPayload
				if err := json.Unmarshal([]byte(ev.data), &p); err != nil {
					if !yield(model.StreamPart{}, err) {
						return
					}
					continue
				}
				r.usage.OutputTokens = p.Usage.OutputTokens
				if p.Delta.StopReason != "" {
					r.finishReason = p.Delta.StopReason
				}
			case sseContentBlockStart:
				var p contentBlockStartPayload
				if err := json.Unmarshal([]byte(ev.data), &p); err != nil {
					if !yield(model.StreamPart{}, err) {
						return
					}
					continue
				}
				r.currentBlock = &p
				r.toolJSON = ""
				if p.ContentBlock.Type == blockText && p.ContentBlock.Text != "" {
					if !yield(model.StreamPart{Kind: model.StreamText, Text: p.ContentBlock.Text}, nil) {
						return
					}
				}
			case sseContentBlockDelta:
				var p contentBlockDeltaPayload
				if err := json.Unmarshal([]byte(ev.data), &p); err != nil {
					if !yield(model.StreamPart{}, err) {
						return
					}
					continue
				}
				if r.currentBlock == nil {
					if !yield(model.StreamPart{}, fmt.Errorf("content_block_delta without a content_block_start")) {
						return
					}
					continue
				}
				switch p.Delta.Type {
				case "text_delta":
					if !yield(model.StreamPart{Kind: model.StreamText, Text: p.Delta.Text}, nil) {
						return
					}
				case "input_json_delta":
					r.toolJSON += p.Delta.PartialJSON
				}
			case sseContentBlockStop:
				if r.currentBlock == nil {
					if !yield(model.StreamPart{}, fmt.Errorf("content_block_stop without a content_block_start")) {
						return
					}
					continue
				}
				if r.currentBlock.ContentBlock.Type == blockToolUse {
					input := map[string]any{}
					if r.toolJSON != "" {
						if err := json.Unmarshal([]byte(r.toolJSON), &input); err != nil {
							if !yield(model.StreamPart{}, err) {
								return
							}
							r.currentBlock = nil
							continue
						}
					}
					part := model.StreamPart{Kind: model.StreamToolCall, ToolCall: types.ToolCall{
						ID: r.currentBlock.ContentBlock.ID, Name: r.currentBlock.ContentBlock.Name, Input: input,
					}}
					r.currentBlock = nil
					if !yield(part, nil) {
						return
					}
					continue
				}
				r.currentBlock = nil
			}
		}
	}
}

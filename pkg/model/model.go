// Package model defines the language-model adapter contract consumed by
// the loop. The transport itself is out of scope for this package; it
// only specifies the interface a concrete provider (see pkg/provider)
// must implement.
package model

import (
	"context"
	"iter"

	"github.com/arborist-ai/turnloop/pkg/tool"
	"github.com/arborist-ai/turnloop/pkg/types"
)

// Request is what the loop supplies to an Adapter for one model
// round-trip.
type Request struct {
	System   string
	Messages []types.Message
	Tools    []tool.Definition
}

// StreamPartKind discriminates StreamPart.
type StreamPartKind string

const (
	StreamText     StreamPartKind = "text-delta"
	StreamToolCall StreamPartKind = "tool-call"
)

// StreamPart is one element of a Response's full stream: a text-delta
// fragment or a complete tool-call. A provider whose wire format streams
// tool-call input incrementally is responsible for buffering it itself
// and yielding only the assembled call.
type StreamPart struct {
	Kind     StreamPartKind
	Text     string
	ToolCall types.ToolCall
}

// Response is the streamed object an Adapter returns: a sequence of parts
// plus, once exhausted, usage and finish-reason.
type Response interface {
	// Parts streams the response. It must be fully drained (or the
	// context cancelled) before Usage/FinishReason are valid.
	Parts() iter.Seq2[StreamPart, error]
	Usage() types.Usage
	FinishReason() string
}

// Adapter is the language-model transport the loop calls into.
type Adapter interface {
	Send(ctx context.Context, req Request) (Response, error)
}

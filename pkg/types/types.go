// Package types defines the wire-level values shared by the loop, session
// and agent packages: model messages, tool-call decisions and the event
// vocabulary emitted by a running turn. Every value here is immutable once
// constructed -- the core never mutates a Message after it is appended to a
// conversation.
package types

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartKind discriminates the variants of Part.
type PartKind string

const (
	PartText       PartKind = "text"
	PartToolCall   PartKind = "tool_call"
	PartToolResult PartKind = "tool_result"
)

// ToolCall is the {id, name, input} triple the model emits when it wants a
// tool invoked.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult is the {callId, name, output} triple fed back to the model
// after a tool finishes (or is denied).
type ToolResult struct {
	CallID string
	Name   string
	Output string
}

// Part is one element of a Message's content. A Message's content is
// either a bare string or an ordered sequence of Parts; NewTextMessage
// represents the bare-string case as a single PartText part.
type Part struct {
	Kind       PartKind
	Text       string
	ToolCall   *ToolCall
	ToolResult *ToolResult
}

func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

func ToolCallPart(tc ToolCall) Part {
	return Part{Kind: PartToolCall, ToolCall: &tc}
}

func ToolResultPart(tr ToolResult) Part {
	return Part{Kind: PartToolResult, ToolResult: &tr}
}

// Message is a single chat-protocol value: one role plus its content.
// Values are never mutated after construction.
type Message struct {
	Role    Role
	Content []Part
}

func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []Part{TextPart(text)}}
}

func NewAssistantMessage(text string, calls []ToolCall) Message {
	var parts []Part
	if text != "" {
		parts = append(parts, TextPart(text))
	}
	for _, c := range calls {
		parts = append(parts, ToolCallPart(c))
	}
	return Message{Role: RoleAssistant, Content: parts}
}

func NewToolResultMessage(result ToolResult) Message {
	return Message{Role: RoleTool, Content: []Part{ToolResultPart(result)}}
}

// Text concatenates every text part of the message, matching how the
// session recomputes lastText from an assistant message (see
// session.runLoop's "message" event handling).
func (m Message) Text() string {
	var out string
	for _, p := range m.Content {
		if p.Kind == PartText {
			out += p.Text
		}
	}
	return out
}

// ToolCalls returns every tool-call part's payload, in order.
func (m Message) ToolCalls() []ToolCall {
	var out []ToolCall
	for _, p := range m.Content {
		if p.Kind == PartToolCall && p.ToolCall != nil {
			out = append(out, *p.ToolCall)
		}
	}
	return out
}

// Decision is the tagged union a tool-call listener or driver returns for a
// pending tool call: allow-as-is (the zero value), allow-with-substituted
// args, or deny-with-reason. Use the constructors below rather than
// constructing a Decision literal so the "no decision" zero value stays
// unambiguous.
type Decision struct {
	deny    string
	hasDeny bool
	args    map[string]any
	hasArgs bool
}

// AllowDecision is the explicit "no override" decision: execute with the
// original args. The zero Decision{} is equivalent.
func AllowDecision() Decision { return Decision{} }

func DenyDecision(reason string) Decision {
	return Decision{deny: reason, hasDeny: true}
}

func OverrideDecision(args map[string]any) Decision {
	return Decision{args: args, hasArgs: true}
}

func (d Decision) IsDeny() (string, bool)          { return d.deny, d.hasDeny }
func (d Decision) IsOverride() (map[string]any, bool) { return d.args, d.hasArgs }
func (d Decision) IsNone() bool                    { return !d.hasDeny && !d.hasArgs }

// CanonicalSteeringDenyReason is the fixed English reason used to
// auto-deny tool calls still awaiting a decision when a steering message
// arrives mid-phase (see loop's Phase 1, drain point 2). Implementations
// must not translate it.
const CanonicalSteeringDenyReason = "Skipped: user sent a new message"

// Usage reports token accounting for one model round-trip. Either field
// may be zero if the adapter's provider did not report it.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// EventKind discriminates the Event vocabulary emitted by the loop and
// re-emitted (with two additions) by the session.
type EventKind string

const (
	EventTextDelta  EventKind = "text_delta"
	EventMessage    EventKind = "message"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventStep       EventKind = "step"
	// EventTurnEnd and EventError are only emitted by the session, never by
	// the loop itself.
	EventTurnEnd EventKind = "turn_end"
	EventError   EventKind = "error"
)

// Event is the value yielded by the loop (and forwarded, with two more
// kinds, by the session's listener dispatch).
type Event struct {
	Kind EventKind

	// EventTextDelta
	Delta string

	// EventMessage
	Message Message

	// EventToolCall
	CallID string
	Name   string
	Args   map[string]any

	// EventToolResult (Message carries the synthesized tool-role message)
	Result  string
	IsError bool

	// EventStep
	Usage        Usage
	FinishReason string

	// EventTurnEnd
	TurnMessages []Message
	TurnText     string

	// EventError
	Err error
}

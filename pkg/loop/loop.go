// Package loop drives one turn to completion: a cooperative state machine
// that sends messages to a model, mediates its tool calls one step at a
// time, and emits events as it goes. It is realized as two channels
// crossed by a dedicated goroutine rather than a native generator --
// Go has none.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/arborist-ai/turnloop/pkg/model"
	"github.com/arborist-ai/turnloop/pkg/runtime"
	"github.com/arborist-ai/turnloop/pkg/tool"
	"github.com/arborist-ai/turnloop/pkg/types"
)

// Messages is the mutable, by-reference message sequence the loop appends
// to while it runs. The caller retains the pointer; Snapshot copies it out
// for a model request.
type Messages struct {
	msgs []types.Message
}

func NewMessages(initial []types.Message) *Messages {
	return &Messages{msgs: append([]types.Message{}, initial...)}
}

func (m *Messages) Append(msg types.Message) { m.msgs = append(m.msgs, msg) }

func (m *Messages) Snapshot() []types.Message {
	return append([]types.Message{}, m.msgs...)
}

func (m *Messages) Len() int { return len(m.msgs) }

// Config configures one run of the loop.
type Config struct {
	Model        string
	SystemPrompt string
	Tools        []tool.Tool
	Runtime      runtime.Runtime
	MaxSteps     int
	Adapter      model.Adapter

	// GetSteeringMessages and GetFollowUpMessages drain and return the
	// session's pending queues: steering is drained before each model call
	// and before each pending tool call (a message drained there denies the
	// remaining calls and is appended after that step's tool results), follow-up
	// messages only once a step produces no tool calls and the turn
	// would otherwise end. Either may be nil, meaning no queue is wired
	// -- the loop then behaves as if that drain always returns nothing.
	GetSteeringMessages func() []types.Message
	GetFollowUpMessages func() []types.Message
}

func (c Config) drainSteering() []types.Message {
	if c.GetSteeringMessages == nil {
		return nil
	}
	return c.GetSteeringMessages()
}

func (c Config) drainFollowUp() []types.Message {
	if c.GetFollowUpMessages == nil {
		return nil
	}
	return c.GetFollowUpMessages()
}

// Handle is the driver-facing side of a running loop.
type Handle struct {
	events    chan types.Event
	decisions chan types.Decision
	done      chan struct{}
	err       error
}

// Events yields every event the loop produces, in emission order. The
// channel is closed once the loop terminates.
func (h *Handle) Events() <-chan types.Event { return h.events }

// Decide supplies the decision for the most recently received tool_call
// event. Exactly one call is expected per tool_call event; it must happen
// before the next receive from Events.
func (h *Handle) Decide(d types.Decision) {
	h.decisions <- d
}

// Err blocks until the loop has terminated and returns its error, if any.
func (h *Handle) Err() error {
	<-h.done
	return h.err
}

// Run starts the loop in a dedicated goroutine and returns immediately.
// messages is read from for the first model call and appended to as the
// turn progresses; the caller owns it and may inspect it once Err returns.
func Run(ctx context.Context, messages *Messages, cfg Config) *Handle {
	h := &Handle{
		events:    make(chan types.Event),
		decisions: make(chan types.Decision),
		done:      make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		defer close(h.events)
		h.err = run(ctx, messages, cfg, h.events, h.decisions)
	}()
	return h
}

// emit sends ev on events, returning false if ctx was cancelled while
// waiting for the driver to receive it.
func emit(ctx context.Context, events chan<- types.Event, ev types.Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

type outcome struct {
	call    types.ToolCall
	result  string
	isError bool
}

func run(ctx context.Context, messages *Messages, cfg Config, events chan<- types.Event, decisions <-chan types.Decision) error {
	if cfg.Runtime != nil {
		ctx = runtime.With(ctx, cfg.Runtime)
	}
	toolsByName := make(map[string]tool.Tool, len(cfg.Tools))
	for _, t := range cfg.Tools {
		toolsByName[t.Name()] = t
	}
	defs := tool.Definitions(cfg.Tools)

	for step := 1; ; step++ {
		if step > cfg.MaxSteps || cancelled(ctx) {
			return nil
		}

		// Drain point 1: pre-call steering. Its effect must be visible to
		// the very next model turn.
		for _, m := range cfg.drainSteering() {
			messages.Append(m)
		}
		if cancelled(ctx) {
			return nil
		}

		resp, err := cfg.Adapter.Send(ctx, model.Request{
			System:   cfg.SystemPrompt,
			Messages: messages.Snapshot(),
			Tools:    defs,
		})
		if err != nil {
			return fmt.Errorf("model error: %w", err)
		}

		var text string
		var calls []types.ToolCall
		for part, perr := range resp.Parts() {
			if perr != nil {
				return fmt.Errorf("model error: %w", perr)
			}
			switch part.Kind {
			case model.StreamText:
				text += part.Text
				if !emit(ctx, events, types.Event{Kind: types.EventTextDelta, Delta: part.Text}) {
					return nil
				}
			case model.StreamToolCall:
				calls = append(calls, part.ToolCall)
			}
			if cancelled(ctx) {
				return nil
			}
		}

		assistantMsg := types.NewAssistantMessage(text, calls)
		messages.Append(assistantMsg)
		if !emit(ctx, events, types.Event{Kind: types.EventMessage, Message: assistantMsg}) {
			return nil
		}

		if !emit(ctx, events, types.Event{
			Kind:         types.EventStep,
			Usage:        resp.Usage(),
			FinishReason: resp.FinishReason(),
		}) {
			return nil
		}

		if len(calls) == 0 {
			// Drain point 3: keep-alive.
			follow := cfg.drainFollowUp()
			if len(follow) == 0 {
				return nil
			}
			for _, m := range follow {
				messages.Append(m)
			}
			continue
		}

		decisionsByCall, deferredSteering := collectDecisions(ctx, calls, toolsByName, cfg, events, decisions)
		if cancelled(ctx) {
			return nil
		}

		outcomes := executeCalls(ctx, calls, toolsByName, decisionsByCall)

		for _, o := range outcomes {
			trMsg := types.NewToolResultMessage(types.ToolResult{
				CallID: o.call.ID, Name: o.call.Name, Output: o.result,
			})
			messages.Append(trMsg)
			if !emit(ctx, events, types.Event{
				Kind:    types.EventToolResult,
				CallID:  o.call.ID,
				Name:    o.call.Name,
				Result:  o.result,
				IsError: o.isError,
				Message: trMsg,
			}) {
				return nil
			}
		}

		// Step 10: deferred steering messages append after every tool
		// result of this step, preserving the tool-call/tool-result
		// adjacency the chat protocol requires.
		for _, m := range deferredSteering {
			messages.Append(m)
		}
	}
}

// collectDecisions runs Phase 1: it yields a tool_call event per pending
// call (unless a mid-phase steering message arrives first, in which case
// the remaining calls are auto-denied without ever being yielded).
func collectDecisions(
	ctx context.Context,
	calls []types.ToolCall,
	toolsByName map[string]tool.Tool,
	cfg Config,
	events chan<- types.Event,
	decisions <-chan types.Decision,
) (map[string]types.Decision, []types.Message) {
	decisionsByCall := make(map[string]types.Decision, len(calls))
	var deferredSteering []types.Message

	for i, call := range calls {
		if pending := cfg.drainSteering(); len(pending) > 0 {
			deferredSteering = pending
			for _, c := range calls[i:] {
				decisionsByCall[c.ID] = types.DenyDecision(types.CanonicalSteeringDenyReason)
			}
			break
		}
		if _, ok := toolsByName[call.Name]; !ok {
			// A call for a tool that doesn't exist never reaches a
			// listener -- there's no decision for it to make -- so it's
			// auto-allowed here and reported as a tool-not-found result
			// once executeOne runs it.
			decisionsByCall[call.ID] = types.AllowDecision()
			continue
		}
		if !emit(ctx, events, types.Event{Kind: types.EventToolCall, CallID: call.ID, Name: call.Name, Args: call.Input}) {
			return decisionsByCall, deferredSteering
		}
		select {
		case d := <-decisions:
			decisionsByCall[call.ID] = d
		case <-ctx.Done():
			return decisionsByCall, deferredSteering
		}
	}
	return decisionsByCall, deferredSteering
}

// executeCalls runs Phase 2: every pending call concurrently, then returns
// outcomes in original call order for Phase 3's ordered emission.
func executeCalls(
	ctx context.Context,
	calls []types.ToolCall,
	toolsByName map[string]tool.Tool,
	decisionsByCall map[string]types.Decision,
) []outcome {
	outcomes := make([]outcome, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call types.ToolCall) {
			defer wg.Done()
			outcomes[i] = executeOne(ctx, call, toolsByName, decisionsByCall[call.ID])
		}(i, call)
	}
	wg.Wait()
	return outcomes
}

func executeOne(ctx context.Context, call types.ToolCall, toolsByName map[string]tool.Tool, d types.Decision) outcome {
	t, ok := toolsByName[call.Name]
	if !ok {
		return outcome{call: call, result: "Tool not found: " + call.Name, isError: true}
	}
	if reason, isDeny := d.IsDeny(); isDeny {
		return outcome{call: call, result: reason, isError: true}
	}
	args := call.Input
	if override, isOverride := d.IsOverride(); isOverride {
		args = override
	}
	out, err := t.Execute(ctx, args)
	if err != nil {
		var toolErr *tool.Error
		if errors.As(err, &toolErr) {
			return outcome{call: call, result: toolErr.Unwrap().Error(), isError: true}
		}
		return outcome{call: call, result: err.Error(), isError: true}
	}
	return outcome{call: call, result: out}
}

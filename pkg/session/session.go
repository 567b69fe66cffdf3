// Package session is the stateful controller wrapped around one
// conversation: a listener registry, send/steer/queue semantics, and the
// goroutine that drives pkg/loop to persist and re-emit its events.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arborist-ai/turnloop/pkg/history"
	"github.com/arborist-ai/turnloop/pkg/logctx"
	"github.com/arborist-ai/turnloop/pkg/loop"
	"github.com/arborist-ai/turnloop/pkg/model"
	"github.com/arborist-ai/turnloop/pkg/runtime"
	"github.com/arborist-ai/turnloop/pkg/store"
	"github.com/arborist-ai/turnloop/pkg/tool"
	"github.com/arborist-ai/turnloop/pkg/types"
)

// SendMode controls how Send behaves while a turn is already running.
type SendMode string

const (
	// ModeSteer interrupts the running turn's tool-call phase as soon as
	// possible, denying any calls still waiting on a decision.
	ModeSteer SendMode = "steer"
	// ModeQueue waits for the turn to reach a natural pause -- a step with
	// no tool calls -- before being appended as a follow-up.
	ModeQueue SendMode = "queue"
)

// Config is everything a Session needs to drive turns, independent of any
// particular conversation's history.
type Config struct {
	Model           string
	SystemPrompt    string
	Tools           []tool.Tool
	Runtime         runtime.Runtime
	MaxSteps        int
	Adapter         model.Adapter
	DefaultSendMode SendMode
	// LogDir, if set, roots this session's per-subsystem JSONL log files at
	// "<LogDir>/<id>/logs". Left empty, every subsystem logger obtained
	// through GetLogger (directly, or via logctx deeper in the call chain)
	// falls back to a discard handler.
	LogDir string
}

func (c Config) withDefaults() Config {
	if c.MaxSteps == 0 {
		c.MaxSteps = 100
	}
	if c.DefaultSendMode == "" {
		c.DefaultSendMode = ModeSteer
	}
	return c
}

// latch is a single-shot completion signal: exactly one settle call closes
// it, every WaitForIdle call after that observes the same error.
type latch struct {
	done chan struct{}
	err  error
}

func newLatch() *latch { return &latch{done: make(chan struct{})} }

func (l *latch) settle(err error) {
	l.err = err
	close(l.done)
}

// Session is one conversation: its persisted entry log, its live listener
// registry, and (while a turn is in flight) the queues feeding it.
type Session struct {
	id     string
	cfg    Config
	store  store.Store
	reg    *registry
	logger *slog.Logger

	mu                  sync.Mutex
	entries             []history.Entry
	leafID              string
	steeringQueue       []types.Message
	followUpQueue       []types.Message
	pendingUserMessages []types.Message
	latch               *latch
	logs                *LogHandlers
}

// New constructs a Session over an already-loaded entry log. A fresh
// session passes a nil entries slice and empty leafID; resuming one passes
// back what Store.Load returned.
func New(id string, cfg Config, st store.Store, entries []history.Entry, leafID string) *Session {
	cfg = cfg.withDefaults()
	var sessionLogDir string
	if cfg.LogDir != "" {
		sessionLogDir = filepath.Join(cfg.LogDir, id)
	}
	return &Session{
		id:      id,
		cfg:     cfg,
		store:   st,
		reg:     newRegistry(),
		logger:  slog.Default().With("session", id),
		entries: append([]history.Entry{}, entries...),
		leafID:  leafID,
		logs:    NewLogHandlers(sessionLogDir),
	}
}

// GetLogger returns the named subsystem logger for this session (e.g.
// "model-claude", "mcp-tool", "store"), creating its backing JSONL file
// under the session's log directory on first use. With no LogDir
// configured, the returned logger discards everything written to it.
func (s *Session) GetLogger(name string) (*slog.Logger, error) {
	return s.logs.Logger(name)
}

func (s *Session) ID() string { return s.id }

// LeafEntryID returns the id of the entry currently selected as this
// session's leaf, or "" if the session has no entries yet.
func (s *Session) LeafEntryID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leafID
}

// Snapshot returns the reconstructed message sequence visible at the
// session's current leaf, per history.BuildContext.
func (s *Session) Snapshot() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return history.BuildContext(s.entries, s.leafID)
}

// On registers a listener for kind, returning a token for Off.
func (s *Session) On(kind types.EventKind, l Listener) ListenerID { return s.reg.on(kind, l) }

// Off removes a listener previously registered with On.
func (s *Session) Off(kind types.EventKind, id ListenerID) { s.reg.off(kind, id) }

// SendOptions configures one Send call.
type SendOptions struct {
	// Mode overrides the session's default for this message only.
	Mode SendMode
	// Ctx governs the turn this message starts (if it starts one); ignored
	// when the message is queued or steered into an already-running turn.
	Ctx context.Context
}

// Send is synchronous and non-blocking: it either starts a new turn in its
// own goroutine or enqueues into whichever queue the effective mode names.
func (s *Session) Send(text string, opts SendOptions) {
	msg := types.NewTextMessage(types.RoleUser, text)
	mode := opts.Mode
	if mode == "" {
		mode = s.cfg.DefaultSendMode
	}

	s.mu.Lock()
	if s.latch == nil {
		s.latch = newLatch()
		s.mu.Unlock()
		ctx := opts.Ctx
		if ctx == nil {
			ctx = context.Background()
		}
		go s.runLoop(ctx, []types.Message{msg})
		return
	}
	switch mode {
	case ModeQueue:
		s.followUpQueue = append(s.followUpQueue, msg)
	default:
		s.steeringQueue = append(s.steeringQueue, msg)
	}
	s.mu.Unlock()
}

// WaitForIdle resolves immediately if no turn is running, otherwise blocks
// until the running turn settles or ctx is cancelled.
func (s *Session) WaitForIdle(ctx context.Context) error {
	s.mu.Lock()
	l := s.latch
	s.mu.Unlock()
	if l == nil {
		return nil
	}
	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drainSteering and drainFollowUp are wired into loop.Config; draining a
// queue also stages its contents in pendingUserMessages, so runLoop
// persists and emits them at the next safe flush point (see flushPending).
func (s *Session) drainSteering() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.steeringQueue) == 0 {
		return nil
	}
	drained := s.steeringQueue
	s.steeringQueue = nil
	s.pendingUserMessages = append(s.pendingUserMessages, drained...)
	return drained
}

func (s *Session) drainFollowUp() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.followUpQueue) == 0 {
		return nil
	}
	drained := s.followUpQueue
	s.followUpQueue = nil
	s.pendingUserMessages = append(s.pendingUserMessages, drained...)
	return drained
}

func (s *Session) appendEntry(ctx context.Context, msg types.Message) error {
	s.mu.Lock()
	parent := s.leafID
	s.mu.Unlock()

	e := history.NewMessageEntry(uuid.Must(uuid.NewV7()).String(), parent, time.Now(), msg)
	if err := s.store.Append(ctx, s.id, e); err != nil {
		return fmt.Errorf("persist entry: %w", err)
	}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.leafID = e.ID
	s.mu.Unlock()
	return nil
}

// flushPending persists and emits every message staged by a prior drain
// call. It is invoked before dispatching text_delta, message and step
// events, but never before tool_call or tool_result -- a mid-phase
// steering interruption's message must land after that step's tool
// results, not before them.
func (s *Session) flushPending(ctx context.Context, turnMsgs *[]types.Message) error {
	s.mu.Lock()
	pending := s.pendingUserMessages
	s.pendingUserMessages = nil
	s.mu.Unlock()

	for _, m := range pending {
		if err := s.appendEntry(ctx, m); err != nil {
			return err
		}
		*turnMsgs = append(*turnMsgs, m)
		if _, err := s.reg.dispatch(ctx, types.Event{Kind: types.EventMessage, Message: m}); err != nil {
			return err
		}
	}
	return nil
}

// runLoop drives one turn end to end: persist the user message(s) that
// started it, run pkg/loop, and for each event either persist+emit (for
// message and tool_result) or forward as-is (text_delta, step), resolving
// tool_call events via the listener registry.
func (s *Session) runLoop(parentCtx context.Context, initial []types.Message) {
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()
	ctx = logctx.With(ctx, s.logs)

	var turnMsgs []types.Message
	var runErr error

	for _, m := range initial {
		if err := s.appendEntry(ctx, m); err != nil {
			runErr = err
			break
		}
		turnMsgs = append(turnMsgs, m)
		if _, err := s.reg.dispatch(ctx, types.Event{Kind: types.EventMessage, Message: m}); err != nil {
			runErr = err
			break
		}
	}

	var lastText string
	if runErr == nil {
		h := loop.Run(ctx, loop.NewMessages(s.Snapshot()), loop.Config{
			Model:               s.cfg.Model,
			SystemPrompt:        s.cfg.SystemPrompt,
			Tools:               s.cfg.Tools,
			Runtime:             s.cfg.Runtime,
			MaxSteps:            s.cfg.MaxSteps,
			Adapter:             s.cfg.Adapter,
			GetSteeringMessages: s.drainSteering,
			GetFollowUpMessages: s.drainFollowUp,
		})

		aborted := false
		for ev := range h.Events() {
			if aborted {
				continue
			}
			if ev.Kind != types.EventToolCall && ev.Kind != types.EventToolResult {
				if err := s.flushPending(ctx, &turnMsgs); err != nil {
					runErr, aborted = err, true
					cancel()
					continue
				}
			}
			switch ev.Kind {
			case types.EventTextDelta, types.EventStep:
				if _, err := s.reg.dispatch(ctx, ev); err != nil {
					runErr, aborted = err, true
					cancel()
				}
			case types.EventMessage, types.EventToolResult:
				if err := s.appendEntry(ctx, ev.Message); err != nil {
					runErr, aborted = err, true
					cancel()
					continue
				}
				turnMsgs = append(turnMsgs, ev.Message)
				if t := ev.Message.Text(); t != "" {
					lastText = t
				}
				if _, err := s.reg.dispatch(ctx, ev); err != nil {
					runErr, aborted = err, true
					cancel()
				}
			case types.EventToolCall:
				d, err := s.reg.dispatch(ctx, ev)
				if err != nil {
					runErr, aborted = err, true
					cancel()
					d = types.DenyDecision("internal error")
				}
				h.Decide(d)
			}
		}

		if runErr == nil {
			runErr = h.Err()
		} else {
			h.Err()
		}

		if runErr == nil {
			if _, err := s.reg.dispatch(ctx, types.Event{
				Kind: types.EventTurnEnd, TurnMessages: turnMsgs, TurnText: lastText,
			}); err != nil {
				runErr = err
			}
		}
	}

	if runErr != nil {
		s.logger.Error("turn failed", "error", runErr)
		// Best-effort: a listener error raised while reporting the turn's
		// own error must not overwrite it.
		s.reg.dispatch(context.Background(), types.Event{Kind: types.EventError, Err: runErr})
	}

	s.settle(runErr)
}

func (s *Session) settle(err error) {
	s.mu.Lock()
	l := s.latch
	s.latch = nil
	s.steeringQueue = nil
	s.followUpQueue = nil
	s.pendingUserMessages = nil
	s.mu.Unlock()
	if l != nil {
		l.settle(err)
	}
}

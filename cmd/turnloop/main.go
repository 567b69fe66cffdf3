// Command turnloop is an interactive driver over one agent.Agent session:
// a prompt loop that sends input, prints streamed events, and offers a
// session picker scoped to the current working directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/manifoldco/promptui"

	"github.com/arborist-ai/turnloop/pkg/agent"
	"github.com/arborist-ai/turnloop/pkg/config"
	"github.com/arborist-ai/turnloop/pkg/runtime"
	"github.com/arborist-ai/turnloop/pkg/session"
	"github.com/arborist-ai/turnloop/pkg/store/jsonl"
	"github.com/arborist-ai/turnloop/pkg/types"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.SetLogLoggerLevel(cfg.LogLevel)

	adapter, err := cfg.NewAdapter(ctx)
	if err != nil {
		return fmt.Errorf("building model adapter: %w", err)
	}
	tools, err := cfg.BuildTools(ctx)
	if err != nil {
		return fmt.Errorf("building tools: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return err
	}
	st := jsonl.WorkingDirStore(filepath.Join(cacheDir, "turnloop"), cwd)

	a := agent.New(agent.Config{
		Model:           cfg.ModelName(),
		SystemPrompt:    cfg.SystemPrompt,
		Tools:           tools,
		Runtime:         runtime.NewLocal(cwd),
		MaxSteps:        cfg.MaxSteps,
		Adapter:         adapter,
		Store:           st,
		DefaultSendMode: cfg.SendMode(),
		LogDir:          st.Dir(),
	})

	d := &driver{ctx: ctx, agent: a, store: st, prompt: &promptui.Prompt{Label: ">"}}
	d.sess = a.CreateSession(agent.CreateOptions{})
	d.attachListeners()

	return d.runLoop()
}

// driver wires one live *session.Session to stdin/stdout, re-attaching
// listeners whenever /session switches the underlying session.
type driver struct {
	ctx    context.Context
	agent  *agent.Agent
	store  *jsonl.Store
	prompt *promptui.Prompt
	sess   *session.Session
}

func (d *driver) attachListeners() {
	d.sess.On(types.EventTextDelta, func(ctx context.Context, ev types.Event) (types.Decision, bool, error) {
		fmt.Print(ev.Delta)
		return types.Decision{}, false, nil
	})
	d.sess.On(types.EventToolCall, func(ctx context.Context, ev types.Event) (types.Decision, bool, error) {
		fmt.Printf("\n[tool] %s(%v)\n", ev.Name, ev.Args)
		answer, err := (&promptui.Prompt{Label: "run it? [y/N]"}).Run()
		if err != nil {
			if errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) {
				return types.DenyDecision("user declined"), true, nil
			}
			return types.Decision{}, true, err
		}
		if strings.EqualFold(strings.TrimSpace(answer), "y") {
			return types.AllowDecision(), true, nil
		}
		return types.DenyDecision("user declined"), true, nil
	})
	d.sess.On(types.EventToolResult, func(ctx context.Context, ev types.Event) (types.Decision, bool, error) {
		fmt.Printf("[tool result] %s\n", ev.Message.Text())
		return types.Decision{}, false, nil
	})
	d.sess.On(types.EventTurnEnd, func(ctx context.Context, ev types.Event) (types.Decision, bool, error) {
		fmt.Println()
		return types.Decision{}, false, nil
	})
	d.sess.On(types.EventError, func(ctx context.Context, ev types.Event) (types.Decision, bool, error) {
		fmt.Fprintf(os.Stderr, "error: %v\n", ev.Err)
		return types.Decision{}, false, nil
	})
}

func (d *driver) runLoop() error {
	for {
		line, err := d.prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) {
				return nil
			}
			return err
		}

		if strings.HasSuffix(line, `\`) {
			line, err = d.readContinuation(line)
			if err != nil {
				return err
			}
		}

		cmd, args := parseCommand(line)
		switch cmd {
		case commandQuit:
			return nil
		case commandSession:
			if err := d.handleSessionCommand(args); err != nil {
				return err
			}
			continue
		case commandHelp:
			printHelp()
			continue
		}
		if line == "" {
			continue
		}

		d.sess.Send(line, session.SendOptions{Ctx: d.ctx})
		if err := d.sess.WaitForIdle(d.ctx); err != nil {
			fmt.Fprintf(os.Stderr, "turn error: %v\n", err)
		}
	}
}

// readContinuation switches to readline's multi-line editor when the
// user's prompt line ends with a trailing backslash, letting them
// compose a multi-paragraph steering or follow-up message that
// promptui's single-line editor can't.
func (d *driver) readContinuation(first string) (string, error) {
	rl, err := readline.New("... ")
	if err != nil {
		return "", err
	}
	defer rl.Close()

	var b strings.Builder
	b.WriteString(strings.TrimSuffix(first, `\`))
	for {
		b.WriteString("\n")
		l, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				break
			}
			return "", err
		}
		if !strings.HasSuffix(l, `\`) {
			b.WriteString(l)
			break
		}
		b.WriteString(strings.TrimSuffix(l, `\`))
	}
	return b.String(), nil
}

type command int

const (
	commandNone command = iota
	commandQuit
	commandSession
	commandHelp
)

func parseCommand(line string) (command, []string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed[0] != '/' {
		return commandNone, nil
	}
	words := strings.Fields(trimmed[1:])
	if len(words) == 0 {
		return commandNone, nil
	}
	switch strings.ToLower(words[0]) {
	case "q", "quit":
		return commandQuit, words[1:]
	case "session":
		return commandSession, words[1:]
	case "help", "?", "commands":
		return commandHelp, words[1:]
	default:
		fmt.Printf("unknown command %s, ignoring\n", words[0])
		return commandNone, nil
	}
}

func printHelp() {
	fmt.Println(`commands:
  /session [id]   switch to another session for this working directory, or pick one
  /help           this message
  /quit           exit`)
}

func (d *driver) handleSessionCommand(args []string) error {
	var id string
	if len(args) > 0 {
		id = args[0]
	} else {
		chosen, err := d.chooseSession()
		if err != nil {
			return err
		}
		if chosen == "" {
			return nil
		}
		id = chosen
	}
	if id == d.sess.ID() {
		return nil
	}
	resumed, err := d.agent.ResumeSession(d.ctx, id, agent.ResumeOptions{})
	if err != nil {
		return err
	}
	d.sess = resumed
	d.attachListeners()
	fmt.Printf("switched to session %s\n", id)
	return nil
}

func (d *driver) chooseSession() (string, error) {
	ids, err := d.store.ListSessions()
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		fmt.Println("no sessions found")
		return "", nil
	}
	found := false
	for _, id := range ids {
		if id == d.sess.ID() {
			found = true
			break
		}
	}
	if !found {
		ids = append([]string{d.sess.ID()}, ids...)
	}
	sort.Strings(ids)
	sel := promptui.Select{Label: "select a session", Items: ids}
	idx, _, err := sel.Run()
	if err != nil {
		return "", err
	}
	return ids[idx], nil
}

// Package agent is the Session factory: applies defaults once at
// construction, then mints Sessions either fresh (createSession) or
// rehydrated from a store (resumeSession).
package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/arborist-ai/turnloop/pkg/model"
	"github.com/arborist-ai/turnloop/pkg/runtime"
	"github.com/arborist-ai/turnloop/pkg/session"
	"github.com/arborist-ai/turnloop/pkg/store"
	"github.com/arborist-ai/turnloop/pkg/tool"
)

// SessionNotFoundError is returned by ResumeSession when no entries were
// loaded and the store confirms the id was never appended to.
type SessionNotFoundError struct {
	ID string
}

func (e *SessionNotFoundError) Error() string { return fmt.Sprintf("Session not found: %s", e.ID) }

// EntryNotFoundError is returned by ResumeSession when an explicit leaf
// id doesn't match any loaded entry.
type EntryNotFoundError struct {
	ID string
}

func (e *EntryNotFoundError) Error() string { return fmt.Sprintf("Entry not found: %s", e.ID) }

// Config is the merged configuration every Session the Agent mints
// inherits. Defaults are applied once, at New, not per session.
type Config struct {
	Model           string
	SystemPrompt    string
	Tools           []tool.Tool
	Runtime         runtime.Runtime
	MaxSteps        int
	Adapter         model.Adapter
	Store           store.Store
	DefaultSendMode session.SendMode
	// LogDir roots every minted session's per-subsystem log files; see
	// session.Config.LogDir.
	LogDir string
}

func (c Config) withDefaults() Config {
	if c.Runtime == nil {
		c.Runtime = runtime.NewLocal(".")
	}
	if c.Store == nil {
		c.Store = store.NewMemory()
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = 100
	}
	if c.DefaultSendMode == "" {
		c.DefaultSendMode = session.ModeSteer
	}
	return c
}

// Agent binds a model/tools/runtime/store/config tuple and mints
// sessions from it.
type Agent struct {
	cfg Config
}

func New(cfg Config) *Agent {
	return &Agent{cfg: cfg.withDefaults()}
}

// CreateOptions configures CreateSession.
type CreateOptions struct {
	ID       string
	SendMode session.SendMode
}

// CreateSession mints a brand-new, empty session. If opts.ID is "" a
// fresh uuid v7 is generated.
func (a *Agent) CreateSession(opts CreateOptions) *session.Session {
	id := opts.ID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	sendMode := opts.SendMode
	if sendMode == "" {
		sendMode = a.cfg.DefaultSendMode
	}
	return session.New(id, a.sessionConfig(sendMode), a.cfg.Store, nil, "")
}

// ResumeOptions configures ResumeSession.
type ResumeOptions struct {
	SendMode session.SendMode
	LeafID   string
}

// ResumeSession loads every entry previously appended under id and
// reconstructs a Session positioned at opts.LeafID (or the last loaded
// entry if unset).
func (a *Agent) ResumeSession(ctx context.Context, id string, opts ResumeOptions) (*session.Session, error) {
	entries, err := a.cfg.Store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if len(entries) == 0 {
		exists, err := a.cfg.Store.Exists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check session %s: %w", id, err)
		}
		if !exists {
			return nil, &SessionNotFoundError{ID: id}
		}
	}

	leafID := opts.LeafID
	if leafID != "" {
		found := false
		for _, e := range entries {
			if e.ID == leafID {
				found = true
				break
			}
		}
		if !found {
			return nil, &EntryNotFoundError{ID: leafID}
		}
	} else if len(entries) > 0 {
		leafID = entries[len(entries)-1].ID
	}

	sendMode := opts.SendMode
	if sendMode == "" {
		sendMode = a.cfg.DefaultSendMode
	}
	return session.New(id, a.sessionConfig(sendMode), a.cfg.Store, entries, leafID), nil
}

func (a *Agent) sessionConfig(sendMode session.SendMode) session.Config {
	return session.Config{
		Model:           a.cfg.Model,
		SystemPrompt:    a.cfg.SystemPrompt,
		Tools:           a.cfg.Tools,
		Runtime:         a.cfg.Runtime,
		MaxSteps:        a.cfg.MaxSteps,
		Adapter:         a.cfg.Adapter,
		DefaultSendMode: sendMode,
		LogDir:          a.cfg.LogDir,
	}
}

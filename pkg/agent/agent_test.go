package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arborist-ai/turnloop/pkg/model"
	"github.com/arborist-ai/turnloop/pkg/session"
	"github.com/arborist-ai/turnloop/pkg/store"
)

type noopAdapter struct{}

func (noopAdapter) Send(ctx context.Context, req model.Request) (model.Response, error) {
	return nil, errors.New("not used in these tests")
}

func TestCreateSession_GeneratesIDWhenUnset(t *testing.T) {
	a := New(Config{Adapter: noopAdapter{}})
	s1 := a.CreateSession(CreateOptions{})
	s2 := a.CreateSession(CreateOptions{})
	if s1.ID() == "" || s2.ID() == "" {
		t.Fatal("CreateSession must always mint a non-empty id")
	}
	if s1.ID() == s2.ID() {
		t.Fatal("two CreateSession calls must not collide on id")
	}
}

func TestCreateSession_HonorsExplicitID(t *testing.T) {
	a := New(Config{Adapter: noopAdapter{}})
	s := a.CreateSession(CreateOptions{ID: "my-session"})
	if s.ID() != "my-session" {
		t.Fatalf("s.ID() = %q, want %q", s.ID(), "my-session")
	}
}

func TestResumeSession_UnknownIDReturnsSessionNotFoundError(t *testing.T) {
	a := New(Config{Adapter: noopAdapter{}, Store: store.NewMemory()})
	_, err := a.ResumeSession(context.Background(), "ghost", ResumeOptions{})

	var notFound *SessionNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want a *SessionNotFoundError", err)
	}
	if notFound.Error() != "Session not found: ghost" {
		t.Fatalf("Error() = %q, want the exact spec-mandated message", notFound.Error())
	}
}

func TestResumeSession_UnknownLeafIDReturnsEntryNotFoundError(t *testing.T) {
	st := store.NewMemory()
	a := New(Config{Adapter: noopAdapter{}, Store: st})

	s := a.CreateSession(CreateOptions{ID: "sess1"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Send("hello", session.SendOptions{Ctx: ctx})
	// noopAdapter always errors; we only need the user entry persisted
	// before that failure to exercise the leaf-lookup path below.
	s.WaitForIdle(ctx)

	_, err := a.ResumeSession(ctx, "sess1", ResumeOptions{LeafID: "no-such-entry"})
	var entryNotFound *EntryNotFoundError
	if !errors.As(err, &entryNotFound) {
		t.Fatalf("err = %v, want a *EntryNotFoundError", err)
	}
	if entryNotFound.Error() != "Entry not found: no-such-entry" {
		t.Fatalf("Error() = %q, want the exact spec-mandated message", entryNotFound.Error())
	}
}

func TestResumeSession_DefaultsLeafToLastLoadedEntry(t *testing.T) {
	st := store.NewMemory()
	a := New(Config{Adapter: noopAdapter{}, Store: st})

	s := a.CreateSession(CreateOptions{ID: "sess1"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Send("hello", session.SendOptions{Ctx: ctx})
	s.WaitForIdle(ctx)

	entries, err := st.Load(ctx, "sess1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least the user message to be persisted before the adapter errored")
	}

	resumed, err := a.ResumeSession(ctx, "sess1", ResumeOptions{})
	if err != nil {
		t.Fatalf("ResumeSession: %v", err)
	}
	if resumed.LeafEntryID() != entries[len(entries)-1].ID {
		t.Fatalf("resumed leaf = %q, want the last loaded entry %q", resumed.LeafEntryID(), entries[len(entries)-1].ID)
	}
}

func TestCreateSession_WithAgentDefaultSendModeSucceeds(t *testing.T) {
	a := New(Config{Adapter: noopAdapter{}, Store: store.NewMemory(), DefaultSendMode: session.ModeQueue})
	s := a.CreateSession(CreateOptions{})
	if s == nil {
		t.Fatal("CreateSession returned nil")
	}
	// Sanity: a session minted with no explicit send mode falls back to the
	// agent's configured default, exercised indirectly through Send's
	// behavior in pkg/session's own tests; here we only assert the
	// constructor wiring succeeded without panicking.
}

func TestConfig_WithDefaultsFillsZeroValues(t *testing.T) {
	a := New(Config{Adapter: noopAdapter{}})
	if a.cfg.Runtime == nil {
		t.Fatal("withDefaults must fill a non-nil Runtime")
	}
	if a.cfg.Store == nil {
		t.Fatal("withDefaults must fill a non-nil Store")
	}
	if a.cfg.MaxSteps != 100 {
		t.Fatalf("a.cfg.MaxSteps = %d, want 100", a.cfg.MaxSteps)
	}
	if a.cfg.DefaultSendMode != session.ModeSteer {
		t.Fatalf("a.cfg.DefaultSendMode = %q, want %q", a.cfg.DefaultSendMode, session.ModeSteer)
	}
}

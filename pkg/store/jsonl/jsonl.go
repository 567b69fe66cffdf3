// Package jsonl is a disk-backed Store implementation: one JSON object
// per line, appended in order, with sessions namespaced under a
// sha256 hash of the working directory they were created in.
package jsonl

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/arborist-ai/turnloop/pkg/history"
	"github.com/arborist-ai/turnloop/pkg/logctx"
	"github.com/arborist-ai/turnloop/pkg/types"
)

// Store is a Store implementation rooted at a single directory, with one
// file per session: "<dir>/<sessionID>.jsonl".
type Store struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

// WorkingDirStore namespaces sessions by the cwd they were created in: the
// store's directory is cacheDir/sessions/<hex sha256 of cwd>.
func WorkingDirStore(cacheDir, cwd string) *Store {
	h := sha256.Sum256([]byte(cwd))
	return New(filepath.Join(cacheDir, "sessions", hex.EncodeToString(h[:])))
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".jsonl")
}

// Dir returns the root directory sessions are stored under, suitable as a
// session.Config.LogDir so per-session logs land alongside their entries.
func (s *Store) Dir() string { return s.dir }

type wireEntry struct {
	Type        string       `json:"type"`
	ID          string       `json:"id"`
	ParentID    *string      `json:"parentId"`
	Timestamp   time.Time    `json:"timestamp"`
	Message     *wireMessage `json:"message,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	FirstKeptID string       `json:"firstKeptId,omitempty"`
}

type wireMessage struct {
	Role    types.Role `json:"role"`
	Content []wirePart `json:"content"`
}

type wirePart struct {
	Kind       types.PartKind    `json:"kind"`
	Text       string            `json:"text,omitempty"`
	ToolCall   *types.ToolCall   `json:"toolCall,omitempty"`
	ToolResult *types.ToolResult `json:"toolResult,omitempty"`
}

func toWire(e history.Entry) wireEntry {
	w := wireEntry{
		ID:        e.ID,
		Timestamp: e.Timestamp,
	}
	if e.ParentID != "" {
		w.ParentID = &e.ParentID
	}
	switch e.Kind {
	case history.EntryMessage:
		w.Type = "message"
		wm := &wireMessage{Role: e.Message.Role}
		for _, p := range e.Message.Content {
			wm.Content = append(wm.Content, wirePart{
				Kind: p.Kind, Text: p.Text, ToolCall: p.ToolCall, ToolResult: p.ToolResult,
			})
		}
		w.Message = wm
	case history.EntryCompaction:
		w.Type = "compaction"
		w.Summary = e.Summary
		w.FirstKeptID = e.FirstKeptID
	}
	return w
}

func fromWire(w wireEntry) (history.Entry, error) {
	parentID := ""
	if w.ParentID != nil {
		parentID = *w.ParentID
	}
	switch w.Type {
	case "message":
		if w.Message == nil {
			return history.Entry{}, fmt.Errorf("message entry missing message field")
		}
		msg := types.Message{Role: w.Message.Role}
		for _, p := range w.Message.Content {
			msg.Content = append(msg.Content, types.Part{
				Kind: p.Kind, Text: p.Text, ToolCall: p.ToolCall, ToolResult: p.ToolResult,
			})
		}
		return history.NewMessageEntry(w.ID, parentID, w.Timestamp, msg), nil
	case "compaction":
		return history.NewCompactionEntry(w.ID, parentID, w.Timestamp, w.Summary, w.FirstKeptID), nil
	default:
		return history.Entry{}, fmt.Errorf("unknown entry type %q", w.Type)
	}
}

// Load reads every entry for sessionID, in append order. Malformed lines
// are silently skipped, per the store contract.
func (s *Store) Load(ctx context.Context, sessionID string) ([]history.Entry, error) {
	log := logctx.From(ctx, "store")
	f, err := os.Open(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("load: no session file yet", "session", sessionID)
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []history.Entry
	var skipped int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var w wireEntry
		if err := json.Unmarshal(line, &w); err != nil {
			skipped++
			continue
		}
		e, err := fromWire(w)
		if err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, err
	}
	log.Debug("load", "session", sessionID, "entries", len(entries), "skipped", skipped)
	return entries, nil
}

// Append writes one entry, appending a newline-delimited JSON record to
// the session's file. Per-session ordering is guaranteed by the mutex:
// the store never reorders or interleaves writes for the same id.
func (s *Store) Append(ctx context.Context, sessionID string, entry history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path(sessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoded, err := json.Marshal(toWire(entry))
	if err != nil {
		return err
	}
	encoded = append(encoded, '\n')
	if _, err := f.Write(encoded); err != nil {
		return err
	}
	logctx.From(ctx, "store").Debug("append", "session", sessionID, "entry", entry.ID, "kind", entry.Kind)
	return nil
}

func (s *Store) Exists(ctx context.Context, sessionID string) (bool, error) {
	_, err := os.Stat(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListSessions returns the ids of every session previously stored here,
// newest first by file modification time.
func (s *Store) ListSessions() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	type item struct {
		id  string
		mod time.Time
	}
	var items []item
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		const ext = ".jsonl"
		if len(name) <= len(ext) || name[len(name)-len(ext):] != ext {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, item{id: name[:len(name)-len(ext)], mod: info.ModTime()})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].mod.After(items[j].mod) })
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids, nil
}

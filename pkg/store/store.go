// Package store defines the session store contract: an append-only
// entry log keyed by session id.
package store

import (
	"context"
	"sync"

	"github.com/arborist-ai/turnloop/pkg/history"
)

// Store is the persistence boundary the session appends to. Implementors
// must honor in-order writes per session id; Load must return entries in
// append order and silently skip malformed persisted records.
type Store interface {
	Load(ctx context.Context, sessionID string) ([]history.Entry, error)
	Append(ctx context.Context, sessionID string, entry history.Entry) error
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// Memory is the default, process-lifetime Store an Agent constructs when
// none is configured -- every entry lives in a map keyed by session id,
// never touching disk. Useful for tests and for embedding the loop
// without a real persistence layer.
type Memory struct {
	mu   sync.Mutex
	logs map[string][]history.Entry
}

func NewMemory() *Memory {
	return &Memory{logs: make(map[string][]history.Entry)}
}

func (m *Memory) Load(ctx context.Context, sessionID string) ([]history.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.Entry{}, m.logs[sessionID]...), nil
}

func (m *Memory) Append(ctx context.Context, sessionID string, entry history.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[sessionID] = append(m.logs[sessionID], entry)
	return nil
}

func (m *Memory) Exists(ctx context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.logs[sessionID]
	return ok, nil
}

package session

import (
	"context"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/arborist-ai/turnloop/pkg/types"
)

// ListenerID identifies a registered listener for later removal. Go
// function values aren't comparable, so removal goes through this token
// rather than the listener value itself.
type ListenerID uint64

// Listener is the shape every registered callback has. For every event
// kind except tool_call, the returned Decision is ignored. Only a
// tool_call listener's Decision (when ok is true) is meaningful.
type Listener func(ctx context.Context, ev types.Event) (decision types.Decision, ok bool, err error)

// registry is the per-session listener registry: an ordered set per
// event kind, iterated in insertion order. It is backed by go-ordered-map
// so Off is O(1) instead of a linear scan, while On still iterates
// deterministically in registration order.
type registry struct {
	mu     sync.Mutex
	nextID ListenerID
	byKind map[types.EventKind]*orderedmap.OrderedMap[ListenerID, Listener]
}

func newRegistry() *registry {
	return &registry{byKind: make(map[types.EventKind]*orderedmap.OrderedMap[ListenerID, Listener])}
}

func (r *registry) on(kind types.EventKind, l Listener) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byKind[kind]
	if !ok {
		m = orderedmap.New[ListenerID, Listener]()
		r.byKind[kind] = m
	}
	r.nextID++
	id := r.nextID
	m.Set(id, l)
	return id
}

func (r *registry) off(kind types.EventKind, id ListenerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.byKind[kind]; ok {
		m.Delete(id)
	}
}

func (r *registry) snapshot(kind types.EventKind) []Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byKind[kind]
	if !ok {
		return nil
	}
	out := make([]Listener, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// dispatch invokes every listener registered for ev.Kind, in insertion
// order, awaiting each in turn. For tool_call events, the first listener
// to return ok=true wins and no further listener is invoked for that
// call. A listener error aborts dispatch and propagates to the caller.
func (r *registry) dispatch(ctx context.Context, ev types.Event) (types.Decision, error) {
	for _, l := range r.snapshot(ev.Kind) {
		d, ok, err := l(ctx, ev)
		if err != nil {
			return types.Decision{}, err
		}
		if ok && ev.Kind == types.EventToolCall {
			return d, nil
		}
	}
	return types.Decision{}, nil
}

// Package history implements the session entry DAG and the pure
// BuildContext function that walks it back into an ordered message
// sequence.
package history

import (
	"time"

	"github.com/arborist-ai/turnloop/pkg/types"
)

// EntryKind discriminates the two Entry variants.
type EntryKind string

const (
	EntryMessage    EntryKind = "message"
	EntryCompaction EntryKind = "compaction"
)

// Entry is one node of a session's history DAG. Once persisted it is
// immutable; new writes only ever extend the log.
type Entry struct {
	ID        string
	ParentID  string // empty means root
	Timestamp time.Time
	Kind      EntryKind

	// EntryMessage
	Message types.Message

	// EntryCompaction
	Summary     string
	FirstKeptID string
}

func NewMessageEntry(id, parentID string, ts time.Time, msg types.Message) Entry {
	return Entry{ID: id, ParentID: parentID, Timestamp: ts, Kind: EntryMessage, Message: msg}
}

func NewCompactionEntry(id, parentID string, ts time.Time, summary, firstKeptID string) Entry {
	return Entry{ID: id, ParentID: parentID, Timestamp: ts, Kind: EntryCompaction, Summary: summary, FirstKeptID: firstKeptID}
}

// BuildContext reconstructs a linear message sequence for the model from
// the DAG rooted (loosely -- it need not be acyclic) at leafID. It is a
// pure, deterministic function: same entries + same leafID always produce
// the same result, and it always terminates even over malformed
// (cyclic) parent pointers.
func BuildContext(entries []Entry, leafID string) []types.Message {
	if leafID == "" || len(entries) == 0 {
		return nil
	}

	byID := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	// Walk from leafID to the root, guarding against cycles, then reverse
	// to get root-to-leaf order.
	var path []Entry
	visited := make(map[string]bool, len(entries))
	cur := leafID
	for cur != "" {
		if visited[cur] {
			break
		}
		e, ok := byID[cur]
		if !ok {
			break
		}
		visited[cur] = true
		path = append(path, e)
		cur = e.ParentID
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	// Find the latest compaction on the path.
	latestCompaction := -1
	for i, e := range path {
		if e.Kind == EntryCompaction {
			latestCompaction = i
		}
	}

	if latestCompaction < 0 {
		var out []types.Message
		for _, e := range path {
			if e.Kind == EntryMessage {
				out = append(out, e.Message)
			}
		}
		return out
	}

	compaction := path[latestCompaction]
	out := []types.Message{
		types.NewTextMessage(types.RoleUser, "<summary>"+compaction.Summary+"</summary>"),
	}

	prefix := path[:latestCompaction]
	kept := false
	for _, e := range prefix {
		if !kept {
			if e.ID == compaction.FirstKeptID {
				kept = true
			} else {
				continue
			}
		}
		if e.Kind == EntryMessage {
			out = append(out, e.Message)
		}
	}

	for _, e := range path[latestCompaction+1:] {
		if e.Kind == EntryMessage {
			out = append(out, e.Message)
		}
	}
	return out
}

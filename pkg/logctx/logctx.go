// Package logctx carries a per-session logger source through context, so
// provider adapters, MCP tool managers and the store can each obtain their
// own named, scoped logger without importing pkg/session directly --
// mirroring the way pkg/runtime attaches a Runtime to ctx for tools.
package logctx

import (
	"context"
	"log/slog"
)

// Source hands out named loggers. *session.LogHandlers satisfies this.
type Source interface {
	Logger(name string) (*slog.Logger, error)
}

type contextKey struct{}

// With attaches src to ctx.
func With(ctx context.Context, src Source) context.Context {
	return context.WithValue(ctx, contextKey{}, src)
}

// From returns the logger named name from whatever Source is attached to
// ctx, falling back to a discard logger if none is attached or name
// can't be opened -- a missing log sink must never fail the caller.
func From(ctx context.Context, name string) *slog.Logger {
	src, ok := ctx.Value(contextKey{}).(Source)
	if !ok {
		return slog.New(slog.DiscardHandler)
	}
	l, err := src.Logger(name)
	if err != nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}

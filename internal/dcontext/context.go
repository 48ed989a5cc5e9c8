package dcontext

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
)

// Context is aliased to the standard library's, present so existing code
// written against distribution's original context package reads unchanged
// when adapted to import dcontext instead.
type Context = context.Context

// Background returns a non-nil, empty root context, exactly like
// context.Background, kept as a thin wrapper so callers only ever import
// dcontext rather than mixing it with the standard context package.
func Background() Context {
	return context.Background()
}

// valueContext carries a map of plain-string keys, matching the rest of
// this package's convention (GetLogger, GetVersion, etc. all fetch by
// plain string key rather than an unexported key type) so values set
// through WithValues are visible to any caller holding the same key
// string, not just code importing this package.
type valueContext struct {
	context.Context
	vals map[string]any
}

func (vc *valueContext) Value(key any) any {
	if s, ok := key.(string); ok {
		if v, present := vc.vals[s]; present {
			return v
		}
	}
	return vc.Context.Value(key)
}

// WithValues returns a context carrying every key/value pair in values,
// layered over ctx.
func WithValues(ctx context.Context, values map[string]any) Context {
	vals := make(map[string]any, len(values))
	for k, v := range values {
		vals[k] = v
	}
	return &valueContext{Context: ctx, vals: vals}
}

// WithValue returns a context carrying a single key/value pair.
func WithValue(ctx context.Context, key string, value any) Context {
	return WithValues(ctx, map[string]any{key: value})
}

// versionKey is the plain-string key GetVersion/WithVersion use.
const versionKey = "version"

// WithVersion stores the running binary's version in ctx, so it can be
// attached to every log entry derived from it.
func WithVersion(ctx context.Context, version string) Context {
	return WithValue(ctx, versionKey, version)
}

// GetVersion returns the version stored by WithVersion, or "" if none was
// set.
func GetVersion(ctx context.Context) string {
	v, ok := ctx.Value(versionKey).(string)
	if !ok {
		return ""
	}
	return v
}

var traceID uint64

// WithTrace allocates a trace id, start time, and caller identity on ctx,
// returning a done function that logs the elapsed time and a caller-
// supplied message when called. Nested calls record trace.parent.id so
// logs can be correlated across a call chain.
func WithTrace(ctx context.Context) (Context, func(format string, args ...any)) {
	return withTraceCallDepth(ctx, 2)
}

func withTraceCallDepth(ctx context.Context, depth int) (Context, func(format string, args ...any)) {
	id := atomic.AddUint64(&traceID, 1)

	fields := map[string]any{
		"trace.id":    fmt.Sprintf("%d", id),
		"trace.start": time.Now(),
	}
	if pc, file, line, ok := runtime.Caller(depth); ok {
		fields["trace.file"] = file
		fields["trace.line"] = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			fields["trace.func"] = fn.Name()
		}
	}
	if parentID := ctx.Value("trace.id"); parentID != nil {
		fields["trace.parent.id"] = parentID
	}

	start := time.Now()
	traced := WithValues(ctx, fields)

	return traced, func(format string, args ...any) {
		GetLogger(traced, "trace.id", "trace.file", "trace.line", "trace.func", "trace.parent.id").
			WithField("trace.duration", time.Since(start)).
			Debugf(format, args...)
	}
}

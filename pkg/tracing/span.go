// Package tracing provides in-process request tracing. A root span is opened
// per request, child spans mark stages like the cache lookup, and the whole
// tree is emitted through slog when the request finishes. There is no wire
// propagation: the service is a single process.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type spanCtxKey struct{}

// Span is one timed stage of a request.
type Span struct {
	Name    string
	TraceID string

	mu       sync.Mutex
	started  time.Time
	duration time.Duration
	attrs    []any
	children []*Span
}

func newSpan(name, traceID string) *Span {
	return &Span{
		Name:    name,
		TraceID: traceID,
		started: time.Now(),
	}
}

// StartSpan opens a root span and attaches it to the returned context. The
// request ID doubles as the trace ID.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	span := newSpan(name, traceID)
	return context.WithValue(ctx, spanCtxKey{}, span), span
}

// StartChildSpan opens a span nested under the one in ctx. Without a parent
// in ctx the child becomes its own root.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := newSpan(name, "")
	if parent := SpanFromContext(ctx); parent != nil {
		child.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanCtxKey{}, child), child
}

// SpanFromContext returns the span attached to ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanCtxKey{}).(*Span)
	return span
}

// SetAttr records a key-value pair on the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// End freezes the span's duration. Call once, before Log.
func (s *Span) End() {
	s.mu.Lock()
	s.duration = time.Since(s.started)
	s.mu.Unlock()
}

// Log emits the span and its children as one slog line each.
func (s *Span) Log() {
	s.emit(0)
}

func (s *Span) emit(depth int) {
	s.mu.Lock()
	line := make([]any, 0, len(s.attrs)+8)
	line = append(line,
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.duration.Milliseconds(),
		"depth", depth,
	)
	line = append(line, s.attrs...)
	children := s.children
	s.mu.Unlock()

	slog.Debug("span", line...)
	for _, child := range children {
		child.emit(depth + 1)
	}
}

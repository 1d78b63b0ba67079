package common

import (
	"context"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID    contextKey = "run_id"
	ContextKeyTraceID  contextKey = "trace_id"
	ContextKeyLayoutID contextKey = "layout_id"
)

// WithRunID adds a pipeline run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithTraceID carries a caller-supplied trace ID (queue jobs, HTTP request IDs).
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ContextKeyTraceID, traceID)
}

// TraceIDFromContext extracts the trace ID from context
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(ContextKeyTraceID).(string); ok {
		return traceID
	}
	return ""
}

// WithLayoutID records the resolved layout for downstream logging.
func WithLayoutID(ctx context.Context, layoutID int) context.Context {
	return context.WithValue(ctx, ContextKeyLayoutID, layoutID)
}

// LayoutIDFromContext returns the resolved layout, or 0 before classification.
func LayoutIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(ContextKeyLayoutID).(int); ok {
		return id
	}
	return 0
}

// WithTimeout creates a context with the specified timeout. A non-positive
// timeout returns a cancelable context without a deadline.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey is the context key for the sync run ID
	RunIDKey ContextKey = "run_id"
	// OperationIDKey is the context key for the bulk operation ID
	OperationIDKey ContextKey = "operation_id"
	// CollectionKey is the context key for the target collection
	CollectionKey ContextKey = "collection"
)

// TraceContext holds tracing information for a sync run
type TraceContext struct {
	TraceID     string
	RunID       string
	OperationID string
	Collection  string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRunID generates a new sync run ID
func NewRunID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRunID adds a sync run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithOperationID adds a bulk operation ID to the context
func WithOperationID(ctx context.Context, operationID string) context.Context {
	return context.WithValue(ctx, OperationIDKey, operationID)
}

// WithCollection adds the target collection to the context
func WithCollection(ctx context.Context, collection string) context.Context {
	return context.WithValue(ctx, CollectionKey, collection)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetRunID retrieves the sync run ID from the context
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// GetOperationID retrieves the bulk operation ID from the context
func GetOperationID(ctx context.Context) string {
	if operationID, ok := ctx.Value(OperationIDKey).(string); ok {
		return operationID
	}
	return ""
}

// GetCollection retrieves the target collection from the context
func GetCollection(ctx context.Context) string {
	if collection, ok := ctx.Value(CollectionKey).(string); ok {
		return collection
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:     GetTraceID(ctx),
		RunID:       GetRunID(ctx),
		OperationID: GetOperationID(ctx),
		Collection:  GetCollection(ctx),
	}
}

// NewSyncRunContext creates a context for a sync run with fresh trace and run IDs
func NewSyncRunContext(ctx context.Context) context.Context {
	ctx = WithTraceID(ctx, NewTraceID())
	return WithRunID(ctx, NewRunID())
}

// LoggerFromContext returns a logger carrying the tracing fields present in ctx
func LoggerFromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		logger = logger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.RunID != "" {
		logger = logger.With().Str("run_id", tc.RunID).Logger()
	}
	if tc.OperationID != "" {
		logger = logger.With().Str("operation_id", tc.OperationID).Logger()
	}
	if tc.Collection != "" {
		logger = logger.With().Str("collection", tc.Collection).Logger()
	}

	return logger
}

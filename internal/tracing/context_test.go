package tracing

import (
	"context"
	"testing"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}

	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithRunID(ctx, "run-1")
	ctx = WithOperationID(ctx, "op-1")
	ctx = WithCollection(ctx, "docs")

	if got := GetTraceID(ctx); got != "trace-1" {
		t.Errorf("GetTraceID = %q, want trace-1", got)
	}
	if got := GetRunID(ctx); got != "run-1" {
		t.Errorf("GetRunID = %q, want run-1", got)
	}
	if got := GetOperationID(ctx); got != "op-1" {
		t.Errorf("GetOperationID = %q, want op-1", got)
	}
	if got := GetCollection(ctx); got != "docs" {
		t.Errorf("GetCollection = %q, want docs", got)
	}
}

func TestFromContextEmpty(t *testing.T) {
	tc := FromContext(context.Background())

	if tc.TraceID != "" || tc.RunID != "" || tc.OperationID != "" || tc.Collection != "" {
		t.Errorf("FromContext on empty context returned non-empty fields: %+v", tc)
	}
}

func TestNewSyncRunContext(t *testing.T) {
	ctx := NewSyncRunContext(context.Background())

	if GetTraceID(ctx) == "" {
		t.Error("NewSyncRunContext did not set a trace ID")
	}
	if GetRunID(ctx) == "" {
		t.Error("NewSyncRunContext did not set a run ID")
	}
}

package trace_test

import (
	"context"
	"strings"
	"testing"

	"github.com/bdobrica/aether/common/trace"
)

func TestGenerateID_Unique(t *testing.T) {
	a, b := trace.GenerateID(), trace.GenerateID()
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
	if !strings.HasPrefix(a, "t_") || len(a) != 34 {
		t.Errorf("unexpected id shape %q", a)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := trace.WithTraceID(context.Background(), "t_1")
	if got := trace.FromContext(ctx); got != "t_1" {
		t.Errorf("FromContext = %q", got)
	}
	if got := trace.FromContext(context.Background()); got != "" {
		t.Errorf("empty ctx should yield \"\", got %q", got)
	}
}

func TestEnsure(t *testing.T) {
	ctx, id := trace.Ensure(context.Background())
	if !strings.HasPrefix(id, trace.Prefix) || trace.FromContext(ctx) != id {
		t.Fatalf("Ensure attached %q, context carries %q", id, trace.FromContext(ctx))
	}

	again, same := trace.Ensure(ctx)
	if same != id || trace.FromContext(again) != id {
		t.Errorf("Ensure replaced an existing id: %q -> %q", id, same)
	}
}

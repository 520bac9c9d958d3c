package trace

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithContext(context.Background(), "abc")
	if got := FromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
	if got := FromContext(context.Background()); got != "" {
		t.Fatalf("expected empty trace id, got %q", got)
	}
	if WithContext(context.Background(), "") != context.Background() {
		t.Fatalf("empty trace id should not wrap context")
	}
}

func TestGenerateTraceIDUnique(t *testing.T) {
	a, b := GenerateTraceID(), GenerateTraceID()
	if a == "" || a == b {
		t.Fatalf("trace ids not unique: %q %q", a, b)
	}
}

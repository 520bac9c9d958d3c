package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSlowQueryTracerLogsOnlySlowQueries(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	tracer := NewSlowQueryTracer(zap.New(core), time.Millisecond)

	fast := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tracer.TraceQueryEnd(fast, nil, pgx.TraceQueryEndData{})
	if logs.Len() != 0 {
		t.Fatalf("fast query logged: %d entries", logs.Len())
	}

	slow := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT pg_sleep(1)"})
	time.Sleep(5 * time.Millisecond)
	tracer.TraceQueryEnd(slow, nil, pgx.TraceQueryEndData{})
	if logs.Len() != 1 {
		t.Fatalf("slow query not logged, entries=%d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["sql"]; got != "SELECT pg_sleep(1)" {
		t.Fatalf("sql field = %v", got)
	}
}

func TestTruncateSQL(t *testing.T) {
	long := strings.Repeat("x", maxLoggedSQL+10)
	got := truncateSQL(long)
	if len(got) != maxLoggedSQL+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected truncation: len=%d", len(got))
	}
	if truncateSQL("") != "unknown" {
		t.Fatalf("empty sql should map to unknown")
	}
}

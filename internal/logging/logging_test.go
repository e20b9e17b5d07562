package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFieldsAndSession(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	ctx := ContextWithSessionID(context.Background(), "sess-1")
	log.With(Component("graphsync")).Info(ctx, "applied", Period(3), NodeID("A"), Err(errors.New("boom")))

	out := buf.String()
	for _, want := range []string{`"msg":"applied"`, `"component":"graphsync"`, `"period":3`, `"node_id":"A"`, `"error":"boom"`, `"session_id":"sess-1"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %s", out, want)
		}
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "hidden too")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}
	log.Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}

func TestEnsureSessionIDIsStable(t *testing.T) {
	ctx, id := EnsureSessionID(context.Background())
	if id == "" {
		t.Fatalf("EnsureSessionID returned empty id")
	}
	ctx2, id2 := EnsureSessionID(ctx)
	if id2 != id || SessionIDFromContext(ctx2) != id {
		t.Fatalf("EnsureSessionID changed id: %q -> %q", id, id2)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background(), nil) == nil {
		t.Fatalf("FromContext returned nil logger")
	}
	l := Noop()
	ctx := ContextWithLogger(context.Background(), l)
	if FromContext(ctx, nil) != l {
		t.Fatalf("FromContext did not return stored logger")
	}
}

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"gatekit.org/internal/auth"
	"gatekit.org/internal/obs"
	"gatekit.org/internal/stream"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger := obs.Logger()
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })
	return &buf
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
	ctx = WithRequestID(ctx, "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Fatalf("expected req-123, got %q", got)
	}
	// Blank ids are not attached.
	if got := RequestIDFromContext(WithRequestID(context.Background(), "   ")); got != "" {
		t.Fatalf("expected blank id to be dropped, got %q", got)
	}
}

func TestLogRecordEmitsJSON(t *testing.T) {
	buf := captureLog(t)
	log := NewLog(nil)

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = auth.ContextWithPrincipal(ctx, &auth.User{Email: "user@example.com"})
	log.Record(ctx, auth.SeverityWarn, "auth.gate", "user user@example.com tried to access route users.delete with no permission")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["type"] != "audit" || entry["severity"] != "warn" || entry["source"] != "auth.gate" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("expected request_id enrichment, got %v", entry["request_id"])
	}
	if entry["user"] != "user@example.com" {
		t.Fatalf("expected principal enrichment, got %v", entry["user"])
	}
	if entry["ts"] == nil || entry["msg"] == "" {
		t.Fatalf("missing ts or msg: %v", entry)
	}
}

func TestLogRecordOmitsAbsentContext(t *testing.T) {
	buf := captureLog(t)
	log := NewLog(nil)

	log.Record(context.Background(), auth.SeverityInfo, "auth.service", "token revoked on logout")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if _, ok := entry["request_id"]; ok {
		t.Fatal("request_id must be omitted without context")
	}
	if _, ok := entry["user"]; ok {
		t.Fatal("user must be omitted without principal")
	}
}

func TestLogRecordBroadcasts(t *testing.T) {
	captureLog(t)
	hub := stream.NewHub()
	log := NewLog(hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := hub.Subscribe(ctx)

	log.Record(WithRequestID(context.Background(), "req-456"), auth.SeverityError, "auth.resolver",
		"decoded a valid token but found no principal with the corresponding email")

	select {
	case evt := <-ch:
		if evt.Severity != "error" || evt.Source != "auth.resolver" || evt.RequestID != "req-456" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

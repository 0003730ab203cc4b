package audit

import (
	"context"
	"strings"
	"time"

	"gatekit.org/internal/auth"
	"gatekit.org/internal/obs"
	"gatekit.org/internal/stream"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// enrichment.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Log writes audit records as structured JSON lines and optionally broadcasts
// them to a live stream hub. It satisfies the auth.AuditSink contract:
// recording is fire-and-forget and never fails or blocks the caller.
type Log struct {
	hub *stream.Hub
}

// NewLog constructs a Log. A nil hub disables broadcasting.
func NewLog(hub *stream.Hub) *Log {
	return &Log{hub: hub}
}

// Record emits the audit entry enriched with request and principal context.
func (l *Log) Record(ctx context.Context, severity auth.Severity, source, message string) {
	now := time.Now().UTC()
	entry := map[string]any{
		"ts":       now.Format(time.RFC3339Nano),
		"type":     "audit",
		"severity": string(severity),
		"source":   source,
		"msg":      message,
	}
	rid := RequestIDFromContext(ctx)
	if rid != "" {
		entry["request_id"] = rid
	}
	if user, ok := auth.PrincipalFromContext(ctx); ok {
		entry["user"] = user.Email
	}
	obs.LogJSON(entry)

	if l.hub != nil {
		l.hub.Publish(stream.Event{
			Severity:  string(severity),
			Source:    source,
			Message:   message,
			RequestID: rid,
			Timestamp: now,
		})
	}
}

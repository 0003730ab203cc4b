package auth

import "context"

// Severity classifies audit records.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// AuditSink receives security-relevant events. Implementations are
// fire-and-forget: Record must never block or fail the caller, and recording
// must not influence any authorization decision.
type AuditSink interface {
	Record(ctx context.Context, severity Severity, source, message string)
}

// NopSink discards all records. Used when no sink is injected.
type NopSink struct{}

func (NopSink) Record(context.Context, Severity, string, string) {}

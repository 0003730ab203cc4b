package auth

import (
	"context"
	"fmt"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Gate decides whether a principal may access a route. It is a pure function
// over already-resolved principal state; the only side effect is optional
// audit recording, which never changes the returned decision.
type Gate struct {
	sink AuditSink
}

// NewGate constructs a Gate. A nil sink disables audit recording.
func NewGate(sink AuditSink) *Gate {
	if sink == nil {
		sink = NopSink{}
	}
	return &Gate{sink: sink}
}

// Authorize evaluates the principal's grants in strict precedence order:
// blacklist, then whitelist, then role-derived permissions. A blacklist entry
// wins over any simultaneous whitelist or role grant for the same route.
// Matching is exact string equality on the route key.
func (g *Gate) Authorize(ctx context.Context, user *User, route string) Decision {
	if user == nil || route == "" {
		return Deny
	}

	for _, perm := range user.Blacklist {
		if perm.Route == route {
			g.sink.Record(ctx, SeverityWarn, "auth.gate",
				fmt.Sprintf("user %s tried to access blacklisted route %s", user.Email, route))
			return Deny
		}
	}

	for _, perm := range user.Whitelist {
		if perm.Route == route {
			return Allow
		}
	}

	for _, role := range user.Roles {
		for _, perm := range role.Permissions {
			if perm.Route == route {
				return Allow
			}
		}
	}

	g.sink.Record(ctx, SeverityWarn, "auth.gate",
		fmt.Sprintf("user %s tried to access route %s with no permission", user.Email, route))
	return Deny
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// Resolver turns an inbound request into an authenticated principal: header
// extraction, revocation check, token verification and user lookup.
type Resolver struct {
	codec   *Codec
	users   UserStore
	revoked RevocationStore
	sink    AuditSink
}

// NewResolver constructs a Resolver. A nil sink disables audit recording.
func NewResolver(codec *Codec, users UserStore, revoked RevocationStore, sink AuditSink) *Resolver {
	if sink == nil {
		sink = NopSink{}
	}
	return &Resolver{codec: codec, users: users, revoked: revoked, sink: sink}
}

// ExtractToken parses the bearer token out of the request headers and rejects
// it early when it is already revoked. The revocation check runs before any
// cryptographic work so revoked tokens never reach the codec.
func (r *Resolver) ExtractToken(ctx context.Context, header http.Header) (string, error) {
	raw := strings.TrimSpace(header.Get(authorizationHeader))
	if raw == "" {
		return "", ErrMissingAuthorization
	}
	if !strings.HasPrefix(strings.ToLower(raw), strings.ToLower(bearerPrefix)) {
		return "", ErrMalformedAuthorization
	}
	token := strings.TrimSpace(raw[len(bearerPrefix):])
	if token == "" {
		return "", ErrMalformedAuthorization
	}

	revoked, err := r.revoked.IsRevoked(ctx, token)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", ErrRevokedToken
	}
	return token, nil
}

// Resolve verifies the token and loads the principal it binds. Codec failures
// propagate unchanged. A validly signed token whose subject no longer exists
// is an integrity anomaly: the user store and the token-issuing state have
// diverged, so it is recorded at error severity before the deny.
func (r *Resolver) Resolve(ctx context.Context, token string) (*User, error) {
	claims, err := r.codec.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := r.users.FindByEmail(ctx, strings.TrimSpace(strings.ToLower(claims.Email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.sink.Record(ctx, SeverityError, "auth.resolver",
				"decoded a valid token but found no principal with the corresponding email")
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}
	return user, nil
}

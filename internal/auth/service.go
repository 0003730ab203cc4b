package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gatekit.org/internal/ids"
)

const defaultTokenTTL = 15 * time.Minute

// DecisionObserver receives the outcome of every Authenticate call, labelled
// with the internal reason class. Wired to metrics in the composition root.
type DecisionObserver func(decision, reason string)

// Service is the dependency-injected composition root for authentication and
// authorization. All collaborators are injected so tests can substitute them.
type Service struct {
	codec    *Codec
	users    UserStore
	revoked  RevocationStore
	resolver *Resolver
	gate     *Gate
	sink     AuditSink
	observe  DecisionObserver
	now      func() time.Time
	tokenTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithAuditSink injects the audit sink shared by the resolver and the gate.
func WithAuditSink(sink AuditSink) ServiceOption {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithTokenTTL configures the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithDecisionObserver registers a callback counting authentication outcomes.
func WithDecisionObserver(fn DecisionObserver) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.observe = fn
		}
	}
}

// NewService constructs the Service and its internal resolver and gate.
func NewService(codec *Codec, users UserStore, revoked RevocationStore, opts ...ServiceOption) (*Service, error) {
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if revoked == nil {
		return nil, errors.New("auth: revocation store is required")
	}
	svc := &Service{
		codec:    codec,
		users:    users,
		revoked:  revoked,
		sink:     NopSink{},
		observe:  func(string, string) {},
		now:      time.Now,
		tokenTTL: defaultTokenTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	svc.resolver = NewResolver(codec, users, revoked, svc.sink)
	svc.gate = NewGate(svc.sink)
	return svc, nil
}

// Authenticate composes token extraction, principal resolution and the
// authorization gate for a named route. On success the resolved principal is
// returned. Every failure path is recorded with its precise reason and then
// collapsed to ErrUnauthorized: callers cannot distinguish an expired token
// from a missing grant from an unknown account.
func (s *Service) Authenticate(ctx context.Context, header http.Header, route string) (*User, error) {
	token, err := s.resolver.ExtractToken(ctx, header)
	if err != nil {
		return nil, s.deny(ctx, route, err)
	}
	user, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, s.deny(ctx, route, err)
	}
	if s.gate.Authorize(ctx, user, route) != Allow {
		// The gate already audited the denial with the user identity.
		s.observe(Deny.String(), reasonClass(ErrPermissionDenied))
		return nil, ErrUnauthorized
	}
	s.observe(Allow.String(), "granted")
	return user, nil
}

func (s *Service) deny(ctx context.Context, route string, cause error) error {
	reason := reasonClass(cause)
	s.sink.Record(ctx, severityFor(cause), "auth.service",
		fmt.Sprintf("denied access to route %s: %s", route, reason))
	s.observe(Deny.String(), reason)
	return ErrUnauthorized
}

// Register creates an account, issues its first bearer token and persists the
// token on the user record.
func (s *Service) Register(ctx context.Context, email, password string) (*User, string, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(password) == "" {
		return nil, "", fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, "", ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", err
	}
	now := s.now().UTC()
	user := &User{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	token, err := s.issueToken(email)
	if err != nil {
		return nil, "", err
	}
	user.AccessToken = token
	if err := s.users.Save(ctx, user); err != nil {
		return nil, "", err
	}
	s.sink.Record(ctx, SeverityInfo, "auth.service", fmt.Sprintf("registered user %s", email))
	return user, token, nil
}

// Login verifies credentials and rotates the user's bearer token. Every
// failure is the same ErrUnauthorized so callers cannot probe for accounts.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", ErrUnauthorized
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.sink.Record(ctx, SeverityWarn, "auth.service",
				fmt.Sprintf("login attempt for unknown account %s", email))
			return nil, "", ErrUnauthorized
		}
		return nil, "", err
	}
	if !CheckPassword(password, user.PasswordHash) {
		s.sink.Record(ctx, SeverityWarn, "auth.service",
			fmt.Sprintf("failed login for user %s", email))
		return nil, "", ErrUnauthorized
	}

	token, err := s.issueToken(email)
	if err != nil {
		return nil, "", err
	}
	user.AccessToken = token
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Save(ctx, user); err != nil {
		return nil, "", err
	}
	s.sink.Record(ctx, SeverityInfo, "auth.service", fmt.Sprintf("user %s logged in", email))
	return user, token, nil
}

// Logout revokes the bearer token carried by the request. Revoking an
// already-revoked token is a no-op success. The user's stored current token
// is cleared on a best-effort basis: the revocation itself is what makes the
// token unusable.
func (s *Service) Logout(ctx context.Context, header http.Header) error {
	token, err := s.resolver.ExtractToken(ctx, header)
	if errors.Is(err, ErrRevokedToken) {
		return nil
	}
	if err != nil {
		return s.deny(ctx, "logout", err)
	}
	if err := s.revoked.Revoke(ctx, token); err != nil {
		return err
	}

	if user, err := s.resolver.Resolve(ctx, token); err == nil && user.AccessToken == token {
		user.AccessToken = ""
		user.UpdatedAt = s.now().UTC()
		_ = s.users.Save(ctx, user)
	}
	s.sink.Record(ctx, SeverityInfo, "auth.service", "token revoked on logout")
	return nil
}

func (s *Service) issueToken(email string) (string, error) {
	now := s.now().UTC()
	return s.codec.Issue(Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.codec.Issuer(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			ID:        uuid.NewString(),
		},
	})
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func reasonClass(err error) string {
	switch {
	case errors.Is(err, ErrMissingAuthorization):
		return "missing_authorization"
	case errors.Is(err, ErrMalformedAuthorization):
		return "malformed_authorization"
	case errors.Is(err, ErrRevokedToken):
		return "revoked_token"
	case errors.Is(err, ErrExpiredToken):
		return "expired_token"
	case errors.Is(err, ErrInvalidIssuer):
		return "invalid_issuer"
	case errors.Is(err, ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, ErrPrincipalNotFound):
		return "principal_not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	default:
		return "store_error"
	}
}

func severityFor(err error) Severity {
	switch {
	case errors.Is(err, ErrInvalidIssuer), errors.Is(err, ErrPrincipalNotFound):
		return SeverityError
	case errors.Is(err, ErrExpiredToken):
		return SeverityInfo
	default:
		return SeverityWarn
	}
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

type decisionRecorder struct {
	mu      sync.Mutex
	reasons []string
}

func (d *decisionRecorder) observe(decision, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasons = append(d.reasons, decision+":"+reason)
}

func (d *decisionRecorder) last(t *testing.T) string {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.reasons) == 0 {
		t.Fatal("no decisions observed")
	}
	return d.reasons[len(d.reasons)-1]
}

type serviceFixture struct {
	svc      *Service
	users    *memUserStore
	revoked  *memRevocations
	sink     *recordSink
	observed *decisionRecorder
	clock    *time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	now := time.Now().UTC()
	f := &serviceFixture{
		users:    newMemUserStore(),
		revoked:  newMemRevocations(),
		sink:     &recordSink{},
		observed: &decisionRecorder{},
		clock:    &now,
	}
	codec, err := NewCodec("test-signing-secret", "test-issuer",
		WithCodecClock(func() time.Time { return *f.clock }))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	f.svc, err = NewService(codec, f.users, f.revoked,
		WithAuditSink(f.sink),
		WithClock(func() time.Time { return *f.clock }),
		WithTokenTTL(time.Hour),
		WithDecisionObserver(f.observed.observe),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return f
}

func (f *serviceFixture) grantRole(t *testing.T, email string, routes ...string) {
	t.Helper()
	user, err := f.users.FindByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	role := Role{ID: "role-test", Name: "test-role"}
	for _, route := range routes {
		role.Permissions = append(role.Permissions, permFor(route))
	}
	user.Roles = append(user.Roles, role)
	if err := f.users.Save(context.Background(), user); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

func TestRegisterIssuesUsableToken(t *testing.T) {
	f := newServiceFixture(t)

	user, token, err := f.svc.Register(context.Background(), "User@Example.com ", "hunter2-long")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "user@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.ID == "" || token == "" {
		t.Fatal("expected id and token to be set")
	}
	if user.AccessToken != token {
		t.Fatal("expected issued token persisted on the user")
	}

	f.grantRole(t, "user@example.com", "users.me")
	principal, err := f.svc.Authenticate(context.Background(), bearer(token), "users.me")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if principal.Email != "user@example.com" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if f.observed.last(t) != "allow:granted" {
		t.Fatalf("unexpected decision: %s", f.observed.last(t))
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newServiceFixture(t)
	if _, _, err := f.svc.Register(context.Background(), "no-at-sign", "pw"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, _, err := f.svc.Register(context.Background(), "a@b.com", "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank password, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newServiceFixture(t)
	if _, _, err := f.svc.Register(context.Background(), "a@b.com", "hunter2-long"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := f.svc.Register(context.Background(), "A@B.com", "another-pass"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestLoginRotatesToken(t *testing.T) {
	f := newServiceFixture(t)
	_, first, err := f.svc.Register(context.Background(), "a@b.com", "hunter2-long")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	*f.clock = f.clock.Add(time.Second)
	user, second, err := f.svc.Login(context.Background(), "a@b.com", "hunter2-long")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if second == first {
		t.Fatal("expected login to rotate the token")
	}
	if user.AccessToken != second {
		t.Fatal("expected rotated token persisted on the user")
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	f := newServiceFixture(t)
	if _, _, err := f.svc.Register(context.Background(), "a@b.com", "hunter2-long"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Unknown account and wrong password return the same opaque error.
	_, _, unknownErr := f.svc.Login(context.Background(), "ghost@b.com", "whatever")
	_, _, badPassErr := f.svc.Login(context.Background(), "a@b.com", "wrong-pass")
	if !errors.Is(unknownErr, ErrUnauthorized) || !errors.Is(badPassErr, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for both, got %v / %v", unknownErr, badPassErr)
	}
	if unknownErr.Error() != badPassErr.Error() {
		t.Fatal("login failures must be indistinguishable to the caller")
	}
}

func TestAuthenticateCollapsesFailures(t *testing.T) {
	f := newServiceFixture(t)
	_, token, err := f.svc.Register(context.Background(), "a@b.com", "hunter2-long")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	cases := []struct {
		name   string
		header http.Header
		reason string
	}{
		{"missing header", http.Header{}, "missing_authorization"},
		{"malformed header", headerWith("Basic dXNlcg=="), "malformed_authorization"},
		{"garbage token", bearer("not.a.jwt"), "malformed_token"},
		{"no grant", bearer(token), "permission_denied"},
	}
	for _, tc := range cases {
		_, err := f.svc.Authenticate(context.Background(), tc.header, "users.me")
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", tc.name, err)
		}
		if got := f.observed.last(t); got != "deny:"+tc.reason {
			t.Fatalf("%s: expected reason %q, got %q", tc.name, tc.reason, got)
		}
	}
}

func TestAuthenticatePrincipalNotFound(t *testing.T) {
	f := newServiceFixture(t)

	// A validly signed token whose email matches no account. The caller sees
	// the same opaque error as any other failure, but the anomaly is recorded
	// at error severity.
	codec, err := NewCodec("test-signing-secret", "test-issuer")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, err := codec.Issue(testClaims("ghost@example.com", "test-issuer", f.clock.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := f.svc.Authenticate(context.Background(), bearer(token), "users.me"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if got := f.observed.last(t); got != "deny:principal_not_found" {
		t.Fatalf("unexpected decision: %s", got)
	}
	var anomaly bool
	for _, entry := range f.sink.all() {
		if entry.severity == SeverityError && entry.source == "auth.resolver" {
			anomaly = true
		}
	}
	if !anomaly {
		t.Fatal("expected an error-severity anomaly audit record")
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	f := newServiceFixture(t)
	_, token, err := f.svc.Register(context.Background(), "a@b.com", "hunter2-long")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	f.grantRole(t, "a@b.com", "users.me")

	*f.clock = f.clock.Add(2 * time.Hour)
	if _, err := f.svc.Authenticate(context.Background(), bearer(token), "users.me"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if got := f.observed.last(t); got != "deny:expired_token" {
		t.Fatalf("unexpected decision: %s", got)
	}
}

func TestAuthenticateBlacklistOverridesRole(t *testing.T) {
	f := newServiceFixture(t)
	_, token, err := f.svc.Register(context.Background(), "a@b.com", "hunter2-long")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	f.grantRole(t, "a@b.com", "users.me")

	user, err := f.users.FindByEmail(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	user.Blacklist = append(user.Blacklist, permFor("users.me"))
	if err := f.users.Save(context.Background(), user); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := f.svc.Authenticate(context.Background(), bearer(token), "users.me"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if got := f.observed.last(t); got != "deny:permission_denied" {
		t.Fatalf("unexpected decision: %s", got)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newServiceFixture(t)
	_, token, err := f.svc.Register(context.Background(), "a@b.com", "hunter2-long")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	f.grantRole(t, "a@b.com", "users.me")

	if err := f.svc.Logout(context.Background(), bearer(token)); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := f.svc.Authenticate(context.Background(), bearer(token), "users.me"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after logout, got %v", err)
	}
	if got := f.observed.last(t); got != "deny:revoked_token" {
		t.Fatalf("unexpected decision: %s", got)
	}

	// Logging out again with the same token is a no-op success.
	if err := f.svc.Logout(context.Background(), bearer(token)); err != nil {
		t.Fatalf("expected idempotent logout, got %v", err)
	}

	user, err := f.users.FindByEmail(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if user.AccessToken != "" {
		t.Fatal("expected stored token cleared on logout")
	}
}

func TestLogoutWithoutHeader(t *testing.T) {
	f := newServiceFixture(t)
	if err := f.svc.Logout(context.Background(), http.Header{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestNewServiceValidation(t *testing.T) {
	codec := testCodec(t, time.Now())
	if _, err := NewService(nil, newMemUserStore(), newMemRevocations()); err == nil {
		t.Fatal("expected error for nil codec")
	}
	if _, err := NewService(codec, nil, newMemRevocations()); err == nil {
		t.Fatal("expected error for nil user store")
	}
	if _, err := NewService(codec, newMemUserStore(), nil); err == nil {
		t.Fatal("expected error for nil revocation store")
	}
}

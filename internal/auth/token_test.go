package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testCodec(t *testing.T, now time.Time) *Codec {
	t.Helper()
	codec, err := NewCodec("test-signing-secret", "test-issuer",
		WithCodecClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

func testClaims(email, issuer string, exp time.Time) Claims {
	return Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func TestCodecRequiresSecret(t *testing.T) {
	if _, err := NewCodec("", "test-issuer"); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := NewCodec("   ", "test-issuer"); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestCodecRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	codec := testCodec(t, now)

	token, err := codec.Issue(testClaims("user@example.com", "test-issuer", now.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Email != "user@example.com" {
		t.Fatalf("unexpected email: %s", claims.Email)
	}
	if claims.Issuer != "test-issuer" {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
}

func TestCodecVerifyIsDeterministic(t *testing.T) {
	now := time.Now().UTC()
	codec := testCodec(t, now)

	token, err := codec.Issue(testClaims("user@example.com", "test-issuer", now.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := codec.Verify(token); err != nil {
			t.Fatalf("verify attempt %d: %v", i, err)
		}
	}
}

func TestCodecExpiredToken(t *testing.T) {
	now := time.Now().UTC()
	codec := testCodec(t, now)

	// Signature and issuer are valid; only the expiry has passed.
	token, err := codec.Issue(testClaims("user@example.com", "test-issuer", now.Add(-time.Minute)))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := codec.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestCodecExpiryAdvancesWithClock(t *testing.T) {
	now := time.Now().UTC()
	clock := now
	codec, err := NewCodec("test-signing-secret", "test-issuer",
		WithCodecClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	token, err := codec.Issue(testClaims("user@example.com", "test-issuer", now.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := codec.Verify(token); err != nil {
		t.Fatalf("expected valid token before expiry: %v", err)
	}

	clock = now.Add(2 * time.Hour)
	if _, err := codec.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken after clock advance, got %v", err)
	}
}

func TestCodecInvalidIssuer(t *testing.T) {
	now := time.Now().UTC()
	codec := testCodec(t, now)

	token, err := codec.Issue(testClaims("user@example.com", "someone-else", now.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := codec.Verify(token); !errors.Is(err, ErrInvalidIssuer) {
		t.Fatalf("expected ErrInvalidIssuer, got %v", err)
	}
}

func TestCodecMissingClaims(t *testing.T) {
	now := time.Now().UTC()
	codec := testCodec(t, now)

	cases := map[string]Claims{
		"no email": testClaims("", "test-issuer", now.Add(time.Hour)),
		"no issuer": {
			Email:            "user@example.com",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		},
		"no expiry": {
			Email:            "user@example.com",
			RegisteredClaims: jwt.RegisteredClaims{Issuer: "test-issuer"},
		},
	}
	for name, claims := range cases {
		token, err := codec.Issue(claims)
		if err != nil {
			t.Fatalf("%s: Issue: %v", name, err)
		}
		if _, err := codec.Verify(token); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("%s: expected ErrMalformedToken, got %v", name, err)
		}
	}
}

func TestCodecRejectsGarbageAndForeignSignature(t *testing.T) {
	now := time.Now().UTC()
	codec := testCodec(t, now)

	if _, err := codec.Verify("not.a.jwt"); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken for garbage, got %v", err)
	}
	if _, err := codec.Verify(""); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken for empty token, got %v", err)
	}

	other, err := NewCodec("another-secret-entirely", "test-issuer",
		WithCodecClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	foreign, err := other.Issue(testClaims("user@example.com", "test-issuer", now.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := codec.Verify(foreign); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken for foreign signature, got %v", err)
	}
}

func TestCodecIgnoresExtraClaims(t *testing.T) {
	now := time.Now().UTC()
	codec := testCodec(t, now)

	claims := testClaims("user@example.com", "test-issuer", now.Add(time.Hour))
	claims.ID = "some-token-id"
	claims.Subject = "extra-subject"
	token, err := codec.Issue(claims)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	decoded, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if decoded.Email != "user@example.com" {
		t.Fatalf("unexpected email: %s", decoded.Email)
	}
}

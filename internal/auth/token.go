package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the signed token payload. Email, ExpiresAt and Issuer are the
// mandatory claim set; tokens missing any of them are rejected. Extra
// registered claims (jti, iat) ride along and are ignored by verification.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Codec encodes and validates signed bearer tokens using HS256. The signing
// secret is fixed at construction and never logged.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// CodecOption configures Codec behavior.
type CodecOption func(*Codec)

// WithCodecClock overrides the time source used for expiry checks.
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec. An empty secret is a configuration error:
// callers are expected to treat it as fatal at startup.
func NewCodec(secret, issuer string, opts ...CodecOption) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is not configured")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, errors.New("auth: token issuer is not configured")
	}
	c := &Codec{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issuer returns the configured issuer value stamped into issued tokens.
func (c *Codec) Issuer() string {
	return c.issuer
}

// Issue serializes and signs the supplied claims. No implicit claims are
// added: the caller is responsible for expiry, issuer and subject email.
func (c *Codec) Issue(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verify checks the signature, then the presence of the required claim set
// {exp, iss, email}, then issuer equality, then expiry against the codec
// clock. Signature verification runs first so rejected tokens leak nothing
// about their claim structure. The checks are deterministic: the same token
// yields the same verdict until time advances.
func (c *Codec) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrMalformedToken
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrMalformedToken
		}
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrMalformedToken
	}

	if strings.TrimSpace(claims.Email) == "" || claims.ExpiresAt == nil || strings.TrimSpace(claims.Issuer) == "" {
		return Claims{}, ErrMalformedToken
	}
	if claims.Issuer != c.issuer {
		return Claims{}, ErrInvalidIssuer
	}
	if c.now().UTC().After(claims.ExpiresAt.Time) {
		return Claims{}, ErrExpiredToken
	}
	return *claims, nil
}

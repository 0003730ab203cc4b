package auth

import "errors"

// Internal failure taxonomy. Each error is classified where it is detected:
// the codec classifies signature/claim failures, the resolver classifies
// header and lookup failures, the gate classifies permission failures. Only
// ErrUnauthorized crosses the service boundary.
var (
	ErrMissingAuthorization   = errors.New("auth: missing authorization header")
	ErrMalformedAuthorization = errors.New("auth: malformed authorization header")
	ErrRevokedToken           = errors.New("auth: token revoked")
	ErrExpiredToken           = errors.New("auth: token expired")
	ErrInvalidIssuer          = errors.New("auth: invalid token issuer")
	ErrMalformedToken         = errors.New("auth: malformed token")
	ErrPrincipalNotFound      = errors.New("auth: principal not found")
	ErrPermissionDenied       = errors.New("auth: permission denied")

	// ErrUnauthorized is the single opaque outcome surfaced to callers of
	// protected operations. The underlying reason is visible to the audit
	// sink only.
	ErrUnauthorized = errors.New("auth: unauthorized")
)

// Store-level sentinels.
var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
)
